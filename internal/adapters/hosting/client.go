package hosting

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenk/backoff"
	"github.com/okian/innerscore/pkg/logger"
	"github.com/okian/innerscore/pkg/metrics"
	"github.com/rs/dnscache"
	circuit "github.com/rubyist/circuitbreaker"
)

const (
	defaultUserAgent     = "innerscore/1.0"
	defaultTimeout       = 30 * time.Second
	defaultMaxRetries    = 3
	defaultBaseDelay     = 500 * time.Millisecond
	defaultTripThreshold = 5
	dnsRefreshInterval   = 5 * time.Minute
	maxResponseBytes     = 16 << 20
)

// HTTPClient implements Client over the hosting service JSON API.
type HTTPClient struct {
	base          *url.URL
	client        *http.Client
	token         string
	userAgent     string
	timeout       time.Duration
	maxRetries    int
	baseDelay     time.Duration
	tripThreshold int64
	log           logger.Logger

	breakers map[string]*circuit.Breaker
	mu       sync.RWMutex

	stop      chan struct{}
	closeOnce sync.Once
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a client for the API rooted at endpoint.
func NewHTTPClient(endpoint string, opts ...Option) (*HTTPClient, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(endpoint), "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEndpoint, endpoint)
	}

	h := &HTTPClient{
		base:          base,
		userAgent:     defaultUserAgent,
		timeout:       defaultTimeout,
		maxRetries:    defaultMaxRetries,
		baseDelay:     defaultBaseDelay,
		tripThreshold: defaultTripThreshold,
		log:           logger.Nop(),
		breakers:      make(map[string]*circuit.Breaker),
		stop:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.client == nil {
		h.client = h.cachingClient()
	}
	return h, nil
}

// Close stops the DNS refresh loop.
func (h *HTTPClient) Close() error {
	h.closeOnce.Do(func() { close(h.stop) })
	return nil
}

// cachingClient builds an http.Client whose dialer resolves through a
// DNS cache refreshed in the background.
func (h *HTTPClient) cachingClient() *http.Client {
	resolver := &dnscache.Resolver{}
	go func() {
		ticker := time.NewTicker(dnsRefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-h.stop:
				return
			case <-ticker.C:
				resolver.Refresh(true)
			}
		}
	}()

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	return &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				host, port, err := net.SplitHostPort(addr)
				if err != nil {
					return nil, err
				}
				ips, err := resolver.LookupHost(ctx, host)
				if err != nil {
					return nil, err
				}
				for _, ip := range ips {
					conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
					if err == nil {
						return conn, nil
					}
				}
				return nil, fmt.Errorf("failed to dial any resolved IP for %s", host)
			},
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// ListRepositories implements Client.
func (h *HTTPClient) ListRepositories(ctx context.Context) ([]RepositoryName, error) {
	var (
		out   []RepositoryName
		token string
	)
	for {
		q := url.Values{}
		q.Set("sortBy", "repositoryName")
		q.Set("order", "ascending")
		if token != "" {
			q.Set("nextToken", token)
		}

		var page listRepositoriesResponse
		if err := h.get(ctx, "list_repositories", q, &page, "repositories"); err != nil {
			return nil, fmt.Errorf("listing repositories: %w", err)
		}
		out = append(out, page.Repositories...)

		if page.NextToken == "" || page.NextToken == token {
			break
		}
		token = page.NextToken
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RepositoryName < out[j].RepositoryName
	})
	return out, nil
}

// GetRepository implements Client.
func (h *HTTPClient) GetRepository(ctx context.Context, name string) (Metadata, error) {
	var resp getRepositoryResponse
	if err := h.get(ctx, "get_repository", nil, &resp, "repositories", name); err != nil {
		return Metadata{}, fmt.Errorf("getting repository %s: %w", name, err)
	}
	return resp.RepositoryMetadata, nil
}

// ListTags implements Client.
func (h *HTTPClient) ListTags(ctx context.Context, arn string) (map[string]string, error) {
	q := url.Values{}
	q.Set("resourceArn", arn)

	var resp listTagsResponse
	if err := h.get(ctx, "list_tags", q, &resp, "tags"); err != nil {
		return nil, fmt.Errorf("listing tags of %s: %w", arn, err)
	}
	if resp.Tags == nil {
		resp.Tags = map[string]string{}
	}
	return resp.Tags, nil
}

// CountBranches implements Client.
func (h *HTTPClient) CountBranches(ctx context.Context, name string) (int, error) {
	var (
		total int
		token string
	)
	for {
		q := url.Values{}
		if token != "" {
			q.Set("nextToken", token)
		}

		var page listBranchesResponse
		if err := h.get(ctx, "list_branches", q, &page, "repositories", name, "branches"); err != nil {
			return 0, fmt.Errorf("listing branches of %s: %w", name, err)
		}
		total += len(page.Branches)

		if page.NextToken == "" || page.NextToken == token {
			return total, nil
		}
		token = page.NextToken
	}
}

// GetFile implements Client.
func (h *HTTPClient) GetFile(ctx context.Context, name, path string) ([]byte, error) {
	q := url.Values{}
	q.Set("filePath", path)

	var resp getFileResponse
	err := h.get(ctx, "get_file", q, &resp, "repositories", name, "files")
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%s in %s: %w", path, name, ErrFileNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting %s from %s: %w", path, name, err)
	}

	content, err := base64.StdEncoding.DecodeString(resp.FileContent)
	if err != nil {
		return nil, fmt.Errorf("decoding %s from %s: %w", path, name, err)
	}
	return content, nil
}

// get issues a GET for the path built from elems and decodes the JSON body
// into out. Calls go through the host breaker and the retry loop.
func (h *HTTPClient) get(ctx context.Context, op string, q url.Values, out any, elems ...string) error {
	u := h.base.JoinPath(elems...)
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}

	host := u.Host
	breaker := h.breaker(host)
	if !breaker.Ready() {
		metrics.RecordBreakerRejection(host)
		h.log.Warn(ctx, "circuit breaker open", logger.String("host", host), logger.String("op", op))
		return fmt.Errorf("circuit breaker open for %s: %w", host, ErrUpstreamDown)
	}

	var result error
	err := breaker.Call(func() error {
		result = h.retry(ctx, op, u.String(), out)
		if isTransient(result) {
			return result
		}
		return nil
	}, 0)
	if errors.Is(err, circuit.ErrBreakerOpen) {
		metrics.RecordBreakerRejection(host)
		return fmt.Errorf("circuit breaker open for %s: %w", host, ErrUpstreamDown)
	}
	return result
}

// breaker returns or creates the circuit breaker for host.
func (h *HTTPClient) breaker(host string) *circuit.Breaker {
	h.mu.RLock()
	b, ok := h.breakers[host]
	h.mu.RUnlock()
	if ok {
		return b
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if b, ok := h.breakers[host]; ok {
		return b
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()

	b = circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(h.tripThreshold),
	})
	h.breakers[host] = b
	return b
}

func (h *HTTPClient) retry(ctx context.Context, op, rawURL string, out any) error {
	delays := backoff.NewExponentialBackOff()
	delays.InitialInterval = h.baseDelay
	delays.MaxElapsedTime = 0
	delays.Reset()

	var lastErr error
	for attempt := 0; attempt <= h.maxRetries; attempt++ {
		if attempt > 0 {
			metrics.RecordHostingRetry()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delays.NextBackOff()):
			}
		}

		err := h.do(ctx, op, rawURL, out)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		lastErr = err
		if !isTransient(err) {
			return err
		}
		h.log.Debug(ctx, "hosting request failed; retrying",
			logger.String("op", op), logger.Int("attempt", attempt+1), logger.Error(err))
	}
	return lastErr
}

func (h *HTTPClient) do(ctx context.Context, op, rawURL string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", h.userAgent)
	req.Header.Set("Accept", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	start := time.Now()
	resp, err := h.client.Do(req)
	latency := float64(time.Since(start).Milliseconds())
	if err != nil {
		metrics.RecordHostingRequest(op, "error", latency)
		return fmt.Errorf("%s: %v: %w", op, err, ErrUpstreamDown)
	}
	defer func() { _ = resp.Body.Close() }()
	metrics.RecordHostingRequest(op, strconv.Itoa(resp.StatusCode), latency)

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
			return fmt.Errorf("decoding %s response: %w", op, err)
		}
		return nil

	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound

	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited

	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%s: status %d: %w", op, resp.StatusCode, ErrUpstreamDown)

	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s: unexpected status %d: %s", op, resp.StatusCode, strings.TrimSpace(string(body)))
	}
}

// isTransient reports whether err is worth retrying and counts against
// the host breaker.
func isTransient(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamDown)
}
