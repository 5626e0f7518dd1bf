package hosting_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/innerscore/internal/adapters/hosting"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newClient(t *testing.T, srv *httptest.Server, opts ...hosting.Option) *hosting.HTTPClient {
	t.Helper()
	opts = append([]hosting.Option{hosting.WithBaseDelay(time.Millisecond)}, opts...)
	c, err := hosting.NewHTTPClient(srv.URL, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewHTTPClientRejectsBadEndpoint(t *testing.T) {
	for _, endpoint := range []string{"", "localhost", "://nope"} {
		_, err := hosting.NewHTTPClient(endpoint)
		assert.ErrorIs(t, err, hosting.ErrInvalidEndpoint, endpoint)
	}
}

func TestListRepositoriesFollowsPagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repositories", r.URL.Path)
		assert.Equal(t, "repositoryName", r.URL.Query().Get("sortBy"))
		assert.Equal(t, "ascending", r.URL.Query().Get("order"))

		switch r.URL.Query().Get("nextToken") {
		case "":
			writeJSON(w, map[string]any{
				"repositories": []map[string]string{
					{"repositoryId": "2", "repositoryName": "beta"},
					{"repositoryId": "1", "repositoryName": "alpha"},
				},
				"nextToken": "page-2",
			})
		case "page-2":
			writeJSON(w, map[string]any{
				"repositories": []map[string]string{{"repositoryId": "3", "repositoryName": "gamma"}},
			})
		default:
			t.Errorf("unexpected token %q", r.URL.Query().Get("nextToken"))
		}
	}))
	defer srv.Close()

	repos, err := newClient(t, srv).ListRepositories(context.Background())
	require.NoError(t, err)
	require.Len(t, repos, 3)
	assert.Equal(t, "alpha", repos[0].RepositoryName)
	assert.Equal(t, "beta", repos[1].RepositoryName)
	assert.Equal(t, "gamma", repos[2].RepositoryName)
}

func TestGetRepositorySendsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer s3cret", r.Header.Get("Authorization"))
		assert.Equal(t, "/repositories/portal", r.URL.Path)
		writeJSON(w, map[string]any{
			"repositoryMetadata": map[string]any{
				"repositoryId":          "42",
				"repositoryName":        "portal",
				"Arn":                   "arn:repo:portal",
				"cloneUrlHttp":          "https://git.example.com/portal",
				"repositoryDescription": "the portal",
				"creationDate":          "2024-01-02T03:04:05Z",
				"lastModifiedDate":      "2024-06-01T00:00:00Z",
				"defaultBranch":         "main",
			},
		})
	}))
	defer srv.Close()

	md, err := newClient(t, srv, hosting.WithToken("s3cret")).GetRepository(context.Background(), "portal")
	require.NoError(t, err)
	assert.Equal(t, "42", md.RepositoryID)
	assert.Equal(t, "arn:repo:portal", md.Arn)
	require.NotNil(t, md.RepositoryDescription)
	assert.Equal(t, "the portal", *md.RepositoryDescription)
	require.NotNil(t, md.DefaultBranch)
	assert.Equal(t, "main", *md.DefaultBranch)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), md.CreationDate.UTC())
}

func TestGetRepositoryNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newClient(t, srv).GetRepository(context.Background(), "ghost")
	assert.ErrorIs(t, err, hosting.ErrNotFound)
}

func TestListTags(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tags", r.URL.Path)
		if r.URL.Query().Get("resourceArn") == "arn:repo:portal" {
			writeJSON(w, map[string]any{"tags": map[string]string{"type": "innersource"}})
			return
		}
		writeJSON(w, map[string]any{})
	}))
	defer srv.Close()

	c := newClient(t, srv)
	tags, err := c.ListTags(context.Background(), "arn:repo:portal")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"type": "innersource"}, tags)

	tags, err = c.ListTags(context.Background(), "arn:repo:other")
	require.NoError(t, err)
	assert.NotNil(t, tags)
	assert.Empty(t, tags)
}

func TestCountBranchesFollowsPagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repositories/portal/branches", r.URL.Path)
		if r.URL.Query().Get("nextToken") == "" {
			writeJSON(w, map[string]any{"branches": []string{"main", "dev"}, "nextToken": "t2"})
			return
		}
		writeJSON(w, map[string]any{"branches": []string{"feature"}})
	}))
	defer srv.Close()

	n, err := newClient(t, srv).CountBranches(context.Background(), "portal")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestGetFile(t *testing.T) {
	content := []byte(`{"title":"Portal"}`)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repositories/portal/files" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "innersource.json", r.URL.Query().Get("filePath"))
		writeJSON(w, map[string]any{
			"commitId":    "abc",
			"filePath":    "innersource.json",
			"fileContent": base64.StdEncoding.EncodeToString(content),
		})
	}))
	defer srv.Close()

	c := newClient(t, srv)

	got, err := c.GetFile(context.Background(), "portal", "innersource.json")
	require.NoError(t, err)
	assert.Equal(t, content, got)

	_, err = c.GetFile(context.Background(), "empty", "innersource.json")
	assert.ErrorIs(t, err, hosting.ErrFileNotFound)
}

func TestRetriesRateLimitedRequests(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeJSON(w, map[string]any{"tags": map[string]string{"a": "b"}})
	}))
	defer srv.Close()

	tags, err := newClient(t, srv).ListTags(context.Background(), "arn")
	require.NoError(t, err)
	assert.Equal(t, "b", tags["a"])
	assert.Equal(t, int32(2), hits.Load())
}

func TestGivesUpAfterMaxRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newClient(t, srv, hosting.WithMaxRetries(2)).CountBranches(context.Background(), "portal")
	assert.ErrorIs(t, err, hosting.ErrUpstreamDown)
	assert.Equal(t, int32(3), hits.Load())
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "bad arn", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newClient(t, srv).ListTags(context.Background(), "arn")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "unexpected status 400"))
	assert.Equal(t, int32(1), hits.Load())
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newClient(t, srv, hosting.WithMaxRetries(0), hosting.WithTripThreshold(2))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.GetRepository(ctx, "portal")
		assert.ErrorIs(t, err, hosting.ErrUpstreamDown)
	}

	_, err := c.GetRepository(ctx, "portal")
	assert.ErrorIs(t, err, hosting.ErrUpstreamDown)
	assert.Contains(t, err.Error(), "circuit breaker open")
	assert.Equal(t, int32(2), hits.Load())
}

func TestNotFoundDoesNotTripBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := newClient(t, srv, hosting.WithTripThreshold(1))
	for i := 0; i < 3; i++ {
		_, err := c.GetFile(context.Background(), "portal", "innersource.json")
		assert.ErrorIs(t, err, hosting.ErrFileNotFound)
	}
	assert.Equal(t, int32(3), hits.Load())
}

func TestCancelledContextStopsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newClient(t, srv, hosting.WithBaseDelay(time.Hour))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.ListRepositories(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
