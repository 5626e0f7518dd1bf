// Package manifest reads and caches the innersource.json file of a repository.
package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/okian/innerscore/internal/adapters/hosting"
	"github.com/okian/innerscore/internal/domain/model"
	"github.com/okian/innerscore/pkg/logger"
	"github.com/okian/innerscore/pkg/metrics"
)

const (
	// DefaultPath is the manifest file looked up in every repository.
	DefaultPath = "innersource.json"

	defaultCacheSize = 1024
)

// FileGetter is the part of hosting.Client the reader needs.
type FileGetter interface {
	GetFile(ctx context.Context, name, path string) ([]byte, error)
}

// Decode parses an innersource.json payload.
func Decode(data []byte) (*model.Manifest, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, fmt.Errorf("%w: not a JSON object", ErrInvalidManifest)
	}
	var m model.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	return &m, nil
}

// Reader fetches manifests through the hosting service. Results, including
// "no manifest", are cached per repository revision.
type Reader struct {
	files     FileGetter
	path      string
	cacheSize int
	cache     *lru.Cache[string, *model.Manifest]
	log       logger.Logger
}

// NewReader creates a Reader.
func NewReader(files FileGetter, opts ...Option) (*Reader, error) {
	r := &Reader{
		files:     files,
		path:      DefaultPath,
		cacheSize: defaultCacheSize,
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	cache, err := lru.New[string, *model.Manifest](r.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating manifest cache: %w", err)
	}
	r.cache = cache
	return r, nil
}

// Path returns the manifest file name the reader looks up.
func (r *Reader) Path() string { return r.path }

// Read returns the manifest of repo at the revision identified by
// lastModified. A repository without the file yields (nil, nil).
// The returned manifest is a copy the caller may modify.
func (r *Reader) Read(ctx context.Context, repo string, lastModified time.Time) (*model.Manifest, error) {
	key := cacheKey(repo, lastModified)
	if m, ok := r.cache.Get(key); ok {
		metrics.RecordManifestCache(true)
		return copyOf(m), nil
	}
	metrics.RecordManifestCache(false)

	data, err := r.files.GetFile(ctx, repo, r.path)
	if errors.Is(err, hosting.ErrFileNotFound) {
		metrics.RecordManifestLookup("missing")
		r.log.Info(ctx, "repository has no "+r.path+"; you may like to add one",
			logger.String("repo", repo))
		r.cache.Add(key, nil)
		return nil, nil
	}
	if err != nil {
		metrics.RecordManifestLookup("error")
		return nil, fmt.Errorf("reading %s of %s: %w", r.path, repo, err)
	}

	m, err := Decode(data)
	if err != nil {
		metrics.RecordManifestLookup("invalid")
		return nil, fmt.Errorf("%s of %s: %w", r.path, repo, err)
	}

	metrics.RecordManifestLookup("found")
	r.cache.Add(key, m)
	return copyOf(m), nil
}

// Len returns the number of cached entries.
func (r *Reader) Len() int {
	return r.cache.Len()
}

func cacheKey(repo string, lastModified time.Time) string {
	return repo + "@" + lastModified.UTC().Format(time.RFC3339Nano)
}

func copyOf(m *model.Manifest) *model.Manifest {
	if m == nil {
		return nil
	}
	c := m.Clone()
	return &c
}
