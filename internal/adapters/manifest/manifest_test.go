package manifest_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/innerscore/internal/adapters/hosting"
	"github.com/okian/innerscore/internal/adapters/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFiles struct {
	mu    sync.Mutex
	files map[string][]byte
	err   error
	calls int
}

func (f *fakeFiles) GetFile(_ context.Context, name, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.files[name+"/"+path]
	if !ok {
		return nil, hosting.ErrFileNotFound
	}
	return data, nil
}

func TestDecode(t *testing.T) {
	m, err := manifest.Decode([]byte(`{"title":"Portal","contributions":["docs","code"],"score":7}`))
	require.NoError(t, err)
	assert.Equal(t, "Portal", m.Title)
	assert.Equal(t, []string{"docs", "code"}, m.Contributions)
	require.NotNil(t, m.Score)
	assert.Equal(t, 7, *m.Score)

	for _, bad := range []string{"", "   ", "[]", `"x"`, `{"title":`, `{"contributions":5}`} {
		_, err := manifest.Decode([]byte(bad))
		assert.ErrorIs(t, err, manifest.ErrInvalidManifest, bad)
	}
}

func TestReaderReadsAndCaches(t *testing.T) {
	files := &fakeFiles{files: map[string][]byte{
		"portal/innersource.json": []byte(`{"title":"Portal","language":"Go"}`),
	}}
	r, err := manifest.NewReader(files)
	require.NoError(t, err)

	rev := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	m, err := r.Read(ctx, "portal", rev)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "Go", m.Language)

	// Mutating the returned copy must not leak into the cache.
	m.Language = "Rust"

	again, err := r.Read(ctx, "portal", rev)
	require.NoError(t, err)
	assert.Equal(t, "Go", again.Language)
	assert.Equal(t, 1, files.calls)

	_, err = r.Read(ctx, "portal", rev.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, files.calls)
	assert.Equal(t, 2, r.Len())
}

func TestReaderMissingFile(t *testing.T) {
	files := &fakeFiles{files: map[string][]byte{}}
	r, err := manifest.NewReader(files, manifest.WithCacheSize(8))
	require.NoError(t, err)

	rev := time.Now()
	m, err := r.Read(context.Background(), "bare", rev)
	assert.NoError(t, err)
	assert.Nil(t, m)

	m, err = r.Read(context.Background(), "bare", rev)
	assert.NoError(t, err)
	assert.Nil(t, m)
	assert.Equal(t, 1, files.calls)
}

func TestReaderCustomPath(t *testing.T) {
	files := &fakeFiles{files: map[string][]byte{
		"portal/meta/innersource.json": []byte(`{"title":"Nested"}`),
	}}
	r, err := manifest.NewReader(files, manifest.WithPath("meta/innersource.json"))
	require.NoError(t, err)
	assert.Equal(t, "meta/innersource.json", r.Path())

	m, err := r.Read(context.Background(), "portal", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "Nested", m.Title)
}

func TestReaderErrors(t *testing.T) {
	boom := errors.New("boom")
	r, err := manifest.NewReader(&fakeFiles{err: boom})
	require.NoError(t, err)

	_, err = r.Read(context.Background(), "portal", time.Now())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, r.Len())

	bad := &fakeFiles{files: map[string][]byte{"portal/innersource.json": []byte("not json")}}
	r, err = manifest.NewReader(bad)
	require.NoError(t, err)

	_, err = r.Read(context.Background(), "portal", time.Now())
	assert.ErrorIs(t, err, manifest.ErrInvalidManifest)
}
