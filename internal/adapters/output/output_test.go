package output

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/okian/innerscore/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() []model.Repository {
	desc := "A portal"
	return []model.Repository{
		{ID: "1", Name: "portal", Description: &desc, Score: 1044, Manifest: model.EmptyManifest()},
	}
}

func TestEncode(t *testing.T) {
	data, err := Encode(sample())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "[\n    {\n        \"id\": \"1\""))
	assert.Contains(t, string(data), `"_InnerSourceMetadata": {}`)
	assert.True(t, strings.HasSuffix(string(data), "]\n"))

	data, err = Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestFileSink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "repos.json")

	sink, err := NewFileSink(target)
	require.NoError(t, err)
	assert.Equal(t, "file", sink.Name())
	assert.Equal(t, target, sink.Path())

	require.NoError(t, sink.Write(context.Background(), "run-1", sample()))
	first, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(first), `"name": "portal"`)

	require.NoError(t, sink.Write(context.Background(), "run-2", nil))
	second, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(second))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")

	_, err = NewFileSink("  ")
	assert.ErrorIs(t, err, ErrInvalidSink)

	missing, err := NewFileSink(filepath.Join(dir, "nope", "repos.json"))
	require.NoError(t, err)
	assert.Error(t, missing.Write(context.Background(), "run", sample()))
}

type fakeObjects struct {
	mu        sync.Mutex
	exists    bool
	existsErr error
	putErr    error
	made      int
	objects   map[string]string
	types     map[string]string
}

func (f *fakeObjects) BucketExists(context.Context, string) (bool, error) {
	return f.exists, f.existsErr
}

func (f *fakeObjects) MakeBucket(context.Context, string, minio.MakeBucketOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.made++
	f.exists = true
	return nil
}

func (f *fakeObjects) PutObject(_ context.Context, bucket, key string, r io.Reader, size int64,
	opts minio.PutObjectOptions,
) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = map[string]string{}
		f.types = map[string]string{}
	}
	f.objects[bucket+"/"+key] = string(data)
	f.types[bucket+"/"+key] = opts.ContentType
	return minio.UploadInfo{Bucket: bucket, Key: key, Size: size}, nil
}

func TestS3Sink(t *testing.T) {
	fake := &fakeObjects{}
	sink, err := newS3Sink(fake, "portal", "/data/repos.json", "us-east-1", true)
	require.NoError(t, err)
	assert.Equal(t, "s3", sink.Name())

	ctx := context.Background()
	require.NoError(t, sink.Write(ctx, "run-1", sample()))
	require.NoError(t, sink.Write(ctx, "run-2", sample()))

	assert.Equal(t, 1, fake.made, "bucket is created once")
	assert.Contains(t, fake.objects, "portal/data/repos.json")
	assert.Contains(t, fake.objects, "portal/runs/run-1/repos.json")
	assert.Contains(t, fake.objects, "portal/runs/run-2/repos.json")
	assert.Equal(t, "application/json", fake.types["portal/data/repos.json"])

	want, _ := Encode(sample())
	assert.Equal(t, string(want), fake.objects["portal/data/repos.json"])
}

func TestS3SinkErrors(t *testing.T) {
	ctx := context.Background()

	_, err := newS3Sink(&fakeObjects{}, " ", "k", "", false)
	assert.ErrorIs(t, err, ErrInvalidSink)

	boom := errors.New("no route")
	flaky := &fakeObjects{existsErr: boom}
	sink, err := newS3Sink(flaky, "b", "", "", false)
	require.NoError(t, err)
	assert.ErrorIs(t, sink.Write(ctx, "run", sample()), boom)

	// A bucket check that recovers is retried on the next pass.
	flaky.existsErr = nil
	flaky.exists = true
	require.NoError(t, sink.Write(ctx, "run", sample()))
	assert.Contains(t, flaky.objects, "b/repos.json")

	denied := errors.New("access denied")
	sink, err = newS3Sink(&fakeObjects{exists: true, putErr: denied}, "b", "k", "", false)
	require.NoError(t, err)
	assert.ErrorIs(t, sink.Write(ctx, "run", sample()), denied)
}

func TestNewS3SinkValidation(t *testing.T) {
	_, err := NewS3Sink(S3Config{})
	assert.ErrorIs(t, err, ErrInvalidSink)

	_, err = NewS3Sink(S3Config{Endpoint: "localhost:9000"})
	assert.ErrorIs(t, err, ErrInvalidSink)

	sink, err := NewS3Sink(S3Config{
		Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s", Bucket: "portal",
	})
	require.NoError(t, err)
	assert.Equal(t, "repos.json", sink.key)
	assert.Equal(t, "us-east-1", sink.region)
}

type stubSink struct {
	name  string
	err   error
	calls int
}

func (s *stubSink) Name() string { return s.name }

func (s *stubSink) Write(context.Context, string, []model.Repository) error {
	s.calls++
	return s.err
}

func TestMultiSink(t *testing.T) {
	boom := errors.New("disk full")
	a := &stubSink{name: "a", err: boom}
	b := &stubSink{name: "b"}

	multi := NewMultiSink(a, nil, b)
	assert.Equal(t, 2, multi.Len())

	err := multi.Write(context.Background(), "run", sample())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "a sink")
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls, "later sinks still run after a failure")

	assert.NoError(t, NewMultiSink().Write(context.Background(), "run", nil))
}
