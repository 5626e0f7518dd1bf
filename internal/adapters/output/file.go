package output

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/okian/innerscore/internal/domain/model"
)

// FileSink writes the collection to a local file. The file is replaced
// atomically so readers never observe a partial write.
type FileSink struct {
	path string
}

var _ Sink = (*FileSink)(nil)

// NewFileSink creates a sink writing to path.
func NewFileSink(path string) (*FileSink, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: empty file path", ErrInvalidSink)
	}
	return &FileSink{path: path}, nil
}

// Name implements Sink.
func (f *FileSink) Name() string { return "file" }

// Path returns the target file.
func (f *FileSink) Path() string { return f.path }

// Write implements Sink.
func (f *FileSink) Write(ctx context.Context, _ string, records []model.Repository) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(records)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+"-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replacing %s: %w", f.path, err)
	}
	return nil
}
