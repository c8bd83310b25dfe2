package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"teeout/internal/core/ports"
)

// Opener implements the ports.FileOpener interface on the local filesystem.
type Opener struct {
	logger  ports.Logger
	perm    os.FileMode
	makeDir bool
}

// NewOpener creates a new Opener. When makeDir is set, missing parent
// directories are created before the file is opened.
func NewOpener(logger ports.Logger, makeDir bool) *Opener {
	return &Opener{
		logger:  logger,
		perm:    0644,
		makeDir: makeDir,
	}
}

// Create opens path for writing, truncating it if it exists.
func (o *Opener) Create(_ context.Context, path string) (ports.FileSink, error) {
	if o.makeDir {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, o.perm)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	o.logger.Debug("Opened output file", "path", path)
	return &File{f: f}, nil
}

// File is an unbuffered output file. Writes reach the OS immediately, so
// Flush only checks that the file is still open; it does not fsync, which
// fails on /dev/null, pipes and ttys.
type File struct {
	f *os.File
}

func (f *File) Write(p []byte) (int, error) {
	return f.f.Write(p)
}

func (f *File) Flush() error {
	_, err := f.f.Stat()
	return err
}

func (f *File) Close() error {
	return f.f.Close()
}

func (f *File) Name() string {
	return f.f.Name()
}
