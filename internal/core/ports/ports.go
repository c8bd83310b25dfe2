package ports

import (
	"context"

	"teeout/internal/core/domain"
)

// Logger defines the interface for structured logging.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Debug(msg string, args ...any)
	With(args ...any) Logger
}

// ConfigProvider defines the interface for loading the application configuration.
type ConfigProvider interface {
	LoadConfig(ctx context.Context) (*domain.OutputConfig, error)
	SaveConfig(ctx context.Context, config *domain.OutputConfig) error
}

// FileSink is a writable file owned by whoever opened it.
type FileSink interface {
	Write(p []byte) (int, error)
	Flush() error
	Close() error
	Name() string
}

// FileOpener opens files that output streams mirror into.
type FileOpener interface {
	// Create opens path for writing, truncating any existing content.
	Create(ctx context.Context, path string) (FileSink, error)
}
