package output

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"teeout/internal/core/domain"
	"teeout/internal/core/ports"
	"teeout/internal/tee"
)

// ErrUnknownStream is returned for a stream name the service does not manage.
var ErrUnknownStream = errors.New("unknown stream")

type slot struct {
	stream  *tee.Stream
	console tee.Sink
	file    ports.FileSink
	path    string
}

// Service is the process-wide output context. It owns the stdout and stderr
// tee streams and the files they are mirrored into.
//
// Writes go straight to the streams and are serialised per stream; SetFile,
// Apply and Shutdown are serialised by the service.
type Service struct {
	logger ports.Logger
	opener ports.FileOpener

	mu    sync.Mutex
	slots map[domain.StreamName]*slot
}

// NewService binds the stdout and stderr streams to the given console writers.
func NewService(logger ports.Logger, opener ports.FileOpener, stdout, stderr io.Writer) *Service {
	s := &Service{
		logger: logger,
		opener: opener,
		slots:  make(map[domain.StreamName]*slot),
	}
	s.slots[domain.Stdout] = newSlot(stdout)
	s.slots[domain.Stderr] = newSlot(stderr)
	return s
}

func newSlot(console io.Writer) *slot {
	sink := tee.AsSink(console)
	return &slot{
		stream:  tee.New(sink, nil),
		console: sink,
	}
}

// Stdout returns the standard output stream. The returned value stays valid
// across retargets.
func (s *Service) Stdout() *tee.Stream {
	return s.slots[domain.Stdout].stream
}

// Stderr returns the standard error stream.
func (s *Service) Stderr() *tee.Stream {
	return s.slots[domain.Stderr].stream
}

// Stream returns the named stream.
func (s *Service) Stream(name domain.StreamName) (*tee.Stream, error) {
	sl, ok := s.slots[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStream, name)
	}
	return sl.stream, nil
}

// SetFile retargets the named stream to its console plus the file at path.
// Any file previously opened for the stream is closed first. The file is
// truncated. A successful retarget clears the stream's failure state.
//
// If the file cannot be opened the stream is still retargeted, to the
// console and a sink that fails every write and flush, and the open error
// is returned.
func (s *Service) SetFile(ctx context.Context, name domain.StreamName, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.slots[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStream, name)
	}

	s.closeFile(name, sl)

	f, err := s.opener.Create(ctx, path)
	if err != nil {
		sl.path = path
		sl.stream.Rebind(sl.console, tee.FailingSink(err))
		s.logger.Error("Failed to open output file", "stream", name, "path", path, "error", err)
		return fmt.Errorf("failed to open %s for %s: %w", path, name, err)
	}

	sl.file = f
	sl.path = path
	sl.stream.Rebind(sl.console, f)
	sl.stream.Clear()
	s.logger.Info("Stream retargeted", "stream", name, "path", path)
	return nil
}

// SetStdoutFile retargets stdout to the console plus path.
func (s *Service) SetStdoutFile(ctx context.Context, path string) error {
	return s.SetFile(ctx, domain.Stdout, path)
}

// SetStderrFile retargets stderr to the console plus path.
func (s *Service) SetStderrFile(ctx context.Context, path string) error {
	return s.SetFile(ctx, domain.Stderr, path)
}

// Apply retargets the streams named in config. Streams without a file stay
// as they are.
func (s *Service) Apply(ctx context.Context, config *domain.OutputConfig) error {
	var errs []error
	if config.StdoutFile != "" {
		if err := s.SetStdoutFile(ctx, config.ExpandPath(config.StdoutFile)); err != nil {
			errs = append(errs, err)
		}
	}
	if config.StderrFile != "" {
		if err := s.SetStderrFile(ctx, config.ExpandPath(config.StderrFile)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Flush flushes the named stream.
func (s *Service) Flush(_ context.Context, name domain.StreamName) error {
	stream, err := s.Stream(name)
	if err != nil {
		return err
	}
	if err := stream.Flush(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", name, err)
	}
	return nil
}

// Status reports the current binding of every stream, ordered by name.
// Failed stays set until the stream is cleared or successfully retargeted.
func (s *Service) Status() []domain.StreamStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]domain.StreamStatus, 0, len(s.slots))
	for name, sl := range s.slots {
		st := domain.StreamStatus{Name: name, File: sl.path}
		if err := sl.stream.Err(); err != nil {
			st.Failed = true
			st.LastError = err.Error()
		}
		statuses = append(statuses, st)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}

// Shutdown flushes every stream, closes the files the service opened and
// leaves each stream writing to its console only.
func (s *Service) Shutdown(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, name := range []domain.StreamName{domain.Stdout, domain.Stderr} {
		sl := s.slots[name]
		if err := sl.stream.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("failed to flush %s: %w", name, err))
		}
		sl.stream.Rebind(sl.console, nil)
		s.closeFile(name, sl)
		sl.path = ""
	}
	return errors.Join(errs...)
}

func (s *Service) closeFile(name domain.StreamName, sl *slot) {
	if sl.file == nil {
		return
	}
	if err := sl.file.Close(); err != nil {
		s.logger.Warn("Failed to close output file", "stream", name, "path", sl.file.Name(), "error", err)
	}
	sl.file = nil
}
