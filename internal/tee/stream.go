package tee

import (
	"fmt"
	"sync"
)

// Stream is an io.Writer that duplicates every write into the two sinks of
// its DualSink. Writes are forwarded immediately; Stream keeps no buffer.
//
// The destinations can be replaced with Rebind or Bind while the *Stream
// value held by callers stays the same. Write, Flush and the rebinding
// methods are serialised by an internal lock. A Stream must never be bound,
// directly or through another Stream, into itself.
type Stream struct {
	mu   sync.Mutex
	sink DualSink
	err  error
}

// New returns a Stream writing to a and b. Either or both may be nil; a
// Stream with no sinks accepts writes and produces no output.
func New(a, b Sink) *Stream {
	return &Stream{sink: NewDualSink(a, b)}
}

// Clone returns a new Stream bound to the same two sinks as s. The failure
// state is not copied.
func (s *Stream) Clone() *Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &Stream{sink: s.sink}
}

// Bind replaces the sinks of s with those currently bound in src.
func (s *Stream) Bind(src *Stream) {
	if s == src {
		return
	}
	src.mu.Lock()
	pair := src.sink
	src.mu.Unlock()

	s.mu.Lock()
	s.sink = pair
	s.mu.Unlock()
}

// Rebind replaces both sinks in one step. Writes that start after Rebind
// returns go only to the new pair.
func (s *Stream) Rebind(a, b Sink) {
	s.mu.Lock()
	s.sink = NewDualSink(a, b)
	s.mu.Unlock()
}

// Sinks returns the currently bound pair.
func (s *Stream) Sinks() (Sink, Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sink.Sinks()
}

func (s *Stream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.sink.Write(p)
	s.record(err)
	return n, err
}

func (s *Stream) WriteString(str string) (int, error) {
	return s.Write([]byte(str))
}

// Flush flushes both sinks. It fails if either sink fails.
func (s *Stream) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.sink.Flush()
	s.record(err)
	return err
}

// Sync is an alias for Flush.
func (s *Stream) Sync() error {
	return s.Flush()
}

func (s *Stream) Printf(format string, args ...any) (int, error) {
	return fmt.Fprintf(s, format, args...)
}

func (s *Stream) Print(args ...any) (int, error) {
	return fmt.Fprint(s, args...)
}

func (s *Stream) Println(args ...any) (int, error) {
	return fmt.Fprintln(s, args...)
}

// Err returns the first error recorded since the last Clear.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Fail reports whether a write or flush has failed since the last Clear.
func (s *Stream) Fail() bool {
	return s.Err() != nil
}

// Clear resets the failure state.
func (s *Stream) Clear() {
	s.mu.Lock()
	s.err = nil
	s.mu.Unlock()
}

func (s *Stream) record(err error) {
	if err != nil && s.err == nil {
		s.err = err
	}
}
