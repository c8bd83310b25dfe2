package tee

import "io"

// Sink is a destination that accepts writes and can be flushed.
// Sinks bound into a DualSink are borrowed: they must outlive every call
// made through it.
type Sink interface {
	io.Writer
	Flush() error
}

type flusher interface {
	Flush() error
}

type writerSink struct {
	w io.Writer
}

// AsSink adapts w to a Sink. If w already has a Flush method it is used,
// otherwise flushing is a no-op. A nil writer yields a nil Sink so the slot
// stays absent.
func AsSink(w io.Writer) Sink {
	if w == nil {
		return nil
	}
	if s, ok := w.(Sink); ok {
		return s
	}
	return &writerSink{w: w}
}

func (s *writerSink) Write(p []byte) (int, error) {
	return s.w.Write(p)
}

func (s *writerSink) Flush() error {
	if f, ok := s.w.(flusher); ok {
		return f.Flush()
	}
	return nil
}

type failingSink struct {
	err error
}

// FailingSink returns a Sink that rejects every write and flush with err.
func FailingSink(err error) Sink {
	return &failingSink{err: err}
}

func (s *failingSink) Write(p []byte) (int, error) {
	return 0, s.err
}

func (s *failingSink) Flush() error {
	return s.err
}
