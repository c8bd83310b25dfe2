package tee

import (
	"errors"
	"io"
)

var (
	// ErrWrite reports that at least one bound sink rejected a write.
	ErrWrite = errors.New("tee: write failed")
	// ErrFlush reports that at least one bound sink failed to flush.
	ErrFlush = errors.New("tee: flush failed")
)

// DualSink forwards writes and flushes to up to two sinks. Either slot may
// be nil. The zero value is an inert DualSink that accepts everything.
//
// DualSink is a value type: copying it copies the two sink references, not
// the sinks.
type DualSink struct {
	a Sink
	b Sink
}

// NewDualSink binds a and b. Either may be nil.
func NewDualSink(a, b Sink) DualSink {
	return DualSink{a: a, b: b}
}

// Sinks returns the bound pair.
func (d DualSink) Sinks() (Sink, Sink) {
	return d.a, d.b
}

// Write forwards p to a then b. Both sinks are always attempted. An empty
// p succeeds without touching either sink.
func (d DualSink) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	ok1 := writeTo(d.a, p)
	ok2 := writeTo(d.b, p)
	if !ok1 || !ok2 {
		return 0, ErrWrite
	}
	return len(p), nil
}

// Flush flushes a then b and succeeds only if both do.
func (d DualSink) Flush() error {
	ok1 := flush(d.a)
	ok2 := flush(d.b)
	if !ok1 || !ok2 {
		return ErrFlush
	}
	return nil
}

func writeTo(s Sink, p []byte) bool {
	if s == nil {
		return true
	}
	n, err := s.Write(p)
	if err == nil && n != len(p) {
		err = io.ErrShortWrite
	}
	return err == nil
}

func flush(s Sink) bool {
	if s == nil {
		return true
	}
	return s.Flush() == nil
}
