package monitor

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// Sink receives each line as soon as it is emitted. Delivery is best effort:
// an error is logged and counted by the streamer and never stops the stream.
type Sink interface {
	Emit(line LogLine) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(LogLine) error

func (f SinkFunc) Emit(line LogLine) error {
	return f(line)
}

// WriterSink prints lines to a writer, typically stdout.
type WriterSink struct {
	ShowTimestamps bool

	mu sync.Mutex
	w  io.Writer
}

func NewWriterSink(w io.Writer, showTimestamps bool) *WriterSink {
	return &WriterSink{w: w, ShowTimestamps: showTimestamps}
}

func (s *WriterSink) Emit(line LogLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.ShowTimestamps {
		_, err = fmt.Fprintf(s.w, "[%s] %s  %s\n", line.Tag, line.Time.Format("2006-01-02T15:04:05.000Z07:00"), line.Text)
	} else {
		_, err = fmt.Fprintf(s.w, "%s\n", line)
	}
	return err
}

// MultiSink fans a line out to every sink. One failing sink does not keep
// the line from the others.
type MultiSink []Sink

func (m MultiSink) Emit(line LogLine) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := deliver(s, line); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sinkName(s), err))
		}
	}
	return errors.Join(errs...)
}

// deliver calls the sink and turns a panic into an error.
func deliver(s Sink, line LogLine) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
	}()
	return s.Emit(line)
}

func sinkName(s Sink) string {
	switch s.(type) {
	case *WriterSink:
		return "writer"
	case *SentrySink:
		return "sentry"
	case MultiSink:
		return "multi"
	default:
		return fmt.Sprintf("%T", s)
	}
}
