// Package eventlog records server lifecycle events (connections, room
// changes) to append-only sinks. It does not store chat text.
package eventlog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Sink receives one event line at a time. Implementations must be safe for
// concurrent use.
type Sink interface {
	Write(ts time.Time, text string) error
}

type discard struct{}

func (discard) Write(time.Time, string) error { return nil }

// Discard drops every event.
var Discard Sink = discard{}

// FileNameLayout names the per-run journal file after the server start time.
const FileNameLayout = "2006-01-02 15-04-05"

// FileSink writes JSON lines to a single file.
type FileSink struct {
	mu     sync.Mutex
	out    *errWriter
	file   *os.File
	logger zerolog.Logger
}

// OpenFile creates dir if needed and opens a new journal file named after
// startedAt.
func OpenFile(dir string, startedAt time.Time) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("eventlog: cannot create directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, startedAt.Format(FileNameLayout)+".log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("eventlog: cannot open %s: %w", path, err)
	}
	sink := NewWriterSink(f)
	sink.file = f
	return sink, nil
}

// NewWriterSink journals to an arbitrary writer.
func NewWriterSink(w io.Writer) *FileSink {
	out := &errWriter{w: w}
	return &FileSink{
		out:    out,
		logger: zerolog.New(out),
	}
}

func (s *FileSink) Write(ts time.Time, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.out.err = nil
	s.logger.Log().Time(zerolog.TimestampFieldName, ts).Msg(text)
	return s.out.err
}

// Path returns the journal file path, or "" for writer-backed sinks.
func (s *FileSink) Path() string {
	if s.file == nil {
		return ""
	}
	return s.file.Name()
}

func (s *FileSink) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}

// errWriter remembers the last write error, which zerolog otherwise swallows.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	n, err := e.w.Write(p)
	if err != nil {
		e.err = err
	}
	return n, err
}

type multi []Sink

// Multi fans each event out to every sink and joins their errors.
func Multi(sinks ...Sink) Sink {
	var m multi
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}
	return m
}

func (m multi) Write(ts time.Time, text string) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ts, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
