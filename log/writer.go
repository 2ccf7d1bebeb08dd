package log

import (
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
)

// Writer receives every event a logger emits. Writers decide on their own
// which levels they keep.
type Writer interface {
	Write(e *Event) error
	Close()
}

// accepts reports whether an event with level l passes a writer with the
// threshold level.
func accepts(threshold, l Level) bool {
	return l != Lsilent && l <= threshold
}

type streamWriter struct {
	out       io.Writer
	threshold Level
	format    Formatter
}

func (w *streamWriter) Write(e *Event) error {
	if !accepts(w.threshold, e.Level) {
		return nil
	}

	_, err := w.out.Write(w.format.Bytes(e))

	return err
}

func (w *streamWriter) Close() {}

// NewJSONWriter writes one JSON object per line.
func NewJSONWriter(w io.Writer, level Level) Writer {
	return NewSyncWriter(&streamWriter{
		out:       w,
		threshold: level,
		format:    NewJSONFormatter(),
	})
}

// NewConsoleWriter writes key=value lines. Colors are only used if w is a terminal.
func NewConsoleWriter(w io.Writer, level Level, useColor bool) Writer {
	return NewSyncWriter(&streamWriter{
		out:       w,
		threshold: level,
		format:    NewConsoleFormatter(useColor && isTerminal(w)),
	})
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type syncWriter struct {
	lock sync.Mutex
	next Writer
}

// NewSyncWriter serializes all writes to the wrapped writer.
func NewSyncWriter(writer Writer) Writer {
	return &syncWriter{next: writer}
}

func (w *syncWriter) Write(e *Event) error {
	w.lock.Lock()
	defer w.lock.Unlock()

	return w.next.Write(e)
}

func (w *syncWriter) Close() {
	w.lock.Lock()
	defer w.lock.Unlock()

	w.next.Close()
}

type multiWriter []Writer

// NewMultiWriter hands every event to all writers in order. The first error
// stops the chain.
func NewMultiWriter(writer ...Writer) Writer {
	return multiWriter(append([]Writer{}, writer...))
}

func (w multiWriter) Write(e *Event) error {
	for _, next := range w {
		if err := next.Write(e); err != nil {
			return err
		}
	}

	return nil
}

func (w multiWriter) Close() {
	for _, next := range w {
		next.Close()
	}
}

// BufferWriter keeps the most recent events in memory.
type BufferWriter interface {
	Writer

	// Events returns copies of the kept events, oldest first.
	Events() []*Event
}

type bufferWriter struct {
	lock      sync.RWMutex
	threshold Level
	events    []*Event
	next      int
	full      bool
}

// NewBufferWriter keeps up to lines events. With lines <= 0 nothing is kept.
func NewBufferWriter(level Level, lines int) BufferWriter {
	w := &bufferWriter{
		threshold: level,
	}

	if lines > 0 {
		w.events = make([]*Event, lines)
	}

	return w
}

func (w *bufferWriter) Write(e *Event) error {
	if !accepts(w.threshold, e.Level) {
		return nil
	}

	w.lock.Lock()
	defer w.lock.Unlock()

	if len(w.events) == 0 {
		return nil
	}

	w.events[w.next] = e.clone()
	w.next = (w.next + 1) % len(w.events)

	if w.next == 0 {
		w.full = true
	}

	return nil
}

func (w *bufferWriter) Close() {
	w.lock.Lock()
	defer w.lock.Unlock()

	w.events = nil
	w.next = 0
	w.full = false
}

func (w *bufferWriter) Events() []*Event {
	w.lock.RLock()
	defer w.lock.RUnlock()

	kept := w.events[:w.next]
	if w.full {
		kept = append(append([]*Event{}, w.events[w.next:]...), kept...)
	}

	events := make([]*Event, 0, len(kept))
	for _, e := range kept {
		events = append(events, e.clone())
	}

	return events
}
