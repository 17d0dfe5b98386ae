// Package logger implements the build event sink on top of log/slog.
//
// Events are queued on a channel and drained by a single goroutine, so
// emitting never blocks the build on console I/O and per-producer ordering
// is preserved.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/dustin/go-humanize"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
)

const queueDepth = 256

// Sink implements ports.EventSink.
type Sink struct {
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	ch     chan domain.LogEvent
	done   chan struct{}
}

var _ ports.EventSink = (*Sink)(nil)

// New creates a sink writing human-readable text to stderr.
func New() *Sink {
	return NewWithWriter(os.Stderr, slog.LevelInfo)
}

// NewWithWriter creates a sink writing to w at the given level.
func NewWithWriter(w io.Writer, level slog.Level) *Sink {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	s := &Sink{
		logger: slog.New(handler),
		ch:     make(chan domain.LogEvent, queueDepth),
		done:   make(chan struct{}),
	}
	go s.drain()
	return s
}

// Emit queues one event. It blocks only when the queue is full, which keeps
// ordering intact without unbounded buffering.
func (s *Sink) Emit(ev domain.LogEvent) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.ch <- ev
	s.mu.Unlock()
}

// Close flushes queued events and stops the drain goroutine.
func (s *Sink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()
	<-s.done
	return nil
}

func (s *Sink) drain() {
	defer close(s.done)
	for ev := range s.ch {
		s.write(ev)
	}
}

func (s *Sink) write(ev domain.LogEvent) {
	msg := ev.Message
	if msg == "" {
		msg = string(ev.Kind)
	}

	attrs := make([]any, 0, 8)
	attrs = append(attrs, "kind", string(ev.Kind))
	if ev.Item != "" {
		attrs = append(attrs, "item", ev.Item, "index", ev.Index)
	}
	if ev.Stage != "" {
		attrs = append(attrs, "stage", ev.Stage)
	}
	if ev.Elapsed > 0 {
		attrs = append(attrs, "elapsed", ev.Elapsed.String())
	}
	if ev.Size > 0 {
		attrs = append(attrs, "size", humanize.Bytes(uint64(ev.Size)))
	}
	if ev.Cancelled {
		attrs = append(attrs, "cancelled", true)
	}
	if ev.Err != nil {
		attrs = append(attrs, "error", ev.Err.Error())
	}

	s.logger.Log(context.Background(), slog.Level(ev.Level), msg, attrs...)
}
