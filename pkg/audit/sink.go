// Package audit persists one append-only record per completed
// verification request. Sinks never block request completion: writes
// are buffered and records are dropped, counted, when the buffer is
// full — the verdict path always wins over the audit path.
package audit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/verdict/core/pkg/verdict"
)

// Event is the persisted form of one audit record.
type Event struct {
	ID         string    `json:"id"`
	TaskDigest string    `json:"task_digest"`
	Query      string    `json:"query"`
	Status     string    `json:"status"`
	Confidence float64   `json:"confidence"`
	Engines    []string  `json:"engines,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Sink persists audit events durably.
type Sink interface {
	Write(ctx context.Context, ev Event) error
	Close() error
}

// Recorder adapts a Sink to the orchestrator's non-blocking contract:
// Record enqueues and returns immediately, a single background worker
// drains the queue, and overflow increments a drop counter instead of
// stalling the caller.
type Recorder struct {
	sink    Sink
	queue   chan Event
	dropped atomic.Uint64
	log     *slog.Logger

	once sync.Once
	done chan struct{}
}

// NewRecorder starts the drain worker. bufferSize <= 0 defaults to 256.
func NewRecorder(sink Sink, bufferSize int, log *slog.Logger) *Recorder {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	if log == nil {
		log = slog.Default()
	}
	r := &Recorder{
		sink:  sink,
		queue: make(chan Event, bufferSize),
		log:   log,
		done:  make(chan struct{}),
	}
	go r.drain()
	return r
}

// Record implements verdict.Auditor.
func (r *Recorder) Record(_ context.Context, rec verdict.AuditRecord) {
	ev := Event{
		ID:         uuid.New().String(),
		TaskDigest: rec.TaskDigest,
		Query:      rec.Query,
		Status:     rec.Status,
		Confidence: rec.Confidence,
		Engines:    rec.Engines,
		Timestamp:  rec.Timestamp,
	}
	select {
	case r.queue <- ev:
	default:
		r.dropped.Add(1)
	}
}

// Dropped returns how many records were discarded due to backpressure.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Close flushes queued events and closes the underlying sink.
func (r *Recorder) Close() error {
	r.once.Do(func() { close(r.queue) })
	<-r.done
	return r.sink.Close()
}

func (r *Recorder) drain() {
	defer close(r.done)
	for ev := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.sink.Write(ctx, ev); err != nil {
			r.log.Error("audit write failed", "error", err, "id", ev.ID)
		}
		cancel()
	}
}

// JSONLSink writes one JSON object per line, suitable for stdout or a
// log shipper.
type JSONLSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewJSONLSink wraps a writer. The writer is not closed by Close when it
// is os.Stdout-like; callers own it.
func NewJSONLSink(w io.Writer) *JSONLSink {
	return &JSONLSink{w: w}
}

func (s *JSONLSink) Write(_ context.Context, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.w.Write(append(b, '\n'))
	return err
}

func (s *JSONLSink) Close() error {
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
