package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/verdict/core/pkg/verdict"
)

// syncBuffer is a goroutine-safe bytes.Buffer for sink tests.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestJSONLSink_OneLinePerEvent(t *testing.T) {
	buf := &syncBuffer{}
	sink := NewJSONLSink(buf)

	for i := 0; i < 3; i++ {
		err := sink.Write(context.Background(), Event{ID: "ev", Status: "unanimous", Confidence: 0.9, Timestamp: time.Now()})
		require.NoError(t, err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	for _, line := range lines {
		var ev Event
		require.NoError(t, json.Unmarshal([]byte(line), &ev))
		assert.Equal(t, "unanimous", ev.Status)
	}
}

func TestRecorder_DeliversRecords(t *testing.T) {
	buf := &syncBuffer{}
	rec := NewRecorder(NewJSONLSink(buf), 16, nil)

	rec.Record(context.Background(), verdict.AuditRecord{
		TaskDigest: "digest",
		Status:     "single",
		Confidence: 0.8,
		Timestamp:  time.Now().UTC(),
	})
	require.NoError(t, rec.Close())

	assert.Contains(t, buf.String(), `"task_digest":"digest"`)
	assert.Zero(t, rec.Dropped())
}

// slowSink blocks writes until released, to exercise backpressure.
type slowSink struct {
	release chan struct{}
}

func (s *slowSink) Write(context.Context, Event) error {
	<-s.release
	return nil
}
func (s *slowSink) Close() error { return nil }

func TestRecorder_DropsInsteadOfBlocking(t *testing.T) {
	slow := &slowSink{release: make(chan struct{})}
	rec := NewRecorder(slow, 1, nil)

	// Saturate: one record may be in the worker's hands, one fills the
	// buffer, the rest must be dropped without blocking.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			rec.Record(context.Background(), verdict.AuditRecord{Status: "single"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record must never block the caller")
	}
	assert.Greater(t, rec.Dropped(), uint64(0))

	close(slow.release)
	require.NoError(t, rec.Close())
}

// failingSink always errors; the recorder must log and keep draining.
type failingSink struct{}

func (failingSink) Write(context.Context, Event) error { return errors.New("disk full") }
func (failingSink) Close() error                       { return nil }

func TestRecorder_SurvivesSinkErrors(t *testing.T) {
	rec := NewRecorder(failingSink{}, 4, nil)
	for i := 0; i < 4; i++ {
		rec.Record(context.Background(), verdict.AuditRecord{Status: "single"})
	}
	require.NoError(t, rec.Close())
}
