// Package audit records what every agent did for a session. Recording is
// best-effort: it never blocks or fails the operation being recorded.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/matthieukhl/loom/internal/models"
	"go.uber.org/zap"
)

// Recorder accepts audit entries.
type Recorder interface {
	Record(ctx context.Context, sessionID, agent, action string, metadata map[string]any)
}

// Sink persists one event.
type Sink interface {
	Append(ctx context.Context, event models.AgentEvent) error
}

const appendTimeout = 5 * time.Second

// AsyncRecorder queues events for a single background writer. When the queue
// is full new events are dropped and counted.
type AsyncRecorder struct {
	sink   Sink
	logger *zap.Logger
	queue  chan models.AgentEvent
	done   chan struct{}

	mu     sync.RWMutex
	closed bool

	// writeCtx is cancelled when Close gives up waiting.
	writeCtx    context.Context
	cancelWrite context.CancelFunc

	written atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

// NewAsyncRecorder starts the writer goroutine. Call Close to stop it.
func NewAsyncRecorder(sink Sink, queueSize int, logger *zap.Logger) *AsyncRecorder {
	if queueSize <= 0 {
		queueSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &AsyncRecorder{
		sink:        sink,
		logger:      logger,
		queue:       make(chan models.AgentEvent, queueSize),
		done:        make(chan struct{}),
		writeCtx:    ctx,
		cancelWrite: cancel,
	}
	go r.run()
	return r
}

// Record enqueues an event without blocking.
func (r *AsyncRecorder) Record(_ context.Context, sessionID, agent, action string, metadata map[string]any) {
	event, err := NewEvent(sessionID, agent, action, metadata)
	if err != nil {
		r.logger.Warn("dropping unencodable audit event", zap.String("action", action), zap.Error(err))
		r.dropped.Add(1)
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.dropped.Add(1)
		return
	}

	select {
	case r.queue <- event:
	default:
		r.dropped.Add(1)
		r.logger.Warn("audit queue full, dropping event",
			zap.String("session_id", sessionID),
			zap.String("action", action))
	}
}

func (r *AsyncRecorder) run() {
	defer close(r.done)
	for event := range r.queue {
		ctx, cancel := context.WithTimeout(r.writeCtx, appendTimeout)
		err := r.sink.Append(ctx, event)
		cancel()
		if err != nil {
			r.failed.Add(1)
			r.logger.Warn("failed to write audit event",
				zap.String("session_id", event.SessionID),
				zap.String("action", event.Action),
				zap.Error(err))
			continue
		}
		r.written.Add(1)
	}
}

// Close stops accepting events and waits for the queue to drain. If ctx ends
// first, pending writes are cancelled and Close still waits for the writer to
// exit.
func (r *AsyncRecorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	select {
	case <-r.done:
		r.cancelWrite()
		return nil
	case <-ctx.Done():
		r.cancelWrite()
		<-r.done
		return ctx.Err()
	}
}

// RecorderStats is a snapshot of the recorder counters.
type RecorderStats struct {
	Written int64 `json:"written"`
	Dropped int64 `json:"dropped"`
	Failed  int64 `json:"failed"`
	Queued  int   `json:"queued"`
}

func (r *AsyncRecorder) Stats() RecorderStats {
	return RecorderStats{
		Written: r.written.Load(),
		Dropped: r.dropped.Load(),
		Failed:  r.failed.Load(),
		Queued:  len(r.queue),
	}
}

// NewEvent builds a timestamped event with a fresh id.
func NewEvent(sessionID, agent, action string, metadata map[string]any) (models.AgentEvent, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return models.AgentEvent{}, err
	}
	return models.AgentEvent{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		AgentName: agent,
		Action:    action,
		Metadata:  raw,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Nop discards everything.
type Nop struct{}

func (Nop) Record(context.Context, string, string, string, map[string]any) {}

var (
	_ Recorder = (*AsyncRecorder)(nil)
	_ Recorder = Nop{}
)
