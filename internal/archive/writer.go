package archive

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/ssefeed/internal/connection"
	"github.com/rickgao/ssefeed/internal/queue"
)

// finalFlushTimeout bounds the flush Run performs after its context ends.
const finalFlushTimeout = 10 * time.Second

// WriterConfig configures a Writer.
type WriterConfig struct {
	// BatchSize is the number of records to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration

	// BufferSize caps queued records; beyond it the oldest are dropped.
	BufferSize int
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     500,
		FlushInterval: time.Second,
		BufferSize:    10000,
	}
}

// WriterMetrics tracks writer activity.
type WriterMetrics struct {
	Received int64 // Records queued
	Inserts  int64 // Records written
	Dropped  int64 // Records dropped because the queue was full
	Errors   int64 // Failed flushes
	Flushes  int64
}

// Writer archives the messages of one Manager.
type Writer struct {
	cfg    WriterConfig
	logger *slog.Logger
	store  Store

	// Input from the subscriber callback
	input *queue.Queue[Record]

	mu          sync.Mutex
	lastSeq     uint64
	unsubscribe func()
	metrics     WriterMetrics

	// Set by Start
	cancel context.CancelFunc
	done   chan error
}

// NewWriter creates a Writer for store.
func NewWriter(cfg WriterConfig, store Store, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultWriterConfig().BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultWriterConfig().FlushInterval
	}
	return &Writer{
		cfg:    cfg,
		logger: logger.With("component", "archive"),
		store:  store,
		input:  queue.New[Record](min(cfg.BatchSize, 1024), cfg.BufferSize),
	}
}

// Attach subscribes the Writer to m. Attaching also connects m if it has no
// open stream.
func (w *Writer) Attach(m *connection.Manager) {
	url := m.URL()
	unsubscribe, _ := m.Subscribe(func(s *connection.State) {
		w.Observe(url, s)
	})

	w.mu.Lock()
	w.unsubscribe = unsubscribe
	w.mu.Unlock()
}

// Observe queues a record when s carries a message not seen yet. It is the
// subscriber callback installed by Attach; callers that already hold a
// subscription can call it directly.
func (w *Writer) Observe(url string, s *connection.State) {
	if s.LastMessage == nil {
		return
	}

	w.mu.Lock()
	if s.Seq <= w.lastSeq {
		w.mu.Unlock()
		return
	}
	w.lastSeq = s.Seq
	w.mu.Unlock()

	rec := Record{
		ID:         uuid.New(),
		ClientID:   s.ClientID,
		URL:        url,
		Seq:        s.Seq,
		ReceivedAt: time.Now().UTC(),
		Payload:    s.LastMessage,
	}
	if w.input.Push(rec) {
		w.mu.Lock()
		w.metrics.Received++
		w.mu.Unlock()
	}
}

// Run flushes queued records until ctx ends. It then detaches from the
// Manager given to Attach and writes what is left, allowing the final flush
// up to finalFlushTimeout.
func (w *Writer) Run(ctx context.Context) error {
	w.logger.Info("archive writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)

	w.flushLoop(ctx)
	w.detach()
	w.input.Close()

	finalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalFlushTimeout)
	defer cancel()
	err := w.drain(finalCtx)
	if err != nil {
		w.logger.Warn("archive final flush failed", "error", err, "pending", w.input.Len())
	}
	w.logger.Info("archive writer stopped")
	return err
}

// Start runs the writer in the background until Stop.
func (w *Writer) Start(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan error, 1)
	go func() {
		w.done <- w.Run(ctx)
	}()
	return nil
}

// Stop stops a writer started with Start and waits for its final flush.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping archive writer")

	if w.cancel == nil {
		w.detach()
		w.input.Close()
		return w.drain(ctx)
	}
	w.cancel()

	select {
	case err := <-w.done:
		return err
	case <-ctx.Done():
		w.logger.Warn("archive writer stop timed out")
		return ctx.Err()
	}
}

// detach drops the subscription made by Attach.
func (w *Writer) detach() {
	w.mu.Lock()
	unsubscribe := w.unsubscribe
	w.unsubscribe = nil
	w.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// drain flushes until the queue is empty, a flush fails or ctx ends.
func (w *Writer) drain(ctx context.Context) error {
	for w.input.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.flush(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Stats returns current metrics.
func (w *Writer) Stats() WriterMetrics {
	w.mu.Lock()
	defer w.mu.Unlock()
	m := w.metrics
	m.Dropped = w.input.Stats().Dropped
	return m
}

// flushLoop flushes on every tick and whenever a full batch is queued. A
// flush in progress when ctx ends is allowed to complete.
func (w *Writer) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()
	writeCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.flush(writeCtx)
		case <-w.input.Ready():
			for w.input.Len() >= w.cfg.BatchSize {
				if err := w.flush(writeCtx); err != nil {
					break
				}
			}
		}
	}
}

// flush writes up to one batch.
func (w *Writer) flush(ctx context.Context) error {
	batch := w.input.Drain(w.cfg.BatchSize)
	if len(batch) == 0 {
		return nil
	}

	start := time.Now()
	if err := w.store.Append(ctx, batch); err != nil {
		w.logger.Error("archive append failed", "error", err, "count", len(batch))
		w.mu.Lock()
		w.metrics.Errors++
		w.mu.Unlock()
		return err
	}

	w.mu.Lock()
	w.metrics.Inserts += int64(len(batch))
	w.metrics.Flushes++
	w.mu.Unlock()

	w.logger.Debug("flushed records",
		"count", len(batch),
		"first_seq", batch[0].Seq,
		"duration", time.Since(start),
	)
	return nil
}
