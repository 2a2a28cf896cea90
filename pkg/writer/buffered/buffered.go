// Package buffered batches transactions arriving on a channel and hands each
// batch to a store's flush function.
package buffered

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ArionMiles/txnsearch/pkg/api"
)

// DefaultBatchSize is the default number of transactions to buffer before flushing.
const DefaultBatchSize = 10

// DefaultFlushInterval is the default interval between automatic flushes.
const DefaultFlushInterval = 30 * time.Second

// Flusher persists one batch.
type Flusher func(ctx context.Context, transactions []*api.TransactionDetails) error

// Config holds configuration for buffered writing.
type Config struct {
	// BatchSize is the number of transactions to buffer before flushing.
	// Defaults to DefaultBatchSize.
	BatchSize int
	// FlushInterval is the interval between automatic flushes.
	// Defaults to DefaultFlushInterval.
	FlushInterval time.Duration
}

// Writer buffers transactions and flushes them in batches.
type Writer struct {
	buffer  []*api.TransactionDetails
	mu      sync.Mutex
	flusher Flusher
	config  Config
	logger  *slog.Logger
}

var _ api.Writer = (*Writer)(nil)

// New creates a new buffered writer with the given flusher function.
func New(flusher Flusher, cfg Config, logger *slog.Logger) *Writer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Writer{
		buffer:  make([]*api.TransactionDetails, 0, cfg.BatchSize),
		flusher: flusher,
		config:  cfg,
		logger:  logger,
	}
}

// Write consumes transactions until the input channel is closed or ctx is
// done. The message ID of every flushed transaction that has one is sent to
// ackChan, which may be nil.
func (w *Writer) Write(ctx context.Context, in <-chan *api.TransactionDetails, ackChan chan<- string) error {
	ticker := time.NewTicker(w.config.FlushInterval)
	defer ticker.Stop()

	w.logger.Debug("buffered writer started",
		"batch_size", w.config.BatchSize,
		"flush_interval", w.config.FlushInterval,
	)

	for {
		select {
		case <-ctx.Done():
			return w.handleShutdown(ctx)
		case <-ticker.C:
			if err := w.flush(ctx, ackChan); err != nil {
				w.logger.Error("failed to flush on interval", "error", err)
			}
		case transaction, ok := <-in:
			if !ok {
				w.logger.Debug("input channel closed, flushing remaining buffer")
				return w.flush(ctx, ackChan)
			}
			if err := w.add(ctx, transaction, ackChan); err != nil {
				return err
			}
		}
	}
}

// handleShutdown flushes what is left with a fresh context, since ctx is
// already done.
func (w *Writer) handleShutdown(ctx context.Context) error {
	w.logger.Info("buffered writer stopping, flushing remaining buffer")
	if err := w.flush(context.WithoutCancel(ctx), nil); err != nil {
		w.logger.Error("failed to flush on shutdown", "error", err)
		return errors.Join(ctx.Err(), err)
	}
	return ctx.Err()
}

func (w *Writer) add(ctx context.Context, transaction *api.TransactionDetails, ackChan chan<- string) error {
	w.mu.Lock()
	w.buffer = append(w.buffer, transaction)
	shouldFlush := len(w.buffer) >= w.config.BatchSize
	w.mu.Unlock()

	if !shouldFlush {
		return nil
	}
	if err := w.flush(ctx, ackChan); err != nil {
		w.logger.Error("failed to flush on batch size", "error", err)
		return err
	}
	return nil
}

// flush writes all buffered transactions using the flusher function. A
// failed batch is put back at the front of the buffer so the next flush
// retries it; flushers must therefore tolerate seeing a batch twice.
func (w *Writer) flush(ctx context.Context, ackChan chan<- string) error {
	w.mu.Lock()
	if len(w.buffer) == 0 {
		w.mu.Unlock()
		return nil
	}

	toFlush := make([]*api.TransactionDetails, len(w.buffer))
	copy(toFlush, w.buffer)
	w.buffer = w.buffer[:0]
	w.mu.Unlock()

	w.logger.Debug("flushing buffer", "count", len(toFlush))

	if err := w.flusher(ctx, toFlush); err != nil {
		w.mu.Lock()
		w.buffer = append(toFlush, w.buffer...)
		pending := len(w.buffer)
		w.mu.Unlock()
		w.logger.Warn("flush failed, batch kept for retry", "count", len(toFlush), "pending", pending)
		return err
	}

	if ackChan != nil {
		for _, txn := range toFlush {
			if txn.MessageID == "" {
				continue
			}
			select {
			case ackChan <- txn.MessageID:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	w.logger.Info("flushed transactions", "count", len(toFlush))
	return nil
}

// BufferLen returns the current number of buffered transactions.
func (w *Writer) BufferLen() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buffer)
}
