package businessflow

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/marcel-gle/gb-qr-tracker/repository"
	"github.com/marcel-gle/gb-qr-tracker/utils"
)

// batchOp is one queued store mutation. weight counts the underlying store
// operations so the flush threshold tracks real write volume, not queue
// length.
type batchOp struct {
	weight int
	fn     func(ctx context.Context) error
}

// BatchWriter accumulates store mutations and commits them in bounded
// transactions. Explicit state passed by reference, never package globals, so
// two runs in one process cannot leak counters into each other.
type BatchWriter struct {
	db      *gorm.DB
	maxOps  int
	queue   []batchOp
	ops     int
	commits int
}

func NewBatchWriter(db *gorm.DB, maxOps int) *BatchWriter {
	if maxOps <= 0 {
		maxOps = utils.MaxBatchOps
	}
	return &BatchWriter{db: db, maxOps: maxOps}
}

// Queue adds a mutation with the given operation weight. When the mutation
// would push the pending weight past the ceiling, the queue is committed
// first, so no single transaction ever carries more than maxOps operations.
func (w *BatchWriter) Queue(ctx context.Context, weight int, fn func(ctx context.Context) error) error {
	if w.ops+weight > w.maxOps {
		if err := w.Flush(ctx); err != nil {
			return err
		}
	}
	w.queue = append(w.queue, batchOp{weight: weight, fn: fn})
	w.ops += weight
	return nil
}

// Flush commits every queued mutation in one transaction. A no-op on an empty
// queue.
func (w *BatchWriter) Flush(ctx context.Context) error {
	if len(w.queue) == 0 {
		return nil
	}
	queue := w.queue
	w.queue = nil
	w.ops = 0

	err := repository.WithTransaction(ctx, w.db, func(txCtx context.Context) error {
		for _, op := range queue {
			if err := op.fn(txCtx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("batch commit failed: %w", err)
	}
	w.commits++
	return nil
}

// Commits reports how many transactions have been committed so far.
func (w *BatchWriter) Commits() int {
	return w.commits
}

// PendingOps reports the operation weight currently queued.
func (w *BatchWriter) PendingOps() int {
	return w.ops
}

// CreateWithRetry runs create and, when it fails with ErrLinkExists, asks
// nextCandidate for a fresh id and tries again, up to maxAttempts total
// attempts. Returns the id that finally stuck. A collision on the last
// attempt surfaces as ErrLinkIDTaken; retrying further under heavy contention
// would not converge.
func CreateWithRetry(ctx context.Context, id string, maxAttempts int,
	create func(ctx context.Context, id string) error,
	nextCandidate func(ctx context.Context) (string, error),
) (string, error) {
	for attempt := 1; ; attempt++ {
		err := create(ctx, id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, repository.ErrLinkExists) {
			return "", err
		}
		if attempt >= maxAttempts {
			return "", fmt.Errorf("id %s: %w", id, ErrLinkIDTaken)
		}
		id, err = nextCandidate(ctx)
		if err != nil {
			return "", err
		}
	}
}
