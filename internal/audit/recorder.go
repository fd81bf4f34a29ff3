package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/privebank/ledger/internal/metrics"
	"github.com/privebank/ledger/internal/models"
)

// Appender persists one entry into the chain. Appending an entry whose ID is
// already stored is a no-op.
type Appender interface {
	Append(ctx context.Context, e *models.AuditEntry) error
}

// EnqueueFunc hands an entry to a durable background writer. Provided by main
// as a closure over the River client.
type EnqueueFunc func(ctx context.Context, e *models.AuditEntry) error

const defaultWriteTimeout = 5 * time.Second

// Recorder writes audit entries without ever failing the caller. A failed
// direct write is retried through the job queue, and an entry that cannot
// be queued either is dumped to the operational log.
type Recorder struct {
	store   Appender
	enqueue EnqueueFunc
	ops     *slog.Logger
	timeout time.Duration
}

func NewRecorder(store Appender, enqueue EnqueueFunc, ops *slog.Logger, timeout time.Duration) *Recorder {
	if ops == nil {
		ops = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}
	return &Recorder{store: store, enqueue: enqueue, ops: ops, timeout: timeout}
}

// Record appends e. The request context only contributes values; its
// cancellation does not abort the write.
func (r *Recorder) Record(ctx context.Context, e *models.AuditEntry) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}
	ctx = context.WithoutCancel(ctx)

	err := r.write(ctx, e)
	if err == nil {
		return
	}
	metrics.AuditWriteFailed("direct")

	if r.enqueue != nil {
		qerr := r.withTimeout(ctx, func(ctx context.Context) error { return r.enqueue(ctx, e) })
		if qerr == nil {
			r.ops.Warn("audit entry deferred to background writer",
				"audit_id", e.ID, "action_type", e.ActionType, "error", err)
			return
		}
		metrics.AuditWriteFailed("enqueue")
		r.ops.Error("audit enqueue failed", "audit_id", e.ID, "error", qerr)
	}

	metrics.AuditDropped()
	r.ops.Error("audit entry not persisted",
		"audit_id", e.ID,
		"action_type", e.ActionType,
		"account_id", e.AccountID,
		"transaction_id", e.TransactionID,
		"success", e.Success,
		"actor_id", e.ActorID,
		"ip_address", e.IPAddress,
		"user_agent", e.UserAgent,
		"action_details", string(e.Details),
		"error_message", e.ErrorMessage,
		"created_at", e.CreatedAt,
		"error", err,
	)
}

func (r *Recorder) write(ctx context.Context, e *models.AuditEntry) error {
	return r.withTimeout(ctx, func(ctx context.Context) error { return r.store.Append(ctx, e) })
}

func (r *Recorder) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return fn(ctx)
}
