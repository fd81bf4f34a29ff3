// Package jobs holds the River job kinds the ledger runs in the background:
// deferred audit writes and periodic balance reconciliation.
package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/privebank/ledger/internal/audit"
	"github.com/privebank/ledger/internal/metrics"
	"github.com/privebank/ledger/internal/models"
)

const auditWriteMaxAttempts = 10

type AuditWriteArgs struct {
	Entry models.AuditEntry `json:"entry"`
}

func (AuditWriteArgs) Kind() string { return "audit_write" }

func (AuditWriteArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{MaxAttempts: auditWriteMaxAttempts}
}

// Inserter is the part of river.Client used to enqueue jobs.
type Inserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// AuditEnqueuer returns the audit.EnqueueFunc that hands an entry to the
// audit_write worker.
func AuditEnqueuer(client Inserter) audit.EnqueueFunc {
	return func(ctx context.Context, e *models.AuditEntry) error {
		_, err := client.Insert(ctx, AuditWriteArgs{Entry: *e}, nil)
		return err
	}
}

// AuditWriteWorker appends entries whose direct write failed. Appends are
// idempotent on the entry ID, so River may retry freely.
type AuditWriteWorker struct {
	river.WorkerDefaults[AuditWriteArgs]
	store audit.Appender
	ops   *slog.Logger
}

func NewAuditWriteWorker(store audit.Appender, ops *slog.Logger) *AuditWriteWorker {
	if ops == nil {
		ops = slog.Default()
	}
	return &AuditWriteWorker{store: store, ops: ops}
}

func (w *AuditWriteWorker) Work(ctx context.Context, job *river.Job[AuditWriteArgs]) error {
	e := job.Args.Entry
	if err := w.store.Append(ctx, &e); err != nil {
		metrics.AuditWriteFailed("worker")
		if job.Attempt >= job.MaxAttempts {
			metrics.AuditDropped()
			w.ops.Error("audit entry abandoned after final attempt",
				"audit_id", e.ID,
				"action_type", e.ActionType,
				"account_id", e.AccountID,
				"transaction_id", e.TransactionID,
				"success", e.Success,
				"actor_id", e.ActorID,
				"action_details", string(e.Details),
				"error_message", e.ErrorMessage,
				"created_at", e.CreatedAt,
				"attempt", job.Attempt,
				"error", err,
			)
		}
		return fmt.Errorf("append audit entry %s: %w", e.ID, err)
	}
	return nil
}
