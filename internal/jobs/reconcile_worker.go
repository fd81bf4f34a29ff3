package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/riverqueue/river"

	"github.com/privebank/ledger/internal/ledger"
	"github.com/privebank/ledger/internal/metrics"
)

type ReconcileArgs struct{}

func (ReconcileArgs) Kind() string { return "ledger_reconcile" }

func (ReconcileArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{MaxAttempts: 3}
}

type Reconciler interface {
	ReconcileAll(ctx context.Context) ([]*ledger.ReconcileReport, error)
}

// ReconcileWorker replays every account's history and reports accounts whose
// stored balances disagree. It never changes a balance.
type ReconcileWorker struct {
	river.WorkerDefaults[ReconcileArgs]
	ledger Reconciler
	log    *slog.Logger
}

func NewReconcileWorker(l Reconciler, log *slog.Logger) *ReconcileWorker {
	if log == nil {
		log = slog.Default()
	}
	return &ReconcileWorker{ledger: l, log: log}
}

func (w *ReconcileWorker) Work(ctx context.Context, job *river.Job[ReconcileArgs]) error {
	start := time.Now()
	reports, err := w.ledger.ReconcileAll(ctx)

	drifted := 0
	for _, r := range reports {
		if r.Consistent {
			continue
		}
		drifted++
		w.log.Error("balance drift detected",
			"account_id", r.AccountID,
			"stored_primary", r.Stored.Primary,
			"stored_secondary", r.Stored.Secondary,
			"replayed_primary", r.Replayed.Primary,
			"replayed_secondary", r.Replayed.Secondary,
		)
	}

	if err != nil {
		metrics.ReconcileRun("error", drifted)
		return err
	}
	result := "consistent"
	if drifted > 0 {
		result = "drift"
	}
	metrics.ReconcileRun(result, drifted)
	w.log.Info("reconciliation finished",
		"accounts", len(reports), "drifted", drifted, "duration", time.Since(start), "job_id", job.ID)
	return nil
}

// PeriodicReconcile schedules ReconcileArgs every interval, starting when the
// client starts.
func PeriodicReconcile(interval time.Duration) *river.PeriodicJob {
	return river.NewPeriodicJob(
		river.PeriodicInterval(interval),
		func() (river.JobArgs, *river.InsertOpts) {
			return ReconcileArgs{}, nil
		},
		&river.PeriodicJobOpts{RunOnStart: true},
	)
}
