package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/privebank/ledger/internal/ledger"
	"github.com/privebank/ledger/internal/models"
)

type fakeAppender struct {
	err      error
	appended []models.AuditEntry
}

func (f *fakeAppender) Append(_ context.Context, e *models.AuditEntry) error {
	if f.err != nil {
		return f.err
	}
	f.appended = append(f.appended, *e)
	return nil
}

type fakeInserter struct {
	args []river.JobArgs
	err  error
}

func (f *fakeInserter) Insert(_ context.Context, args river.JobArgs, _ *river.InsertOpts) (*rivertype.JobInsertResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.args = append(f.args, args)
	return &rivertype.JobInsertResult{Job: &rivertype.JobRow{ID: int64(len(f.args))}}, nil
}

func auditJob(e models.AuditEntry, attempt int) *river.Job[AuditWriteArgs] {
	return &river.Job[AuditWriteArgs]{
		JobRow: &rivertype.JobRow{ID: 1, Attempt: attempt, MaxAttempts: auditWriteMaxAttempts},
		Args:   AuditWriteArgs{Entry: e},
	}
}

func TestAuditEnqueuer(t *testing.T) {
	ins := &fakeInserter{}
	e := &models.AuditEntry{ID: uuid.New(), ActionType: models.AuditDeposit, Success: true}

	require.NoError(t, AuditEnqueuer(ins)(context.Background(), e))
	require.Len(t, ins.args, 1)
	args, ok := ins.args[0].(AuditWriteArgs)
	require.True(t, ok)
	assert.Equal(t, e.ID, args.Entry.ID)
	assert.Equal(t, "audit_write", args.Kind())
	assert.Equal(t, auditWriteMaxAttempts, args.InsertOpts().MaxAttempts)

	ins.err = errors.New("queue down")
	assert.Error(t, AuditEnqueuer(ins)(context.Background(), e))
}

func TestAuditWriteWorker(t *testing.T) {
	e := models.AuditEntry{ID: uuid.New(), ActionType: models.AuditWithdraw, Success: true, CreatedAt: time.Now().UTC()}

	t.Run("appends", func(t *testing.T) {
		store := &fakeAppender{}
		require.NoError(t, NewAuditWriteWorker(store, nil).Work(context.Background(), auditJob(e, 1)))
		require.Len(t, store.appended, 1)
		assert.Equal(t, e.ID, store.appended[0].ID)
	})

	t.Run("returns the error so River retries", func(t *testing.T) {
		store := &fakeAppender{err: errors.New("db down")}
		err := NewAuditWriteWorker(store, nil).Work(context.Background(), auditJob(e, 1))
		require.Error(t, err)
		assert.Contains(t, err.Error(), e.ID.String())
	})

	t.Run("final attempt still reports the failure", func(t *testing.T) {
		store := &fakeAppender{err: errors.New("db down")}
		assert.Error(t, NewAuditWriteWorker(store, nil).Work(context.Background(), auditJob(e, auditWriteMaxAttempts)))
	})
}

type fakeReconciler struct {
	reports []*ledger.ReconcileReport
	err     error
}

func (f *fakeReconciler) ReconcileAll(context.Context) ([]*ledger.ReconcileReport, error) {
	return f.reports, f.err
}

func reconcileJob() *river.Job[ReconcileArgs] {
	return &river.Job[ReconcileArgs]{JobRow: &rivertype.JobRow{ID: 7, Attempt: 1, MaxAttempts: 3}}
}

func TestReconcileWorker(t *testing.T) {
	ten := decimal.NewFromInt(10)

	t.Run("consistent and drifted accounts", func(t *testing.T) {
		f := &fakeReconciler{reports: []*ledger.ReconcileReport{
			{AccountID: uuid.New(), Consistent: true},
			{AccountID: uuid.New(), Stored: models.Balances{Primary: ten}, Consistent: false},
		}}
		assert.NoError(t, NewReconcileWorker(f, nil).Work(context.Background(), reconcileJob()))
	})

	t.Run("store failure", func(t *testing.T) {
		f := &fakeReconciler{err: errors.New("snapshot failed")}
		assert.Error(t, NewReconcileWorker(f, nil).Work(context.Background(), reconcileJob()))
	})

	assert.Equal(t, "ledger_reconcile", ReconcileArgs{}.Kind())
	assert.NotNil(t, PeriodicReconcile(time.Hour))
}
