package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/privebank/ledger/internal/audit"
	"github.com/privebank/ledger/internal/models"
)

// auditChainLock is the pg_advisory_xact_lock key that serializes appends,
// so each entry links to the one committed right before it.
const auditChainLock int64 = 0x70726976_61756474

const auditColumns = `id, seq, action_type, account_id, transaction_id, success, actor_id, ip_address, user_agent, action_details, error_message, created_at, prev_hash, hash`

type AuditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

func scanAudit(row pgx.Row) (*models.AuditEntry, error) {
	var e models.AuditEntry
	var details []byte
	if err := row.Scan(&e.ID, &e.Seq, &e.ActionType, &e.AccountID, &e.TransactionID, &e.Success, &e.ActorID,
		&e.IPAddress, &e.UserAgent, &details, &e.ErrorMessage, &e.CreatedAt, &e.PrevHash, &e.Hash); err != nil {
		return nil, err
	}
	e.Details = details
	return &e, nil
}

// Append links e to the head of the chain and inserts it. An entry whose ID
// is already stored is left untouched, so a retried background write cannot
// duplicate it.
func (r *AuditRepo) Append(ctx context.Context, e *models.AuditEntry) error {
	details, err := audit.CanonicalDetails(e.Details)
	if err != nil {
		return err
	}
	e.Details = details
	e.CreatedAt = e.CreatedAt.UTC().Truncate(time.Microsecond)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, auditChainLock); err != nil {
		return fmt.Errorf("lock audit chain: %w", err)
	}

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM audit_logs WHERE id = $1)`, e.ID).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return tx.Commit(ctx)
	}

	prev := audit.GenesisHash
	err = tx.QueryRow(ctx, `SELECT hash FROM audit_logs ORDER BY seq DESC LIMIT 1`).Scan(&prev)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("read chain head: %w", err)
	}
	e.PrevHash = prev
	if e.Hash, err = audit.ComputeHash(prev, e); err != nil {
		return err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO audit_logs (id, action_type, account_id, transaction_id, success, actor_id, ip_address, user_agent, action_details, error_message, created_at, prev_hash, hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING seq
	`, e.ID, e.ActionType, e.AccountID, e.TransactionID, e.Success, e.ActorID, e.IPAddress, e.UserAgent,
		[]byte(e.Details), e.ErrorMessage, e.CreatedAt, e.PrevHash, e.Hash).Scan(&e.Seq)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// List returns matching entries newest first.
func (r *AuditRepo) List(ctx context.Context, f models.AuditFilter) ([]*models.AuditEntry, error) {
	var w whereBuilder
	if f.ActionType != nil {
		w.add("action_type = $%d", *f.ActionType)
	}
	if f.Success != nil {
		w.add("success = $%d", *f.Success)
	}
	if f.AccountID != nil {
		w.add("account_id = $%d", *f.AccountID)
	}
	if f.ActorID != nil {
		w.add("actor_id = $%d", *f.ActorID)
	}
	if f.Since != nil {
		w.add("created_at >= $%d", *f.Since)
	}
	if f.Until != nil {
		w.add("created_at < $%d", *f.Until)
	}
	q := `SELECT ` + auditColumns + ` FROM audit_logs` + w.clause() + ` ORDER BY seq DESC`
	q += w.limit(f.Limit)
	return r.query(ctx, q, w.args...)
}

// ListChain returns up to limit entries with seq greater than afterSeq, in
// chain order.
func (r *AuditRepo) ListChain(ctx context.Context, afterSeq int64, limit int) ([]*models.AuditEntry, error) {
	return r.query(ctx, `SELECT `+auditColumns+` FROM audit_logs WHERE seq > $1 ORDER BY seq LIMIT $2`, afterSeq, limit)
}

func (r *AuditRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.AuditEntry, error) {
	return scanAudit(r.pool.QueryRow(ctx, `SELECT `+auditColumns+` FROM audit_logs WHERE id = $1`, id))
}

func (r *AuditRepo) query(ctx context.Context, q string, args ...any) ([]*models.AuditEntry, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.AuditEntry
	for rows.Next() {
		e, err := scanAudit(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}
