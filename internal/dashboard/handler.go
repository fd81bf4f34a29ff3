package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/privebank/ledger/internal/audit"
	"github.com/privebank/ledger/internal/auth"
	"github.com/privebank/ledger/internal/handlers"
	"github.com/privebank/ledger/internal/ledger"
	"github.com/privebank/ledger/internal/middleware"
	"github.com/privebank/ledger/internal/models"
	"github.com/privebank/ledger/internal/services"
)

// AccountAdmin is the audited administrative part of the ledger engine.
type AccountAdmin interface {
	CreateAccount(ctx context.Context, actor models.Actor, ownerID uuid.UUID, initial models.Balances) (*models.Account, error)
	SetAccountActive(ctx context.Context, actor models.Actor, accountID uuid.UUID, active bool) (*models.Account, error)
}

// LedgerReader is the read side of the ledger store.
type LedgerReader interface {
	ListAccounts(ctx context.Context, f models.AccountFilter) ([]*models.Account, error)
	ListTransactions(ctx context.Context, f models.TransactionFilter) ([]*models.Transaction, error)
	Reconcile(ctx context.Context, id uuid.UUID) (*ledger.ReconcileReport, error)
}

type AuditLog interface {
	audit.ChainReader
	List(ctx context.Context, f models.AuditFilter) ([]*models.AuditEntry, error)
}

type Directory interface {
	GetUser(ctx context.Context, id uuid.UUID) (*auth.User, error)
}

// Handler serves the /api/v1/admin endpoints. Every route sits behind
// middleware.RequireAdmin.
type Handler struct {
	admin     AccountAdmin
	reader    LedgerReader
	auditLog  AuditLog
	users     Directory
	validator *services.Validator
	log       *slog.Logger
}

func NewHandler(admin AccountAdmin, reader LedgerReader, auditLog AuditLog, users Directory, validator *services.Validator, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{admin: admin, reader: reader, auditLog: auditLog, users: users, validator: validator, log: log}
}

func actorFrom(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	actor, ok := middleware.ActorFromCtx(r.Context())
	if !ok {
		handlers.WriteError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
	}
	return actor, ok
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.WriteError(w, http.StatusBadRequest, "invalid_id", "invalid account id")
		return uuid.Nil, false
	}
	return id, true
}

// GET /api/v1/admin/accounts?owner_id&active&limit
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f models.AccountFilter
	errs := map[string]string{}
	if s := q.Get("owner_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			errs["owner_id"] = "invalid identifier"
		} else {
			f.OwnerID = &id
		}
	}
	if s := q.Get("active"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			errs["active"] = "must be true or false"
		} else {
			f.Active = &b
		}
	}
	var err error
	if f.Limit, err = handlers.ParseLimit(q.Get("limit")); err != nil {
		errs["limit"] = err.Error()
	}
	if len(errs) > 0 {
		handlers.WriteFieldErrors(w, errs)
		return
	}

	list, err := h.reader.ListAccounts(r.Context(), f)
	if err != nil {
		handlers.WriteLedgerError(w, h.log, err)
		return
	}
	if list == nil {
		list = []*models.Account{}
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]any{"accounts": list})
}

type createAccountRequest struct {
	OwnerID          uuid.UUID        `json:"owner_id"`
	InitialPrimary   *decimal.Decimal `json:"initial_primary"`
	InitialSecondary *decimal.Decimal `json:"initial_secondary"`
}

// POST /api/v1/admin/accounts
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 16<<10))
	if err != nil {
		handlers.WriteError(w, http.StatusBadRequest, "invalid_body", "cannot read request body")
		return
	}
	if err := h.validator.Validate(services.SchemaCreateAccount, body); err != nil {
		if errors.Is(err, services.ErrValidation) {
			handlers.WriteError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		h.log.Error("validate create account", "error", err)
		handlers.WriteError(w, http.StatusInternalServerError, ledger.KindOperationFailed, "operation failed")
		return
	}
	var req createAccountRequest
	if err := json.Unmarshal(body, &req); err != nil {
		handlers.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid JSON")
		return
	}

	owner, err := h.users.GetUser(r.Context(), req.OwnerID)
	if err != nil {
		h.log.Error("lookup owner", "error", err, "owner_id", req.OwnerID)
		handlers.WriteError(w, http.StatusInternalServerError, ledger.KindOperationFailed, "operation failed")
		return
	}
	if owner == nil {
		handlers.WriteError(w, http.StatusNotFound, "owner_not_found", "owner not found")
		return
	}

	var initial models.Balances
	if req.InitialPrimary != nil {
		initial.Primary = *req.InitialPrimary
	}
	if req.InitialSecondary != nil {
		initial.Secondary = *req.InitialSecondary
	}
	acc, err := h.admin.CreateAccount(r.Context(), actor, owner.ID, initial)
	if err != nil {
		handlers.WriteLedgerError(w, h.log, err)
		return
	}
	handlers.WriteJSON(w, http.StatusCreated, acc)
}

// POST /api/v1/admin/accounts/{id}/activate
func (h *Handler) ActivateAccount(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

// POST /api/v1/admin/accounts/{id}/deactivate
func (h *Handler) DeactivateAccount(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	acc, err := h.admin.SetAccountActive(r.Context(), actor, id, active)
	if err != nil {
		handlers.WriteLedgerError(w, h.log, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, acc)
}

// GET /api/v1/admin/accounts/{id}/reconcile
func (h *Handler) ReconcileAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	report, err := h.reader.Reconcile(r.Context(), id)
	if err != nil {
		handlers.WriteLedgerError(w, h.log, err)
		return
	}
	if !report.Consistent {
		h.log.Warn("balance drift detected", "account_id", id,
			"stored", report.Stored, "replayed", report.Replayed)
	}
	handlers.WriteJSON(w, http.StatusOK, report)
}

// GET /api/v1/admin/transactions?account_id&start_date&end_date&type&currency&limit
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	f, errs := handlers.TransactionFilterFromQuery(r)
	if s := r.URL.Query().Get("account_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			if errs == nil {
				errs = map[string]string{}
			}
			errs["account_id"] = "invalid identifier"
		} else {
			f.AccountID = &id
		}
	}
	if errs != nil {
		handlers.WriteFieldErrors(w, errs)
		return
	}
	list, err := h.reader.ListTransactions(r.Context(), f)
	if err != nil {
		handlers.WriteLedgerError(w, h.log, err)
		return
	}
	if list == nil {
		list = []*models.Transaction{}
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]any{"transactions": list})
}

// GET /api/v1/admin/audit-logs?action_type&success&account_id&actor_id&since&until&limit
func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f models.AuditFilter
	errs := map[string]string{}

	if s := q.Get("action_type"); s != "" {
		a := models.AuditAction(s)
		if !a.Valid() {
			errs["action_type"] = "unknown action type"
		} else {
			f.ActionType = &a
		}
	}
	if s := q.Get("success"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			errs["success"] = "must be true or false"
		} else {
			f.Success = &b
		}
	}
	for key, dst := range map[string]**uuid.UUID{"account_id": &f.AccountID, "actor_id": &f.ActorID} {
		if s := q.Get(key); s != "" {
			id, err := uuid.Parse(s)
			if err != nil {
				errs[key] = "invalid identifier"
				continue
			}
			*dst = &id
		}
	}
	var err error
	if f.Since, err = handlers.ParseTime(q.Get("since"), false); err != nil {
		errs["since"] = err.Error()
	}
	if f.Until, err = handlers.ParseTime(q.Get("until"), true); err != nil {
		errs["until"] = err.Error()
	}
	if f.Limit, err = handlers.ParseLimit(q.Get("limit")); err != nil {
		errs["limit"] = err.Error()
	}
	if len(errs) > 0 {
		handlers.WriteFieldErrors(w, errs)
		return
	}

	list, err := h.auditLog.List(r.Context(), f)
	if err != nil {
		h.log.Error("list audit logs", "error", err)
		handlers.WriteError(w, http.StatusInternalServerError, ledger.KindOperationFailed, "operation failed")
		return
	}
	if list == nil {
		list = []*models.AuditEntry{}
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]any{"audit_logs": list})
}

// GET /api/v1/admin/audit-logs/verify
func (h *Handler) VerifyAuditChain(w http.ResponseWriter, r *http.Request) {
	res, err := audit.Verify(r.Context(), h.auditLog)
	if err != nil {
		h.log.Error("verify audit chain", "error", err)
		handlers.WriteError(w, http.StatusInternalServerError, ledger.KindOperationFailed, "operation failed")
		return
	}
	if !res.Valid {
		h.log.Error("audit chain broken", "seq", res.BrokenSeq, "audit_id", res.BrokenID, "reason", res.Reason)
	}
	handlers.WriteJSON(w, http.StatusOK, res)
}
