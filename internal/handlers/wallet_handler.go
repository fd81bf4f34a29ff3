package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/privebank/ledger/internal/ledger"
	"github.com/privebank/ledger/internal/middleware"
	"github.com/privebank/ledger/internal/models"
	"github.com/privebank/ledger/internal/services"
)

// Ledger is the subset of the ledger engine the wallet surface needs.
type Ledger interface {
	Execute(ctx context.Context, actor models.Actor, req ledger.Request) (*models.Transaction, error)
	GetAccountByOwner(ctx context.Context, actor models.Actor, ownerID uuid.UUID) (*models.Account, error)
	ListTransactions(ctx context.Context, actor models.Actor, accountID uuid.UUID, f models.TransactionFilter) ([]*models.Transaction, error)
}

// WalletHandler serves the caller-facing /v1 wallet endpoints.
type WalletHandler struct {
	Ledger    Ledger
	Validator *services.Validator
	Logger    *slog.Logger
}

type moneyRequest struct {
	AccountID   uuid.UUID       `json:"account_id"`
	Currency    models.Currency `json:"currency"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

type transferByIdentityRequest struct {
	FromAccountID uuid.UUID       `json:"from_account_id"`
	ToOwner       string          `json:"to_owner"`
	Currency      models.Currency `json:"currency"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
}

type transferByAccountRequest struct {
	FromAccountID uuid.UUID       `json:"from_account_id"`
	ToAccountID   uuid.UUID       `json:"to_account_id"`
	Currency      models.Currency `json:"currency"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
}

// Deposit handles POST /v1/wallet/deposit.
func (h *WalletHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req moneyRequest
	if !decodeBody(w, r, h.Validator, services.SchemaDeposit, &req) {
		return
	}
	h.execute(w, r, ledger.Deposit{AccountID: req.AccountID, Currency: req.Currency, Amount: req.Amount, Description: req.Description})
}

// Withdraw handles POST /v1/wallet/withdraw.
func (h *WalletHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req moneyRequest
	if !decodeBody(w, r, h.Validator, services.SchemaWithdraw, &req) {
		return
	}
	h.execute(w, r, ledger.Withdraw{AccountID: req.AccountID, Currency: req.Currency, Amount: req.Amount, Description: req.Description})
}

// TransferByIdentity handles POST /v1/wallet/transfers/identity.
func (h *WalletHandler) TransferByIdentity(w http.ResponseWriter, r *http.Request) {
	var req transferByIdentityRequest
	if !decodeBody(w, r, h.Validator, services.SchemaTransferIdentity, &req) {
		return
	}
	h.execute(w, r, ledger.TransferByIdentity{
		FromAccountID: req.FromAccountID,
		ToOwner:       req.ToOwner,
		Currency:      req.Currency,
		Amount:        req.Amount,
		Description:   req.Description,
	})
}

// TransferByAccountID handles POST /v1/wallet/transfers/account.
func (h *WalletHandler) TransferByAccountID(w http.ResponseWriter, r *http.Request) {
	var req transferByAccountRequest
	if !decodeBody(w, r, h.Validator, services.SchemaTransferAccount, &req) {
		return
	}
	h.execute(w, r, ledger.TransferByAccountID{
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Currency:      req.Currency,
		Amount:        req.Amount,
		Description:   req.Description,
	})
}

func (h *WalletHandler) execute(w http.ResponseWriter, r *http.Request, req ledger.Request) {
	actor, ok := middleware.ActorFromCtx(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}
	txn, err := h.Ledger.Execute(r.Context(), actor, req)
	if err != nil {
		WriteLedgerError(w, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, txn)
}

// GetAccount handles GET /v1/owners/{ownerId}/account. The owner id "me"
// stands for the caller.
func (h *WalletHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromCtx(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}
	raw := r.PathValue("ownerId")
	ownerID := actor.UserID
	if raw != "me" {
		id, err := uuid.Parse(raw)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid_id", "invalid owner id")
			return
		}
		ownerID = id
	}
	acc, err := h.Ledger.GetAccountByOwner(r.Context(), actor, ownerID)
	if err != nil {
		WriteLedgerError(w, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, acc)
}

// ListTransactions handles GET /v1/accounts/{accountId}/transactions.
func (h *WalletHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromCtx(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}
	accountID, err := uuid.Parse(r.PathValue("accountId"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_id", "invalid account id")
		return
	}
	f, fieldErrs := TransactionFilterFromQuery(r)
	if fieldErrs != nil {
		WriteFieldErrors(w, fieldErrs)
		return
	}
	list, err := h.Ledger.ListTransactions(r.Context(), actor, accountID, f)
	if err != nil {
		WriteLedgerError(w, h.Logger, err)
		return
	}
	if list == nil {
		list = []*models.Transaction{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"transactions": list})
}

// TransactionFilterFromQuery reads start_date, end_date, type, currency and
// limit. The account is left for the caller to set.
func TransactionFilterFromQuery(r *http.Request) (models.TransactionFilter, map[string]string) {
	q := r.URL.Query()
	var f models.TransactionFilter
	errs := map[string]string{}

	var err error
	if f.StartDate, err = ParseTime(q.Get("start_date"), false); err != nil {
		errs["start_date"] = err.Error()
	}
	if f.EndDate, err = ParseTime(q.Get("end_date"), true); err != nil {
		errs["end_date"] = err.Error()
	}
	if s := q.Get("type"); s != "" {
		t, err := models.ParseTransactionType(s)
		if err != nil {
			errs["type"] = err.Error()
		} else {
			f.Type = &t
		}
	}
	if s := q.Get("currency"); s != "" {
		c, err := models.ParseCurrency(s)
		if err != nil {
			errs["currency"] = err.Error()
		} else {
			f.Currency = &c
		}
	}
	if f.Limit, err = ParseLimit(q.Get("limit")); err != nil {
		errs["limit"] = err.Error()
	}
	if len(errs) > 0 {
		return f, errs
	}
	return f, nil
}
