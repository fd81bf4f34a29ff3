package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/privebank/ledger/internal/ledger"
	"github.com/privebank/ledger/internal/services"
)

const maxBodyBytes = 64 << 10

type errorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, code, msg string) {
	WriteJSON(w, status, errorResponse{Error: msg, Code: code})
}

func WriteFieldErrors(w http.ResponseWriter, fields map[string]string) {
	WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Code: "validation_failed", Fields: fields})
}

// StatusFor maps a ledger error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidCurrency),
		errors.Is(err, ledger.ErrSelfTransferNotAllowed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, ledger.ErrAccountInactive),
		errors.Is(err, ledger.ErrDuplicateAccount):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, ledger.ErrSourceAccountNotFound),
		errors.Is(err, ledger.ErrRecipientNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// WriteLedgerError writes err with its mapped status. Internal failures are
// logged and answered with a generic message.
func WriteLedgerError(w http.ResponseWriter, log *slog.Logger, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		log.Error("ledger operation failed", "error", err)
		WriteError(w, status, ledger.KindOperationFailed, "operation failed")
		return
	}
	WriteError(w, status, ledger.Kind(err), err.Error())
}

// decodeBody reads a bounded JSON body, checks it against schema when one is
// given and decodes it into v. It writes the error response and returns
// false on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v *services.Validator, schema string, dst interface{}) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
			return false
		}
		WriteError(w, http.StatusBadRequest, "invalid_body", "cannot read request body")
		return false
	}
	if v != nil && schema != "" {
		if err := v.Validate(schema, body); err != nil {
			if errors.Is(err, services.ErrValidation) {
				WriteError(w, http.StatusBadRequest, "validation_failed", err.Error())
				return false
			}
			WriteError(w, http.StatusInternalServerError, "operation_failed", "operation failed")
			return false
		}
	}
	if err := json.Unmarshal(body, dst); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_json", "invalid JSON")
		return false
	}
	return true
}

// ParseTime accepts RFC 3339 timestamps or plain dates. A plain date used as
// an exclusive upper bound covers that whole day.
func ParseTime(s string, upper bool) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q", s)
	}
	if upper {
		t = t.AddDate(0, 0, 1)
	}
	return &t, nil
}

// ParseLimit returns 0 for an empty value, leaving the default to storage.
func ParseLimit(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid limit %q", s)
	}
	return n, nil
}
