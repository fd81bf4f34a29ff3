// Package audit keeps the append-only, hash-chained audit trail of ledger
// activity: hashing, chain verification and the Recorder the ledger engine
// writes through.
package audit

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/privebank/ledger/internal/models"
)

// GenesisHash is the prev_hash of the first entry in the chain.
const GenesisHash = ""

// hashedEntry is the canonical form of an entry. Seq, PrevHash and Hash are
// assigned by storage and stay out of it.
type hashedEntry struct {
	ID            uuid.UUID          `json:"id"`
	ActionType    models.AuditAction `json:"action_type"`
	AccountID     *uuid.UUID         `json:"account_id"`
	TransactionID *uuid.UUID         `json:"transaction_id"`
	Success       bool               `json:"success"`
	ActorID       *uuid.UUID         `json:"actor_id"`
	IPAddress     string             `json:"ip_address"`
	UserAgent     string             `json:"user_agent"`
	Details       json.RawMessage    `json:"action_details"`
	ErrorMessage  *string            `json:"error_message"`
	CreatedAt     string             `json:"created_at"`
}

// CanonicalDetails normalizes a details document so that a value read back
// from jsonb hashes the same as the value written: object keys are sorted,
// insignificant whitespace is dropped and number literals are kept verbatim.
// An empty document becomes {}.
func CanonicalDetails(raw json.RawMessage) (json.RawMessage, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return json.RawMessage(`{}`), nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode details: %w", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode details: %w", err)
	}
	return out, nil
}

// ComputeHash returns hex(sha256(prevHash || canonical(e))).
func ComputeHash(prevHash string, e *models.AuditEntry) (string, error) {
	details, err := CanonicalDetails(e.Details)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(hashedEntry{
		ID:            e.ID,
		ActionType:    e.ActionType,
		AccountID:     e.AccountID,
		TransactionID: e.TransactionID,
		Success:       e.Success,
		ActorID:       e.ActorID,
		IPAddress:     e.IPAddress,
		UserAgent:     e.UserAgent,
		Details:       details,
		ErrorMessage:  e.ErrorMessage,
		CreatedAt:     e.CreatedAt.UTC().Truncate(time.Microsecond).Format(time.RFC3339Nano),
	})
	if err != nil {
		return "", err
	}
	sum := sha256.New()
	sum.Write([]byte(prevHash))
	sum.Write(body)
	return hex.EncodeToString(sum.Sum(nil)), nil
}

// ChainReader pages through the chain in seq order.
type ChainReader interface {
	ListChain(ctx context.Context, afterSeq int64, limit int) ([]*models.AuditEntry, error)
}

// VerifyResult describes the outcome of a chain walk. When Valid is false,
// BrokenSeq is the first entry that fails and Reason says why.
type VerifyResult struct {
	Valid     bool   `json:"valid"`
	Checked   int    `json:"checked"`
	BrokenSeq int64  `json:"broken_seq,omitempty"`
	BrokenID  string `json:"broken_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
	LastHash  string `json:"last_hash,omitempty"`
}

const verifyPageSize = 500

// Verify walks the whole chain from the genesis entry and stops at the first
// entry whose link or hash does not match.
func Verify(ctx context.Context, src ChainReader) (*VerifyResult, error) {
	res := &VerifyResult{Valid: true}
	prev := GenesisHash
	var after int64
	for {
		page, err := src.ListChain(ctx, after, verifyPageSize)
		if err != nil {
			return nil, fmt.Errorf("read audit chain after seq %d: %w", after, err)
		}
		for _, e := range page {
			if reason := checkLink(prev, e); reason != "" {
				res.Valid = false
				res.BrokenSeq = e.Seq
				res.BrokenID = e.ID.String()
				res.Reason = reason
				return res, nil
			}
			res.Checked++
			prev = e.Hash
			after = e.Seq
		}
		if len(page) < verifyPageSize {
			res.LastHash = prev
			return res, nil
		}
	}
}

func checkLink(prev string, e *models.AuditEntry) string {
	if e.PrevHash != prev {
		return "prev_hash does not match the preceding entry"
	}
	want, err := ComputeHash(prev, e)
	if err != nil {
		return "entry cannot be canonicalized: " + err.Error()
	}
	if want != e.Hash {
		return "hash does not match entry contents"
	}
	return ""
}
