package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type AuditAction string

const (
	AuditAccountAccess     AuditAction = "account_access"
	AuditAccountCreate     AuditAction = "account_create"
	AuditAccountActivate   AuditAction = "account_activate"
	AuditAccountDeactivate AuditAction = "account_deactivate"
	AuditDeposit           AuditAction = "deposit"
	AuditWithdraw          AuditAction = "withdraw"
	AuditTransferAttempt   AuditAction = "transfer_attempt"
	AuditTransferSuccess   AuditAction = "transfer_success"
)

var auditActions = map[AuditAction]bool{
	AuditAccountAccess: true, AuditAccountCreate: true, AuditAccountActivate: true, AuditAccountDeactivate: true,
	AuditDeposit: true, AuditWithdraw: true, AuditTransferAttempt: true, AuditTransferSuccess: true,
}

func (a AuditAction) Valid() bool { return auditActions[a] }

// AuditEntry is one append-only audit record. PrevHash and Hash are filled in
// by the audit repository when the entry joins the chain.
type AuditEntry struct {
	ID            uuid.UUID       `json:"id"`
	Seq           int64           `json:"seq"`
	ActionType    AuditAction     `json:"action_type"`
	AccountID     *uuid.UUID      `json:"account_id,omitempty"`
	TransactionID *uuid.UUID      `json:"transaction_id,omitempty"`
	Success       bool            `json:"success"`
	ActorID       *uuid.UUID      `json:"actor_id,omitempty"`
	IPAddress     string          `json:"ip_address,omitempty"`
	UserAgent     string          `json:"user_agent,omitempty"`
	Details       json.RawMessage `json:"action_details"`
	ErrorMessage  *string         `json:"error_message,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	PrevHash      string          `json:"prev_hash"`
	Hash          string          `json:"hash"`
}

type AuditFilter struct {
	ActionType *AuditAction
	Success    *bool
	AccountID  *uuid.UUID
	ActorID    *uuid.UUID
	Since      *time.Time
	Until      *time.Time
	Limit      int
}
