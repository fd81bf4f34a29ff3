package models

import "github.com/google/uuid"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
	// RoleSystem is for in-process callers. Tokens never carry it.
	RoleSystem = "system"
)

// Actor is the caller on whose behalf a ledger operation runs. IP and agent
// are best-effort provenance copied from the request.
type Actor struct {
	UserID    uuid.UUID
	Role      string
	IP        string
	UserAgent string
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin || a.Role == RoleSystem
}

// Owns reports whether the actor may operate on an account owned by ownerID.
func (a Actor) Owns(ownerID uuid.UUID) bool {
	return a.IsAdmin() || (a.UserID != uuid.Nil && a.UserID == ownerID)
}

func (a Actor) idPtr() *uuid.UUID {
	if a.UserID == uuid.Nil {
		return nil
	}
	id := a.UserID
	return &id
}

// AuditFields returns the provenance columns of an audit entry.
func (a Actor) AuditFields() (actorID *uuid.UUID, ip, userAgent string) {
	return a.idPtr(), a.IP, a.UserAgent
}
