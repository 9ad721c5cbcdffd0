package domain

import (
	"time"

	"github.com/google/uuid"
)

// SlotData is the raw content of one guest-local storage slot, together
// with its declared schema version.
type SlotData struct {
	Name    string
	Version int
	Payload []byte
}

// Checkpoint is an immutable snapshot of both sides' pre-migration state,
// created once per migration attempt before any write to the account store.
type Checkpoint struct {
	ID              uuid.UUID
	GuestID         string
	AccountID       uuid.UUID
	Status          CheckpointStatus
	AccountSnapshot AccountData
	GuestSnapshot   []SlotData
	Meta            CheckpointMeta
	CreatedAt       time.Time
	CompletedAt     *time.Time
	RolledBackAt    *time.Time
}

// CheckpointMeta carries snapshot statistics for the audit trail.
type CheckpointMeta struct {
	ItemCount int
	SizeBytes int
}

// AuditRecord is one append-only entry in the migration audit log, keyed
// by checkpoint id.
type AuditRecord struct {
	ID           uuid.UUID
	CheckpointID uuid.UUID
	AccountID    uuid.UUID
	Action       AuditAction
	Detail       map[string]any
	CreatedAt    time.Time
}
