// Package gueststore implements the guest-local slot store on SQLite.
// It holds the guest's versioned storage slots, the schema migrator's
// pre-upgrade backups, and per-checkpoint fallback copies used by
// emergency restore.
package gueststore

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/studypath/studypath-backend/internal/config"
	"github.com/studypath/studypath-backend/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// Store provides guest-local persistence backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (and bootstraps, if needed) the guest-local store.
func Open(cfg config.GuestStoreConfig) (*Store, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open guest store: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds())); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrap guest store schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

type slotRow struct {
	Slot    string `db:"slot"`
	Version int    `db:"version"`
	Payload []byte `db:"payload"`
}

// ---------------------------------------------------------------------------
// Storage slots
// ---------------------------------------------------------------------------

// ReadSlots returns all storage slots for a guest.
func (s *Store) ReadSlots(ctx context.Context, guestID string) ([]domain.SlotData, error) {
	var rows []slotRow
	err := sqlscan.Select(ctx, s.db, &rows,
		`SELECT slot, version, payload FROM storage_slots WHERE guest_id = ? ORDER BY slot`,
		guestID)
	if err != nil {
		return nil, fmt.Errorf("read slots for guest %s: %w", guestID, err)
	}

	slots := make([]domain.SlotData, len(rows))
	for i, r := range rows {
		slots[i] = domain.SlotData{Name: r.Slot, Version: r.Version, Payload: r.Payload}
	}

	return slots, nil
}

// ReadSlot returns one storage slot, or domain.ErrNotFound.
func (s *Store) ReadSlot(ctx context.Context, guestID, name string) (domain.SlotData, error) {
	var row slotRow
	err := sqlscan.Get(ctx, s.db, &row,
		`SELECT slot, version, payload FROM storage_slots WHERE guest_id = ? AND slot = ?`,
		guestID, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.SlotData{}, fmt.Errorf("slot %s for guest %s: %w", name, guestID, domain.ErrNotFound)
		}
		return domain.SlotData{}, fmt.Errorf("read slot %s for guest %s: %w", name, guestID, err)
	}

	return domain.SlotData{Name: row.Slot, Version: row.Version, Payload: row.Payload}, nil
}

// WriteSlot inserts or replaces one storage slot.
func (s *Store) WriteSlot(ctx context.Context, guestID string, slot domain.SlotData) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO storage_slots (guest_id, slot, version, payload, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (guest_id, slot) DO UPDATE SET
		   version = excluded.version,
		   payload = excluded.payload,
		   updated_at = excluded.updated_at`,
		guestID, slot.Name, slot.Version, slot.Payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("write slot %s for guest %s: %w", slot.Name, guestID, err)
	}

	return nil
}

// RestoreSlots replaces all slots of a guest with the given set, verbatim.
func (s *Store) RestoreSlots(ctx context.Context, guestID string, slots []domain.SlotData) error {
	if err := s.ClearSlots(ctx, guestID); err != nil {
		return err
	}
	for _, slot := range slots {
		if err := s.WriteSlot(ctx, guestID, slot); err != nil {
			return err
		}
	}

	return nil
}

// ClearSlots deletes all slots of a guest. Called only after a confirmed
// commit, or as the first step of a verbatim restore.
func (s *Store) ClearSlots(ctx context.Context, guestID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM storage_slots WHERE guest_id = ?`, guestID); err != nil {
		return fmt.Errorf("clear slots for guest %s: %w", guestID, err)
	}

	return nil
}

// ---------------------------------------------------------------------------
// Schema-migration backups
// ---------------------------------------------------------------------------

// BackupSlot stores the raw pre-upgrade content of a slot, replacing any
// previous backup for the same slot.
func (s *Store) BackupSlot(ctx context.Context, guestID string, slot domain.SlotData) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO slot_backups (guest_id, slot, version, payload, backed_up_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (guest_id, slot) DO UPDATE SET
		   version = excluded.version,
		   payload = excluded.payload,
		   backed_up_at = excluded.backed_up_at`,
		guestID, slot.Name, slot.Version, slot.Payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("backup slot %s for guest %s: %w", slot.Name, guestID, err)
	}

	return nil
}

// RestoreBackup copies a slot's backup back over the live slot.
func (s *Store) RestoreBackup(ctx context.Context, guestID, name string) error {
	var row slotRow
	err := sqlscan.Get(ctx, s.db, &row,
		`SELECT slot, version, payload FROM slot_backups WHERE guest_id = ? AND slot = ?`,
		guestID, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("backup of slot %s for guest %s: %w", name, guestID, domain.ErrNotFound)
		}
		return fmt.Errorf("read backup of slot %s for guest %s: %w", name, guestID, err)
	}

	return s.WriteSlot(ctx, guestID, domain.SlotData{
		Name:    row.Slot,
		Version: row.Version,
		Payload: row.Payload,
	})
}

// ---------------------------------------------------------------------------
// Checkpoint fallback copies
// ---------------------------------------------------------------------------

// SaveFallback stores a local copy of the guest snapshot keyed by
// checkpoint id. It is the last-resort source for emergency restore.
func (s *Store) SaveFallback(ctx context.Context, checkpointID uuid.UUID, guestID string, slots []domain.SlotData) error {
	payload, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("marshal fallback for checkpoint %s: %w", checkpointID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO checkpoint_fallbacks (checkpoint_id, guest_id, slots, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (checkpoint_id) DO UPDATE SET
		   guest_id = excluded.guest_id,
		   slots = excluded.slots,
		   created_at = excluded.created_at`,
		checkpointID.String(), guestID, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save fallback for checkpoint %s: %w", checkpointID, err)
	}

	return nil
}

// ReadFallback returns the fallback copy for a checkpoint.
func (s *Store) ReadFallback(ctx context.Context, checkpointID uuid.UUID) ([]domain.SlotData, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT slots FROM checkpoint_fallbacks WHERE checkpoint_id = ?`,
		checkpointID.String()).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("fallback for checkpoint %s: %w", checkpointID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("read fallback for checkpoint %s: %w", checkpointID, err)
	}

	var slots []domain.SlotData
	if err := json.Unmarshal(payload, &slots); err != nil {
		return nil, fmt.Errorf("unmarshal fallback for checkpoint %s: %w", checkpointID, err)
	}

	return slots, nil
}
