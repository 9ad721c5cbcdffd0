// Package schema upgrades guest-local storage slots between format
// versions before the migration pipeline reads them.
package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/studypath/studypath-backend/internal/domain"
)

// CurrentVersion is the newest guest-local storage format version.
const CurrentVersion = 3

// ---------------------------------------------------------------------------
// Consumer-defined interfaces (private)
// ---------------------------------------------------------------------------

type slotStore interface {
	ReadSlots(ctx context.Context, guestID string) ([]domain.SlotData, error)
	WriteSlot(ctx context.Context, guestID string, slot domain.SlotData) error
	BackupSlot(ctx context.Context, guestID string, slot domain.SlotData) error
	RestoreBackup(ctx context.Context, guestID, name string) error
}

// ---------------------------------------------------------------------------
// Migrator
// ---------------------------------------------------------------------------

// Migrator brings guest-local slots up to CurrentVersion.
type Migrator struct {
	store slotStore
	log   *slog.Logger
}

// NewMigrator creates a new schema migrator.
func NewMigrator(log *slog.Logger, store slotStore) *Migrator {
	return &Migrator{
		store: store,
		log:   log.With("service", "schema"),
	}
}

// MigrateAll upgrades every slot of a guest to the current format version.
// A corrupt slot is replaced with defaults and reported as a warning; an
// upgrade that fails post-verification is restored from its backup and
// reported as a warning. Neither aborts the remaining slots. The returned
// error covers store failures only.
func (m *Migrator) MigrateAll(ctx context.Context, guestID string) ([]string, error) {
	slots, err := m.store.ReadSlots(ctx, guestID)
	if err != nil {
		return nil, fmt.Errorf("read slots: %w", err)
	}

	var warnings []string
	for _, slot := range slots {
		warning, err := m.migrateSlot(ctx, guestID, slot)
		if err != nil {
			return warnings, err
		}
		if warning != "" {
			warnings = append(warnings, warning)
		}
	}

	return warnings, nil
}

func (m *Migrator) migrateSlot(ctx context.Context, guestID string, slot domain.SlotData) (string, error) {
	if slot.Version >= CurrentVersion {
		return "", nil
	}

	version := slot.Version
	if version < 1 {
		version = 1
	}

	var warning string
	doc := make(map[string]any)
	if err := json.Unmarshal(slot.Payload, &doc); err != nil || doc == nil {
		m.log.Warn("corrupt slot payload, using defaults",
			"guest_id", guestID, "slot", slot.Name, "version", slot.Version)
		doc = defaultDocument(slot.Name)
		version = 1
		warning = fmt.Sprintf("slot %q: corrupt payload replaced with defaults", slot.Name)
	}

	if err := m.store.BackupSlot(ctx, guestID, slot); err != nil {
		return "", fmt.Errorf("backup slot %s: %w", slot.Name, err)
	}

	for _, up := range upgrades {
		if up.from != version {
			continue
		}
		up.apply(slot.Name, doc)
		version = up.to
	}

	if err := verifyDocument(slot.Name, doc); err != nil {
		m.log.Error("upgraded slot failed verification, restoring backup",
			"guest_id", guestID, "slot", slot.Name, "error", err)
		if restoreErr := m.store.RestoreBackup(ctx, guestID, slot.Name); restoreErr != nil {
			return "", fmt.Errorf("restore backup of slot %s: %w", slot.Name, restoreErr)
		}
		return fmt.Sprintf("slot %q: upgrade failed verification, backup restored", slot.Name), nil
	}

	doc["schemaVersion"] = CurrentVersion
	doc["migratedAt"] = time.Now().UTC().Format(time.RFC3339)

	payload, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal upgraded slot %s: %w", slot.Name, err)
	}

	if err := m.store.WriteSlot(ctx, guestID, domain.SlotData{
		Name:    slot.Name,
		Version: CurrentVersion,
		Payload: payload,
	}); err != nil {
		return "", fmt.Errorf("write upgraded slot %s: %w", slot.Name, err)
	}

	m.log.Info("slot upgraded",
		"guest_id", guestID, "slot", slot.Name,
		"from", slot.Version, "to", CurrentVersion)

	return warning, nil
}
