package migration

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/studypath/studypath-backend/internal/domain"
)

// createCheckpoint snapshots both sides' pre-migration state and persists
// it durably (primary store plus a guest-local fallback copy) before any
// write to the account store. Nothing has been written yet when this fails,
// so the caller aborts without rollback.
func (s *Service) createCheckpoint(ctx context.Context, guestID string, accountID uuid.UUID, existing domain.AccountData) (domain.Checkpoint, error) {
	slotCtx, cancel := s.withTimeout(ctx)
	slots, err := s.guest.ReadSlots(slotCtx, guestID)
	cancel()
	if err != nil {
		return domain.Checkpoint{}, &domain.CheckpointError{Op: "snapshot guest slots", Err: err}
	}

	cp := domain.Checkpoint{
		ID:              uuid.New(),
		GuestID:         guestID,
		AccountID:       accountID,
		Status:          domain.CheckpointStatusActive,
		AccountSnapshot: existing,
		GuestSnapshot:   slots,
		CreatedAt:       s.now(),
	}
	cp.Meta = checkpointMeta(cp)

	createCtx, cancel := s.withTimeout(ctx)
	err = s.checkpoints.Create(createCtx, cp)
	cancel()
	if err != nil {
		return domain.Checkpoint{}, &domain.CheckpointError{Op: "persist", Err: err}
	}

	fallbackCtx, cancel := s.withTimeout(ctx)
	err = s.guest.SaveFallback(fallbackCtx, cp.ID, guestID, slots)
	cancel()
	if err != nil {
		return domain.Checkpoint{}, &domain.CheckpointError{Op: "save fallback copy", Err: err}
	}

	s.auditLog(ctx, domain.AuditRecord{
		CheckpointID: cp.ID,
		AccountID:    accountID,
		Action:       domain.AuditActionCheckpointCreated,
		Detail: map[string]any{
			"item_count":  cp.Meta.ItemCount,
			"size_bytes":  cp.Meta.SizeBytes,
			"guest_slots": len(slots),
		},
	})

	return cp, nil
}

func checkpointMeta(cp domain.Checkpoint) domain.CheckpointMeta {
	size := 0
	if encoded, err := json.Marshal(cp.AccountSnapshot); err == nil {
		size += len(encoded)
	}
	for _, slot := range cp.GuestSnapshot {
		size += len(slot.Payload)
	}

	return domain.CheckpointMeta{
		ItemCount: cp.AccountSnapshot.ItemCount(),
		SizeBytes: size,
	}
}

// ConfirmCheckpoint marks a checkpoint completed and clears the guest-local
// slots, transferring ownership to the account. Confirming an
// already-completed checkpoint is a no-op and does not touch either store.
func (s *Service) ConfirmCheckpoint(ctx context.Context, id uuid.UUID) error {
	getCtx, cancel := s.withTimeout(ctx)
	cp, err := s.checkpoints.GetByID(getCtx, id)
	cancel()
	if err != nil {
		return &domain.CheckpointError{Op: "confirm", Err: err}
	}

	if cp.Status == domain.CheckpointStatusCompleted {
		return nil
	}
	if cp.Status != domain.CheckpointStatusActive {
		return &domain.CheckpointError{
			Op:  "confirm",
			Err: fmt.Errorf("checkpoint %s is %s, not active", id, cp.Status),
		}
	}

	markCtx, cancel := s.withTimeout(ctx)
	rows, err := s.checkpoints.MarkCompleted(markCtx, id, s.now())
	cancel()
	if err != nil {
		return &domain.CheckpointError{Op: "confirm", Err: err}
	}
	if rows == 0 {
		// Lost a race with another confirm; the store was not touched.
		return nil
	}

	s.auditLog(ctx, domain.AuditRecord{
		CheckpointID: cp.ID,
		AccountID:    cp.AccountID,
		Action:       domain.AuditActionCheckpointDone,
		Detail:       map[string]any{"guest_id": cp.GuestID},
	})

	clearCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.guest.ClearSlots(clearCtx, cp.GuestID); err != nil {
		// The migration itself succeeded; stale guest slots are cleaned up
		// on the next visit.
		s.log.Warn("failed to clear guest slots after confirm",
			"guest_id", cp.GuestID, "checkpoint_id", cp.ID, "error", err)
	}

	return nil
}

// auditLog appends an audit record, logging instead of failing when the
// sink is unavailable.
func (s *Service) auditLog(ctx context.Context, record domain.AuditRecord) {
	logCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.audit.Log(logCtx, record); err != nil {
		s.log.Warn("audit log write failed",
			"action", record.Action, "checkpoint_id", record.CheckpointID, "error", err)
	}
}
