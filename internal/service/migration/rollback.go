package migration

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/studypath/studypath-backend/internal/domain"
)

// rollbackStep is one unit of the restore sequence. Steps run in reverse
// dependency order; a failed step is recorded and the sequence continues.
type rollbackStep struct {
	name string
	run  func(ctx context.Context) error
}

// rollback restores the pre-migration snapshot after a failure. It deletes
// everything currently stored for the account, re-inserts the snapshot, and
// restores the guest-local slots verbatim. If any step fails it proceeds
// with the rest, then attempts an emergency restore of the guest slots from
// the local fallback copy. Rollback is never retried automatically.
func (s *Service) rollback(ctx context.Context, cp domain.Checkpoint, reason string) (int, error) {
	s.log.Warn("rolling back migration",
		"checkpoint_id", cp.ID, "account_id", cp.AccountID, "reason", reason)

	s.auditLog(ctx, domain.AuditRecord{
		CheckpointID: cp.ID,
		AccountID:    cp.AccountID,
		Action:       domain.AuditActionRollbackStarted,
		Detail:       map[string]any{"reason": reason},
	})

	steps := []rollbackStep{
		{"delete_flashcards", func(ctx context.Context) error {
			return s.deleteAllFlashcards(ctx, cp.AccountID)
		}},
		{"delete_curricula", func(ctx context.Context) error {
			return s.deleteAllCurricula(ctx, cp.AccountID)
		}},
		{"delete_progress", func(ctx context.Context) error {
			return s.progress.Delete(ctx, cp.AccountID)
		}},
		{"delete_preferences", func(ctx context.Context) error {
			return s.preferences.Delete(ctx, cp.AccountID)
		}},
		{"restore_curricula", func(ctx context.Context) error {
			if len(cp.AccountSnapshot.Curricula) == 0 {
				return nil
			}
			return s.curricula.BatchInsert(ctx, cp.AccountSnapshot.Curricula)
		}},
		{"restore_flashcards", func(ctx context.Context) error {
			if len(cp.AccountSnapshot.Flashcards) == 0 {
				return nil
			}
			return s.flashcards.BatchInsert(ctx, cp.AccountSnapshot.Flashcards)
		}},
		{"restore_progress", func(ctx context.Context) error {
			if cp.AccountSnapshot.Progress == nil {
				return nil
			}
			return s.progress.Upsert(ctx, *cp.AccountSnapshot.Progress)
		}},
		{"restore_preferences", func(ctx context.Context) error {
			if cp.AccountSnapshot.Preferences == nil {
				return nil
			}
			return s.preferences.Upsert(ctx, *cp.AccountSnapshot.Preferences)
		}},
		{"restore_guest_slots", func(ctx context.Context) error {
			return s.guest.RestoreSlots(ctx, cp.GuestID, cp.GuestSnapshot)
		}},
	}

	var (
		failedSteps []string
		stepErrs    []error
	)
	for _, step := range steps {
		stepCtx, cancel := s.withTimeout(ctx)
		err := step.run(stepCtx)
		cancel()

		detail := map[string]any{"step": step.name, "ok": err == nil}
		if err != nil {
			detail["error"] = err.Error()
			failedSteps = append(failedSteps, step.name)
			stepErrs = append(stepErrs, fmt.Errorf("%s: %w", step.name, err))
			s.log.Error("rollback step failed",
				"checkpoint_id", cp.ID, "step", step.name, "error", err)
		}
		s.auditLog(ctx, domain.AuditRecord{
			CheckpointID: cp.ID,
			AccountID:    cp.AccountID,
			Action:       domain.AuditActionRollbackStep,
			Detail:       detail,
		})
	}

	s.auditLog(ctx, domain.AuditRecord{
		CheckpointID: cp.ID,
		AccountID:    cp.AccountID,
		Action:       domain.AuditActionRollbackFinished,
		Detail:       map[string]any{"failed_steps": failedSteps},
	})

	if len(failedSteps) > 0 {
		s.emergencyRestore(ctx, cp)

		markCtx, cancel := s.withTimeout(ctx)
		if err := s.checkpoints.MarkFailed(markCtx, cp.ID); err != nil {
			s.log.Error("failed to mark checkpoint failed",
				"checkpoint_id", cp.ID, "error", err)
		}
		cancel()

		return 0, &domain.RollbackError{
			CheckpointID: cp.ID.String(),
			Steps:        failedSteps,
			Err:          errors.Join(stepErrs...),
		}
	}

	markCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.checkpoints.MarkRolledBack(markCtx, cp.ID, s.now()); err != nil {
		return 0, &domain.RollbackError{
			CheckpointID: cp.ID.String(),
			Steps:        []string{"mark_rolled_back"},
			Err:          err,
		}
	}

	s.log.Info("rollback completed",
		"checkpoint_id", cp.ID, "restored_items", cp.AccountSnapshot.ItemCount())

	return cp.AccountSnapshot.ItemCount(), nil
}

// emergencyRestore is the last resort when a rollback step failed: restore
// the guest-local slots from the fallback copy so the user's original data
// is not stranded in neither location.
func (s *Service) emergencyRestore(ctx context.Context, cp domain.Checkpoint) {
	readCtx, cancel := s.withTimeout(ctx)
	slots, err := s.guest.ReadFallback(readCtx, cp.ID)
	cancel()
	if err != nil {
		s.log.Error("emergency restore: fallback copy unavailable",
			"checkpoint_id", cp.ID, "error", err)
		return
	}

	restoreCtx, cancel := s.withTimeout(ctx)
	err = s.guest.RestoreSlots(restoreCtx, cp.GuestID, slots)
	cancel()

	detail := map[string]any{"ok": err == nil, "slots": len(slots)}
	if err != nil {
		detail["error"] = err.Error()
		s.log.Error("emergency restore failed",
			"checkpoint_id", cp.ID, "guest_id", cp.GuestID, "error", err)
	}
	s.auditLog(ctx, domain.AuditRecord{
		CheckpointID: cp.ID,
		AccountID:    cp.AccountID,
		Action:       domain.AuditActionEmergencyRestore,
		Detail:       detail,
	})
}

func (s *Service) deleteAllFlashcards(ctx context.Context, accountID uuid.UUID) error {
	cards, err := s.flashcards.ListByAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if len(cards) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(cards))
	for i, card := range cards {
		ids[i] = card.ID
	}
	return s.flashcards.DeleteByIDs(ctx, accountID, ids)
}

func (s *Service) deleteAllCurricula(ctx context.Context, accountID uuid.UUID) error {
	curricula, err := s.curricula.ListByAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if len(curricula) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(curricula))
	for i, c := range curricula {
		ids[i] = c.ID
	}
	return s.curricula.DeleteByIDs(ctx, accountID, ids)
}
