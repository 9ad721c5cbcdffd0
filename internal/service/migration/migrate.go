package migration

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/studypath/studypath-backend/internal/domain"
)

// Migrate runs the full pipeline for one (guest, account) pair: schema
// upgrade, pre-validation, transformation, post-transformation validation,
// checkpoint, conflict resolution, write, post-migration validation, and
// confirm. Any failure after checkpoint creation routes through rollback.
// The report is populated on every path, including failures.
func (s *Service) Migrate(ctx context.Context, input MigrateInput) (domain.MigrationReport, error) {
	report := domain.MigrationReport{GuestID: input.GuestID, AccountID: input.AccountID}

	if err := input.Validate(); err != nil {
		report.Errors = append(report.Errors, err.Error())
		return report, err
	}

	strategy := input.Strategy
	if strategy == "" {
		strategy = domain.Strategy(s.cfg.DefaultStrategy)
	}
	report.Strategy = strategy

	log := s.log.With("guest_id", input.GuestID, "account_id", input.AccountID)

	schemaWarnings, err := s.schema.MigrateAll(ctx, input.GuestID)
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		return report, fmt.Errorf("schema migration: %w", err)
	}
	report.Warnings = append(report.Warnings, schemaWarnings...)

	readCtx, cancel := s.withTimeout(ctx)
	guest, err := s.guest.ReadUserData(readCtx, input.GuestID)
	cancel()
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		return report, fmt.Errorf("read guest data: %w", err)
	}

	pre := validatePreMigration(guest)
	report.Warnings = append(report.Warnings, issueStrings(pre.Warnings)...)
	if !pre.Passed {
		report.Errors = append(report.Errors, issueStrings(pre.Errors)...)
		report.IntegrityScore = pre.Score
		log.Warn("pre-migration validation failed", "errors", len(pre.Errors))
		return report, validationError(pre.Errors)
	}

	now := s.now()
	transformed := transformGuestData(guest, input.GuestID, input.AccountID, now)

	post := validatePostTransformation(transformed, input.AccountID)
	if !post.Passed {
		report.Errors = append(report.Errors, issueStrings(post.Errors)...)
		report.IntegrityScore = post.Score
		first := post.Errors[0]
		return report, &domain.TransformationError{
			EntityType: domain.EntityTypeCurriculum,
			EntityID:   first.Field,
			Err:        errors.New(first.Message),
		}
	}

	existing, err := s.readAccountData(ctx, input.AccountID)
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		return report, fmt.Errorf("read account data: %w", err)
	}

	cp, err := s.createCheckpoint(ctx, input.GuestID, input.AccountID, existing)
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		return report, err
	}
	report.CheckpointID = &cp.ID
	log = log.With("checkpoint_id", cp.ID)

	// From here on every failure must route through rollback, even a
	// caller cancellation, so no write is left orphaned.
	fail := func(cause error, reason string) (domain.MigrationReport, error) {
		report.Errors = append(report.Errors, cause.Error())
		report.RollbackPerformed = true
		restored, rbErr := s.rollback(context.WithoutCancel(ctx), cp, reason)
		if rbErr != nil {
			report.Errors = append(report.Errors, rbErr.Error())
			return report, errors.Join(cause, rbErr)
		}
		report.RollbackSucceeded = true
		report.RestoredItems = restored
		return report, cause
	}

	if err := ctx.Err(); err != nil {
		return fail(err, "canceled after checkpoint creation")
	}

	plan := resolveConflicts(transformed, existing, strategy, now)
	report.Resolutions = plan.resolutions
	log.Info("conflicts resolved",
		"strategy", strategy, "conflicts", len(plan.conflicts), "resolutions", len(plan.resolutions))

	if err := s.writePhase(ctx, input.AccountID, plan); err != nil {
		return fail(err, "write phase failed")
	}
	if err := ctx.Err(); err != nil {
		return fail(err, "canceled after write phase")
	}

	result, err := s.validatePostMigration(context.WithoutCancel(ctx), input.AccountID, expectedAfterWrite(existing, plan))
	if err != nil {
		return fail(fmt.Errorf("post-migration validation: %w", err), "validation unavailable")
	}
	report.IntegrityScore = result.Score
	if !result.Passed {
		return fail(&domain.IntegrityError{
			Score:     result.Score,
			Threshold: s.cfg.IntegrityThreshold,
			Failed:    result.FailedChecks(),
		}, "integrity below threshold")
	}

	if err := s.ConfirmCheckpoint(context.WithoutCancel(ctx), cp.ID); err != nil {
		return fail(err, "checkpoint confirm failed")
	}

	report.Success = true
	report.MigratedItems = plan.itemCount()
	log.Info("migration completed",
		"migrated_items", report.MigratedItems, "integrity_score", report.IntegrityScore)

	return report, nil
}

// readAccountData loads the account's current entities for conflict
// comparison and the checkpoint snapshot.
func (s *Service) readAccountData(ctx context.Context, accountID uuid.UUID) (domain.AccountData, error) {
	var data domain.AccountData

	listCtx, cancel := s.withTimeout(ctx)
	curricula, err := s.curricula.ListByAccount(listCtx, accountID)
	cancel()
	if err != nil {
		return data, fmt.Errorf("list curricula: %w", err)
	}
	data.Curricula = curricula

	cardCtx, cancel := s.withTimeout(ctx)
	flashcards, err := s.flashcards.ListByAccount(cardCtx, accountID)
	cancel()
	if err != nil {
		return data, fmt.Errorf("list flashcards: %w", err)
	}
	data.Flashcards = flashcards

	progressCtx, cancel := s.withTimeout(ctx)
	progress, err := s.progress.GetByAccount(progressCtx, accountID)
	cancel()
	switch {
	case err == nil:
		data.Progress = &progress
	case !errors.Is(err, domain.ErrNotFound):
		return data, fmt.Errorf("get progress: %w", err)
	}

	prefsCtx, cancel := s.withTimeout(ctx)
	preferences, err := s.preferences.GetByAccount(prefsCtx, accountID)
	cancel()
	switch {
	case err == nil:
		data.Preferences = &preferences
	case !errors.Is(err, domain.ErrNotFound):
		return data, fmt.Errorf("get preferences: %w", err)
	}

	return data, nil
}

// writePhase commits the plan, one batched transaction per entity type.
// The store offers no transaction spanning every entity type, so a partial
// failure here relies on rollback, not the store, for atomicity.
func (s *Service) writePhase(ctx context.Context, accountID uuid.UUID, plan writePlan) error {
	if len(plan.curriculaToDelete) > 0 || len(plan.curriculaToInsert) > 0 {
		txCtx, cancel := s.withTimeout(ctx)
		err := s.tx.RunInTx(txCtx, func(ctx context.Context) error {
			if len(plan.curriculaToDelete) > 0 {
				if err := s.curricula.DeleteByIDs(ctx, accountID, plan.curriculaToDelete); err != nil {
					return err
				}
			}
			for _, batch := range chunk(plan.curriculaToInsert, s.cfg.WriteBatchSize) {
				if err := s.curricula.BatchInsert(ctx, batch); err != nil {
					return err
				}
			}
			return nil
		})
		cancel()
		if err != nil {
			return &domain.WriteError{EntityType: domain.EntityTypeCurriculum, Err: err}
		}
	}

	if len(plan.flashcardsToInsert) > 0 || len(plan.flashcardsToUpsert) > 0 {
		txCtx, cancel := s.withTimeout(ctx)
		err := s.tx.RunInTx(txCtx, func(ctx context.Context) error {
			for _, batch := range chunk(plan.flashcardsToUpsert, s.cfg.WriteBatchSize) {
				if err := s.flashcards.BatchUpsert(ctx, batch); err != nil {
					return err
				}
			}
			for _, batch := range chunk(plan.flashcardsToInsert, s.cfg.WriteBatchSize) {
				if err := s.flashcards.BatchInsert(ctx, batch); err != nil {
					return err
				}
			}
			return nil
		})
		cancel()
		if err != nil {
			return &domain.WriteError{EntityType: domain.EntityTypeFlashcard, Err: err}
		}
	}

	if plan.progress != nil {
		upsertCtx, cancel := s.withTimeout(ctx)
		err := s.progress.Upsert(upsertCtx, *plan.progress)
		cancel()
		if err != nil {
			return &domain.WriteError{EntityType: domain.EntityTypeProgress, Err: err}
		}
	}

	if plan.preferences != nil {
		upsertCtx, cancel := s.withTimeout(ctx)
		err := s.preferences.Upsert(upsertCtx, *plan.preferences)
		cancel()
		if err != nil {
			return &domain.WriteError{EntityType: domain.EntityTypePreferences, Err: err}
		}
	}

	return nil
}

func issueStrings(issues []domain.ValidationIssue) []string {
	out := make([]string, len(issues))
	for i, issue := range issues {
		out[i] = fmt.Sprintf("%s: %s", issue.Field, issue.Message)
	}
	return out
}

func validationError(issues []domain.ValidationIssue) error {
	fields := make([]domain.FieldError, len(issues))
	for i, issue := range issues {
		fields[i] = domain.FieldError{Field: issue.Field, Message: issue.Message}
	}
	return domain.NewValidationErrors(fields)
}

func chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}
	var batches [][]T
	for len(items) > size {
		batches = append(batches, items[:size])
		items = items[size:]
	}
	if len(items) > 0 {
		batches = append(batches, items)
	}
	return batches
}
