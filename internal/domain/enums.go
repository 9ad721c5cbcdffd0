package domain

// Difficulty represents the guest-assigned difficulty of a flashcard.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func (d Difficulty) String() string { return string(d) }

func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Theme represents the UI theme preference.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

func (t Theme) String() string { return string(t) }

func (t Theme) IsValid() bool {
	switch t {
	case ThemeLight, ThemeDark, ThemeSystem:
		return true
	}
	return false
}

// Strategy selects how colliding entities are reconciled during migration.
type Strategy string

const (
	StrategyMergeWithPreference Strategy = "merge_with_preference"
	StrategyGuestPriority       Strategy = "guest_priority"
	StrategyExistingPriority    Strategy = "existing_priority"
	StrategyCreateDuplicate     Strategy = "create_duplicate"
)

func (s Strategy) String() string { return string(s) }

func (s Strategy) IsValid() bool {
	switch s {
	case StrategyMergeWithPreference, StrategyGuestPriority,
		StrategyExistingPriority, StrategyCreateDuplicate:
		return true
	}
	return false
}

// CheckpointStatus represents the lifecycle state of a migration checkpoint.
type CheckpointStatus string

const (
	CheckpointStatusActive     CheckpointStatus = "active"
	CheckpointStatusCompleted  CheckpointStatus = "completed"
	CheckpointStatusRolledBack CheckpointStatus = "rolled_back"
	CheckpointStatusFailed     CheckpointStatus = "failed"
)

func (s CheckpointStatus) String() string { return string(s) }

func (s CheckpointStatus) IsValid() bool {
	switch s {
	case CheckpointStatusActive, CheckpointStatusCompleted,
		CheckpointStatusRolledBack, CheckpointStatusFailed:
		return true
	}
	return false
}

// EntityType identifies the kind of migrated entity (used in conflict
// resolution logs and the audit log).
type EntityType string

const (
	EntityTypeCurriculum  EntityType = "CURRICULUM"
	EntityTypeFlashcard   EntityType = "FLASHCARD"
	EntityTypeProgress    EntityType = "PROGRESS"
	EntityTypePreferences EntityType = "PREFERENCES"
	EntityTypeCheckpoint  EntityType = "CHECKPOINT"
)

func (e EntityType) String() string { return string(e) }

func (e EntityType) IsValid() bool {
	switch e {
	case EntityTypeCurriculum, EntityTypeFlashcard, EntityTypeProgress,
		EntityTypePreferences, EntityTypeCheckpoint:
		return true
	}
	return false
}

// ConflictType classifies why a guest entity collided with an existing one.
type ConflictType string

const (
	ConflictTypeIDCollision   ConflictType = "ID_COLLISION"
	ConflictTypeDuplicate     ConflictType = "DUPLICATE"
	ConflictTypeNearDuplicate ConflictType = "NEAR_DUPLICATE"
	ConflictTypeSimilarTitle  ConflictType = "SIMILAR_TITLE"
	ConflictTypeDivergence    ConflictType = "DIVERGENCE"
	ConflictTypeFieldMismatch ConflictType = "FIELD_MISMATCH"
)

func (c ConflictType) String() string { return string(c) }

// ResolutionAction is the outcome chosen for a single guest entity.
type ResolutionAction string

const (
	ResolutionActionMerge     ResolutionAction = "merge"
	ResolutionActionSkip      ResolutionAction = "skip"
	ResolutionActionAdd       ResolutionAction = "add"
	ResolutionActionReplace   ResolutionAction = "replace"
	ResolutionActionDuplicate ResolutionAction = "duplicate"
)

func (a ResolutionAction) String() string { return string(a) }

// ValidationStage identifies which gate of the pipeline produced a result.
type ValidationStage string

const (
	StagePreMigration       ValidationStage = "pre_migration"
	StagePostTransformation ValidationStage = "post_transformation"
	StagePostMigration      ValidationStage = "post_migration"
)

func (s ValidationStage) String() string { return string(s) }

// AuditAction represents the kind of event recorded in the audit log.
type AuditAction string

const (
	AuditActionCheckpointCreated AuditAction = "CHECKPOINT_CREATED"
	AuditActionCheckpointDone    AuditAction = "CHECKPOINT_COMPLETED"
	AuditActionRollbackStarted   AuditAction = "ROLLBACK_STARTED"
	AuditActionRollbackStep      AuditAction = "ROLLBACK_STEP"
	AuditActionRollbackFinished  AuditAction = "ROLLBACK_FINISHED"
	AuditActionEmergencyRestore  AuditAction = "EMERGENCY_RESTORE"
)

func (a AuditAction) String() string { return string(a) }
