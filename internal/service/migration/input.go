package migration

import (
	"github.com/google/uuid"

	"github.com/studypath/studypath-backend/internal/domain"
)

// MigrateInput identifies one migration attempt. An empty Strategy selects
// the configured default.
type MigrateInput struct {
	GuestID   string
	AccountID uuid.UUID
	Strategy  domain.Strategy
}

// Validate checks the input before the pipeline starts. An unknown strategy
// is rejected here so it can never reach the resolver.
func (in *MigrateInput) Validate() error {
	var errs []domain.FieldError

	if in.GuestID == "" {
		errs = append(errs, domain.FieldError{Field: "guest_id", Message: "is required"})
	}
	if in.AccountID == uuid.Nil {
		errs = append(errs, domain.FieldError{Field: "account_id", Message: "is required"})
	}
	if in.Strategy != "" && !in.Strategy.IsValid() {
		errs = append(errs, domain.FieldError{Field: "strategy", Message: "unknown strategy"})
	}

	if len(errs) > 0 {
		return domain.NewValidationErrors(errs)
	}

	return nil
}
