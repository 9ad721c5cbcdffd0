package curriculum

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v2"
)

func TestCurriculumRepo_ListByAccount_AssemblesTree(t *testing.T) {
	accountID := uuid.New()
	curriculumID := uuid.New()
	moduleID := uuid.New()
	lessonID := uuid.New()
	now := time.Now()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("create mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT (.+) FROM curricula`).
		WithArgs(accountID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "guest_id", "account_id",
			"title", "domain", "estimated_duration", "position", "created_at",
			"updated_at"}).
			AddRow(curriculumID, "plan-1", accountID, "React Basics", "technology",
				"1h", 0, now, now))
	mock.ExpectQuery(`SELECT (.+) FROM curriculum_modules`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "curriculum_id", "guest_id",
			"title", "position"}).
			AddRow(moduleID, curriculumID, "mod-1", "Components", 0))
	mock.ExpectQuery(`SELECT (.+) FROM curriculum_lessons`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "module_id", "guest_id",
			"title", "duration", "position", "completed", "completed_at"}).
			AddRow(lessonID, moduleID, "les-1", "JSX", "30m", 0, true, &now))

	repo := New(mock)
	curricula, err := repo.ListByAccount(context.Background(), accountID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(curricula) != 1 {
		t.Fatalf("expected 1 curriculum, got %d", len(curricula))
	}
	got := curricula[0]
	if got.Title != "React Basics" {
		t.Errorf("expected title React Basics, got %q", got.Title)
	}
	if len(got.Modules) != 1 {
		t.Fatalf("expected 1 module, got %d", len(got.Modules))
	}
	if got.Modules[0].CurriculumID != curriculumID {
		t.Errorf("module attached to wrong curriculum: %s", got.Modules[0].CurriculumID)
	}
	if len(got.Modules[0].Lessons) != 1 {
		t.Fatalf("expected 1 lesson, got %d", len(got.Modules[0].Lessons))
	}
	lesson := got.Modules[0].Lessons[0]
	if lesson.ModuleID != moduleID || !lesson.Completed {
		t.Errorf("unexpected lesson: %+v", lesson)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCurriculumRepo_ListByAccount_Empty(t *testing.T) {
	accountID := uuid.New()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("create mock pool: %v", err)
	}
	defer mock.Close()

	// no curricula means the module and lesson queries never run
	mock.ExpectQuery(`SELECT (.+) FROM curricula`).
		WithArgs(accountID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "guest_id", "account_id",
			"title", "domain", "estimated_duration", "position", "created_at",
			"updated_at"}))

	repo := New(mock)
	curricula, err := repo.ListByAccount(context.Background(), accountID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if curricula == nil || len(curricula) != 0 {
		t.Fatalf("expected non-nil empty slice, got %v", curricula)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCurriculumRepo_DeleteByIDs_ChildrenFirst(t *testing.T) {
	accountID := uuid.New()
	ids := []uuid.UUID{uuid.New()}

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("create mock pool: %v", err)
	}
	defer mock.Close()

	// expectations are ordered: lessons, then modules, then curricula
	mock.ExpectExec(`DELETE FROM curriculum_lessons`).
		WithArgs(ids).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec(`DELETE FROM curriculum_modules`).
		WithArgs(ids).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM curricula`).
		WithArgs(accountID, ids).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	repo := New(mock)
	if err := repo.DeleteByIDs(context.Background(), accountID, ids); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCurriculumRepo_DeleteByIDs_Error(t *testing.T) {
	accountID := uuid.New()
	ids := []uuid.UUID{uuid.New()}

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("create mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM curriculum_lessons`).
		WithArgs(ids).
		WillReturnError(errors.New("connection refused"))

	repo := New(mock)
	if err := repo.DeleteByIDs(context.Background(), accountID, ids); err == nil {
		t.Fatal("expected error, got nil")
	}
}
