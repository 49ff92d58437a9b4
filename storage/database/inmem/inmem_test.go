package inmemdb

import (
	"context"
	"testing"

	"github.com/pkg/errors"

	"github.com/trezcool/coursegen/core/course"
	"github.com/trezcool/coursegen/core/ledger"
	"github.com/trezcool/coursegen/tests"
)

func TestCourseRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewCourseRepository(Open())

	crs := testutil.CreateCourse(t, repo, "usr1", "Graphs", course.StateReview, 2)

	t.Run("stored state is not aliased", func(t *testing.T) {
		got, err := repo.GetCourseByID(ctx, crs.ID)
		if err != nil {
			t.Fatalf("GetCourseByID() failed: %v", err)
		}
		got.Outline[0].Consumed = true

		again, _ := repo.GetCourseByID(ctx, crs.ID)
		if again.Outline[0].Consumed {
			t.Error("mutation through a returned course leaked into the store")
		}
	})

	t.Run("update keeps CreatedAt", func(t *testing.T) {
		got, _ := repo.GetCourseByID(ctx, crs.ID)
		created := got.CreatedAt
		got.Revision++
		got.CreatedAt = created.AddDate(1, 0, 0)

		updated, err := repo.UpdateCourse(ctx, got)
		if err != nil {
			t.Fatalf("UpdateCourse() failed: %v", err)
		}
		if !updated.CreatedAt.Equal(created) {
			t.Errorf("CreatedAt = %v; want %v", updated.CreatedAt, created)
		}
	})

	t.Run("content versions", func(t *testing.T) {
		testutil.CreateChapterContent(t, repo, crs.ID, 1)
		c2, err := repo.CreateChapterContent(ctx, course.ChapterContent{ID: "c2", CourseID: crs.ID, Position: 1, Version: 2, Body: "v2"})
		if err != nil {
			t.Fatalf("CreateChapterContent() failed: %v", err)
		}

		latest, err := repo.GetLatestChapterContent(ctx, crs.ID, 1)
		if err != nil {
			t.Fatalf("GetLatestChapterContent() failed: %v", err)
		}
		if latest.ID != c2.ID {
			t.Errorf("latest = %s; want %s", latest.ID, c2.ID)
		}
		if _, err = repo.GetLatestChapterContent(ctx, crs.ID, 2); errors.Cause(err) != course.ErrContentNotFound {
			t.Errorf("GetLatestChapterContent(2) error = %v; want ErrContentNotFound", err)
		}
	})

	t.Run("soft delete hides the course", func(t *testing.T) {
		if err := repo.SoftDeleteCourse(ctx, crs.ID); err != nil {
			t.Fatalf("SoftDeleteCourse() failed: %v", err)
		}
		if _, err := repo.GetCourseByID(ctx, crs.ID); errors.Cause(err) != course.ErrNotFound {
			t.Errorf("GetCourseByID() error = %v; want ErrNotFound", err)
		}
		if err := repo.SoftDeleteCourse(ctx, crs.ID); errors.Cause(err) != course.ErrNotFound {
			t.Errorf("SoftDeleteCourse() again error = %v; want ErrNotFound", err)
		}
		courses, _ := repo.QueryCoursesByOwner(ctx, "usr1")
		if len(courses) != 0 {
			t.Errorf("len(courses) = %d; want 0", len(courses))
		}
		// rounds referencing the course survive
		if _, err := repo.QueryFeedbackRounds(ctx, crs.ID); err != nil {
			t.Errorf("QueryFeedbackRounds() failed: %v", err)
		}
	})
}

func TestLedgerRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewLedgerRepository(Open())

	entry := testutil.CreateEntry(t, repo, "usr1", 10, ledger.ReasonChapterCompleted, "k1")

	if _, err := repo.CreateEntry(ctx, ledger.Entry{ID: "e2", UserID: "usr1", Amount: 10, IdempotencyKey: "k1"}); errors.Cause(err) != ledger.ErrDuplicateEntry {
		t.Errorf("CreateEntry() dup error = %v; want ErrDuplicateEntry", err)
	}

	got, err := repo.GetEntryByIdempotencyKey(ctx, "k1")
	if err != nil {
		t.Fatalf("GetEntryByIdempotencyKey() failed: %v", err)
	}
	if got.ID != entry.ID {
		t.Errorf("entry = %s; want %s", got.ID, entry.ID)
	}

	testutil.CreateEntry(t, repo, "usr1", -4, ledger.ReasonRedeemed, "k2")
	testutil.CreateEntry(t, repo, "usr2", 7, ledger.ReasonChapterCompleted, "k3")

	sum, err := repo.SumAmountByUser(ctx, "usr1")
	if err != nil {
		t.Fatalf("SumAmountByUser() failed: %v", err)
	}
	if sum != 6 {
		t.Errorf("sum = %d; want 6", sum)
	}

	entries, _ := repo.QueryEntriesByUser(ctx, "usr1")
	if len(entries) != 2 {
		t.Errorf("len(entries) = %d; want 2", len(entries))
	}
}
