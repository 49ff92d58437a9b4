package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/coursegen/core"
	"github.com/trezcool/coursegen/core/course"
	"github.com/trezcool/coursegen/core/ledger"
)

// NewConfig returns a test configuration; generation retries do not sleep
// for long and the pipeline bounds are kept small.
func NewConfig() *core.Config {
	conf := core.NewConfig()
	conf.Debug = false
	conf.TestMode = true
	conf.Course.MinChapters = 2
	conf.Course.MaxChapters = 6
	conf.Course.MaxRefinementRounds = 2
	conf.Course.PointsPerChapter = 10
	conf.Anthropic.MaxAttempts = 3
	conf.Redemption.Timeout = time.Second
	return conf
}

// CreateCourse seeds a course directly through the repository, bypassing the
// generation pipeline. chapters READY entries are laid out at positions 1..n.
func CreateCourse(
	t *testing.T,
	repo course.Repository,
	ownerID, topic string,
	state course.State,
	chapters int,
) course.Course {
	t.Helper()

	now := time.Now().UTC()
	outline := make([]course.ChapterOutline, 0, chapters)
	for i := 1; i <= chapters; i++ {
		outline = append(outline, course.ChapterOutline{
			Position:      i,
			Title:         fmt.Sprintf("Chapter %d", i),
			Summary:       fmt.Sprintf("Summary of chapter %d.", i),
			EffortMinutes: 30,
			Status:        course.GenReady,
		})
	}
	crs, err := repo.CreateCourse(context.Background(), course.Course{
		ID:         uuid.New().String(),
		OwnerID:    ownerID,
		Topic:      topic,
		Difficulty: course.DifficultyBeginner,
		State:      state,
		Outline:    outline,
		Revision:   1,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return crs
}

// CreateChapterContent seeds stored content so READY chapters can be served.
func CreateChapterContent(t *testing.T, repo course.Repository, courseID string, position int) course.ChapterContent {
	t.Helper()

	content, err := repo.CreateChapterContent(context.Background(), course.ChapterContent{
		ID:        uuid.New().String(),
		CourseID:  courseID,
		Position:  position,
		Version:   1,
		Body:      fmt.Sprintf("# Chapter %d\n\nBody.\n", position),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateChapterContent() failed: %v", err)
	}
	return content
}

// CreateEntry appends a ledger entry with a random idempotency key unless one
// is given.
func CreateEntry(
	t *testing.T,
	repo ledger.Repository,
	userID string,
	amount int,
	reason ledger.Reason,
	key ...string,
) ledger.Entry {
	t.Helper()

	k := uuid.New().String()
	if len(key) > 0 {
		k = key[0]
	}
	entry, err := repo.CreateEntry(context.Background(), ledger.Entry{
		ID:             uuid.New().String(),
		UserID:         userID,
		Amount:         amount,
		Reason:         reason,
		IdempotencyKey: k,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateEntry() failed: %v", err)
	}
	return entry
}
