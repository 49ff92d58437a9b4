package course

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/coursegen/core"
)

// recordingListener captures completion events.
type recordingListener struct {
	mu     sync.Mutex
	events []string
}

func (l *recordingListener) ChapterCompleted(_ context.Context, userID, courseID string, position int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, fmt.Sprintf("%s:%s:%d", userID, courseID, position))
	return nil
}

func startedCourse(t *testing.T, svc *Service, gen *stubGen) Course {
	t.Helper()
	ctx := context.Background()

	gen.mu.Lock()
	gen.outlineFunc = func(core.OutlineRequest) (core.OutlineDraft, error) {
		return draftOf("One", "Two"), nil
	}
	gen.mu.Unlock()

	crs, err := svc.Submit(ctx, "usr1", NewCourse{Topic: "Graphs", Difficulty: DifficultyBeginner})
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	if crs, err = svc.Approve(ctx, "usr1", crs.ID); err != nil {
		t.Fatalf("Approve() failed: %v", err)
	}
	if crs, err = svc.Start(ctx, "usr1", crs.ID); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	return crs
}

func TestService_RequestChapter(t *testing.T) {
	sleepFunc = func(time.Duration) {}
	defer func() { sleepFunc = time.Sleep }()
	ctx := context.Background()

	t.Run("generates once then serves from store", func(t *testing.T) {
		gen := &stubGen{chapterFunc: func(req core.ChapterRequest) (string, error) {
			return "# " + req.Title + "\n\nbody", nil
		}}
		svc, _ := newTestService(gen)
		crs := startedCourse(t, svc, gen)

		content, err := svc.RequestChapter(ctx, "usr1", crs.ID, 1)
		if err != nil {
			t.Fatalf("RequestChapter() failed: %v", err)
		}
		if content.Version != 1 {
			t.Errorf("Version = %d; want 1", content.Version)
		}
		if content.Body == "" {
			t.Error("empty Body")
		}

		again, err := svc.RequestChapter(ctx, "usr1", crs.ID, 1)
		if err != nil {
			t.Fatalf("RequestChapter() again failed: %v", err)
		}
		if again.ID != content.ID {
			t.Error("second request did not serve the stored content")
		}
		if gen.chapterCalls != 1 {
			t.Errorf("generator calls = %d; want 1", gen.chapterCalls)
		}

		crs, _ = svc.GetByID(ctx, "usr1", crs.ID)
		if ch, _ := crs.Chapter(1); ch.Status != GenReady {
			t.Errorf("chapter status = %s; want %s", ch.Status, GenReady)
		}
	})

	t.Run("concurrent requests share one generation", func(t *testing.T) {
		release := make(chan struct{})
		gen := &stubGen{chapterFunc: func(core.ChapterRequest) (string, error) {
			<-release
			return "body", nil
		}}
		svc, _ := newTestService(gen)
		crs := startedCourse(t, svc, gen)

		const n = 8
		var wg sync.WaitGroup
		contents := make([]ChapterContent, n)
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				contents[i], errs[i] = svc.RequestChapter(ctx, "usr1", crs.ID, 1)
			}(i)
		}
		time.Sleep(50 * time.Millisecond) // let requesters join the flight
		close(release)
		wg.Wait()

		for i := 0; i < n; i++ {
			if errs[i] != nil {
				t.Fatalf("RequestChapter() [%d] failed: %v", i, errs[i])
			}
			if contents[i].ID != contents[0].ID {
				t.Errorf("requester %d got a different content version", i)
			}
		}
		if gen.chapterCalls != 1 {
			t.Errorf("generator calls = %d; want 1", gen.chapterCalls)
		}
	})

	t.Run("failure marks the chapter and surfaces", func(t *testing.T) {
		gen := &stubGen{chapterFunc: func(core.ChapterRequest) (string, error) {
			return "", errors.New("model overloaded")
		}}
		svc, _ := newTestService(gen)
		crs := startedCourse(t, svc, gen)

		_, err := svc.RequestChapter(ctx, "usr1", crs.ID, 1)
		var genErr *GenerationFailedError
		if !errors.As(err, &genErr) {
			t.Fatalf("RequestChapter() error = %v; want *GenerationFailedError", err)
		}
		if gen.chapterCalls != 3 { // MaxAttempts
			t.Errorf("generator calls = %d; want 3", gen.chapterCalls)
		}

		crs, _ = svc.GetByID(ctx, "usr1", crs.ID)
		ch, _ := crs.Chapter(1)
		if ch.Status != GenFailed {
			t.Errorf("chapter status = %s; want %s", ch.Status, GenFailed)
		}
		if ch.FailureReason == "" {
			t.Error("FailureReason not stored")
		}

		// a later request retries from scratch
		gen.mu.Lock()
		gen.chapterFunc = func(core.ChapterRequest) (string, error) { return "recovered", nil }
		gen.mu.Unlock()
		content, err := svc.RequestChapter(ctx, "usr1", crs.ID, 1)
		if err != nil {
			t.Fatalf("RequestChapter() after failure failed: %v", err)
		}
		if content.Body != "recovered" {
			t.Errorf("Body = %q; want %q", content.Body, "recovered")
		}
	})

	t.Run("rejected before finalization", func(t *testing.T) {
		gen := &stubGen{outlineFunc: func(core.OutlineRequest) (core.OutlineDraft, error) {
			return draftOf("One", "Two"), nil
		}}
		svc, _ := newTestService(gen)
		crs, err := svc.Submit(ctx, "usr1", NewCourse{Topic: "Graphs", Difficulty: DifficultyBeginner})
		if err != nil {
			t.Fatalf("Submit() failed: %v", err)
		}

		_, err = svc.RequestChapter(ctx, "usr1", crs.ID, 1)
		var stErr *InvalidStateTransitionError
		if !errors.As(err, &stErr) {
			t.Errorf("RequestChapter() error = %v; want *InvalidStateTransitionError", err)
		}
	})

	t.Run("unknown position", func(t *testing.T) {
		gen := &stubGen{chapterFunc: func(core.ChapterRequest) (string, error) { return "body", nil }}
		svc, _ := newTestService(gen)
		crs := startedCourse(t, svc, gen)

		if _, err := svc.RequestChapter(ctx, "usr1", crs.ID, 99); errors.Cause(err) != ErrChapterNotFound {
			t.Errorf("RequestChapter() error = %v; want ErrChapterNotFound", err)
		}
	})
}

func TestService_MarkChapterConsumed(t *testing.T) {
	ctx := context.Background()

	newStarted := func(t *testing.T, listeners ...CompletionListener) (*Service, Course, *stubGen) {
		gen := &stubGen{chapterFunc: func(core.ChapterRequest) (string, error) { return "body", nil }}
		repo := newFakeRepo()
		svc := NewService(repo, gen, nil, nopLogger{}, testConfig(), listeners...)
		crs := startedCourse(t, svc, gen)
		return svc, crs, gen
	}

	t.Run("not ready", func(t *testing.T) {
		svc, crs, _ := newStarted(t)
		if _, err := svc.MarkChapterConsumed(ctx, "usr1", crs.ID, 1, ""); errors.Cause(err) != ErrChapterNotReady {
			t.Errorf("MarkChapterConsumed() error = %v; want ErrChapterNotReady", err)
		}
	})

	t.Run("completes the course on the last chapter", func(t *testing.T) {
		listener := &recordingListener{}
		svc, crs, _ := newStarted(t, listener)

		for pos := 1; pos <= 2; pos++ {
			if _, err := svc.RequestChapter(ctx, "usr1", crs.ID, pos); err != nil {
				t.Fatalf("RequestChapter(%d) failed: %v", pos, err)
			}
		}

		crs2, err := svc.MarkChapterConsumed(ctx, "usr1", crs.ID, 1, "")
		if err != nil {
			t.Fatalf("MarkChapterConsumed(1) failed: %v", err)
		}
		if crs2.State != StateInProgress {
			t.Errorf("State = %s; want %s", crs2.State, StateInProgress)
		}

		crs2, err = svc.MarkChapterConsumed(ctx, "usr1", crs.ID, 2, "")
		if err != nil {
			t.Fatalf("MarkChapterConsumed(2) failed: %v", err)
		}
		if crs2.State != StateCompleted {
			t.Errorf("State = %s; want %s", crs2.State, StateCompleted)
		}
		if ch, _ := crs2.Chapter(2); !ch.Consumed || ch.ConsumedAt == nil {
			t.Error("chapter 2 not marked consumed")
		}

		// duplicate consumption stays a no-op success but re-emits the event
		if _, err = svc.MarkChapterConsumed(ctx, "usr1", crs.ID, 2, ""); err != nil {
			t.Errorf("MarkChapterConsumed(2) again failed: %v", err)
		}
		if len(listener.events) != 3 {
			t.Errorf("listener events = %d; want 3", len(listener.events))
		}
	})

	t.Run("rejected before start", func(t *testing.T) {
		gen := &stubGen{
			outlineFunc: func(core.OutlineRequest) (core.OutlineDraft, error) { return draftOf("One", "Two"), nil },
			chapterFunc: func(core.ChapterRequest) (string, error) { return "body", nil },
		}
		svc, _ := newTestService(gen)
		crs, err := svc.Submit(ctx, "usr1", NewCourse{Topic: "Graphs", Difficulty: DifficultyBeginner})
		if err != nil {
			t.Fatalf("Submit() failed: %v", err)
		}
		if _, err = svc.Approve(ctx, "usr1", crs.ID); err != nil {
			t.Fatalf("Approve() failed: %v", err)
		}

		_, err = svc.MarkChapterConsumed(ctx, "usr1", crs.ID, 1, "")
		var stErr *InvalidStateTransitionError
		if !errors.As(err, &stErr) {
			t.Errorf("MarkChapterConsumed() error = %v; want *InvalidStateTransitionError", err)
		}
	})
}
