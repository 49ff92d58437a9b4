package course

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/coursegen/core"
)

type (
	flightKey struct {
		courseID string
		position int
	}

	// flight is one in-flight chapter generation; concurrent requesters for
	// the same (course, position) await its result instead of triggering a
	// second generation.
	flight struct {
		done    chan struct{}
		content ChapterContent
		err     error
	}
)

// RequestChapter lazily materializes the chapter at the given position.
// READY content is served from the store; a single generation is in flight
// per chapter at any time. Sequential access is expected but not enforced.
func (svc *Service) RequestChapter(ctx context.Context, ownerID, id string, position int) (ChapterContent, error) {
	crs, err := svc.GetByID(ctx, ownerID, id)
	if err != nil {
		return ChapterContent{}, err
	}
	switch crs.State {
	case StateFinalized, StateInProgress, StateCompleted:
	default:
		return ChapterContent{}, &InvalidStateTransitionError{Current: crs.State, Requested: StateInProgress}
	}
	ch, ok := crs.Chapter(position)
	if !ok {
		return ChapterContent{}, ErrChapterNotFound
	}

	if ch.Status == GenReady {
		content, err := svc.repo.GetLatestChapterContent(ctx, id, position)
		if err == nil {
			return content, nil // cache hit
		}
		if errors.Cause(err) != ErrContentNotFound {
			return ChapterContent{}, err
		}
		// READY without content should not happen; regenerate
	}

	key := flightKey{courseID: id, position: position}
	svc.mu.Lock()
	if fl, ok := svc.flights[key]; ok {
		svc.mu.Unlock()
		select {
		case <-fl.done:
			return fl.content, fl.err
		case <-ctx.Done():
			return ChapterContent{}, ctx.Err()
		}
	}
	fl := &flight{done: make(chan struct{})}
	svc.flights[key] = fl
	svc.mu.Unlock()

	fl.content, fl.err = svc.materializeChapter(ctx, crs, position)

	svc.mu.Lock()
	delete(svc.flights, key)
	svc.mu.Unlock()
	close(fl.done)

	return fl.content, fl.err
}

// materializeChapter flips the chapter to GENERATING, calls the capability
// with the outline entry as context, and stores the result as a new content
// version. Only the status flips hold the course lock; the generation call
// itself does not block other operations on the course.
func (svc *Service) materializeChapter(ctx context.Context, crs Course, position int) (ChapterContent, error) {
	if err := svc.setChapterStatus(ctx, crs.ID, position, GenGenerating, ""); err != nil {
		return ChapterContent{}, err
	}

	ch, _ := crs.Chapter(position)
	body, err := svc.generateChapter(ctx, crs, *ch)
	if err != nil {
		if stErr := svc.setChapterStatus(ctx, crs.ID, position, GenFailed, err.Error()); stErr != nil {
			return ChapterContent{}, stErr
		}
		return ChapterContent{}, &GenerationFailedError{Reason: err.Error(), Err: err}
	}

	version := 1
	if prev, err := svc.repo.GetLatestChapterContent(ctx, crs.ID, position); err == nil {
		version = prev.Version + 1
	} else if errors.Cause(err) != ErrContentNotFound {
		return ChapterContent{}, err
	}

	content, err := svc.repo.CreateChapterContent(ctx, ChapterContent{
		ID:        uuid.New().String(),
		CourseID:  crs.ID,
		Position:  position,
		Version:   version,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return ChapterContent{}, err
	}
	if err = svc.setChapterStatus(ctx, crs.ID, position, GenReady, ""); err != nil {
		return ChapterContent{}, err
	}
	return content, nil
}

func (svc *Service) generateChapter(ctx context.Context, crs Course, ch ChapterOutline) (string, error) {
	req := core.ChapterRequest{
		Topic:       crs.Topic,
		Difficulty:  crs.Difficulty,
		CodingRatio: crs.CodingRatio,
		Position:    ch.Position,
		Title:       ch.Title,
		Summary:     ch.Summary,
		Outline:     toOutlineEntries(crs.Outline),
	}

	var lastErr error
	for attempt := 0; attempt < svc.conf.Anthropic.MaxAttempts; attempt++ {
		if attempt > 0 {
			sleepFunc(backoffDuration(attempt))
		}

		body, err := svc.gen.GenerateChapter(ctx, req)
		if err != nil {
			lastErr = err
			svc.logger.Warn(fmt.Sprintf("chapter %d generation attempt %d/%d failed: %v", ch.Position, attempt+1, svc.conf.Anthropic.MaxAttempts, err))
			continue
		}
		if core.CleanString(body) == "" {
			lastErr = errors.Wrap(core.ErrMalformedDraft, "empty chapter body")
			continue
		}
		return body, nil
	}
	return "", errors.Wrapf(lastErr, "chapter generation exhausted %d attempts", svc.conf.Anthropic.MaxAttempts)
}

func (svc *Service) setChapterStatus(ctx context.Context, id string, position int, status GenStatus, reason string) error {
	lock := svc.courseLock(id)
	lock.Lock()
	defer lock.Unlock()

	crs, err := svc.repo.GetCourseByID(ctx, id)
	if err != nil {
		return err
	}
	ch, ok := crs.Chapter(position)
	if !ok {
		return ErrChapterNotFound
	}
	ch.Status = status
	ch.FailureReason = reason
	crs.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateCourse(ctx, crs)
	return err
}

// MarkChapterConsumed records that the user finished the chapter and emits
// the completion event that drives points. Consuming the final position
// moves the course IN_PROGRESS -> COMPLETED. Safe to call repeatedly; the
// ledger deduplicates the credit.
func (svc *Service) MarkChapterConsumed(ctx context.Context, ownerID, id string, position int, notifyEmail string) (Course, error) {
	lock := svc.courseLock(id)
	lock.Lock()

	crs, err := svc.GetByID(ctx, ownerID, id)
	if err != nil {
		lock.Unlock()
		return Course{}, err
	}
	if crs.State != StateInProgress && crs.State != StateCompleted {
		lock.Unlock()
		return Course{}, &InvalidStateTransitionError{Current: crs.State, Requested: StateInProgress}
	}
	ch, ok := crs.Chapter(position)
	if !ok {
		lock.Unlock()
		return Course{}, ErrChapterNotFound
	}
	if ch.Status != GenReady {
		lock.Unlock()
		return Course{}, ErrChapterNotReady
	}

	if !ch.Consumed {
		now := time.Now().UTC()
		ch.Consumed = true
		ch.ConsumedAt = &now
		crs.UpdatedAt = now

		completed := position == crs.LastPosition() && crs.State == StateInProgress
		if completed {
			if err = transition(&crs, StateCompleted); err != nil {
				lock.Unlock()
				return Course{}, err
			}
		}
		if crs, err = svc.repo.UpdateCourse(ctx, crs); err != nil {
			lock.Unlock()
			return Course{}, err
		}
		if completed {
			svc.sendCompletionMail(crs, notifyEmail)
		}
	}
	lock.Unlock()

	// completion event; listeners are idempotent per (user, course, position)
	for _, l := range svc.listeners {
		if err = l.ChapterCompleted(ctx, ownerID, id, position); err != nil {
			return Course{}, err
		}
	}
	return crs, nil
}
