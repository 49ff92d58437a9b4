package course

import (
	"context"
	"fmt"
	"net/mail"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/coursegen/core"
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, crs Course) (Course, error)
		// GetCourseByID does not return soft-deleted courses.
		GetCourseByID(ctx context.Context, id string) (Course, error)
		QueryCoursesByOwner(ctx context.Context, ownerID string) ([]Course, error)
		UpdateCourse(ctx context.Context, crs Course) (Course, error)
		SoftDeleteCourse(ctx context.Context, id string) error

		CreateFeedbackRound(ctx context.Context, round FeedbackRound) (FeedbackRound, error)
		QueryFeedbackRounds(ctx context.Context, courseID string) ([]FeedbackRound, error)

		// GetLatestChapterContent returns the highest content version for the
		// chapter, or ErrContentNotFound.
		GetLatestChapterContent(ctx context.Context, courseID string, position int) (ChapterContent, error)
		CreateChapterContent(ctx context.Context, content ChapterContent) (ChapterContent, error)
	}

	// CompletionListener is notified whenever a user marks a chapter consumed.
	// Implementations must be idempotent per (userID, courseID, position).
	CompletionListener interface {
		ChapterCompleted(ctx context.Context, userID, courseID string, position int) error
	}

	Service struct {
		repo      Repository
		gen       core.TextGenerator
		mailSvc   core.EmailService
		logger    core.Logger
		conf      *core.Config
		listeners []CompletionListener

		mu      sync.Mutex // guards locks & flights
		locks   map[string]*sync.Mutex
		flights map[flightKey]*flight
	}
)

func NewService(repo Repository, gen core.TextGenerator, mailSvc core.EmailService, logger core.Logger, conf *core.Config, listeners ...CompletionListener) *Service {
	return &Service{
		repo:      repo,
		gen:       gen,
		mailSvc:   mailSvc,
		logger:    logger,
		conf:      conf,
		listeners: listeners,
		locks:     make(map[string]*sync.Mutex),
		flights:   make(map[flightKey]*flight),
	}
}

// courseLock returns the exclusive section for one course. Independent
// courses are fully parallel; mutations of the same course serialize here.
func (svc *Service) courseLock(id string) *sync.Mutex {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	l, ok := svc.locks[id]
	if !ok {
		l = new(sync.Mutex)
		svc.locks[id] = l
	}
	return l
}

// Submit creates a course in DRAFTING and drives it through the initial
// outline draft. On success the course lands in REVIEW; on exhausted retries
// it lands in FAILED with the reason stored.
func (svc *Service) Submit(ctx context.Context, ownerID string, nc NewCourse) (Course, error) {
	now := time.Now().UTC()
	crs := Course{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Topic:       nc.Topic,
		Difficulty:  nc.Difficulty,
		CodingRatio: nc.CodingRatio,
		State:       StateDrafting,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	crs, err := svc.repo.CreateCourse(ctx, crs)
	if err != nil {
		return Course{}, err
	}

	// generation runs without holding the course lock
	outline, err := svc.generateOutline(ctx, crs, nil, "", nil)
	if err != nil {
		return svc.failCourse(ctx, crs.ID, err)
	}
	return svc.receiveDraftOutline(ctx, crs.ID, crs.Revision, outline)
}

func (svc *Service) GetByID(ctx context.Context, ownerID, id string) (Course, error) {
	crs, err := svc.repo.GetCourseByID(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if crs.OwnerID != ownerID {
		return Course{}, ErrNotFound
	}
	return crs, nil
}

func (svc *Service) QueryByOwner(ctx context.Context, ownerID string) ([]Course, error) {
	return svc.repo.QueryCoursesByOwner(ctx, ownerID)
}

func (svc *Service) FeedbackRounds(ctx context.Context, ownerID, id string) ([]FeedbackRound, error) {
	if _, err := svc.GetByID(ctx, ownerID, id); err != nil {
		return nil, err
	}
	return svc.repo.QueryFeedbackRounds(ctx, id)
}

// SubmitFeedback records a refinement round: REVIEW -> DRAFTING, regeneration
// constrained by the prior outline plus feedback, then DRAFTING -> REVIEW with
// the revision counter bumped. The round bound requires an explicit override
// once exceeded.
func (svc *Service) SubmitFeedback(ctx context.Context, ownerID, id string, fb Feedback) (Course, error) {
	lock := svc.courseLock(id)
	lock.Lock()

	crs, err := svc.GetByID(ctx, ownerID, id)
	if err != nil {
		lock.Unlock()
		return Course{}, err
	}
	if !fb.Override {
		rounds, err := svc.repo.QueryFeedbackRounds(ctx, id)
		if err != nil {
			lock.Unlock()
			return Course{}, err
		}
		if len(rounds) >= svc.conf.Course.MaxRefinementRounds {
			lock.Unlock()
			return Course{}, &RefinementLimitExceededError{Limit: svc.conf.Course.MaxRefinementRounds}
		}
	}
	if err = transition(&crs, StateDrafting); err != nil {
		lock.Unlock()
		return Course{}, err
	}
	prior := crs.Outline
	priorRevision := crs.Revision
	crs.UpdatedAt = time.Now().UTC()
	if crs, err = svc.repo.UpdateCourse(ctx, crs); err != nil {
		lock.Unlock()
		return Course{}, err
	}
	lock.Unlock()

	outline, err := svc.generateOutline(ctx, crs, prior, fb.Text, fb.Keep)
	if err != nil {
		return svc.failCourse(ctx, id, err)
	}

	crs, err = svc.receiveDraftOutline(ctx, id, priorRevision, outline)
	if err != nil {
		return Course{}, err
	}

	round := FeedbackRound{
		ID:              uuid.New().String(),
		CourseID:        id,
		Feedback:        fb.Text,
		Keep:            fb.Keep,
		AppliedRevision: priorRevision,
		Diff:            outlineDiff(prior, outline, priorRevision),
		CreatedAt:       time.Now().UTC(),
	}
	if _, err = svc.repo.CreateFeedbackRound(ctx, round); err != nil {
		return Course{}, err
	}
	return crs, nil
}

// receiveDraftOutline stores a freshly drafted outline: DRAFTING -> REVIEW,
// revision counter bumped. The result of a generation that lost a race (the
// course was deleted or moved on meanwhile) is discarded.
func (svc *Service) receiveDraftOutline(ctx context.Context, id string, priorRevision int, outline []ChapterOutline) (Course, error) {
	lock := svc.courseLock(id)
	lock.Lock()
	defer lock.Unlock()

	crs, err := svc.repo.GetCourseByID(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if crs.Revision != priorRevision {
		return Course{}, ErrConcurrencyConflict
	}
	if err = transition(&crs, StateReview); err != nil {
		return Course{}, err
	}
	crs.Outline = outline
	crs.Revision++
	crs.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateCourse(ctx, crs)
}

// failCourse parks the course in FAILED with the reason stored; it is never
// left stuck mid-transition.
func (svc *Service) failCourse(ctx context.Context, id string, cause error) (Course, error) {
	lock := svc.courseLock(id)
	lock.Lock()
	defer lock.Unlock()

	crs, err := svc.repo.GetCourseByID(ctx, id)
	if err != nil {
		return Course{}, err
	}
	genErr := &GenerationFailedError{Reason: cause.Error(), Err: cause}
	if err = transition(&crs, StateFailed); err != nil {
		// already moved on (e.g. abandoned); discard the failure
		return Course{}, genErr
	}
	crs.FailureReason = cause.Error()
	crs.UpdatedAt = time.Now().UTC()
	if _, err = svc.repo.UpdateCourse(ctx, crs); err != nil {
		return Course{}, err
	}
	svc.logger.Error(fmt.Sprintf("course %s generation failed: %v", id, cause), cause)
	return crs, genErr
}

// Approve locks the outline sequence: REVIEW -> FINALIZED.
func (svc *Service) Approve(ctx context.Context, ownerID, id string) (Course, error) {
	return svc.transitionCourse(ctx, ownerID, id, StateFinalized)
}

// Start moves the course to IN_PROGRESS; idempotent if already IN_PROGRESS.
func (svc *Service) Start(ctx context.Context, ownerID, id string) (Course, error) {
	lock := svc.courseLock(id)
	lock.Lock()
	defer lock.Unlock()

	crs, err := svc.GetByID(ctx, ownerID, id)
	if err != nil {
		return Course{}, err
	}
	if crs.State == StateInProgress {
		return crs, nil
	}
	if err = transition(&crs, StateInProgress); err != nil {
		return Course{}, err
	}
	crs.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateCourse(ctx, crs)
}

// Delete soft-deletes the course; FeedbackRounds referencing it are kept.
// In-flight generation calls complete and their results are discarded.
func (svc *Service) Delete(ctx context.Context, ownerID, id string) error {
	lock := svc.courseLock(id)
	lock.Lock()
	defer lock.Unlock()

	if _, err := svc.GetByID(ctx, ownerID, id); err != nil {
		return err
	}
	return svc.repo.SoftDeleteCourse(ctx, id)
}

func (svc *Service) transitionCourse(ctx context.Context, ownerID, id string, to State) (Course, error) {
	lock := svc.courseLock(id)
	lock.Lock()
	defer lock.Unlock()

	crs, err := svc.GetByID(ctx, ownerID, id)
	if err != nil {
		return Course{}, err
	}
	if err = transition(&crs, to); err != nil {
		return Course{}, err
	}
	crs.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateCourse(ctx, crs)
}

func (svc *Service) sendCompletionMail(crs Course, email string) {
	if svc.mailSvc == nil || email == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Address: email}},
		Subject: "Course completed 🎉",
		BodyStr: fmt.Sprintf("Congratulations! You completed %q (%d chapters).", crs.Topic, len(crs.Outline)),
	})
}
