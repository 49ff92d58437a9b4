package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/coursegen/core"
)

var (
	ErrEntryNotFound      = errors.New("ledger entry not found")
	ErrDuplicateEntry     = errors.New("an entry with this idempotency key already exists")
	ErrInsufficientPoints = errors.New("insufficient points")
)

// GatewayError wraps a redemption partner failure. The REDEEMED entry has
// been compensated by an ADJUSTMENT; the balance is unchanged.
type GatewayError struct {
	PartnerRef string
	Err        error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("redemption %s failed at the gateway: %v", e.PartnerRef, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// IntegrityError signals a negative running sum for a user: a data-integrity
// bug, never silently corrected. Writes for the user are frozen pending
// manual reconciliation.
type IntegrityError struct {
	UserID string
	Sum    int
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("ledger integrity violation for user %s: running sum %d < 0; writes frozen", e.UserID, e.Sum)
}

type (
	Repository interface {
		// CreateEntry appends an entry; returns ErrDuplicateEntry if the
		// idempotency key is already present.
		CreateEntry(ctx context.Context, entry Entry) (Entry, error)
		GetEntryByIdempotencyKey(ctx context.Context, key string) (Entry, error)
		QueryEntriesByUser(ctx context.Context, userID string) ([]Entry, error)
		SumAmountByUser(ctx context.Context, userID string) (int, error)
	}

	Service struct {
		repo    Repository
		gateway core.RedemptionGateway
		logger  core.Logger
		conf    *core.Config

		mu     sync.Mutex // guards locks & frozen
		locks  map[string]*sync.Mutex
		frozen map[string]bool
	}
)

func NewService(repo Repository, gateway core.RedemptionGateway, logger core.Logger, conf *core.Config) *Service {
	return &Service{
		repo:    repo,
		gateway: gateway,
		logger:  logger,
		conf:    conf,
		locks:   make(map[string]*sync.Mutex),
		frozen:  make(map[string]bool),
	}
}

// userLock returns the exclusive section for one user; balance checks and
// appends for the same user never interleave.
func (svc *Service) userLock(userID string) *sync.Mutex {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	l, ok := svc.locks[userID]
	if !ok {
		l = new(sync.Mutex)
		svc.locks[userID] = l
	}
	return l
}

func (svc *Service) isFrozen(userID string) bool {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.frozen[userID]
}

func (svc *Service) setFrozen(userID string, frozen bool) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if frozen {
		svc.frozen[userID] = true
	} else {
		delete(svc.frozen, userID)
	}
}

// checkIntegrity verifies the balance invariant; a violation freezes the user
// and escalates as a shutdown-grade error.
func (svc *Service) checkIntegrity(ctx context.Context, userID string) (int, error) {
	sum, err := svc.repo.SumAmountByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if sum < 0 {
		svc.setFrozen(userID, true)
		intErr := &IntegrityError{UserID: userID, Sum: sum}
		svc.logger.Error(intErr.Error(), intErr)
		return sum, errors.Wrap(core.NewShutdownError(intErr.Error()), intErr.Error())
	}
	return sum, nil
}

// RecordCompletion credits the chapter-completion points at most once per
// (userID, courseID, position); a duplicate signal is a no-op success
// returning the original entry.
func (svc *Service) RecordCompletion(ctx context.Context, userID, courseID string, position int) (Entry, error) {
	lock := svc.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	key := CompletionKey(userID, courseID, position)
	if existing, err := svc.repo.GetEntryByIdempotencyKey(ctx, key); err == nil {
		return existing, nil
	} else if errors.Cause(err) != ErrEntryNotFound {
		return Entry{}, err
	}

	if svc.isFrozen(userID) {
		sum, _ := svc.repo.SumAmountByUser(ctx, userID)
		return Entry{}, &IntegrityError{UserID: userID, Sum: sum}
	}

	entry := Entry{
		ID:              uuid.New().String(),
		UserID:          userID,
		Amount:          svc.conf.Course.PointsPerChapter,
		Reason:          ReasonChapterCompleted,
		IdempotencyKey:  key,
		CourseID:        courseID,
		ChapterPosition: position,
		CreatedAt:       time.Now().UTC(),
	}
	entry, err := svc.repo.CreateEntry(ctx, entry)
	if errors.Cause(err) == ErrDuplicateEntry {
		return svc.repo.GetEntryByIdempotencyKey(ctx, key)
	}
	return entry, err
}

// ChapterCompleted consumes course completion events (course.CompletionListener).
func (svc *Service) ChapterCompleted(ctx context.Context, userID, courseID string, position int) error {
	_, err := svc.RecordCompletion(ctx, userID, courseID, position)
	return err
}

// Redeem checks the projected balance, appends a REDEEMED entry and confirms
// with the partner gateway. A gateway failure is compensated by an ADJUSTMENT
// entry restoring the amount; the REDEEMED entry is never deleted or edited.
func (svc *Service) Redeem(ctx context.Context, userID string, amount int, partnerRef string) (Entry, error) {
	if amount <= 0 {
		return Entry{}, core.NewValidationError(nil, core.FieldError{Field: "amount", Error: "must be positive"})
	}
	if partnerRef == "" {
		return Entry{}, core.NewValidationError(nil, core.FieldError{Field: "partner_ref", Error: "this field is required"})
	}

	lock := svc.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if svc.isFrozen(userID) {
		sum, _ := svc.repo.SumAmountByUser(ctx, userID)
		return Entry{}, &IntegrityError{UserID: userID, Sum: sum}
	}
	sum, err := svc.checkIntegrity(ctx, userID)
	if err != nil {
		return Entry{}, err
	}

	key := RedemptionKey(partnerRef)
	entry, err := svc.repo.GetEntryByIdempotencyKey(ctx, key)
	switch {
	case err == nil:
		// client retry; the gateway is idempotent by partnerRef. A compensated
		// redemption is terminal for its partnerRef though: retrying it would
		// debit nothing while crediting the partner.
		if _, cErr := svc.repo.GetEntryByIdempotencyKey(ctx, CompensationKey(partnerRef)); cErr == nil {
			return Entry{}, core.NewValidationError(nil,
				core.FieldError{Field: "partner_ref", Error: "this redemption already failed and was compensated; submit a new reference"})
		}
	case errors.Cause(err) == ErrEntryNotFound:
		if sum < amount {
			return Entry{}, ErrInsufficientPoints // fail fast, no writes
		}
		entry = Entry{
			ID:             uuid.New().String(),
			UserID:         userID,
			Amount:         -amount,
			Reason:         ReasonRedeemed,
			IdempotencyKey: key,
			PartnerRef:     partnerRef,
			CreatedAt:      time.Now().UTC(),
		}
		if entry, err = svc.repo.CreateEntry(ctx, entry); err != nil {
			return Entry{}, err
		}
	default:
		return Entry{}, err
	}

	gwCtx, cancel := context.WithTimeout(ctx, svc.conf.Redemption.Timeout)
	defer cancel()
	if _, err = svc.gateway.Redeem(gwCtx, userID, amount, partnerRef); err != nil {
		if compErr := svc.compensate(ctx, entry); compErr != nil {
			return Entry{}, compErr
		}
		return Entry{}, &GatewayError{PartnerRef: partnerRef, Err: err}
	}
	return entry, nil
}

// compensate appends the ADJUSTMENT entry restoring the amount of a REDEEMED
// entry whose gateway call failed. Idempotent by partnerRef.
func (svc *Service) compensate(ctx context.Context, redeemed Entry) error {
	entry := Entry{
		ID:             uuid.New().String(),
		UserID:         redeemed.UserID,
		Amount:         -redeemed.Amount,
		Reason:         ReasonAdjustment,
		IdempotencyKey: CompensationKey(redeemed.PartnerRef),
		PartnerRef:     redeemed.PartnerRef,
		Note:           "compensating failed redemption",
		CreatedAt:      time.Now().UTC(),
	}
	_, err := svc.repo.CreateEntry(ctx, entry)
	if errors.Cause(err) == ErrDuplicateEntry {
		return nil
	}
	return err
}

// Adjust appends a manual correction entry. Allowed on frozen users: manual
// reconciliation is exactly what unfreezes them once the sum is restored.
func (svc *Service) Adjust(ctx context.Context, userID string, amount int, note string) (Entry, error) {
	if amount == 0 {
		return Entry{}, core.NewValidationError(nil, core.FieldError{Field: "amount", Error: "must be non-zero"})
	}

	lock := svc.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	entry := Entry{
		ID:             uuid.New().String(),
		UserID:         userID,
		Amount:         amount,
		Reason:         ReasonAdjustment,
		IdempotencyKey: uuid.New().String(),
		Note:           note,
		CreatedAt:      time.Now().UTC(),
	}
	entry, err := svc.repo.CreateEntry(ctx, entry)
	if err != nil {
		return Entry{}, err
	}

	if sum, err := svc.repo.SumAmountByUser(ctx, userID); err == nil && sum >= 0 {
		svc.setFrozen(userID, false)
	}
	return entry, nil
}

// GetBalance computes the projection from entries; it may be rebuilt at any
// time. A negative sum is surfaced, never silently corrected.
func (svc *Service) GetBalance(ctx context.Context, userID string) (Balance, error) {
	sum, err := svc.checkIntegrity(ctx, userID)
	if err != nil {
		return Balance{}, err
	}
	return Balance{UserID: userID, Points: sum, ComputedAt: time.Now().UTC()}, nil
}

func (svc *Service) QueryEntries(ctx context.Context, userID string) ([]Entry, error) {
	return svc.repo.QueryEntriesByUser(ctx, userID)
}
