package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Reason codes
type Reason string

const (
	ReasonChapterCompleted Reason = "CHAPTER_COMPLETED"
	ReasonRedeemed         Reason = "REDEEMED"
	ReasonAdjustment       Reason = "ADJUSTMENT"
)

// Entry is one append-only ledger record. Entries are never mutated or
// deleted; corrections are new ADJUSTMENT entries.
type Entry struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Amount          int       `json:"amount"` // signed
	Reason          Reason    `json:"reason"`
	IdempotencyKey  string    `json:"-"`
	PartnerRef      string    `json:"partner_ref,omitempty"`
	CourseID        string    `json:"course_id,omitempty"`
	ChapterPosition int       `json:"chapter_position,omitempty"`
	Note            string    `json:"note,omitempty"`
	CreatedAt       time.Time `json:"created_at"` // UTC
}

// Balance is a derived projection of a user's entries; not a source of truth.
type Balance struct {
	UserID     string    `json:"user_id"`
	Points     int       `json:"points"`
	ComputedAt time.Time `json:"computed_at"` // UTC
}

// CompletionKey derives the deterministic idempotency key for a chapter
// completion so duplicate signals append at most one entry.
func CompletionKey(userID, courseID string, position int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("completion:%s:%s:%d", userID, courseID, position)))
	return hex.EncodeToString(sum[:])
}

// RedemptionKey derives the idempotency key for a redemption by partnerRef.
func RedemptionKey(partnerRef string) string {
	sum := sha256.Sum256([]byte("redeem:" + partnerRef))
	return hex.EncodeToString(sum[:])
}

// CompensationKey derives the idempotency key for the ADJUSTMENT entry that
// compensates a failed redemption.
func CompensationKey(partnerRef string) string {
	sum := sha256.Sum256([]byte("compensate:" + partnerRef))
	return hex.EncodeToString(sum[:])
}
