package course

import (
	"time"

	"github.com/trezcool/coursegen/core"
)

// Difficulties
const (
	DifficultyBeginner     = "beginner"
	DifficultyIntermediate = "intermediate"
	DifficultyAdvanced     = "advanced"
)

// State is the lifecycle state of a Course.
type State string

const (
	StateDrafting   State = "DRAFTING"
	StateReview     State = "REVIEW"
	StateFinalized  State = "FINALIZED"
	StateInProgress State = "IN_PROGRESS"
	StateCompleted  State = "COMPLETED"
	StateFailed     State = "FAILED"
)

// GenStatus is the generation status of a single chapter.
type GenStatus string

const (
	GenNotGenerated GenStatus = "NOT_GENERATED"
	GenGenerating   GenStatus = "GENERATING"
	GenReady        GenStatus = "READY"
	GenFailed       GenStatus = "FAILED"
)

// Topics is the built-in topic catalog; free-text topics are also accepted.
var Topics = []string{
	"Go Fundamentals",
	"Graph Algorithms",
	"Distributed Systems",
	"Relational Databases & SQL",
	"Machine Learning Basics",
	"Web Application Security",
}

type Course struct {
	ID            string           `json:"id"`
	OwnerID       string           `json:"owner_id"`
	Topic         string           `json:"topic"`
	Difficulty    string           `json:"difficulty"`
	CodingRatio   int              `json:"coding_ratio"` // % coding vs theory
	State         State            `json:"state"`
	Outline       []ChapterOutline `json:"outline"`
	Revision      int              `json:"revision"`
	FailureReason string           `json:"failure_reason,omitempty"`
	CreatedAt     time.Time        `json:"created_at"` // UTC
	UpdatedAt     time.Time        `json:"updated_at"` // UTC
	DeletedAt     *time.Time       `json:"-"`
}

// CanEditOutline reports whether the outline sequence is still mutable.
func (c *Course) CanEditOutline() bool {
	return c.State == StateDrafting || c.State == StateReview
}

func (c *Course) IsDeleted() bool { return c.DeletedAt != nil }

// Chapter returns the outline entry at the given 1-based position.
func (c *Course) Chapter(position int) (*ChapterOutline, bool) {
	if position < 1 || position > len(c.Outline) {
		return nil, false
	}
	return &c.Outline[position-1], true
}

func (c *Course) LastPosition() int { return len(c.Outline) }

type ChapterOutline struct {
	Position      int        `json:"position"` // 1-based, dense
	Title         string     `json:"title"`
	Summary       string     `json:"summary"`
	EffortMinutes int        `json:"effort_minutes"`
	Status        GenStatus  `json:"status"`
	FailureReason string     `json:"failure_reason,omitempty"`
	Consumed      bool       `json:"consumed"`
	ConsumedAt    *time.Time `json:"consumed_at,omitempty"` // UTC
}

// ChapterContent is a generated chapter body. Immutable once written;
// regeneration creates a new version rather than overwriting.
type ChapterContent struct {
	ID        string    `json:"id"`
	CourseID  string    `json:"course_id"`
	Position  int       `json:"position"`
	Version   int       `json:"version"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// FeedbackRound is the append-only audit record of one refinement round.
type FeedbackRound struct {
	ID              string    `json:"id"`
	CourseID        string    `json:"course_id"`
	Feedback        string    `json:"feedback"`
	Keep            []string  `json:"keep,omitempty"` // chapter titles the user marked "keep"
	AppliedRevision int       `json:"applied_revision"`
	Diff            string    `json:"diff"` // unified diff of the outline sequence
	CreatedAt       time.Time `json:"created_at"` // UTC
}

// NewCourse contains information needed to submit a new Course.
type NewCourse struct {
	Topic       string `json:"topic" validate:"required,min=3,max=120"`
	Difficulty  string `json:"difficulty" validate:"required,oneof=beginner intermediate advanced"`
	CodingRatio int    `json:"coding_ratio" validate:"min=0,max=100"`
}

func (nc *NewCourse) Validate() error {
	nc.Topic = core.CleanString(nc.Topic)
	nc.Difficulty = core.CleanString(nc.Difficulty, true /* lower */)
	return core.Validate.Struct(nc)
}

// Feedback defines one refinement round submitted against a drafted outline.
type Feedback struct {
	Text     string   `json:"text" validate:"required,min=3"`
	Keep     []string `json:"keep" validate:"omitempty,dive,required"`
	Override bool     `json:"override"` // bypass the refinement round bound, once
}

func (fb *Feedback) Validate() error {
	fb.Text = core.CleanString(fb.Text)
	for i, k := range fb.Keep {
		fb.Keep[i] = core.CleanString(k)
	}
	return core.Validate.Struct(fb)
}
