package core

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// ErrMalformedDraft is returned by TextGenerator implementations when the
	// capability answers with content that cannot be decoded. Callers treat it
	// as retryable, same as a timeout.
	ErrMalformedDraft = errors.New("text generation returned malformed content")
)

type (
	// OutlineRequest describes a table-of-contents generation call.
	// PriorOutline and Feedback are only set on refinement rounds.
	OutlineRequest struct {
		Topic        string
		Difficulty   string
		CodingRatio  int // percentage of hands-on coding vs theory, 0-100
		MinChapters  int
		MaxChapters  int
		PriorOutline []OutlineEntry
		Feedback     string
	}

	OutlineEntry struct {
		Title         string `json:"title"`
		Summary       string `json:"summary"`
		EffortMinutes int    `json:"effort_minutes"`
	}

	OutlineDraft struct {
		Chapters []OutlineEntry `json:"chapters"`
	}

	// ChapterRequest describes a chapter body generation call.
	ChapterRequest struct {
		Topic       string
		Difficulty  string
		CodingRatio int
		Position    int
		Title       string
		Summary     string
		Outline     []OutlineEntry // full course outline, for context
	}

	// TextGenerator is the text-generation capability consumed by the course
	// pipeline. Both calls may time out or return malformed content; callers
	// own the retry policy.
	TextGenerator interface {
		GenerateOutline(ctx context.Context, req OutlineRequest) (OutlineDraft, error)
		GenerateChapter(ctx context.Context, req ChapterRequest) (string, error)
	}
)
