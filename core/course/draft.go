package course

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/coursegen/core"
)

var (
	sleepFunc = time.Sleep // mockable

	errEmptyTitle   = errors.New("draft chapter with empty title")
	errEmptySummary = errors.New("draft chapter with empty summary")
)

const defaultEffortMinutes = 30

// generateOutline drives the text-generation capability with bounded
// exponential backoff and validates the draft against the minimal schema
// before accepting it. prior and feedback are only set on refinement rounds.
func (svc *Service) generateOutline(ctx context.Context, crs Course, prior []ChapterOutline, feedback string, keep []string) ([]ChapterOutline, error) {
	req := core.OutlineRequest{
		Topic:        crs.Topic,
		Difficulty:   crs.Difficulty,
		CodingRatio:  crs.CodingRatio,
		MinChapters:  svc.conf.Course.MinChapters,
		MaxChapters:  svc.conf.Course.MaxChapters,
		PriorOutline: toOutlineEntries(prior),
		Feedback:     feedback,
	}

	var lastErr error
	for attempt := 0; attempt < svc.conf.Anthropic.MaxAttempts; attempt++ {
		if attempt > 0 {
			sleepFunc(backoffDuration(attempt))
		}

		draft, err := svc.gen.GenerateOutline(ctx, req)
		if err != nil {
			lastErr = err
			svc.logger.Warn(fmt.Sprintf("outline generation attempt %d/%d failed: %v", attempt+1, svc.conf.Anthropic.MaxAttempts, err))
			continue
		}
		outline, err := svc.validateDraft(draft)
		if err != nil {
			lastErr = errors.Wrap(core.ErrMalformedDraft, err.Error())
			svc.logger.Warn(fmt.Sprintf("outline draft rejected on attempt %d/%d: %v", attempt+1, svc.conf.Anthropic.MaxAttempts, err))
			continue
		}
		return preserveKept(outline, prior, keep), nil
	}
	return nil, errors.Wrapf(lastErr, "outline generation exhausted %d attempts", svc.conf.Anthropic.MaxAttempts)
}

// validateDraft enforces the minimal draft schema: bounded chapter count,
// non-empty titles and summaries. Positions are (re)assigned densely.
func (svc *Service) validateDraft(draft core.OutlineDraft) ([]ChapterOutline, error) {
	n := len(draft.Chapters)
	if n < svc.conf.Course.MinChapters || n > svc.conf.Course.MaxChapters {
		return nil, errors.Errorf("draft has %d chapters, want %d-%d", n, svc.conf.Course.MinChapters, svc.conf.Course.MaxChapters)
	}

	outline := make([]ChapterOutline, 0, n)
	for i, ch := range draft.Chapters {
		title := core.CleanString(ch.Title)
		summary := core.CleanString(ch.Summary)
		if title == "" {
			return nil, errEmptyTitle
		}
		if summary == "" {
			return nil, errEmptySummary
		}
		effort := ch.EffortMinutes
		if effort <= 0 {
			effort = defaultEffortMinutes
		}
		outline = append(outline, ChapterOutline{
			Position:      i + 1,
			Title:         title,
			Summary:       summary,
			EffortMinutes: effort,
			Status:        GenNotGenerated,
		})
	}
	return outline, nil
}

// preserveKept guarantees continuity: chapters the user marked "keep" are
// never silently dropped. Any kept prior chapter missing from the new draft
// is re-appended at the end.
func preserveKept(outline, prior []ChapterOutline, keep []string) []ChapterOutline {
	if len(keep) == 0 || len(prior) == 0 {
		return outline
	}

	have := make(map[string]bool, len(outline))
	for _, ch := range outline {
		have[strings.ToLower(ch.Title)] = true
	}
	kept := make(map[string]bool, len(keep))
	for _, title := range keep {
		kept[strings.ToLower(title)] = true
	}

	for _, ch := range prior {
		if kept[strings.ToLower(ch.Title)] && !have[strings.ToLower(ch.Title)] {
			ch.Position = len(outline) + 1
			ch.Status = GenNotGenerated
			ch.Consumed = false
			ch.ConsumedAt = nil
			outline = append(outline, ch)
		}
	}
	return outline
}

// outlineDiff renders the unified diff of two outline sequences, recorded on
// the FeedbackRound audit trail.
func outlineDiff(prior, next []ChapterOutline, priorRevision int) string {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        renderOutline(prior),
		B:        renderOutline(next),
		FromFile: fmt.Sprintf("revision %d", priorRevision),
		ToFile:   fmt.Sprintf("revision %d", priorRevision+1),
		Context:  2,
	})
	if err != nil {
		return ""
	}
	return diff
}

func renderOutline(outline []ChapterOutline) []string {
	lines := make([]string, 0, len(outline))
	for _, ch := range outline {
		lines = append(lines, fmt.Sprintf("%d. %s: %s\n", ch.Position, ch.Title, ch.Summary))
	}
	return lines
}

func toOutlineEntries(outline []ChapterOutline) []core.OutlineEntry {
	if outline == nil {
		return nil
	}
	entries := make([]core.OutlineEntry, 0, len(outline))
	for _, ch := range outline {
		entries = append(entries, core.OutlineEntry{
			Title:         ch.Title,
			Summary:       ch.Summary,
			EffortMinutes: ch.EffortMinutes,
		})
	}
	return entries
}

func backoffDuration(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * 500 * time.Millisecond
}
