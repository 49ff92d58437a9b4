package textgensvc

import (
	"context"
	"fmt"

	"github.com/trezcool/coursegen/core"
)

// dummyService is a deterministic stand-in for debug mode and tests: initial
// drafts get a fixed chapter progression, refinement rounds keep the prior
// outline and append one chapter derived from the feedback.
type dummyService struct{}

var _ core.TextGenerator = (*dummyService)(nil)

func NewDummyService() core.TextGenerator {
	return &dummyService{}
}

var dummyProgression = []string{
	"Getting Started",
	"Core Concepts",
	"Hands-on Practice",
	"Common Pitfalls",
	"Advanced Techniques",
	"Putting It All Together",
}

func (dummyService) GenerateOutline(_ context.Context, req core.OutlineRequest) (core.OutlineDraft, error) {
	if len(req.PriorOutline) > 0 {
		chapters := make([]core.OutlineEntry, len(req.PriorOutline), len(req.PriorOutline)+1)
		copy(chapters, req.PriorOutline)
		chapters = append(chapters, core.OutlineEntry{
			Title:         fmt.Sprintf("Follow-up: %.60s", req.Feedback),
			Summary:       fmt.Sprintf("Material added in response to feedback: %s", req.Feedback),
			EffortMinutes: 30,
		})
		return core.OutlineDraft{Chapters: chapters}, nil
	}

	n := req.MinChapters + 2
	if n > req.MaxChapters {
		n = req.MaxChapters
	}
	if n > len(dummyProgression) {
		n = len(dummyProgression)
	}
	chapters := make([]core.OutlineEntry, 0, n)
	for i := 0; i < n; i++ {
		chapters = append(chapters, core.OutlineEntry{
			Title:         fmt.Sprintf("%s: %s", req.Topic, dummyProgression[i]),
			Summary:       fmt.Sprintf("%s of %s at %s level.", dummyProgression[i], req.Topic, req.Difficulty),
			EffortMinutes: 30 + 10*i,
		})
	}
	return core.OutlineDraft{Chapters: chapters}, nil
}

func (dummyService) GenerateChapter(_ context.Context, req core.ChapterRequest) (string, error) {
	return fmt.Sprintf("# %s\n\n%s\n\n_(generated placeholder for chapter %d of %q)_\n",
		req.Title, req.Summary, req.Position, req.Topic), nil
}
