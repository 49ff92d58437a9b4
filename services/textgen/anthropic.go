package textgensvc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/pkg/errors"

	"github.com/trezcool/coursegen/core"
)

const outlineSystemPrompt = `You are a curriculum designer. You answer with a single JSON object and nothing else.
The object has a "chapters" array; each chapter has "title" (string), "summary" (string, 2-3 sentences)
and "effort_minutes" (int). No markdown fences, no commentary.`

const chapterSystemPrompt = `You are a technical course author. You write one complete chapter in markdown:
an intro, well-structured sections, and a short recap. Code samples where the coding ratio warrants them.`

type anthropicService struct {
	client *anthropic.Client
	model  anthropic.Model
	conf   *core.Config
}

var _ core.TextGenerator = (*anthropicService)(nil)

func NewAnthropicService(conf *core.Config) *anthropicService {
	client := anthropic.NewClient(option.WithAPIKey(conf.Anthropic.ApiKey))
	return &anthropicService{
		client: &client,
		model:  anthropic.Model(conf.Anthropic.Model),
		conf:   conf,
	}
}

func (svc *anthropicService) GenerateOutline(ctx context.Context, req core.OutlineRequest) (core.OutlineDraft, error) {
	prompt := new(strings.Builder)
	_, _ = fmt.Fprintf(prompt, "Design a course outline on %q at %s level.\n", req.Topic, req.Difficulty)
	_, _ = fmt.Fprintf(prompt, "Weight the material %d%% hands-on coding, %d%% theory.\n", req.CodingRatio, 100-req.CodingRatio)
	_, _ = fmt.Fprintf(prompt, "Produce between %d and %d chapters.\n", req.MinChapters, req.MaxChapters)

	if len(req.PriorOutline) > 0 {
		_, _ = fmt.Fprint(prompt, "\nRevise this existing outline:\n")
		for i, ch := range req.PriorOutline {
			_, _ = fmt.Fprintf(prompt, "%d. %s: %s\n", i+1, ch.Title, ch.Summary)
		}
	}
	if req.Feedback != "" {
		_, _ = fmt.Fprintf(prompt, "\nApply this feedback from the learner:\n%s\n", req.Feedback)
	}

	text, err := svc.complete(ctx, outlineSystemPrompt, prompt.String())
	if err != nil {
		return core.OutlineDraft{}, err
	}

	var draft core.OutlineDraft
	if err = json.Unmarshal([]byte(extractJSON(text)), &draft); err != nil {
		return core.OutlineDraft{}, errors.Wrap(core.ErrMalformedDraft, err.Error())
	}
	return draft, nil
}

func (svc *anthropicService) GenerateChapter(ctx context.Context, req core.ChapterRequest) (string, error) {
	prompt := new(strings.Builder)
	_, _ = fmt.Fprintf(prompt, "Course: %q (%s level, %d%% coding).\n", req.Topic, req.Difficulty, req.CodingRatio)
	_, _ = fmt.Fprint(prompt, "Full outline:\n")
	for i, ch := range req.Outline {
		_, _ = fmt.Fprintf(prompt, "%d. %s: %s\n", i+1, ch.Title, ch.Summary)
	}
	_, _ = fmt.Fprintf(prompt, "\nWrite chapter %d, %q.\nIt should cover: %s\n", req.Position, req.Title, req.Summary)

	return svc.complete(ctx, chapterSystemPrompt, prompt.String())
}

func (svc *anthropicService) complete(ctx context.Context, system, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, svc.conf.Anthropic.Timeout)
	defer cancel()

	resp, err := svc.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     svc.model,
		MaxTokens: int64(svc.conf.Anthropic.MaxTokens),
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", errors.Wrap(err, "calling anthropic")
	}

	text := new(strings.Builder)
	for _, block := range resp.Content {
		if b, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(b.Text)
		}
	}
	if text.Len() == 0 {
		return "", errors.Wrap(core.ErrMalformedDraft, "empty completion")
	}
	return text.String(), nil
}

// extractJSON strips any stray prose or markdown fences around the JSON object.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}
