package worker

import (
	"context"
	"sort"
	"strings"

	"github.com/huddle-live/backend/internal/models"
)

// Summarizer turns a transcript tail into recap summary lines and action
// items. The default is extractive; a chat-completion backed implementation
// can be swapped in behind this interface.
type Summarizer interface {
	Summarize(ctx context.Context, title string, transcript []models.TranscriptSegment) (summary, actionItems []string, err error)
}

// actionMarkers flag utterances that read like follow-ups.
var actionMarkers = []string{"todo", "action item", "follow up", "we need to", "i will", "we will", "let's "}

// ExtractiveSummarizer builds a recap without any model call: the longest
// utterances become the summary, marker-bearing utterances become action
// items.
type ExtractiveSummarizer struct {
	// MaxSummaryLines caps the summary length; zero means 5.
	MaxSummaryLines int
}

// Summarize implements Summarizer.
func (s *ExtractiveSummarizer) Summarize(_ context.Context, title string, transcript []models.TranscriptSegment) ([]string, []string, error) {
	maxLines := s.MaxSummaryLines
	if maxLines <= 0 {
		maxLines = 5
	}

	var actionItems []string
	type scored struct {
		text  string
		score int
		pos   int
	}
	var candidates []scored
	for i, seg := range transcript {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		lower := strings.ToLower(text)
		isAction := false
		for _, marker := range actionMarkers {
			if strings.Contains(lower, marker) {
				isAction = true
				break
			}
		}
		if isAction {
			actionItems = append(actionItems, seg.SenderName+": "+text)
			continue
		}
		candidates = append(candidates, scored{text: seg.SenderName + ": " + text, score: len(text), pos: i})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > maxLines {
		candidates = candidates[:maxLines]
	}
	// Present picked lines in spoken order.
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].pos < candidates[j].pos })

	summary := make([]string, 0, len(candidates)+1)
	if title != "" {
		summary = append(summary, "Recap of "+title)
	}
	for _, c := range candidates {
		summary = append(summary, c.text)
	}
	return summary, actionItems, nil
}
