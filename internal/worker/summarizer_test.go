package worker

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddle-live/backend/internal/models"
)

func seg(name, text string) models.TranscriptSegment {
	return models.TranscriptSegment{SenderName: name, Text: text}
}

func TestSummarizeExtractsActionItems(t *testing.T) {
	s := &ExtractiveSummarizer{}
	summary, actions, err := s.Summarize(context.Background(), "planning", []models.TranscriptSegment{
		seg("alice", "welcome everyone to the quarterly planning session"),
		seg("bob", "TODO: update the roadmap document"),
		seg("carol", "we need to schedule the design review"),
		seg("bob", "thanks all"),
	})
	require.NoError(t, err)

	require.Len(t, actions, 2)
	assert.Equal(t, "bob: TODO: update the roadmap document", actions[0])
	assert.Equal(t, "carol: we need to schedule the design review", actions[1])

	// Action-flagged lines are not repeated in the summary.
	require.NotEmpty(t, summary)
	assert.Equal(t, "Recap of planning", summary[0])
	for _, line := range summary[1:] {
		assert.NotContains(t, line, "TODO")
	}
}

func TestSummarizeCapsAndKeepsSpokenOrder(t *testing.T) {
	s := &ExtractiveSummarizer{MaxSummaryLines: 3}
	var transcript []models.TranscriptSegment
	for i := 0; i < 10; i++ {
		// Longer and longer utterances; the last three score highest.
		transcript = append(transcript, seg("p", fmt.Sprintf("%02d %s", i, strings.Repeat("x", i*5))))
	}
	summary, _, err := s.Summarize(context.Background(), "", transcript)
	require.NoError(t, err)

	// No title line when the title is empty.
	require.Len(t, summary, 3)
	assert.True(t, strings.HasPrefix(summary[0], "p: 07"))
	assert.True(t, strings.HasPrefix(summary[1], "p: 08"))
	assert.True(t, strings.HasPrefix(summary[2], "p: 09"))
}

func TestSummarizeSkipsBlankSegments(t *testing.T) {
	s := &ExtractiveSummarizer{}
	summary, actions, err := s.Summarize(context.Background(), "t", []models.TranscriptSegment{
		seg("a", "   "),
		seg("b", ""),
	})
	require.NoError(t, err)
	assert.Empty(t, actions)
	assert.Equal(t, []string{"Recap of t"}, summary)
}
