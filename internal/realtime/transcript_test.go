package realtime

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddle-live/backend/internal/models"
)

func TestTranscriptRingEvictsOldest(t *testing.T) {
	ring := NewTranscriptRing(TranscriptRetention)
	for i := 0; i < TranscriptRetention+10; i++ {
		ring.Append(models.TranscriptSegment{Text: fmt.Sprintf("seg-%d", i), Timestamp: time.Now()})
	}

	assert.Equal(t, TranscriptRetention, ring.Len())
	segs := ring.Snapshot()
	require.Len(t, segs, TranscriptRetention)
	// The oldest ten fell off; order is preserved.
	assert.Equal(t, "seg-10", segs[0].Text)
	assert.Equal(t, fmt.Sprintf("seg-%d", TranscriptRetention+9), segs[len(segs)-1].Text)
}

func TestTranscriptRingSnapshotIsCopy(t *testing.T) {
	ring := NewTranscriptRing(4)
	ring.Append(models.TranscriptSegment{Text: "a"})
	snap := ring.Snapshot()
	ring.Append(models.TranscriptSegment{Text: "b"})
	assert.Len(t, snap, 1)
	assert.Equal(t, 2, ring.Len())
}
