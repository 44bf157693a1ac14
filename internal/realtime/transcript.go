package realtime

import (
	"sync"

	"github.com/huddle-live/backend/internal/models"
)

// TranscriptRetention is the number of trailing caption segments kept per
// session for the post-meeting recap. Everything older is dropped.
const TranscriptRetention = 50

// TranscriptRing holds the trailing transcript segments of a session in
// arrival order. Two participants speaking at once may interleave; no order
// stronger than broker arrival is kept.
type TranscriptRing struct {
	mu   sync.Mutex
	cap  int
	segs []models.TranscriptSegment
}

// NewTranscriptRing creates a ring retaining at most capacity segments.
func NewTranscriptRing(capacity int) *TranscriptRing {
	return &TranscriptRing{cap: capacity}
}

// Append adds a segment, evicting the oldest when full.
func (r *TranscriptRing) Append(seg models.TranscriptSegment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.segs = append(r.segs, seg)
	if len(r.segs) > r.cap {
		r.segs = r.segs[len(r.segs)-r.cap:]
	}
}

// Snapshot returns the retained segments oldest-first.
func (r *TranscriptRing) Snapshot() []models.TranscriptSegment {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.TranscriptSegment, len(r.segs))
	copy(out, r.segs)
	return out
}

// Len returns the number of retained segments.
func (r *TranscriptRing) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.segs)
}
