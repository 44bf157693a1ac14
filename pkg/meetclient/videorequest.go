package meetclient

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// VideoRequestTimeout is how long an incoming video-start request may sit
// unanswered before it auto-resolves to denied. Client-local; no server
// round-trip occurs on expiry.
const VideoRequestTimeout = 30 * time.Second

// VideoRequest is a pending ask from a moderator that this participant turn
// their camera on. It resolves exactly once: by the user accepting or
// declining, or by the deadline. A late click after expiry is ignored.
type VideoRequest struct {
	FromID   uuid.UUID
	FromName string

	once    sync.Once
	timer   *time.Timer
	resolve func(accepted bool)
}

// NewVideoRequest starts the 30 second clock. resolve is invoked exactly once
// with the outcome.
func NewVideoRequest(fromID uuid.UUID, fromName string, resolve func(accepted bool)) *VideoRequest {
	r := &VideoRequest{FromID: fromID, FromName: fromName, resolve: resolve}
	r.timer = time.AfterFunc(VideoRequestTimeout, func() { r.finish(false) })
	return r
}

// Accept resolves the request as accepted, if still pending.
func (r *VideoRequest) Accept() { r.finish(true) }

// Decline resolves the request as denied, if still pending.
func (r *VideoRequest) Decline() { r.finish(false) }

func (r *VideoRequest) finish(accepted bool) {
	r.once.Do(func() {
		r.timer.Stop()
		r.resolve(accepted)
	})
}
