package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/huddle-live/backend/internal/models"
)

// Role is a participant's role inside a session.
type Role string

const (
	RoleHost        Role = "host"
	RoleCoHost      Role = "co_host"
	RoleParticipant Role = "participant"
)

// MaxCoHosts is the number of concurrent co-hosts allowed per session.
const MaxCoHosts = 2

var (
	ErrHostExists    = errors.New("session already has a host")
	ErrCoHostLimit   = errors.New("co-host limit reached")
	ErrNotInSession  = errors.New("participant not in session")
	ErrTargetIsHost  = errors.New("target currently holds the host role")
	ErrInvalidRole   = errors.New("invalid role")
	ErrSessionLocked = errors.New("meeting is locked")
	ErrWrongPassword = errors.New("invalid meeting password")
	ErrSessionEnded  = errors.New("meeting has ended")
)

// Participant is one connected member of a session. ConnID is volatile and
// replaced on reconnect; ID is stable across reconnects.
type Participant struct {
	ID            uuid.UUID
	DisplayName   string
	Role          Role
	AudioMuted    bool
	VideoOff      bool
	HandRaised    bool
	VideoAllowed  bool
	ScreenSharing bool
	ConnID        string
	JoinedAt      time.Time
}

// State returns the wire form of the participant.
func (p *Participant) State() ParticipantState {
	return ParticipantState{
		ID:            p.ID,
		DisplayName:   p.DisplayName,
		Role:          p.Role,
		AudioMuted:    p.AudioMuted,
		VideoOff:      p.VideoOff,
		HandRaised:    p.HandRaised,
		VideoAllowed:  p.VideoAllowed,
		ScreenSharing: p.ScreenSharing,
		JoinedAt:      p.JoinedAt,
	}
}

// WaitingRoomEntry is a join attempt held for host/co-host admission.
type WaitingRoomEntry struct {
	UserID      uuid.UUID
	DisplayName string
	ConnID      string
	ArrivedAt   time.Time
}

// Session is the in-memory state of one live meeting. It is the only shared
// mutable server-side resource; all writes go through the Registry and the
// Broker, which call these methods.
type Session struct {
	MeetingID      uuid.UUID
	HostID         uuid.UUID
	OriginalHostID uuid.UUID
	Locked         bool
	Recording      bool
	Password       string
	Settings       models.MeetingSettings
	StartedAt      time.Time

	mu           sync.RWMutex
	participants map[uuid.UUID]*Participant
	waiting      map[uuid.UUID]*WaitingRoomEntry
	transcript   *TranscriptRing
}

// NewSession creates session state for a meeting on first join.
func NewSession(m *models.Meeting) *Session {
	return &Session{
		MeetingID:      m.ID,
		HostID:         m.HostID,
		OriginalHostID: m.OriginalHostID,
		Password:       m.Password,
		Settings:       m.Settings,
		StartedAt:      time.Now(),
		participants:   make(map[uuid.UUID]*Participant),
		waiting:        make(map[uuid.UUID]*WaitingRoomEntry),
		transcript:     NewTranscriptRing(TranscriptRetention),
	}
}

// CurrentHost returns the id of the participant holding the host role, or
// uuid.Nil while the room is host-less.
func (s *Session) CurrentHost() uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.HostID
}

// Get returns the participant with the given id, or nil.
func (s *Session) Get(id uuid.UUID) *Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.participants[id]
}

// RoleOf returns the current role of a participant, or RoleParticipant with
// ok=false when absent. Authority checks must use the current role, never a
// role claimed in the event payload.
func (s *Session) RoleOf(id uuid.UUID) (Role, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[id]
	if !ok {
		return RoleParticipant, false
	}
	return p.Role, true
}

// Add inserts a participant. A second entry for the same id is a reconnect:
// the stale entry is replaced in place, keeping role and media state, and the
// previous connection id is returned so the registry can drop it.
func (s *Session) Add(p *Participant) (staleConn string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.participants[p.ID]; ok {
		staleConn = prev.ConnID
		prev.ConnID = p.ConnID
		prev.DisplayName = p.DisplayName
		return staleConn
	}
	if p.Role == RoleHost {
		// Admitting a host restores the roster's host pointer; a host-less
		// room stops being host-less when its stored host walks back in.
		s.HostID = p.ID
	}
	s.participants[p.ID] = p
	return ""
}

// Remove deletes a participant by connection id; an id-based lookup would
// drop a freshly reconnected entry when the stale socket finally closes.
func (s *Session) Remove(connID string) *Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.participants {
		if p.ConnID == connID {
			delete(s.participants, id)
			return p
		}
	}
	return nil
}

// Roster returns a snapshot of all participants.
func (s *Session) Roster() []ParticipantState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ParticipantState, 0, len(s.participants))
	for _, p := range s.participants {
		out = append(out, p.State())
	}
	return out
}

// Size returns the participant count.
func (s *Session) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.participants)
}

// SetRole applies a role transition. Promoting to host fails while another
// participant holds the role (revocation first); co-hosts are capped at
// MaxCoHosts.
func (s *Session) SetRole(targetID uuid.UUID, role Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	target, ok := s.participants[targetID]
	if !ok {
		return ErrNotInSession
	}
	switch role {
	case RoleHost:
		for id, p := range s.participants {
			if p.Role == RoleHost && id != targetID {
				return ErrHostExists
			}
		}
		target.Role = RoleHost
		s.HostID = targetID
	case RoleCoHost:
		count := 0
		for id, p := range s.participants {
			if p.Role == RoleCoHost && id != targetID {
				count++
			}
		}
		if count >= MaxCoHosts {
			return ErrCoHostLimit
		}
		target.Role = RoleCoHost
	case RoleParticipant:
		if target.Role == RoleHost {
			s.HostID = uuid.Nil
		}
		target.Role = RoleParticipant
	default:
		return ErrInvalidRole
	}
	return nil
}

// UpdateMedia applies a media-state report to a participant's row and
// returns the updated wire state. Moderation writes and self reports both
// land here; the latest write wins.
func (s *Session) UpdateMedia(id uuid.UUID, patch MediaStatePayload) (ParticipantState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[id]
	if !ok {
		return ParticipantState{}, ErrNotInSession
	}
	if patch.AudioMuted != nil {
		p.AudioMuted = *patch.AudioMuted
	}
	if patch.VideoOff != nil {
		p.VideoOff = *patch.VideoOff
	}
	if patch.ScreenSharing != nil {
		p.ScreenSharing = *patch.ScreenSharing
	}
	return p.State(), nil
}

// SetHandRaised toggles the hand flag and returns the updated state.
func (s *Session) SetHandRaised(id uuid.UUID, raised bool) (ParticipantState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[id]
	if !ok {
		return ParticipantState{}, ErrNotInSession
	}
	p.HandRaised = raised
	return p.State(), nil
}

// SetVideoAllowed flips the moderation override on a participant's video.
func (s *Session) SetVideoAllowed(id uuid.UUID, allowed bool) (ParticipantState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[id]
	if !ok {
		return ParticipantState{}, ErrNotInSession
	}
	p.VideoAllowed = allowed
	if !allowed {
		p.VideoOff = true
	}
	return p.State(), nil
}

// MuteAll mutes every participant except the actor and returns the updated
// states for broadcast.
func (s *Session) MuteAll(actorID uuid.UUID) []ParticipantState {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ParticipantState
	for id, p := range s.participants {
		if id == actorID {
			continue
		}
		p.AudioMuted = true
		out = append(out, p.State())
	}
	return out
}

// StopVideoAll turns off video for every participant except the actor.
func (s *Session) StopVideoAll(actorID uuid.UUID) []ParticipantState {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ParticipantState
	for id, p := range s.participants {
		if id == actorID {
			continue
		}
		p.VideoOff = true
		out = append(out, p.State())
	}
	return out
}

// AddWaiting queues a join attempt for admission. Re-arrival of the same
// user replaces the entry (reconnect while waiting).
func (s *Session) AddWaiting(e *WaitingRoomEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waiting[e.UserID] = e
}

// TakeWaiting removes and returns a waiting entry. Missing entries return
// nil: admit/deny of an absent user is an idempotent no-op.
func (s *Session) TakeWaiting(userID uuid.UUID) *WaitingRoomEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.waiting[userID]
	if !ok {
		return nil
	}
	delete(s.waiting, userID)
	return e
}

// RemoveWaitingByConn drops a waiting entry when its connection disconnects.
func (s *Session) RemoveWaitingByConn(connID string) *WaitingRoomEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.waiting {
		if e.ConnID == connID {
			delete(s.waiting, id)
			return e
		}
	}
	return nil
}

// Waiting returns a snapshot of waiting-room entries.
func (s *Session) Waiting() []WaitingPayload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]WaitingPayload, 0, len(s.waiting))
	for _, e := range s.waiting {
		out = append(out, WaitingPayload{UserID: e.UserID, DisplayName: e.DisplayName, ArrivedAt: e.ArrivedAt})
	}
	return out
}

// ApplySettings merges a settings patch and returns the result.
func (s *Session) ApplySettings(patch SettingsPatch) models.MeetingSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	if patch.WaitingRoomEnabled != nil {
		s.Settings.WaitingRoomEnabled = *patch.WaitingRoomEnabled
	}
	if patch.AllowSelfUnmute != nil {
		s.Settings.AllowSelfUnmute = *patch.AllowSelfUnmute
	}
	if patch.ScreenSharePolicy != nil {
		s.Settings.ScreenSharePolicy = *patch.ScreenSharePolicy
	}
	if patch.WhiteboardPolicy != nil {
		s.Settings.WhiteboardPolicy = *patch.WhiteboardPolicy
	}
	return s.Settings
}

// Transcript returns the session's caption ring.
func (s *Session) Transcript() *TranscriptRing {
	return s.transcript
}
