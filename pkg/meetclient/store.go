package meetclient

import (
	"sync"

	"github.com/google/uuid"

	"github.com/huddle-live/backend/internal/realtime"
)

// Origin tags where a displayed field value came from.
type Origin int

const (
	// OriginConfirmed means the value arrived in a server broadcast.
	OriginConfirmed Origin = iota
	// OriginLocal means the value is an optimistic local toggle awaiting
	// server confirmation.
	OriginLocal
)

// BoolField is a displayed boolean with its origin. Self fields may hold a
// Local value; every other participant's fields are always Confirmed.
type BoolField struct {
	Value  bool
	Origin Origin
}

// Local wraps an optimistic value.
func Local(v bool) BoolField { return BoolField{Value: v, Origin: OriginLocal} }

// Confirmed wraps a server-confirmed value.
func Confirmed(v bool) BoolField { return BoolField{Value: v, Origin: OriginConfirmed} }

// Merge applies a confirmed server value over the current field. The server
// value always wins: a moderation broadcast overrides a stale optimistic
// toggle (last writer wins), and a confirmation of our own toggle collapses
// Local into Confirmed.
func (f BoolField) Merge(confirmed bool) BoolField { return Confirmed(confirmed) }

// Row is the displayed state for one participant.
type Row struct {
	ID            uuid.UUID
	DisplayName   string
	Role          realtime.Role
	AudioMuted    BoolField
	VideoOff      BoolField
	HandRaised    BoolField
	ScreenSharing BoolField
	VideoAllowed  bool
}

// Store holds the roster as displayed locally. Mutation happens only through
// the Apply* methods (broadcast state) and the SetSelf* methods (optimistic
// local toggles on the local user's own row).
type Store struct {
	mu     sync.RWMutex
	selfID uuid.UUID
	rows   map[uuid.UUID]*Row
}

// NewStore creates a store for the given local user.
func NewStore(selfID uuid.UUID) *Store {
	return &Store{selfID: selfID, rows: make(map[uuid.UUID]*Row)}
}

// ApplyRoster replaces the whole roster with a server snapshot. Used on join
// and on reconnect resync; any optimistic local state is discarded.
func (s *Store) ApplyRoster(roster realtime.RosterPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = make(map[uuid.UUID]*Row, len(roster.Participants))
	for _, p := range roster.Participants {
		s.rows[p.ID] = rowFromState(p)
	}
}

// ApplyJoined adds or replaces a participant from a join broadcast.
func (s *Store) ApplyJoined(p realtime.ParticipantState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[p.ID] = rowFromState(p)
}

// ApplyLeft removes a participant.
func (s *Store) ApplyLeft(userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, userID)
}

// ApplyUpdated merges a participant_updated broadcast. Broadcast state is
// authoritative for everyone, including the local user: a confirmation of our
// own toggle, or a moderation act against us, both land here and override any
// in-flight optimistic value.
func (s *Store) ApplyUpdated(p realtime.ParticipantState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[p.ID]
	if !ok {
		s.rows[p.ID] = rowFromState(p)
		return
	}
	row.DisplayName = p.DisplayName
	row.AudioMuted = row.AudioMuted.Merge(p.AudioMuted)
	row.VideoOff = row.VideoOff.Merge(p.VideoOff)
	row.HandRaised = row.HandRaised.Merge(p.HandRaised)
	row.ScreenSharing = row.ScreenSharing.Merge(p.ScreenSharing)
	row.VideoAllowed = p.VideoAllowed
}

// ApplyRoleChanged updates a participant's role.
func (s *Store) ApplyRoleChanged(userID uuid.UUID, role realtime.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.rows[userID]; ok {
		row.Role = role
	}
}

// SetSelfAudioMuted records an optimistic toggle of the local user's mic.
// No-op for rows other than self.
func (s *Store) SetSelfAudioMuted(muted bool) {
	s.setSelf(func(r *Row) { r.AudioMuted = Local(muted) })
}

// SetSelfVideoOff records an optimistic toggle of the local user's camera.
func (s *Store) SetSelfVideoOff(off bool) {
	s.setSelf(func(r *Row) { r.VideoOff = Local(off) })
}

// SetSelfHandRaised records an optimistic hand raise/lower.
func (s *Store) SetSelfHandRaised(raised bool) {
	s.setSelf(func(r *Row) { r.HandRaised = Local(raised) })
}

func (s *Store) setSelf(mutate func(*Row)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.rows[s.selfID]; ok {
		mutate(row)
	}
}

// Get returns a copy of one participant's row.
func (s *Store) Get(userID uuid.UUID) (Row, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[userID]
	if !ok {
		return Row{}, false
	}
	return *row, true
}

// Self returns the local user's row.
func (s *Store) Self() (Row, bool) { return s.Get(s.selfID) }

// Snapshot returns a copy of every row.
func (s *Store) Snapshot() []Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Row, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, *row)
	}
	return out
}

// Len returns the number of participants.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

func rowFromState(p realtime.ParticipantState) *Row {
	return &Row{
		ID:            p.ID,
		DisplayName:   p.DisplayName,
		Role:          p.Role,
		AudioMuted:    Confirmed(p.AudioMuted),
		VideoOff:      Confirmed(p.VideoOff),
		HandRaised:    Confirmed(p.HandRaised),
		ScreenSharing: Confirmed(p.ScreenSharing),
		VideoAllowed:  p.VideoAllowed,
	}
}
