package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/huddle-live/backend/internal/models"
)

// RoomSender abstracts the fanout transport (the Hub). Per-recipient send
// failures are isolated inside the implementation and never surface here.
type RoomSender interface {
	Broadcast(meetingID uuid.UUID, event string, payload interface{})
	BroadcastExcept(meetingID uuid.UUID, exceptConnID, event string, payload interface{})
	SendToConn(connID, event string, payload interface{})
	JoinRoom(meetingID uuid.UUID, connID string)
	LeaveRoom(meetingID uuid.UUID, connID string)
	CloseConn(connID string)
}

// MeetingStore is the durable meeting lookup the registry resolves joins
// against.
type MeetingStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Meeting, error)
	MarkLive(ctx context.Context, id uuid.UUID, startedAt time.Time) error
	MarkEnded(ctx context.Context, id uuid.UUID, endedAt time.Time) error
	UpdateSettings(ctx context.Context, id uuid.UUID, settings models.MeetingSettings) error
}

// AttendanceLogger records join/leave for the attendee list and recap roster.
type AttendanceLogger interface {
	LogJoin(ctx context.Context, meetingID, userID uuid.UUID, displayName string) error
	LogLeave(ctx context.Context, meetingID, userID uuid.UUID, leftAt time.Time) error
}

// EndedSession is the snapshot handed to the end-of-meeting hook, feeding the
// recap job.
type EndedSession struct {
	MeetingID  uuid.UUID
	Title      string
	StartedAt  time.Time
	EndedAt    time.Time
	Transcript []models.TranscriptSegment
}

// JoinStatus tells the connection what happened to its join attempt.
type JoinStatus string

const (
	JoinAdmitted JoinStatus = "admitted"
	JoinWaiting  JoinStatus = "waiting"
)

// Registry owns the connection -> room membership lifecycle. All roster
// mutations flow through it or through the Broker; nothing else writes
// session state.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	conns    map[string]uuid.UUID // connID -> meetingID (admitted or waiting)
	titles   map[uuid.UUID]string

	sender     RoomSender
	meetings   MeetingStore
	attendance AttendanceLogger
	onEnded    func(EndedSession)
	logger     *zap.Logger
}

// NewRegistry creates a connection registry.
func NewRegistry(sender RoomSender, meetings MeetingStore, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		sessions: make(map[uuid.UUID]*Session),
		conns:    make(map[string]uuid.UUID),
		titles:   make(map[uuid.UUID]string),
		sender:   sender,
		meetings: meetings,
		logger:   logger,
	}
}

// SetAttendanceLogger wires join/leave persistence.
func (r *Registry) SetAttendanceLogger(l AttendanceLogger) {
	r.attendance = l
}

// SetEndedHandler wires the end-of-meeting hook (recap enqueue, archive).
func (r *Registry) SetEndedHandler(fn func(EndedSession)) {
	r.onEnded = fn
}

// Session returns the live session for a meeting, or nil.
func (r *Registry) Session(meetingID uuid.UUID) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[meetingID]
}

// Join resolves a join attempt. It creates the session on first join, applies
// lock and password policy, and either admits the connection (roster snapshot
// to the joiner, participant_joined to the room) or parks it in the waiting
// room (waiting_join to hosts). A second join by the same participant id is a
// reconnect: the stale entry is replaced, not duplicated.
func (r *Registry) Join(ctx context.Context, connID string, userID uuid.UUID, displayName string, req JoinPayload) (JoinStatus, error) {
	sess, err := r.getOrCreate(ctx, req.MeetingID)
	if err != nil {
		return "", err
	}

	hostID := sess.CurrentHost()
	isStoredHost := userID == sess.OriginalHostID || userID == hostID
	reconnect := sess.Get(userID) != nil

	if sess.Locked && !isStoredHost && !reconnect {
		return "", ErrSessionLocked
	}
	if sess.Password != "" && !isStoredHost && req.Password != sess.Password {
		return "", ErrWrongPassword
	}

	if sess.Settings.WaitingRoomEnabled && !isStoredHost && !reconnect {
		entry := &WaitingRoomEntry{UserID: userID, DisplayName: displayName, ConnID: connID, ArrivedAt: time.Now()}
		sess.AddWaiting(entry)
		r.track(connID, sess.MeetingID)
		r.notifyHosts(sess, EventWaitingJoin, WaitingPayload{UserID: userID, DisplayName: displayName, ArrivedAt: entry.ArrivedAt})
		r.logger.Debug("join parked in waiting room",
			zap.String("meeting_id", sess.MeetingID.String()), zap.String("user_id", userID.String()))
		return JoinWaiting, nil
	}

	// The stored host reclaims the role only while the room is host-less;
	// a host promoted in their absence keeps it, and the returner falls
	// back on EffectiveRole authority until a revocation lands.
	role := RoleParticipant
	if userID == hostID || (isStoredHost && hostID == uuid.Nil) {
		role = RoleHost
	}
	r.admit(ctx, sess, connID, userID, displayName, role, reconnect)
	return JoinAdmitted, nil
}

// Admit moves a waiting user into the room. Admitting a user who is not
// waiting is an idempotent no-op.
func (r *Registry) Admit(ctx context.Context, sess *Session, userID uuid.UUID) {
	entry := sess.TakeWaiting(userID)
	if entry == nil {
		return
	}
	r.sender.SendToConn(entry.ConnID, EventWaitingAdmitted, WaitingPayload{UserID: userID, DisplayName: entry.DisplayName})
	r.admit(ctx, sess, entry.ConnID, userID, entry.DisplayName, RoleParticipant, false)
}

// Deny rejects a waiting user and closes their connection. Denying a user who
// is not waiting is a no-op.
func (r *Registry) Deny(sess *Session, userID uuid.UUID) {
	entry := sess.TakeWaiting(userID)
	if entry == nil {
		return
	}
	r.untrack(entry.ConnID)
	r.sender.SendToConn(entry.ConnID, EventWaitingDenied, WaitingPayload{UserID: userID, DisplayName: entry.DisplayName})
	r.sender.CloseConn(entry.ConnID)
}

// Leave handles a transport disconnect or explicit leave. A departing sole
// host leaves the room host-less; no automatic reassignment happens. When the
// last participant leaves the session is ended.
func (r *Registry) Leave(ctx context.Context, connID string) {
	r.mu.Lock()
	meetingID, ok := r.conns[connID]
	if ok {
		delete(r.conns, connID)
	}
	sess := r.sessions[meetingID]
	r.mu.Unlock()
	if !ok || sess == nil {
		return
	}

	if entry := sess.RemoveWaitingByConn(connID); entry != nil {
		return
	}

	p := sess.Remove(connID)
	if p == nil {
		return
	}
	r.sender.LeaveRoom(meetingID, connID)
	r.sender.Broadcast(meetingID, EventParticipantLeft, ParticipantState{ID: p.ID, DisplayName: p.DisplayName, Role: p.Role})
	if p.Role == RoleHost {
		// No auto-reassignment; the room stays host-less until a manual
		// promote_role lands.
		sess.mu.Lock()
		sess.HostID = uuid.Nil
		sess.mu.Unlock()
	}
	if r.attendance != nil {
		_ = r.attendance.LogLeave(ctx, meetingID, p.ID, time.Now())
	}
	r.logger.Debug("participant left",
		zap.String("meeting_id", meetingID.String()), zap.String("user_id", p.ID.String()))

	if sess.Size() == 0 {
		r.End(ctx, meetingID)
	}
}

// Kick force-removes a participant: close their socket after notifying them.
// Roster cleanup then happens through the normal disconnect path.
func (r *Registry) Kick(sess *Session, target *Participant) {
	r.sender.SendToConn(target.ConnID, EventKicked, ParticipantState{ID: target.ID, DisplayName: target.DisplayName})
	r.sender.CloseConn(target.ConnID)
}

// PublishSettings fans the session's current settings out to the room. Used
// by the HTTP patch path; the realtime path fans out from the broker.
func (r *Registry) PublishSettings(sess *Session) {
	sess.mu.RLock()
	settings := sess.Settings
	sess.mu.RUnlock()
	r.sender.Broadcast(sess.MeetingID, EventSettingsUpdated, settings)
}

// End tears a session down: meeting_ended to the room, durable status flip,
// recap hook, connections closed.
func (r *Registry) End(ctx context.Context, meetingID uuid.UUID) {
	r.mu.Lock()
	sess := r.sessions[meetingID]
	if sess == nil {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, meetingID)
	title := r.titles[meetingID]
	delete(r.titles, meetingID)
	for connID, mid := range r.conns {
		if mid == meetingID {
			delete(r.conns, connID)
		}
	}
	r.mu.Unlock()

	endedAt := time.Now()
	r.sender.Broadcast(meetingID, EventMeetingEnded, map[string]string{"meeting_id": meetingID.String()})
	if err := r.meetings.MarkEnded(ctx, meetingID, endedAt); err != nil {
		r.logger.Error("mark meeting ended", zap.Error(err), zap.String("meeting_id", meetingID.String()))
	}
	if r.onEnded != nil {
		r.onEnded(EndedSession{
			MeetingID:  meetingID,
			Title:      title,
			StartedAt:  sess.StartedAt,
			EndedAt:    endedAt,
			Transcript: sess.Transcript().Snapshot(),
		})
	}
	for _, p := range sess.Roster() {
		if sp := sess.Get(p.ID); sp != nil {
			r.sender.CloseConn(sp.ConnID)
		}
	}
	r.logger.Info("meeting ended", zap.String("meeting_id", meetingID.String()))
}

func (r *Registry) getOrCreate(ctx context.Context, meetingID uuid.UUID) (*Session, error) {
	r.mu.RLock()
	sess := r.sessions[meetingID]
	r.mu.RUnlock()
	if sess != nil {
		return sess, nil
	}

	m, err := r.meetings.GetByID(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if m.Status == models.MeetingEnded {
		return nil, ErrSessionEnded
	}

	r.mu.Lock()
	if existing := r.sessions[meetingID]; existing != nil {
		r.mu.Unlock()
		return existing, nil
	}
	sess = NewSession(m)
	r.sessions[meetingID] = sess
	r.titles[meetingID] = m.Title
	r.mu.Unlock()

	if m.Status != models.MeetingLive {
		if err := r.meetings.MarkLive(ctx, meetingID, sess.StartedAt); err != nil {
			r.logger.Warn("mark meeting live", zap.Error(err), zap.String("meeting_id", meetingID.String()))
		}
	}
	return sess, nil
}

func (r *Registry) admit(ctx context.Context, sess *Session, connID string, userID uuid.UUID, displayName string, role Role, reconnect bool) {
	p := &Participant{
		ID:           userID,
		DisplayName:  displayName,
		Role:         role,
		AudioMuted:   true,
		VideoAllowed: true,
		ConnID:       connID,
		JoinedAt:     time.Now(),
	}
	staleConn := sess.Add(p)
	r.track(connID, sess.MeetingID)
	if staleConn != "" && staleConn != connID {
		r.untrack(staleConn)
		r.sender.LeaveRoom(sess.MeetingID, staleConn)
		r.sender.CloseConn(staleConn)
	}
	r.sender.JoinRoom(sess.MeetingID, connID)
	r.sender.SendToConn(connID, EventRoster, RosterPayload{
		MeetingID:    sess.MeetingID,
		HostID:       sess.CurrentHost(),
		Locked:       sess.Locked,
		Recording:    sess.Recording,
		Settings:     sess.Settings,
		Participants: sess.Roster(),
	})
	if !reconnect {
		if cur := sess.Get(userID); cur != nil {
			r.sender.BroadcastExcept(sess.MeetingID, connID, EventParticipantJoined, cur.State())
		}
		if r.attendance != nil {
			_ = r.attendance.LogJoin(ctx, sess.MeetingID, userID, displayName)
		}
	}
	r.logger.Debug("participant admitted",
		zap.String("meeting_id", sess.MeetingID.String()),
		zap.String("user_id", userID.String()),
		zap.Bool("reconnect", reconnect))
}

func (r *Registry) notifyHosts(sess *Session, event string, payload interface{}) {
	for _, st := range sess.Roster() {
		if st.Role != RoleHost && st.Role != RoleCoHost {
			continue
		}
		if p := sess.Get(st.ID); p != nil {
			r.sender.SendToConn(p.ConnID, event, payload)
		}
	}
}

func (r *Registry) track(connID string, meetingID uuid.UUID) {
	r.mu.Lock()
	r.conns[connID] = meetingID
	r.mu.Unlock()
}

func (r *Registry) untrack(connID string) {
	r.mu.Lock()
	delete(r.conns, connID)
	r.mu.Unlock()
}
