package meetclient

import (
	"errors"
	"fmt"
	"sync"

	"github.com/huddle-live/backend/internal/models"
)

// State is a phase of the meeting session lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StatePreview   State = "preview"
	StateJoining   State = "joining"
	StateInMeeting State = "in_meeting"
	StateLeaving   State = "leaving"
	StateEnded     State = "ended"
)

var (
	// ErrBadTransition is returned for a lifecycle move the machine does
	// not allow from its current state.
	ErrBadTransition = errors.New("invalid session transition")
	// ErrNotInMeeting gates sub-features that only run while in_meeting.
	ErrNotInMeeting = errors.New("not in meeting")
	// ErrPlanRequired is returned when the cached subscription plan does
	// not cover recording or duration extension.
	ErrPlanRequired = errors.New("pro plan required")
)

var transitions = map[State][]State{
	StateIdle:      {StatePreview},
	StatePreview:   {StateJoining, StateIdle},
	StateJoining:   {StateInMeeting, StateEnded},
	StateInMeeting: {StateLeaving, StateEnded},
	StateLeaving:   {StateEnded},
	StateEnded:     {},
}

// SessionMachine drives the meeting lifecycle on the client side. Recording,
// transcription, and whiteboard starts are permitted only while in_meeting;
// anywhere else they fail with an error rather than crashing. Recording and
// extend-duration additionally require the cached subscription plan, a
// capability gate unrelated to moderation roles.
type SessionMachine struct {
	mu    sync.Mutex
	state State
	plan  models.Plan
}

// NewSessionMachine starts a machine in idle with the given cached plan.
func NewSessionMachine(plan models.Plan) *SessionMachine {
	return &SessionMachine{state: StateIdle, plan: plan}
}

// State returns the current phase.
func (m *SessionMachine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SetPlan updates the cached subscription plan (e.g. after a settings fetch).
func (m *SessionMachine) SetPlan(plan models.Plan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plan = plan
}

func (m *SessionMachine) transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, next := range transitions[m.state] {
		if next == to {
			m.state = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrBadTransition, m.state, to)
}

// EnterPreview moves idle -> preview (navigating to a meeting URL).
func (m *SessionMachine) EnterPreview() error { return m.transition(StatePreview) }

// BeginJoin moves preview -> joining (device setup confirmed).
func (m *SessionMachine) BeginJoin() error { return m.transition(StateJoining) }

// RosterReceived moves joining -> in_meeting (server roster snapshot landed).
func (m *SessionMachine) RosterReceived() error { return m.transition(StateInMeeting) }

// BeginLeave moves in_meeting -> leaving (explicit leave or end).
func (m *SessionMachine) BeginLeave() error { return m.transition(StateLeaving) }

// Terminate moves to ended once tracks are stopped and the socket is closed.
// Also used when the server ends the meeting out from under us.
func (m *SessionMachine) Terminate() error { return m.transition(StateEnded) }

// CancelPreview moves preview -> idle (user backed out before joining).
func (m *SessionMachine) CancelPreview() error { return m.transition(StateIdle) }

func (m *SessionMachine) requireInMeeting() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateInMeeting {
		return fmt.Errorf("%w: session is %s", ErrNotInMeeting, m.state)
	}
	return nil
}

// CanStartRecording gates recording on in_meeting plus the plan flag.
func (m *SessionMachine) CanStartRecording() error {
	if err := m.requireInMeeting(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.plan != models.PlanPro {
		return ErrPlanRequired
	}
	return nil
}

// CanStartTranscription gates live captions on in_meeting.
func (m *SessionMachine) CanStartTranscription() error { return m.requireInMeeting() }

// CanStartWhiteboard gates the whiteboard on in_meeting.
func (m *SessionMachine) CanStartWhiteboard() error { return m.requireInMeeting() }

// CanExtendDuration gates meeting extension on the plan flag. Extension is
// only meaningful while the meeting runs.
func (m *SessionMachine) CanExtendDuration() error {
	if err := m.requireInMeeting(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.plan != models.PlanPro {
		return ErrPlanRequired
	}
	return nil
}
