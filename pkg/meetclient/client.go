// Package meetclient is the Go client SDK for the meeting platform: a
// WebSocket transport with reconnect-and-resync, the participant state store,
// the session lifecycle machine, and local media track ownership.
package meetclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/huddle-live/backend/internal/realtime"
)

// ErrClosed is returned from Send after the client has shut down.
var ErrClosed = errors.New("client closed")

const (
	reconnectBase = time.Second
	reconnectMax  = 30 * time.Second
	writeWait     = 10 * time.Second
)

// Options configures a Client.
type Options struct {
	// ServerURL is the ws:// or wss:// base, e.g. "wss://meet.example.com".
	ServerURL string
	// Token is the JWT obtained from /auth/login.
	Token     string
	MeetingID uuid.UUID
	// Password unlocks password-protected meetings.
	Password string
	// SelfID is the local user's id (from the JWT subject).
	SelfID uuid.UUID

	Tracks *TrackManager
	Logger *zap.Logger
}

// Client is one user's connection to one meeting. A transport drop triggers
// redial plus a fresh join; the server answers with a roster snapshot that
// replaces local state wholesale, so recovery never replays patches.
type Client struct {
	opts    Options
	logger  *zap.Logger
	store   *Store
	session *SessionMachine
	subs    *Subscriptions

	mu      sync.Mutex
	conn    *websocket.Conn
	closed  bool
	pending *VideoRequest

	done chan struct{}
}

// New creates a client in idle state. Call Dial to connect.
func New(opts Options, session *SessionMachine) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		opts:    opts,
		logger:  logger,
		store:   NewStore(opts.SelfID),
		session: session,
		subs:    NewSubscriptions(),
		done:    make(chan struct{}),
	}
	c.wireHandlers()
	return c
}

// Store exposes the participant state store for UI rendering.
func (c *Client) Store() *Store { return c.store }

// Session exposes the lifecycle machine.
func (c *Client) Session() *SessionMachine { return c.session }

// On registers an additional event handler (chat, typing, captions). Torn
// down with the session.
func (c *Client) On(event string, h Handler) { c.subs.On(event, h) }

// Dial connects, joins the meeting, and starts the read loop. The session
// must already be in joining state.
func (c *Client) Dial(ctx context.Context) error {
	if st := c.session.State(); st != StateJoining {
		return fmt.Errorf("%w: dial from %s", ErrBadTransition, st)
	}
	if err := c.connect(ctx); err != nil {
		return err
	}
	go c.readLoop()
	return nil
}

func (c *Client) connect(ctx context.Context) error {
	u, err := url.Parse(c.opts.ServerURL + "/ws")
	if err != nil {
		return fmt.Errorf("parse server url: %w", err)
	}
	q := u.Query()
	q.Set("token", c.opts.Token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	return c.Send(realtime.EventJoinMeeting, realtime.JoinPayload{
		MeetingID: c.opts.MeetingID,
		Password:  c.opts.Password,
	})
}

// Send writes one event to the server.
func (c *Client) Send(event string, payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.conn == nil {
		return ErrClosed
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event, err)
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(realtime.WSMessage{Event: event, Data: data})
}

func (c *Client) readLoop() {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}

		var msg realtime.WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if c.isClosed() || c.session.State() != StateInMeeting {
				return
			}
			c.logger.Warn("transport dropped, reconnecting", zap.Error(err))
			if !c.reconnect() {
				return
			}
			continue
		}
		c.subs.Dispatch(msg.Event, msg.Data)
	}
}

// reconnect redials with exponential backoff and rejoins. The roster handler
// resyncs the store from the snapshot the rejoin produces.
func (c *Client) reconnect() bool {
	backoff := reconnectBase
	for {
		select {
		case <-c.done:
			return false
		case <-time.After(backoff):
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := c.connect(ctx)
		cancel()
		if err == nil {
			c.logger.Info("reconnected")
			return true
		}
		c.logger.Warn("reconnect failed", zap.Error(err))
		if backoff *= 2; backoff > reconnectMax {
			backoff = reconnectMax
		}
	}
}

// Leave sends leave_meeting, stops local tracks, and shuts the client down.
func (c *Client) Leave() error {
	if err := c.session.BeginLeave(); err != nil {
		return err
	}
	_ = c.Send(realtime.EventLeaveMeeting, struct{}{})
	c.shutdown()
	return c.session.Terminate()
}

func (c *Client) shutdown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	pending := c.pending
	c.mu.Unlock()

	close(c.done)
	if pending != nil {
		pending.Decline()
	}
	if conn != nil {
		conn.Close()
	}
	if c.opts.Tracks != nil {
		c.opts.Tracks.ReleaseAll()
	}
	c.subs.Teardown()
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// wireHandlers installs the core event handlers that keep the store and the
// session machine in sync with server broadcasts.
func (c *Client) wireHandlers() {
	c.subs.On(realtime.EventRoster, func(data json.RawMessage) {
		var roster realtime.RosterPayload
		if err := json.Unmarshal(data, &roster); err != nil {
			c.logger.Error("bad roster payload", zap.Error(err))
			return
		}
		c.store.ApplyRoster(roster)
		if c.session.State() == StateJoining {
			if err := c.session.RosterReceived(); err != nil {
				c.logger.Error("roster transition", zap.Error(err))
			}
		}
	})

	c.subs.On(realtime.EventParticipantJoined, func(data json.RawMessage) {
		var p realtime.ParticipantState
		if json.Unmarshal(data, &p) == nil {
			c.store.ApplyJoined(p)
		}
	})

	c.subs.On(realtime.EventParticipantLeft, func(data json.RawMessage) {
		var p realtime.ParticipantState
		if json.Unmarshal(data, &p) == nil {
			c.store.ApplyLeft(p.ID)
		}
	})

	c.subs.On(realtime.EventParticipantUpdated, func(data json.RawMessage) {
		var p realtime.ParticipantState
		if json.Unmarshal(data, &p) == nil {
			c.store.ApplyUpdated(p)
		}
	})

	c.subs.On(realtime.EventRoleChanged, func(data json.RawMessage) {
		var rc realtime.RoleChangedPayload
		if json.Unmarshal(data, &rc) == nil {
			c.store.ApplyRoleChanged(rc.UserID, rc.Role)
		}
	})

	c.subs.On(realtime.EventVideoRequest, func(data json.RawMessage) {
		var req realtime.VideoRequestPayload
		if json.Unmarshal(data, &req) != nil {
			return
		}
		vr := NewVideoRequest(req.FromID, req.FromName, func(accepted bool) {
			c.mu.Lock()
			c.pending = nil
			c.mu.Unlock()
			_ = c.Send(realtime.EventVideoRequestResponse, realtime.VideoRequestResponsePayload{
				RequesterID: req.FromID,
				Accepted:    accepted,
			})
		})
		c.mu.Lock()
		prev := c.pending
		c.pending = vr
		c.mu.Unlock()
		if prev != nil {
			prev.Decline()
		}
	})

	c.subs.On(realtime.EventMeetingEnded, func(json.RawMessage) {
		c.shutdown()
		_ = c.session.Terminate()
	})

	c.subs.On(realtime.EventKicked, func(json.RawMessage) {
		c.shutdown()
		_ = c.session.Terminate()
	})
}

// PendingVideoRequest returns the unresolved incoming video request, if any.
func (c *Client) PendingVideoRequest() *VideoRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// ToggleMic flips the local mic through the confirm gate, acquires the track
// lazily when unmuting, applies the optimistic store update, and tells the
// room. Acquisition failure reverts everything and returns the error.
func (c *Client) ToggleMic(ctx context.Context, mute bool) error {
	if err := c.applyTrack(ctx, TrackAudio, !mute); err != nil {
		return err
	}
	c.store.SetSelfAudioMuted(mute)
	muted := mute
	return c.Send(realtime.EventMediaState, realtime.MediaStatePayload{AudioMuted: &muted})
}

// ToggleCamera flips the local camera the same way.
func (c *Client) ToggleCamera(ctx context.Context, off bool) error {
	if err := c.applyTrack(ctx, TrackVideo, !off); err != nil {
		return err
	}
	c.store.SetSelfVideoOff(off)
	videoOff := off
	return c.Send(realtime.EventMediaState, realtime.MediaStatePayload{VideoOff: &videoOff})
}

func (c *Client) applyTrack(ctx context.Context, kind TrackKind, enable bool) error {
	if c.opts.Tracks == nil {
		return nil
	}
	if enable {
		return c.opts.Tracks.Enable(ctx, kind)
	}
	return c.opts.Tracks.Disable(kind)
}
