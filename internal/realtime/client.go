package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client represents a single WebSocket connection. UserID is stable across
// reconnects; ConnID is minted per connection.
type Client struct {
	ConnID      string
	UserID      uuid.UUID
	DisplayName string

	meetingID uuid.UUID

	hub      *Hub
	registry *Registry
	broker   *Broker
	conn     *websocket.Conn
	send     chan WSMessage
	closed   sync.Once
	logger   *zap.Logger
}

// ServeWs handles the WebSocket upgrade and runs the client loop. Auth is a
// token query param (no Authorization header on browser WebSocket).
func ServeWs(hub *Hub, registry *Registry, broker *Broker, logger *zap.Logger, jwtValidate func(token string) (userID uuid.UUID, displayName string, err error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token required"})
			return
		}
		userID, displayName, err := jwtValidate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ConnID:      uuid.New().String(),
			UserID:      userID,
			DisplayName: displayName,
			hub:         hub,
			registry:    registry,
			broker:      broker,
			conn:        conn,
			send:        make(chan WSMessage, 256),
			logger:      logger,
		}
		hub.Track(client)
		go client.writePump()
		client.readPump()
	}
}

func (c *Client) close() {
	c.closed.Do(func() {
		_ = c.conn.Close()
	})
}

// readPump processes inbound events sequentially, which yields per-sender
// FIFO delivery for everything this connection emits.
func (c *Client) readPump() {
	defer func() {
		c.registry.Leave(context.Background(), c.ConnID)
		c.hub.Untrack(c)
		c.close()
	}()

	c.conn.SetReadLimit(1 << 20) // audio chunks are the largest frames
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg WSMessage) {
	ctx := context.Background()

	if msg.Event == EventJoinMeeting {
		var payload JoinPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil || payload.MeetingID == uuid.Nil {
			c.sendError(ErrCodeBadRequest, "invalid join payload")
			return
		}
		if _, err := c.registry.Join(ctx, c.ConnID, c.UserID, c.DisplayName, payload); err != nil {
			c.sendError(errCode(err), err.Error())
			return
		}
		c.meetingID = payload.MeetingID
		return
	}

	sess := c.registry.Session(c.meetingID)
	if sess == nil {
		c.sendError(ErrCodeNotFound, "not joined to a meeting")
		return
	}
	self := sess.Get(c.UserID)
	if self == nil {
		// Waiting-room connections may only withdraw.
		if msg.Event == EventLeaveMeeting {
			c.registry.Leave(ctx, c.ConnID)
		}
		return
	}

	var err error
	switch msg.Event {
	case EventLeaveMeeting:
		c.registry.Leave(ctx, c.ConnID)

	case EventSendMessage:
		var payload ChatPayload
		if err = json.Unmarshal(msg.Data, &payload); err == nil {
			err = c.broker.SendChat(ctx, sess, self, payload)
		}

	case EventTypingStart:
		c.broker.Typing(sess, self, true)
	case EventTypingStop:
		c.broker.Typing(sess, self, false)

	case EventMediaState:
		var payload MediaStatePayload
		if err = json.Unmarshal(msg.Data, &payload); err == nil {
			err = c.broker.MediaState(sess, self, payload)
		}

	case EventHandRaise:
		var payload HandRaisePayload
		if err = json.Unmarshal(msg.Data, &payload); err == nil {
			c.broker.HandRaise(sess, self, payload.Raised)
		}

	case EventReaction:
		var payload ReactionPayload
		if err = json.Unmarshal(msg.Data, &payload); err == nil {
			c.broker.Reaction(sess, self, payload.Emoji)
		}

	case EventVideoRequest:
		var payload VideoRequestPayload
		if err = json.Unmarshal(msg.Data, &payload); err == nil {
			err = c.broker.VideoRequest(sess, self, payload.TargetID)
		}

	case EventVideoRequestResponse:
		var payload VideoRequestResponsePayload
		if err = json.Unmarshal(msg.Data, &payload); err == nil {
			c.broker.VideoRequestResponse(sess, self, payload)
		}

	case EventAudioChunk:
		var payload AudioChunkPayload
		if err = json.Unmarshal(msg.Data, &payload); err == nil {
			c.broker.AudioChunk(ctx, sess, self, payload)
		}

	case EventTranscriptResult:
		var payload TranscriptPayload
		if err = json.Unmarshal(msg.Data, &payload); err == nil {
			c.broker.PublishTranscript(sess, payload)
		}

	case EventMuteParticipant:
		err = c.target(msg, func(id uuid.UUID) error { return c.broker.MuteOther(sess, self, id) })
	case EventAllowUnmute:
		err = c.target(msg, func(id uuid.UUID) error { return c.broker.AllowUnmute(sess, self, id) })
	case EventStopVideo:
		err = c.target(msg, func(id uuid.UUID) error { return c.broker.StopVideo(sess, self, id) })
	case EventAllowVideo:
		err = c.target(msg, func(id uuid.UUID) error { return c.broker.AllowVideo(sess, self, id) })
	case EventKickParticipant:
		err = c.target(msg, func(id uuid.UUID) error { return c.broker.Kick(sess, self, id) })
	case EventAdmitWaiting:
		err = c.target(msg, func(id uuid.UUID) error { return c.broker.AdmitWaiting(ctx, sess, self, id) })
	case EventDenyWaiting:
		err = c.target(msg, func(id uuid.UUID) error { return c.broker.DenyWaiting(sess, self, id) })

	case EventPromoteRole:
		var payload RolePayload
		if err = json.Unmarshal(msg.Data, &payload); err == nil {
			err = c.broker.PromoteRole(sess, self, payload.TargetID, payload.Role)
		}
	case EventRevokeRole:
		var payload RolePayload
		if err = json.Unmarshal(msg.Data, &payload); err == nil {
			err = c.broker.RevokeRole(sess, self, payload.TargetID)
		}

	case EventMuteAll:
		err = c.broker.MuteAll(sess, self)
	case EventStopVideoAll:
		err = c.broker.StopVideoAll(sess, self)

	case EventLockMeeting:
		var payload LockPayload
		if err = json.Unmarshal(msg.Data, &payload); err == nil {
			err = c.broker.Lock(sess, self, payload.Locked)
		}

	case EventUpdateSettings:
		var payload SettingsPatch
		if err = json.Unmarshal(msg.Data, &payload); err == nil {
			err = c.broker.UpdateSettings(ctx, sess, self, payload)
		}

	case EventRecordingState:
		var payload RecordingStatePayload
		if err = json.Unmarshal(msg.Data, &payload); err == nil {
			err = c.broker.Recording(sess, self, payload.Recording)
		}

	case EventEndMeeting:
		err = c.broker.End(ctx, sess, self)

	default:
		// ignore
	}

	if err != nil {
		c.sendError(errCode(err), err.Error())
	}
}

func (c *Client) target(msg WSMessage, fn func(uuid.UUID) error) error {
	var payload TargetPayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		return err
	}
	return fn(payload.TargetID)
}

func (c *Client) sendError(code, message string) {
	c.hub.SendToConn(c.ConnID, EventError, ErrorPayload{Code: code, Message: message})
}

// errCode maps an error to the wire error code surfaced to the actor.
func errCode(err error) string {
	var capErr *CapabilityError
	switch {
	case errors.As(err, &capErr), errors.Is(err, ErrTargetIsHost):
		return ErrCodeCapability
	case errors.Is(err, ErrSessionLocked):
		return ErrCodeLocked
	case errors.Is(err, ErrWrongPassword):
		return ErrCodeBadPassword
	case errors.Is(err, ErrNotInSession), errors.Is(err, ErrSessionEnded):
		return ErrCodeNotFound
	case errors.Is(err, ErrPersistence):
		return ErrCodePersistence
	default:
		return ErrCodeBadRequest
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
