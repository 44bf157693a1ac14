package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// Hub tracks every live connection and the meeting_id -> connections
// broadcast groups. It implements RoomSender. Uses Redis pub/sub for
// horizontal scaling: local broadcast + publish to Redis.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client               // connID -> client (admitted or waiting)
	rooms   map[uuid.UUID]map[string]*Client // meetingID -> admitted members
	subs    map[uuid.UUID]func()             // cancel Redis subscription per meeting

	logger   *zap.Logger
	redisPub RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher is the interface for publishing to Redis (for
// cross-instance broadcast).
type RedisPublisher interface {
	PublishMeetingEvent(meetingID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to meeting channels and invokes handler for
// incoming events.
type RedisSubscriber interface {
	SubscribeMeeting(meetingID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub. Redis bridges may be nil for
// single-instance deployments and tests.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:  make(map[string]*Client),
		rooms:    make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redisPub: redisPub,
		redisSub: redisSub,
	}
}

// Track registers a connection before it belongs to any room, so the
// registry can reach it while it sits in a waiting room.
func (h *Hub) Track(c *Client) {
	h.mu.Lock()
	h.clients[c.ConnID] = c
	h.mu.Unlock()
}

// Untrack forgets a connection entirely.
func (h *Hub) Untrack(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.ConnID)
	for _, room := range h.rooms {
		delete(room, c.ConnID)
	}
	h.mu.Unlock()
}

// JoinRoom adds a connection to a meeting's broadcast group. The first
// member starts the meeting's Redis subscription.
func (h *Hub) JoinRoom(meetingID uuid.UUID, connID string) {
	h.mu.Lock()
	c, ok := h.clients[connID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if h.rooms[meetingID] == nil {
		h.rooms[meetingID] = make(map[string]*Client)
		if h.redisSub != nil {
			cancel, err := h.redisSub.SubscribeMeeting(meetingID, func(event string, payload []byte) {
				// Delivered from another instance: local fanout only.
				// Republishing here would loop the event between instances.
				h.fanout(meetingID, "", event, json.RawMessage(payload))
			})
			if err == nil {
				h.subs[meetingID] = cancel
			}
		}
	}
	h.rooms[meetingID][connID] = c
	h.mu.Unlock()
	h.logger.Debug("connection joined room",
		zap.String("conn_id", connID), zap.String("meeting_id", meetingID.String()))
}

// LeaveRoom removes a connection from a meeting's broadcast group. The last
// member's departure cancels the Redis subscription.
func (h *Hub) LeaveRoom(meetingID uuid.UUID, connID string) {
	h.mu.Lock()
	if room, ok := h.rooms[meetingID]; ok {
		delete(room, connID)
		if len(room) == 0 {
			delete(h.rooms, meetingID)
			if cancel, ok := h.subs[meetingID]; ok {
				cancel()
				delete(h.subs, meetingID)
			}
		}
	}
	h.mu.Unlock()
}

// Broadcast sends an event to every admitted member of a meeting on this
// instance and publishes it to Redis for members connected elsewhere. A
// member with a full send buffer is skipped; one slow recipient never blocks
// the rest.
func (h *Hub) Broadcast(meetingID uuid.UUID, event string, payload interface{}) {
	h.fanout(meetingID, "", event, payload)
	h.publish(meetingID, event, payload)
}

// BroadcastExcept sends to every member except one connection. The excluded
// connection lives on this instance, so remote delivery is unfiltered.
func (h *Hub) BroadcastExcept(meetingID uuid.UUID, exceptConnID, event string, payload interface{}) {
	h.fanout(meetingID, exceptConnID, event, payload)
	h.publish(meetingID, event, payload)
}

func (h *Hub) publish(meetingID uuid.UUID, event string, payload interface{}) {
	if h.redisPub == nil {
		return
	}
	if err := h.redisPub.PublishMeetingEvent(meetingID, event, marshalData(payload)); err != nil {
		h.logger.Warn("redis publish failed",
			zap.Error(err), zap.String("meeting_id", meetingID.String()), zap.String("event", event))
	}
}

func (h *Hub) fanout(meetingID uuid.UUID, exceptConnID, event string, payload interface{}) {
	msg := WSMessage{Event: event, Data: marshalData(payload)}

	h.mu.RLock()
	room := h.rooms[meetingID]
	targets := make([]*Client, 0, len(room))
	for id, c := range room {
		if id == exceptConnID {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// SendToConn sends an event to a single connection, admitted or waiting.
func (h *Hub) SendToConn(connID, event string, payload interface{}) {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	msg := WSMessage{Event: event, Data: marshalData(payload)}
	select {
	case c.send <- msg:
	default:
	}
}

// CloseConn closes a connection's socket. Roster cleanup follows through the
// read loop's disconnect path.
func (h *Hub) CloseConn(connID string) {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	c.close()
}

// RoomSize returns the number of admitted members in a meeting on this
// instance.
func (h *Hub) RoomSize(meetingID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[meetingID])
}

func marshalData(payload interface{}) json.RawMessage {
	switch v := payload.(type) {
	case []byte:
		return v
	case json.RawMessage:
		return v
	default:
		data, _ := json.Marshal(payload)
		return data
	}
}
