package realtime

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBridge implements RedisPublisher and RedisSubscriber, capturing
// publishes and the per-meeting subscription handler.
type fakeBridge struct {
	published []publishedEvent
	handlers  map[uuid.UUID]func(event string, payload []byte)
	cancelled int
}

type publishedEvent struct {
	MeetingID uuid.UUID
	Event     string
	Payload   []byte
}

func newFakeBridge() *fakeBridge {
	return &fakeBridge{handlers: make(map[uuid.UUID]func(event string, payload []byte))}
}

func (f *fakeBridge) PublishMeetingEvent(meetingID uuid.UUID, event string, payload []byte) error {
	f.published = append(f.published, publishedEvent{MeetingID: meetingID, Event: event, Payload: payload})
	return nil
}

func (f *fakeBridge) SubscribeMeeting(meetingID uuid.UUID, handler func(event string, payload []byte)) (func(), error) {
	f.handlers[meetingID] = handler
	return func() { f.cancelled++ }, nil
}

func hubWithMember(t *testing.T, bridge *fakeBridge, meetingID uuid.UUID, connID string) (*Hub, *Client) {
	t.Helper()
	hub := NewHub(nil, bridge, bridge)
	c := &Client{ConnID: connID, send: make(chan WSMessage, 8)}
	hub.Track(c)
	hub.JoinRoom(meetingID, connID)
	return hub, c
}

func TestHubBroadcastDeliversLocallyAndPublishes(t *testing.T) {
	bridge := newFakeBridge()
	meetingID := uuid.New()
	hub, c := hubWithMember(t, bridge, meetingID, "conn-1")

	hub.Broadcast(meetingID, "chat", map[string]string{"text": "hi"})

	require.Len(t, c.send, 1)
	msg := <-c.send
	assert.Equal(t, "chat", msg.Event)

	require.Len(t, bridge.published, 1)
	assert.Equal(t, meetingID, bridge.published[0].MeetingID)
	assert.Equal(t, "chat", bridge.published[0].Event)
}

func TestHubBroadcastExceptPublishesUnfiltered(t *testing.T) {
	bridge := newFakeBridge()
	meetingID := uuid.New()
	hub, sender := hubWithMember(t, bridge, meetingID, "conn-sender")
	other := &Client{ConnID: "conn-other", send: make(chan WSMessage, 8)}
	hub.Track(other)
	hub.JoinRoom(meetingID, "conn-other")

	hub.BroadcastExcept(meetingID, "conn-sender", "typing_start", map[string]string{})

	assert.Empty(t, sender.send, "excluded connection gets nothing")
	assert.Len(t, other.send, 1)
	// Remote instances cannot hold the excluded connection, so the publish
	// carries the event for everyone there.
	assert.Len(t, bridge.published, 1)
}

func TestHubSubscriptionDeliveryNeverRepublishes(t *testing.T) {
	bridge := newFakeBridge()
	meetingID := uuid.New()
	_, c := hubWithMember(t, bridge, meetingID, "conn-1")

	handler, ok := bridge.handlers[meetingID]
	require.True(t, ok, "first room member starts the subscription")

	handler("reaction", []byte(`{"emoji":"wave"}`))

	require.Len(t, c.send, 1)
	msg := <-c.send
	assert.Equal(t, "reaction", msg.Event)
	assert.JSONEq(t, `{"emoji":"wave"}`, string(msg.Data))
	assert.Empty(t, bridge.published, "remote events must not loop back to Redis")
}

func TestHubLastLeaveCancelsSubscription(t *testing.T) {
	bridge := newFakeBridge()
	meetingID := uuid.New()
	hub, _ := hubWithMember(t, bridge, meetingID, "conn-1")

	hub.LeaveRoom(meetingID, "conn-1")
	assert.Equal(t, 1, bridge.cancelled)
}

func TestRedisPubSubDecodeSkipsOwnOrigin(t *testing.T) {
	r := &RedisPubSub{origin: "instance-a"}

	own, _ := json.Marshal(redisPayload{Origin: "instance-a", Event: "chat", Data: []byte(`{}`)})
	_, ok := r.decode(own)
	assert.False(t, ok, "self-published events were already delivered locally")

	remote, _ := json.Marshal(redisPayload{Origin: "instance-b", Event: "chat", Data: []byte(`{}`)})
	p, ok := r.decode(remote)
	require.True(t, ok)
	assert.Equal(t, "chat", p.Event)

	_, ok = r.decode([]byte("not json"))
	assert.False(t, ok)
}
