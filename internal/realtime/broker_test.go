package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddle-live/backend/internal/models"
)

// fakeSender records fanout calls instead of writing to sockets.
type fakeSender struct {
	mu         sync.Mutex
	broadcasts []sentEvent
	direct     []sentEvent
	closed     []string
}

type sentEvent struct {
	ConnID  string
	Event   string
	Payload interface{}
}

func (f *fakeSender) Broadcast(meetingID uuid.UUID, event string, payload interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts = append(f.broadcasts, sentEvent{Event: event, Payload: payload})
}

func (f *fakeSender) BroadcastExcept(meetingID uuid.UUID, exceptConnID, event string, payload interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts = append(f.broadcasts, sentEvent{ConnID: exceptConnID, Event: event, Payload: payload})
}

func (f *fakeSender) SendToConn(connID, event string, payload interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.direct = append(f.direct, sentEvent{ConnID: connID, Event: event, Payload: payload})
}

func (f *fakeSender) JoinRoom(meetingID uuid.UUID, connID string)  {}
func (f *fakeSender) LeaveRoom(meetingID uuid.UUID, connID string) {}

func (f *fakeSender) CloseConn(connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, connID)
}

func (f *fakeSender) broadcastEvents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.broadcasts))
	for i, e := range f.broadcasts {
		out[i] = e.Event
	}
	return out
}

// fakeMessages persists in memory, optionally failing every Save.
type fakeMessages struct {
	mu    sync.Mutex
	saved []*models.Message
	fail  error
}

func (f *fakeMessages) Save(ctx context.Context, msg *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.saved = append(f.saved, msg)
	return nil
}

// fakeMeetings serves a fixed meeting row.
type fakeMeetings struct {
	mu       sync.Mutex
	meeting  *models.Meeting
	ended    []uuid.UUID
	settings []models.MeetingSettings
}

func (f *fakeMeetings) GetByID(ctx context.Context, id uuid.UUID) (*models.Meeting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.meeting == nil || f.meeting.ID != id {
		return nil, errors.New("meeting not found")
	}
	m := *f.meeting
	return &m, nil
}

func (f *fakeMeetings) MarkLive(ctx context.Context, id uuid.UUID, startedAt time.Time) error {
	return nil
}

func (f *fakeMeetings) MarkEnded(ctx context.Context, id uuid.UUID, endedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended = append(f.ended, id)
	return nil
}

func (f *fakeMeetings) UpdateSettings(ctx context.Context, id uuid.UUID, settings models.MeetingSettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings = append(f.settings, settings)
	return nil
}

func newBrokerFixture(t *testing.T) (*Broker, *fakeSender, *fakeMessages, *Session) {
	t.Helper()
	sender := &fakeSender{}
	messages := &fakeMessages{}
	meetings := &fakeMeetings{}
	registry := NewRegistry(sender, meetings, nil)
	broker := NewBroker(sender, registry, messages, meetings, nil)
	sess := newTestSession()
	return broker, sender, messages, sess
}

func TestSendChatPersistThenBroadcast(t *testing.T) {
	broker, sender, messages, sess := newBrokerFixture(t)
	p := addParticipant(sess, RoleParticipant)

	err := broker.SendChat(context.Background(), sess, p, ChatPayload{Content: "hello"})
	require.NoError(t, err)

	require.Len(t, messages.saved, 1)
	saved := messages.saved[0]
	assert.Equal(t, p.ID, saved.SenderID)
	assert.Equal(t, "hello", saved.Content)
	assert.NotEqual(t, uuid.Nil, saved.ID)

	require.Len(t, sender.broadcasts, 1)
	assert.Equal(t, EventReceiveMessage, sender.broadcasts[0].Event)
	// The broadcast carries the persisted row, not the raw payload.
	assert.Same(t, saved, sender.broadcasts[0].Payload)
}

func TestSendChatPersistenceFailureSuppressesBroadcast(t *testing.T) {
	broker, sender, messages, sess := newBrokerFixture(t)
	p := addParticipant(sess, RoleParticipant)
	messages.fail = errors.New("db down")

	err := broker.SendChat(context.Background(), sess, p, ChatPayload{Content: "hello"})
	require.ErrorIs(t, err, ErrPersistence)
	assert.Empty(t, sender.broadcasts, "nothing may be broadcast on a failed write")
	assert.Empty(t, sender.direct)
}

func TestSendChatPrivateGoesToPairOnly(t *testing.T) {
	broker, sender, messages, sess := newBrokerFixture(t)
	from := addParticipant(sess, RoleParticipant)
	to := addParticipant(sess, RoleParticipant)

	err := broker.SendChat(context.Background(), sess, from, ChatPayload{
		Content:     "psst",
		Channel:     models.ChannelPrivate,
		RecipientID: &to.ID,
	})
	require.NoError(t, err)
	require.Len(t, messages.saved, 1)
	assert.Empty(t, sender.broadcasts)
	require.Len(t, sender.direct, 2)
	conns := []string{sender.direct[0].ConnID, sender.direct[1].ConnID}
	assert.ElementsMatch(t, []string{from.ConnID, to.ConnID}, conns)
}

func TestSendChatValidation(t *testing.T) {
	broker, sender, _, sess := newBrokerFixture(t)
	p := addParticipant(sess, RoleParticipant)

	assert.Error(t, broker.SendChat(context.Background(), sess, p, ChatPayload{}))
	assert.Error(t, broker.SendChat(context.Background(), sess, p, ChatPayload{
		Content: "x", Channel: models.ChannelPrivate,
	}))
	assert.Empty(t, sender.broadcasts)
}

func TestModerationRejectedLeavesTargetUnchanged(t *testing.T) {
	broker, sender, _, sess := newBrokerFixture(t)
	actor := addParticipant(sess, RoleParticipant)
	target := addParticipant(sess, RoleParticipant)
	target.AudioMuted = false

	err := broker.MuteOther(sess, actor, target.ID)
	var capErr *CapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.False(t, sess.Get(target.ID).AudioMuted, "target state must not change on a reject")
	assert.Empty(t, sender.broadcasts)

	// The same action from a co-host lands and is broadcast.
	coHost := addParticipant(sess, RoleCoHost)
	require.NoError(t, broker.MuteOther(sess, coHost, target.ID))
	assert.True(t, sess.Get(target.ID).AudioMuted)
	require.Len(t, sender.broadcasts, 1)
	assert.Equal(t, EventParticipantUpdated, sender.broadcasts[0].Event)
}

func TestMediaStateSelfUnmutePolicy(t *testing.T) {
	broker, _, _, sess := newBrokerFixture(t)
	sess.Settings.AllowSelfUnmute = false
	p := addParticipant(sess, RoleParticipant)
	p.AudioMuted = true

	unmuted := false
	err := broker.MediaState(sess, p, MediaStatePayload{AudioMuted: &unmuted})
	var capErr *CapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.True(t, sess.Get(p.ID).AudioMuted)

	// Hosts self-unmute regardless of the policy.
	host := addParticipant(sess, RoleHost)
	host.AudioMuted = true
	assert.NoError(t, broker.MediaState(sess, host, MediaStatePayload{AudioMuted: &unmuted}))
}

func TestMediaStateVideoRevoked(t *testing.T) {
	broker, _, _, sess := newBrokerFixture(t)
	p := addParticipant(sess, RoleParticipant)
	p.VideoAllowed = false

	videoOn := false
	err := broker.MediaState(sess, p, MediaStatePayload{VideoOff: &videoOn})
	var capErr *CapabilityError
	require.ErrorAs(t, err, &capErr)
}

func TestPromoteSecondHostFails(t *testing.T) {
	broker, sender, _, sess := newBrokerFixture(t)
	host := addParticipant(sess, RoleHost)
	sess.HostID = host.ID
	target := addParticipant(sess, RoleParticipant)

	err := broker.PromoteRole(sess, host, target.ID, RoleHost)
	assert.ErrorIs(t, err, ErrHostExists)
	assert.Empty(t, sender.broadcasts)

	require.NoError(t, broker.PromoteRole(sess, host, target.ID, RoleCoHost))
	require.Len(t, sender.broadcasts, 1)
	assert.Equal(t, EventRoleChanged, sender.broadcasts[0].Event)
}

func TestEffectiveRoleHostlessRoom(t *testing.T) {
	broker, _, _, sess := newBrokerFixture(t)
	original := addParticipant(sess, RoleParticipant)
	sess.OriginalHostID = original.ID
	sess.HostID = uuid.Nil
	target := addParticipant(sess, RoleParticipant)

	// The original host keeps moderation authority while the room is
	// host-less, so it can promote itself back.
	assert.Equal(t, RoleHost, EffectiveRole(sess, original))
	require.NoError(t, broker.PromoteRole(sess, original, original.ID, RoleHost))
	assert.Equal(t, original.ID, sess.HostID)

	// Everyone else stays a participant.
	assert.Equal(t, RoleParticipant, EffectiveRole(sess, target))
}

func TestKickHostRequiresRevokeFirst(t *testing.T) {
	broker, sender, _, sess := newBrokerFixture(t)
	host := addParticipant(sess, RoleHost)
	sess.HostID = host.ID
	coHost := addParticipant(sess, RoleCoHost)

	err := broker.Kick(sess, coHost, host.ID)
	assert.ErrorIs(t, err, ErrTargetIsHost)
	assert.Empty(t, sender.closed)
}

func TestStopVideoAllHostOnly(t *testing.T) {
	broker, _, _, sess := newBrokerFixture(t)
	coHost := addParticipant(sess, RoleCoHost)
	addParticipant(sess, RoleParticipant)

	var capErr *CapabilityError
	assert.ErrorAs(t, broker.StopVideoAll(sess, coHost), &capErr)

	host := addParticipant(sess, RoleHost)
	assert.NoError(t, broker.StopVideoAll(sess, host))
}

func TestConcurrentChatSendsBothPersist(t *testing.T) {
	broker, sender, messages, sess := newBrokerFixture(t)
	x := addParticipant(sess, RoleParticipant)
	y := addParticipant(sess, RoleParticipant)

	var wg sync.WaitGroup
	for _, p := range []*Participant{x, y} {
		wg.Add(1)
		go func(p *Participant) {
			defer wg.Done()
			_ = broker.SendChat(context.Background(), sess, p, ChatPayload{Content: "from " + p.ConnID})
		}(p)
	}
	wg.Wait()

	assert.Len(t, messages.saved, 2)
	assert.Len(t, sender.broadcastEvents(), 2)
}

func TestPublishTranscriptRetains(t *testing.T) {
	broker, sender, _, sess := newBrokerFixture(t)
	p := addParticipant(sess, RoleParticipant)

	broker.PublishTranscript(sess, TranscriptPayload{UserID: p.ID, SenderName: "p", Text: "hello"})
	require.Len(t, sender.broadcasts, 1)
	assert.Equal(t, EventTranscriptionResult, sender.broadcasts[0].Event)

	segs := sess.Transcript().Snapshot()
	require.Len(t, segs, 1)
	assert.Equal(t, "hello", segs[0].Text)
	assert.False(t, segs[0].Timestamp.IsZero())
}

type fakeTranscriptionSink struct {
	forwarded []AudioChunkPayload
	fail      error
}

func (f *fakeTranscriptionSink) Forward(_ context.Context, chunk AudioChunkPayload) error {
	if f.fail != nil {
		return f.fail
	}
	f.forwarded = append(f.forwarded, chunk)
	return nil
}

func TestAudioChunkForwardsWithRoomMetadata(t *testing.T) {
	broker, _, _, sess := newBrokerFixture(t)
	p := addParticipant(sess, RoleParticipant)
	sink := &fakeTranscriptionSink{}
	broker.SetTranscriptionSink(sink)

	broker.AudioChunk(context.Background(), sess, p, AudioChunkPayload{Audio: []byte{0x01, 0x02}})

	require.Len(t, sink.forwarded, 1)
	chunk := sink.forwarded[0]
	assert.Equal(t, sess.MeetingID, chunk.MeetingID)
	assert.Equal(t, p.ID, chunk.UserID)
	assert.Equal(t, p.DisplayName, chunk.SenderName)
	assert.Equal(t, []byte{0x01, 0x02}, chunk.Audio)
}

func TestAudioChunkWithoutSinkIsDropped(t *testing.T) {
	broker, sender, _, sess := newBrokerFixture(t)
	p := addParticipant(sess, RoleParticipant)

	broker.AudioChunk(context.Background(), sess, p, AudioChunkPayload{Audio: []byte{0x01}})
	assert.Empty(t, sender.broadcasts, "audio is never fanned out to the room")
}

func TestAudioChunkSinkFailureIsIsolated(t *testing.T) {
	broker, _, _, sess := newBrokerFixture(t)
	p := addParticipant(sess, RoleParticipant)
	broker.SetTranscriptionSink(&fakeTranscriptionSink{fail: errors.New("redis down")})

	// Forward failure must not panic or surface to the read loop.
	broker.AudioChunk(context.Background(), sess, p, AudioChunkPayload{Audio: []byte{0x01}})
}
