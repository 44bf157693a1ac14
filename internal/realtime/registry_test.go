package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddle-live/backend/internal/models"
)

func newRegistryFixture(t *testing.T, meeting *models.Meeting) (*Registry, *fakeSender, *fakeMeetings) {
	t.Helper()
	sender := &fakeSender{}
	meetings := &fakeMeetings{meeting: meeting}
	return NewRegistry(sender, meetings, nil), sender, meetings
}

func scheduledMeeting() *models.Meeting {
	hostID := uuid.New()
	return &models.Meeting{
		ID:             uuid.New(),
		Title:          "standup",
		HostID:         hostID,
		OriginalHostID: hostID,
		Status:         models.MeetingScheduled,
		Settings:       models.DefaultMeetingSettings(),
	}
}

func TestJoinAdmitsAndSendsRoster(t *testing.T) {
	m := scheduledMeeting()
	reg, sender, _ := newRegistryFixture(t, m)

	status, err := reg.Join(context.Background(), "conn-1", m.HostID, "alice", JoinPayload{MeetingID: m.ID})
	require.NoError(t, err)
	assert.Equal(t, JoinAdmitted, status)

	sess := reg.Session(m.ID)
	require.NotNil(t, sess)
	assert.Equal(t, 1, sess.Size())
	// The stored host joins as host.
	role, ok := sess.RoleOf(m.HostID)
	require.True(t, ok)
	assert.Equal(t, RoleHost, role)

	require.NotEmpty(t, sender.direct)
	assert.Equal(t, EventRoster, sender.direct[0].Event)
}

func TestJoinWaitingRoomFlow(t *testing.T) {
	m := scheduledMeeting()
	m.Settings.WaitingRoomEnabled = true
	reg, sender, _ := newRegistryFixture(t, m)
	ctx := context.Background()

	_, err := reg.Join(ctx, "host-conn", m.HostID, "host", JoinPayload{MeetingID: m.ID})
	require.NoError(t, err)

	guest := uuid.New()
	status, err := reg.Join(ctx, "guest-conn", guest, "guest", JoinPayload{MeetingID: m.ID})
	require.NoError(t, err)
	assert.Equal(t, JoinWaiting, status)

	sess := reg.Session(m.ID)
	assert.Equal(t, 1, sess.Size(), "waiting users are not in the roster")
	require.Len(t, sess.Waiting(), 1)

	// The host got the waiting_join notification.
	var sawWaiting bool
	for _, e := range sender.direct {
		if e.ConnID == "host-conn" && e.Event == EventWaitingJoin {
			sawWaiting = true
		}
	}
	assert.True(t, sawWaiting)

	reg.Admit(ctx, sess, guest)
	assert.Equal(t, 2, sess.Size())
	assert.Empty(t, sess.Waiting())

	// Double admit is a no-op.
	reg.Admit(ctx, sess, guest)
	assert.Equal(t, 2, sess.Size())

	// Deny of an absent user is a no-op too.
	reg.Deny(sess, uuid.New())
	assert.Empty(t, sender.closed)
}

func TestJoinDeniedClosesConn(t *testing.T) {
	m := scheduledMeeting()
	m.Settings.WaitingRoomEnabled = true
	reg, sender, _ := newRegistryFixture(t, m)
	ctx := context.Background()

	guest := uuid.New()
	status, err := reg.Join(ctx, "guest-conn", guest, "guest", JoinPayload{MeetingID: m.ID})
	require.NoError(t, err)
	require.Equal(t, JoinWaiting, status)

	sess := reg.Session(m.ID)
	reg.Deny(sess, guest)
	assert.Contains(t, sender.closed, "guest-conn")
	assert.Empty(t, sess.Waiting())
}

func TestJoinLockedAndPassword(t *testing.T) {
	m := scheduledMeeting()
	m.Password = "s3cret"
	reg, _, _ := newRegistryFixture(t, m)
	ctx := context.Background()

	guest := uuid.New()
	_, err := reg.Join(ctx, "c1", guest, "guest", JoinPayload{MeetingID: m.ID, Password: "nope"})
	assert.ErrorIs(t, err, ErrWrongPassword)

	// The stored host bypasses the password.
	_, err = reg.Join(ctx, "c2", m.HostID, "host", JoinPayload{MeetingID: m.ID})
	require.NoError(t, err)

	sess := reg.Session(m.ID)
	sess.Locked = true
	_, err = reg.Join(ctx, "c3", guest, "guest", JoinPayload{MeetingID: m.ID, Password: "s3cret"})
	assert.ErrorIs(t, err, ErrSessionLocked)
}

func TestJoinEndedMeeting(t *testing.T) {
	m := scheduledMeeting()
	m.Status = models.MeetingEnded
	reg, _, _ := newRegistryFixture(t, m)

	_, err := reg.Join(context.Background(), "c1", uuid.New(), "late", JoinPayload{MeetingID: m.ID})
	assert.ErrorIs(t, err, ErrSessionEnded)
}

func TestReconnectReplacesStaleConnection(t *testing.T) {
	m := scheduledMeeting()
	reg, sender, _ := newRegistryFixture(t, m)
	ctx := context.Background()
	user := uuid.New()

	_, err := reg.Join(ctx, "conn-old", user, "bob", JoinPayload{MeetingID: m.ID})
	require.NoError(t, err)
	_, err = reg.Join(ctx, "conn-new", user, "bob", JoinPayload{MeetingID: m.ID})
	require.NoError(t, err)

	sess := reg.Session(m.ID)
	assert.Equal(t, 1, sess.Size(), "reconnect must not duplicate the participant")
	assert.Contains(t, sender.closed, "conn-old")

	// The stale socket's eventual close must not remove the fresh entry.
	reg.Leave(ctx, "conn-old")
	assert.Equal(t, 1, sess.Size())
}

func TestHostLeaveLeavesRoomHostless(t *testing.T) {
	m := scheduledMeeting()
	reg, _, _ := newRegistryFixture(t, m)
	ctx := context.Background()

	_, err := reg.Join(ctx, "host-conn", m.HostID, "host", JoinPayload{MeetingID: m.ID})
	require.NoError(t, err)
	_, err = reg.Join(ctx, "p-conn", uuid.New(), "p", JoinPayload{MeetingID: m.ID})
	require.NoError(t, err)

	sess := reg.Session(m.ID)
	reg.Leave(ctx, "host-conn")

	assert.Equal(t, uuid.Nil, sess.HostID, "no automatic host reassignment")
	assert.Equal(t, 1, sess.Size())
	// Session survives while members remain.
	assert.NotNil(t, reg.Session(m.ID))
}

func TestHostRejoinRestoresHostPointer(t *testing.T) {
	m := scheduledMeeting()
	reg, sender, _ := newRegistryFixture(t, m)
	ctx := context.Background()

	_, err := reg.Join(ctx, "host-conn", m.HostID, "host", JoinPayload{MeetingID: m.ID})
	require.NoError(t, err)
	_, err = reg.Join(ctx, "p-conn", uuid.New(), "p", JoinPayload{MeetingID: m.ID})
	require.NoError(t, err)

	sess := reg.Session(m.ID)
	reg.Leave(ctx, "host-conn")
	require.Equal(t, uuid.Nil, sess.CurrentHost())

	_, err = reg.Join(ctx, "host-conn-2", m.HostID, "host", JoinPayload{MeetingID: m.ID})
	require.NoError(t, err)

	role, ok := sess.RoleOf(m.HostID)
	require.True(t, ok)
	assert.Equal(t, RoleHost, role)
	assert.Equal(t, m.HostID, sess.CurrentHost(), "host pointer follows the readmitted host")

	// The rejoiner's roster snapshot carries the restored host id.
	var roster *RosterPayload
	for _, e := range sender.direct {
		if e.ConnID == "host-conn-2" && e.Event == EventRoster {
			p := e.Payload.(RosterPayload)
			roster = &p
		}
	}
	require.NotNil(t, roster)
	assert.Equal(t, m.HostID, roster.HostID)
}

func TestStoredHostRejoinYieldsToPromotedHost(t *testing.T) {
	m := scheduledMeeting()
	reg, _, _ := newRegistryFixture(t, m)
	ctx := context.Background()
	other := uuid.New()

	_, err := reg.Join(ctx, "host-conn", m.HostID, "host", JoinPayload{MeetingID: m.ID})
	require.NoError(t, err)
	_, err = reg.Join(ctx, "p-conn", other, "p", JoinPayload{MeetingID: m.ID})
	require.NoError(t, err)

	sess := reg.Session(m.ID)
	reg.Leave(ctx, "host-conn")
	require.NoError(t, sess.SetRole(other, RoleHost))

	_, err = reg.Join(ctx, "host-conn-2", m.HostID, "host", JoinPayload{MeetingID: m.ID})
	require.NoError(t, err)

	// The promoted host keeps the role; the returner rejoins as participant.
	role, ok := sess.RoleOf(m.HostID)
	require.True(t, ok)
	assert.Equal(t, RoleParticipant, role)
	assert.Equal(t, other, sess.CurrentHost())
}

func TestLastLeaveEndsSessionWithTranscript(t *testing.T) {
	m := scheduledMeeting()
	reg, sender, meetings := newRegistryFixture(t, m)
	ctx := context.Background()

	var ended []EndedSession
	reg.SetEndedHandler(func(e EndedSession) { ended = append(ended, e) })

	_, err := reg.Join(ctx, "c1", m.HostID, "host", JoinPayload{MeetingID: m.ID})
	require.NoError(t, err)

	sess := reg.Session(m.ID)
	sess.Transcript().Append(models.TranscriptSegment{Text: "only line", Timestamp: time.Now()})

	reg.Leave(ctx, "c1")

	assert.Nil(t, reg.Session(m.ID))
	require.Len(t, ended, 1)
	assert.Equal(t, m.ID, ended[0].MeetingID)
	assert.Equal(t, "standup", ended[0].Title)
	require.Len(t, ended[0].Transcript, 1)
	assert.Equal(t, "only line", ended[0].Transcript[0].Text)

	assert.Contains(t, meetings.ended, m.ID)
	assert.Contains(t, sender.broadcastEvents(), EventMeetingEnded)
}

func TestWaitingConnDisconnectDropsEntry(t *testing.T) {
	m := scheduledMeeting()
	m.Settings.WaitingRoomEnabled = true
	reg, _, _ := newRegistryFixture(t, m)
	ctx := context.Background()

	guest := uuid.New()
	_, err := reg.Join(ctx, "guest-conn", guest, "guest", JoinPayload{MeetingID: m.ID})
	require.NoError(t, err)

	sess := reg.Session(m.ID)
	require.Len(t, sess.Waiting(), 1)

	reg.Leave(ctx, "guest-conn")
	assert.Empty(t, sess.Waiting())
	// Admitting after the disconnect is the idempotent no-op path.
	reg.Admit(ctx, sess, guest)
	assert.Equal(t, 0, sess.Size())
}
