package realtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/huddle-live/backend/internal/models"
)

// ErrPersistence marks a durable-write failure. The event is never broadcast
// and the sender alone is told.
var ErrPersistence = errors.New("persistence failed")

// MessageStore persists chat messages. Save must be durable before it
// returns: the broker broadcasts nothing it could not recover from storage.
type MessageStore interface {
	Save(ctx context.Context, msg *models.Message) error
}

// TranscriptionSink receives opaque audio chunks for an external
// speech-to-text collaborator. The broker never inspects the audio; results
// come back through PublishTranscript.
type TranscriptionSink interface {
	Forward(ctx context.Context, chunk AudioChunkPayload) error
}

// Broker validates, persists where required, and fans out room events.
// Callers invoke it synchronously from a connection's read loop, which gives
// per-sender FIFO delivery; no cross-sender order is promised.
type Broker struct {
	sender   RoomSender
	registry *Registry
	messages MessageStore
	meetings MeetingStore
	stt      TranscriptionSink
	logger   *zap.Logger
}

// NewBroker creates a room event broker.
func NewBroker(sender RoomSender, registry *Registry, messages MessageStore, meetings MeetingStore, logger *zap.Logger) *Broker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broker{
		sender:   sender,
		registry: registry,
		messages: messages,
		meetings: meetings,
		logger:   logger,
	}
}

// SetTranscriptionSink wires the external transcription collaborator.
func (b *Broker) SetTranscriptionSink(s TranscriptionSink) {
	b.stt = s
}

// EffectiveRole is the role used for authority checks. A host-less session
// (host disconnected, no reassignment yet) keeps the original host's
// moderation authority so the room can be recovered.
func EffectiveRole(sess *Session, p *Participant) Role {
	if sess.HostID == uuid.Nil && p.ID == sess.OriginalHostID {
		return RoleHost
	}
	return p.Role
}

// SendChat validates a chat message, persists it, then broadcasts the
// persisted row (server id and timestamp included). On persistence failure
// nothing is broadcast and the sender alone sees the error.
func (b *Broker) SendChat(ctx context.Context, sess *Session, sender *Participant, payload ChatPayload) error {
	if payload.Content == "" {
		return errors.New("empty message content")
	}
	if payload.Channel == "" {
		payload.Channel = models.ChannelPublic
	}
	if payload.Channel == models.ChannelPrivate && payload.RecipientID == nil {
		return errors.New("private message without recipient")
	}

	msg := &models.Message{
		ID:         uuid.New(),
		MeetingID:  sess.MeetingID,
		SenderID:   sender.ID,
		SenderName: sender.DisplayName,
		Content:    payload.Content,
		Channel:    payload.Channel,
		CreatedAt:  time.Now(),
	}
	if payload.RecipientID != nil {
		msg.RecipientID = payload.RecipientID
		if rp := sess.Get(*payload.RecipientID); rp != nil {
			msg.RecipientName = rp.DisplayName
		}
	}

	if err := b.messages.Save(ctx, msg); err != nil {
		b.logger.Error("persist chat message failed",
			zap.Error(err), zap.String("meeting_id", sess.MeetingID.String()))
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if msg.Channel == models.ChannelPrivate {
		b.sender.SendToConn(sender.ConnID, EventReceiveMessage, msg)
		if rp := sess.Get(*msg.RecipientID); rp != nil {
			b.sender.SendToConn(rp.ConnID, EventReceiveMessage, msg)
		}
		return nil
	}
	b.sender.Broadcast(sess.MeetingID, EventReceiveMessage, msg)
	return nil
}

// Typing relays a typing indicator to everyone but the sender. Best effort,
// never persisted.
func (b *Broker) Typing(sess *Session, sender *Participant, start bool) {
	event := EventTypingStop
	if start {
		event = EventTypingStart
	}
	b.sender.BroadcastExcept(sess.MeetingID, sender.ConnID, event, TypingPayload{
		MeetingID: sess.MeetingID,
		UserID:    sender.ID,
		UserName:  sender.DisplayName,
	})
}

// MediaState applies the sender's report about its own devices and relays
// it. The broker trusts the reported booleans; it only enforces the unmute
// and video-allowed policies.
func (b *Broker) MediaState(sess *Session, sender *Participant, patch MediaStatePayload) error {
	role := EffectiveRole(sess, sender)
	if patch.AudioMuted != nil && !*patch.AudioMuted &&
		!sess.Settings.AllowSelfUnmute && role == RoleParticipant && sender.AudioMuted {
		return &CapabilityError{Role: role, Action: ActionAllowUnmute}
	}
	if patch.VideoOff != nil && !*patch.VideoOff && !sender.VideoAllowed {
		return &CapabilityError{Role: role, Action: ActionAllowVideo}
	}
	if patch.ScreenSharing != nil && *patch.ScreenSharing {
		if !sharePolicyAllows(sess.Settings.ScreenSharePolicy, role) {
			return &CapabilityError{Role: role, Action: ActionSettings}
		}
	}
	state, err := sess.UpdateMedia(sender.ID, patch)
	if err != nil {
		return err
	}
	b.sender.Broadcast(sess.MeetingID, EventParticipantUpdated, state)
	return nil
}

// HandRaise toggles the sender's hand and relays the row. Broadcast-only
// semantics on failure: a missing participant is dropped silently.
func (b *Broker) HandRaise(sess *Session, sender *Participant, raised bool) {
	state, err := sess.SetHandRaised(sender.ID, raised)
	if err != nil {
		return
	}
	b.sender.Broadcast(sess.MeetingID, EventParticipantUpdated, state)
}

// Reaction relays a transient reaction, unpersisted.
func (b *Broker) Reaction(sess *Session, sender *Participant, emoji string) {
	b.sender.Broadcast(sess.MeetingID, EventReaction, ReactionPayload{
		UserID:   sender.ID,
		UserName: sender.DisplayName,
		Emoji:    emoji,
	})
}

// VideoRequest relays a start-your-video ask to the target. Resolution is
// client-local: the target auto-denies after 30 seconds.
func (b *Broker) VideoRequest(sess *Session, sender *Participant, targetID uuid.UUID) error {
	if err := Authorize(EffectiveRole(sess, sender), ActionAllowVideo); err != nil {
		return err
	}
	target := sess.Get(targetID)
	if target == nil {
		return ErrNotInSession
	}
	b.sender.SendToConn(target.ConnID, EventVideoRequest, VideoRequestPayload{
		TargetID: targetID,
		FromID:   sender.ID,
		FromName: sender.DisplayName,
	})
	return nil
}

// VideoRequestResponse relays the target's answer back to the requester.
func (b *Broker) VideoRequestResponse(sess *Session, sender *Participant, resp VideoRequestResponsePayload) {
	requester := sess.Get(resp.RequesterID)
	if requester == nil {
		return
	}
	b.sender.SendToConn(requester.ConnID, EventVideoRequestResponse, VideoRequestResponsePayload{
		RequesterID: sender.ID,
		Accepted:    resp.Accepted,
	})
}

// MuteOther force-mutes a target. Authoritative: last writer wins over any
// in-flight optimistic toggle from the target.
func (b *Broker) MuteOther(sess *Session, actor *Participant, targetID uuid.UUID) error {
	return b.moderateMedia(sess, actor, targetID, ActionMuteOther, func() (ParticipantState, error) {
		muted := true
		return sess.UpdateMedia(targetID, MediaStatePayload{AudioMuted: &muted})
	})
}

// AllowUnmute unmutes a target on behalf of a host/co-host.
func (b *Broker) AllowUnmute(sess *Session, actor *Participant, targetID uuid.UUID) error {
	return b.moderateMedia(sess, actor, targetID, ActionAllowUnmute, func() (ParticipantState, error) {
		muted := false
		return sess.UpdateMedia(targetID, MediaStatePayload{AudioMuted: &muted})
	})
}

// StopVideo turns a target's video off and revokes self-restart until
// AllowVideo.
func (b *Broker) StopVideo(sess *Session, actor *Participant, targetID uuid.UUID) error {
	return b.moderateMedia(sess, actor, targetID, ActionStopVideo, func() (ParticipantState, error) {
		return sess.SetVideoAllowed(targetID, false)
	})
}

// AllowVideo restores a target's right to start video.
func (b *Broker) AllowVideo(sess *Session, actor *Participant, targetID uuid.UUID) error {
	return b.moderateMedia(sess, actor, targetID, ActionAllowVideo, func() (ParticipantState, error) {
		return sess.SetVideoAllowed(targetID, true)
	})
}

func (b *Broker) moderateMedia(sess *Session, actor *Participant, targetID uuid.UUID, action Action, apply func() (ParticipantState, error)) error {
	if err := Authorize(EffectiveRole(sess, actor), action); err != nil {
		return err
	}
	state, err := apply()
	if err != nil {
		return err
	}
	b.sender.Broadcast(sess.MeetingID, EventParticipantUpdated, state)
	return nil
}

// PromoteRole grants host or co-host. Host promotion fails while another
// participant holds the role; co-hosts are capped.
func (b *Broker) PromoteRole(sess *Session, actor *Participant, targetID uuid.UUID, role Role) error {
	if err := Authorize(EffectiveRole(sess, actor), ActionPromoteRole); err != nil {
		return err
	}
	if role != RoleHost && role != RoleCoHost {
		return ErrInvalidRole
	}
	if err := sess.SetRole(targetID, role); err != nil {
		return err
	}
	b.sender.Broadcast(sess.MeetingID, EventRoleChanged, RoleChangedPayload{UserID: targetID, Role: role})
	return nil
}

// RevokeRole demotes a host or co-host to participant.
func (b *Broker) RevokeRole(sess *Session, actor *Participant, targetID uuid.UUID) error {
	if err := Authorize(EffectiveRole(sess, actor), ActionRevokeRole); err != nil {
		return err
	}
	if err := sess.SetRole(targetID, RoleParticipant); err != nil {
		return err
	}
	b.sender.Broadcast(sess.MeetingID, EventRoleChanged, RoleChangedPayload{UserID: targetID, Role: RoleParticipant})
	return nil
}

// Kick removes a participant. A sitting host can not be kicked; revoke the
// role first.
func (b *Broker) Kick(sess *Session, actor *Participant, targetID uuid.UUID) error {
	target := sess.Get(targetID)
	if target == nil {
		return ErrNotInSession
	}
	if err := AuthorizeTarget(EffectiveRole(sess, actor), ActionKick, target.Role); err != nil {
		return err
	}
	b.registry.Kick(sess, target)
	return nil
}

// AdmitWaiting admits a user from the waiting room; idempotent when absent.
func (b *Broker) AdmitWaiting(ctx context.Context, sess *Session, actor *Participant, userID uuid.UUID) error {
	if err := Authorize(EffectiveRole(sess, actor), ActionAdmitWaiting); err != nil {
		return err
	}
	b.registry.Admit(ctx, sess, userID)
	return nil
}

// DenyWaiting rejects a waiting user; idempotent when absent.
func (b *Broker) DenyWaiting(sess *Session, actor *Participant, userID uuid.UUID) error {
	if err := Authorize(EffectiveRole(sess, actor), ActionAdmitWaiting); err != nil {
		return err
	}
	b.registry.Deny(sess, userID)
	return nil
}

// MuteAll mutes every other participant.
func (b *Broker) MuteAll(sess *Session, actor *Participant) error {
	if err := Authorize(EffectiveRole(sess, actor), ActionMuteAll); err != nil {
		return err
	}
	for _, state := range sess.MuteAll(actor.ID) {
		b.sender.Broadcast(sess.MeetingID, EventParticipantUpdated, state)
	}
	return nil
}

// StopVideoAll turns off every other participant's video. Host only.
func (b *Broker) StopVideoAll(sess *Session, actor *Participant) error {
	if err := Authorize(EffectiveRole(sess, actor), ActionStopVideoAll); err != nil {
		return err
	}
	for _, state := range sess.StopVideoAll(actor.ID) {
		b.sender.Broadcast(sess.MeetingID, EventParticipantUpdated, state)
	}
	return nil
}

// Lock toggles the join lock.
func (b *Broker) Lock(sess *Session, actor *Participant, locked bool) error {
	if err := Authorize(EffectiveRole(sess, actor), ActionLockMeeting); err != nil {
		return err
	}
	sess.mu.Lock()
	sess.Locked = locked
	sess.mu.Unlock()
	b.sender.Broadcast(sess.MeetingID, EventMeetingLocked, LockPayload{Locked: locked})
	return nil
}

// UpdateSettings patches the live settings, persists them, and fans out the
// result.
func (b *Broker) UpdateSettings(ctx context.Context, sess *Session, actor *Participant, patch SettingsPatch) error {
	if err := Authorize(EffectiveRole(sess, actor), ActionSettings); err != nil {
		return err
	}
	settings := sess.ApplySettings(patch)
	if err := b.meetings.UpdateSettings(ctx, sess.MeetingID, settings); err != nil {
		b.logger.Warn("persist meeting settings", zap.Error(err), zap.String("meeting_id", sess.MeetingID.String()))
	}
	b.sender.Broadcast(sess.MeetingID, EventSettingsUpdated, settings)
	return nil
}

// Recording flips the session recording flag. The subscription-plan gate is
// applied client-side; the broker checks the moderation capability only.
func (b *Broker) Recording(sess *Session, actor *Participant, recording bool) error {
	if err := Authorize(EffectiveRole(sess, actor), ActionRecording); err != nil {
		return err
	}
	sess.mu.Lock()
	sess.Recording = recording
	sess.mu.Unlock()
	b.sender.Broadcast(sess.MeetingID, EventRecordingState, RecordingStatePayload{Recording: recording})
	return nil
}

// AudioChunk relays an opaque audio sample to the transcription sink.
// Dropped silently when no sink is wired.
func (b *Broker) AudioChunk(ctx context.Context, sess *Session, sender *Participant, chunk AudioChunkPayload) {
	if b.stt == nil {
		return
	}
	chunk.MeetingID = sess.MeetingID
	chunk.UserID = sender.ID
	chunk.SenderName = sender.DisplayName
	if err := b.stt.Forward(ctx, chunk); err != nil {
		b.logger.Debug("audio chunk forward failed", zap.Error(err))
	}
}

// PublishTranscript fans a caption segment from the transcription
// collaborator into the room and retains it for the recap.
func (b *Broker) PublishTranscript(sess *Session, seg TranscriptPayload) {
	if seg.Timestamp.IsZero() {
		seg.Timestamp = time.Now()
	}
	sess.Transcript().Append(models.TranscriptSegment{
		UserID:     seg.UserID,
		SenderName: seg.SenderName,
		Text:       seg.Text,
		Timestamp:  seg.Timestamp,
	})
	b.sender.Broadcast(sess.MeetingID, EventTranscriptionResult, seg)
}

// End terminates the meeting for everyone.
func (b *Broker) End(ctx context.Context, sess *Session, actor *Participant) error {
	if err := Authorize(EffectiveRole(sess, actor), ActionEndMeeting); err != nil {
		return err
	}
	b.registry.End(ctx, sess.MeetingID)
	return nil
}

func sharePolicyAllows(policy models.SharePolicy, role Role) bool {
	switch policy {
	case models.PolicyEveryone:
		return true
	case models.PolicyCoHost:
		return role == RoleHost || role == RoleCoHost
	case models.PolicyHostOnly:
		return role == RoleHost
	default:
		return false
	}
}
