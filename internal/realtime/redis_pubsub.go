package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix = "meeting:"
	eventTTL      = 5 * time.Second
)

// redisPayload is the message published to Redis for cross-instance
// broadcast. Origin identifies the publishing instance so its own
// subscription can skip events it already delivered locally.
type redisPayload struct {
	Origin string          `json:"origin"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
	At     int64           `json:"at"`
}

// RedisPubSub implements RedisPublisher and RedisSubscriber using Redis
// pub/sub.
type RedisPubSub struct {
	client *redis.Client
	origin string
	logger *zap.Logger
}

// NewRedisPubSub creates a Redis pub/sub bridge for meeting events.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	return &RedisPubSub{client: client, origin: uuid.NewString(), logger: logger}
}

// PublishMeetingEvent publishes an event to the meeting's Redis channel.
func (r *RedisPubSub) PublishMeetingEvent(meetingID uuid.UUID, event string, payload []byte) error {
	channel := channelPrefix + meetingID.String()
	body, err := json.Marshal(redisPayload{Origin: r.origin, Event: event, Data: payload, At: time.Now().Unix()})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), eventTTL)
	defer cancel()
	return r.client.Publish(ctx, channel, body).Err()
}

// SubscribeMeeting subscribes to a meeting's Redis channel and calls handler
// for each message. Returns a cancel function to stop the subscription.
func (r *RedisPubSub) SubscribeMeeting(meetingID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error) {
	channel := channelPrefix + meetingID.String()
	ctx, cancelCtx := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(ctx, channel)
	_, err = pubsub.Receive(ctx)
	if err != nil {
		cancelCtx()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				p, ok := r.decode([]byte(msg.Payload))
				if !ok {
					continue
				}
				handler(p.Event, p.Data)
			}
		}
	}()
	cancel = func() { cancelCtx() }
	return cancel, nil
}

// decode unmarshals a raw pub/sub message. Malformed payloads and events
// this instance published itself are dropped; the local hub already
// delivered the latter.
func (r *RedisPubSub) decode(raw []byte) (redisPayload, bool) {
	var p redisPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return redisPayload{}, false
	}
	if p.Origin == r.origin {
		return redisPayload{}, false
	}
	return p, true
}

// TranscriptionChannel is the Redis channel audio chunks are relayed on. An
// external speech-to-text listener subscribes here and answers with
// transcript_result events over the socket.
const TranscriptionChannel = "transcription:audio"

// RedisTranscriptionSink forwards audio chunks to the transcription channel.
type RedisTranscriptionSink struct {
	client *redis.Client
}

// NewRedisTranscriptionSink creates the default Redis-backed audio relay.
func NewRedisTranscriptionSink(client *redis.Client) *RedisTranscriptionSink {
	return &RedisTranscriptionSink{client: client}
}

// Forward publishes one audio chunk, meeting and sender metadata included.
func (s *RedisTranscriptionSink) Forward(ctx context.Context, chunk AudioChunkPayload) error {
	body, err := json.Marshal(chunk)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, TranscriptionChannel, body).Err()
}
