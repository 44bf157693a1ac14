package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageChannel distinguishes public room chat from direct messages.
type MessageChannel string

const (
	ChannelPublic  MessageChannel = "public"
	ChannelPrivate MessageChannel = "private"
)

// Message is a chat message. It is persisted before it is broadcast: a
// message a client can see is always recoverable from storage.
type Message struct {
	ID            uuid.UUID      `json:"id"`
	MeetingID     uuid.UUID      `json:"meeting_id"`
	SenderID      uuid.UUID      `json:"sender_id"`
	SenderName    string         `json:"sender_name"`
	Content       string         `json:"content"`
	Channel       MessageChannel `json:"channel"`
	RecipientID   *uuid.UUID     `json:"recipient_id,omitempty"`
	RecipientName string         `json:"recipient_name,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}
