package models

import (
	"encoding/json"
	"time"
)

// Payloads of real-time events.

type FriendRequestEvent struct {
	RequestID uint          `json:"requestId"`
	Sender    *UserResponse `json:"sender,omitempty"`
	Message   string        `json:"message,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

type FriendResponseEvent struct {
	RequestID uint          `json:"requestId"`
	Friend    *UserResponse `json:"friend,omitempty"`
	UserID    uint          `json:"userId"`
}

type MessageDeliveredEvent struct {
	MessageID   uint      `json:"messageId"`
	DeliveredAt time.Time `json:"deliveredAt"`
}

type MessagesReadEvent struct {
	ConversationID uint      `json:"conversationId"`
	ReadAt         time.Time `json:"readAt"`
	Count          int64     `json:"count"`
}

type TypingEvent struct {
	SenderID   uint `json:"senderId"`
	ReceiverID uint `json:"receiverId"`
}

type PresenceEvent struct {
	UserID   uint           `json:"userId"`
	Status   PresenceStatus `json:"status"`
	LastSeen *time.Time     `json:"lastSeen,omitempty"`
}

type IncomingCallEvent struct {
	CallID string        `json:"callId"`
	Caller *UserResponse `json:"caller"`
	Type   CallType      `json:"type"`
}

type CallStateEvent struct {
	CallID  string    `json:"callId"`
	State   CallState `json:"state"`
	EndedBy uint      `json:"endedBy,omitempty"`
	Reason  string    `json:"reason,omitempty"`
}

type CallSignalEvent struct {
	CallID string          `json:"callId"`
	From   uint            `json:"from"`
	Signal json.RawMessage `json:"signal"`
}

// Inbound command payloads.

type TypingCommand struct {
	ReceiverID uint `json:"receiverId"`
}

type MarkReadCommand struct {
	FriendID uint `json:"friendId"`
}

type CallCommand struct {
	CallID string `json:"callId"`
}

type CallSignalCommand struct {
	CallID string          `json:"callId"`
	To     uint            `json:"to"`
	Signal json.RawMessage `json:"signal"`
}
