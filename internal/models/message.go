package models

import (
	"time"
)

type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeSystem MessageType = "system"
)

func (t MessageType) IsValid() bool {
	return t == MessageTypeText || t == MessageTypeSystem
}

type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
)

/** --------------------ENTITIES-------------------- */
// Message rows are immutable apart from forward status transitions.
type Message struct {
	ID              uint          `gorm:"primaryKey" json:"id"`
	ConversationKey string        `gorm:"size:64;not null;uniqueIndex:idx_message_conversation_seq" json:"-"`
	Seq             uint64        `gorm:"not null;uniqueIndex:idx_message_conversation_seq" json:"seq"`
	SenderID        uint          `gorm:"not null;index" json:"senderId"`
	ReceiverID      uint          `gorm:"not null;index:idx_message_receiver_status" json:"receiverId"`
	Content         string        `gorm:"type:text;not null" json:"content"`
	Type            MessageType   `gorm:"type:varchar(16);not null" json:"messageType"`
	Status          MessageStatus `gorm:"type:varchar(16);not null;index:idx_message_receiver_status" json:"status"`
	CreatedAt       time.Time     `gorm:"autoCreateTime:false" json:"createdAt"`
	DeliveredAt     *time.Time    `json:"deliveredAt,omitempty"`
	ReadAt          *time.Time    `json:"readAt,omitempty"`
}

/** -------------------- DTOs -------------------- */
type SendMessageRequest struct {
	ReceiverID  uint        `json:"receiverId" binding:"required"`
	Content     string      `json:"content" binding:"required"`
	MessageType MessageType `json:"messageType"`
}

// ConversationSummary is the derived per-friend view used by the conversation list.
type ConversationSummary struct {
	FriendID        uint          `json:"friendId"`
	Friend          *UserResponse `json:"friend,omitempty"`
	LastMessage     *Message      `json:"lastMessage"`
	LastMessageTime time.Time     `json:"lastMessageTime"`
	UnreadCount     int64         `json:"unreadCount"`
}

type ChatExport struct {
	ChatData    []Message `json:"chatData"`
	FriendName  string    `json:"friendName"`
	ExportedAt  time.Time `json:"exportedAt"`
	DownloadURL string    `json:"downloadUrl,omitempty"`
}
