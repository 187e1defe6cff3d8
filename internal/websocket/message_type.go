package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType names a real-time event. The same vocabulary is used in both directions.
type MessageType string

// Server -> client events
const (
	MessageTypeConnected             MessageType = "connected"
	MessageTypeError                 MessageType = "error"
	MessageTypeNewMessage            MessageType = "new_message"
	MessageTypeMessageSent           MessageType = "message_sent"
	MessageTypeMessageDelivered      MessageType = "message_delivered"
	MessageTypeMessagesRead          MessageType = "messages_read"
	MessageTypeTypingStart           MessageType = "typing_start"
	MessageTypeTypingStop            MessageType = "typing_stop"
	MessageTypeFriendOnline          MessageType = "friend_online"
	MessageTypeFriendOffline         MessageType = "friend_offline"
	MessageTypeFriendRequest         MessageType = "friend_request"
	MessageTypeFriendRequestAccepted MessageType = "friend_request_accepted"
	MessageTypeFriendRequestRejected MessageType = "friend_request_rejected"
	MessageTypeIncomingAudioCall     MessageType = "incoming_audio_call"
	MessageTypeIncomingVideoCall     MessageType = "incoming_video_call"
	MessageTypeCallAccepted          MessageType = "call_accepted"
	MessageTypeCallRejected          MessageType = "call_rejected"
	MessageTypeCallEnded             MessageType = "call_ended"
	MessageTypeCallSignal            MessageType = "call_signal"
)

// Client -> server commands
const (
	MessageTypeSendMessage  MessageType = "send_message"
	MessageTypeMarkRead     MessageType = "mark_read"
	MessageTypeUpdateStatus MessageType = "update_status"
	MessageTypeCallAccept   MessageType = "call_accept"
	MessageTypeCallReject   MessageType = "call_reject"
	MessageTypeCallEnd      MessageType = "call_end"
)

func (mt MessageType) String() string {
	return string(mt)
}

// IsInbound reports whether clients may send this type.
func (mt MessageType) IsInbound() bool {
	switch mt {
	case MessageTypeSendMessage, MessageTypeTypingStart, MessageTypeTypingStop, MessageTypeMarkRead,
		MessageTypeUpdateStatus, MessageTypeCallAccept, MessageTypeCallReject, MessageTypeCallEnd,
		MessageTypeCallSignal:
		return true
	default:
		return false
	}
}

// Message is the envelope of every frame: {type, data, timestamp}.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// NewMessage encodes data into a timestamped envelope.
func NewMessage(msgType MessageType, data any) (*Message, error) {
	msg := &Message{Type: msgType, Timestamp: time.Now().UnixMilli()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s payload: %w", msgType, err)
		}
		msg.Data = raw
	}
	return msg, nil
}

// Decode unmarshals the payload into dest.
func (m *Message) Decode(dest any) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("%s: missing data", m.Type)
	}
	if err := json.Unmarshal(m.Data, dest); err != nil {
		return fmt.Errorf("%s: invalid data: %w", m.Type, err)
	}
	return nil
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ConnectedData struct {
	ClientID string `json:"clientId"`
	UserID   uint   `json:"userId"`
}

// NewErrorMessage builds an error event addressed to one connection.
func NewErrorMessage(code, message string) *Message {
	msg, _ := NewMessage(MessageTypeError, ErrorData{Code: code, Message: message})
	return msg
}
