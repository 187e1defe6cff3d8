package models

import "time"

type CallType string

const (
	CallTypeAudio CallType = "audio"
	CallTypeVideo CallType = "video"
)

func (t CallType) IsValid() bool {
	return t == CallTypeAudio || t == CallTypeVideo
}

type CallState string

const (
	CallInvited  CallState = "invited"
	CallAccepted CallState = "accepted"
	CallActive   CallState = "active"
	CallEnded    CallState = "ended"
	CallRejected CallState = "rejected"
	CallTimedOut CallState = "timed_out"
)

// Finished reports whether the state is terminal.
func (s CallState) Finished() bool {
	return s == CallEnded || s == CallRejected || s == CallTimedOut
}

// CallSession is ephemeral and never persisted in the database.
type CallSession struct {
	CallID     string     `json:"callId"`
	CallerID   uint       `json:"callerId"`
	ReceiverID uint       `json:"receiverId"`
	Type       CallType   `json:"type"`
	State      CallState  `json:"state"`
	InvitedAt  time.Time  `json:"invitedAt"`
	AnsweredAt *time.Time `json:"answeredAt,omitempty"`
	EndedAt    *time.Time `json:"endedAt,omitempty"`
	EndedBy    uint       `json:"endedBy,omitempty"`
}

// Peer returns the other participant, or 0 if userID is not part of the call.
func (c *CallSession) Peer(userID uint) uint {
	switch userID {
	case c.CallerID:
		return c.ReceiverID
	case c.ReceiverID:
		return c.CallerID
	}
	return 0
}

type CallRequest struct {
	ReceiverID uint `json:"receiverId" binding:"required"`
}
