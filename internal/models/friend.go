package models

import "time"

type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "pending"
	FriendshipAccepted FriendshipStatus = "accepted"
	FriendshipBlocked  FriendshipStatus = "blocked"
)

type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
	FriendRequestRejected FriendRequestStatus = "rejected"
)

/** --------------------ENTITIES-------------------- */
// Friendship is the single edge of an unordered pair. UserLowID < UserHighID always.
type Friendship struct {
	ID         uint             `gorm:"primaryKey" json:"id"`
	UserLowID  uint             `gorm:"not null;uniqueIndex:idx_friendship_pair" json:"userLowId"`
	UserHighID uint             `gorm:"not null;uniqueIndex:idx_friendship_pair;index" json:"userHighId"`
	Status     FriendshipStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	BlockedBy  *uint            `json:"blockedBy,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

// NewFriendship builds an edge in canonical order.
func NewFriendship(a, b uint, status FriendshipStatus) *Friendship {
	low, high := OrderedPair(a, b)
	return &Friendship{UserLowID: low, UserHighID: high, Status: status}
}

// Other returns the member of the pair that is not userID.
func (f *Friendship) Other(userID uint) uint {
	if f.UserLowID == userID {
		return f.UserHighID
	}
	return f.UserLowID
}

type FriendRequest struct {
	ID          uint                `gorm:"primaryKey" json:"id"`
	SenderID    uint                `gorm:"not null;index" json:"senderId"`
	RecipientID uint                `gorm:"not null;index" json:"recipientId"`
	Message     string              `gorm:"size:500" json:"message,omitempty"`
	Status      FriendRequestStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	CreatedAt   time.Time           `json:"createdAt"`
	RespondedAt *time.Time          `json:"respondedAt,omitempty"`

	Sender *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}

/** -------------------- DTOs -------------------- */
type SendFriendRequestRequest struct {
	FriendEmail string `json:"friendEmail" binding:"required,email"`
	Message     string `json:"message" binding:"max=500"`
}

type FriendIDRequest struct {
	FriendID uint `json:"friendId" binding:"required"`
}
