package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"social-chat/internal/models"

	"gorm.io/gorm"
)

const appendAttempts = 3

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db}
}

// Append assigns the next seq of the conversation and stores msg.
// createdAt never moves backwards within a conversation, even if the clock does.
func (r *MessageRepository) Append(ctx context.Context, msg *models.Message) error {
	var err error
	for attempt := 0; attempt < appendAttempts; attempt++ {
		err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var last models.Message
			res := tx.Where("conversation_key = ?", msg.ConversationKey).
				Order("seq DESC").
				Limit(1).
				Find(&last)
			if res.Error != nil {
				return fmt.Errorf("failed to load last message: %w", res.Error)
			}

			msg.ID = 0
			msg.Seq = 1
			if res.RowsAffected > 0 {
				msg.Seq = last.Seq + 1
				if msg.CreatedAt.Before(last.CreatedAt) {
					msg.CreatedAt = last.CreatedAt
				}
			}
			return tx.Create(msg).Error
		})
		// another process won the seq; retry against the new tail
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// List returns up to limit messages of the conversation in ascending order.
// offset counts back from the newest message, or from beforeID when set.
func (r *MessageRepository) List(ctx context.Context, key string, limit, offset int, beforeID uint) ([]models.Message, error) {
	q := r.db.WithContext(ctx).Where("conversation_key = ?", key)
	if beforeID > 0 {
		var anchor models.Message
		err := r.db.WithContext(ctx).
			Where("id = ? AND conversation_key = ?", beforeID, key).
			First(&anchor).Error
		if err != nil {
			return nil, notFound(err, "anchor message not found")
		}
		q = q.Where("seq < ?", anchor.Seq)
	}

	var msgs []models.Message
	if err := q.Order("seq DESC").Limit(limit).Offset(offset).Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// All returns the whole conversation in ascending order.
func (r *MessageRepository) All(ctx context.Context, key string) ([]models.Message, error) {
	var msgs []models.Message
	if err := r.db.WithContext(ctx).Where("conversation_key = ?", key).Order("seq").Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	return msgs, nil
}

func (r *MessageRepository) FindByID(ctx context.Context, id uint) (*models.Message, error) {
	var msg models.Message
	if err := r.db.WithContext(ctx).First(&msg, id).Error; err != nil {
		return nil, notFound(err, "message not found")
	}
	return &msg, nil
}

// MarkRead marks every unread message sender->receiver as read.
func (r *MessageRepository) MarkRead(ctx context.Context, receiverID, senderID uint, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("sender_id = ? AND receiver_id = ? AND status <> ?", senderID, receiverID, models.MessageStatusRead).
		Updates(map[string]any{
			"status":       models.MessageStatusRead,
			"read_at":      at,
			"delivered_at": gorm.Expr("COALESCE(delivered_at, ?)", at),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// MarkDelivered moves sent messages to delivered; other states are left alone.
func (r *MessageRepository) MarkDelivered(ctx context.Context, ids []uint, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("id IN ? AND status = ?", ids, models.MessageStatusSent).
		Updates(map[string]any{"status": models.MessageStatusDelivered, "delivered_at": at})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to mark messages delivered: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *MessageRepository) UnreadCount(ctx context.Context, receiverID, senderID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("sender_id = ? AND receiver_id = ? AND status <> ?", senderID, receiverID, models.MessageStatusRead).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return count, nil
}

// LatestPerConversation returns the newest message of every conversation userID takes part in.
func (r *MessageRepository) LatestPerConversation(ctx context.Context, userID uint) ([]models.Message, error) {
	latest := r.db.Model(&models.Message{}).
		Select("conversation_key, MAX(seq) AS max_seq").
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Group("conversation_key")

	var msgs []models.Message
	err := r.db.WithContext(ctx).
		Table("messages AS m").
		Select("m.*").
		Joins("JOIN (?) AS latest ON latest.conversation_key = m.conversation_key AND latest.max_seq = m.seq", latest).
		Order("m.created_at DESC, m.id DESC").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load conversations: %w", err)
	}
	return msgs, nil
}

// UnreadBySender counts unread messages addressed to receiverID grouped by sender.
func (r *MessageRepository) UnreadBySender(ctx context.Context, receiverID uint) (map[uint]int64, error) {
	var rows []struct {
		SenderID uint
		Unread   int64
	}
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Select("sender_id, COUNT(*) AS unread").
		Where("receiver_id = ? AND status <> ?", receiverID, models.MessageStatusRead).
		Group("sender_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count unread messages: %w", err)
	}

	out := make(map[uint]int64, len(rows))
	for _, row := range rows {
		out[row.SenderID] = row.Unread
	}
	return out, nil
}

// DeleteConversation hard deletes every message of the conversation.
func (r *MessageRepository) DeleteConversation(ctx context.Context, key string) (int64, error) {
	res := r.db.WithContext(ctx).Where("conversation_key = ?", key).Delete(&models.Message{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to clear conversation: %w", res.Error)
	}
	return res.RowsAffected, nil
}
