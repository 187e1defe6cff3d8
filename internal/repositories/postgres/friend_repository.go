package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"social-chat/internal/models"
	apperrors "social-chat/pkg/errors"

	"gorm.io/gorm"
)

type FriendRepository struct {
	db *gorm.DB
}

func NewFriendRepository(db *gorm.DB) *FriendRepository {
	return &FriendRepository{db: db}
}

func pairScope(a, b uint) func(*gorm.DB) *gorm.DB {
	low, high := models.OrderedPair(a, b)
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("user_low_id = ? AND user_high_id = ?", low, high)
	}
}

// FindEdge returns the edge of the unordered pair or a NotFound error.
func (r *FriendRepository) FindEdge(ctx context.Context, a, b uint) (*models.Friendship, error) {
	var edge models.Friendship
	if err := r.db.WithContext(ctx).Scopes(pairScope(a, b)).First(&edge).Error; err != nil {
		return nil, notFound(err, "friendship not found")
	}
	return &edge, nil
}

// CreateRequest stores a pending request together with its pending edge.
// A concurrent request for the same pair loses on the unique pair index.
func (r *FriendRepository) CreateRequest(ctx context.Context, req *models.FriendRequest) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		edge := models.NewFriendship(req.SenderID, req.RecipientID, models.FriendshipPending)
		if err := tx.Create(edge).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperrors.ErrRequestAlreadyPending
			}
			return fmt.Errorf("failed to create friendship: %w", err)
		}

		req.Status = models.FriendRequestPending
		if err := tx.Create(req).Error; err != nil {
			return fmt.Errorf("failed to create friend request: %w", err)
		}
		return nil
	})
}

func (r *FriendRepository) FindRequest(ctx context.Context, id uint) (*models.FriendRequest, error) {
	var req models.FriendRequest
	if err := r.db.WithContext(ctx).Preload("Sender").First(&req, id).Error; err != nil {
		return nil, notFound(err, "friend request not found")
	}
	return &req, nil
}

// RespondRequest archives a pending request and settles its edge.
// Returns NotFound when the request is no longer pending.
func (r *FriendRepository) RespondRequest(ctx context.Context, req *models.FriendRequest, accept bool, at time.Time) (*models.Friendship, error) {
	status := models.FriendRequestRejected
	if accept {
		status = models.FriendRequestAccepted
	}

	var edge *models.Friendship
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.FriendRequest{}).
			Where("id = ? AND status = ?", req.ID, models.FriendRequestPending).
			Updates(map[string]any{"status": status, "responded_at": at})
		if res.Error != nil {
			return fmt.Errorf("failed to update friend request: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.NotFound("friend request is not pending")
		}

		pending := tx.Scopes(pairScope(req.SenderID, req.RecipientID)).
			Where("status = ?", models.FriendshipPending)
		if !accept {
			if err := pending.Delete(&models.Friendship{}).Error; err != nil {
				return fmt.Errorf("failed to remove pending friendship: %w", err)
			}
			return nil
		}

		if err := pending.Model(&models.Friendship{}).Update("status", models.FriendshipAccepted).Error; err != nil {
			return fmt.Errorf("failed to accept friendship: %w", err)
		}
		var accepted models.Friendship
		if err := tx.Scopes(pairScope(req.SenderID, req.RecipientID)).First(&accepted).Error; err != nil {
			return notFound(err, "friendship not found")
		}
		if accepted.Status != models.FriendshipAccepted {
			return apperrors.Forbidden("friendship is blocked")
		}
		edge = &accepted
		return nil
	})
	if err != nil {
		return nil, err
	}

	req.Status = status
	req.RespondedAt = &at
	return edge, nil
}

// DeleteEdge removes an accepted or pending edge; blocked edges survive.
func (r *FriendRepository) DeleteEdge(ctx context.Context, a, b uint, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Scopes(pairScope(a, b)).
			Where("status IN ?", []models.FriendshipStatus{models.FriendshipAccepted, models.FriendshipPending}).
			Delete(&models.Friendship{}).Error
		if err != nil {
			return fmt.Errorf("failed to delete friendship: %w", err)
		}
		return rejectPending(tx, a, b, at)
	})
}

// Block turns any edge of the pair, or none, into a blocked edge.
func (r *FriendRepository) Block(ctx context.Context, blocker, blocked uint, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var edge models.Friendship
		err := tx.Scopes(pairScope(blocker, blocked)).First(&edge).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			edge = *models.NewFriendship(blocker, blocked, models.FriendshipBlocked)
			edge.BlockedBy = &blocker
			if err := tx.Create(&edge).Error; err != nil {
				return fmt.Errorf("failed to create blocked friendship: %w", err)
			}
		case err != nil:
			return fmt.Errorf("failed to load friendship: %w", err)
		case edge.Status != models.FriendshipBlocked:
			err := tx.Model(&edge).Updates(map[string]any{
				"status":     models.FriendshipBlocked,
				"blocked_by": blocker,
			}).Error
			if err != nil {
				return fmt.Errorf("failed to block friendship: %w", err)
			}
		}
		return rejectPending(tx, blocker, blocked, at)
	})
}

func rejectPending(tx *gorm.DB, a, b uint, at time.Time) error {
	err := tx.Model(&models.FriendRequest{}).
		Where("status = ? AND ((sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?))",
			models.FriendRequestPending, a, b, b, a).
		Updates(map[string]any{"status": models.FriendRequestRejected, "responded_at": at}).Error
	if err != nil {
		return fmt.Errorf("failed to reject pending requests: %w", err)
	}
	return nil
}

func (r *FriendRepository) ListFriendIDs(ctx context.Context, userID uint) ([]uint, error) {
	var edges []models.Friendship
	err := r.db.WithContext(ctx).
		Where("status = ? AND (user_low_id = ? OR user_high_id = ?)", models.FriendshipAccepted, userID, userID).
		Find(&edges).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list friends: %w", err)
	}

	ids := make([]uint, 0, len(edges))
	for i := range edges {
		ids = append(ids, edges[i].Other(userID))
	}
	return ids, nil
}

func (r *FriendRepository) ListFriends(ctx context.Context, userID uint) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Joins("JOIN friendships f ON (f.user_low_id = users.id AND f.user_high_id = ?) OR (f.user_high_id = users.id AND f.user_low_id = ?)", userID, userID).
		Where("f.status = ?", models.FriendshipAccepted).
		Order("users.username").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list friends: %w", err)
	}
	return users, nil
}

// ListIncomingRequests returns pending requests addressed to userID, newest first.
func (r *FriendRepository) ListIncomingRequests(ctx context.Context, userID uint) ([]models.FriendRequest, error) {
	var reqs []models.FriendRequest
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Where("recipient_id = ? AND status = ?", userID, models.FriendRequestPending).
		Order("created_at DESC, id DESC").
		Find(&reqs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list friend requests: %w", err)
	}
	return reqs, nil
}
