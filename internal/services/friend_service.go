package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"social-chat/internal/models"
	"social-chat/internal/repositories/postgres"
	"social-chat/internal/websocket"
	apperrors "social-chat/pkg/errors"
)

const maxRequestMessageLength = 500

type FriendService struct {
	friends  *postgres.FriendRepository
	users    *UserService
	notifier Notifier
	closed   []func(ctx context.Context, a, b uint)
	now      func() time.Time
}

func NewFriendService(friends *postgres.FriendRepository, users *UserService) *FriendService {
	return &FriendService{
		friends:  friends,
		users:    users,
		notifier: nopNotifier{},
		now:      time.Now,
	}
}

// SetNotifier wires the delivery side once the gateway exists.
func (s *FriendService) SetNotifier(n Notifier) {
	if n == nil {
		n = nopNotifier{}
	}
	s.notifier = n
}

// OnPairClosed registers fn to run after a pair stops being friends,
// either through removal or a block.
func (s *FriendService) OnPairClosed(fn func(ctx context.Context, a, b uint)) {
	s.closed = append(s.closed, fn)
}

func (s *FriendService) pairClosed(ctx context.Context, a, b uint) {
	for _, fn := range s.closed {
		fn(ctx, a, b)
	}
}

func (s *FriendService) SendFriendRequest(ctx context.Context, senderID uint, recipientEmail, message string) (*models.FriendRequest, error) {
	if strings.TrimSpace(recipientEmail) == "" {
		return nil, apperrors.InvalidArg("friend email is required")
	}
	message = strings.TrimSpace(message)
	if len([]rune(message)) > maxRequestMessageLength {
		return nil, apperrors.InvalidArg("request message is too long")
	}

	recipient, err := s.users.FindByEmail(ctx, recipientEmail)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("no user with that email")
		}
		return nil, err
	}
	if recipient.ID == senderID {
		return nil, apperrors.InvalidArg("cannot send a friend request to yourself")
	}

	edge, err := s.friends.FindEdge(ctx, senderID, recipient.ID)
	switch {
	case err == nil:
		switch edge.Status {
		case models.FriendshipAccepted:
			return nil, apperrors.ErrAlreadyFriends
		case models.FriendshipBlocked:
			return nil, apperrors.Forbidden("friendship is blocked")
		default:
			return nil, apperrors.ErrRequestAlreadyPending
		}
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, err
	}

	req := &models.FriendRequest{
		SenderID:    senderID,
		RecipientID: recipient.ID,
		Message:     message,
		CreatedAt:   s.now(),
	}
	if err := s.friends.CreateRequest(ctx, req); err != nil {
		return nil, err
	}

	slog.Info("Friend request sent", "requestID", req.ID, "senderID", senderID, "recipientID", recipient.ID)

	ev := models.FriendRequestEvent{RequestID: req.ID, Message: req.Message, CreatedAt: req.CreatedAt}
	if sender, err := s.users.FindByID(ctx, senderID); err == nil {
		req.Sender = sender
		resp := sender.ToResponse()
		ev.Sender = &resp
	}
	s.notifier.Notify(ctx, Event{
		Type:      websocket.MessageTypeFriendRequest,
		Recipient: recipient.ID,
		Actor:     senderID,
		Data:      ev,
	})
	return req, nil
}

// loadPendingFor returns the request if actingUserID may answer it.
func (s *FriendService) loadPendingFor(ctx context.Context, requestID, actingUserID uint) (*models.FriendRequest, error) {
	req, err := s.friends.FindRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.RecipientID != actingUserID {
		return nil, apperrors.Forbidden("only the recipient can respond to a friend request")
	}
	if req.Status != models.FriendRequestPending {
		return nil, apperrors.NotFound("friend request is not pending")
	}
	return req, nil
}

func (s *FriendService) AcceptFriendRequest(ctx context.Context, requestID, actingUserID uint) (*models.Friendship, error) {
	req, err := s.loadPendingFor(ctx, requestID, actingUserID)
	if err != nil {
		return nil, err
	}

	edge, err := s.friends.RespondRequest(ctx, req, true, s.now())
	if err != nil {
		return nil, err
	}

	slog.Info("Friend request accepted", "requestID", req.ID, "senderID", req.SenderID, "recipientID", req.RecipientID)
	s.notifyResponse(ctx, req, websocket.MessageTypeFriendRequestAccepted)
	return edge, nil
}

func (s *FriendService) RejectFriendRequest(ctx context.Context, requestID, actingUserID uint) error {
	req, err := s.loadPendingFor(ctx, requestID, actingUserID)
	if err != nil {
		return err
	}

	if _, err := s.friends.RespondRequest(ctx, req, false, s.now()); err != nil {
		return err
	}

	slog.Info("Friend request rejected", "requestID", req.ID, "senderID", req.SenderID, "recipientID", req.RecipientID)
	s.notifyResponse(ctx, req, websocket.MessageTypeFriendRequestRejected)
	return nil
}

func (s *FriendService) notifyResponse(ctx context.Context, req *models.FriendRequest, t websocket.MessageType) {
	ev := models.FriendResponseEvent{RequestID: req.ID, UserID: req.RecipientID}
	if t == websocket.MessageTypeFriendRequestAccepted {
		if recipient, err := s.users.FindByID(ctx, req.RecipientID); err == nil {
			resp := recipient.ToResponse()
			ev.Friend = &resp
		}
	}
	s.notifier.Notify(ctx, Event{Type: t, Recipient: req.SenderID, Actor: req.RecipientID, Data: ev})
}

func (s *FriendService) edgeStatus(ctx context.Context, a, b uint) (models.FriendshipStatus, bool, error) {
	if a == b {
		return "", false, nil
	}
	edge, err := s.friends.FindEdge(ctx, a, b)
	if errors.Is(err, apperrors.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return edge.Status, true, nil
}

// AreFriends does not depend on argument order.
func (s *FriendService) AreFriends(ctx context.Context, a, b uint) (bool, error) {
	status, ok, err := s.edgeStatus(ctx, a, b)
	return ok && status == models.FriendshipAccepted, err
}

func (s *FriendService) IsBlocked(ctx context.Context, a, b uint) (bool, error) {
	status, ok, err := s.edgeStatus(ctx, a, b)
	return ok && status == models.FriendshipBlocked, err
}

// RequireFriends returns Forbidden unless the pair holds an accepted edge.
func (s *FriendService) RequireFriends(ctx context.Context, a, b uint) error {
	status, ok, err := s.edgeStatus(ctx, a, b)
	if err != nil {
		return err
	}
	if ok && status == models.FriendshipBlocked {
		return apperrors.Forbidden("friendship is blocked")
	}
	if !ok || status != models.FriendshipAccepted {
		return apperrors.Forbidden("users are not friends")
	}
	return nil
}

// RemoveFriend is idempotent and never lifts a block.
func (s *FriendService) RemoveFriend(ctx context.Context, userID, friendID uint) error {
	if userID == friendID {
		return apperrors.InvalidArg("cannot remove yourself")
	}
	if err := s.friends.DeleteEdge(ctx, userID, friendID, s.now()); err != nil {
		return err
	}
	slog.Info("Friend removed", "userID", userID, "friendID", friendID)
	s.pairClosed(ctx, userID, friendID)
	return nil
}

func (s *FriendService) BlockFriend(ctx context.Context, userID, friendID uint) error {
	if userID == friendID {
		return apperrors.InvalidArg("cannot block yourself")
	}
	if _, err := s.users.FindByID(ctx, friendID); err != nil {
		return err
	}
	if err := s.friends.Block(ctx, userID, friendID, s.now()); err != nil {
		return err
	}
	slog.Info("Friend blocked", "userID", userID, "friendID", friendID)
	s.pairClosed(ctx, userID, friendID)
	return nil
}

func (s *FriendService) ListFriendIDs(ctx context.Context, userID uint) ([]uint, error) {
	return s.friends.ListFriendIDs(ctx, userID)
}

func (s *FriendService) ListFriends(ctx context.Context, userID uint) ([]models.UserResponse, error) {
	users, err := s.friends.ListFriends(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]models.UserResponse, 0, len(users))
	for i := range users {
		out = append(out, users[i].ToResponse())
	}
	return out, nil
}

func (s *FriendService) ListPendingRequests(ctx context.Context, userID uint) ([]models.FriendRequest, error) {
	return s.friends.ListIncomingRequests(ctx, userID)
}
