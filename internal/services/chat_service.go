package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"social-chat/internal/models"
	"social-chat/internal/repositories/postgres"
	apperrors "social-chat/pkg/errors"
)

const maxMessageLength = 4000

// ExportStore keeps chat exports and returns a download URL.
type ExportStore interface {
	UploadExport(ctx context.Context, name string, data []byte) (string, error)
}

type ChatService struct {
	messages        *postgres.MessageRepository
	friends         *FriendService
	users           *UserService
	exports         ExportStore
	locks           *keyedMutex
	defaultPageSize int
	maxPageSize     int
	now             func() time.Time
}

// NewChatService builds the conversation store; exports may be nil.
func NewChatService(messages *postgres.MessageRepository, friends *FriendService, users *UserService, exports ExportStore, defaultPageSize, maxPageSize int) *ChatService {
	if defaultPageSize <= 0 {
		defaultPageSize = 50
	}
	if maxPageSize < defaultPageSize {
		maxPageSize = defaultPageSize
	}
	return &ChatService{
		messages:        messages,
		friends:         friends,
		users:           users,
		exports:         exports,
		locks:           newKeyedMutex(),
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
		now:             time.Now,
	}
}

func validateContent(content string, t models.MessageType) error {
	if !t.IsValid() {
		return apperrors.InvalidArg("unknown message type")
	}
	if strings.TrimSpace(content) == "" {
		return apperrors.InvalidArg("message content is required")
	}
	if len([]rune(content)) > maxMessageLength {
		return apperrors.InvalidArg(fmt.Sprintf("message content exceeds %d characters", maxMessageLength))
	}
	return nil
}

func (s *ChatService) AppendMessage(ctx context.Context, senderID, receiverID uint, content string, t models.MessageType) (*models.Message, error) {
	return s.AppendMessageThen(ctx, senderID, receiverID, content, t, nil)
}

// AppendMessageThen runs after while the conversation is still locked, so
// anything it emits leaves in append order.
func (s *ChatService) AppendMessageThen(ctx context.Context, senderID, receiverID uint, content string, t models.MessageType, after func(*models.Message)) (*models.Message, error) {
	if t == "" {
		t = models.MessageTypeText
	}
	if err := validateContent(content, t); err != nil {
		return nil, err
	}
	if senderID == receiverID {
		return nil, apperrors.InvalidArg("cannot message yourself")
	}
	if err := s.friends.RequireFriends(ctx, senderID, receiverID); err != nil {
		return nil, err
	}

	key := models.PairKey(senderID, receiverID)
	unlock := s.locks.Lock(key)
	defer unlock()

	msg := &models.Message{
		ConversationKey: key,
		SenderID:        senderID,
		ReceiverID:      receiverID,
		Content:         content,
		Type:            t,
		Status:          models.MessageStatusSent,
		CreatedAt:       s.now(),
	}
	if err := s.messages.Append(ctx, msg); err != nil {
		return nil, err
	}

	slog.Debug("Message appended", "messageID", msg.ID, "conversation", key, "seq", msg.Seq)
	if after != nil {
		after(msg)
	}
	return msg, nil
}

func (s *ChatService) pageSize(limit int) int {
	if limit <= 0 {
		return s.defaultPageSize
	}
	if limit > s.maxPageSize {
		return s.maxPageSize
	}
	return limit
}

// ListMessages returns page (1-based, newest first) in ascending order.
// beforeID pins the pages to a message so later appends do not shift them.
func (s *ChatService) ListMessages(ctx context.Context, userID, friendID uint, page, limit int, beforeID uint) ([]models.Message, error) {
	if userID == friendID {
		return nil, apperrors.InvalidArg("invalid friend id")
	}
	if page < 1 {
		page = 1
	}
	size := s.pageSize(limit)
	return s.messages.List(ctx, models.PairKey(userID, friendID), size, (page-1)*size, beforeID)
}

// MarkRead marks every message from friendID to userID read. Idempotent,
// and only allowed while the pair are friends.
func (s *ChatService) MarkRead(ctx context.Context, userID, friendID uint) (time.Time, int64, error) {
	if err := s.friends.RequireFriends(ctx, userID, friendID); err != nil {
		return time.Time{}, 0, err
	}
	at := s.now()
	n, err := s.messages.MarkRead(ctx, userID, friendID, at)
	if err != nil {
		return time.Time{}, 0, err
	}
	return at, n, nil
}

func (s *ChatService) MarkDelivered(ctx context.Context, ids []uint) (time.Time, int64, error) {
	at := s.now()
	n, err := s.messages.MarkDelivered(ctx, ids, at)
	if err != nil {
		return time.Time{}, 0, err
	}
	return at, n, nil
}

func (s *ChatService) UnreadCount(ctx context.Context, userID, friendID uint) (int64, error) {
	return s.messages.UnreadCount(ctx, userID, friendID)
}

// ListConversations is computed from the message log on every call.
func (s *ChatService) ListConversations(ctx context.Context, userID uint) ([]models.ConversationSummary, error) {
	latest, err := s.messages.LatestPerConversation(ctx, userID)
	if err != nil {
		return nil, err
	}
	unread, err := s.messages.UnreadBySender(ctx, userID)
	if err != nil {
		return nil, err
	}

	friendIDs := make([]uint, 0, len(latest))
	for i := range latest {
		friendIDs = append(friendIDs, otherParty(&latest[i], userID))
	}
	profiles := make(map[uint]models.UserResponse, len(friendIDs))
	if users, err := s.users.FindByIDs(ctx, friendIDs); err != nil {
		slog.Warn("Failed to load conversation profiles", "userID", userID, "error", err)
	} else {
		for i := range users {
			profiles[users[i].ID] = users[i].ToResponse()
		}
	}

	out := make([]models.ConversationSummary, 0, len(latest))
	for i := range latest {
		msg := latest[i]
		friendID := otherParty(&msg, userID)
		summary := models.ConversationSummary{
			FriendID:        friendID,
			LastMessage:     &msg,
			LastMessageTime: msg.CreatedAt,
			UnreadCount:     unread[friendID],
		}
		if p, ok := profiles[friendID]; ok {
			summary.Friend = &p
		}
		out = append(out, summary)
	}
	return out, nil
}

func otherParty(m *models.Message, userID uint) uint {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}

// ClearChatHistory deletes the conversation for both participants.
func (s *ChatService) ClearChatHistory(ctx context.Context, userID, friendID uint) (int64, error) {
	if userID == friendID {
		return 0, apperrors.InvalidArg("invalid friend id")
	}
	key := models.PairKey(userID, friendID)
	unlock := s.locks.Lock(key)
	defer unlock()

	n, err := s.messages.DeleteConversation(ctx, key)
	if err != nil {
		return 0, err
	}
	slog.Info("Chat history cleared", "userID", userID, "friendID", friendID, "deleted", n)
	return n, nil
}

// ExportChat returns the whole conversation. When an export store is
// configured the JSON document is uploaded as well; upload failures only
// drop the download URL.
func (s *ChatService) ExportChat(ctx context.Context, userID, friendID uint) (*models.ChatExport, error) {
	if userID == friendID {
		return nil, apperrors.InvalidArg("invalid friend id")
	}
	friend, err := s.users.FindByID(ctx, friendID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("friend not found")
		}
		return nil, err
	}

	msgs, err := s.messages.All(ctx, models.PairKey(userID, friendID))
	if err != nil {
		return nil, err
	}

	export := &models.ChatExport{
		ChatData:   msgs,
		FriendName: friend.Username,
		ExportedAt: s.now(),
	}
	if s.exports == nil {
		return export, nil
	}

	data, err := json.Marshal(export)
	if err != nil {
		return nil, fmt.Errorf("failed to encode export: %w", err)
	}
	name := fmt.Sprintf("exports/%d/%d-%d.json", userID, friendID, export.ExportedAt.Unix())
	url, err := s.exports.UploadExport(ctx, name, data)
	if err != nil {
		slog.Error("Failed to upload chat export", "userID", userID, "friendID", friendID, "error", err)
		return export, nil
	}
	export.DownloadURL = url
	return export, nil
}
