// Package gateway is the client-visible chat protocol: it combines the
// conversation store, friend graph, presence registry and call signaling
// and turns their results into real-time events.
package gateway

import (
	"context"
	"log/slog"

	"social-chat/internal/models"
	"social-chat/internal/presence"
	"social-chat/internal/services"
	"social-chat/internal/websocket"
	apperrors "social-chat/pkg/errors"
)

type Gateway struct {
	registry  *presence.Registry
	chat      *services.ChatService
	friends   *services.FriendService
	calls     *services.CallService
	users     *services.UserService
	publisher services.Notifier
}

// New builds the gateway; publisher receives a copy of every event and may be nil.
func New(registry *presence.Registry, chat *services.ChatService, friends *services.FriendService,
	calls *services.CallService, users *services.UserService, publisher services.Notifier) *Gateway {
	return &Gateway{
		registry:  registry,
		chat:      chat,
		friends:   friends,
		calls:     calls,
		users:     users,
		publisher: publisher,
	}
}

// Notify delivers a service event in real time and hands it to the publisher.
func (g *Gateway) Notify(ctx context.Context, ev services.Event) bool {
	delivered := g.deliver(ev.Recipient, ev.Type, ev.Data) > 0
	g.publish(ctx, ev)
	return delivered
}

func (g *Gateway) deliver(userID uint, t websocket.MessageType, data any) int {
	msg, err := websocket.NewMessage(t, data)
	if err != nil {
		slog.Error("Failed to build event", "type", t, "userID", userID, "error", err)
		return 0
	}
	return g.registry.SendToUser(userID, msg)
}

func (g *Gateway) emit(ctx context.Context, actor, recipient uint, t websocket.MessageType, data any) int {
	n := g.deliver(recipient, t, data)
	g.publish(ctx, services.Event{Type: t, Recipient: recipient, Actor: actor, Data: data})
	return n
}

func (g *Gateway) publish(ctx context.Context, events ...services.Event) {
	if g.publisher == nil {
		return
	}
	for _, ev := range events {
		g.publisher.Notify(ctx, ev)
	}
}

// Send persists a message and pushes it to both sides. Live delivery
// happens under the conversation lock so the receiver sees append order;
// the publisher gets its copies once the lock is released.
func (g *Gateway) Send(ctx context.Context, senderID, receiverID uint, content string, messageType models.MessageType) (*models.Message, error) {
	var pending []services.Event
	msg, err := g.chat.AppendMessageThen(ctx, senderID, receiverID, content, messageType, func(msg *models.Message) {
		sent := *msg
		pending = append(pending, services.Event{Type: websocket.MessageTypeNewMessage, Recipient: receiverID, Actor: senderID, Data: &sent})

		if g.deliver(receiverID, websocket.MessageTypeNewMessage, msg) > 0 {
			at, n, err := g.chat.MarkDelivered(ctx, []uint{msg.ID})
			if err != nil {
				slog.Error("Failed to mark message delivered", "messageID", msg.ID, "error", err)
			} else if n > 0 {
				msg.Status = models.MessageStatusDelivered
				msg.DeliveredAt = &at
			}
		}

		g.deliver(senderID, websocket.MessageTypeMessageSent, msg)
		if msg.Status == models.MessageStatusDelivered {
			ev := models.MessageDeliveredEvent{MessageID: msg.ID, DeliveredAt: *msg.DeliveredAt}
			g.deliver(senderID, websocket.MessageTypeMessageDelivered, ev)
			pending = append(pending, services.Event{Type: websocket.MessageTypeMessageDelivered, Recipient: senderID, Actor: receiverID, Data: ev})
		}
	})
	if err != nil {
		return nil, err
	}
	g.publish(ctx, pending...)
	return msg, nil
}

// MarkMessagesRead marks friendID's messages to userID read and tells friendID.
func (g *Gateway) MarkMessagesRead(ctx context.Context, userID, friendID uint) (models.MessagesReadEvent, error) {
	if userID == friendID {
		return models.MessagesReadEvent{}, apperrors.InvalidArg("invalid friend id")
	}
	at, n, err := g.chat.MarkRead(ctx, userID, friendID)
	if err != nil {
		return models.MessagesReadEvent{}, err
	}

	ev := models.MessagesReadEvent{ConversationID: userID, ReadAt: at, Count: n}
	g.emit(ctx, userID, friendID, websocket.MessageTypeMessagesRead, ev)
	return ev, nil
}

func (g *Gateway) TypingStart(ctx context.Context, senderID, receiverID uint) {
	g.typing(ctx, websocket.MessageTypeTypingStart, senderID, receiverID)
}

func (g *Gateway) TypingStop(ctx context.Context, senderID, receiverID uint) {
	g.typing(ctx, websocket.MessageTypeTypingStop, senderID, receiverID)
}

// typing signals are never persisted and silently dropped between non-friends.
func (g *Gateway) typing(ctx context.Context, t websocket.MessageType, senderID, receiverID uint) {
	if !g.registry.Connected(receiverID) {
		return
	}
	ok, err := g.friends.AreFriends(ctx, senderID, receiverID)
	if err != nil || !ok {
		return
	}
	g.deliver(receiverID, t, models.TypingEvent{SenderID: senderID, ReceiverID: receiverID})
}

// UpdateStatus changes the visible status and tells online friends.
func (g *Gateway) UpdateStatus(ctx context.Context, userID uint, status models.PresenceStatus) (models.PresenceEntry, error) {
	if !status.IsValid() {
		return models.PresenceEntry{}, apperrors.InvalidArg("status must be online, away or offline")
	}
	entry := g.registry.SetStatus(ctx, userID, status)
	g.broadcastPresence(ctx, entry)
	return entry, nil
}

func (g *Gateway) broadcastPresence(ctx context.Context, entry models.PresenceEntry) {
	t := websocket.MessageTypeFriendOffline
	if entry.Status == models.PresenceOnline {
		t = websocket.MessageTypeFriendOnline
	}
	msg, err := websocket.NewMessage(t, models.PresenceEvent{UserID: entry.UserID, Status: entry.Status, LastSeen: entry.LastSeen})
	if err != nil {
		slog.Error("Failed to build presence event", "userID", entry.UserID, "error", err)
		return
	}
	n := g.registry.BroadcastToFriends(ctx, entry.UserID, msg)
	slog.Debug("Presence broadcast", "userID", entry.UserID, "status", entry.Status, "delivered", n)
}

// Connect registers a connection; the first one announces the user online.
func (g *Gateway) Connect(ctx context.Context, conn presence.Conn) {
	first := g.registry.SetOnline(ctx, conn)

	if msg, err := websocket.NewMessage(websocket.MessageTypeConnected, websocket.ConnectedData{
		ClientID: conn.ID(),
		UserID:   conn.UserID(),
	}); err == nil {
		_ = conn.Send(msg)
	}

	if first {
		g.broadcastPresence(ctx, g.registry.Status(conn.UserID()))
	}
}

// Disconnect drops a connection; the last one announces the user offline
// and hangs up their calls.
func (g *Gateway) Disconnect(ctx context.Context, conn presence.Conn) {
	if !g.registry.SetOffline(ctx, conn) {
		return
	}
	userID := conn.UserID()
	g.broadcastPresence(ctx, g.registry.Status(userID))
	if n := g.calls.EndAllFor(ctx, userID); n > 0 {
		slog.Info("Ended calls of disconnected user", "userID", userID, "calls", n)
	}
}

// OnlineFriends lists accepted friends that are currently online.
func (g *Gateway) OnlineFriends(ctx context.Context, userID uint) ([]models.UserResponse, error) {
	ids, err := g.friends.ListFriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	online := g.registry.OnlineOf(ids)
	users, err := g.users.FindByIDs(ctx, online)
	if err != nil {
		return nil, err
	}

	out := make([]models.UserResponse, 0, len(users))
	yes := true
	for i := range users {
		resp := users[i].ToResponse()
		resp.Online = &yes
		out = append(out, resp)
	}
	return out, nil
}

// Friends lists accepted friends with their presence.
func (g *Gateway) Friends(ctx context.Context, userID uint) ([]models.UserResponse, error) {
	friends, err := g.friends.ListFriends(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range friends {
		online := g.registry.IsOnline(friends[i].ID)
		friends[i].Online = &online
		if !online {
			friends[i].LastSeen = g.registry.LastSeen(ctx, friends[i].ID)
		}
	}
	return friends, nil
}

// Presence returns the status of a user as seen by this process.
func (g *Gateway) Presence(ctx context.Context, userID uint) models.PresenceEntry {
	entry := g.registry.Status(userID)
	if entry.LastSeen == nil {
		entry.LastSeen = g.registry.LastSeen(ctx, userID)
	}
	return entry
}

func (g *Gateway) ConnectionCount() int {
	return g.registry.ConnectionCount()
}

// sendError answers one connection; other connections never see it.
func sendError(conn presence.Conn, err error) {
	code := apperrors.CodeOf(err)
	if code == apperrors.CodeUnknown {
		slog.Error("Real-time command failed", "userID", conn.UserID(), "error", err)
		code = apperrors.CodeInternal
	}
	_ = conn.Send(websocket.NewErrorMessage(string(code), apperrors.MessageOf(err)))
}
