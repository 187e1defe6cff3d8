package handlers

import (
	"social-chat/internal/gateway"
	"social-chat/internal/models"
	"social-chat/internal/services"
	"social-chat/pkg/response"

	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	gateway     *gateway.Gateway
	chatService *services.ChatService
}

func NewChatHandler(gw *gateway.Gateway, chatService *services.ChatService) *ChatHandler {
	return &ChatHandler{gateway: gw, chatService: chatService}
}

// GetConversations godoc
// @Summary List conversations
// @Description One entry per friend with the last message and unread count, most recent first
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.ConversationSummary
// @Router /chat/conversations [get]
func (h *ChatHandler) GetConversations(c *gin.Context) {
	conversations, err := h.chatService.ListConversations(c.Request.Context(), currentUser(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, gin.H{"conversations": conversations})
}

// GetMessages godoc
// @Summary Conversation history
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Param friendId path int true "Friend ID"
// @Param page query int false "Page, 1 based, newest first"
// @Param limit query int false "Page size"
// @Param before query int false "Only messages older than this message id"
// @Success 200 {array} models.Message
// @Failure 400 {object} models.ErrorResponse
// @Router /chat/messages/{friendId} [get]
func (h *ChatHandler) GetMessages(c *gin.Context) {
	friendID, err := uintParam(c, "friendId")
	if err != nil {
		response.Fail(c, err)
		return
	}
	page, err := intQuery(c, "page")
	if err != nil {
		response.Fail(c, err)
		return
	}
	limit, err := intQuery(c, "limit")
	if err != nil {
		response.Fail(c, err)
		return
	}
	before, err := intQuery(c, "before")
	if err != nil {
		response.Fail(c, err)
		return
	}

	messages, err := h.chatService.ListMessages(c.Request.Context(), currentUser(c), friendID, page, limit, uint(before))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, gin.H{"messages": messages})
}

// SendMessage godoc
// @Summary Send a direct message
// @Tags chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.SendMessageRequest true "Message"
// @Success 200 {object} models.Message
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse "Not friends"
// @Router /chat/send [post]
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "receiverId and content are required")
		return
	}

	msg, err := h.gateway.Send(c.Request.Context(), currentUser(c), req.ReceiverID, req.Content, req.MessageType)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, gin.H{"message": msg})
}

// MarkRead godoc
// @Summary Mark a conversation read
// @Tags chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.FriendIDRequest true "Friend"
// @Success 200 {object} models.MessagesReadEvent
// @Router /chat/mark-read [post]
func (h *ChatHandler) MarkRead(c *gin.Context) {
	var req models.FriendIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "friendId is required")
		return
	}

	ev, err := h.gateway.MarkMessagesRead(c.Request.Context(), currentUser(c), req.FriendID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, gin.H{"count": ev.Count, "readAt": ev.ReadAt})
}

// GetOnlineFriends godoc
// @Summary Friends currently online
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.UserResponse
// @Router /chat/online-friends [get]
func (h *ChatHandler) GetOnlineFriends(c *gin.Context) {
	friends, err := h.gateway.OnlineFriends(c.Request.Context(), currentUser(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, gin.H{"onlineFriends": friends})
}

// UpdateStatus godoc
// @Summary Set presence status
// @Tags chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.UpdateStatusRequest true "online, away or offline"
// @Success 200 {object} models.PresenceEntry
// @Failure 400 {object} models.ErrorResponse
// @Router /chat/update-status [post]
func (h *ChatHandler) UpdateStatus(c *gin.Context) {
	var req models.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "status is required")
		return
	}

	entry, err := h.gateway.UpdateStatus(c.Request.Context(), currentUser(c), req.Status)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, gin.H{"status": entry.Status})
}

// ClearChat godoc
// @Summary Delete a conversation for both participants
// @Tags chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.FriendIDRequest true "Friend"
// @Success 200 {object} map[string]interface{}
// @Router /chat/clear-chat [post]
func (h *ChatHandler) ClearChat(c *gin.Context) {
	var req models.FriendIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "friendId is required")
		return
	}

	deleted, err := h.chatService.ClearChatHistory(c.Request.Context(), currentUser(c), req.FriendID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, gin.H{"deleted": deleted})
}

// ExportChat godoc
// @Summary Export a conversation
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Param friendId path int true "Friend ID"
// @Success 200 {object} models.ChatExport
// @Failure 404 {object} models.ErrorResponse
// @Router /chat/export/{friendId} [get]
func (h *ChatHandler) ExportChat(c *gin.Context) {
	friendID, err := uintParam(c, "friendId")
	if err != nil {
		response.Fail(c, err)
		return
	}

	export, err := h.chatService.ExportChat(c.Request.Context(), currentUser(c), friendID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	fields := gin.H{
		"chatData":   export.ChatData,
		"friendName": export.FriendName,
		"exportedAt": export.ExportedAt,
	}
	if export.DownloadURL != "" {
		fields["downloadUrl"] = export.DownloadURL
	}
	response.OK(c, fields)
}
