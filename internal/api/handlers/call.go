package handlers

import (
	"errors"

	"social-chat/internal/models"
	"social-chat/internal/services"
	apperrors "social-chat/pkg/errors"
	"social-chat/pkg/response"

	"github.com/gin-gonic/gin"
)

type CallHandler struct {
	callService *services.CallService
}

func NewCallHandler(callService *services.CallService) *CallHandler {
	return &CallHandler{callService: callService}
}

// VideoCall godoc
// @Summary Invite a friend to a video call
// @Description delivered is false when the receiver has no live connection
// @Tags calls
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CallRequest true "Receiver"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} models.ErrorResponse "Not friends"
// @Router /chat/video-call [post]
func (h *CallHandler) VideoCall(c *gin.Context) {
	h.initiate(c, models.CallTypeVideo)
}

// AudioCall godoc
// @Summary Invite a friend to an audio call
// @Tags calls
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CallRequest true "Receiver"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} models.ErrorResponse "Not friends"
// @Router /chat/audio-call [post]
func (h *CallHandler) AudioCall(c *gin.Context) {
	h.initiate(c, models.CallTypeAudio)
}

func (h *CallHandler) initiate(c *gin.Context, callType models.CallType) {
	var req models.CallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "receiverId is required")
		return
	}

	session, err := h.callService.InitiateCall(c.Request.Context(), currentUser(c), req.ReceiverID, callType)
	delivered := err == nil
	if err != nil && !errors.Is(err, apperrors.ErrPeerUnreachable) {
		response.Fail(c, err)
		return
	}
	response.OK(c, gin.H{"callId": session.CallID, "delivered": delivered, "call": session})
}

// AcceptCall godoc
// @Summary Accept an incoming call
// @Tags calls
// @Produce json
// @Security BearerAuth
// @Param callId path string true "Call ID"
// @Success 200 {object} models.CallSession
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse "Call no longer ringing"
// @Router /chat/calls/{callId}/accept [post]
func (h *CallHandler) AcceptCall(c *gin.Context) {
	h.respond(c, true)
}

// RejectCall godoc
// @Summary Reject an incoming call
// @Tags calls
// @Produce json
// @Security BearerAuth
// @Param callId path string true "Call ID"
// @Success 200 {object} models.CallSession
// @Router /chat/calls/{callId}/reject [post]
func (h *CallHandler) RejectCall(c *gin.Context) {
	h.respond(c, false)
}

func (h *CallHandler) respond(c *gin.Context, accept bool) {
	session, err := h.callService.RespondToCall(c.Request.Context(), c.Param("callId"), currentUser(c), accept)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, gin.H{"call": session})
}

// EndCall godoc
// @Summary Hang up, or cancel an unanswered invite
// @Tags calls
// @Produce json
// @Security BearerAuth
// @Param callId path string true "Call ID"
// @Success 200 {object} models.CallSession
// @Router /chat/calls/{callId}/end [post]
func (h *CallHandler) EndCall(c *gin.Context) {
	session, err := h.callService.EndCall(c.Request.Context(), c.Param("callId"), currentUser(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, gin.H{"call": session})
}

// GetCall godoc
// @Summary Current state of a call
// @Tags calls
// @Produce json
// @Security BearerAuth
// @Param callId path string true "Call ID"
// @Success 200 {object} models.CallSession
// @Router /chat/calls/{callId} [get]
func (h *CallHandler) GetCall(c *gin.Context) {
	session, err := h.callService.Get(c.Request.Context(), c.Param("callId"), currentUser(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, gin.H{"call": session})
}
