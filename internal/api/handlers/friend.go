package handlers

import (
	"social-chat/internal/gateway"
	"social-chat/internal/models"
	"social-chat/internal/services"
	"social-chat/pkg/response"

	"github.com/gin-gonic/gin"
)

type FriendHandler struct {
	gateway       *gateway.Gateway
	friendService *services.FriendService
	userService   *services.UserService
}

func NewFriendHandler(gw *gateway.Gateway, friendService *services.FriendService, userService *services.UserService) *FriendHandler {
	return &FriendHandler{gateway: gw, friendService: friendService, userService: userService}
}

// GetFriends godoc
// @Summary Accepted friends with presence
// @Tags friends
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.UserResponse
// @Router /chat/friends [get]
func (h *FriendHandler) GetFriends(c *gin.Context) {
	friends, err := h.gateway.Friends(c.Request.Context(), currentUser(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, gin.H{"friends": friends})
}

// SendFriendRequest godoc
// @Summary Send a friend request by email
// @Tags friends
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.SendFriendRequestRequest true "Recipient"
// @Success 200 {object} models.FriendRequest
// @Failure 404 {object} models.ErrorResponse "No user with that email"
// @Failure 409 {object} models.ErrorResponse "Already friends or request pending"
// @Router /chat/send-friend-request [post]
func (h *FriendHandler) SendFriendRequest(c *gin.Context) {
	var req models.SendFriendRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "a valid friendEmail is required")
		return
	}

	request, err := h.friendService.SendFriendRequest(c.Request.Context(), currentUser(c), req.FriendEmail, req.Message)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, gin.H{"request": request})
}

// GetFriendRequests godoc
// @Summary Pending incoming friend requests
// @Tags friends
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.FriendRequest
// @Router /chat/friend-requests [get]
func (h *FriendHandler) GetFriendRequests(c *gin.Context) {
	requests, err := h.friendService.ListPendingRequests(c.Request.Context(), currentUser(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, gin.H{"requests": requests})
}

// AcceptFriendRequest godoc
// @Summary Accept a friend request
// @Tags friends
// @Produce json
// @Security BearerAuth
// @Param id path int true "Request ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} models.ErrorResponse
// @Router /chat/friend-requests/{id}/accept [post]
func (h *FriendHandler) AcceptFriendRequest(c *gin.Context) {
	id, err := uintParam(c, "id")
	if err != nil {
		response.Fail(c, err)
		return
	}
	if _, err := h.friendService.AcceptFriendRequest(c.Request.Context(), id, currentUser(c)); err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, nil)
}

// RejectFriendRequest godoc
// @Summary Reject a friend request
// @Tags friends
// @Produce json
// @Security BearerAuth
// @Param id path int true "Request ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} models.ErrorResponse
// @Router /chat/friend-requests/{id}/reject [post]
func (h *FriendHandler) RejectFriendRequest(c *gin.Context) {
	id, err := uintParam(c, "id")
	if err != nil {
		response.Fail(c, err)
		return
	}
	if err := h.friendService.RejectFriendRequest(c.Request.Context(), id, currentUser(c)); err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, nil)
}

// SearchUsers godoc
// @Summary Search users by username or email
// @Tags friends
// @Produce json
// @Security BearerAuth
// @Param q query string true "At least 2 characters"
// @Success 200 {array} models.UserResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /chat/search-users [get]
func (h *FriendHandler) SearchUsers(c *gin.Context) {
	users, err := h.userService.Search(c.Request.Context(), currentUser(c), c.Query("q"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, gin.H{"users": users})
}

// RemoveFriend godoc
// @Summary Remove a friend
// @Tags friends
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.FriendIDRequest true "Friend"
// @Success 200 {object} map[string]interface{}
// @Router /chat/remove-friend [post]
func (h *FriendHandler) RemoveFriend(c *gin.Context) {
	var req models.FriendIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "friendId is required")
		return
	}
	if err := h.friendService.RemoveFriend(c.Request.Context(), currentUser(c), req.FriendID); err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, nil)
}

// BlockFriend godoc
// @Summary Block a user
// @Tags friends
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.FriendIDRequest true "User to block"
// @Success 200 {object} map[string]interface{}
// @Router /chat/block-friend [post]
func (h *FriendHandler) BlockFriend(c *gin.Context) {
	var req models.FriendIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "friendId is required")
		return
	}
	if err := h.friendService.BlockFriend(c.Request.Context(), currentUser(c), req.FriendID); err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, nil)
}
