package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gigglechat/giggle/internal/database"
	"github.com/gigglechat/giggle/internal/models"
	"github.com/gigglechat/giggle/internal/relationship"
)

// ContactHandler handles friend-request and block routes
type ContactHandler struct {
	Relationships *relationship.Service
}

// NewContactHandler creates a new contact handler
func NewContactHandler(relationships *relationship.Service) *ContactHandler {
	return &ContactHandler{Relationships: relationships}
}

// friendRequestBody is the payload for sending a friend request.
type friendRequestBody struct {
	ReceiverID uuid.UUID `json:"receiver_id" binding:"required"`
}

// respondBody is the payload for answering a friend request.
type respondBody struct {
	Action string `json:"action" binding:"required,oneof=accept deny"`
}

// blockBody is the payload for block/unblock.
type blockBody struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

// SendFriendRequest issues a friend request to another user.
func (h *ContactHandler) SendFriendRequest(c *gin.Context) {
	senderID, ok := currentUserID(c)
	if !ok {
		return
	}

	var body friendRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req, err := h.Relationships.SendRequest(senderID, body.ReceiverID)
	switch {
	case errors.Is(err, relationship.ErrSelfRequest),
		errors.Is(err, relationship.ErrAlreadyFriends),
		errors.Is(err, relationship.ErrRequestPending),
		errors.Is(err, relationship.ErrRequestDenied),
		errors.Is(err, relationship.ErrMustUnblock):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case errors.Is(err, relationship.ErrBlockedByTarget):
		// Deliberately indistinguishable from a missing user.
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, req)
}

// GetIncomingRequests lists pending requests addressed to the caller.
func (h *ContactHandler) GetIncomingRequests(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	requests, err := h.Relationships.IncomingRequests(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, requests)
}

// RespondToRequest accepts or denies a pending friend request. Denying
// also blocks the sender.
func (h *ContactHandler) RespondToRequest(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	requestID, err := uuid.Parse(c.Param("requestID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request ID"})
		return
	}

	var body respondBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req, err := h.Relationships.Request(requestID)
	if err == database.ErrRequestNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "Request not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if req.ReceiverID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the receiver can respond"})
		return
	}
	if req.Status != models.RequestPending {
		c.JSON(http.StatusConflict, gin.H{"error": "Request already answered"})
		return
	}

	if err := h.Relationships.Respond(requestID, body.Action == "accept"); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Request " + body.Action + "ed"})
}

// GetContacts lists the caller's accepted friends.
func (h *ContactHandler) GetContacts(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	contacts, err := h.Relationships.Contacts(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	responses := make([]models.UserResponse, 0, len(contacts))
	for _, u := range contacts {
		responses = append(responses, u.ToResponse())
	}

	c.JSON(http.StatusOK, responses)
}

// BlockUser creates a block edge from the caller toward another user.
func (h *ContactHandler) BlockUser(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var body blockBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.Relationships.Block(userID, body.UserID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User blocked"})
}

// UnblockUser lifts a block the caller previously placed.
func (h *ContactHandler) UnblockUser(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var body blockBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.Relationships.Unblock(userID, body.UserID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User unblocked"})
}

// GetBlockedUsers lists everyone the caller has blocked.
func (h *ContactHandler) GetBlockedUsers(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	users, err := h.Relationships.BlockedUsers(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	responses := make([]models.UserResponse, 0, len(users))
	for _, u := range users {
		responses = append(responses, u.ToResponse())
	}

	c.JSON(http.StatusOK, responses)
}
