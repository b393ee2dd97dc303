package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gigglechat/giggle/internal/chat"
	"github.com/gigglechat/giggle/internal/database"
	"github.com/gigglechat/giggle/internal/models"
)

// MessageHandler handles message-related routes
type MessageHandler struct {
	Store  database.Store
	Engine *chat.Engine
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(store database.Store, engine *chat.Engine) *MessageHandler {
	return &MessageHandler{Store: store, Engine: engine}
}

// SendMessage submits a message through the delivery engine. The
// response carries the message plus the policy signal so the client
// can explain warnings, blocks and failed sends.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	senderID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, signal, err := h.Engine.Submit(c.Request.Context(), senderID, req.ReceiverID, req.Content)
	if errors.Is(err, chat.ErrEmptyContent) || errors.Is(err, chat.ErrUnknownKind) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if signal.Kind == chat.SignalSendFailed {
		c.JSON(http.StatusBadGateway, gin.H{"signal": signal})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": msg,
		"signal":  signal,
	})
}

// GetConversation returns all messages between the authenticated user
// and another user, each sanitized for the caller's view.
func (h *MessageHandler) GetConversation(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	otherUserID, err := uuid.Parse(c.Param("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	messages, err := h.Store.GetConversation(userID, otherUserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]*models.Message, 0, len(messages))
	for _, msg := range messages {
		out = append(out, msg.Sanitized(userID))

		// Fetching a conversation implies the caller has seen the
		// inbound messages in it.
		if msg.ReceiverID == userID && msg.Status == models.StatusSent {
			if _, err := h.Engine.MarkRead(msg.ID); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		}
	}

	c.JSON(http.StatusOK, out)
}

// MarkMessageAsRead marks a single message as read
func (h *MessageHandler) MarkMessageAsRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	messageID, err := uuid.Parse(c.Param("messageID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid message ID"})
		return
	}

	msg, err := h.Store.GetMessageByID(messageID)
	if err == database.ErrMessageNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "Message not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if msg.ReceiverID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the receiver can mark a message as read"})
		return
	}

	if _, err := h.Engine.MarkRead(messageID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Message marked as read"})
}

// ReactToMessage toggles the caller's emoji reaction on a message.
func (h *MessageHandler) ReactToMessage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	messageID, err := uuid.Parse(c.Param("messageID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid message ID"})
		return
	}

	var req models.ReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.Store.GetMessageByID(messageID)
	if err == database.ErrMessageNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "Message not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if msg.SenderID != userID && msg.ReceiverID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only participants can react"})
		return
	}

	updated, err := h.Engine.React(userID, messageID, req.Emoji)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, updated.Sanitized(userID))
}
