package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aximilate/ctrl/internal/server/models"
	"github.com/aximilate/ctrl/internal/server/services"
	"github.com/gin-gonic/gin"
)

type sendMessageBody struct {
	Text       *string `json:"text"`
	Ciphertext *string `json:"ciphertext"`
	Type       string  `json:"type"`
	ReplyToID  *string `json:"replyToId"`
}

// POST /api/chat/:id/messages
func (s *Server) sendMessage(c *gin.Context) {
	var body sendMessageBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "malformed body")
		return
	}
	msg, err := s.messages.Send(c.Request.Context(), currentUserID(c), c.Param("id"), services.SendParams{
		Plaintext:  body.Text,
		Ciphertext: body.Ciphertext,
		Type:       models.MessageType(body.Type),
		ReplyToID:  body.ReplyToID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// GET /api/chat/:id/messages?before=RFC3339Nano&limit=50
func (s *Server) listMessages(c *gin.Context) {
	var before time.Time
	if raw := c.Query("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			badRequest(c, "bad before cursor")
			return
		}
		before = parsed
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	msgs, err := s.messages.List(c.Request.Context(), currentUserID(c), c.Param("id"), before, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// GET /api/chat/:id/messages/search?q=...
func (s *Server) searchMessages(c *gin.Context) {
	msgs, err := s.messages.Search(c.Request.Context(), currentUserID(c), c.Param("id"), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

type editMessageBody struct {
	Text string `json:"text" binding:"required"`
}

// PATCH /api/messages/:id
func (s *Server) editMessage(c *gin.Context) {
	var body editMessageBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "text required")
		return
	}
	msg, err := s.messages.Edit(c.Request.Context(), currentUserID(c), c.Param("id"), body.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// DELETE /api/messages/:id?scope=self|all
func (s *Server) deleteMessage(c *gin.Context) {
	scope := models.DeleteScope(c.DefaultQuery("scope", string(models.DeleteScopeSelf)))
	if err := s.messages.Delete(c.Request.Context(), currentUserID(c), c.Param("id"), scope); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type reactionBody struct {
	Emoji string `json:"emoji" binding:"required"`
}

// POST /api/messages/:id/reactions
func (s *Server) toggleReaction(c *gin.Context) {
	var body reactionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "emoji required")
		return
	}
	reactions, active, err := s.messages.ToggleReaction(c.Request.Context(), currentUserID(c), c.Param("id"), body.Emoji)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reactions": reactions, "active": active})
}
