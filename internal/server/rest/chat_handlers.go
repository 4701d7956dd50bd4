package rest

import (
	"net/http"
	"time"

	"github.com/aximilate/ctrl/internal/server/models"
	"github.com/aximilate/ctrl/internal/server/services"
	"github.com/gin-gonic/gin"
)

type openDirectBody struct {
	PeerID   int64  `json:"peerId"`
	Username string `json:"username"`
}

// POST /api/chat/direct
func (s *Server) openDirect(c *gin.Context) {
	var body openDirectBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "malformed body")
		return
	}
	peerID := body.PeerID
	if peerID == 0 {
		if body.Username == "" {
			badRequest(c, "peerId or username required")
			return
		}
		peer, err := s.users.GetByUsername(c.Request.Context(), body.Username)
		if err != nil {
			respondError(c, err)
			return
		}
		peerID = peer.ID
	}
	chat, created, err := s.chats.OpenDirect(c.Request.Context(), currentUserID(c), peerID)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"chat": gin.H{
		"id":        chat.ID,
		"type":      chat.Type,
		"createdAt": chat.CreatedAt,
	}, "created": created})
}

// GET /api/chat/list?tab=home|favorites|archive
func (s *Server) chatList(c *gin.Context) {
	summaries, err := s.chats.List(c.Request.Context(), currentUserID(c), models.ChatListTab(c.Query("tab")))
	if err != nil {
		respondError(c, err)
		return
	}
	if summaries == nil {
		summaries = []models.ChatSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"chats": summaries})
}

// GET /api/chat/search?q=&scope=contacts|chats|messages
func (s *Server) globalSearch(c *gin.Context) {
	q := c.Query("q")
	switch c.DefaultQuery("scope", "messages") {
	case "contacts":
		cards, err := s.users.Contacts(c.Request.Context(), currentUserID(c), q, 0)
		if err != nil {
			respondError(c, err)
			return
		}
		if cards == nil {
			cards = []models.UserCard{}
		}
		c.JSON(http.StatusOK, gin.H{"contacts": cards})
	case "chats":
		summaries, err := s.chats.Search(c.Request.Context(), currentUserID(c), q)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"chats": summaries})
	case "messages":
		msgs, err := s.messages.SearchAll(c.Request.Context(), currentUserID(c), q)
		if err != nil {
			respondError(c, err)
			return
		}
		if msgs == nil {
			msgs = []models.Message{}
		}
		c.JSON(http.StatusOK, gin.H{"messages": msgs})
	case "multimedia", "files":
		// Media storage is not supported; the scopes exist for client parity.
		c.JSON(http.StatusOK, gin.H{"messages": []models.Message{}})
	default:
		badRequest(c, "unknown search scope")
	}
}

type logCallBody struct {
	PeerUserID int64      `json:"peerUserId"`
	Direction  string     `json:"direction"`
	Status     string     `json:"status"`
	StartedAt  *time.Time `json:"startedAt"`
	EndedAt    *time.Time `json:"endedAt"`
}

// POST /api/chat/calls/log
func (s *Server) logCall(c *gin.Context) {
	var body logCallBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "malformed body")
		return
	}
	params := services.LogCallParams{
		PeerUserID: body.PeerUserID,
		Direction:  models.CallDirection(body.Direction),
		Status:     models.CallStatus(body.Status),
		EndedAt:    body.EndedAt,
	}
	if body.StartedAt != nil {
		params.StartedAt = *body.StartedAt
	}
	log, err := s.chats.LogCall(c.Request.Context(), currentUserID(c), params)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "id": log.ID})
}

// GET /api/chat/calls
func (s *Server) callList(c *gin.Context) {
	logs, err := s.chats.Calls(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if logs == nil {
		logs = []models.CallLog{}
	}
	c.JSON(http.StatusOK, gin.H{"calls": logs})
}

// PATCH /api/chat/:id/preferences
func (s *Server) setChatPreferences(c *gin.Context) {
	var body models.ChatPreferences
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "malformed body")
		return
	}
	member, err := s.chats.SetPreferences(c.Request.Context(), currentUserID(c), c.Param("id"), &body)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"preferences": models.ChatMemberFlags{
		Muted:    member.Muted,
		Pinned:   member.Pinned,
		Favorite: member.Favorite,
		Archived: member.Archived,
	}})
}
