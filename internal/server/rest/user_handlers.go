package rest

import (
	"net/http"
	"strconv"

	"github.com/aximilate/ctrl/internal/server/models"
	"github.com/aximilate/ctrl/internal/server/repositories/users"
	"github.com/gin-gonic/gin"
)

func profileResponse(u *models.User) gin.H {
	return gin.H{
		"id":          u.ID,
		"email":       u.Email,
		"username":    u.Username,
		"displayName": u.DisplayName,
		"avatarUrl":   u.AvatarURL,
		"bio":         u.Bio,
		"birthDate":   u.BirthDate,
		"lastSeenAt":  u.LastSeenAt,
		"createdAt":   u.CreatedAt,
	}
}

// GET /api/users/me
func (s *Server) me(c *gin.Context) {
	user, err := s.users.GetByID(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profileResponse(user))
}

type updateProfileBody struct {
	DisplayName *string `json:"displayName"`
	Username    *string `json:"username"`
	AvatarURL   *string `json:"avatarUrl"`
	Bio         *string `json:"bio"`
	BirthDate   *string `json:"birthDate"`
}

// PATCH /api/users/me
func (s *Server) updateProfile(c *gin.Context) {
	var body updateProfileBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "malformed body")
		return
	}
	user, err := s.users.UpdateProfile(c.Request.Context(), currentUserID(c), users.ProfilePatch{
		DisplayName: body.DisplayName,
		Username:    body.Username,
		AvatarURL:   body.AvatarURL,
		Bio:         body.Bio,
		BirthDate:   body.BirthDate,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profileResponse(user))
}

type changePasswordBody struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

// POST /api/users/me/password
func (s *Server) changePassword(c *gin.Context) {
	var body changePasswordBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "currentPassword and newPassword required")
		return
	}
	if err := s.users.ChangePassword(c.Request.Context(), currentUserID(c), body.CurrentPassword, body.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GET /api/users/me/privacy
func (s *Server) getPrivacy(c *gin.Context) {
	p, err := s.users.GetPrivacy(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"avatarVisibility":   p.AvatarVisibility,
		"bioVisibility":      p.BioVisibility,
		"lastSeenVisibility": p.LastSeenVisibility,
	})
}

type privacyBody struct {
	AvatarVisibility   models.Visibility `json:"avatarVisibility" binding:"required"`
	BioVisibility      models.Visibility `json:"bioVisibility" binding:"required"`
	LastSeenVisibility models.Visibility `json:"lastSeenVisibility" binding:"required"`
}

// PUT /api/users/me/privacy
func (s *Server) setPrivacy(c *gin.Context) {
	var body privacyBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "all visibility fields required")
		return
	}
	err := s.users.SetPrivacy(c.Request.Context(), &models.UserPrivacy{
		UserID:             currentUserID(c),
		AvatarVisibility:   body.AvatarVisibility,
		BioVisibility:      body.BioVisibility,
		LastSeenVisibility: body.LastSeenVisibility,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GET /api/users/contacts?q=...&limit=...
func (s *Server) contacts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	cards, err := s.users.Contacts(c.Request.Context(), currentUserID(c), c.Query("q"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contacts": cards})
}

// GET /api/users/profile/:username
func (s *Server) userCardByUsername(c *gin.Context) {
	card, err := s.users.CardByUsername(c.Request.Context(), currentUserID(c), c.Param("username"))
	if err != nil {
		respondError(c, err)
		return
	}
	online, err := s.presence.IsOnline(c.Request.Context(), card.ID)
	if err != nil {
		online = false
	}
	c.JSON(http.StatusOK, gin.H{"user": card, "online": online})
}

// GET /api/users/:id
func (s *Server) userCard(c *gin.Context) {
	targetID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || targetID <= 0 {
		badRequest(c, "bad user id")
		return
	}
	card, err := s.users.Card(c.Request.Context(), currentUserID(c), targetID)
	if err != nil {
		respondError(c, err)
		return
	}
	online, err := s.presence.IsOnline(c.Request.Context(), targetID)
	if err != nil {
		online = false
	}
	c.JSON(http.StatusOK, gin.H{"user": card, "online": online})
}
