package rest

import (
	"net/http"

	"github.com/aximilate/ctrl/internal/server/models"
	"github.com/aximilate/ctrl/internal/server/services"
	"github.com/gin-gonic/gin"
)

type registerRequestBody struct {
	Email string `json:"email" binding:"required"`
}

// POST /api/auth/register/request
func (s *Server) registerRequest(c *gin.Context) {
	var body registerRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "email required")
		return
	}
	devCode, err := s.auth.RequestRegisterCode(c.Request.Context(), body.Email, connectionContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	resp := gin.H{"sent": true}
	if devCode != "" {
		resp["devCode"] = devCode
	}
	c.JSON(http.StatusOK, resp)
}

type registerVerifyBody struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

// POST /api/auth/register/verify
func (s *Server) registerVerify(c *gin.Context) {
	var body registerVerifyBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "email and code required")
		return
	}
	token, err := s.auth.VerifyRegisterCode(c.Request.Context(), body.Email, body.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flowToken": token})
}

type registerPasswordBody struct {
	FlowToken string `json:"flowToken" binding:"required"`
	Password  string `json:"password" binding:"required"`
}

// POST /api/auth/register/password
func (s *Server) registerPassword(c *gin.Context) {
	var body registerPasswordBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "flowToken and password required")
		return
	}
	if err := s.auth.SetPassword(c.Request.Context(), body.FlowToken, body.Password); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type keyBundleBody struct {
	IdentityPublicKey     string   `json:"identityPublicKey" binding:"required"`
	SignedPrekeyPublic    string   `json:"signedPrekeyPublic" binding:"required"`
	SignedPrekeySignature string   `json:"signedPrekeySignature" binding:"required"`
	OneTimePrekeys        []string `json:"oneTimePrekeys"`
}

func (b *keyBundleBody) toModel() *models.KeyBundle {
	return &models.KeyBundle{
		IdentityPublicKey:     b.IdentityPublicKey,
		SignedPrekeyPublic:    b.SignedPrekeyPublic,
		SignedPrekeySignature: b.SignedPrekeySignature,
		OneTimePrekeys:        b.OneTimePrekeys,
	}
}

type registerCompleteBody struct {
	FlowToken   string         `json:"flowToken" binding:"required"`
	DisplayName string         `json:"displayName" binding:"required"`
	Username    *string        `json:"username"`
	BirthDate   *string        `json:"birthDate"`
	Keys        *keyBundleBody `json:"keys"`
}

// POST /api/auth/register/complete
func (s *Server) registerComplete(c *gin.Context) {
	var body registerCompleteBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "flowToken and displayName required")
		return
	}
	params := services.CompleteProfileParams{
		DisplayName: body.DisplayName,
		Username:    body.Username,
		BirthDate:   body.BirthDate,
	}
	if body.Keys != nil {
		params.KeyBundle = body.Keys.toModel()
	}
	user, pair, err := s.auth.CompleteProfile(c.Request.Context(), body.FlowToken, params, connectionContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"user":         user.Card(),
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

type loginBody struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// POST /api/auth/login
func (s *Server) login(c *gin.Context) {
	var body loginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "identifier and password required")
		return
	}
	challengeID, devCode, err := s.auth.LoginRequest(c.Request.Context(), body.Identifier, body.Password, connectionContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	resp := gin.H{"challengeId": challengeID}
	if devCode != "" {
		resp["devCode"] = devCode
	}
	c.JSON(http.StatusOK, resp)
}

type loginVerifyBody struct {
	ChallengeID string `json:"challengeId" binding:"required"`
	Code        string `json:"code" binding:"required"`
}

// POST /api/auth/login/verify
func (s *Server) loginVerify(c *gin.Context) {
	var body loginVerifyBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "challengeId and code required")
		return
	}
	user, pair, err := s.auth.LoginVerify(c.Request.Context(), body.ChallengeID, body.Code, connectionContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":         user.Card(),
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

type refreshBody struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// POST /api/auth/refresh
func (s *Server) refresh(c *gin.Context) {
	var body refreshBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "refreshToken required")
		return
	}
	pair, err := s.auth.Refresh(c.Request.Context(), body.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

// POST /api/auth/logout
func (s *Server) logout(c *gin.Context) {
	if err := s.auth.Logout(c.Request.Context(), currentUserID(c), currentSessionID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// DELETE /api/auth/sessions/:id
func (s *Server) revokeSession(c *gin.Context) {
	if err := s.auth.RevokeSession(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GET /api/auth/sessions
func (s *Server) listSessions(c *gin.Context) {
	sessions, err := s.auth.Sessions(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	current := currentSessionID(c)
	out := make([]gin.H, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, gin.H{
			"id":        sess.ID,
			"userAgent": sess.UserAgent,
			"ip":        sess.IP,
			"createdAt": sess.CreatedAt,
			"expiresAt": sess.ExpiresAt,
			"revokedAt": sess.RevokedAt,
			"current":   sess.ID == current,
		})
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}
