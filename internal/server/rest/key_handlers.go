package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// POST /api/crypto/keys
func (s *Server) publishKeys(c *gin.Context) {
	var body keyBundleBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "incomplete key bundle")
		return
	}
	if err := s.keys.Publish(c.Request.Context(), currentUserID(c), body.toModel()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GET /api/crypto/keys/count
func (s *Server) prekeyCount(c *gin.Context) {
	count, err := s.keys.PrekeyCount(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// GET /api/crypto/keys/:userId — accepts a numeric id or a username.
func (s *Server) fetchBundle(c *gin.Context) {
	param := c.Param("userId")
	targetID, err := strconv.ParseInt(param, 10, 64)
	if err != nil {
		user, err := s.users.GetByUsername(c.Request.Context(), param)
		if err != nil {
			respondError(c, err)
			return
		}
		targetID = user.ID
	}
	if targetID <= 0 {
		badRequest(c, "bad user id")
		return
	}
	bundle, err := s.keys.FetchBundle(c.Request.Context(), targetID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bundle": bundle})
}
