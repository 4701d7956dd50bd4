package rest

import (
	"net/http"
	"strings"
	"time"

	"github.com/aximilate/ctrl/internal/server/models"
	"github.com/gin-gonic/gin"
)

const (
	ctxUserID    = "user_id"
	ctxSessionID = "session_id"

	fingerprintHeader = "X-Device-Fingerprint"
)

// connectionContext captures the per-request client metadata the ban guard
// and session bookkeeping need.
func connectionContext(c *gin.Context) models.ConnectionContext {
	return models.ConnectionContext{
		UserAgent:   c.Request.UserAgent(),
		IP:          c.ClientIP(),
		Fingerprint: c.GetHeader(fingerprintHeader),
	}
}

// authRequired verifies the bearer token and stashes the claims.
func (s *Server) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, _, err := s.auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxSessionID, claims.SessionID)
		c.Next()
	}
}

func currentUserID(c *gin.Context) int64 {
	return c.GetInt64(ctxUserID)
}

func currentSessionID(c *gin.Context) string {
	return c.GetString(ctxSessionID)
}

// requestLogger logs one line per request in the structured format used
// across the server.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info(c.Request.Context(), "http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
