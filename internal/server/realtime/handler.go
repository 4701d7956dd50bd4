package realtime

import (
	"context"
	"net/http"

	"github.com/aximilate/ctrl/internal/logging"
	"github.com/aximilate/ctrl/internal/server/auth"
	"github.com/aximilate/ctrl/internal/server/models"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Authenticator verifies an access token and resolves the account behind
// it. The auth service implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*auth.Claims, *models.User, error)
}

// Handler upgrades authenticated HTTP requests to websocket connections and
// wires them into the broker and presence tracker.
type Handler struct {
	broker      *Broker
	authn       Authenticator
	memberships Memberships
	presence    *Presence
	logger      logging.Logger
	upgrader    websocket.Upgrader
}

func NewHandler(broker *Broker, authn Authenticator, memberships Memberships, presence *Presence, logger logging.Logger, allowedOrigins []string) *Handler {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	return &Handler{
		broker:      broker,
		authn:       authn,
		memberships: memberships,
		presence:    presence,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Non-browser clients send no Origin header.
				return origin == "" || origins[origin]
			},
		},
	}
}

// Handle is the GET /ws endpoint. The token travels in the query string
// because browsers cannot set headers on websocket dials.
func (h *Handler) Handle(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	claims, _, err := h.authn.Authenticate(c.Request.Context(), token)
	if err != nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn(c.Request.Context(), "websocket upgrade failed", "error", err)
		return
	}

	userID := claims.UserID
	client := newClient(h.broker, h.memberships, userID, conn, func() {
		h.presence.Disconnect(context.Background(), userID)
	})
	h.broker.join(userRoom(userID), client)
	h.presence.Connect(c.Request.Context(), userID)

	go client.writePump()
	go client.readPump()
}
