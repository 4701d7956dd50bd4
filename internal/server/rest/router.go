package rest

import (
	"net/http"
	"time"

	"github.com/aximilate/ctrl/internal/logging"
	"github.com/aximilate/ctrl/internal/server/config"
	"github.com/aximilate/ctrl/internal/server/realtime"
	"github.com/aximilate/ctrl/internal/server/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Server groups the services behind the HTTP API.
type Server struct {
	auth     *services.AuthService
	users    *services.UserService
	chats    *services.ChatService
	messages *services.MessageService
	keys     *services.KeyService
	presence *realtime.Presence
	ws       *realtime.Handler
	logger   logging.Logger
}

func NewServer(
	auth *services.AuthService,
	users *services.UserService,
	chats *services.ChatService,
	messages *services.MessageService,
	keys *services.KeyService,
	presence *realtime.Presence,
	ws *realtime.Handler,
	logger logging.Logger,
) *Server {
	return &Server{
		auth:     auth,
		users:    users,
		chats:    chats,
		messages: messages,
		keys:     keys,
		presence: presence,
		ws:       ws,
		logger:   logger,
	}
}

// Router builds the gin engine with all routes mounted.
func (s *Server) Router(cfg *config.Config) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", fingerprintHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register/request", s.registerRequest)
		authGroup.POST("/register/verify", s.registerVerify)
		authGroup.POST("/register/password", s.registerPassword)
		authGroup.POST("/register/complete", s.registerComplete)
		authGroup.POST("/login", s.login)
		authGroup.POST("/login/verify", s.loginVerify)
		authGroup.POST("/refresh", s.refresh)
		authGroup.POST("/logout", s.authRequired(), s.logout)
		authGroup.GET("/sessions", s.authRequired(), s.listSessions)
		authGroup.DELETE("/sessions/:id", s.authRequired(), s.revokeSession)
	}

	usersGroup := api.Group("/users", s.authRequired())
	{
		usersGroup.GET("/me", s.me)
		usersGroup.PATCH("/me", s.updateProfile)
		usersGroup.POST("/me/password", s.changePassword)
		usersGroup.GET("/me/privacy", s.getPrivacy)
		usersGroup.PUT("/me/privacy", s.setPrivacy)
		usersGroup.GET("/contacts", s.contacts)
		usersGroup.GET("/profile/:username", s.userCardByUsername)
		usersGroup.GET("/:id", s.userCard)
	}

	chatGroup := api.Group("/chat", s.authRequired())
	{
		chatGroup.POST("/direct", s.openDirect)
		chatGroup.GET("/list", s.chatList)
		chatGroup.GET("/search", s.globalSearch)
		chatGroup.GET("/calls", s.callList)
		chatGroup.POST("/calls/log", s.logCall)
		chatGroup.PATCH("/:id/preferences", s.setChatPreferences)
		chatGroup.POST("/:id/messages", s.sendMessage)
		chatGroup.GET("/:id/messages", s.listMessages)
		chatGroup.GET("/:id/messages/search", s.searchMessages)
	}

	messagesGroup := api.Group("/messages", s.authRequired())
	{
		messagesGroup.PATCH("/:id", s.editMessage)
		messagesGroup.DELETE("/:id", s.deleteMessage)
		messagesGroup.POST("/:id/reactions", s.toggleReaction)
	}

	cryptoGroup := api.Group("/crypto", s.authRequired())
	{
		cryptoGroup.POST("/keys", s.publishKeys)
		cryptoGroup.GET("/keys/count", s.prekeyCount)
		cryptoGroup.GET("/keys/:userId", s.fetchBundle)
	}

	r.GET("/ws", s.ws.Handle)

	return r
}
