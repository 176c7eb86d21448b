package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/beamchat/server/internal/auth"
	"github.com/beamchat/server/internal/config"
	"github.com/beamchat/server/internal/core"
	"github.com/beamchat/server/internal/store"
)

// NewServer builds the HTTP server: auth endpoints, conversation CRUD, and
// the websocket upgrade route.
func NewServer(hub *core.Hub, authService *auth.Service, st store.Store, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	apiHandlers := NewAPIHandlers(authService, logger)
	convHandlers := NewConversationHandlers(st, hub, logger)

	api := router.Group("/api")
	api.POST("/register", apiHandlers.Register)
	api.POST("/login", apiHandlers.Login)

	authed := api.Group("")
	authed.Use(AuthMiddleware(authService, logger))
	authed.POST("/conversations", convHandlers.CreateConversation)
	authed.GET("/conversations", convHandlers.ListConversations)
	authed.POST("/conversations/:id/participants", convHandlers.AddParticipant)

	router.GET("/ws", gin.WrapH(NewWSHandler(hub, authService, logger)))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
