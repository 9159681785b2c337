package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"estate-agent/config"
	"estate-agent/web/handlers"
	"estate-agent/web/middleware"
	"estate-agent/web/services"
)

type Server struct {
	router   *gin.Engine
	sessions *services.SessionService
	turns    *services.TurnService
	limiter  *middleware.ClientRateLimiter
	logger   *zap.Logger
	config   *config.Config
}

func NewServer(
	sessions *services.SessionService,
	turns *services.TurnService,
	logger *zap.Logger,
	cfg *config.Config,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(func(c *gin.Context) {
		c.Set("logger", logger)
		c.Next()
	})
	router.Use(middleware.ClientMiddleware())

	limiter := middleware.NewClientRateLimiter(middleware.RateLimiterConfig{
		MessagesPerMinute: cfg.RateLimitMessagesPerMin,
		BurstSize:         cfg.RateLimitBurstSize,
		CleanupInterval:   cfg.RateLimitCleanupInterval,
	}, logger)

	server := &Server{
		router:   router,
		sessions: sessions,
		turns:    turns,
		limiter:  limiter,
		logger:   logger,
		config:   cfg,
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	sessionHandler := handlers.NewSessionHandler(s.sessions, s.logger)
	chatHandler := handlers.NewChatHandler(s.turns, s.logger)
	identityHandler := handlers.NewIdentityHandler(s.sessions, s.logger)

	api := s.router.Group("/api")
	{
		api.GET("/sessions", sessionHandler.List)
		api.POST("/sessions", sessionHandler.Create)
		api.DELETE("/sessions/:id", sessionHandler.Delete)
		api.PUT("/sessions/:id/select", sessionHandler.Select)
		api.GET("/sessions/:id/messages", sessionHandler.Messages)

		api.POST("/chat", middleware.RateLimitMiddleware(s.limiter), chatHandler.SendMessage)

		api.GET("/identity", identityHandler.Current)
		api.POST("/identity/signin", identityHandler.SignIn)
		api.POST("/identity/signout", identityHandler.SignOut)
	}
}

func (s *Server) Start(ctx context.Context, addr string) error {
	s.logger.Info("Starting web server", zap.String("address", addr))

	srv := &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Web server failed to start", zap.Error(err))
		}
	}()

	<-ctx.Done()

	s.logger.Info("Shutting down web server")
	s.limiter.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
