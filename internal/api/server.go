// Package api exposes the analysis pipeline and the mailbox over HTTP.
// Every model-backed endpoint resolves to a {data, error} pair with
// exactly one side set; failures are never thrown across the boundary.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/guardianmail/guardianmail/internal/config"
	"github.com/guardianmail/guardianmail/internal/core"
)

// Server is the HTTP front door.
type Server struct {
	cfg    config.ServerConfig
	logger *zap.Logger
	http   *http.Server
}

// NewServer builds the router and wires the handlers.
func NewServer(
	cfg *config.Config,
	logger *zap.Logger,
	mailbox core.Mailbox,
	settings core.SettingsStore,
	pipeline *core.BodyPipeline,
	classifier *core.BulkClassifier,
	model core.ModelClient,
) *Server {
	serverCfg := cfg.GetServer()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     serverCfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	emails := NewEmailHandler(mailbox, pipeline, logger)
	analysis := NewAnalysisHandler(mailbox, settings, classifier, model, logger)
	settingsHandler := NewSettingsHandler(settings, classifier, logger)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/emails", emails.List)
		apiGroup.GET("/emails/:id", emails.Get)
		apiGroup.POST("/emails/:id/read", emails.SetRead)
		apiGroup.POST("/emails/:id/star", emails.SetStarred)
		apiGroup.POST("/emails/:id/trash", emails.Trash)
		apiGroup.POST("/emails/:id/restore", emails.Restore)
		apiGroup.DELETE("/emails/:id", emails.Delete)

		apiGroup.POST("/classify", analysis.Classify)
		apiGroup.POST("/emails/:id/summarize", analysis.Summarize)
		apiGroup.POST("/emails/:id/reply", analysis.DraftReply)
		apiGroup.GET("/briefing", analysis.Briefing)

		apiGroup.GET("/settings", settingsHandler.Get)
		apiGroup.PUT("/settings", settingsHandler.Update)
	}

	return &Server{
		cfg:    serverCfg,
		logger: logger,
		http: &http.Server{
			Addr:    serverCfg.ListenAddress,
			Handler: router,
		},
	}
}

// Start begins serving in the background.
func (s *Server) Start() error {
	s.logger.Info("http server starting", zap.String("address", s.cfg.ListenAddress))
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// ok writes a successful {data, error} response.
func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"data": data, "error": nil})
}

// fail writes a failed {data, error} response.
func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"data": nil, "error": msg})
}
