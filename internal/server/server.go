package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"meme-battle/internal/config"
	"meme-battle/internal/db"
	"meme-battle/internal/game"
)

// Records is the read side of the statistics store.
type Records interface {
	Leaderboard(ctx context.Context, limit int) ([]db.Standing, error)
	PlayerStatistics(ctx context.Context, accountID string) (db.Standing, error)
}

type Server struct {
	engine  *game.Engine
	records Records
	cfg     config.Config
}

// New wires the HTTP surface to engine. records may be nil when no database
// is configured; the statistics routes then answer 503.
func New(engine *game.Engine, records Records, cfg config.Config) *Server {
	return &Server{
		engine:  engine,
		records: records,
		cfg:     cfg,
	}
}

func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger())

	r.GET("/health", s.handleHealth)

	api := r.Group("/api")
	api.GET("/sessions", s.handleListSessions)
	api.POST("/sessions", s.handleCreateSession)
	api.GET("/sessions/:code", s.handleSessionState)
	api.POST("/sessions/:code/join", s.handleJoinSession)
	api.POST("/sessions/:code/start", s.handleStartSession)
	api.GET("/sessions/:code/qr.png", s.handleJoinQR)
	api.POST("/sessions/:code/snapshot", s.handleSaveSnapshot)
	api.POST("/sessions/:code/restore", s.handleRestoreSession)
	api.POST("/sessions/:code/rematch", s.handleRematch)
	api.GET("/leaderboard", s.handleLeaderboard)
	api.GET("/players/:account/stats", s.handlePlayerStats)

	r.GET("/ws/sessions/:code", s.handleWebsocket)
	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/ws/") {
			return
		}
		log.Info().
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("dur", time.Since(start)).
			Msg("http")
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "sessions": len(s.engine.List()), "time": time.Now().UTC()})
}
