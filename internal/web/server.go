package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"ntp-monitor/internal/config"
	"ntp-monitor/internal/models"
)

// Server handles web requests
type Server struct {
	db         models.Database
	servers    []string
	loc        *time.Location
	metrics    http.Handler
	httpServer *http.Server
}

// New creates a new web server. metrics may be nil, in which case /metrics is not served.
func New(db models.Database, cfg config.Config, metrics http.Handler) (*Server, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, &config.Error{Field: "timezone", Reason: err.Error()}
	}

	s := &Server{
		db:      db,
		servers: cfg.Servers,
		loc:     loc,
		metrics: metrics,
	}
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Router builds the gin engine with every route registered
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type"},
		ExposeHeaders:   []string{"Content-Length"},
		MaxAge:          12 * time.Hour,
	}))

	api := r.Group("/api")
	{
		api.GET("/realtime", s.handleRealtime)
		api.GET("/history", s.handleHistory)
		api.GET("/stats", s.handleStats)
		api.GET("/outages", s.handleOutages)
		api.GET("/hourly", s.handleHourly)
	}

	r.GET("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics))
	}
	return r
}

// Start serves HTTP until Shutdown is called
func (s *Server) Start() error {
	log.Infof("Web server starting on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}).Debug("http request")
	}
}
