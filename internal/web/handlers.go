package web

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"ntp-monitor/internal/models"
)

// Query parameter bounds
const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
	defaultStatsHours   = 24
	defaultOutageDays   = 7
)

// handleRealtime handles /api/realtime requests
func (s *Server) handleRealtime(c *gin.Context) {
	results, err := s.db.LatestPerServer(c.Request.Context())
	if err != nil {
		s.storageError(c, "realtime", err)
		return
	}

	s.sortByConfiguredOrder(results)
	c.JSON(http.StatusOK, s.views(results))
}

// handleHistory handles /api/history requests
func (s *Server) handleHistory(c *gin.Context) {
	server := c.Query("server")
	if server == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "server parameter required"})
		return
	}

	limit, err := intParam(c, "limit", defaultHistoryLimit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	results, err := s.db.History(c.Request.Context(), server, limit)
	if err != nil {
		s.storageError(c, "history", err)
		return
	}
	c.JSON(http.StatusOK, s.views(results))
}

// handleStats handles /api/stats requests
func (s *Server) handleStats(c *gin.Context) {
	hours, err := intParam(c, "hours", defaultStatsHours)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stats, err := s.db.GetStats(c.Request.Context(), hours)
	if err != nil {
		s.storageError(c, "stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// handleHourly serves the hourly roll-ups written by maintenance
func (s *Server) handleHourly(c *gin.Context) {
	hours, err := intParam(c, "hours", defaultStatsHours)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hourly, err := s.db.GetHourlyStats(c.Request.Context(), hours)
	if err != nil {
		s.storageError(c, "hourly", err)
		return
	}
	c.JSON(http.StatusOK, hourly)
}

// handleOutages handles /api/outages requests
func (s *Server) handleOutages(c *gin.Context) {
	days, err := intParam(c, "days", defaultOutageDays)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outages, err := s.db.GetOutages(c.Request.Context(), days)
	if err != nil {
		s.storageError(c, "outages", err)
		return
	}
	c.JSON(http.StatusOK, outages)
}

// handleHealth reports whether the store answers reads
func (s *Server) handleHealth(c *gin.Context) {
	if err := s.db.Check(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) storageError(c *gin.Context, endpoint string, err error) {
	log.Errorf("Error in /api/%s: %v", endpoint, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// sortByConfiguredOrder puts configured servers first in list order; the sort
// is stable so unknown servers keep their first-seen order
func (s *Server) sortByConfiguredOrder(results []models.ProbeResult) {
	rank := make(map[string]int, len(s.servers))
	for i, server := range s.servers {
		rank[server] = i
	}
	position := func(server string) int {
		if i, ok := rank[server]; ok {
			return i
		}
		return len(s.servers)
	}
	sort.SliceStable(results, func(i, j int) bool {
		return position(results[i].Server) < position(results[j].Server)
	})
}

// intParam reads a positive integer query parameter
func intParam(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", name, raw)
	}
	return v, nil
}
