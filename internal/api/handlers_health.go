package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mescon/beepwatch/internal/logger"
)

// formatUptime returns a human-readable uptime string
func formatUptime(uptime time.Duration) string {
	days := int(uptime.Hours()) / 24
	hours := int(uptime.Hours()) % 24
	minutes := int(uptime.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

// checkJournalHealth reports journal status; a disabled journal is healthy.
func (s *RESTServer) checkJournalHealth() (gin.H, bool) {
	if s.journal == nil {
		return gin.H{"status": "disabled"}, true
	}

	stats, err := s.journal.GetDatabaseStats()
	if err != nil {
		logger.Debugf("Health check: journal stats failed: %v", err)
		return gin.H{"status": "error", "error": err.Error()}, false
	}

	health := gin.H{"status": "connected", "size_bytes": stats.SizeBytes, "events": stats.Events}
	if s.journalWriter != nil {
		if dropped := s.journalWriter.Stats().Dropped; dropped > 0 {
			health["dropped_events"] = dropped
		}
	}
	return health, true
}

// handleHealth returns server health for container orchestration. It needs no authentication.
func (s *RESTServer) handleHealth(c *gin.Context) {
	journalHealth, journalHealthy := s.checkJournalHealth()

	status := "healthy"
	if !journalHealthy {
		status = "degraded"
	}

	snap := s.stopwatch.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":  status,
		"uptime":  formatUptime(time.Since(s.startTime)),
		"journal": journalHealth,
		"stopwatch": gin.H{
			"session_id":       snap.SessionID,
			"state":            snap.State,
			"wake_lock_active": snap.WakeLockActive,
		},
		"websocket_clients": s.hub.ClientCount(),
	})
}
