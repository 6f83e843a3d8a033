package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mescon/beepwatch/internal/db"
	"github.com/mescon/beepwatch/internal/domain"
)

const journalService = "Event journal"

func isKnownEventType(t domain.EventType) bool {
	for _, known := range domain.AllEventTypes {
		if known == t {
			return true
		}
	}
	return false
}

// handleGetEvents returns journal entries newest first, filtered by the
// optional session and type query parameters.
func (s *RESTServer) handleGetEvents(c *gin.Context) {
	if s.journal == nil {
		respondServiceUnavailable(c, journalService)
		return
	}

	p := parsePage(c)
	filter := db.EventFilter{
		SessionID: c.Query("session_id"),
		EventType: domain.EventType(c.Query("type")),
		Limit:     p.Limit,
		Offset:    p.offset(),
	}
	if filter.EventType != "" && !isKnownEventType(filter.EventType) {
		respondValidation(c, fmt.Errorf("unknown event type %q", filter.EventType))
		return
	}

	events, err := s.journal.QueryEvents(filter)
	if err != nil {
		respondDatabaseError(c, err)
		return
	}
	total, err := s.journal.CountEvents(filter)
	if err != nil {
		respondDatabaseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events":     events,
		"pagination": p.info(total),
	})
}

func (s *RESTServer) handleGetSessions(c *gin.Context) {
	if s.journal == nil {
		respondServiceUnavailable(c, journalService)
		return
	}

	sessions, err := s.journal.ListSessions(parsePage(c).Limit)
	if err != nil {
		respondDatabaseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"current":  s.stopwatch.SessionID(),
	})
}

func (s *RESTServer) handleJournalStats(c *gin.Context) {
	if s.journal == nil {
		respondServiceUnavailable(c, journalService)
		return
	}

	stats, err := s.journal.GetDatabaseStats()
	if err != nil {
		respondDatabaseError(c, err)
		return
	}

	resp := gin.H{"database": stats}
	if s.journalWriter != nil {
		resp["writer"] = s.journalWriter.Stats()
	}
	if s.scheduler != nil {
		resp["maintenance"] = gin.H{
			"schedule": s.scheduler.Schedule(),
			"last_run": s.scheduler.LastRun(),
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *RESTServer) handleRunMaintenance(c *gin.Context) {
	if s.scheduler == nil {
		respondServiceUnavailable(c, "Journal maintenance")
		return
	}
	c.JSON(http.StatusOK, s.scheduler.RunNow())
}
