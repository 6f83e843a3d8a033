package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mescon/beepwatch/internal/config"
	"github.com/mescon/beepwatch/internal/logger"
)

type intervalRequest struct {
	IntervalMs *int64 `json:"interval_ms"`
}

func (s *RESTServer) handleGetStopwatch(c *gin.Context) {
	c.JSON(http.StatusOK, s.stopwatch.Snapshot())
}

func (s *RESTServer) handleStart(c *gin.Context) {
	s.stopwatch.Start()
	c.JSON(http.StatusOK, s.stopwatch.Snapshot())
}

func (s *RESTServer) handleStop(c *gin.Context) {
	s.stopwatch.Stop()
	c.JSON(http.StatusOK, s.stopwatch.Snapshot())
}

func (s *RESTServer) handleReset(c *gin.Context) {
	s.stopwatch.Reset()
	c.JSON(http.StatusOK, s.stopwatch.Snapshot())
}

// handleSetInterval validates and applies a new beep interval, then saves it
// as the preferred interval. A failed save is logged but does not fail the request.
func (s *RESTServer) handleSetInterval(c *gin.Context) {
	var req intervalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	if req.IntervalMs == nil {
		respondValidation(c, errors.New("interval_ms is required"))
		return
	}

	d, err := config.IntervalFromMillis(*req.IntervalMs)
	if err != nil {
		respondValidation(c, err)
		return
	}

	s.stopwatch.SetInterval(d)
	if err := s.cfg.SaveInterval(d); err != nil {
		logger.Warnf("Failed to save interval preference: %v", err)
	}

	c.JSON(http.StatusOK, s.stopwatch.Snapshot())
}

// handleDisableInterval turns beeping off. The saved preference is kept.
func (s *RESTServer) handleDisableInterval(c *gin.Context) {
	s.stopwatch.SetInterval(0)
	c.JSON(http.StatusOK, s.stopwatch.Snapshot())
}
