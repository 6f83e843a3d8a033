package services

import (
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/mescon/beepwatch/internal/db"
	"github.com/mescon/beepwatch/internal/logger"
)

// Maintainer prunes and compacts the journal.
type Maintainer interface {
	RunMaintenance(retentionDays int) (db.MaintenanceResult, error)
}

// SchedulerService runs journal maintenance on a cron schedule.
type SchedulerService struct {
	repo          Maintainer
	retentionDays int
	cron          *cron.Cron

	mu       sync.Mutex
	entryID  cron.EntryID
	schedule string
	running  bool
	lastRun  db.MaintenanceResult
}

func NewSchedulerService(repo Maintainer, retentionDays int) *SchedulerService {
	return &SchedulerService{
		repo:          repo,
		retentionDays: retentionDays,
		cron:          cron.New(),
	}
}

// ValidateSchedule checks a standard five-field cron expression.
func ValidateSchedule(cronExpr string) error {
	if _, err := cron.ParseStandard(cronExpr); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}

// Start schedules maintenance with cronExpr and starts the cron runner.
func (s *SchedulerService) Start(cronExpr string) error {
	logger.Infof("Starting Scheduler Service...")
	if err := s.SetSchedule(cronExpr); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		s.cron.Start()
		s.running = true
	}
	return nil
}

// Stop stops the cron runner and waits for a running job to finish.
func (s *SchedulerService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
}

// SetSchedule replaces the maintenance schedule.
func (s *SchedulerService) SetSchedule(cronExpr string) error {
	if err := ValidateSchedule(cronExpr); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entryID != 0 {
		s.cron.Remove(s.entryID)
		s.entryID = 0
	}

	entryID, err := s.cron.AddFunc(cronExpr, func() {
		logger.Infof("Executing scheduled journal maintenance")
		s.RunNow()
	})
	if err != nil {
		return fmt.Errorf("failed to schedule maintenance: %w", err)
	}
	s.entryID = entryID
	s.schedule = cronExpr
	logger.Infof("Journal maintenance scheduled: %s (retention %d days)", cronExpr, s.retentionDays)
	return nil
}

// Schedule returns the active cron expression.
func (s *SchedulerService) Schedule() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schedule
}

// RunNow runs maintenance immediately and records the result.
func (s *SchedulerService) RunNow() db.MaintenanceResult {
	result, err := s.repo.RunMaintenance(s.retentionDays)
	if err != nil {
		logger.Errorf("Journal maintenance failed: %v", err)
		return result
	}

	s.mu.Lock()
	s.lastRun = result
	s.mu.Unlock()
	return result
}

// LastRun returns the result of the most recent successful maintenance.
func (s *SchedulerService) LastRun() db.MaintenanceResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}
