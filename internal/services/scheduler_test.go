package services

import (
	"errors"
	"sync"
	"testing"

	"github.com/mescon/beepwatch/internal/db"
)

type fakeMaintainer struct {
	mu     sync.Mutex
	calls  []int
	result db.MaintenanceResult
	err    error
}

func (f *fakeMaintainer) RunMaintenance(retentionDays int) (db.MaintenanceResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, retentionDays)
	return f.result, f.err
}

func TestNewSchedulerService(t *testing.T) {
	s := NewSchedulerService(&fakeMaintainer{}, 30)

	if s.cron == nil {
		t.Error("cron should be initialized")
	}
	if s.Schedule() != "" {
		t.Errorf("Schedule() = %q before Start, want empty", s.Schedule())
	}
}

func TestValidateSchedule(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"0 3 * * *", false},
		{"*/5 * * * *", false},
		{"@daily", false},
		{"not a cron", true},
		{"0 3 * *", true},
		{"", true},
	}
	for _, tt := range tests {
		err := ValidateSchedule(tt.expr)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateSchedule(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
		}
	}
}

func TestSchedulerService_StartAndStop(t *testing.T) {
	s := NewSchedulerService(&fakeMaintainer{}, 30)

	if err := s.Start("0 3 * * *"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if got := s.Schedule(); got != "0 3 * * *" {
		t.Errorf("Schedule() = %q", got)
	}
	if len(s.cron.Entries()) != 1 {
		t.Errorf("Expected 1 cron entry, got %d", len(s.cron.Entries()))
	}

	s.Stop()
	s.Stop() // second stop is a no-op
}

func TestSchedulerService_StartInvalid(t *testing.T) {
	s := NewSchedulerService(&fakeMaintainer{}, 30)

	if err := s.Start("bogus"); err == nil {
		t.Fatal("Start should reject an invalid cron expression")
	}
	s.Stop()
}

func TestSchedulerService_SetScheduleReplacesEntry(t *testing.T) {
	s := NewSchedulerService(&fakeMaintainer{}, 30)
	if err := s.Start("0 3 * * *"); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	if err := s.SetSchedule("30 4 * * 0"); err != nil {
		t.Fatalf("SetSchedule failed: %v", err)
	}
	if len(s.cron.Entries()) != 1 {
		t.Errorf("Expected the old entry to be replaced, got %d entries", len(s.cron.Entries()))
	}
	if s.Schedule() != "30 4 * * 0" {
		t.Errorf("Schedule() = %q", s.Schedule())
	}

	if err := s.SetSchedule("nope"); err == nil {
		t.Error("SetSchedule should reject an invalid expression")
	}
	if s.Schedule() != "30 4 * * 0" {
		t.Error("A rejected schedule must leave the current one in place")
	}
}

func TestSchedulerService_RunNow(t *testing.T) {
	m := &fakeMaintainer{result: db.MaintenanceResult{EventsPruned: 7, SessionsPruned: 2}}
	s := NewSchedulerService(m, 14)

	result := s.RunNow()
	if result.EventsPruned != 7 || result.SessionsPruned != 2 {
		t.Errorf("RunNow() = %+v", result)
	}
	if len(m.calls) != 1 || m.calls[0] != 14 {
		t.Errorf("RunMaintenance calls = %v, want [14]", m.calls)
	}
	if s.LastRun() != result {
		t.Errorf("LastRun() = %+v, want %+v", s.LastRun(), result)
	}
}

func TestSchedulerService_RunNowFailureKeepsLastRun(t *testing.T) {
	m := &fakeMaintainer{result: db.MaintenanceResult{EventsPruned: 3}}
	s := NewSchedulerService(m, 30)
	s.RunNow()

	m.err = errors.New("locked")
	m.result = db.MaintenanceResult{}
	s.RunNow()

	if s.LastRun().EventsPruned != 3 {
		t.Errorf("LastRun() = %+v, want the last successful result", s.LastRun())
	}
}
