package scheduler

import (
	"errors"
	"testing"

	"github.com/go-co-op/gocron/v2"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	sched, err := gocron.NewScheduler()
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	svc := &Service{scheduler: sched, logger: schedulerLogger()}
	t.Cleanup(func() { svc.Stop() })
	return svc
}

func TestService_AddJobValidation(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.AddJob("", "30 3 * * *", func() {}); !errors.Is(err, ErrEmptyJobName) {
		t.Errorf("empty name: got %v, want ErrEmptyJobName", err)
	}
	if _, err := svc.AddJob("prune", "  ", func() {}); !errors.Is(err, ErrEmptyCronExpr) {
		t.Errorf("blank cron: got %v, want ErrEmptyCronExpr", err)
	}
	if _, err := svc.AddJob("prune", "not a cron", func() {}); err == nil {
		t.Error("malformed cron expression must be rejected")
	}
	if _, err := svc.AddJob("prune", "30 3 * * *", func() {}); err != nil {
		t.Errorf("valid job: %v", err)
	}
}

func TestService_NilGuards(t *testing.T) {
	var svc *Service
	if _, err := svc.AddJob("prune", "30 3 * * *", func() {}); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("nil AddJob: got %v, want ErrNotInitialized", err)
	}
	if err := svc.Stop(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("nil Stop: got %v, want ErrNotInitialized", err)
	}
}

func TestService_StopIdempotent(t *testing.T) {
	svc := newTestService(t)
	if err := svc.Stop(); err != nil {
		t.Fatalf("first stop: %v", err)
	}
	if err := svc.Stop(); err != nil {
		t.Errorf("second stop: %v", err)
	}
}
