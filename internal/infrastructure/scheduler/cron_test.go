package scheduler

import (
	"context"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	if err := Validate("0 7 * * *"); err != nil {
		t.Fatalf("valid expression rejected: %v", err)
	}
	if err := Validate("every morning"); err == nil {
		t.Fatalf("expected error for invalid expression")
	}
}

func TestCronSchedulerStartRejectsBadExpression(t *testing.T) {
	t.Parallel()

	s := NewCronScheduler("61 * * * *", nil, nil)
	if err := s.Start(context.Background(), func(time.Time) {}); err == nil {
		t.Fatalf("expected schedule error")
	}
}

func TestCronSchedulerRunsJob(t *testing.T) {
	t.Parallel()

	seoul := time.FixedZone("UTC+9", 9*60*60)
	s := NewCronScheduler("@every 1s", seoul, nil)

	fired := make(chan time.Time, 1)
	if err := s.Start(context.Background(), func(at time.Time) {
		select {
		case fired <- at:
		default:
		}
	}); err != nil {
		t.Fatalf("start: %v", err)
	}

	select {
	case at := <-fired:
		if _, offset := at.Zone(); offset != 9*60*60 {
			t.Fatalf("trigger time not in scheduler zone: %v", at)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("job did not fire")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}
