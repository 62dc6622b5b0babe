package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

func noopAction(context.Context) error { return nil }

func TestTriggerValidate(t *testing.T) {
	tests := []struct {
		name    string
		trigger Trigger
		wantErr bool
	}{
		{
			name:    "daily cron",
			trigger: Trigger{Name: "metrics-rollup", Schedule: "30 2 * * *", Action: noopAction},
		},
		{
			name:    "every descriptor",
			trigger: Trigger{Name: "ads-refresh", Schedule: "@every 6h", Action: noopAction},
		},
		{
			name:    "with timezone",
			trigger: Trigger{Name: "digest", Schedule: "0 8 * * *", Timezone: "Asia/Kolkata", Action: noopAction},
		},
		{
			name:    "missing name",
			trigger: Trigger{Schedule: "* * * * *", Action: noopAction},
			wantErr: true,
		},
		{
			name:    "missing action",
			trigger: Trigger{Name: "x", Schedule: "* * * * *"},
			wantErr: true,
		},
		{
			name:    "bad schedule",
			trigger: Trigger{Name: "x", Schedule: "not-a-cron", Action: noopAction},
			wantErr: true,
		},
		{
			name:    "bad timezone",
			trigger: Trigger{Name: "x", Schedule: "* * * * *", Timezone: "Mars/Olympus", Action: noopAction},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.trigger.Validate()
			if tt.wantErr && !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestTriggerNextRunHonorsTimezone(t *testing.T) {
	trigger := Trigger{
		Name:     "digest",
		Schedule: "0 8 * * *",
		Timezone: "Asia/Kolkata",
		Action:   noopAction,
	}

	// 2026-03-01 00:00 UTC is 05:30 in Kolkata, so the next 08:00 IST
	// fire lands at 02:30 UTC the same day.
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	next, err := trigger.NextRun(now)
	if err != nil {
		t.Fatalf("NextRun: %v", err)
	}
	want := time.Date(2026, 3, 1, 2, 30, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("NextRun = %v, want %v", next, want)
	}
}

func TestTriggerNextRunInterval(t *testing.T) {
	trigger := Trigger{Name: "ads", Schedule: "@every 6h", Action: noopAction}
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	next, err := trigger.NextRun(now)
	if err != nil {
		t.Fatalf("NextRun: %v", err)
	}
	if got := next.Sub(now); got != 6*time.Hour {
		t.Fatalf("interval = %v, want 6h", got)
	}
}
