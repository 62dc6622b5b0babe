// Package scheduler fires recurring triggers on cron cadences. It owns
// cadence only: trigger actions either call a bulk operation directly or
// enqueue jobs, and one trigger's failure never touches another.
package scheduler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Action is the body executed on each fire.
type Action func(ctx context.Context) error

// Trigger is one recurring rule. Cadence and timezone are fixed at
// registration and not reconfigurable at runtime.
type Trigger struct {
	Name     string
	Schedule string
	Timezone string
	Action   Action
}

// Validate checks required fields, schedule syntax and timezone.
func (t *Trigger) Validate() error {
	if t == nil {
		return schedulerError(ErrValidation, "trigger is nil")
	}
	if strings.TrimSpace(t.Name) == "" {
		return schedulerError(ErrValidation, "trigger name is required")
	}
	if t.Action == nil {
		return schedulerError(ErrValidation, "trigger action is required")
	}
	if _, err := t.schedule(); err != nil {
		return err
	}
	if _, err := t.location(); err != nil {
		return err
	}
	return nil
}

func (t *Trigger) schedule() (cron.Schedule, error) {
	sched, err := cronParser.Parse(strings.TrimSpace(t.Schedule))
	if err != nil {
		return nil, errors.Join(schedulerError(ErrValidation, "invalid trigger schedule"), err)
	}
	return sched, nil
}

func (t *Trigger) location() (*time.Location, error) {
	if strings.TrimSpace(t.Timezone) == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(strings.TrimSpace(t.Timezone))
	if err != nil {
		return nil, errors.Join(schedulerError(ErrValidation, "invalid trigger timezone"), err)
	}
	return loc, nil
}

// NextRun returns the next fire time after now, evaluated in the
// trigger's timezone, reported in UTC.
func (t *Trigger) NextRun(now time.Time) (time.Time, error) {
	sched, err := t.schedule()
	if err != nil {
		return time.Time{}, err
	}
	loc, err := t.location()
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(now.In(loc)).UTC(), nil
}
