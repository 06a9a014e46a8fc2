package uidmon

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ReconcileSchedule decides when the monitor re-reads the whole package
// list even though no filesystem event arrived. Renames can be missed
// while the watcher re-arms, so the snapshot is reconciled on a cron
// expression (default every 30 minutes).
type ReconcileSchedule struct {
	expr     string
	schedule cron.Schedule
}

// ParseReconcileCron parses a 5-field cron expression into a schedule.
func ParseReconcileCron(expr string) (*ReconcileSchedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("uidmon: parse reconcile cron %q: %w", expr, err)
	}
	return &ReconcileSchedule{expr: expr, schedule: schedule}, nil
}

// Next returns the first reconcile time after t.
func (s *ReconcileSchedule) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Due reports whether a reconcile falls within t's minute. The monitor
// ticks once a minute, so minute granularity is the check unit.
func (s *ReconcileSchedule) Due(t time.Time) bool {
	minute := t.Truncate(time.Minute)
	return s.schedule.Next(minute.Add(-time.Minute)).Equal(minute)
}

func (s *ReconcileSchedule) String() string {
	return s.expr
}
