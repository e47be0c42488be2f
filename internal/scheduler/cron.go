package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser accepts the standard five-field grammar: minute, hour,
// day-of-month, month, day-of-week. Seconds and the @every/@daily
// descriptor shorthands are disabled.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// CronMatches reports whether expr's five fields match now's minute.
func CronMatches(expr string, now time.Time) (bool, error) {
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return false, fmt.Errorf("parse cron expression %q: %w", expr, err)
	}

	minuteStart := now.Truncate(time.Minute)
	next := schedule.Next(minuteStart.Add(-time.Second))
	return next.Equal(minuteStart), nil
}
