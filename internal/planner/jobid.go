package planner

import (
	"fmt"
	"time"
)

// BuildDailyJobID mints the job id for one daily occurrence of (scheduleID,
// timezone). The trailing epoch-millis makes each occurrence's id unique so
// that self-scheduling re-plans never collide with the job they replace.
func BuildDailyJobID(scheduleID, timezone string, now time.Time) string {
	return fmt.Sprintf("daily-%s-%s-%d", scheduleID, timezone, now.UnixMilli())
}

// BuildOnceJobID mints the stable job id for a once-send, keyed to the
// schedule and the hour of fireAt: planning the same schedule's once-send
// again while its job is still queued is a no-op at the queue level.
func BuildOnceJobID(scheduleID string, fireAt time.Time) string {
	return fmt.Sprintf("once-%s-%s", scheduleID, fireAt.UTC().Format("20060102T15"))
}
