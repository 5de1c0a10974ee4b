// Package scheduler triggers recurring jobs on cron or interval schedules
// (robfig/cron). Each schedule is skip-if-running: a trigger that fires while
// the previous run is still in flight is dropped and counted.
package scheduler
