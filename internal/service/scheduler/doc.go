// Package scheduler owns the alarm list and the ringing state machine.
//
// A ticker drives Engine.Tick once per interval. While idle, the tick scans the
// alarms in insertion order and the first one due opens a ringing session.
// Stop and Snooze close the session; Snooze also appends a one-shot alarm that
// rings again a few minutes later.
package scheduler
