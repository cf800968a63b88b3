// Package alarm contains core domain types for the alarm business logic.
//
// It defines Alarm (a configured wake-up time with optional weekly
// recurrence and a sound), the snooze instance derived from a ringing alarm,
// the Session that represents an alarm currently sounding, and the static
// table of preset sounds. Clone helpers avoid leaking internal references.
package alarm
