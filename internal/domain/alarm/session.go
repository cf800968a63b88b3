package alarm

import "time"

// Session is the transient state of an alarm that is currently ringing.
type Session struct {
	// Alarm is a snapshot of the alarm that opened the session.
	Alarm *Alarm
	// OpenedAt is when the scheduler matched the alarm.
	OpenedAt time.Time
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}

	return &Session{
		Alarm:    s.Alarm.Clone(),
		OpenedAt: s.OpenedAt,
	}
}
