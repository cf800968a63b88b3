package notify

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/oshokin/morning-glow/internal/logger"
)

// Severity classifies a notification.
type Severity string

const (
	// SeveritySuccess confirms a user action.
	SeveritySuccess Severity = "success"
	// SeverityInfo is neutral information.
	SeverityInfo Severity = "info"
	// SeverityWarning asks for attention, e.g. audio could not start.
	SeverityWarning Severity = "warning"
	// SeverityError reports a failure, e.g. storage is full.
	SeverityError Severity = "error"
)

// DefaultCapacity is how many notifications a Feed retains.
const DefaultCapacity = 50

// Notification is a single user-visible message.
type Notification struct {
	Severity Severity
	Message  string
	At       time.Time
}

// Notifier reports user-visible messages. Implementations must not block.
type Notifier interface {
	Notify(ctx context.Context, severity Severity, message string)
}

// Feed logs notifications and retains the latest ones.
type Feed struct {
	capacity int
	now      func() time.Time

	mu    sync.Mutex
	items []Notification
}

// NewFeed creates a feed retaining capacity items (DefaultCapacity when not positive).
func NewFeed(capacity int) *Feed {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Feed{
		capacity: capacity,
		now:      time.Now,
		items:    make([]Notification, 0, capacity),
	}
}

// Notify records the message and writes it to the log at a matching level.
func (f *Feed) Notify(ctx context.Context, severity Severity, message string) {
	f.mu.Lock()
	if len(f.items) == f.capacity {
		f.items = slices.Delete(f.items, 0, 1)
	}

	f.items = append(f.items, Notification{
		Severity: severity,
		Message:  message,
		At:       f.now(),
	})
	f.mu.Unlock()

	switch severity {
	case SeverityError:
		logger.ErrorKV(ctx, message, "notification", severity)
	case SeverityWarning:
		logger.WarnKV(ctx, message, "notification", severity)
	default:
		logger.InfoKV(ctx, message, "notification", severity)
	}
}

// Recent returns retained notifications, oldest first.
func (f *Feed) Recent() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	return slices.Clone(f.items)
}

// Discard is a Notifier that drops everything.
type Discard struct{}

// Notify implements Notifier.
func (Discard) Notify(context.Context, Severity, string) {}
