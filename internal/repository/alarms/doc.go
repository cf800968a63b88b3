// Package alarms implements persistence for the ordered alarm list.
//
// The FileRepository stores and loads the list as JSON on disk, replacing the
// file atomically, and exposes a Repository interface that the scheduler
// depends on.
package alarms
