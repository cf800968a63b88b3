// Package notify is the user-facing notification surface: components report
// transient messages with a severity, the Feed logs them and keeps the most
// recent ones for clients to read.
package notify
