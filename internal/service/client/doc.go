// Package client holds the glowctl command logic.
//
// It resolves the daemon address from the settings file, applies command-line
// edits to alarms and renders daemon replies for the terminal.
package client
