// Package config defines the settings shared by the daemon and the CLI and
// provides helpers to load, validate and save them in YAML format.
//
// Watcher follows the settings file and hands freshly validated settings to
// subscribers, so volume and log level change without a restart.
package config
