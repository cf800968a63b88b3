// Package server runs the glow-server daemon.
//
// It loads the settings, opens the alarm file and the blob store, wires the
// scheduler, audio coordinator and quote service together, and serves them
// over gRPC until the context is canceled. The metrics listener and the
// settings watcher run alongside when enabled.
package server
