// Package audio resolves the sound of a ringing alarm and drives playback.
//
// The Coordinator owns the shared output: at most one source plays at a time,
// every start is tagged with a generation, and resolutions that complete after
// being superseded are discarded and release the temporary files they made.
// Players are pluggable: MPV spawns mpv and controls it over its IPC socket,
// Silent only logs.
package audio
