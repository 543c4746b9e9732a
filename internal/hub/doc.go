// Package hub implements the broadcast hub that owns the shared canvas.
//
// The hub is a single goroutine (Run) that owns the stroke history and the
// client registry and applies one request at a time from a bounded queue:
//   - NewClient: replays the history to the client's channel, then registers it
//   - NewLine: appends a stroke and fans it out to every registered client
//   - Clear: empties the history and fans the clear out
//   - DeleteClient: drops a client from the registry
//
// Each client has its own outbound channel. The hub is the only sender on it
// and closes it when the client is removed or refused: explicitly, after a failed
// replay or duplicate registration, after a failed fan-out send, or on shutdown.
// Sessions read the closed channel as "the hub dropped me".
//
// Because requests are applied sequentially, every client observes NewLine and
// Clear notifications in the order the hub processed them.
package hub
