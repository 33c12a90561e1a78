// Package connection implements the Stream Connection Manager.
//
// The Manager:
//   - Holds at most one open stream to a single server-sent-event URL
//   - Reads chunks in a goroutine and decodes them into JSON messages
//   - Publishes an immutable State to every subscriber on each change
//   - Disconnects when the last subscriber leaves
//   - Reconnects only when asked to; there is no automatic retry
package connection
