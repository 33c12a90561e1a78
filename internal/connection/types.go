package connection

import (
	"encoding/json"
	"errors"
	"time"
)

// Errors surfaced through State.Err.
var (
	ErrTransportOpen     = errors.New("transport open failed")
	ErrStreamUnsupported = errors.New("stream unsupported by environment")
	ErrStreamRead        = errors.New("stream read failed")
	ErrDecode            = errors.New("chunk decode failed")
)

// Phase is the connection phase carried by a State.
type Phase int

const (
	PhaseDisconnected Phase = iota
	PhaseConnecting
	PhaseConnected
)

func (p Phase) String() string {
	switch p {
	case PhaseDisconnected:
		return "disconnected"
	case PhaseConnecting:
		return "connecting"
	case PhaseConnected:
		return "connected"
	}
	return "unknown"
}

// State is a snapshot of a Manager. A new State is created on every change;
// published States are never modified.
type State struct {
	ClientID    string          // Reserved, not sent to the server
	Phase       Phase           // Disconnected, Connecting or Connected
	LastMessage json.RawMessage // Most recent message; nil until the first arrives
	Seq         uint64          // Number of messages decoded by the Manager
	Err         string          // Last error; cleared by the next connect or message

	// Reconnect disconnects the owning Manager and connects it again.
	Reconnect func() `json:"-"`
}

// Connected reports whether data is flowing on an open stream.
func (s *State) Connected() bool {
	return s.Phase == PhaseConnected
}

// HasError reports whether the State carries an error.
func (s *State) HasError() bool {
	return s.Err != ""
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	URL              string        // Stream URL; connect is a no-op for URLs shorter than 2 bytes
	Transport        Transport     // Opens the stream (nil = AutoTransport with default clients)
	Charset          string        // Overrides the response charset ("" = from response, then utf-8)
	ReadBufferSize   int           // Bytes requested per read
	OpenTimeout      time.Duration // Max time to open the stream (0 = no limit)
	ReassembleFrames bool          // Carry unterminated frames across reads
	MaxPendingFrame  int           // Limit for a carried frame in bytes (0 = frame.DefaultMaxPending)
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		ReadBufferSize:   32 * 1024,
		OpenTimeout:      30 * time.Second,
		ReassembleFrames: true,
	}
}
