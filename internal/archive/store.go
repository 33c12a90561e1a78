package archive

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrClosed is returned by a Store after Close.
var ErrClosed = errors.New("archive store closed")

// Record is one archived message.
type Record struct {
	ID         uuid.UUID
	ClientID   string // Manager that decoded the message
	URL        string
	Seq        uint64 // Message number within the Manager
	ReceivedAt time.Time
	Payload    json.RawMessage
}

// Store persists records.
type Store interface {
	// Append writes records atomically.
	Append(ctx context.Context, records []Record) error
	Close() error
}
