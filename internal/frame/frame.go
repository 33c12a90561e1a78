package frame

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Marker introduces a data frame.
const Marker = "data: "

// Errors
var (
	ErrParse         = errors.New("invalid frame payload")
	ErrFrameTooLarge = errors.New("unterminated frame exceeds limit")
)

// Payloads returns the trimmed payload of every data frame in chunk, in order
// of appearance. A frame with no terminating newline runs to the end of chunk.
func Payloads(chunk string) []string {
	var payloads []string
	rest := chunk
	for {
		i := strings.Index(rest, Marker)
		if i < 0 {
			return payloads
		}
		rest = rest[i+len(Marker):]

		var payload string
		if end := strings.IndexByte(rest, '\n'); end >= 0 {
			payload, rest = rest[:end], rest[end+1:]
		} else {
			payload, rest = rest, ""
		}
		payloads = append(payloads, strings.TrimSpace(payload))
	}
}

// Decode parses every frame in chunk as JSON.
//
// The chunk is decoded as a unit: if any payload is not valid JSON no messages
// are returned and the error wraps ErrParse. A chunk without frames yields
// nil, nil.
func Decode(chunk string) ([]json.RawMessage, error) {
	payloads := Payloads(chunk)
	if len(payloads) == 0 {
		return nil, nil
	}

	msgs := make([]json.RawMessage, 0, len(payloads))
	for i, payload := range payloads {
		var msg json.RawMessage
		if err := json.Unmarshal([]byte(payload), &msg); err != nil {
			return nil, fmt.Errorf("%w: frame %d of %d: %v", ErrParse, i+1, len(payloads), err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
