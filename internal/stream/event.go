// Package stream implements the recommendation delivery protocol: a
// server-sent event stream of progress, movie and terminal frames, the
// pipeline that produces it and the client that consumes it.
package stream

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/lucrnz/ai-movies-rec-app/internal/recommend"
	"github.com/lucrnz/ai-movies-rec-app/internal/validation"
)

// Type discriminates wire events.
type Type string

const (
	TypeProgress     Type = "progress"
	TypeMovie        Type = "movie"
	TypeDone         Type = "done"
	TypeError        Type = "error"
	TypeCaptchaError Type = "captcha-error"
)

// ErrInvalidEvent wraps every validation failure of a wire event.
var ErrInvalidEvent = errors.New("stream: invalid event")

// Event is one wire event. Which fields are set depends on Type: progress
// and the two error types carry Message, movie carries Data, done carries
// nothing.
type Event struct {
	Type    Type                     `json:"type"`
	Message string                   `json:"message,omitempty"`
	Data    *recommend.EnrichedMovie `json:"data,omitempty"`
}

func Progress(msg string) Event { return Event{Type: TypeProgress, Message: msg} }

func Movie(m recommend.EnrichedMovie) Event { return Event{Type: TypeMovie, Data: &m} }

func Done() Event { return Event{Type: TypeDone} }

// Error builds an error event. An empty message becomes "Unknown error".
func Error(msg string) Event {
	if msg == "" {
		msg = "Unknown error"
	}
	return Event{Type: TypeError, Message: msg}
}

func CaptchaError(msg string) Event { return Event{Type: TypeCaptchaError, Message: msg} }

// Terminal reports whether e ends a stream.
func (e Event) Terminal() bool {
	switch e.Type {
	case TypeDone, TypeError, TypeCaptchaError:
		return true
	}
	return false
}

// Validate checks that e is a well-formed member of the event union.
func (e Event) Validate() error {
	switch e.Type {
	case TypeProgress, TypeError, TypeCaptchaError:
		if e.Message == "" {
			return fmt.Errorf("%w: %s event without a message", ErrInvalidEvent, e.Type)
		}
		if e.Data != nil {
			return fmt.Errorf("%w: %s event with data", ErrInvalidEvent, e.Type)
		}
	case TypeMovie:
		if e.Data == nil {
			return fmt.Errorf("%w: movie event without data", ErrInvalidEvent)
		}
		if e.Message != "" {
			return fmt.Errorf("%w: movie event with a message", ErrInvalidEvent)
		}
		if err := validation.ValidateStruct(e.Data); err != nil {
			return fmt.Errorf("%w: movie: %v", ErrInvalidEvent, err)
		}
	case TypeDone:
		if e.Message != "" || e.Data != nil {
			return fmt.Errorf("%w: done event with a payload", ErrInvalidEvent)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}
	return nil
}

var dataPrefix = []byte("data: ")

// Encode validates e and renders it as one frame: "data: <json>\n\n".
func Encode(e Event) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("stream: encode %s event: %w", e.Type, err)
	}
	frame := make([]byte, 0, len(dataPrefix)+len(payload)+2)
	frame = append(frame, dataPrefix...)
	frame = append(frame, payload...)
	return append(frame, '\n', '\n'), nil
}

// ParseFrame is the inverse of Encode.
func ParseFrame(frame []byte) (Event, error) {
	line := bytes.TrimRight(frame, "\r\n")
	payload, ok := bytes.CutPrefix(line, dataPrefix)
	if !ok {
		return Event{}, fmt.Errorf("%w: frame does not start with %q", ErrInvalidEvent, dataPrefix)
	}
	return Decode(payload)
}

// Decode parses and validates the JSON payload of a frame. Unknown fields
// are rejected.
func Decode(payload []byte) (Event, error) {
	var e Event
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&e); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	return e, nil
}
