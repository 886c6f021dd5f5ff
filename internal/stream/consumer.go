package stream

import (
	"github.com/lucrnz/ai-movies-rec-app/internal/recommend"
)

// Consumer-side messages.
const (
	MsgInvalidData     = "Invalid data received from server"
	MsgConnectionError = "Connection error occurred"
)

// State is what a consumer shows while a stream is in flight.
type State struct {
	Query   string                    `json:"query"`
	Results []recommend.EnrichedMovie `json:"results"`
	Pending bool                      `json:"pending"`
	// Progress is the latest status line. Errors are shown here too,
	// prefixed with "Error: ".
	Progress string `json:"progress"`
	// Err is the error that ended the stream, if any.
	Err string `json:"error,omitempty"`
}

// Consumer folds a stream's frames into a State. After a terminal frame, a
// malformed frame or a lost connection it ignores further input.
type Consumer struct {
	state    State
	finished bool
}

// NewConsumer starts consuming the stream for query.
func NewConsumer(query string) *Consumer {
	return &Consumer{state: State{Query: query, Pending: true}}
}

// HandlePayload applies the JSON payload of one frame. It reports whether
// the stream is finished.
func (c *Consumer) HandlePayload(payload []byte) bool {
	if c.finished {
		return true
	}
	e, err := Decode(payload)
	if err != nil {
		c.fail("Error: "+MsgInvalidData, MsgInvalidData)
		return true
	}
	return c.Handle(e)
}

// Handle applies one decoded event. It reports whether the stream is
// finished.
func (c *Consumer) Handle(e Event) bool {
	if c.finished {
		return true
	}
	switch e.Type {
	case TypeProgress:
		c.state.Progress = e.Message
	case TypeMovie:
		c.state.Results = append(c.state.Results, *e.Data)
	case TypeDone:
		c.state.Pending = false
		c.state.Progress = ""
		c.finished = true
	case TypeError, TypeCaptchaError:
		c.fail("Error: "+e.Message, e.Message)
	}
	return c.finished
}

// ConnectionLost ends a stream that stopped without a terminal frame. It is
// a no-op once the stream is finished.
func (c *Consumer) ConnectionLost() {
	if !c.finished {
		c.fail(MsgConnectionError, MsgConnectionError)
	}
}

func (c *Consumer) fail(progress, err string) {
	c.state.Pending = false
	c.state.Progress = progress
	c.state.Err = err
	c.finished = true
}

// Finished reports whether the stream has ended.
func (c *Consumer) Finished() bool { return c.finished }

// State returns a snapshot of the consumer's state.
func (c *Consumer) State() State {
	s := c.state
	s.Results = append([]recommend.EnrichedMovie(nil), c.state.Results...)
	return s
}
