package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
)

var (
	// ErrClosed is returned by Send after the terminal frame was written.
	ErrClosed = errors.New("stream: already terminated")
	// ErrDisconnected is returned by Send once the consumer has gone away.
	ErrDisconnected = errors.New("stream: consumer disconnected")
)

// FrameRecorder counts written frames. *telemetry.Metrics implements it.
type FrameRecorder interface {
	StreamFrame(eventType string)
}

type nopFrameRecorder struct{}

func (nopFrameRecorder) StreamFrame(string) {}

// Writer writes validated frames to an HTTP response. At most one terminal
// frame is written, and nothing is written after it or after the consumer
// disconnects. It is safe for concurrent use.
type Writer struct {
	ctx      context.Context
	w        http.ResponseWriter
	flusher  http.Flusher
	logger   *slog.Logger
	recorder FrameRecorder

	mu         sync.Mutex
	terminated bool
	gone       bool
	frames     int
}

// NewWriter prepares w for streaming. ctx must be the connection's own
// context (http.Request.Context), not a run deadline derived from it: once
// ctx is done the consumer is considered gone and nothing more is written.
func NewWriter(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, recorder FrameRecorder) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("stream: streaming not supported")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = nopFrameRecorder{}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	return &Writer{ctx: ctx, w: w, flusher: flusher, logger: logger, recorder: recorder}, nil
}

// Send writes one frame. A frame that fails validation is not written; the
// stream is ended with an error frame instead and the validation error is
// returned.
func (s *Writer) Send(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.terminated:
		return ErrClosed
	case s.gone:
		return ErrDisconnected
	case s.ctx.Err() != nil:
		s.gone = true
		return ErrDisconnected
	}

	frame, err := Encode(e)
	if err != nil {
		s.logger.Error("refusing malformed stream frame", "type", string(e.Type), "error", err)
		if werr := s.write(Error("Invalid event: " + err.Error())); werr != nil {
			return werr
		}
		return err
	}
	if err := s.writeFrame(e.Type, frame); err != nil {
		return err
	}
	if e.Terminal() {
		s.terminated = true
	}
	return nil
}

// write encodes and writes a frame known to be valid. It always terminates
// the stream.
func (s *Writer) write(e Event) error {
	frame, err := Encode(e)
	if err != nil {
		return err
	}
	s.terminated = true
	return s.writeFrame(e.Type, frame)
}

func (s *Writer) writeFrame(t Type, frame []byte) error {
	if _, err := s.w.Write(frame); err != nil {
		s.gone = true
		s.logger.Debug("stream write failed", "error", err)
		return fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	s.flusher.Flush()
	s.frames++
	s.recorder.StreamFrame(string(t))
	return nil
}

// Terminated reports whether a terminal frame has been written.
func (s *Writer) Terminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminated
}

// Frames returns the number of frames written.
func (s *Writer) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}
