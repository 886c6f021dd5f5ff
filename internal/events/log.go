package events

import (
	"log/slog"
)

// LogEmitter writes every event to a structured logger. Tool parameters are
// logged at debug level only since they contain user text.
type LogEmitter struct {
	Logger *slog.Logger
}

// Emit implements Emitter.
func (l LogEmitter) Emit(event *Event) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{"run_id", event.RunID}
	if event.Tool != "" {
		attrs = append(attrs, "tool", event.Tool)
	}
	if event.Result != nil {
		attrs = append(attrs, "success", event.Result.Success)
	}
	for k, v := range event.Data {
		attrs = append(attrs, k, v)
	}

	switch event.Type {
	case RunFailed:
		logger.Error(string(event.Type), attrs...)
	case ToolCalled:
		logger.Debug(string(event.Type), append(attrs, "params", event.Params)...)
	default:
		logger.Info(string(event.Type), attrs...)
	}
}
