package stream

import (
	"fmt"

	"github.com/lucrnz/ai-movies-rec-app/internal/catalog"
	"github.com/lucrnz/ai-movies-rec-app/internal/events"
	"github.com/lucrnz/ai-movies-rec-app/internal/recommend"
)

// progressEmitter translates tool activity into progress frames. Finalize
// activity is not streamed; the answer is delivered as movie frames.
type progressEmitter struct {
	w *Writer
}

func (p *progressEmitter) Emit(ev *events.Event) {
	if msg := progressMessage(ev); msg != "" {
		// A failed send means the stream is over; the run notices through
		// its context or finishes unobserved.
		_ = p.w.Send(Progress(msg))
	}
}

func progressMessage(ev *events.Event) string {
	switch {
	case ev.Type == events.ToolCalled && ev.Tool == recommend.ToolConsult:
		return "Consulting an AI model for recommendations"
	case ev.Type == events.ToolResult && ev.Tool == recommend.ToolConsult:
		return "Considering recommendations from AI model"
	case ev.Type == events.ToolCalled && ev.Tool == recommend.ToolSearch:
		return fmt.Sprintf(`Searching for "%s"...`, searchQuery(ev))
	case ev.Type == events.ToolResult && ev.Tool == recommend.ToolSearch:
		return fmt.Sprintf(`Found %d results for "%s"`, resultCount(ev), searchQuery(ev))
	}
	return ""
}

func searchQuery(ev *events.Event) string {
	q, _ := ev.Params["query"].(string)
	return q
}

func resultCount(ev *events.Event) int {
	if ev.Result == nil {
		return 0
	}
	switch r := ev.Result.Results.(type) {
	case []catalog.Candidate:
		return len(r)
	case []any:
		return len(r)
	}
	return 0
}
