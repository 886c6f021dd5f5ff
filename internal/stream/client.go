package stream

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// maxFrameBytes bounds a single line of the event stream.
const maxFrameBytes = 1 << 20

// Client consumes the event stream of a remote server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the server at baseURL. A nil httpClient
// uses http.DefaultClient; it should not set a timeout shorter than a run.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// Recommend streams recommendations for query. onUpdate, if set, is called
// with a snapshot after every frame. The returned state is final; a stream
// that ends without a terminal frame yields a state carrying
// MsgConnectionError and a nil error. The error is set only when the request
// could not be made.
func (c *Client) Recommend(ctx context.Context, query, token string, onUpdate func(State)) (State, error) {
	q := url.Values{}
	q.Set("query", query)
	if token != "" {
		q.Set("turnstileToken", token)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/recommend?"+q.Encode(), nil)
	if err != nil {
		return State{}, fmt.Errorf("stream: build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	consumer := NewConsumer(query)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		consumer.ConnectionLost()
		return consumer.State(), fmt.Errorf("stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		consumer.ConnectionLost()
		return consumer.State(), fmt.Errorf("stream: unexpected status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), maxFrameBytes)
	for scanner.Scan() {
		payload, ok := bytes.CutPrefix(scanner.Bytes(), dataPrefix)
		if !ok {
			// Blank separators, comments and other fields carry no event.
			continue
		}
		done := consumer.HandlePayload(payload)
		if onUpdate != nil {
			onUpdate(consumer.State())
		}
		if done {
			return consumer.State(), nil
		}
	}

	consumer.ConnectionLost()
	if onUpdate != nil {
		onUpdate(consumer.State())
	}
	return consumer.State(), nil
}
