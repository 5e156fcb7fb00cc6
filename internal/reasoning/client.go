// Package reasoning is the client for the remote reasoning service. One
// call per exchange: the service receives the user text, the full message
// history and the previous opaque state, and answers with the complete
// response in one shot. There is no incremental delivery on the wire.
package reasoning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jurislink/jurislink-client/internal/session"
)

// DefaultTimeout bounds a single exchange. The full reasoning chain can be
// slow, so this is deliberately generous.
const DefaultTimeout = 120 * time.Second

const (
	StatusOK            = "ok"
	StatusError         = "error"
	StatusCriticalError = "critical_error"
)

// Request is the wire payload for one exchange.
type Request struct {
	Message       string            `json:"message"`
	History       []session.Message `json:"history"`
	PreviousState json.RawMessage   `json:"previous_state,omitempty"`
}

// DocSet carries generated documents, base64-encoded on the wire.
type DocSet struct {
	DemandLetter  string `json:"demand_letter,omitempty"`
	ReasoningMemo string `json:"reasoning_memo,omitempty"`
}

// Response is the service's answer. Facts, Strategy and FinalState are
// full replacements when present; absent fields leave prior values alone.
type Response struct {
	Response    string            `json:"response"`
	ShortTitle  string            `json:"short_title,omitempty"`
	Facts       map[string]string `json:"facts,omitempty"`
	Strategy    json.RawMessage   `json:"strategy,omitempty"`
	FinalState  json.RawMessage   `json:"final_state,omitempty"`
	Docs        *DocSet           `json:"docs,omitempty"`
	Status      string            `json:"status,omitempty"`
	Error       string            `json:"error,omitempty"`
	ErrorSource string            `json:"error_source,omitempty"`
}

// Errored reports whether the service flagged this exchange as failed. The
// response text is still shown to the user; it usually explains the problem.
func (r *Response) Errored() bool {
	return r.Status == StatusError || r.Status == StatusCriticalError
}

// Client talks to the reasoning service.
type Client struct {
	BaseURL string
	Client  *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: timeout},
	}
}

// Exchange runs one request/response round trip. Cancelling ctx aborts the
// call; callers distinguish that outcome with errors.Is(err,
// context.Canceled).
func (c *Client) Exchange(ctx context.Context, r Request) (*Response, error) {
	if c.Client == nil {
		return nil, errors.New("reasoning: http client is nil")
	}

	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/chat", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			// Surface the cancellation, not the transport wrapper around it.
			return nil, ctx.Err()
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("reasoning: status %d", resp.StatusCode)
	}

	var decoded Response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	return &decoded, nil
}
