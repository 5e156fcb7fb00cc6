package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/jurislink/jurislink-client/internal/auth"
)

// RemoteAPI is the contract of the authoritative multi-device session
// service. Every method is fallible; the Store degrades to the local cache
// on any error.
type RemoteAPI interface {
	ListSessions(ctx context.Context) ([]IndexEntry, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	PutSession(ctx context.Context, s *Session, entry IndexEntry) error
	DeleteSession(ctx context.Context, id string) error
}

// RemoteClient talks to the session service over HTTP JSON.
type RemoteClient struct {
	BaseURL string
	Tokens  auth.TokenSource
	Client  *http.Client
}

func NewRemoteClient(baseURL string, tokens auth.TokenSource) *RemoteClient {
	return &RemoteClient{
		BaseURL: baseURL,
		Tokens:  tokens,
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type listSessionsResp struct {
	Sessions []IndexEntry `json:"sessions"`
}

type getSessionResp struct {
	Session *Session `json:"session"`
}

type putSessionReq struct {
	SessionID    string            `json:"session_id"`
	UserID       string            `json:"user_id"`
	Title        string            `json:"title"`
	IsRenamed    bool              `json:"is_renamed"`
	Timestamp    time.Time         `json:"timestamp"`
	Messages     []Message         `json:"messages"`
	Facts        map[string]string `json:"facts,omitempty"`
	Strategy     json.RawMessage   `json:"strategy,omitempty"`
	BackendState json.RawMessage   `json:"backend_state,omitempty"`
}

func (r *RemoteClient) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	tok, err := r.Tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("token: %w", err)
	}

	u, err := url.Parse(r.BaseURL + path)
	if err != nil {
		return nil, err
	}
	// Demo tokens are not verifiable; identity travels as a query param.
	if auth.IsDemoToken(tok.IDToken) {
		q := u.Query()
		q.Set("user_id", tok.UserID)
		u.RawQuery = q.Encode()
	}

	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+tok.IDToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (r *RemoteClient) do(req *http.Request, out any) error {
	resp, err := r.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("session service: status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (r *RemoteClient) ListSessions(ctx context.Context) ([]IndexEntry, error) {
	req, err := r.newRequest(ctx, http.MethodGet, "/sessions", nil)
	if err != nil {
		return nil, err
	}
	var decoded listSessionsResp
	if err := r.do(req, &decoded); err != nil {
		return nil, err
	}
	return decoded.Sessions, nil
}

func (r *RemoteClient) GetSession(ctx context.Context, id string) (*Session, error) {
	req, err := r.newRequest(ctx, http.MethodGet, "/sessions/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	var decoded getSessionResp
	if err := r.do(req, &decoded); err != nil {
		return nil, err
	}
	if decoded.Session == nil {
		return nil, ErrNotFound
	}
	return decoded.Session, nil
}

func (r *RemoteClient) PutSession(ctx context.Context, s *Session, entry IndexEntry) error {
	tok, err := r.Tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("token: %w", err)
	}
	body := putSessionReq{
		SessionID:    s.ID,
		UserID:       tok.UserID,
		Title:        entry.Title,
		IsRenamed:    entry.IsRenamed,
		Timestamp:    entry.Timestamp,
		Messages:     s.Messages,
		Facts:        s.Facts,
		Strategy:     s.Strategy,
		BackendState: s.BackendState,
	}
	req, err := r.newRequest(ctx, http.MethodPost, "/sessions", body)
	if err != nil {
		return err
	}
	return r.do(req, nil)
}

func (r *RemoteClient) DeleteSession(ctx context.Context, id string) error {
	req, err := r.newRequest(ctx, http.MethodDelete, "/sessions/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	err = r.do(req, nil)
	if errors.Is(err, ErrNotFound) {
		// Already gone on the server; treat as success.
		return nil
	}
	return err
}
