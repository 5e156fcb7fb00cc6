package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jurislink/jurislink-client/internal/auth"
)

func TestRemoteClientDemoIdentity(t *testing.T) {
	var gotAuth, gotUserID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotUserID = r.URL.Query().Get("user_id")
		_ = json.NewEncoder(w).Encode(map[string]any{"sessions": []IndexEntry{}})
	}))
	defer srv.Close()

	rc := NewRemoteClient(srv.URL, auth.NewDemoTokenSource("alice"))
	if _, err := rc.ListSessions(context.Background()); err != nil {
		t.Fatalf("list: %v", err)
	}
	if gotAuth != "Bearer demo-token-alice" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotUserID != "alice" {
		t.Fatalf("demo identity not in query: %q", gotUserID)
	}
}

func TestRemoteClientGetSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sessions/01A" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"session": Session{ID: "01A", Title: "Deposit Dispute", Timestamp: time.Now()},
		})
	}))
	defer srv.Close()

	rc := NewRemoteClient(srv.URL, auth.NewDemoTokenSource("alice"))
	s, err := rc.GetSession(context.Background(), "01A")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if s.Title != "Deposit Dispute" {
		t.Fatalf("unexpected session: %+v", s)
	}
}

func TestRemoteClientNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	rc := NewRemoteClient(srv.URL, auth.NewDemoTokenSource("alice"))
	if _, err := rc.GetSession(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRemoteClientDeleteTolerates404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	rc := NewRemoteClient(srv.URL, auth.NewDemoTokenSource("alice"))
	if err := rc.DeleteSession(context.Background(), "gone"); err != nil {
		t.Fatalf("delete of missing session should succeed, got %v", err)
	}
}

func TestRemoteClientPutSessionBody(t *testing.T) {
	var decoded putSessionReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&decoded); err != nil {
			t.Errorf("decode: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"session_id": decoded.SessionID})
	}))
	defer srv.Close()

	rc := NewRemoteClient(srv.URL, auth.NewDemoTokenSource("alice"))
	s := testSession("01A", "ignored")
	entry := NewIndexEntry("01A", "Deposit Dispute", true, time.Now())
	if err := rc.PutSession(context.Background(), s, entry); err != nil {
		t.Fatalf("put: %v", err)
	}

	if decoded.SessionID != "01A" || decoded.UserID != "alice" {
		t.Fatalf("identity fields wrong: %+v", decoded)
	}
	if decoded.Title != "Deposit Dispute" || !decoded.IsRenamed {
		t.Fatalf("entry fields wrong: %+v", decoded)
	}
	if len(decoded.Messages) != 2 {
		t.Fatalf("messages not sent: %+v", decoded.Messages)
	}
}

func TestRemoteClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	rc := NewRemoteClient(srv.URL, auth.NewDemoTokenSource("alice"))
	if _, err := rc.ListSessions(context.Background()); err == nil {
		t.Fatal("expected error for 500")
	}
}
