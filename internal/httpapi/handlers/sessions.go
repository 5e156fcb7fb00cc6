package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jurislink/jurislink-client/internal/session"
)

// Response shapes here are the session-sync wire contract consumed by
// session.RemoteClient; they are not wrapped in the error envelope.

func (h *Handler) ListSessions(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	entries, err := h.Backend.ListSessions(c.Request.Context(), uid)
	if err != nil {
		h.Log.Error("list sessions failed", zap.String("user_id", uid), zap.Error(err))
		fail(c, http.StatusInternalServerError, 50001, "failed to list sessions")
		return
	}
	if entries == nil {
		entries = []session.IndexEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": entries})
}

func (h *Handler) GetSession(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	id := c.Param("id")
	s, err := h.Backend.GetSession(c.Request.Context(), uid, id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			fail(c, http.StatusNotFound, 40401, "session not found")
			return
		}
		h.Log.Error("get session failed",
			zap.String("user_id", uid), zap.String("session_id", id), zap.Error(err))
		fail(c, http.StatusInternalServerError, 50002, "failed to load session")
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": s})
}

type putSessionReq struct {
	SessionID    string            `json:"session_id" binding:"required"`
	UserID       string            `json:"user_id"`
	Title        string            `json:"title"`
	IsRenamed    bool              `json:"is_renamed"`
	Timestamp    time.Time         `json:"timestamp"`
	Messages     []session.Message `json:"messages"`
	Facts        map[string]string `json:"facts"`
	Strategy     json.RawMessage   `json:"strategy"`
	BackendState json.RawMessage   `json:"backend_state"`
}

func (h *Handler) PutSession(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req putSessionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	// Identity comes from auth, never from the body.

	ts := req.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	s := &session.Session{
		ID:           req.SessionID,
		Title:        req.Title,
		IsRenamed:    req.IsRenamed,
		Timestamp:    ts,
		Messages:     req.Messages,
		Facts:        req.Facts,
		Strategy:     req.Strategy,
		BackendState: req.BackendState,
	}
	entry := session.NewIndexEntry(req.SessionID, req.Title, req.IsRenamed, ts)

	if err := h.Backend.PutSession(c.Request.Context(), uid, s, entry); err != nil {
		h.Log.Error("put session failed",
			zap.String("user_id", uid), zap.String("session_id", req.SessionID), zap.Error(err))
		fail(c, http.StatusInternalServerError, 50003, "failed to save session")
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": req.SessionID})
}

func (h *Handler) DeleteSession(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	id := c.Param("id")
	if err := h.Backend.DeleteSession(c.Request.Context(), uid, id); err != nil {
		h.Log.Error("delete session failed",
			zap.String("user_id", uid), zap.String("session_id", id), zap.Error(err))
		fail(c, http.StatusInternalServerError, 50004, "failed to delete session")
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id})
}
