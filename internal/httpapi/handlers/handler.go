package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jurislink/jurislink-client/internal/httpapi/middleware"
	"github.com/jurislink/jurislink-client/internal/session"
)

// SessionBackend is the persistence contract of the session service.
// Implemented by redisstore.Store; tests use an in-memory fake.
type SessionBackend interface {
	ListSessions(ctx context.Context, userID string) ([]session.IndexEntry, error)
	GetSession(ctx context.Context, userID, id string) (*session.Session, error)
	PutSession(ctx context.Context, userID string, s *session.Session, entry session.IndexEntry) error
	DeleteSession(ctx context.Context, userID, id string) error
}

type Handler struct {
	Backend SessionBackend
	Log     *zap.Logger
}

func New(backend SessionBackend, log *zap.Logger) *Handler {
	return &Handler{Backend: backend, Log: log}
}

func fail(c *gin.Context, httpStatus int, code int, msg string) {
	c.JSON(httpStatus, gin.H{
		"code":    code,
		"message": msg,
		"data":    nil,
	})
}

func userIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
