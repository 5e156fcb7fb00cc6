package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jurislink/jurislink-client/internal/httpapi/handlers"
	"github.com/jurislink/jurislink-client/internal/httpapi/middleware"
)

// NewRouter wires the session-sync API: the four /sessions endpoints the
// client's RemoteClient consumes, behind bearer auth.
func NewRouter(jwtSecret string, backend handlers.SessionBackend, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID())

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"code": 40400, "message": "route not found", "data": nil})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"code": 40500, "message": "method not allowed", "data": nil})
	})

	h := handlers.New(backend, log)

	r.GET("/ping", h.Ping)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(jwtSecret))
	authGroup.GET("/sessions", h.ListSessions)
	authGroup.GET("/sessions/:id", h.GetSession)
	authGroup.POST("/sessions", h.PutSession)
	authGroup.DELETE("/sessions/:id", h.DeleteSession)

	return r
}
