package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jurislink/jurislink-client/internal/auth"
)

const (
	// UserIDKey is where AuthRequired stores the caller identity.
	UserIDKey = "user_id"

	// RequestIDHeader carries the per-request correlation id.
	RequestIDHeader = "X-Request-ID"
)

func abort(c *gin.Context, httpStatus int, code int, msg string) {
	c.AbortWithStatusJSON(httpStatus, gin.H{
		"code":    code,
		"message": msg,
		"data":    nil,
	})
}

// RequestID assigns a correlation id to every request unless the caller
// already set one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// Recovery turns panics into 500s instead of dropped connections.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("handler panic",
					zap.Any("panic", r),
					zap.String("path", c.Request.URL.Path),
				)
				abort(c, http.StatusInternalServerError, 50000, "internal error")
			}
		}()
		c.Next()
	}
}

// AuthRequired resolves the caller identity from the bearer token. Demo
// tokens skip signature verification and carry identity via the user_id
// query parameter; everything else must be a valid signed token.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tok, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tok == "" {
			abort(c, http.StatusUnauthorized, 40101, "unauthorized")
			return
		}

		if auth.IsDemoToken(tok) {
			uid := c.Query("user_id")
			if uid == "" {
				abort(c, http.StatusUnauthorized, 40102, "user_id required in demo mode")
				return
			}
			c.Set(UserIDKey, uid)
			c.Next()
			return
		}

		uid, err := auth.ParseUserToken(secret, tok)
		if err != nil {
			abort(c, http.StatusUnauthorized, 40103, "invalid token")
			return
		}
		c.Set(UserIDKey, uid)
		c.Next()
	}
}
