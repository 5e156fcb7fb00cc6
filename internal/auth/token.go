// Package auth carries the token-issuing contract between the client core
// and whatever identity provider the embedding app uses. The provider itself
// is an external collaborator; the core only needs a bearer token and a
// stable user id.
package auth

import (
	"context"
	"strings"
)

// DemoTokenPrefix marks tokens that bypass signature verification. Demo
// tokens carry identity out of band via a user_id query parameter.
const DemoTokenPrefix = "demo-token"

// Token is a snapshot of the caller's identity.
type Token struct {
	IDToken string
	UserID  string
}

// TokenSource yields the current token. Implementations may refresh under
// the hood; callers must not cache the result across requests.
type TokenSource interface {
	Token(ctx context.Context) (Token, error)
}

// StaticTokenSource returns the same token forever. Useful for tests and
// for demo mode.
type StaticTokenSource struct {
	tok Token
}

func NewStaticTokenSource(idToken, userID string) *StaticTokenSource {
	return &StaticTokenSource{tok: Token{IDToken: idToken, UserID: userID}}
}

// NewDemoTokenSource mints an unauthenticated demo identity for userID.
func NewDemoTokenSource(userID string) *StaticTokenSource {
	return NewStaticTokenSource(DemoTokenPrefix+"-"+userID, userID)
}

func (s *StaticTokenSource) Token(ctx context.Context) (Token, error) {
	_ = ctx
	return s.tok, nil
}

// IsDemoToken reports whether tok is a demo-mode bearer token.
func IsDemoToken(tok string) bool {
	return strings.HasPrefix(tok, DemoTokenPrefix)
}
