// Package autotitle derives session display titles from conversation
// content. Derivation is pure and deterministic; the Store decides whether
// a derived title may be applied (user renames always win).
package autotitle

import (
	"strings"

	"github.com/jurislink/jurislink-client/internal/session"
)

const (
	// MaxTitleLen is the hard cap, in runes, before the ellipsis.
	MaxTitleLen = 25

	// maxMessageTitleLen caps titles drawn from the first user message.
	maxMessageTitleLen = 30

	// minTitleLen filters out fragments too short to identify a session.
	minTitleLen = 3
)

// issueKeys are fact keys that name the matter, checked in order.
var issueKeys = []string{
	"Legal_Issue",
	"legal_issue",
	"Issue",
	"issue",
	"Case_Type",
	"case_type",
	"Case_Summary",
	"case_summary",
	"Summary",
	"summary",
}

var greetings = []string{
	"hello",
	"hi",
	"hey",
	"greetings",
	"good morning",
	"good evening",
}

// Input is everything the deriver may look at.
type Input struct {
	// ShortTitle is the explicit title suggestion from the reasoning
	// service, if any.
	ShortTitle string
	Facts      map[string]string
	Messages   []session.Message
}

// Derive picks a title by priority: service suggestion, issue-like fact,
// first user message, then the default. Calling it twice on identical
// input yields an identical title.
func Derive(in Input) string {
	if t := strings.TrimSpace(in.ShortTitle); longEnough(t) {
		return truncate(t)
	}

	for _, key := range issueKeys {
		v := strings.TrimSpace(in.Facts[key])
		if !longEnough(v) {
			continue
		}
		if j := strings.TrimSpace(in.Facts["Jurisdiction"]); j != "" {
			v += " - " + j
		}
		return truncate(v)
	}

	if t := firstUserMessageTitle(in.Messages); t != "" {
		return truncate(t)
	}

	return session.DefaultTitle
}

func firstUserMessageTitle(msgs []session.Message) string {
	for _, m := range msgs {
		if m.Role != session.RoleUser {
			continue
		}
		text := strings.TrimSpace(m.Content)
		if !longEnough(text) || isGreeting(text) {
			return ""
		}
		runes := []rune(text)
		if len(runes) > maxMessageTitleLen {
			text = strings.TrimSpace(string(runes[:maxMessageTitleLen]))
		}
		return text
	}
	return ""
}

func isGreeting(text string) bool {
	lower := strings.ToLower(text)
	for _, g := range greetings {
		if strings.HasPrefix(lower, g) {
			return true
		}
	}
	return false
}

func longEnough(s string) bool {
	return len([]rune(s)) > minTitleLen
}

func truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= MaxTitleLen {
		return s
	}
	return strings.TrimSpace(string(runes[:MaxTitleLen])) + "..."
}
