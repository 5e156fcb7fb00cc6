package session

import "github.com/oklog/ulid/v2"

// NewID mints a session id. ULIDs sort by creation time, which keeps
// server-side listings cheap and ids safe to embed in URLs.
func NewID() string {
	return ulid.Make().String()
}
