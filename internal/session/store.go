package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Store merges the durable local cache with the optional remote session
// service behind one contract. Reads prefer the remote copy and fall back
// to the cache on any failure; writes hit the cache synchronously and reach
// the remote through the outbox. With a nil remote the store runs
// local-only (unauthenticated mode).
type Store struct {
	cache  *Cache
	remote RemoteAPI
	outbox *Outbox
	log    *zap.Logger
}

func NewStore(cache *Cache, remote RemoteAPI, outbox *Outbox, log *zap.Logger) *Store {
	return &Store{cache: cache, remote: remote, outbox: outbox, log: log}
}

// List returns the session index, most recently saved first. A successful
// remote listing is authoritative and overwrites the cached index.
func (st *Store) List(ctx context.Context) ([]IndexEntry, error) {
	if st.remote != nil {
		entries, err := st.remote.ListSessions(ctx)
		if err == nil {
			if err := st.cache.ReplaceIndex(entries); err != nil {
				st.log.Warn("cache index overwrite failed", zap.Error(err))
			}
			return entries, nil
		}
		st.log.Warn("remote session listing failed, using cache", zap.Error(err))
	}
	return st.cache.Index()
}

// Load fetches the full session, remote first. ErrNotFound means neither
// store has the id.
func (st *Store) Load(ctx context.Context, id string) (*Session, error) {
	if st.remote != nil {
		s, err := st.remote.GetSession(ctx, id)
		if err == nil {
			// Keep the local copy warm for offline fallback.
			entry := NewIndexEntry(s.ID, s.Title, s.IsRenamed, s.Timestamp)
			if err := st.cache.Save(s, entry); err != nil {
				st.log.Warn("cache refresh failed", zap.String("session_id", id), zap.Error(err))
			}
			return s, nil
		}
		if !errors.Is(err, ErrNotFound) {
			st.log.Warn("remote session load failed, using cache",
				zap.String("session_id", id), zap.Error(err))
		}
	}
	return st.cache.Load(id)
}

// Save persists the session locally and schedules the remote upsert. The
// caller hands over ownership of s. Title handling: once a session was
// explicitly renamed, a non-rename save never changes its title again.
// Returns the updated index.
func (st *Store) Save(ctx context.Context, s *Session, title string, isRenamed bool) ([]IndexEntry, error) {
	_ = ctx // local writes are synchronous; the remote leg runs in the outbox

	now := time.Now()
	entry := NewIndexEntry(s.ID, title, isRenamed, now)

	if existing, err := st.cache.Entry(s.ID); err == nil {
		entry.IsRenamed = isRenamed || existing.IsRenamed
		if existing.IsRenamed && !isRenamed {
			entry.Title = existing.Title
		}
	}

	s.Title = entry.Title
	s.IsRenamed = entry.IsRenamed
	s.Timestamp = now

	if err := st.cache.Save(s, entry); err != nil {
		return nil, err
	}
	if st.outbox != nil {
		st.outbox.EnqueueSave(s, entry)
	}
	return st.cache.Index()
}

// Delete removes the session from the cache and schedules the remote
// delete. Returns the updated index.
func (st *Store) Delete(ctx context.Context, id string) ([]IndexEntry, error) {
	_ = ctx
	if err := st.cache.Delete(id); err != nil {
		return nil, err
	}
	if st.outbox != nil {
		st.outbox.EnqueueDelete(id)
	}
	return st.cache.Index()
}

// Rename sets a user-chosen title. The rename is sticky: auto-titles never
// overwrite it afterwards.
func (st *Store) Rename(ctx context.Context, id, newTitle string) ([]IndexEntry, error) {
	_ = ctx
	if err := st.cache.Rename(id, newTitle); err != nil {
		return nil, err
	}
	if st.outbox != nil {
		s, err := st.cache.Load(id)
		if err == nil {
			if entry, err := st.cache.Entry(id); err == nil {
				st.outbox.EnqueueSave(s, entry)
			}
		}
	}
	return st.cache.Index()
}

// Clear wipes every session locally and schedules remote deletes for each.
func (st *Store) Clear(ctx context.Context) error {
	_ = ctx
	entries, err := st.cache.Index()
	if err != nil {
		return err
	}
	if err := st.cache.Clear(); err != nil {
		return err
	}
	if st.outbox != nil {
		for _, e := range entries {
			st.outbox.EnqueueDelete(e.ID)
		}
	}
	return nil
}
