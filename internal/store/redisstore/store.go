// Package redisstore persists sessions for the dev-local session service.
// Redis keeps the service stateless across restarts and is cheap to run
// next to it in development.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/jurislink/jurislink-client/internal/session"
)

const keyPrefix = "jurislink"

type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func indexKey(userID string) string {
	return fmt.Sprintf("%s:index:%s", keyPrefix, userID)
}

func sessionKey(userID, id string) string {
	return fmt.Sprintf("%s:session:%s:%s", keyPrefix, userID, id)
}

// ListSessions returns the user's index entries, most recent first.
func (s *Store) ListSessions(ctx context.Context, userID string) ([]session.IndexEntry, error) {
	fields, err := s.rdb.HGetAll(ctx, indexKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]session.IndexEntry, 0, len(fields))
	for id, raw := range fields {
		var e session.IndexEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("decode index entry %s: %w", id, err)
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	return entries, nil
}

func (s *Store) GetSession(ctx context.Context, userID, id string) (*session.Session, error) {
	raw, err := s.rdb.Get(ctx, sessionKey(userID, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, session.ErrNotFound
		}
		return nil, err
	}
	var sess session.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &sess, nil
}

// PutSession upserts the session and its index entry. Conflicting writes
// from two devices resolve last-writer-wins by entry timestamp: a stale
// write is acknowledged but ignored.
func (s *Store) PutSession(ctx context.Context, userID string, sess *session.Session, entry session.IndexEntry) error {
	if raw, err := s.rdb.HGet(ctx, indexKey(userID), sess.ID).Result(); err == nil {
		var existing session.IndexEntry
		if json.Unmarshal([]byte(raw), &existing) == nil &&
			existing.Timestamp.After(entry.Timestamp) {
			return nil
		}
	}

	blob, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	entryRaw, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, sessionKey(userID, sess.ID), blob, 0)
	pipe.HSet(ctx, indexKey(userID), sess.ID, entryRaw)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Store) DeleteSession(ctx context.Context, userID, id string) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, sessionKey(userID, id))
	pipe.HDel(ctx, indexKey(userID), id)
	_, err := pipe.Exec(ctx)
	return err
}
