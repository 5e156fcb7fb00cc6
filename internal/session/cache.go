package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when neither store has the requested session.
var ErrNotFound = errors.New("session not found")

type indexRow struct {
	SessionID string    `gorm:"primaryKey;type:varchar(26)"`
	Title     string    `gorm:"type:varchar(128);not null"`
	IsRenamed bool      `gorm:"not null"`
	Timestamp time.Time `gorm:"index;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (indexRow) TableName() string { return "session_index" }

type blobRow struct {
	SessionID string `gorm:"primaryKey;type:varchar(26)"`
	Payload   []byte `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (blobRow) TableName() string { return "session_blobs" }

// Cache is the durable on-device session store. Reads and writes are
// synchronous; the index and the blob table are always written in one
// transaction so they cannot disagree.
type Cache struct {
	db *gorm.DB
}

// OpenCache opens (and migrates) the sqlite cache at path. Use
// "file::memory:?cache=shared" for tests.
func OpenCache(path string) (*Cache, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	if err := db.AutoMigrate(&indexRow{}, &blobRow{}); err != nil {
		return nil, fmt.Errorf("migrate cache: %w", err)
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Index returns all cached entries, most recently saved first.
func (c *Cache) Index() ([]IndexEntry, error) {
	var rows []indexRow
	if err := c.db.Order("timestamp DESC, created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]IndexEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, IndexEntry{
			ID:        r.SessionID,
			Title:     r.Title,
			Date:      r.Timestamp.Format("2006-01-02"),
			Timestamp: r.Timestamp,
			IsRenamed: r.IsRenamed,
		})
	}
	return entries, nil
}

// ReplaceIndex overwrites the cached index with entries. Used when a remote
// listing succeeds and becomes authoritative. Blobs are left untouched.
func (c *Cache) ReplaceIndex(entries []IndexEntry) error {
	return c.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&indexRow{}).Error; err != nil {
			return err
		}
		for _, e := range entries {
			row := indexRow{
				SessionID: e.ID,
				Title:     e.Title,
				IsRenamed: e.IsRenamed,
				Timestamp: e.Timestamp,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Load returns the full session blob for id, or ErrNotFound.
func (c *Cache) Load(id string) (*Session, error) {
	var row blobRow
	if err := c.db.First(&row, "session_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(row.Payload, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &s, nil
}

// Save upserts the blob and its index entry in one transaction.
func (c *Cache) Save(s *Session, entry IndexEntry) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	return c.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).
			Create(&blobRow{SessionID: s.ID, Payload: payload}).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).
			Create(&indexRow{
				SessionID: entry.ID,
				Title:     entry.Title,
				IsRenamed: entry.IsRenamed,
				Timestamp: entry.Timestamp,
			}).Error
	})
}

// Entry returns the cached index entry for id, or ErrNotFound.
func (c *Cache) Entry(id string) (IndexEntry, error) {
	var row indexRow
	if err := c.db.First(&row, "session_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return IndexEntry{}, ErrNotFound
		}
		return IndexEntry{}, err
	}
	return IndexEntry{
		ID:        row.SessionID,
		Title:     row.Title,
		Date:      row.Timestamp.Format("2006-01-02"),
		Timestamp: row.Timestamp,
		IsRenamed: row.IsRenamed,
	}, nil
}

// Rename sets the title on both index and blob and marks the session
// renamed. IsRenamed is monotonic: it is never cleared again.
func (c *Cache) Rename(id, title string) error {
	return c.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&indexRow{}).
			Where("session_id = ?", id).
			Updates(map[string]any{"title": title, "is_renamed": true})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		var row blobRow
		if err := tx.First(&row, "session_id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Index entry without a blob; nothing more to update.
				return nil
			}
			return err
		}
		var s Session
		if err := json.Unmarshal(row.Payload, &s); err != nil {
			return fmt.Errorf("decode session %s: %w", id, err)
		}
		s.Title = title
		s.IsRenamed = true
		payload, err := json.Marshal(&s)
		if err != nil {
			return err
		}
		return tx.Model(&blobRow{}).
			Where("session_id = ?", id).
			Update("payload", payload).Error
	})
}

// Delete removes the blob and index entry. Deleting an unknown id is a no-op.
func (c *Cache) Delete(id string) error {
	return c.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&blobRow{}, "session_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&indexRow{}, "session_id = ?", id).Error
	})
}

// Clear drops every session and the whole index.
func (c *Cache) Clear() error {
	return c.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&blobRow{}).Error; err != nil {
			return err
		}
		return tx.Where("1 = 1").Delete(&indexRow{}).Error
	})
}
