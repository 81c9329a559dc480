package weatheralert

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/goccy/go-json"
)

// DefaultRetention is how long a sent message stays in the cache.
const DefaultRetention = 24 * time.Hour

// Entry records one delivered message. It holds nothing that could identify
// the bot or chat, since the cache is committed.
type Entry struct {
	Key    string    `json:"key"`
	SentAt time.Time `json:"sent_at"`
}

// Cache is the persisted send history. Entries are kept sorted by SentAt so
// the file is stable between identical runs.
type Cache struct {
	Updated time.Time `json:"updated"`
	Sent    []Entry   `json:"sent"`
}

// Key is the dedup key of a message.
func Key(msg string) string {
	sum := sha256.Sum256([]byte(msg))
	return hex.EncodeToString(sum[:])
}

// LoadCache reads the cache at path. A missing file yields an empty cache.
func LoadCache(path string) (*Cache, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Cache{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache: %w", err)
	}
	var c Cache
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing cache %s: %w", path, err)
	}
	return &c, nil
}

// Seen reports whether key was already sent.
func (c *Cache) Seen(key string) bool {
	for _, e := range c.Sent {
		if e.Key == key {
			return true
		}
	}
	return false
}

// Record adds a delivered message.
func (c *Cache) Record(key string, at time.Time) {
	c.Sent = append(c.Sent, Entry{Key: key, SentAt: at.UTC()})
	sort.SliceStable(c.Sent, func(i, j int) bool { return c.Sent[i].SentAt.Before(c.Sent[j].SentAt) })
	c.Updated = at.UTC()
}

// Prune drops entries older than retention and returns how many were removed.
func (c *Cache) Prune(now time.Time, retention time.Duration) int {
	cutoff := now.Add(-retention)
	kept := c.Sent[:0]
	for _, e := range c.Sent {
		if e.SentAt.After(cutoff) {
			kept = append(kept, e)
		}
	}
	removed := len(c.Sent) - len(kept)
	c.Sent = kept
	return removed
}

// Save writes the cache atomically, creating parent directories as needed.
func (c *Cache) Save(path string) error {
	if c.Sent == nil {
		c.Sent = []Entry{}
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cache: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".cache-*.json.tmp")
	if err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	return nil
}
