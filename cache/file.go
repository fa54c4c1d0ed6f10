package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

type fileEntry struct {
	Version   int       `json:"version"`
	Key       string    `json:"key"`
	SavedAt   time.Time `json:"saved_at"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Value     []byte    `json:"value"`
}

// File keeps one JSON document per key under dir. Writes go through a temp file and a
// rename so readers never see a partial entry.
type File struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

func NewFile(dir string) (*File, error) {
	d := strings.TrimSpace(dir)
	if d == "" {
		return nil, fmt.Errorf("cache dir is empty")
	}
	if err := os.MkdirAll(d, 0o755); err != nil {
		return nil, err
	}
	return &File{dir: d, now: time.Now}, nil
}

func (f *File) path(key string) string {
	sum := sha1.Sum([]byte(key))
	return filepath.Join(f.dir, hex.EncodeToString(sum[:])+".json")
}

func (f *File) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, err := os.ReadFile(f.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var e fileEntry
	if err := json.Unmarshal(b, &e); err != nil {
		// corrupt entries read as a miss and get overwritten on the next Set
		return nil, false, nil
	}
	if e.Key != key {
		return nil, false, nil
	}
	if !e.ExpiresAt.IsZero() && !f.now().Before(e.ExpiresAt) {
		_ = os.Remove(f.path(key))
		return nil, false, nil
	}
	return e.Value, true, nil
}

func (f *File) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	e := fileEntry{Version: 1, Key: key, SavedAt: now, Value: val}
	if ttl > 0 {
		e.ExpiresAt = now.Add(ttl)
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, ".cache-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(b); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, f.path(key))
}
