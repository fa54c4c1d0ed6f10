package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"kairos/model"
)

const fileFormatVersion = 1

type envelope[T any] struct {
	Version int       `json:"version"`
	SavedAt time.Time `json:"saved_at"`
	Items   []*T      `json:"items"`
}

// jsonFile mirrors a collection into a single JSON document. Every mutation rewrites
// the document through a temp file and a rename.
type jsonFile[T any] struct {
	path string
	c    *collection[T]
	less func(a, b *T) bool
	wmu  sync.Mutex
	now  func() time.Time
}

func openJSONFile[T any](path string, idOf func(*T) string, less func(a, b *T) bool) (*jsonFile[T], error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("store path is empty")
	}
	f := &jsonFile[T]{path: p, c: newCollection[T](), less: less, now: time.Now}

	b, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return f, nil
		}
		return nil, err
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return f, nil
	}

	var items []*T
	var env envelope[T]
	if err := json.Unmarshal(b, &env); err == nil && env.Version > 0 {
		if env.Version > fileFormatVersion {
			return nil, fmt.Errorf("%s: unsupported format version %d", p, env.Version)
		}
		items = env.Items
	} else if err := json.Unmarshal(b, &items); err != nil {
		// plain arrays predate the envelope
		return nil, fmt.Errorf("%s: %w", p, err)
	}

	for _, it := range items {
		if it == nil || strings.TrimSpace(idOf(it)) == "" {
			continue
		}
		f.c.items[idOf(it)] = it
	}
	return f, nil
}

func (f *jsonFile[T]) persist() error {
	f.wmu.Lock()
	defer f.wmu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	payload := envelope[T]{
		Version: fileFormatVersion,
		SavedAt: f.now(),
		Items:   f.c.snapshot(f.less),
	}
	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".kairos-store-*.json")
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
	return os.Rename(tmpName, f.path)
}

type FileStrategies struct {
	f *jsonFile[model.StrategyRecord]
}

// OpenFileStrategies loads strategies.json from dir, creating it lazily on first save.
func OpenFileStrategies(dir string) (*FileStrategies, error) {
	f, err := openJSONFile(filepath.Join(dir, "strategies.json"),
		func(s *model.StrategyRecord) string { return s.ID }, strategyLess)
	if err != nil {
		return nil, err
	}
	return &FileStrategies{f: f}, nil
}

func (s *FileStrategies) Get(_ context.Context, id string) (*model.StrategyRecord, error) {
	return s.f.c.get(id)
}

func (s *FileStrategies) Save(_ context.Context, r *model.StrategyRecord) error {
	if err := validID(r.ID); err != nil {
		return err
	}
	if err := s.f.c.put(r.ID, r); err != nil {
		return err
	}
	return s.f.persist()
}

func (s *FileStrategies) List(context.Context) ([]*model.StrategyRecord, error) {
	return s.f.c.filter(nil, strategyLess)
}

func (s *FileStrategies) Delete(_ context.Context, id string) error {
	if err := s.f.c.remove(id); err != nil {
		return err
	}
	return s.f.persist()
}

type FileResults struct {
	f *jsonFile[model.BacktestResult]
}

// OpenFileResults loads backtests.json from dir.
func OpenFileResults(dir string) (*FileResults, error) {
	f, err := openJSONFile(filepath.Join(dir, "backtests.json"),
		func(r *model.BacktestResult) string { return r.ID }, resultLess)
	if err != nil {
		return nil, err
	}
	return &FileResults{f: f}, nil
}

func (s *FileResults) Get(_ context.Context, id string) (*model.BacktestResult, error) {
	return s.f.c.get(id)
}

func (s *FileResults) Save(_ context.Context, r *model.BacktestResult) error {
	if err := validID(r.ID); err != nil {
		return err
	}
	if err := s.f.c.put(r.ID, r); err != nil {
		return err
	}
	return s.f.persist()
}

func (s *FileResults) ListByStrategy(_ context.Context, strategyID string) ([]*model.BacktestResult, error) {
	return s.f.c.filter(func(r *model.BacktestResult) bool { return r.StrategyID == strategyID }, resultLess)
}
