// Package store persists strategies and backtest results behind repository interfaces.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"kairos/model"
)

var ErrNotFound = errors.New("not found")

type StrategyRepository interface {
	Get(ctx context.Context, id string) (*model.StrategyRecord, error)
	Save(ctx context.Context, s *model.StrategyRecord) error
	List(ctx context.Context) ([]*model.StrategyRecord, error)
	Delete(ctx context.Context, id string) error
}

type ResultRepository interface {
	Get(ctx context.Context, id string) (*model.BacktestResult, error)
	Save(ctx context.Context, r *model.BacktestResult) error
	ListByStrategy(ctx context.Context, strategyID string) ([]*model.BacktestResult, error)
}

// clone deep-copies v so callers never share state with the store.
func clone[T any](v *T) (*T, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := new(T)
	if err := json.Unmarshal(b, out); err != nil {
		return nil, err
	}
	return out, nil
}

// collection is an id-keyed set of records guarded by a mutex.
type collection[T any] struct {
	mu    sync.RWMutex
	items map[string]*T
}

func newCollection[T any]() *collection[T] {
	return &collection[T]{items: make(map[string]*T)}
}

func (c *collection[T]) get(id string) (*T, error) {
	c.mu.RLock()
	v, ok := c.items[id]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return clone(v)
}

func (c *collection[T]) put(id string, v *T) error {
	cp, err := clone(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.items[id] = cp
	c.mu.Unlock()
	return nil
}

func (c *collection[T]) remove(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[id]; !ok {
		return ErrNotFound
	}
	delete(c.items, id)
	return nil
}

// filter returns copies of the matching records ordered by less.
func (c *collection[T]) filter(keep func(*T) bool, less func(a, b *T) bool) ([]*T, error) {
	c.mu.RLock()
	out := make([]*T, 0, len(c.items))
	for _, v := range c.items {
		if keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	for i, v := range out {
		cp, err := clone(v)
		if err != nil {
			return nil, err
		}
		out[i] = cp
	}
	return out, nil
}

func (c *collection[T]) snapshot(less func(a, b *T) bool) []*T {
	c.mu.RLock()
	out := make([]*T, 0, len(c.items))
	for _, v := range c.items {
		out = append(out, v)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func strategyLess(a, b *model.StrategyRecord) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func resultLess(a, b *model.BacktestResult) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func validID(id string) error {
	if id == "" {
		return errors.New("record id is empty")
	}
	return nil
}
