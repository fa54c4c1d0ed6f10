package store

import (
	"context"

	"kairos/model"
)

type MemoryStrategies struct {
	c *collection[model.StrategyRecord]
}

func NewMemoryStrategies() *MemoryStrategies {
	return &MemoryStrategies{c: newCollection[model.StrategyRecord]()}
}

func (m *MemoryStrategies) Get(_ context.Context, id string) (*model.StrategyRecord, error) {
	return m.c.get(id)
}

func (m *MemoryStrategies) Save(_ context.Context, s *model.StrategyRecord) error {
	if err := validID(s.ID); err != nil {
		return err
	}
	return m.c.put(s.ID, s)
}

func (m *MemoryStrategies) List(context.Context) ([]*model.StrategyRecord, error) {
	return m.c.filter(nil, strategyLess)
}

func (m *MemoryStrategies) Delete(_ context.Context, id string) error {
	return m.c.remove(id)
}

type MemoryResults struct {
	c *collection[model.BacktestResult]
}

func NewMemoryResults() *MemoryResults {
	return &MemoryResults{c: newCollection[model.BacktestResult]()}
}

func (m *MemoryResults) Get(_ context.Context, id string) (*model.BacktestResult, error) {
	return m.c.get(id)
}

func (m *MemoryResults) Save(_ context.Context, r *model.BacktestResult) error {
	if err := validID(r.ID); err != nil {
		return err
	}
	return m.c.put(r.ID, r)
}

func (m *MemoryResults) ListByStrategy(_ context.Context, strategyID string) ([]*model.BacktestResult, error) {
	return m.c.filter(func(r *model.BacktestResult) bool { return r.StrategyID == strategyID }, resultLess)
}
