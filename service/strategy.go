package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"kairos/backtest"
	"kairos/fetcher"
	"kairos/model"
	"kairos/store"
)

// StrategyInput the client-editable part of a strategy record
type StrategyInput struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	StockCode   string            `json:"stock_code"`
	StockName   string            `json:"stock_name"`
	Strategy    backtest.Strategy `json:"strategy"`
	IsActive    *bool             `json:"is_active"`
}

func (in StrategyInput) normalize() (StrategyInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.StockCode = strings.TrimSpace(in.StockCode)
	in.StockName = strings.TrimSpace(in.StockName)
	if in.Name == "" {
		return in, fmt.Errorf("%w: name is required", backtest.ErrConfiguration)
	}
	if err := fetcher.ValidateCode(in.StockCode); err != nil {
		return in, err
	}
	if err := in.Strategy.Validate(); err != nil {
		return in, err
	}
	if t, ok := in.Strategy.Type.Canonical(); ok {
		in.Strategy.Type = t
	}
	if in.StockName == "" {
		in.StockName, _ = fetcher.LookupName(in.StockCode)
	}
	return in, nil
}

type StrategyService struct {
	repo  store.StrategyRepository
	locks *StrategyLocks
	log   zerolog.Logger
	now   func() time.Time
	newID func() string
}

// NewStrategyService shares locks with the BacktestService that appends run history to
// the same records; nil gets a private set.
func NewStrategyService(repo store.StrategyRepository, locks *StrategyLocks, log zerolog.Logger) *StrategyService {
	if locks == nil {
		locks = NewStrategyLocks()
	}
	return &StrategyService{
		repo:  repo,
		locks: locks,
		log:   log.With().Str("component", "strategies").Logger(),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

func (s *StrategyService) Create(ctx context.Context, in StrategyInput) (*model.StrategyRecord, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	now := s.now()
	rec := &model.StrategyRecord{
		ID:          s.newID(),
		Name:        in.Name,
		Description: in.Description,
		StockCode:   in.StockCode,
		StockName:   in.StockName,
		Strategy:    in.Strategy,
		IsActive:    in.IsActive == nil || *in.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("save strategy: %w", err)
	}
	s.log.Info().Str("id", rec.ID).Str("type", string(rec.Strategy.Type)).Str("code", rec.StockCode).Msg("strategy created")
	return rec, nil
}

func (s *StrategyService) Get(ctx context.Context, id string) (*model.StrategyRecord, error) {
	return s.repo.Get(ctx, id)
}

func (s *StrategyService) List(ctx context.Context, activeOnly bool) ([]*model.StrategyRecord, error) {
	all, err := s.repo.List(ctx)
	if err != nil || !activeOnly {
		return all, err
	}
	out := all[:0]
	for _, r := range all {
		if r.IsActive {
			out = append(out, r)
		}
	}
	return out, nil
}

// Update replaces the editable fields; id, creation time and history are kept.
func (s *StrategyService) Update(ctx context.Context, id string, in StrategyInput) (*model.StrategyRecord, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(id)
	defer unlock()
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rec.Name = in.Name
	rec.Description = in.Description
	rec.StockCode = in.StockCode
	rec.StockName = in.StockName
	rec.Strategy = in.Strategy
	if in.IsActive != nil {
		rec.IsActive = *in.IsActive
	}
	rec.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("save strategy: %w", err)
	}
	return rec, nil
}

func (s *StrategyService) Delete(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("id", id).Msg("strategy deleted")
	return nil
}
