package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"kairos/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS strategies (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	stock_code  TEXT NOT NULL,
	is_active   BOOLEAN NOT NULL DEFAULT TRUE,
	body        JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS backtest_results (
	id           TEXT PRIMARY KEY,
	strategy_id  TEXT NOT NULL,
	stock_code   TEXT NOT NULL,
	body         JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS backtest_results_strategy_idx ON backtest_results (strategy_id, created_at);
`

// OpenPostgres connects with lib/pq and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, errors.New("postgres DSN is required")
	}
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate creates the tables when missing.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// PostgresStrategies keeps the full record as JSONB next to a few indexed columns.
type PostgresStrategies struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewPostgresStrategies(db *sqlx.DB, timeout time.Duration) *PostgresStrategies {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PostgresStrategies{db: db, timeout: timeout}
}

func (r *PostgresStrategies) Get(ctx context.Context, id string) (*model.StrategyRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var body []byte
	err := r.db.GetContext(ctx, &body, `SELECT body FROM strategies WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get strategy %s: %w", id, err)
	}
	var s model.StrategyRecord
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("decode strategy %s: %w", id, err)
	}
	return &s, nil
}

func (r *PostgresStrategies) Save(ctx context.Context, s *model.StrategyRecord) error {
	if err := validID(s.ID); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	body, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode strategy: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO strategies (id, name, stock_code, is_active, body, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			stock_code = EXCLUDED.stock_code,
			is_active = EXCLUDED.is_active,
			body = EXCLUDED.body,
			updated_at = EXCLUDED.updated_at`,
		s.ID, s.Name, s.StockCode, s.IsActive, body, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save strategy %s: %w", s.ID, err)
	}
	return nil
}

func (r *PostgresStrategies) List(ctx context.Context) ([]*model.StrategyRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var bodies [][]byte
	if err := r.db.SelectContext(ctx, &bodies, `SELECT body FROM strategies ORDER BY created_at, id`); err != nil {
		return nil, fmt.Errorf("list strategies: %w", err)
	}
	out := make([]*model.StrategyRecord, 0, len(bodies))
	for _, b := range bodies {
		var s model.StrategyRecord
		if err := json.Unmarshal(b, &s); err != nil {
			return nil, fmt.Errorf("decode strategy: %w", err)
		}
		out = append(out, &s)
	}
	return out, nil
}

func (r *PostgresStrategies) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM strategies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete strategy %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type PostgresResults struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewPostgresResults(db *sqlx.DB, timeout time.Duration) *PostgresResults {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PostgresResults{db: db, timeout: timeout}
}

func (r *PostgresResults) Get(ctx context.Context, id string) (*model.BacktestResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var body []byte
	err := r.db.GetContext(ctx, &body, `SELECT body FROM backtest_results WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get result %s: %w", id, err)
	}
	var res model.BacktestResult
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode result %s: %w", id, err)
	}
	return &res, nil
}

func (r *PostgresResults) Save(ctx context.Context, res *model.BacktestResult) error {
	if err := validID(res.ID); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	body, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO backtest_results (id, strategy_id, stock_code, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET body = EXCLUDED.body`,
		res.ID, res.StrategyID, res.StockCode, body, res.CreatedAt)
	if err != nil {
		return fmt.Errorf("save result %s: %w", res.ID, err)
	}
	return nil
}

func (r *PostgresResults) ListByStrategy(ctx context.Context, strategyID string) ([]*model.BacktestResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var bodies [][]byte
	err := r.db.SelectContext(ctx, &bodies,
		`SELECT body FROM backtest_results WHERE strategy_id = $1 ORDER BY created_at, id`, strategyID)
	if err != nil {
		return nil, fmt.Errorf("list results for %s: %w", strategyID, err)
	}
	out := make([]*model.BacktestResult, 0, len(bodies))
	for _, b := range bodies {
		var res model.BacktestResult
		if err := json.Unmarshal(b, &res); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		out = append(out, &res)
	}
	return out, nil
}
