package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is the durable store. Monetary values are stored as NUMERIC and
// scanned back as float64 at this layer; exact accounting stays in the
// ledger, these rows are reporting artifacts.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Connect dials the database and verifies connectivity.
func Connect(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Postgres) Close() {
	s.pool.Close()
}

func (s *Postgres) CreateRun(ctx context.Context, run Run) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, symbol, start_date, end_date, initial_cash, created_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6)`,
		run.ID, run.Symbol, run.Start, run.End, run.InitialCash, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: create run %s: %w", run.ID, err)
	}
	return nil
}

func (s *Postgres) InsertTrade(ctx context.Context, runID string, t TradeRow) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO trades (run_id, trade_date, instrument, asset, side, quantity, price, notional)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7::NUMERIC, $8::NUMERIC)`,
		runID, t.Date, t.Instrument, t.Asset, t.Side, t.Quantity, t.Price, t.Notional)
	if err != nil {
		return fmt.Errorf("store: insert trade: %w", err)
	}
	return nil
}

func (s *Postgres) InsertEquityPoint(ctx context.Context, runID string, p EquityRow) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO equity_points (run_id, point_date, cash, position_value, equity)
		 VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC, $5::NUMERIC)`,
		runID, p.Date, p.Cash, p.PositionValue, p.Equity)
	if err != nil {
		return fmt.Errorf("store: insert equity point: %w", err)
	}
	return nil
}

func (s *Postgres) ListTrades(ctx context.Context, runID string) ([]TradeRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT trade_date, instrument, asset, side,
		        quantity::FLOAT8, price::FLOAT8, notional::FLOAT8
		 FROM trades WHERE run_id = $1 ORDER BY trade_date, instrument`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: list trades: %w", err)
	}
	defer rows.Close()

	var out []TradeRow
	for rows.Next() {
		var t TradeRow
		if err := rows.Scan(&t.Date, &t.Instrument, &t.Asset, &t.Side, &t.Quantity, &t.Price, &t.Notional); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Postgres) ListEquity(ctx context.Context, runID string) ([]EquityRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT point_date, cash::FLOAT8, position_value::FLOAT8, equity::FLOAT8
		 FROM equity_points WHERE run_id = $1 ORDER BY point_date`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: list equity: %w", err)
	}
	defer rows.Close()

	var out []EquityRow
	for rows.Next() {
		var p EquityRow
		if err := rows.Scan(&p.Date, &p.Cash, &p.PositionValue, &p.Equity); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
