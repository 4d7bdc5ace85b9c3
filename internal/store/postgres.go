package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"footprint-trading-bot/internal/footprint"
)

// PostgresConfig holds connection settings for the Postgres store.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPostgres connects, verifies the connection, and runs migrations.
func NewPostgres(ctx context.Context, cfg PostgresConfig, logger zerolog.Logger) (*Postgres, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	p := &Postgres{
		pool:   pool,
		logger: logger.With().Str("component", "postgres_store").Logger(),
	}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	p.logger.Info().Str("database", cfg.Database).Msg("Connected to PostgreSQL")
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS setups (
			id TEXT PRIMARY KEY,
			instrument VARCHAR(20) NOT NULL,
			footprint_id TEXT NOT NULL,
			footprint_timeframe VARCHAR(10) NOT NULL,
			footprint_direction VARCHAR(10) NOT NULL,
			footprint_strength INT NOT NULL,
			footprint_volume DECIMAL(20, 8) NOT NULL DEFAULT 0,
			origin_low DECIMAL(20, 8) NOT NULL,
			origin_base DECIMAL(20, 8) NOT NULL,
			origin_timestamp BIGINT NOT NULL,
			range_floor DECIMAL(20, 8) NOT NULL,
			range_base DECIMAL(20, 8) NOT NULL,
			monthly_bias VARCHAR(30) NOT NULL,
			weekly_bias VARCHAR(30) NOT NULL,
			entry_midpoint DECIMAL(20, 8) NOT NULL,
			entry_price DECIMAL(20, 8) NOT NULL,
			entry_signals JSONB NOT NULL DEFAULT '[]',
			risk_reward DECIMAL(10, 4) NOT NULL,
			stop_loss DECIMAL(20, 8) NOT NULL,
			targets JSONB NOT NULL DEFAULT '[]',
			status VARCHAR(20) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_setups_status ON setups(status)`,
		`CREATE INDEX IF NOT EXISTS idx_setups_instrument ON setups(instrument)`,

		`CREATE TABLE IF NOT EXISTS trades (
			id TEXT PRIMARY KEY,
			setup_id TEXT NOT NULL,
			instrument VARCHAR(20) NOT NULL,
			side VARCHAR(4) NOT NULL,
			quantity DECIMAL(20, 8) NOT NULL,
			entry_price DECIMAL(20, 8) NOT NULL,
			stop_loss DECIMAL(20, 8) NOT NULL,
			take_profit DECIMAL(20, 8) NOT NULL,
			status VARCHAR(20) NOT NULL,
			pnl DECIMAL(20, 8) NOT NULL DEFAULT 0,
			exit_price DECIMAL(20, 8),
			exit_reason VARCHAR(20),
			entry_time TIMESTAMPTZ NOT NULL,
			exit_time TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_status ON trades(status)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_instrument ON trades(instrument)`,

		`CREATE TABLE IF NOT EXISTS strategy_executions (
			id TEXT PRIMARY KEY,
			strategy_id TEXT NOT NULL,
			instrument VARCHAR(20) NOT NULL,
			action VARCHAR(10) NOT NULL,
			strength DECIMAL(10, 4) NOT NULL,
			confidence DECIMAL(10, 4) NOT NULL,
			reason TEXT NOT NULL,
			executed BOOLEAN NOT NULL DEFAULT FALSE,
			evaluated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_strategy ON strategy_executions(strategy_id)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_evaluated ON strategy_executions(evaluated_at)`,
	}

	for i, migration := range migrations {
		if _, err := p.pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	p.logger.Info().Int("count", len(migrations)).Msg("Migrations applied")
	return nil
}

func (p *Postgres) SaveSetup(ctx context.Context, setup *footprint.Setup) error {
	signals, err := json.Marshal(setup.EntrySignals)
	if err != nil {
		return fmt.Errorf("marshal entry signals: %w", err)
	}
	targets, err := json.Marshal(setup.Targets)
	if err != nil {
		return fmt.Errorf("marshal targets: %w", err)
	}

	query := `
		INSERT INTO setups (
			id, instrument, footprint_id, footprint_timeframe, footprint_direction,
			footprint_strength, footprint_volume, origin_low, origin_base, origin_timestamp,
			range_floor, range_base, monthly_bias, weekly_bias, entry_midpoint,
			entry_price, entry_signals, risk_reward, stop_loss, targets, status, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status
	`
	_, err = p.pool.Exec(ctx, query,
		setup.ID, setup.Instrument, setup.Footprint.ID, setup.Footprint.Timeframe,
		setup.Footprint.Direction, setup.Footprint.Strength, setup.Footprint.Volume,
		setup.Footprint.Origin.Low, setup.Footprint.Origin.Base, setup.Footprint.Origin.Timestamp,
		setup.EntryRange.Floor, setup.EntryRange.Base, setup.MonthlyBias, setup.WeeklyBias,
		setup.EntryRange.Midpoint, setup.EntryPrice, signals, setup.RiskRewardRatio,
		setup.StopLoss, targets, setup.Status, setup.CreatedAt,
	)
	return err
}

func (p *Postgres) UpdateSetupStatus(ctx context.Context, id string, status footprint.SetupStatus) error {
	tag, err := p.pool.Exec(ctx, `UPDATE setups SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const setupColumns = `
	id, instrument, footprint_id, footprint_timeframe, footprint_direction,
	footprint_strength, footprint_volume, origin_low, origin_base, origin_timestamp,
	range_floor, range_base, monthly_bias, weekly_bias, entry_midpoint,
	entry_price, entry_signals, risk_reward, stop_loss, targets, status, created_at
`

func (p *Postgres) GetSetup(ctx context.Context, id string) (*footprint.Setup, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+setupColumns+` FROM setups WHERE id = $1`, id)
	setup, err := scanSetup(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return setup, err
}

func (p *Postgres) WaitingSetups(ctx context.Context) ([]*footprint.Setup, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+setupColumns+` FROM setups WHERE status = $1 ORDER BY created_at`,
		footprint.StatusWaiting)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var setups []*footprint.Setup
	for rows.Next() {
		setup, err := scanSetup(rows)
		if err != nil {
			return nil, err
		}
		setups = append(setups, setup)
	}
	return setups, rows.Err()
}

func scanSetup(row pgx.Row) (*footprint.Setup, error) {
	var (
		setup   footprint.Setup
		signals []byte
		targets []byte
	)
	err := row.Scan(
		&setup.ID, &setup.Instrument, &setup.Footprint.ID, &setup.Footprint.Timeframe,
		&setup.Footprint.Direction, &setup.Footprint.Strength, &setup.Footprint.Volume,
		&setup.Footprint.Origin.Low, &setup.Footprint.Origin.Base, &setup.Footprint.Origin.Timestamp,
		&setup.EntryRange.Floor, &setup.EntryRange.Base, &setup.MonthlyBias, &setup.WeeklyBias,
		&setup.EntryRange.Midpoint, &setup.EntryPrice, &signals, &setup.RiskRewardRatio,
		&setup.StopLoss, &targets, &setup.Status, &setup.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	setup.Footprint.Instrument = setup.Instrument
	setup.Footprint.Range = footprint.Range{Floor: setup.EntryRange.Floor, Base: setup.EntryRange.Base}
	setup.Footprint.IsValid = setup.Footprint.Strength >= 1

	if err := json.Unmarshal(signals, &setup.EntrySignals); err != nil {
		return nil, fmt.Errorf("unmarshal entry signals: %w", err)
	}
	if err := json.Unmarshal(targets, &setup.Targets); err != nil {
		return nil, fmt.Errorf("unmarshal targets: %w", err)
	}
	return &setup, nil
}

func (p *Postgres) SaveTrade(ctx context.Context, trade *Trade) error {
	query := `
		INSERT INTO trades (
			id, setup_id, instrument, side, quantity, entry_price, stop_loss,
			take_profit, status, pnl, exit_price, exit_reason, entry_time, exit_time
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := p.pool.Exec(ctx, query,
		trade.ID, trade.SetupID, trade.Instrument, trade.Side, trade.Quantity,
		trade.EntryPrice, trade.StopLoss, trade.TakeProfit, trade.Status, trade.PnL,
		trade.ExitPrice, nullableString(trade.ExitReason), trade.EntryTime, trade.ExitTime,
	)
	return err
}

func (p *Postgres) UpdateTrade(ctx context.Context, trade *Trade) error {
	query := `
		UPDATE trades
		SET status = $2, pnl = $3, exit_price = $4, exit_reason = $5, exit_time = $6, stop_loss = $7
		WHERE id = $1
	`
	tag, err := p.pool.Exec(ctx, query,
		trade.ID, trade.Status, trade.PnL, trade.ExitPrice,
		nullableString(trade.ExitReason), trade.ExitTime, trade.StopLoss,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const tradeColumns = `
	id, setup_id, instrument, side, quantity, entry_price, stop_loss,
	take_profit, status, pnl, exit_price, exit_reason, entry_time, exit_time
`

func (p *Postgres) GetTrade(ctx context.Context, id string) (*Trade, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+tradeColumns+` FROM trades WHERE id = $1`, id)
	trade, err := scanTrade(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return trade, err
}

func (p *Postgres) OpenTrades(ctx context.Context) ([]*Trade, error) {
	return p.tradesByStatus(ctx, TradeStatusOpen)
}

func (p *Postgres) ClosedTrades(ctx context.Context) ([]*Trade, error) {
	return p.tradesByStatus(ctx, TradeStatusClosed)
}

func (p *Postgres) tradesByStatus(ctx context.Context, status string) ([]*Trade, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE status = $1 ORDER BY entry_time`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*Trade
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}
	return trades, rows.Err()
}

func scanTrade(row pgx.Row) (*Trade, error) {
	var (
		trade      Trade
		exitReason *string
	)
	err := row.Scan(
		&trade.ID, &trade.SetupID, &trade.Instrument, &trade.Side, &trade.Quantity,
		&trade.EntryPrice, &trade.StopLoss, &trade.TakeProfit, &trade.Status, &trade.PnL,
		&trade.ExitPrice, &exitReason, &trade.EntryTime, &trade.ExitTime,
	)
	if err != nil {
		return nil, err
	}
	if exitReason != nil {
		trade.ExitReason = *exitReason
	}
	return &trade, nil
}

func (p *Postgres) AppendExecution(ctx context.Context, exec *StrategyExecution) error {
	query := `
		INSERT INTO strategy_executions (
			id, strategy_id, instrument, action, strength, confidence, reason, executed, evaluated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := p.pool.Exec(ctx, query,
		exec.ID, exec.StrategyID, exec.Instrument, exec.Action, exec.Strength,
		exec.Confidence, exec.Reason, exec.Executed, exec.EvaluatedAt,
	)
	return err
}

func (p *Postgres) Executions(ctx context.Context, strategyID string, limit int) ([]*StrategyExecution, error) {
	query := `
		SELECT id, strategy_id, instrument, action, strength, confidence, reason, executed, evaluated_at
		FROM strategy_executions
	`
	args := []any{}
	if strategyID != "" {
		query += ` WHERE strategy_id = $1`
		args = append(args, strategyID)
	}
	query += ` ORDER BY evaluated_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var executions []*StrategyExecution
	for rows.Next() {
		var e StrategyExecution
		if err := rows.Scan(
			&e.ID, &e.StrategyID, &e.Instrument, &e.Action, &e.Strength,
			&e.Confidence, &e.Reason, &e.Executed, &e.EvaluatedAt,
		); err != nil {
			return nil, err
		}
		executions = append(executions, &e)
	}
	return executions, rows.Err()
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
