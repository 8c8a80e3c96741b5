package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Allenwang2004/Alltrader/internal/domain"

	"github.com/shopspring/decimal"

	_ "github.com/glebarez/go-sqlite"
)

// Store persists candles and closed trades in SQLite. Prices and
// quantities are stored as decimal strings so nothing is rounded on the
// way through the database.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=-2000;", // 2MB cache
		"PRAGMA foreign_keys=ON;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	schemas := []string{
		`CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS candles (
			symbol TEXT NOT NULL,
			interval TEXT NOT NULL,
			ts INTEGER NOT NULL,
			open TEXT NOT NULL,
			high TEXT NOT NULL,
			low TEXT NOT NULL,
			close TEXT NOT NULL,
			volume TEXT NOT NULL,
			PRIMARY KEY (symbol, interval, ts)
		);`,
		`CREATE TABLE IF NOT EXISTS trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			direction INTEGER NOT NULL,
			avg_entry TEXT NOT NULL,
			exit_price TEXT NOT NULL,
			total_qty TEXT NOT NULL,
			pnl TEXT NOT NULL,
			reason TEXT NOT NULL,
			closed_at INTEGER NOT NULL
		);`,
	}
	for _, schema := range schemas {
		if _, err := db.Exec(schema); err != nil {
			return nil, fmt.Errorf("failed to create table: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// SaveBars upserts a batch of candles in one transaction. Re-saving a
// timestamp replaces the row, so repeated history pulls are idempotent.
func (s *Store) SaveBars(ctx context.Context, symbol string, interval domain.Interval, bars []domain.Bar) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO candles (symbol, interval, ts, open, high, low, close, volume)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		_, err := stmt.ExecContext(ctx,
			symbol, string(interval), b.Ts.UnixMilli(),
			b.Open.String(), b.High.String(), b.Low.String(), b.Close.String(), b.Volume.String())
		if err != nil {
			return fmt.Errorf("failed to insert candle: %w", err)
		}
	}

	return tx.Commit()
}

// FetchBars returns the most recent `limit` candles in ascending time
// order. Satisfies the historical bar source used by the trading core.
func (s *Store) FetchBars(ctx context.Context, symbol string, interval domain.Interval, limit int) ([]domain.Bar, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, open, high, low, close, volume FROM candles
		 WHERE symbol = ? AND interval = ?
		 ORDER BY ts DESC LIMIT ?`,
		symbol, string(interval), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		var ts int64
		var open, high, low, closePx, volume string
		if err := rows.Scan(&ts, &open, &high, &low, &closePx, &volume); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		bar, err := barFromRow(ts, open, high, low, closePx, volume)
		if err != nil {
			return nil, err
		}
		bars = append(bars, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	// Newest-first from the query; flip to oldest-first.
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars, nil
}

// SaveTrade appends one closed trade.
func (s *Store) SaveTrade(ctx context.Context, tr domain.TradeRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trades (symbol, direction, avg_entry, exit_price, total_qty, pnl, reason, closed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tr.Symbol, int(tr.Direction),
		tr.AvgEntryPrice.String(), tr.ExitPrice.String(), tr.TotalQty.String(), tr.PnL.String(),
		string(tr.Reason), tr.ClosedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}
	return nil
}

// LoadTrades returns every stored trade for the symbol, oldest first.
func (s *Store) LoadTrades(ctx context.Context, symbol string) ([]domain.TradeRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, direction, avg_entry, exit_price, total_qty, pnl, reason, closed_at
		 FROM trades WHERE symbol = ? ORDER BY id ASC`,
		symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []domain.TradeRecord
	for rows.Next() {
		var tr domain.TradeRecord
		var direction int
		var avgEntry, exitPrice, totalQty, pnl, reason string
		var closedAt int64
		if err := rows.Scan(&tr.Symbol, &direction, &avgEntry, &exitPrice, &totalQty, &pnl, &reason, &closedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}

		tr.Direction = domain.Direction(direction)
		tr.Reason = domain.CloseReason(reason)
		tr.ClosedAt = time.UnixMilli(closedAt).UTC()
		if tr.AvgEntryPrice, err = decimal.NewFromString(avgEntry); err != nil {
			return nil, fmt.Errorf("corrupt avg_entry %q: %w", avgEntry, err)
		}
		if tr.ExitPrice, err = decimal.NewFromString(exitPrice); err != nil {
			return nil, fmt.Errorf("corrupt exit_price %q: %w", exitPrice, err)
		}
		if tr.TotalQty, err = decimal.NewFromString(totalQty); err != nil {
			return nil, fmt.Errorf("corrupt total_qty %q: %w", totalQty, err)
		}
		if tr.PnL, err = decimal.NewFromString(pnl); err != nil {
			return nil, fmt.Errorf("corrupt pnl %q: %w", pnl, err)
		}
		trades = append(trades, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return trades, nil
}

// UpsertMetadata saves a key-value pair to the metadata table.
func (s *Store) UpsertMetadata(ctx context.Context, key, value string, ts int64) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at",
		key, value, ts,
	)
	return err
}

// GetMetadata retrieves a value from the metadata table. Missing keys
// return an empty string without error.
func (s *Store) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func barFromRow(ts int64, open, high, low, closePx, volume string) (domain.Bar, error) {
	bar := domain.Bar{Ts: time.UnixMilli(ts).UTC()}
	var err error
	if bar.Open, err = decimal.NewFromString(open); err != nil {
		return domain.Bar{}, fmt.Errorf("corrupt open %q: %w", open, err)
	}
	if bar.High, err = decimal.NewFromString(high); err != nil {
		return domain.Bar{}, fmt.Errorf("corrupt high %q: %w", high, err)
	}
	if bar.Low, err = decimal.NewFromString(low); err != nil {
		return domain.Bar{}, fmt.Errorf("corrupt low %q: %w", low, err)
	}
	if bar.Close, err = decimal.NewFromString(closePx); err != nil {
		return domain.Bar{}, fmt.Errorf("corrupt close %q: %w", closePx, err)
	}
	if bar.Volume, err = decimal.NewFromString(volume); err != nil {
		return domain.Bar{}, fmt.Errorf("corrupt volume %q: %w", volume, err)
	}
	return bar, nil
}
