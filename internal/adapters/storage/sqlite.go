package storage

// sqlite.go: journal de ciclos del scanner.
//
// Estrategia:
//   - `cycles`: una fila ligera por ciclo (conteos, mejor score, caja al cerrar).
//   - `signals`: solo las señales que calificaron. El resto no aporta como histórico.
//   - `trade_events`: una fila por apertura o cierre simulado.
//   - `daily`: agregado por día UTC (UPSERT), lo que lee el informe.
//   - Prune al arrancar: cycles/signals/events > 90d. `daily` no se borra nunca.
//
// El journal es solo para análisis: el estado que manda es el del ledger.

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/alejandrodnm/spikebot/internal/domain"
	_ "modernc.org/sqlite"
)

const journalSchema = `
CREATE TABLE IF NOT EXISTS cycles (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at    TEXT    NOT NULL,
    duration_ms   INTEGER NOT NULL DEFAULT 0,
    markets       INTEGER NOT NULL DEFAULT 0,
    skipped       INTEGER NOT NULL DEFAULT 0,
    evaluated     INTEGER NOT NULL DEFAULT 0,
    qualifying    INTEGER NOT NULL DEFAULT 0,
    opened        INTEGER NOT NULL DEFAULT 0,
    closed        INTEGER NOT NULL DEFAULT 0,
    rejections    INTEGER NOT NULL DEFAULT 0,
    best_score    REAL    NOT NULL DEFAULT 0,
    cash_balance  REAL    NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS signals (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    cycle_id          INTEGER NOT NULL,
    market_id         TEXT    NOT NULL,
    spike_ratio       REAL    NOT NULL,
    price_change_1h   REAL    NOT NULL,
    hours_to_deadline REAL,
    baseline_volume   REAL    NOT NULL,
    volume_24h        REAL    NOT NULL,
    score             REAL    NOT NULL,
    seen_at           TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS trade_events (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    cycle_id    INTEGER NOT NULL,
    trade_id    TEXT    NOT NULL,
    market_id   TEXT    NOT NULL,
    event       TEXT    NOT NULL,
    side        TEXT    NOT NULL,
    price       REAL    NOT NULL,
    size        REAL    NOT NULL,
    pnl         REAL    NOT NULL DEFAULT 0,
    reason      TEXT,
    at          TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS daily (
    date          TEXT PRIMARY KEY,
    cycles        INTEGER NOT NULL DEFAULT 0,
    signals       INTEGER NOT NULL DEFAULT 0,
    trades_opened INTEGER NOT NULL DEFAULT 0,
    trades_closed INTEGER NOT NULL DEFAULT 0,
    rejections    INTEGER NOT NULL DEFAULT 0,
    realized_pnl  REAL    NOT NULL DEFAULT 0,
    cash_balance  REAL    NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_cycles_at      ON cycles(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_signals_market ON signals(market_id);
CREATE INDEX IF NOT EXISTS idx_signals_cycle  ON signals(cycle_id);
CREATE INDEX IF NOT EXISTS idx_events_trade   ON trade_events(trade_id);
`

const (
	journalRetention = 90 * 24 * time.Hour
	reportDays       = 30

	// ancho fijo: los timestamps se comparan como texto en MIN/MAX y en el prune.
	tsLayout   = "2006-01-02T15:04:05.000000Z"
	dateLayout = "2006-01-02"
)

// SQLiteJournal implementa ports.Journal usando SQLite (pure Go, sin CGo).
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal abre (o crea) la base de datos en la ruta dada, aplica el schema
// y limpia datos antiguos.
func NewSQLiteJournal(path string) (*SQLiteJournal, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("storage.NewSQLiteJournal: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteJournal: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(journalSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteJournal: apply schema: %w", err)
	}

	j := &SQLiteJournal{db: db}
	j.pruneOld(context.Background(), time.Now().UTC())
	return j, nil
}

// SaveCycle persiste el ciclo completo en una transacción.
func (j *SQLiteJournal) SaveCycle(ctx context.Context, c domain.CycleSummary) error {
	startedAt := c.StartedAt.UTC()
	ts := startedAt.Format(tsLayout)

	qualifying, best := 0, 0.0
	for _, s := range c.Signals {
		if s.Qualifies {
			qualifying++
		}
		best = math.Max(best, s.Score)
	}
	var pnl float64
	for _, t := range c.Closed {
		if t.RealizedPnL != nil {
			pnl += t.RealizedPnL.InexactFloat64()
		}
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveCycle: begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO cycles (started_at, duration_ms, markets, skipped, evaluated, qualifying,
		                    opened, closed, rejections, best_score, cash_balance)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ts, c.Duration.Milliseconds(), c.Markets, c.Skipped, len(c.Signals), qualifying,
		len(c.Opened), len(c.Closed), len(c.Rejections), best, c.CashBalance,
	)
	if err != nil {
		return fmt.Errorf("storage.SaveCycle: insert cycle: %w", err)
	}
	cycleID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("storage.SaveCycle: cycle id: %w", err)
	}

	for _, s := range c.Signals {
		if !s.Qualifies {
			continue
		}
		var hours *float64
		if !math.IsInf(s.HoursToDeadline, 0) && !math.IsNaN(s.HoursToDeadline) {
			h := s.HoursToDeadline
			hours = &h
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO signals (cycle_id, market_id, spike_ratio, price_change_1h, hours_to_deadline,
			                     baseline_volume, volume_24h, score, seen_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			cycleID, s.MarketID, s.SpikeRatio, s.PriceChange1h, hours,
			s.BaselineVolume, s.Volume24h, s.Score, ts,
		); err != nil {
			return fmt.Errorf("storage.SaveCycle: insert signal %s: %w", s.MarketID, err)
		}
	}

	for _, t := range c.Opened {
		if err := insertTradeEvent(ctx, tx, cycleID, "OPEN", t, t.EntryPrice.InexactFloat64(), 0, t.OpenedAt); err != nil {
			return err
		}
	}
	for _, t := range c.Closed {
		var exit, realized float64
		if t.ExitPrice != nil {
			exit = t.ExitPrice.InexactFloat64()
		}
		if t.RealizedPnL != nil {
			realized = t.RealizedPnL.InexactFloat64()
		}
		at := startedAt
		if t.ClosedAt != nil {
			at = *t.ClosedAt
		}
		if err := insertTradeEvent(ctx, tx, cycleID, "CLOSE", t, exit, realized, at); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO daily (date, cycles, signals, trades_opened, trades_closed, rejections, realized_pnl, cash_balance)
		VALUES (?, 1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			cycles        = cycles + 1,
			signals       = signals + excluded.signals,
			trades_opened = trades_opened + excluded.trades_opened,
			trades_closed = trades_closed + excluded.trades_closed,
			rejections    = rejections + excluded.rejections,
			realized_pnl  = realized_pnl + excluded.realized_pnl,
			cash_balance  = excluded.cash_balance`,
		startedAt.Format(dateLayout), qualifying, len(c.Opened), len(c.Closed),
		len(c.Rejections), pnl, c.CashBalance,
	); err != nil {
		return fmt.Errorf("storage.SaveCycle: upsert daily: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveCycle: commit: %w", err)
	}
	return nil
}

// GetStats agrega el journal completo y devuelve los últimos 30 días, el más reciente primero.
func (j *SQLiteJournal) GetStats(ctx context.Context) (domain.JournalStats, error) {
	var stats domain.JournalStats
	var first, last sql.NullString

	err := j.db.QueryRowContext(ctx, `
		SELECT MIN(started_at), MAX(started_at), COUNT(*),
		       COALESCE(SUM(qualifying), 0), COALESCE(SUM(opened), 0),
		       COALESCE(SUM(closed), 0), COALESCE(SUM(rejections), 0),
		       COALESCE(MAX(best_score), 0)
		FROM cycles`,
	).Scan(&first, &last, &stats.Cycles, &stats.Signals, &stats.TradesOpened,
		&stats.TradesClosed, &stats.Rejections, &stats.BestScore)
	if err != nil {
		return stats, fmt.Errorf("storage.GetStats: totals: %w", err)
	}
	if first.Valid {
		stats.FirstCycle, _ = time.Parse(tsLayout, first.String)
	}
	if last.Valid {
		stats.LastCycle, _ = time.Parse(tsLayout, last.String)
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT date, cycles, signals, trades_opened, trades_closed, rejections, realized_pnl, cash_balance
		FROM daily
		ORDER BY date DESC
		LIMIT ?`, reportDays)
	if err != nil {
		return stats, fmt.Errorf("storage.GetStats: daily: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d domain.DailySummary
		var date string
		if err := rows.Scan(&date, &d.Cycles, &d.Signals, &d.TradesOpened, &d.TradesClosed,
			&d.Rejections, &d.RealizedPnL, &d.CashBalance); err != nil {
			return stats, fmt.Errorf("storage.GetStats: scan daily: %w", err)
		}
		d.Date, _ = time.Parse(dateLayout, date)
		stats.Dailies = append(stats.Dailies, d)
	}
	return stats, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// --- helpers internos ---

func insertTradeEvent(ctx context.Context, tx *sql.Tx, cycleID int64, event string, t domain.Trade, price, pnl float64, at time.Time) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO trade_events (cycle_id, trade_id, market_id, event, side, price, size, pnl, reason, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cycleID, t.ID, t.MarketID, event, string(t.Side), price,
		t.Size.InexactFloat64(), pnl, t.CloseReason, at.UTC().Format(tsLayout),
	); err != nil {
		return fmt.Errorf("storage.SaveCycle: insert %s event %s: %w", event, t.ID, err)
	}
	return nil
}

// pruneOld elimina detalle antiguo para mantener la DB ligera.
func (j *SQLiteJournal) pruneOld(ctx context.Context, now time.Time) {
	cutoff := now.Add(-journalRetention).Format(tsLayout)
	j.db.ExecContext(ctx, `DELETE FROM signals WHERE seen_at < ?`, cutoff)
	j.db.ExecContext(ctx, `DELETE FROM trade_events WHERE at < ?`, cutoff)
	j.db.ExecContext(ctx, `DELETE FROM cycles WHERE started_at < ?`, cutoff)
}
