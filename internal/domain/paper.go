package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerState is everything the paper ledger persists. Open positions are not stored
// separately: they are the OPEN entries of Trades.
type LedgerState struct {
	StartingBalance decimal.Decimal
	CashBalance     decimal.Decimal
	DailyExposure   decimal.Decimal
	ExposureDay     string // UTC date (2006-01-02) DailyExposure belongs to
	RealizedPnL     decimal.Decimal
	WinningTrades   int
	LosingTrades    int
	Trades          []Trade
}

// Clone returns a deep copy so a failed persist can be rolled back.
func (s LedgerState) Clone() LedgerState {
	out := s
	out.Trades = make([]Trade, len(s.Trades))
	copy(out.Trades, s.Trades)
	return out
}

// LedgerSummary is a read-only view of the paper ledger for reports and the status API.
type LedgerSummary struct {
	StartingBalance float64   `json:"starting_balance"`
	CashBalance     float64   `json:"cash_balance"`
	OpenExposure    float64   `json:"open_exposure_usd"`
	DailyExposure   float64   `json:"daily_exposure_usd"`
	ExposureDay     string    `json:"exposure_day"`
	OpenPositions   int       `json:"open_positions"`
	TotalTrades     int       `json:"total_trades"`
	WinningTrades   int       `json:"winning_trades"`
	LosingTrades    int       `json:"losing_trades"`
	RealizedPnL     float64   `json:"realized_pnl"`
	WinRate         float64   `json:"win_rate"`
	SessionROI      float64   `json:"session_roi_percent"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// CycleSummary is what one scanner cycle produced. It is journaled and printed.
type CycleSummary struct {
	StartedAt   time.Time
	Duration    time.Duration
	Markets     int // records received from the source
	Skipped     int // records rejected at ingestion
	Signals     []SignalResult
	Qualifying  int
	Opened      []Trade
	Closed      []Trade
	Rejections  []Rejection
	CashBalance float64
}

// Rejection pairs a market with the reason the ledger refused to open it.
type Rejection struct {
	MarketID string
	Reason   string
	Detail   string
}

// DailySummary is the per-day journal row used by the report.
type DailySummary struct {
	Date         time.Time
	Cycles       int
	Signals      int
	TradesOpened int
	TradesClosed int
	Rejections   int
	RealizedPnL  float64
	CashBalance  float64
}

// JournalStats aggregates the whole journal.
type JournalStats struct {
	FirstCycle   time.Time
	LastCycle    time.Time
	Cycles       int
	Signals      int
	TradesOpened int
	TradesClosed int
	Rejections   int
	BestScore    float64
	Dailies      []DailySummary
}
