package storage

import (
	"fmt"
	"time"

	"github.com/alejandrodnm/spikebot/internal/domain"
	"github.com/shopspring/decimal"
)

// LedgerFile implementa ports.LedgerStorage sobre un fichero JSON con un bloque
// de sesión y el log completo de trades (abiertos y cerrados).
type LedgerFile struct {
	path string
}

// NewLedgerFile crea el adaptador para la ruta dada.
func NewLedgerFile(path string) *LedgerFile {
	return &LedgerFile{path: path}
}

type ledgerJSON struct {
	Session  sessionJSON `json:"session"`
	TradeLog []tradeJSON `json:"trade_log"`
}

type sessionJSON struct {
	StartingBalance  float64 `json:"starting_balance"`
	CashBalance      float64 `json:"cash_balance"`
	DailyExposureUSD float64 `json:"daily_exposure_usd"`
	ExposureDay      string  `json:"exposure_day"`
	RealizedPnL      float64 `json:"realized_pnl"`
	WinningTrades    int     `json:"winning_trades"`
	LosingTrades     int     `json:"losing_trades"`
	TotalTrades      int     `json:"total_trades"`
	UpdatedAt        string  `json:"updated_at"`
}

type tradeJSON struct {
	TradeID      string   `json:"trade_id"`
	MarketID     string   `json:"market_id"`
	MarketSlug   string   `json:"market_slug"`
	Outcome      string   `json:"outcome"`
	EntryPrice   float64  `json:"entry_price"`
	ExitPrice    *float64 `json:"exit_price"`
	PositionSize float64  `json:"position_size"`
	Shares       float64  `json:"shares"`
	ActualProfit *float64 `json:"actual_profit"`
	ROIPercent   float64  `json:"roi_percent"`
	SignalScore  float64  `json:"signal_score"`
	Reasoning    string   `json:"reasoning"`
	Status       string   `json:"status"`
	Timestamp    string   `json:"timestamp"`
	ClosedAt     *string  `json:"closed_at,omitempty"`
	CloseReason  string   `json:"close_reason,omitempty"`
}

// LoadLedger lee el ledger. Además del JSON válido exige estados conocidos y como
// máximo una posición abierta por mercado; si no, el fichero cuenta como corrupto.
func (l *LedgerFile) LoadLedger() (domain.LedgerState, bool, error) {
	var raw ledgerJSON
	found, err := readJSON(l.path, &raw)
	if err != nil || !found {
		return domain.LedgerState{}, found, err
	}

	state := domain.LedgerState{
		StartingBalance: decimal.NewFromFloat(raw.Session.StartingBalance),
		CashBalance:     decimal.NewFromFloat(raw.Session.CashBalance),
		DailyExposure:   decimal.NewFromFloat(raw.Session.DailyExposureUSD),
		ExposureDay:     raw.Session.ExposureDay,
		RealizedPnL:     decimal.NewFromFloat(raw.Session.RealizedPnL),
		WinningTrades:   raw.Session.WinningTrades,
		LosingTrades:    raw.Session.LosingTrades,
		Trades:          make([]domain.Trade, 0, len(raw.TradeLog)),
	}

	open := make(map[string]bool)
	for i, tj := range raw.TradeLog {
		t, err := tj.toDomain()
		if err != nil {
			return domain.LedgerState{}, true, fmt.Errorf("%w: trade_log[%d]: %v", ErrCorruptState, i, err)
		}
		if t.IsOpen() {
			if open[t.MarketID] {
				return domain.LedgerState{}, true, fmt.Errorf("%w: two open positions for market %s", ErrCorruptState, t.MarketID)
			}
			open[t.MarketID] = true
		}
		state.Trades = append(state.Trades, t)
	}
	return state, true, nil
}

// SaveLedger reemplaza el fichero atómicamente.
func (l *LedgerFile) SaveLedger(state domain.LedgerState) error {
	raw := ledgerJSON{
		Session: sessionJSON{
			StartingBalance:  state.StartingBalance.InexactFloat64(),
			CashBalance:      state.CashBalance.InexactFloat64(),
			DailyExposureUSD: state.DailyExposure.InexactFloat64(),
			ExposureDay:      state.ExposureDay,
			RealizedPnL:      state.RealizedPnL.InexactFloat64(),
			WinningTrades:    state.WinningTrades,
			LosingTrades:     state.LosingTrades,
			TotalTrades:      len(state.Trades),
			UpdatedAt:        time.Now().UTC().Format(time.RFC3339),
		},
		TradeLog: make([]tradeJSON, 0, len(state.Trades)),
	}
	for _, t := range state.Trades {
		raw.TradeLog = append(raw.TradeLog, tradeFromDomain(t))
	}

	if err := writeJSONAtomic(l.path, raw); err != nil {
		return fmt.Errorf("storage.SaveLedger: %w", err)
	}
	return nil
}

func tradeFromDomain(t domain.Trade) tradeJSON {
	tj := tradeJSON{
		TradeID:      t.ID,
		MarketID:     t.MarketID,
		MarketSlug:   t.MarketSlug,
		Outcome:      string(t.Side),
		EntryPrice:   t.EntryPrice.InexactFloat64(),
		PositionSize: t.Size.InexactFloat64(),
		Shares:       t.Shares.InexactFloat64(),
		ROIPercent:   t.ROIPercent(),
		SignalScore:  t.SignalScore,
		Reasoning:    t.Reasoning,
		Status:       string(t.Status),
		Timestamp:    t.OpenedAt.UTC().Format(time.RFC3339Nano),
		CloseReason:  t.CloseReason,
	}
	if t.ExitPrice != nil {
		v := t.ExitPrice.InexactFloat64()
		tj.ExitPrice = &v
	}
	if t.RealizedPnL != nil {
		v := t.RealizedPnL.InexactFloat64()
		tj.ActualProfit = &v
	}
	if t.ClosedAt != nil {
		v := t.ClosedAt.UTC().Format(time.RFC3339Nano)
		tj.ClosedAt = &v
	}
	return tj
}

func (tj tradeJSON) toDomain() (domain.Trade, error) {
	if tj.TradeID == "" || tj.MarketID == "" {
		return domain.Trade{}, fmt.Errorf("missing trade_id or market_id")
	}
	side := domain.Side(tj.Outcome)
	if side != domain.SideYes && side != domain.SideNo {
		return domain.Trade{}, fmt.Errorf("unknown outcome %q", tj.Outcome)
	}
	status := domain.TradeStatus(tj.Status)
	if status != domain.TradeOpen && status != domain.TradeClosed {
		return domain.Trade{}, fmt.Errorf("unknown status %q", tj.Status)
	}
	opened, err := parseTimestamp(tj.Timestamp)
	if err != nil {
		return domain.Trade{}, err
	}

	t := domain.Trade{
		ID:          tj.TradeID,
		MarketID:    tj.MarketID,
		MarketSlug:  tj.MarketSlug,
		Side:        side,
		EntryPrice:  decimal.NewFromFloat(tj.EntryPrice),
		Size:        decimal.NewFromFloat(tj.PositionSize),
		Shares:      decimal.NewFromFloat(tj.Shares),
		SignalScore: tj.SignalScore,
		Reasoning:   tj.Reasoning,
		OpenedAt:    opened,
		Status:      status,
		CloseReason: tj.CloseReason,
	}
	if status == domain.TradeOpen {
		return t, nil
	}

	if tj.ExitPrice == nil || tj.ActualProfit == nil {
		return domain.Trade{}, fmt.Errorf("closed trade %s without exit_price or actual_profit", tj.TradeID)
	}
	exit := decimal.NewFromFloat(*tj.ExitPrice)
	pnl := decimal.NewFromFloat(*tj.ActualProfit)
	t.ExitPrice = &exit
	t.RealizedPnL = &pnl
	if tj.ClosedAt != nil {
		closed, err := parseTimestamp(*tj.ClosedAt)
		if err != nil {
			return domain.Trade{}, err
		}
		t.ClosedAt = &closed
	}
	return t, nil
}
