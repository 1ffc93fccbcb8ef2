package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/alejandrodnm/spikebot/internal/domain"
	"github.com/alejandrodnm/spikebot/internal/ports"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	DefaultStartingBalance     = 10_000
	DefaultMaxPositionUSD      = 5_000
	DefaultMaxDailyExposureUSD = 50_000

	dayLayout = "2006-01-02"
	// payoutPlaces keeps payouts at micro-dollar precision.
	payoutPlaces = 6
)

// ErrNothingToClose is returned by Close when the market has no open position.
// It is informational: the ledger is left untouched.
var ErrNothingToClose = errors.New("nothing to close")

// Config holds the ledger's risk limits.
type Config struct {
	StartingBalance     float64
	MaxPositionUSD      float64
	MaxDailyExposureUSD float64
}

// OpenRequest is everything the ledger needs to open a paper position.
type OpenRequest struct {
	MarketID        string
	MarketSlug      string
	Side            domain.Side
	EntryPrice      float64
	RecommendedSize float64
	SignalScore     float64
	Reasoning       string
	AcceptingOrders bool
}

// RequestFromOpportunity builds the open request for a ranked opportunity.
func RequestFromOpportunity(o domain.Opportunity) OpenRequest {
	return OpenRequest{
		MarketID:        o.Market.MarketID,
		MarketSlug:      o.Market.Label(),
		Side:            o.Side,
		EntryPrice:      o.EntryPrice,
		RecommendedSize: o.RecommendedSize,
		SignalScore:     o.Signal.Score,
		Reasoning:       o.Reasoning,
		AcceptingOrders: o.Market.AcceptingOrders,
	}
}

// Option customizes a Ledger.
type Option func(*Ledger)

// WithClock overrides time.Now, mostly for tests that cross midnight.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// Ledger is the paper-trading account. All mutations go through Open and Close,
// and each one is persisted before it becomes visible: if the write fails the
// in-memory state is left exactly as it was.
type Ledger struct {
	mu      sync.RWMutex
	cfg     Config
	state   domain.LedgerState
	storage ports.LedgerStorage
	now     func() time.Time
}

// New loads the persisted ledger or starts a fresh one at cfg.StartingBalance.
// A nil storage keeps the ledger in memory only.
func New(storage ports.LedgerStorage, cfg Config, opts ...Option) (*Ledger, error) {
	if cfg.StartingBalance <= 0 {
		cfg.StartingBalance = DefaultStartingBalance
	}
	if cfg.MaxPositionUSD <= 0 {
		cfg.MaxPositionUSD = DefaultMaxPositionUSD
	}
	if cfg.MaxDailyExposureUSD <= 0 {
		cfg.MaxDailyExposureUSD = DefaultMaxDailyExposureUSD
	}

	l := &Ledger{cfg: cfg, storage: storage, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}

	start := decimal.NewFromFloat(cfg.StartingBalance)
	l.state = domain.LedgerState{
		StartingBalance: start,
		CashBalance:     start,
	}
	if storage == nil {
		return l, nil
	}

	saved, found, err := storage.LoadLedger()
	if err != nil {
		return nil, fmt.Errorf("ledger.New: load: %w", err)
	}
	if found {
		l.state = saved
		slog.Info("paper ledger loaded",
			"cash", fmt.Sprintf("$%.2f", saved.CashBalance.InexactFloat64()),
			"open_positions", len(l.openPositionsLocked()),
			"trades", len(saved.Trades),
		)
	} else {
		slog.Info("paper ledger initialized", "cash", fmt.Sprintf("$%.2f", cfg.StartingBalance))
	}
	return l, nil
}

// Open opens a simulated position. A refused open returns a *RejectionError and
// leaves the ledger unchanged; any other error means persisting failed.
func (l *Ledger) Open(req OpenRequest) (domain.Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().UTC()
	reject := func(reason, format string, args ...any) (domain.Trade, error) {
		return domain.Trade{}, &RejectionError{MarketID: req.MarketID, Reason: reason, Detail: fmt.Sprintf(format, args...)}
	}

	entry := decimal.NewFromFloat(req.EntryPrice)
	size := decimal.Min(
		decimal.NewFromFloat(req.RecommendedSize),
		decimal.NewFromFloat(l.cfg.MaxPositionUSD),
	).Round(2)
	maxDaily := decimal.NewFromFloat(l.cfg.MaxDailyExposureUSD)

	switch {
	case req.Side != domain.SideYes && req.Side != domain.SideNo:
		return reject(ReasonInvalidOrder, "unknown side %q", req.Side)
	case !entry.IsPositive() || entry.GreaterThanOrEqual(decimal.NewFromInt(1)):
		return reject(ReasonInvalidOrder, "entry price %s outside (0,1)", entry)
	case !size.IsPositive():
		return reject(ReasonInvalidOrder, "position size %s", size)
	case !req.AcceptingOrders:
		return reject(ReasonNotAccepting, "market is not accepting orders")
	}

	next := l.state.Clone()
	rollDay(&next, now)

	if idx := openIndex(next, req.MarketID); idx >= 0 {
		return reject(ReasonDuplicatePosition, "position %s already open", next.Trades[idx].ID)
	}
	if next.CashBalance.LessThan(size) {
		return reject(ReasonInsufficientFunds, "need $%s, have $%s", size.StringFixed(2), next.CashBalance.StringFixed(2))
	}
	if next.DailyExposure.Add(size).GreaterThan(maxDaily) {
		return reject(ReasonDailyExposure, "daily exposure $%s + $%s > $%s",
			next.DailyExposure.StringFixed(2), size.StringFixed(2), maxDaily.StringFixed(2))
	}
	if openExposure(next).Add(size).GreaterThan(maxDaily) {
		return reject(ReasonExposureLimit, "open exposure $%s + $%s > $%s",
			openExposure(next).StringFixed(2), size.StringFixed(2), maxDaily.StringFixed(2))
	}

	trade := domain.Trade{
		ID:          uuid.New().String(),
		MarketID:    req.MarketID,
		MarketSlug:  req.MarketSlug,
		Side:        req.Side,
		EntryPrice:  entry,
		Size:        size,
		Shares:      size.Div(entry).Round(payoutPlaces),
		SignalScore: req.SignalScore,
		Reasoning:   req.Reasoning,
		OpenedAt:    now,
		Status:      domain.TradeOpen,
	}

	next.CashBalance = next.CashBalance.Sub(size)
	next.DailyExposure = next.DailyExposure.Add(size)
	next.Trades = append(next.Trades, trade)

	if err := l.commitLocked(next); err != nil {
		return domain.Trade{}, fmt.Errorf("ledger.Open: %w", err)
	}

	slog.Info("paper position opened",
		"market", req.MarketID,
		"side", req.Side,
		"entry", req.EntryPrice,
		"size", fmt.Sprintf("$%.2f", size.InexactFloat64()),
		"score", req.SignalScore,
		"cash", fmt.Sprintf("$%.2f", next.CashBalance.InexactFloat64()),
	)
	return trade, nil
}

// Close settles the open position in marketID at exitPrice (the price of the
// position's own side). Returns ErrNothingToClose if there is none and a
// *RejectionError if exitPrice is not a price.
func (l *Ledger) Close(marketID string, exitPrice float64, reason string) (domain.Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := openIndex(l.state, marketID)
	if idx < 0 {
		return domain.Trade{}, ErrNothingToClose
	}

	if math.IsNaN(exitPrice) || exitPrice < 0 || exitPrice > 1 {
		return domain.Trade{}, &RejectionError{
			Op:       "close",
			MarketID: marketID,
			Reason:   ReasonInvalidExit,
			Detail:   fmt.Sprintf("exit price %v outside [0,1]", exitPrice),
		}
	}
	exit := decimal.NewFromFloat(exitPrice)

	now := l.now().UTC()
	next := l.state.Clone()
	rollDay(&next, now)

	trade := next.Trades[idx]
	// Payout comes from size, not from the rounded shares: closing at the entry
	// price returns exactly size.
	payout := trade.Size.Mul(exit).Div(trade.EntryPrice).Round(payoutPlaces)
	pnl := payout.Sub(trade.Size)

	trade.Status = domain.TradeClosed
	trade.ExitPrice = &exit
	trade.RealizedPnL = &pnl
	trade.ClosedAt = &now
	trade.CloseReason = reason
	next.Trades[idx] = trade

	next.CashBalance = next.CashBalance.Add(payout)
	next.RealizedPnL = next.RealizedPnL.Add(pnl)
	switch pnl.Sign() {
	case 1:
		next.WinningTrades++
	case -1:
		next.LosingTrades++
	}

	if err := l.commitLocked(next); err != nil {
		return domain.Trade{}, fmt.Errorf("ledger.Close: %w", err)
	}

	slog.Info("paper position closed",
		"market", marketID,
		"side", trade.Side,
		"entry", trade.EntryPrice.InexactFloat64(),
		"exit", exitPrice,
		"pnl", fmt.Sprintf("$%.2f", pnl.InexactFloat64()),
		"reason", reason,
	)
	return trade, nil
}

// Position returns the open position in marketID, if any.
func (l *Ledger) Position(marketID string) (domain.Trade, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx := openIndex(l.state, marketID)
	if idx < 0 {
		return domain.Trade{}, false
	}
	return l.state.Trades[idx], true
}

// OpenPositions returns the open positions, oldest first.
func (l *Ledger) OpenPositions() []domain.Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.openPositionsLocked()
}

// Trades returns a copy of the full trade log.
func (l *Ledger) Trades() []domain.Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.Clone().Trades
}

// CashBalance returns the cash not tied up in open positions.
func (l *Ledger) CashBalance() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.CashBalance
}

// Summary returns a read-only view of the account.
func (l *Ledger) Summary() domain.LedgerSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := l.state
	now := l.now().UTC()
	daily := s.DailyExposure
	if s.ExposureDay != now.Format(dayLayout) {
		daily = decimal.Zero
	}

	sum := domain.LedgerSummary{
		StartingBalance: s.StartingBalance.InexactFloat64(),
		CashBalance:     s.CashBalance.InexactFloat64(),
		OpenExposure:    openExposure(s).InexactFloat64(),
		DailyExposure:   daily.InexactFloat64(),
		ExposureDay:     now.Format(dayLayout),
		OpenPositions:   len(l.openPositionsLocked()),
		TotalTrades:     len(s.Trades),
		WinningTrades:   s.WinningTrades,
		LosingTrades:    s.LosingTrades,
		RealizedPnL:     s.RealizedPnL.InexactFloat64(),
		GeneratedAt:     now,
	}
	if settled := s.WinningTrades + s.LosingTrades; settled > 0 {
		sum.WinRate = float64(s.WinningTrades) / float64(settled) * 100
	}
	if s.StartingBalance.IsPositive() {
		sum.SessionROI = s.RealizedPnL.Div(s.StartingBalance).Mul(decimal.NewFromInt(100)).InexactFloat64()
	}
	return sum
}

// --- internals ---

func (l *Ledger) commitLocked(next domain.LedgerState) error {
	if l.storage != nil {
		if err := l.storage.SaveLedger(next); err != nil {
			return fmt.Errorf("persist: %w", err)
		}
	}
	l.state = next
	return nil
}

func (l *Ledger) openPositionsLocked() []domain.Trade {
	var out []domain.Trade
	for _, t := range l.state.Trades {
		if t.IsOpen() {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out
}

// rollDay zeroes the daily exposure when the UTC calendar day changes.
func rollDay(s *domain.LedgerState, now time.Time) {
	day := now.UTC().Format(dayLayout)
	if s.ExposureDay != day {
		s.DailyExposure = decimal.Zero
		s.ExposureDay = day
	}
}

func openIndex(s domain.LedgerState, marketID string) int {
	for i, t := range s.Trades {
		if t.IsOpen() && t.MarketID == marketID {
			return i
		}
	}
	return -1
}

func openExposure(s domain.LedgerState) decimal.Decimal {
	total := decimal.Zero
	for _, t := range s.Trades {
		if t.IsOpen() {
			total = total.Add(t.Size)
		}
	}
	return total
}
