package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side es el outcome comprado en un mercado binario.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// PriceFor devuelve el precio de este lado dado el precio del outcome YES.
func (s Side) PriceFor(yesPrice float64) float64 {
	if s == SideNo {
		return 1 - yesPrice
	}
	return yesPrice
}

// TradeStatus es el estado de un paper trade. OPEN → CLOSED es la única transición.
type TradeStatus string

const (
	TradeOpen   TradeStatus = "OPEN"
	TradeClosed TradeStatus = "CLOSED"
)

// Trade es una posición simulada registrada por el ledger.
// Solo se modifica al cerrarse; ExitPrice, RealizedPnL y ClosedAt se fijan una única vez.
type Trade struct {
	ID          string
	MarketID    string
	MarketSlug  string
	Side        Side
	EntryPrice  decimal.Decimal
	Size        decimal.Decimal // USD
	Shares      decimal.Decimal
	SignalScore float64
	Reasoning   string
	OpenedAt    time.Time
	Status      TradeStatus

	ExitPrice   *decimal.Decimal
	RealizedPnL *decimal.Decimal
	ClosedAt    *time.Time
	CloseReason string
}

// IsOpen devuelve true si la posición sigue abierta.
func (t Trade) IsOpen() bool {
	return t.Status == TradeOpen
}

// ROIPercent devuelve el retorno realizado en %, o 0 si la posición sigue abierta.
func (t Trade) ROIPercent() float64 {
	if t.RealizedPnL == nil || t.Size.IsZero() {
		return 0
	}
	return t.RealizedPnL.Div(t.Size).Mul(decimal.NewFromInt(100)).InexactFloat64()
}
