package domain

import (
	"fmt"
	"math"
)

// SignalResult es el resultado efímero del scorer para un mercado en un ciclo.
// Nunca se persiste tal cual: solo llega al ledger si califica.
type SignalResult struct {
	MarketID        string
	SpikeRatio      float64
	PriceChange1h   float64
	HoursToDeadline float64
	BaselineVolume  float64
	Volume24h       float64
	Score           float64 // [0, 100]
	Qualifies       bool
}

// Opportunity es una señal calificada lista para el ledger, con el contexto del
// mercado necesario para decidir lado, precio y tamaño.
type Opportunity struct {
	Signal          SignalResult
	Market          MarketRecord
	Side            Side
	EntryPrice      float64
	RecommendedSize float64
	Reasoning       string
}

// NewOpportunity construye la oportunidad a partir de una señal y su mercado.
// Compra YES si el precio sube (o no se mueve) y NO si baja.
func NewOpportunity(sig SignalResult, market MarketRecord, baseSizeUSD float64) Opportunity {
	side := SideYes
	if sig.PriceChange1h < 0 {
		side = SideNo
	}
	return Opportunity{
		Signal:          sig,
		Market:          market,
		Side:            side,
		EntryPrice:      side.PriceFor(market.Price),
		RecommendedSize: RecommendedSize(baseSizeUSD, sig.Score),
		Reasoning:       Reasoning(sig),
	}
}

// Reasoning resume en una línea por qué se abrió la posición.
func Reasoning(sig SignalResult) string {
	dir := "up"
	if sig.PriceChange1h < 0 {
		dir = "down"
	}
	deadline := "no deadline"
	if !math.IsInf(sig.HoursToDeadline, 1) {
		deadline = fmt.Sprintf("deadline in %.1fh", sig.HoursToDeadline)
	}
	return fmt.Sprintf("Volume spike %.1fx ($%.0f vs $%.0f avg). Price %s %.1f%% in 1h. %s (proximity %.0f/30). Signal %.0f/100",
		sig.SpikeRatio, sig.Volume24h, sig.BaselineVolume,
		dir, math.Abs(sig.PriceChange1h),
		deadline, DeadlineComponent(sig.HoursToDeadline),
		sig.Score,
	)
}
