package domain

import (
	"math"
	"time"
)

// MarketRecord es un mercado tal como lo devuelve la fuente upstream, antes de validar.
// Los campos vienen de una API débilmente tipada: se validan en la frontera de ingesta
// (scanner.ingest) y solo entonces se convierten en Snapshot.
type MarketRecord struct {
	MarketID  string `validate:"required"`
	Slug      string
	Question  string
	Volume24h float64 `validate:"gte=0"`
	// Price es el precio del outcome YES.
	Price     float64   `validate:"gte=0,lte=1"`
	Liquidity float64   `validate:"gte=0"`
	Timestamp time.Time `validate:"required"`

	// HoursToDeadline es +Inf si el mercado no tiene fecha de resolución.
	HoursToDeadline float64 `validate:"gte=0"`
	AcceptingOrders bool
	Closed          bool
}

// HasDeadline devuelve true si la fuente informó una fecha de resolución.
func (m MarketRecord) HasDeadline() bool {
	return !math.IsInf(m.HoursToDeadline, 1)
}

// Snapshot convierte el registro (ya validado) en el Snapshot inmutable que guarda el historial.
func (m MarketRecord) Snapshot() Snapshot {
	return Snapshot{
		MarketID:  m.MarketID,
		Timestamp: m.Timestamp.UTC(),
		Volume24h: m.Volume24h,
		Price:     m.Price,
		Liquidity: m.Liquidity,
	}
}

// Label devuelve el nombre legible del mercado: slug, pregunta o ID como último recurso.
func (m MarketRecord) Label() string {
	if m.Slug != "" {
		return m.Slug
	}
	return TruncateQuestion(m.Question, m.MarketID, 80)
}

// HoursUntil devuelve las horas entre now y end. Devuelve +Inf si end es cero
// y 0 si la fecha ya pasó.
func HoursUntil(end, now time.Time) float64 {
	if end.IsZero() {
		return math.Inf(1)
	}
	h := end.Sub(now).Hours()
	if h < 0 {
		return 0
	}
	return h
}

// TruncateQuestion devuelve la pregunta del mercado truncada a maxLen caracteres.
// Si la pregunta está vacía usa los primeros caracteres del marketID como fallback.
func TruncateQuestion(question, marketID string, maxLen int) string {
	q := question
	if q == "" {
		if len(marketID) > 20 {
			q = marketID[:20] + "..."
		} else {
			q = marketID
		}
	}
	if len(q) > maxLen {
		q = q[:maxLen-3] + "..."
	}
	return q
}
