package scanner

import (
	"fmt"

	"github.com/alejandrodnm/spikebot/internal/domain"
)

// Analyzer convierte la ventana de un mercado en una SignalResult puntuada.
type Analyzer struct {
	thresholds domain.Thresholds
}

// NewAnalyzer crea un Analyzer con los umbrales tal cual: 0 es un valor válido.
// Los valores por defecto vienen de config o de domain.DefaultThresholds.
func NewAnalyzer(th domain.Thresholds) *Analyzer {
	return &Analyzer{thresholds: th}
}

// Thresholds devuelve los umbrales efectivos.
func (a *Analyzer) Thresholds() domain.Thresholds {
	return a.thresholds
}

// Analyze detecta el spike de market contra su ventana y lo puntúa.
// window debe terminar en el snapshot de este ciclo; si no, el registro llegó
// desordenado y se descarta.
func (a *Analyzer) Analyze(market domain.MarketRecord, window []domain.Snapshot) (domain.SignalResult, error) {
	latest := market.Snapshot()
	if n := len(window); n == 0 || !window[n-1].Timestamp.Equal(latest.Timestamp) {
		return domain.SignalResult{}, fmt.Errorf("analyzer: stale snapshot for market %s", market.MarketID)
	}

	spike := domain.DetectSpike(window, latest)
	return domain.ScoreSignal(market.MarketID, spike, market.HoursToDeadline, market.Volume24h, a.thresholds), nil
}
