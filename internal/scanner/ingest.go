package scanner

import (
	"log/slog"
	"sort"

	"github.com/alejandrodnm/spikebot/internal/domain"
	"github.com/go-playground/validator/v10"
)

// ingest es la frontera de validación: descarta los registros que no pasan las
// reglas de domain.MarketRecord y los market_id repetidos (gana el primero).
// Devuelve los válidos ordenados por market_id y cuántos se descartaron.
func ingest(v *validator.Validate, records []domain.MarketRecord) ([]domain.MarketRecord, int) {
	seen := make(map[string]bool, len(records))
	valid := make([]domain.MarketRecord, 0, len(records))
	skipped := 0

	for _, r := range records {
		if err := v.Struct(r); err != nil {
			slog.Debug("invalid market record skipped", "market", r.MarketID, "err", err)
			skipped++
			continue
		}
		if seen[r.MarketID] {
			slog.Debug("duplicate market record skipped", "market", r.MarketID)
			skipped++
			continue
		}
		seen[r.MarketID] = true
		valid = append(valid, r)
	}

	sort.Slice(valid, func(i, j int) bool { return valid[i].MarketID < valid[j].MarketID })
	return valid, skipped
}
