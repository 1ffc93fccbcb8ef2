package polymarket

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/alejandrodnm/spikebot/internal/domain"
)

// mapGammaMarket convierte un gammaMarket DTO a domain.MarketRecord.
// No valida: los campos ausentes o ilegibles quedan como NaN para que la
// frontera de ingesta descarte el mercado.
func mapGammaMarket(gm gammaMarket, fetchedAt time.Time) domain.MarketRecord {
	id := gm.ID
	if id == "" {
		id = gm.ConditionID
	}

	r := domain.MarketRecord{
		MarketID:        id,
		Slug:            gm.Slug,
		Question:        gm.Question,
		Volume24h:       math.NaN(),
		Price:           yesPrice(gm),
		Timestamp:       fetchedAt,
		HoursToDeadline: domain.HoursUntil(endDate(gm), fetchedAt),
		AcceptingOrders: gm.AcceptingOrders && gm.Active && !gm.Closed,
		Closed:          gm.Closed,
	}
	if gm.Volume24h.Valid {
		r.Volume24h = gm.Volume24h.Value
	}
	if gm.Liquidity.Valid {
		r.Liquidity = gm.Liquidity.Value
	}
	return r
}

// yesPrice devuelve el precio del outcome YES: primer elemento de outcomePrices
// y, si no hay, el último precio negociado. NaN si no hay ninguno.
func yesPrice(gm gammaMarket) float64 {
	if gm.OutcomePrices != "" {
		var prices []string
		if err := json.Unmarshal([]byte(gm.OutcomePrices), &prices); err == nil && len(prices) > 0 {
			if p, err := strconv.ParseFloat(prices[0], 64); err == nil {
				return p
			}
		}
	}
	if gm.LastTradePrice.Valid {
		return gm.LastTradePrice.Value
	}
	return math.NaN()
}

// endDate parsea la fecha de resolución. Cero si no hay o no se entiende.
func endDate(gm gammaMarket) time.Time {
	for _, raw := range []string{gm.EndDate, gm.EndDateISO} {
		if raw == "" {
			continue
		}
		// Polymarket usa varios formatos; intentamos los más comunes
		for _, layout := range []string{
			time.RFC3339,
			"2006-01-02T15:04:05.000Z",
			"2006-01-02T15:04:05Z",
			"2006-01-02",
		} {
			if t, err := time.Parse(layout, raw); err == nil {
				return t.UTC()
			}
		}
	}
	return time.Time{}
}
