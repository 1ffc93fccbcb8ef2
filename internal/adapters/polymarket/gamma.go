package polymarket

// gamma.go: listado de mercados activos de Gamma.
//
// GET /markets?active=true&closed=false pagina con limit/offset. Se pide ordenado por
// volumen 24h descendente, así el tope maxMarkets recorta los mercados menos activos.

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/alejandrodnm/spikebot/internal/domain"
)

const gammaMarketsPath = "/markets"

// FetchMarkets devuelve un registro por mercado activo, todos sellados con el
// mismo instante. Si falla la primera página devuelve error; si falla una
// posterior, devuelve lo obtenido hasta ese punto.
func (c *Client) FetchMarkets(ctx context.Context) ([]domain.MarketRecord, error) {
	fetchedAt := c.now().UTC()
	var all []domain.MarketRecord

	for offset := 0; offset < c.maxMarkets; offset += c.pageLimit {
		limit := min(c.pageLimit, c.maxMarkets-offset)

		var page gammaMarketsResponse
		if err := c.get(ctx, c.gammaLimiter, c.marketsURL(limit, offset), &page); err != nil {
			if offset == 0 {
				return nil, fmt.Errorf("gamma.FetchMarkets: %w", err)
			}
			slog.Warn("gamma page failed, using partial result",
				"offset", offset,
				"fetched", len(all),
				"err", err,
			)
			break
		}

		for i, raw := range page {
			var gm gammaMarket
			if err := json.Unmarshal(raw, &gm); err != nil {
				slog.Warn("gamma market skipped: malformed",
					"offset", offset+i,
					"err", err,
				)
				continue
			}
			all = append(all, mapGammaMarket(gm, fetchedAt))
		}

		slog.Debug("fetched gamma markets page",
			"offset", offset,
			"count", len(page),
			"total", len(all),
		)

		if len(page) < limit {
			break
		}
	}

	slog.Info("gamma markets fetched", "total", len(all))
	return all, nil
}

func (c *Client) marketsURL(limit, offset int) string {
	q := url.Values{}
	q.Set("active", "true")
	q.Set("closed", "false")
	q.Set("order", "volume24hr")
	q.Set("ascending", "false")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	return c.gammaBase + gammaMarketsPath + "?" + q.Encode()
}
