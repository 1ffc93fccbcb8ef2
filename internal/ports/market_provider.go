package ports

import (
	"context"

	"github.com/alejandrodnm/spikebot/internal/domain"
)

// MarketProvider obtiene los mercados activos con volumen, precio y deadline.
type MarketProvider interface {
	// FetchMarkets devuelve un registro por mercado, sellado con el instante del fetch.
	// Pagina automáticamente. Los registros no están validados: el scanner los filtra.
	FetchMarkets(ctx context.Context) ([]domain.MarketRecord, error)
}
