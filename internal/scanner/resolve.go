package scanner

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/spikebot/internal/domain"
	"github.com/alejandrodnm/spikebot/internal/history"
	"github.com/alejandrodnm/spikebot/internal/ledger"
)

// CloseReasonManual marca las posiciones cerradas a mano con -resolve.
const CloseReasonManual = "manual_resolve"

// ResolveOpen cierra todas las posiciones abiertas al último precio visto en el
// historial, mapeado al lado de cada posición. Las posiciones sin historial o con
// un precio inválido se dejan abiertas y se cuentan en unpriced.
func ResolveOpen(h *history.Store, l *ledger.Ledger) (closed []domain.Trade, unpriced int, err error) {
	for _, pos := range l.OpenPositions() {
		window := h.Window(pos.MarketID)
		if len(window) == 0 {
			slog.Warn("resolve: no price seen, position left open", "market", pos.MarketID)
			unpriced++
			continue
		}
		last := window[len(window)-1]

		t, err := l.Close(pos.MarketID, pos.Side.PriceFor(last.Price), CloseReasonManual)
		if errors.Is(err, ledger.ErrNothingToClose) {
			continue
		}
		var rej *ledger.RejectionError
		if errors.As(err, &rej) {
			slog.Warn("resolve: close rejected, position left open", "market", pos.MarketID, "detail", rej.Detail)
			unpriced++
			continue
		}
		if err != nil {
			return closed, unpriced, fmt.Errorf("scanner.ResolveOpen: %s: %w", pos.MarketID, err)
		}
		closed = append(closed, t)
	}
	return closed, unpriced, nil
}
