package ports

import (
	"context"

	"github.com/alejandrodnm/spikebot/internal/domain"
)

// Journal persiste el resumen de cada ciclo para reportes.
// No es la fuente de verdad del ledger: un fallo aquí no aborta el ciclo.
type Journal interface {
	// SaveCycle persiste el resumen del ciclo y las señales calificadas.
	SaveCycle(ctx context.Context, cycle domain.CycleSummary) error

	// GetStats devuelve los agregados del journal completo.
	GetStats(ctx context.Context) (domain.JournalStats, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}

// HistoryStorage persiste las ventanas de volumen de todos los mercados.
type HistoryStorage interface {
	// LoadHistory devuelve las ventanas guardadas. found=false si no hay estado previo.
	LoadHistory() (history map[string][]domain.Snapshot, found bool, err error)

	// SaveHistory reemplaza atómicamente el estado guardado.
	SaveHistory(history map[string][]domain.Snapshot) error
}
