package ports

import (
	"context"

	"github.com/alejandrodnm/spikebot/internal/domain"
)

// Notifier presenta el resultado de cada ciclo al usuario.
type Notifier interface {
	// NotifyCycle muestra señales, trades abiertos/cerrados y rechazos del ciclo.
	NotifyCycle(ctx context.Context, cycle domain.CycleSummary) error
}

// CycleMetrics recibe el resumen de cada ciclo para exportarlo como métricas.
type CycleMetrics interface {
	ObserveCycle(cycle domain.CycleSummary)
	ObserveSkippedCycle(reason string)
}
