package scanner

import (
	"sort"

	"github.com/alejandrodnm/spikebot/internal/domain"
)

// DefaultMaxTradesPerCycle es el máximo de señales que llegan al ledger por ciclo.
const DefaultMaxTradesPerCycle = 3

// Filter es el ranker: se queda con las señales que califican, las ordena y corta.
type Filter struct {
	maxPerCycle int
}

// NewFilter crea un Filter. maxPerCycle <= 0 usa DefaultMaxTradesPerCycle.
func NewFilter(maxPerCycle int) *Filter {
	if maxPerCycle <= 0 {
		maxPerCycle = DefaultMaxTradesPerCycle
	}
	return &Filter{maxPerCycle: maxPerCycle}
}

// Apply devuelve como mucho maxPerCycle señales calificadas, por score descendente
// y market_id ascendente en caso de empate. No modifica la entrada.
func (f *Filter) Apply(signals []domain.SignalResult) []domain.SignalResult {
	result := make([]domain.SignalResult, 0, len(signals))
	for _, s := range signals {
		if s.Qualifies {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		return result[i].MarketID < result[j].MarketID
	})
	if len(result) > f.maxPerCycle {
		result = result[:f.maxPerCycle]
	}
	return result
}
