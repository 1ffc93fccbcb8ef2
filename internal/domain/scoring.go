package domain

import "math"

const (
	maxVolumeScore   = 40.0
	maxPriceScore    = 30.0
	maxDeadlineScore = 30.0

	volumePointsPerX   = 8.0  // puntos por cada "x" de spike sobre 1
	pricePointsPerPct  = 3.0  // puntos por cada 1% de cambio de precio
	deadlineHorizonHrs = 72.0 // a partir de aquí la proximidad no puntúa
)

// Thresholds son los umbrales configurables que deciden si una señal califica.
type Thresholds struct {
	MinSignalScore     float64
	MinSpikeRatio      float64
	MinVolumeUSD       float64
	MaxHoursToDeadline float64
}

// DefaultThresholds devuelve los umbrales por defecto de la estrategia.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinSignalScore:     50,
		MinSpikeRatio:      3.0,
		MinVolumeUSD:       50_000,
		MaxHoursToDeadline: 72,
	}
}

// VolumeComponent: min(40, max(0, (ratio-1)*8)).
func VolumeComponent(spikeRatio float64) float64 {
	return math.Min(maxVolumeScore, math.Max(0, (spikeRatio-1)*volumePointsPerX))
}

// PriceComponent: min(30, |cambio %|*3).
func PriceComponent(priceChangePct float64) float64 {
	return math.Min(maxPriceScore, math.Abs(priceChangePct)*pricePointsPerPct)
}

// DeadlineComponent: max(0, (1 - h/72)*30). Vale 0 si h > 72 o si el deadline es desconocido
// (+Inf o NaN). Un deadline ya vencido (h <= 0) puntúa el máximo.
func DeadlineComponent(hoursToDeadline float64) float64 {
	if math.IsNaN(hoursToDeadline) || math.IsInf(hoursToDeadline, 0) || hoursToDeadline > deadlineHorizonHrs {
		return 0
	}
	if hoursToDeadline < 0 {
		hoursToDeadline = 0
	}
	return math.Max(0, (1-hoursToDeadline/deadlineHorizonHrs)*maxDeadlineScore)
}

// SignalScore combina los tres componentes y recorta el total a [0, 100].
// NaN en cualquier entrada cuenta como 0 para ese componente.
func SignalScore(spikeRatio, priceChangePct, hoursToDeadline float64) float64 {
	vol := VolumeComponent(spikeRatio)
	price := PriceComponent(priceChangePct)
	if math.IsNaN(vol) {
		vol = 0
	}
	if math.IsNaN(price) {
		price = 0
	}
	total := vol + price + DeadlineComponent(hoursToDeadline)
	return math.Min(100, math.Max(0, total))
}

// ScoreSignal es el scorer puro: mismas entradas, misma salida, sin efectos.
func ScoreSignal(marketID string, spike Spike, hoursToDeadline, absoluteVolume float64, th Thresholds) SignalResult {
	score := SignalScore(spike.SpikeRatio, spike.PriceChange1h, hoursToDeadline)

	qualifies := score >= th.MinSignalScore &&
		absoluteVolume >= th.MinVolumeUSD &&
		spike.SpikeRatio >= th.MinSpikeRatio &&
		hoursToDeadline <= th.MaxHoursToDeadline

	return SignalResult{
		MarketID:        marketID,
		SpikeRatio:      spike.SpikeRatio,
		PriceChange1h:   spike.PriceChange1h,
		HoursToDeadline: hoursToDeadline,
		BaselineVolume:  spike.BaselineVolume,
		Volume24h:       absoluteVolume,
		Score:           score,
		Qualifies:       qualifies,
	}
}

// RecommendedSize calcula el tamaño sugerido: base * (1 + score/100).
// El ledger vuelve a aplicar el tope max_position_usd.
func RecommendedSize(baseSizeUSD, score float64) float64 {
	return baseSizeUSD * (1 + score/100)
}
