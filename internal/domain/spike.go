package domain

import "time"

// PriceLookback es la distancia temporal usada para el cambio de precio.
const PriceLookback = time.Hour

// Spike es la salida del detector para un mercado en un ciclo.
type Spike struct {
	SpikeRatio     float64
	PriceChange1h  float64 // en %
	BaselineVolume float64 // 0 si no hay baseline
	HasBaseline    bool
}

// DetectSpike calcula spike ratio y cambio de precio a 1h a partir de la ventana
// (que ya incluye a latest como último elemento).
//
// Sin historial suficiente degrada a valores neutros: ratio 1.0 y cambio 0.
func DetectSpike(window []Snapshot, latest Snapshot) Spike {
	sp := Spike{SpikeRatio: 1.0}

	if baseline, ok := BaselineVolume(window); ok && baseline > 0 {
		sp.SpikeRatio = latest.Volume24h / baseline
		sp.BaselineVolume = baseline
		sp.HasBaseline = true
	}

	sp.PriceChange1h = PriceChange(window, latest, PriceLookback)
	return sp
}

// PriceChange devuelve el cambio % entre latest.Price y el precio del snapshot más
// reciente que no sea posterior a latest.Timestamp - lookback. 0 si no existe o si
// ese precio de referencia es 0.
func PriceChange(window []Snapshot, latest Snapshot, lookback time.Duration) float64 {
	cutoff := latest.Timestamp.Add(-lookback)

	var ref *Snapshot
	for i := len(window) - 1; i >= 0; i-- {
		if !window[i].Timestamp.After(cutoff) {
			ref = &window[i]
			break
		}
	}
	if ref == nil || ref.Price == 0 {
		return 0
	}
	return (latest.Price - ref.Price) / ref.Price * 100
}
