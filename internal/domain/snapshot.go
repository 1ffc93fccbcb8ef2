package domain

import "time"

// DefaultHistoryWindow es la capacidad por defecto del historial de cada mercado.
const DefaultHistoryWindow = 20

// Snapshot es una observación de volumen/precio de un mercado en un ciclo.
// Se crea una vez por mercado y ciclo y nunca se modifica.
type Snapshot struct {
	MarketID  string
	Timestamp time.Time
	Volume24h float64
	Price     float64
	Liquidity float64
}

// VolumeHistory es la ventana FIFO acotada de snapshots de un mercado,
// ordenada por timestamp ascendente.
type VolumeHistory struct {
	capacity  int
	snapshots []Snapshot
}

// NewVolumeHistory crea una ventana vacía. capacity <= 0 usa DefaultHistoryWindow.
func NewVolumeHistory(capacity int) *VolumeHistory {
	if capacity <= 0 {
		capacity = DefaultHistoryWindow
	}
	return &VolumeHistory{capacity: capacity, snapshots: make([]Snapshot, 0, capacity)}
}

// Append añade un snapshot y expulsa los más antiguos si se supera la capacidad.
// Un snapshot anterior al último registrado se ignora para no romper el orden;
// devuelve false en ese caso.
func (h *VolumeHistory) Append(s Snapshot) bool {
	if n := len(h.snapshots); n > 0 && s.Timestamp.Before(h.snapshots[n-1].Timestamp) {
		return false
	}
	h.snapshots = append(h.snapshots, s)
	if over := len(h.snapshots) - h.capacity; over > 0 {
		h.snapshots = append(h.snapshots[:0:0], h.snapshots[over:]...)
	}
	return true
}

// Len devuelve el número de snapshots en la ventana.
func (h *VolumeHistory) Len() int {
	return len(h.snapshots)
}

// Capacity devuelve la capacidad máxima de la ventana.
func (h *VolumeHistory) Capacity() int {
	return h.capacity
}

// Snapshots devuelve una copia de la ventana actual.
func (h *VolumeHistory) Snapshots() []Snapshot {
	out := make([]Snapshot, len(h.snapshots))
	copy(out, h.snapshots)
	return out
}

// Latest devuelve el snapshot más reciente.
func (h *VolumeHistory) Latest() (Snapshot, bool) {
	if len(h.snapshots) == 0 {
		return Snapshot{}, false
	}
	return h.snapshots[len(h.snapshots)-1], true
}

// Clone devuelve una copia independiente de la ventana.
func (h *VolumeHistory) Clone() *VolumeHistory {
	return &VolumeHistory{capacity: h.capacity, snapshots: h.Snapshots()}
}

// BaselineVolume devuelve la media de volume_24h de todos los snapshots salvo el último.
// ok=false si hay menos de 2 snapshots (baseline aún no establecido).
func (h *VolumeHistory) BaselineVolume() (baseline float64, ok bool) {
	return BaselineVolume(h.snapshots)
}

// BaselineVolume calcula el baseline sobre una ventana ordenada.
func BaselineVolume(window []Snapshot) (float64, bool) {
	if len(window) < 2 {
		return 0, false
	}
	prior := window[:len(window)-1]
	sum := 0.0
	for _, s := range prior {
		sum += s.Volume24h
	}
	return sum / float64(len(prior)), true
}
