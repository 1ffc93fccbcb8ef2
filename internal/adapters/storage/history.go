package storage

import (
	"fmt"
	"time"

	"github.com/alejandrodnm/spikebot/internal/domain"
)

// HistoryFile implementa ports.HistoryStorage sobre un fichero JSON:
//
//	{"<market_id>": [{"timestamp": "...", "volume_24h": 0, "price": 0, "liquidity": 0}, ...]}
type HistoryFile struct {
	path string
}

// NewHistoryFile crea el adaptador para la ruta dada. El fichero se crea en el primer guardado.
func NewHistoryFile(path string) *HistoryFile {
	return &HistoryFile{path: path}
}

type snapshotJSON struct {
	Timestamp string  `json:"timestamp"`
	Volume24h float64 `json:"volume_24h"`
	Price     float64 `json:"price"`
	Liquidity float64 `json:"liquidity"`
}

// LoadHistory lee todas las ventanas. Un timestamp ilegible cuenta como estado corrupto.
func (h *HistoryFile) LoadHistory() (map[string][]domain.Snapshot, bool, error) {
	var raw map[string][]snapshotJSON
	found, err := readJSON(h.path, &raw)
	if err != nil || !found {
		return nil, found, err
	}

	out := make(map[string][]domain.Snapshot, len(raw))
	for marketID, snaps := range raw {
		list := make([]domain.Snapshot, 0, len(snaps))
		for i, s := range snaps {
			ts, err := parseTimestamp(s.Timestamp)
			if err != nil {
				return nil, true, fmt.Errorf("%w: %s[%d]: %v", ErrCorruptState, marketID, i, err)
			}
			list = append(list, domain.Snapshot{
				MarketID:  marketID,
				Timestamp: ts,
				Volume24h: s.Volume24h,
				Price:     s.Price,
				Liquidity: s.Liquidity,
			})
		}
		out[marketID] = list
	}
	return out, true, nil
}

// SaveHistory reemplaza el fichero atómicamente.
func (h *HistoryFile) SaveHistory(history map[string][]domain.Snapshot) error {
	raw := make(map[string][]snapshotJSON, len(history))
	for marketID, snaps := range history {
		list := make([]snapshotJSON, 0, len(snaps))
		for _, s := range snaps {
			list = append(list, snapshotJSON{
				Timestamp: s.Timestamp.UTC().Format(time.RFC3339Nano),
				Volume24h: s.Volume24h,
				Price:     s.Price,
				Liquidity: s.Liquidity,
			})
		}
		raw[marketID] = list
	}
	if err := writeJSONAtomic(h.path, raw); err != nil {
		return fmt.Errorf("storage.SaveHistory: %w", err)
	}
	return nil
}

// parseTimestamp acepta RFC3339 y el ISO-8601 sin zona que escriben otras herramientas
// (interpretado como UTC).
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.999999999",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable timestamp %q", s)
}
