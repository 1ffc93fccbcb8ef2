package history

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alejandrodnm/spikebot/internal/domain"
	"github.com/alejandrodnm/spikebot/internal/ports"
)

// DefaultRetention drops markets that have not been seen for a week.
const DefaultRetention = 7 * 24 * time.Hour

// Store keeps one bounded volume window per market and persists all of them after
// every write. The scanner loop is the only writer; readers get copies.
type Store struct {
	mu       sync.RWMutex
	capacity int
	windows  map[string]*domain.VolumeHistory
	storage  ports.HistoryStorage
}

// New loads the persisted windows (if any) and returns a ready store.
// storage may be nil for an in-memory store. A load error is returned as-is so the
// caller can decide to abort: history is never silently discarded.
func New(storage ports.HistoryStorage, capacity int) (*Store, error) {
	if capacity <= 0 {
		capacity = domain.DefaultHistoryWindow
	}
	s := &Store{
		capacity: capacity,
		windows:  make(map[string]*domain.VolumeHistory),
		storage:  storage,
	}
	if storage == nil {
		return s, nil
	}

	saved, found, err := storage.LoadHistory()
	if err != nil {
		return nil, fmt.Errorf("history.New: load: %w", err)
	}
	if !found {
		return s, nil
	}

	for marketID, snaps := range saved {
		sort.SliceStable(snaps, func(i, j int) bool { return snaps[i].Timestamp.Before(snaps[j].Timestamp) })
		w := domain.NewVolumeHistory(capacity)
		for _, snap := range snaps {
			snap.MarketID = marketID
			w.Append(snap)
		}
		if w.Len() > 0 {
			s.windows[marketID] = w
		}
	}
	slog.Info("volume history loaded", "markets", len(s.windows), "window", capacity)
	return s, nil
}

// Record appends one snapshot and persists.
func (s *Store) Record(snap domain.Snapshot) error {
	return s.RecordBatch([]domain.Snapshot{snap})
}

// RecordBatch appends a whole cycle of snapshots and persists once.
// If persisting fails every append of the batch is undone, so memory keeps
// matching what is on disk.
func (s *Store) RecordBatch(snaps []domain.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := make(map[string]*domain.VolumeHistory, len(snaps))
	for _, snap := range snaps {
		if _, saved := prev[snap.MarketID]; saved {
			continue
		}
		if w, ok := s.windows[snap.MarketID]; ok {
			prev[snap.MarketID] = w.Clone()
		} else {
			prev[snap.MarketID] = nil
		}
	}

	for _, snap := range snaps {
		w, ok := s.windows[snap.MarketID]
		if !ok {
			w = domain.NewVolumeHistory(s.capacity)
			s.windows[snap.MarketID] = w
		}
		if !w.Append(snap) {
			slog.Debug("history: out-of-order snapshot ignored",
				"market", snap.MarketID, "ts", snap.Timestamp)
		}
	}

	if err := s.persistLocked(); err != nil {
		for id, w := range prev {
			if w == nil {
				delete(s.windows, id)
			} else {
				s.windows[id] = w
			}
		}
		return fmt.Errorf("history.RecordBatch: %w", err)
	}
	return nil
}

// Window returns a copy of the market's current window, oldest first.
func (s *Store) Window(marketID string) []domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.windows[marketID]
	if !ok {
		return nil
	}
	return w.Snapshots()
}

// BaselineVolume returns the mean volume of every entry but the latest.
// ok=false while the market has fewer than two entries.
func (s *Store) BaselineVolume(marketID string) (float64, bool) {
	return domain.BaselineVolume(s.Window(marketID))
}

// Detect runs the spike detector for latest against the market's window.
// latest is expected to have been recorded already.
func (s *Store) Detect(latest domain.Snapshot) domain.Spike {
	return domain.DetectSpike(s.Window(latest.MarketID), latest)
}

// Prune removes markets whose newest snapshot is older than retention and
// persists if anything was removed.
func (s *Store) Prune(now time.Time, retention time.Duration) (int, error) {
	if retention <= 0 {
		retention = DefaultRetention
	}
	cutoff := now.Add(-retention)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := make(map[string]*domain.VolumeHistory)
	for id, w := range s.windows {
		latest, ok := w.Latest()
		if !ok || latest.Timestamp.Before(cutoff) {
			removed[id] = w
			delete(s.windows, id)
		}
	}
	if len(removed) == 0 {
		return 0, nil
	}

	if err := s.persistLocked(); err != nil {
		for id, w := range removed {
			s.windows[id] = w
		}
		return 0, fmt.Errorf("history.Prune: %w", err)
	}
	return len(removed), nil
}

// Markets returns how many markets currently have a window.
func (s *Store) Markets() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.windows)
}

// Capacity returns the per-market window size.
func (s *Store) Capacity() int {
	return s.capacity
}

func (s *Store) persistLocked() error {
	if s.storage == nil {
		return nil
	}
	out := make(map[string][]domain.Snapshot, len(s.windows))
	for id, w := range s.windows {
		out[id] = w.Snapshots()
	}
	return s.storage.SaveHistory(out)
}
