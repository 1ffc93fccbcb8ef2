package history_test

import (
	"errors"
	"testing"
	"time"

	"github.com/alejandrodnm/spikebot/internal/domain"
	"github.com/alejandrodnm/spikebot/internal/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStorage struct {
	saved   map[string][]domain.Snapshot
	found   bool
	loadErr error
	saveErr error
	saves   int
}

func (m *mockStorage) LoadHistory() (map[string][]domain.Snapshot, bool, error) {
	return m.saved, m.found, m.loadErr
}

func (m *mockStorage) SaveHistory(h map[string][]domain.Snapshot) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = h
	m.found = true
	return nil
}

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func snap(id string, minutes int, vol float64) domain.Snapshot {
	return domain.Snapshot{MarketID: id, Timestamp: t0.Add(time.Duration(minutes) * time.Minute), Volume24h: vol, Price: 0.5}
}

func TestStore_RecordBatchPersistsOnce(t *testing.T) {
	st := &mockStorage{}
	s, err := history.New(st, 3)
	require.NoError(t, err)

	require.NoError(t, s.RecordBatch([]domain.Snapshot{snap("a", 0, 1), snap("b", 0, 2)}))
	assert.Equal(t, 1, st.saves)
	assert.Equal(t, 2, s.Markets())
	assert.Len(t, st.saved["a"], 1)
}

func TestStore_WindowIsBounded(t *testing.T) {
	s, err := history.New(nil, 3)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.NoError(t, s.Record(snap("a", i, float64(i))))
	}
	w := s.Window("a")
	require.Len(t, w, 3)
	assert.Equal(t, 9.0, w[2].Volume24h)

	b, ok := s.BaselineVolume("a")
	require.True(t, ok)
	assert.InDelta(t, 7.5, b, 1e-9)
}

func TestStore_PersistFailureRollsBack(t *testing.T) {
	st := &mockStorage{}
	s, err := history.New(st, 5)
	require.NoError(t, err)
	require.NoError(t, s.Record(snap("a", 0, 1)))

	st.saveErr = errors.New("disk full")
	err = s.RecordBatch([]domain.Snapshot{snap("a", 1, 2), snap("new", 1, 3)})
	require.Error(t, err)

	assert.Len(t, s.Window("a"), 1)
	assert.Nil(t, s.Window("new"))
	assert.Equal(t, 1, s.Markets())
}

func TestStore_LoadSortsAndTrims(t *testing.T) {
	st := &mockStorage{found: true, saved: map[string][]domain.Snapshot{
		"a": {snap("", 3, 3), snap("", 1, 1), snap("", 2, 2), snap("", 0, 0)},
	}}
	s, err := history.New(st, 3)
	require.NoError(t, err)

	w := s.Window("a")
	require.Len(t, w, 3)
	assert.Equal(t, []float64{1, 2, 3}, []float64{w[0].Volume24h, w[1].Volume24h, w[2].Volume24h})
	assert.Equal(t, "a", w[0].MarketID)
}

func TestStore_LoadErrorIsFatal(t *testing.T) {
	_, err := history.New(&mockStorage{loadErr: errors.New("corrupt")}, 3)
	assert.Error(t, err)
}

func TestStore_Detect(t *testing.T) {
	s, err := history.New(nil, 20)
	require.NoError(t, err)

	require.NoError(t, s.Record(snap("a", 0, 100_000)))
	require.NoError(t, s.Record(snap("a", 30, 100_000)))
	latest := snap("a", 60, 450_000)
	require.NoError(t, s.Record(latest))

	sp := s.Detect(latest)
	assert.InDelta(t, 4.5, sp.SpikeRatio, 1e-9)
}

func TestStore_Prune(t *testing.T) {
	st := &mockStorage{}
	s, err := history.New(st, 5)
	require.NoError(t, err)
	require.NoError(t, s.RecordBatch([]domain.Snapshot{snap("old", 0, 1), snap("fresh", 60*24*8, 1)}))

	removed, err := s.Prune(t0.Add(8*24*time.Hour), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Nil(t, s.Window("old"))
	assert.NotNil(t, s.Window("fresh"))
	assert.Equal(t, 2, st.saves)

	// nada que borrar: no persiste
	removed, err = s.Prune(t0.Add(8*24*time.Hour), 0)
	require.NoError(t, err)
	assert.Zero(t, removed)
	assert.Equal(t, 2, st.saves)
}

func TestStore_PruneFailureRestores(t *testing.T) {
	st := &mockStorage{}
	s, err := history.New(st, 5)
	require.NoError(t, err)
	require.NoError(t, s.Record(snap("old", 0, 1)))

	st.saveErr = errors.New("disk full")
	_, err = s.Prune(t0.Add(30*24*time.Hour), time.Hour)
	require.Error(t, err)
	assert.NotNil(t, s.Window("old"))
}
