package scanner

import (
	"math"
	"testing"
	"time"

	"github.com/alejandrodnm/spikebot/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snap(id string, at time.Time, volume, price float64) domain.Snapshot {
	return domain.Snapshot{MarketID: id, Timestamp: at, Volume24h: volume, Price: price}
}

func TestAnalyzer_Analyze_Scenario(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	market := domain.MarketRecord{
		MarketID: "m1", Volume24h: 450_000, Price: 0.54, Timestamp: t0, HoursToDeadline: 18,
	}
	window := []domain.Snapshot{
		snap("m1", t0.Add(-2*time.Hour), 100_000, 0.48),
		snap("m1", t0.Add(-time.Hour), 100_000, 0.50),
		market.Snapshot(),
	}

	sig, err := NewAnalyzer(domain.DefaultThresholds()).Analyze(market, window)
	require.NoError(t, err)
	assert.InDelta(t, 4.5, sig.SpikeRatio, 1e-9)
	assert.InDelta(t, 8.0, sig.PriceChange1h, 1e-6)
	assert.InDelta(t, 74.5, sig.Score, 1e-6)
	assert.InDelta(t, 100_000.0, sig.BaselineVolume, 1e-9)
	assert.True(t, sig.Qualifies)
}

func TestAnalyzer_Analyze_UnknownDeadlineNeverQualifies(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	market := domain.MarketRecord{
		MarketID: "m1", Volume24h: 1_000_000, Price: 0.6, Timestamp: t0, HoursToDeadline: math.Inf(1),
	}
	window := []domain.Snapshot{
		snap("m1", t0.Add(-time.Hour), 100_000, 0.4),
		market.Snapshot(),
	}

	sig, err := NewAnalyzer(domain.DefaultThresholds()).Analyze(market, window)
	require.NoError(t, err)
	// 40 (volumen) + 30 (precio) + 0 (sin deadline)
	assert.InDelta(t, 70.0, sig.Score, 1e-9)
	assert.False(t, sig.Qualifies)
}

func TestAnalyzer_Analyze_StaleSnapshot(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	market := domain.MarketRecord{MarketID: "m1", Timestamp: t0.Add(-time.Hour)}
	window := []domain.Snapshot{snap("m1", t0, 100, 0.5)}

	_, err := NewAnalyzer(domain.DefaultThresholds()).Analyze(market, window)
	assert.Error(t, err)

	_, err = NewAnalyzer(domain.DefaultThresholds()).Analyze(market, nil)
	assert.Error(t, err)
}

func TestNewAnalyzer_KeepsZeroThresholds(t *testing.T) {
	th := domain.Thresholds{MinSignalScore: 0, MinSpikeRatio: 3, MinVolumeUSD: 0, MaxHoursToDeadline: 72}
	a := NewAnalyzer(th)
	assert.Equal(t, th, a.Thresholds())

	// spike 10x sobre solo $10k de volumen, 1h al deadline
	t0 := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	market := domain.MarketRecord{
		MarketID: "small", Volume24h: 10_000, Price: 0.5, Timestamp: t0, HoursToDeadline: 1,
	}
	window := []domain.Snapshot{
		snap("small", t0.Add(-30*time.Minute), 1_000, 0.5),
		market.Snapshot(),
	}

	sig, err := a.Analyze(market, window)
	require.NoError(t, err)
	assert.InDelta(t, 69.58, sig.Score, 0.01)
	assert.True(t, sig.Qualifies, "min_volume_usd=0 no debe sustituirse por el default")

	// con los umbrales por defecto el mismo mercado no califica por volumen
	sig, err = NewAnalyzer(domain.DefaultThresholds()).Analyze(market, window)
	require.NoError(t, err)
	assert.False(t, sig.Qualifies)
}

func TestFilter_Apply(t *testing.T) {
	in := []domain.SignalResult{
		{MarketID: "z", Score: 60, Qualifies: true},
		{MarketID: "b", Score: 80, Qualifies: true},
		{MarketID: "a", Score: 80, Qualifies: true},
		{MarketID: "x", Score: 99, Qualifies: false},
		{MarketID: "c", Score: 55, Qualifies: true},
	}

	out := NewFilter(3).Apply(in)
	require.Len(t, out, 3)
	assert.Equal(t, "a", out[0].MarketID)
	assert.Equal(t, "b", out[1].MarketID)
	assert.Equal(t, "z", out[2].MarketID)

	// la entrada no se reordena
	assert.Equal(t, "z", in[0].MarketID)
}

func TestFilter_Apply_NothingQualifies(t *testing.T) {
	out := NewFilter(0).Apply([]domain.SignalResult{{MarketID: "a", Score: 10}})
	assert.Empty(t, out)
}

func TestIngest_SortsAndRejects(t *testing.T) {
	now := time.Now()
	records := []domain.MarketRecord{
		{MarketID: "b", Price: 0.5, Timestamp: now, HoursToDeadline: math.Inf(1)},
		{MarketID: "a", Price: 0.5, Timestamp: now, HoursToDeadline: 5},
		{MarketID: "nan", Price: math.NaN(), Timestamp: now},
		{MarketID: "neg-hours", Price: 0.5, Timestamp: now, HoursToDeadline: -1},
	}

	valid, skipped := ingest(validator.New(), records)
	assert.Equal(t, 2, skipped)
	require.Len(t, valid, 2)
	assert.Equal(t, "a", valid[0].MarketID)
	assert.Equal(t, "b", valid[1].MarketID)
}
