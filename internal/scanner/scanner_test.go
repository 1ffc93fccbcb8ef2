package scanner_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alejandrodnm/spikebot/internal/domain"
	"github.com/alejandrodnm/spikebot/internal/history"
	"github.com/alejandrodnm/spikebot/internal/ledger"
	"github.com/alejandrodnm/spikebot/internal/scanner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

// mockMarketProvider devuelve un lote distinto en cada llamada; el último se repite.
type mockMarketProvider struct {
	batches [][]domain.MarketRecord
	calls   int
	err     error
}

func (m *mockMarketProvider) FetchMarkets(_ context.Context) ([]domain.MarketRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	i := m.calls
	if i >= len(m.batches) {
		i = len(m.batches) - 1
	}
	m.calls++
	return m.batches[i], nil
}

type mockNotifier struct {
	notified []domain.CycleSummary
	err      error
}

func (m *mockNotifier) NotifyCycle(_ context.Context, c domain.CycleSummary) error {
	m.notified = append(m.notified, c)
	return m.err
}

type mockJournal struct {
	saved []domain.CycleSummary
	err   error
}

func (m *mockJournal) SaveCycle(_ context.Context, c domain.CycleSummary) error {
	m.saved = append(m.saved, c)
	return m.err
}

func (m *mockJournal) GetStats(_ context.Context) (domain.JournalStats, error) {
	return domain.JournalStats{}, nil
}

func (m *mockJournal) Close() error { return nil }

type mockMetrics struct {
	cycles  int
	skipped []string
}

func (m *mockMetrics) ObserveCycle(domain.CycleSummary) { m.cycles++ }

func (m *mockMetrics) ObserveSkippedCycle(reason string) { m.skipped = append(m.skipped, reason) }

type failingHistoryStorage struct{}

func (failingHistoryStorage) LoadHistory() (map[string][]domain.Snapshot, bool, error) {
	return nil, false, nil
}

func (failingHistoryStorage) SaveHistory(map[string][]domain.Snapshot) error {
	return errors.New("disk full")
}

// --- helpers ---

type fixture struct {
	scanner  *scanner.Scanner
	provider *mockMarketProvider
	ledger   *ledger.Ledger
	history  *history.Store
	journal  *mockJournal
	notifier *mockNotifier
	metrics  *mockMetrics
}

func newFixture(t *testing.T, batches [][]domain.MarketRecord, lcfg ledger.Config) *fixture {
	t.Helper()
	h, err := history.New(nil, 20)
	require.NoError(t, err)
	l, err := ledger.New(nil, lcfg)
	require.NoError(t, err)

	f := &fixture{
		provider: &mockMarketProvider{batches: batches},
		ledger:   l,
		history:  h,
		journal:  &mockJournal{},
		notifier: &mockNotifier{},
		metrics:  &mockMetrics{},
	}
	f.scanner = scanner.New(scanner.DefaultConfig(), scanner.Deps{
		Markets:  f.provider,
		History:  h,
		Ledger:   l,
		Journal:  f.journal,
		Notifier: f.notifier,
		Metrics:  f.metrics,
	})
	return f
}

func record(id string, at time.Time, volume, price, hours float64) domain.MarketRecord {
	return domain.MarketRecord{
		MarketID:        id,
		Slug:            "slug-" + id,
		Volume24h:       volume,
		Price:           price,
		Liquidity:       10_000,
		Timestamp:       at,
		HoursToDeadline: hours,
		AcceptingOrders: true,
	}
}

// spikeBatches produce dos ciclos: baseline de 100k y luego 450k con +8% de precio.
func spikeBatches(base time.Time, ids ...string) [][]domain.MarketRecord {
	var first, second []domain.MarketRecord
	for _, id := range ids {
		first = append(first, record(id, base.Add(-time.Hour), 100_000, 0.50, 19))
		second = append(second, record(id, base, 450_000, 0.54, 18))
	}
	return [][]domain.MarketRecord{first, second}
}

func runCycles(t *testing.T, s *scanner.Scanner, n int) domain.CycleSummary {
	t.Helper()
	var last domain.CycleSummary
	for i := 0; i < n; i++ {
		var err error
		last, err = s.RunOnce(context.Background())
		require.NoError(t, err)
	}
	return last
}

// --- tests ---

func TestScanner_SpikeOpensPaperTrade(t *testing.T) {
	base := time.Now().UTC()
	f := newFixture(t, spikeBatches(base, "m1"), ledger.Config{})

	first := runCycles(t, f.scanner, 1)
	assert.Zero(t, first.Qualifying, "sin baseline no hay spike")
	require.Len(t, first.Signals, 1)
	assert.InDelta(t, 1.0, first.Signals[0].SpikeRatio, 1e-9)

	summary := runCycles(t, f.scanner, 1)
	require.Len(t, summary.Signals, 1)
	sig := summary.Signals[0]
	assert.InDelta(t, 4.5, sig.SpikeRatio, 1e-9)
	assert.InDelta(t, 8.0, sig.PriceChange1h, 1e-6)
	assert.InDelta(t, 74.5, sig.Score, 1e-6)
	assert.True(t, sig.Qualifies)

	require.Len(t, summary.Opened, 1)
	trade := summary.Opened[0]
	assert.Equal(t, domain.SideYes, trade.Side)
	assert.InDelta(t, 0.54, trade.EntryPrice.InexactFloat64(), 1e-9)
	assert.InDelta(t, 1745.0, trade.Size.InexactFloat64(), 1e-9)
	assert.InDelta(t, 10_000-1745.0, summary.CashBalance, 1e-9)

	assert.Len(t, f.journal.saved, 2)
	assert.Len(t, f.notifier.notified, 2)
	assert.Equal(t, 2, f.metrics.cycles)
}

func TestScanner_CapsTradesPerCycleByScore(t *testing.T) {
	base := time.Now().UTC()
	batches := spikeBatches(base, "d", "c", "b", "a")
	// "d" tiene un spike mayor y va primero; el resto empata y se ordena por market_id
	batches[1][0].Volume24h = 600_000
	f := newFixture(t, batches, ledger.Config{})

	summary := runCycles(t, f.scanner, 2)
	assert.Equal(t, 4, summary.Qualifying)
	require.Len(t, summary.Opened, 3)
	assert.Equal(t, "d", summary.Opened[0].MarketID)
	assert.Equal(t, "a", summary.Opened[1].MarketID)
	assert.Equal(t, "b", summary.Opened[2].MarketID)
	_, open := f.ledger.Position("c")
	assert.False(t, open)
}

func TestScanner_RejectionIsReportedNotFatal(t *testing.T) {
	base := time.Now().UTC()
	f := newFixture(t, spikeBatches(base, "m1"), ledger.Config{StartingBalance: 1000})

	summary := runCycles(t, f.scanner, 2)
	assert.Empty(t, summary.Opened)
	require.Len(t, summary.Rejections, 1)
	assert.Equal(t, ledger.ReasonInsufficientFunds, summary.Rejections[0].Reason)
	assert.InDelta(t, 1000.0, summary.CashBalance, 1e-9)
}

func TestScanner_SkipsInvalidRecords(t *testing.T) {
	now := time.Now().UTC()
	good := record("ok", now, 1000, 0.5, 10)
	badPrice := record("bad-price", now, 1000, 1.5, 10)
	noID := record("", now, 1000, 0.5, 10)
	negVolume := record("neg", now, -1, 0.5, 10)
	noTime := record("no-time", time.Time{}, 1000, 0.5, 10)
	dup := record("ok", now, 2000, 0.5, 10)

	f := newFixture(t, [][]domain.MarketRecord{{good, badPrice, noID, negVolume, noTime, dup}}, ledger.Config{})

	summary := runCycles(t, f.scanner, 1)
	assert.Equal(t, 6, summary.Markets)
	assert.Equal(t, 5, summary.Skipped)
	require.Len(t, summary.Signals, 1)
	assert.Equal(t, "ok", summary.Signals[0].MarketID)
	assert.InDelta(t, 1000.0, f.history.Window("ok")[0].Volume24h, 1e-9)
}

func TestScanner_ClosesResolvedPositions(t *testing.T) {
	base := time.Now().UTC()
	batches := spikeBatches(base, "m1")
	resolved := record("m1", base.Add(time.Minute), 450_000, 0.90, 0)
	resolved.Closed = true
	resolved.AcceptingOrders = false
	batches = append(batches, []domain.MarketRecord{resolved})

	f := newFixture(t, batches, ledger.Config{})
	runCycles(t, f.scanner, 2)
	require.Len(t, f.ledger.OpenPositions(), 1)

	summary := runCycles(t, f.scanner, 1)
	require.Len(t, summary.Closed, 1)
	closed := summary.Closed[0]
	assert.Equal(t, "resolved", closed.CloseReason)
	assert.InDelta(t, 0.90, closed.ExitPrice.InexactFloat64(), 1e-9)
	assert.True(t, closed.RealizedPnL.IsPositive())
	assert.Empty(t, f.ledger.OpenPositions())
}

func TestScanner_FetchErrorSkipsCycle(t *testing.T) {
	f := newFixture(t, nil, ledger.Config{})
	f.provider.err = errors.New("API down")

	_, err := f.scanner.RunOnce(context.Background())
	assert.Error(t, err)
	assert.Equal(t, []string{"fetch"}, f.metrics.skipped)
	assert.Empty(t, f.journal.saved)
}

func TestScanner_HistoryPersistFailureAbortsCycle(t *testing.T) {
	h, err := history.New(failingHistoryStorage{}, 20)
	require.NoError(t, err)
	l, err := ledger.New(nil, ledger.Config{})
	require.NoError(t, err)
	metrics := &mockMetrics{}

	now := time.Now().UTC()
	s := scanner.New(scanner.DefaultConfig(), scanner.Deps{
		Markets: &mockMarketProvider{batches: [][]domain.MarketRecord{{record("m1", now, 1000, 0.5, 10)}}},
		History: h,
		Ledger:  l,
		Metrics: metrics,
	})

	_, err = s.RunOnce(context.Background())
	assert.Error(t, err)
	assert.Equal(t, []string{"persist"}, metrics.skipped)
	assert.Zero(t, h.Markets(), "el append se deshace si no se pudo persistir")
	assert.Empty(t, l.Trades())
}

func TestScanner_JournalErrorDoesNotFailCycle(t *testing.T) {
	f := newFixture(t, [][]domain.MarketRecord{{record("m1", time.Now().UTC(), 1000, 0.5, 10)}}, ledger.Config{})
	f.journal.err = errors.New("db locked")

	_, err := f.scanner.RunOnce(context.Background())
	assert.NoError(t, err)
	assert.Len(t, f.notifier.notified, 1)
}

func TestScanner_Run_DryRun(t *testing.T) {
	f := newFixture(t, nil, ledger.Config{})
	f.provider.err = errors.New("API down")

	cfg := scanner.DefaultConfig()
	cfg.DryRun = true
	s := scanner.New(cfg, scanner.Deps{Markets: f.provider, History: f.history, Ledger: f.ledger})

	assert.Error(t, s.Run(context.Background()))
}

func TestScanner_Run_StopsOnCancel(t *testing.T) {
	f := newFixture(t, [][]domain.MarketRecord{{record("m1", time.Now().UTC(), 1000, 0.5, 10)}}, ledger.Config{})

	cfg := scanner.DefaultConfig()
	cfg.ScanInterval = time.Hour
	s := scanner.New(cfg, scanner.Deps{Markets: f.provider, History: f.history, Ledger: f.ledger})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// el primer ciclo corre antes de esperar al ticker
	require.Eventually(t, func() bool { return f.history.Markets() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
