package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alejandrodnm/spikebot/internal/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLedger struct{ summary domain.LedgerSummary }

func (s stubLedger) Summary() domain.LedgerSummary { return s.summary }

func sampleCycle(at time.Time) domain.CycleSummary {
	return domain.CycleSummary{
		StartedAt:  at,
		Duration:   2 * time.Second,
		Markets:    10,
		Skipped:    2,
		Signals:    []domain.SignalResult{{Score: 40}, {Score: 74.5}},
		Qualifying: 1,
		Opened:     []domain.Trade{{MarketID: "a"}},
		Rejections: []domain.Rejection{
			{MarketID: "b", Reason: "insufficient_funds"},
			{MarketID: "c", Reason: "insufficient_funds"},
		},
		CashBalance: 8255,
	}
}

func TestRecorder_ObserveCycle(t *testing.T) {
	r := New()
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	r.ObserveCycle(sampleCycle(at))
	r.ObserveSkippedCycle("fetch")

	assert.Equal(t, 1.0, testutil.ToFloat64(r.cycles.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cycles.WithLabelValues("fetch")))
	assert.Equal(t, 10.0, testutil.ToFloat64(r.marketsSeen))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.marketsSkip))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.tradesOpened))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.rejections.WithLabelValues("insufficient_funds")))
	assert.Equal(t, 74.5, testutil.ToFloat64(r.bestScore))
	assert.Equal(t, 8255.0, testutil.ToFloat64(r.cashBalance))
	assert.Equal(t, at.Add(2*time.Second), r.LastCycle())
}

func TestServer_Metrics(t *testing.T) {
	r := New()
	r.ObserveCycle(sampleCycle(time.Now()))
	srv := NewServer(":0", r, stubLedger{}, 0)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `spikebot_cycles_total{result="ok"} 1`)
	assert.Contains(t, rec.Body.String(), "spikebot_cash_balance_usd 8255")
}

func TestServer_Health(t *testing.T) {
	r := New()
	srv := NewServer(":0", r, stubLedger{}, time.Minute)

	get := func() (int, healthResponse) {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		var body healthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		return rec.Code, body
	}

	code, body := get()
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "starting", body.Status)

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r.ObserveCycle(sampleCycle(at))

	srv.now = func() time.Time { return at.Add(30 * time.Second) }
	code, body = get()
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)

	srv.now = func() time.Time { return at.Add(10 * time.Minute) }
	code, body = get()
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "stale", body.Status)
}

func TestServer_Ledger(t *testing.T) {
	srv := NewServer(":0", New(), stubLedger{summary: domain.LedgerSummary{
		CashBalance: 9000, OpenPositions: 2, ExposureDay: "2025-06-01",
	}}, 0)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ledger", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.LedgerSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 9000.0, got.CashBalance)
	assert.Equal(t, 2, got.OpenPositions)
	assert.Equal(t, "2025-06-01", got.ExposureDay)
}
