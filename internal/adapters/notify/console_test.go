package notify_test

import (
	"bytes"
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/alejandrodnm/spikebot/internal/adapters/notify"
	"github.com/alejandrodnm/spikebot/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeCycle() domain.CycleSummary {
	pnl := decimal.RequireFromString("-12.5")
	exit := decimal.RequireFromString("0.45")
	return domain.CycleSummary{
		StartedAt: time.Now(),
		Markets:   120,
		Skipped:   3,
		Signals: []domain.SignalResult{
			{MarketID: "fed-cut-rates", Volume24h: 450_000, BaselineVolume: 100_000, SpikeRatio: 4.5,
				PriceChange1h: 8, HoursToDeadline: 18, Score: 74.5, Qualifies: true},
			{MarketID: "snow-in-madrid", Volume24h: 1200, SpikeRatio: 1, HoursToDeadline: math.Inf(1), Score: 0},
		},
		Qualifying: 1,
		Opened: []domain.Trade{{
			MarketSlug: "fed-cut-rates", Side: domain.SideYes, EntryPrice: decimal.RequireFromString("0.54"),
			Size: decimal.NewFromInt(1745), SignalScore: 74.5, Reasoning: "Volume spike 4.5x",
		}},
		Closed: []domain.Trade{{
			MarketSlug: "old-market", Side: domain.SideNo, EntryPrice: decimal.RequireFromString("0.5"),
			Size: decimal.NewFromInt(100), ExitPrice: &exit, RealizedPnL: &pnl, CloseReason: "resolved",
		}},
		Rejections:  []domain.Rejection{{MarketID: "other", Reason: "insufficient_funds", Detail: "need $1745.00"}},
		CashBalance: 8255,
	}
}

func TestConsole_NotifyCycle_Compact(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	require.NoError(t, n.NotifyCycle(context.Background(), makeCycle()))

	out := buf.String()
	assert.Contains(t, out, "120 mkts (3 skipped)")
	assert.Contains(t, out, "1 spikes")
	assert.Contains(t, out, "score 74.5")
	assert.Contains(t, out, "cash $8255.00")
	assert.Contains(t, out, "OPEN  fed-cut-rates YES @ 0.540  $1745.00")
	assert.Contains(t, out, "Volume spike 4.5x")
	assert.Contains(t, out, "pnl $-12.50")
	assert.Contains(t, out, "REJECT other: insufficient_funds")
	assert.NotContains(t, out, "snow-in-madrid", "la tabla solo sale con table=true")
}

func TestConsole_NotifyCycle_Table(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, true)

	require.NoError(t, n.NotifyCycle(context.Background(), makeCycle()))

	out := buf.String()
	assert.Contains(t, out, "snow-in-madrid")
	assert.Contains(t, out, "4.50x")
	assert.Contains(t, out, "18.0h")
	// la de mayor score va primero
	assert.Less(t, strings.Index(out, "$450000"), strings.Index(out, "$1200"))
}

func TestConsole_NotifyCycle_Empty(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, true)

	require.NoError(t, n.NotifyCycle(context.Background(), domain.CycleSummary{StartedAt: time.Now()}))
	assert.Contains(t, buf.String(), "0 mkts")
}

func TestConsole_PrintReport(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	now := time.Now()
	cycle := makeCycle()
	n.PrintReport(notify.ReportInput{
		Summary: domain.LedgerSummary{
			StartingBalance: 10_000, CashBalance: 8255, OpenExposure: 1745, OpenPositions: 1,
			TotalTrades: 2, LosingTrades: 1, RealizedPnL: -12.5, ExposureDay: "2025-06-01",
		},
		OpenPositions: []domain.Trade{func() domain.Trade { t := cycle.Opened[0]; t.OpenedAt = now.Add(-2 * time.Hour); return t }()},
		RecentClosed:  cycle.Closed,
		Journal: domain.JournalStats{
			Cycles: 10, Signals: 3, TradesOpened: 2, BestScore: 74.5,
			Dailies: []domain.DailySummary{{Date: now, Cycles: 10, Signals: 3, CashBalance: 8255}},
		},
		Now: now,
	})

	out := buf.String()
	assert.Contains(t, out, "PAPER TRADING REPORT")
	assert.Contains(t, out, "$8255.00")
	assert.Contains(t, out, "fed-cut-rates")
	assert.Contains(t, out, "2.0h")
	assert.Contains(t, out, "old-market")
	assert.Contains(t, out, "Best score seen:       74.5")
	assert.NotContains(t, out, "No paper trades yet")
}

func TestConsole_PrintReport_Empty(t *testing.T) {
	var buf bytes.Buffer
	notify.NewConsoleWriter(&buf, false).PrintReport(notify.ReportInput{})
	assert.Contains(t, buf.String(), "No paper trades yet")
}
