package notify

import (
	"fmt"
	"time"

	"github.com/alejandrodnm/spikebot/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// ReportInput bundles everything PrintReport needs.
type ReportInput struct {
	Summary       domain.LedgerSummary
	OpenPositions []domain.Trade
	RecentClosed  []domain.Trade
	Journal       domain.JournalStats
	Now           time.Time
}

// PrintReport prints the paper ledger and journal report.
func (c *Console) PrintReport(in ReportInput) {
	s := in.Summary
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	fmt.Fprintf(c.out, "\n")
	fmt.Fprintf(c.out, "========================================================\n")
	fmt.Fprintf(c.out, "  PAPER TRADING REPORT (volume spike strategy)\n")
	if in.Journal.Cycles > 0 {
		fmt.Fprintf(c.out, "  %s to %s (%d cycles)\n",
			in.Journal.FirstCycle.Format("2006-01-02 15:04"),
			in.Journal.LastCycle.Format("2006-01-02 15:04"),
			in.Journal.Cycles)
	}
	fmt.Fprintf(c.out, "========================================================\n\n")

	fmt.Fprintf(c.out, "  --- ACCOUNT ---\n")
	fmt.Fprintf(c.out, "  Starting balance:      $%.2f\n", s.StartingBalance)
	fmt.Fprintf(c.out, "  Cash balance:          $%.2f\n", s.CashBalance)
	fmt.Fprintf(c.out, "  Open exposure:         $%.2f (%d positions)\n", s.OpenExposure, s.OpenPositions)
	fmt.Fprintf(c.out, "  Daily exposure:        $%.2f (%s UTC)\n", s.DailyExposure, s.ExposureDay)
	fmt.Fprintf(c.out, "  Realized PnL:          $%.2f (%.2f%% of start)\n", s.RealizedPnL, s.SessionROI)
	fmt.Fprintf(c.out, "  Trades:                %d (W %d / L %d, win rate %.1f%%)\n",
		s.TotalTrades, s.WinningTrades, s.LosingTrades, s.WinRate)

	if len(in.OpenPositions) > 0 {
		fmt.Fprintf(c.out, "\n  --- OPEN POSITIONS ---\n")
		tbl := tablewriter.NewWriter(c.out)
		tbl.Header("Market", "Side", "Entry", "Size", "Score", "Age")
		for _, t := range in.OpenPositions {
			tbl.Append(
				truncate(t.MarketSlug, 40),
				string(t.Side),
				t.EntryPrice.StringFixed(3),
				"$"+t.Size.StringFixed(2),
				fmt.Sprintf("%.1f", t.SignalScore),
				sinceLabel(t.OpenedAt, now),
			)
		}
		tbl.Render()
	}

	if len(in.RecentClosed) > 0 {
		fmt.Fprintf(c.out, "\n  --- RECENTLY CLOSED ---\n")
		tbl := tablewriter.NewWriter(c.out)
		tbl.Header("Market", "Side", "Entry", "Exit", "Size", "PnL", "ROI", "Reason")
		for _, t := range in.RecentClosed {
			exit, pnl := "-", "-"
			if t.ExitPrice != nil {
				exit = t.ExitPrice.StringFixed(3)
			}
			if t.RealizedPnL != nil {
				pnl = "$" + t.RealizedPnL.StringFixed(2)
			}
			tbl.Append(
				truncate(t.MarketSlug, 40),
				string(t.Side),
				t.EntryPrice.StringFixed(3),
				exit,
				"$"+t.Size.StringFixed(2),
				pnl,
				fmt.Sprintf("%+.1f%%", t.ROIPercent()),
				t.CloseReason,
			)
		}
		tbl.Render()
	}

	if len(in.Journal.Dailies) > 0 {
		fmt.Fprintf(c.out, "\n  --- DAILY ---\n")
		tbl := tablewriter.NewWriter(c.out)
		tbl.Header("Date", "Cycles", "Spikes", "Opened", "Closed", "Rejected", "PnL", "Cash")
		for _, d := range in.Journal.Dailies {
			tbl.Append(
				d.Date.Format("01-02"),
				fmt.Sprintf("%d", d.Cycles),
				fmt.Sprintf("%d", d.Signals),
				fmt.Sprintf("%d", d.TradesOpened),
				fmt.Sprintf("%d", d.TradesClosed),
				fmt.Sprintf("%d", d.Rejections),
				fmt.Sprintf("$%.2f", d.RealizedPnL),
				fmt.Sprintf("$%.2f", d.CashBalance),
			)
		}
		tbl.Render()
	}

	fmt.Fprintf(c.out, "\n  --- SIGNALS ---\n")
	fmt.Fprintf(c.out, "  Qualifying spikes:     %d\n", in.Journal.Signals)
	fmt.Fprintf(c.out, "  Trades opened:         %d\n", in.Journal.TradesOpened)
	fmt.Fprintf(c.out, "  Rejected by ledger:    %d\n", in.Journal.Rejections)
	fmt.Fprintf(c.out, "  Best score seen:       %.1f\n", in.Journal.BestScore)

	if s.TotalTrades == 0 {
		fmt.Fprintln(c.out, "\n  No paper trades yet. Leave the scanner running for a few hours.")
	}
	fmt.Fprintln(c.out)
}
