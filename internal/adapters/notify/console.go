package notify

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/alejandrodnm/spikebot/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// maxTableRows limita la tabla de señales a las de mayor score.
const maxTableRows = 15

// Console implementa ports.Notifier.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea un notificador que escribe a stdout.
// table=true imprime la tabla de señales de cada ciclo; si no, una sola línea.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// NotifyCycle imprime el ciclo en el modo configurado. Aperturas, cierres y
// rechazos se imprimen siempre.
func (c *Console) NotifyCycle(_ context.Context, cycle domain.CycleSummary) error {
	c.printCompact(cycle)
	if c.table && len(cycle.Signals) > 0 {
		c.printSignalTable(cycle.Signals)
	}
	c.printTrades(cycle)
	return nil
}

// printCompact imprime lo esencial en una línea.
func (c *Console) printCompact(cycle domain.CycleSummary) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %d mkts (%d skipped) → %d scored, %d spikes",
		cycle.StartedAt.Local().Format("15:04:05"),
		cycle.Markets, cycle.Skipped, len(cycle.Signals), cycle.Qualifying)

	if best, ok := topSignal(cycle.Signals); ok {
		fmt.Fprintf(&sb, " | best %s %.1fx %+.1f%% score %.1f",
			compactName(best.MarketID, 14), best.SpikeRatio, best.PriceChange1h, best.Score)
	}
	fmt.Fprintf(&sb, " | +%d open -%d closed | cash $%.2f",
		len(cycle.Opened), len(cycle.Closed), cycle.CashBalance)

	fmt.Fprintln(c.out, sb.String())
}

// printSignalTable imprime las señales del ciclo ordenadas por score.
func (c *Console) printSignalTable(signals []domain.SignalResult) {
	sorted := make([]domain.SignalResult, len(signals))
	copy(sorted, signals)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })
	if len(sorted) > maxTableRows {
		sorted = sorted[:maxTableRows]
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Market", "Vol 24h", "Baseline", "Spike", "Δp 1h", "Deadline", "Score", "Q")

	for i, s := range sorted {
		baseline := "-"
		if s.BaselineVolume > 0 {
			baseline = fmt.Sprintf("$%.0f", s.BaselineVolume)
		}
		q := ""
		if s.Qualifies {
			q = "✓"
		}
		table.Append(
			fmt.Sprintf("%d", i+1),
			truncate(s.MarketID, 24),
			fmt.Sprintf("$%.0f", s.Volume24h),
			baseline,
			fmt.Sprintf("%.2fx", s.SpikeRatio),
			fmt.Sprintf("%+.1f%%", s.PriceChange1h),
			deadlineLabel(s.HoursToDeadline),
			fmt.Sprintf("%.1f", s.Score),
			q,
		)
	}

	table.Render()
	fmt.Fprintln(c.out, "  Score = volumen (≤40) + precio (≤30) + deadline (≤30) | Q = califica")
}

// printTrades imprime los movimientos del ledger del ciclo.
func (c *Console) printTrades(cycle domain.CycleSummary) {
	for _, t := range cycle.Opened {
		fmt.Fprintf(c.out, "  >> OPEN  %s %s @ %s  $%s  score %.1f\n",
			truncate(t.MarketSlug, 40), t.Side, t.EntryPrice.StringFixed(3), t.Size.StringFixed(2), t.SignalScore)
		if t.Reasoning != "" {
			fmt.Fprintf(c.out, "     %s\n", t.Reasoning)
		}
	}
	for _, t := range cycle.Closed {
		exit, pnl := "-", "-"
		if t.ExitPrice != nil {
			exit = t.ExitPrice.StringFixed(3)
		}
		if t.RealizedPnL != nil {
			pnl = t.RealizedPnL.StringFixed(2)
		}
		fmt.Fprintf(c.out, "  << CLOSE %s %s @ %s  pnl $%s (%+.1f%%) [%s]\n",
			truncate(t.MarketSlug, 40), t.Side, exit, pnl, t.ROIPercent(), t.CloseReason)
	}
	for _, r := range cycle.Rejections {
		fmt.Fprintf(c.out, "  !! REJECT %s: %s (%s)\n", r.MarketID, r.Reason, r.Detail)
	}
}

// --- helpers ---

func topSignal(signals []domain.SignalResult) (domain.SignalResult, bool) {
	if len(signals) == 0 {
		return domain.SignalResult{}, false
	}
	best := signals[0]
	for _, s := range signals[1:] {
		if s.Score > best.Score {
			best = s
		}
	}
	return best, true
}

func deadlineLabel(hours float64) string {
	if math.IsInf(hours, 1) {
		return "-"
	}
	if hours >= 48 {
		return fmt.Sprintf("%.1fd", hours/24)
	}
	return fmt.Sprintf("%.1fh", hours)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func compactName(s string, n int) string {
	return truncate(strings.TrimSpace(s), n)
}

func sinceLabel(t time.Time, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Hour:
		return fmt.Sprintf("%.0fm", d.Minutes())
	case d < 48*time.Hour:
		return fmt.Sprintf("%.1fh", d.Hours())
	default:
		return fmt.Sprintf("%.1fd", d.Hours()/24)
	}
}
