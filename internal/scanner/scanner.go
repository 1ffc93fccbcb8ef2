package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/spikebot/internal/domain"
	"github.com/alejandrodnm/spikebot/internal/history"
	"github.com/alejandrodnm/spikebot/internal/ledger"
	"github.com/alejandrodnm/spikebot/internal/ports"
	"github.com/go-playground/validator/v10"
)

const (
	defaultBaseSizeUSD  = 1000.0
	closeReasonResolved = "resolved"
)

// Config contiene la configuración del scanner.
type Config struct {
	ScanInterval      time.Duration
	Thresholds        domain.Thresholds
	MaxTradesPerCycle int
	BaseSizeUSD       float64
	HistoryRetention  time.Duration
	DryRun            bool
}

// DefaultConfig devuelve una configuración sensata para producción.
func DefaultConfig() Config {
	return Config{
		ScanInterval:      30 * time.Second,
		Thresholds:        domain.DefaultThresholds(),
		MaxTradesPerCycle: DefaultMaxTradesPerCycle,
		BaseSizeUSD:       defaultBaseSizeUSD,
		HistoryRetention:  history.DefaultRetention,
	}
}

// Deps agrupa las dependencias del scanner. Journal, Notifier y Metrics son opcionales.
type Deps struct {
	Markets  ports.MarketProvider
	History  *history.Store
	Ledger   *ledger.Ledger
	Journal  ports.Journal
	Notifier ports.Notifier
	Metrics  ports.CycleMetrics
}

// Scanner es el orquestador del ciclo:
// fetch → ingest → history (append) → detect/score → cierre de resueltos → rank → ledger → history (prune).
// Es el único escritor del historial y del ledger.
type Scanner struct {
	cfg      Config
	deps     Deps
	analyzer *Analyzer
	filter   *Filter
	validate *validator.Validate
	now      func() time.Time
}

// New crea un Scanner con todas las dependencias inyectadas.
func New(cfg Config, deps Deps) *Scanner {
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = DefaultConfig().ScanInterval
	}
	if cfg.BaseSizeUSD <= 0 {
		cfg.BaseSizeUSD = defaultBaseSizeUSD
	}
	if cfg.HistoryRetention <= 0 {
		cfg.HistoryRetention = history.DefaultRetention
	}
	return &Scanner{
		cfg:      cfg,
		deps:     deps,
		analyzer: NewAnalyzer(cfg.Thresholds),
		filter:   NewFilter(cfg.MaxTradesPerCycle),
		validate: validator.New(),
		now:      time.Now,
	}
}

// Run ejecuta el loop de escaneo hasta que el contexto se cancele.
// Si cfg.DryRun está activo, solo ejecuta un ciclo y devuelve su error.
// Un ciclo en curso siempre termina de persistir antes de salir.
func (s *Scanner) Run(ctx context.Context) error {
	slog.Info("scanner starting",
		"interval", s.cfg.ScanInterval,
		"dry_run", s.cfg.DryRun,
		"min_score", s.analyzer.Thresholds().MinSignalScore,
		"max_trades_per_cycle", s.filter.maxPerCycle,
	)

	if _, err := s.runCycle(ctx); err != nil {
		slog.Error("scan cycle failed", "err", err)
		if s.cfg.DryRun {
			return err
		}
	}

	if s.cfg.DryRun {
		return nil
	}

	ticker := time.NewTicker(s.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("scanner stopped")
			return nil
		case <-ticker.C:
			if _, err := s.runCycle(ctx); err != nil {
				slog.Error("scan cycle failed", "err", err)
			}
		}
	}
}

// RunOnce ejecuta exactamente un ciclo, lo registra en el journal y lo notifica.
func (s *Scanner) RunOnce(ctx context.Context) (domain.CycleSummary, error) {
	return s.runCycle(ctx)
}

// runCycle ejecuta un ciclo completo y notifica/persiste los resultados.
func (s *Scanner) runCycle(ctx context.Context) (domain.CycleSummary, error) {
	summary, err := s.cycle(ctx)
	if err != nil {
		if s.deps.Metrics != nil {
			s.deps.Metrics.ObserveSkippedCycle(skipReason(err))
		}
		return summary, err
	}

	// El journal se escribe aunque el contexto ya esté cancelado.
	persistCtx := context.WithoutCancel(ctx)
	if s.deps.Journal != nil {
		if err := s.deps.Journal.SaveCycle(persistCtx, summary); err != nil {
			slog.Warn("journal error", "err", err)
		}
	}
	if s.deps.Notifier != nil {
		if err := s.deps.Notifier.NotifyCycle(persistCtx, summary); err != nil {
			slog.Warn("notifier error", "err", err)
		}
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.ObserveCycle(summary)
	}

	slog.Info("scan cycle complete",
		"markets", summary.Markets,
		"skipped", summary.Skipped,
		"qualifying", summary.Qualifying,
		"opened", len(summary.Opened),
		"closed", len(summary.Closed),
		"rejected", len(summary.Rejections),
		"cash", fmt.Sprintf("$%.2f", summary.CashBalance),
		"duration", summary.Duration.Round(time.Millisecond),
	)
	return summary, nil
}

// errFetch y errPersist clasifican por qué se abortó un ciclo.
var (
	errFetch   = errors.New("fetch failed")
	errPersist = errors.New("persist failed")
)

func skipReason(err error) string {
	switch {
	case errors.Is(err, errFetch):
		return "fetch"
	case errors.Is(err, errPersist):
		return "persist"
	default:
		return "other"
	}
}

// cycle hace fetch → ingest → record → score → close → rank → open → prune.
func (s *Scanner) cycle(ctx context.Context) (domain.CycleSummary, error) {
	start := s.now()
	summary := domain.CycleSummary{StartedAt: start.UTC()}

	records, err := s.deps.Markets.FetchMarkets(ctx)
	if err != nil {
		return summary, fmt.Errorf("scanner.cycle: %w: %w", errFetch, err)
	}
	summary.Markets = len(records)

	markets, skipped := ingest(s.validate, records)
	summary.Skipped = skipped

	snaps := make([]domain.Snapshot, len(markets))
	for i, m := range markets {
		snaps[i] = m.Snapshot()
	}
	if err := s.deps.History.RecordBatch(snaps); err != nil {
		return summary, fmt.Errorf("scanner.cycle: record history: %w: %w", errPersist, err)
	}

	byID := make(map[string]domain.MarketRecord, len(markets))
	for _, m := range markets {
		byID[m.MarketID] = m
		sig, err := s.analyzer.Analyze(m, s.deps.History.Window(m.MarketID))
		if err != nil {
			slog.Debug("analyze failed", "market", m.MarketID, "err", err)
			continue
		}
		summary.Signals = append(summary.Signals, sig)
		if sig.Qualifies {
			summary.Qualifying++
		}
	}

	closed, refused, err := s.closeResolved(byID)
	summary.Closed = closed
	summary.Rejections = append(summary.Rejections, refused...)
	if err != nil {
		return summary, err
	}

	for _, sig := range s.filter.Apply(summary.Signals) {
		opp := domain.NewOpportunity(sig, byID[sig.MarketID], s.cfg.BaseSizeUSD)
		trade, err := s.deps.Ledger.Open(ledger.RequestFromOpportunity(opp))

		var rej *ledger.RejectionError
		switch {
		case errors.As(err, &rej):
			slog.Info("paper open rejected", "market", sig.MarketID, "reason", rej.Reason, "detail", rej.Detail)
			summary.Rejections = append(summary.Rejections, rej.Rejection())
		case err != nil:
			return summary, fmt.Errorf("scanner.cycle: open %s: %w: %w", sig.MarketID, errPersist, err)
		default:
			summary.Opened = append(summary.Opened, trade)
		}
	}

	if n, err := s.deps.History.Prune(s.now(), s.cfg.HistoryRetention); err != nil {
		slog.Warn("history prune failed", "err", err)
	} else if n > 0 {
		slog.Info("history pruned", "markets", n)
	}

	summary.CashBalance = s.deps.Ledger.CashBalance().InexactFloat64()
	summary.Duration = s.now().Sub(start)
	return summary, nil
}

// closeResolved cierra las posiciones abiertas cuyo mercado viene cerrado o con el
// deadline ya vencido en este ciclo, al precio actual de su lado. Un cierre
// rechazado deja la posición abierta y no aborta el ciclo.
func (s *Scanner) closeResolved(markets map[string]domain.MarketRecord) ([]domain.Trade, []domain.Rejection, error) {
	var (
		closed  []domain.Trade
		refused []domain.Rejection
	)
	for _, pos := range s.deps.Ledger.OpenPositions() {
		m, ok := markets[pos.MarketID]
		if !ok || !(m.Closed || m.HoursToDeadline == 0) {
			continue
		}
		trade, err := s.deps.Ledger.Close(pos.MarketID, pos.Side.PriceFor(m.Price), closeReasonResolved)

		var rej *ledger.RejectionError
		switch {
		case errors.Is(err, ledger.ErrNothingToClose):
			continue
		case errors.As(err, &rej):
			slog.Warn("paper close rejected", "market", pos.MarketID, "reason", rej.Reason, "detail", rej.Detail)
			refused = append(refused, rej.Rejection())
		case err != nil:
			return closed, refused, fmt.Errorf("scanner.closeResolved: %s: %w: %w", pos.MarketID, errPersist, err)
		default:
			closed = append(closed, trade)
		}
	}
	return closed, refused, nil
}
