package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/alejandrodnm/spikebot/internal/domain"
	"github.com/alejandrodnm/spikebot/internal/ledger"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del bot.
type Config struct {
	// PaperTrading debe ser true: el modo live no existe.
	PaperTrading bool          `yaml:"paper_trading" default:"true"`
	DataDir      string        `yaml:"data_dir" default:"data" validate:"required"`
	Scanner      ScannerConfig `yaml:"scanner"`
	Ledger       LedgerConfig  `yaml:"ledger"`
	Journal      JournalConfig `yaml:"journal"`
	API          APIConfig     `yaml:"api"`
	Metrics      MetricsConfig `yaml:"metrics"`
	Log          LogConfig     `yaml:"log"`
}

// ScannerConfig controla la detección de spikes y el ciclo.
type ScannerConfig struct {
	CheckIntervalSeconds  int     `yaml:"check_interval_seconds" default:"30" validate:"gte=1"`
	MinSpikeRatio         float64 `yaml:"min_spike_ratio" default:"3" validate:"gte=1"`
	MinVolumeUSD          float64 `yaml:"min_volume_usd" default:"50000" validate:"gte=0"`
	MaxHoursToDeadline    float64 `yaml:"max_hours_to_deadline" default:"72" validate:"gt=0"`
	MinSignalScore        float64 `yaml:"min_signal_score" default:"50" validate:"gte=0,lte=100"`
	MaxTradesPerCycle     int     `yaml:"max_trades_per_cycle" default:"3" validate:"gte=1"`
	BaseSizeUSD           float64 `yaml:"base_size_usd" default:"1000" validate:"gt=0"`
	HistoryWindow         int     `yaml:"history_window" default:"20" validate:"gte=2"`
	HistoryRetentionHours int     `yaml:"history_retention_hours" default:"168" validate:"gte=1"`
}

// LedgerConfig son los límites del paper ledger.
type LedgerConfig struct {
	StartingBalance     float64 `yaml:"starting_balance" default:"10000" validate:"gt=0"`
	MaxPositionUSD      float64 `yaml:"max_position_usd" default:"5000" validate:"gt=0"`
	MaxDailyExposureUSD float64 `yaml:"max_daily_exposure_usd" default:"50000" validate:"gtefield=MaxPositionUSD"`
}

// JournalConfig controla el journal SQLite. DSN vacío = <data_dir>/spikebot.db.
type JournalConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// APIConfig contiene el endpoint de Gamma y la paginación.
type APIConfig struct {
	GammaBase  string `yaml:"gamma_base" default:"https://gamma-api.polymarket.com" validate:"required,url"`
	PageLimit  int    `yaml:"page_limit" default:"500" validate:"gte=1,lte=1000"`
	MaxMarkets int    `yaml:"max_markets" default:"2000" validate:"gte=1"`
}

// MetricsConfig controla el servidor HTTP de estado.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr" default:"127.0.0.1:9108"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"text" validate:"oneof=text json"`
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Orden: defaults → YAML → variables de entorno → validación.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: defaults: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// Validate comprueba los rangos de todos los campos.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ScanInterval devuelve el intervalo de escaneo como time.Duration.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.Scanner.CheckIntervalSeconds) * time.Second
}

// HistoryRetention devuelve cuánto se conserva un mercado sin actualizaciones.
func (c *Config) HistoryRetention() time.Duration {
	return time.Duration(c.Scanner.HistoryRetentionHours) * time.Hour
}

// Thresholds devuelve los umbrales de calificación del scorer.
func (c *Config) Thresholds() domain.Thresholds {
	return domain.Thresholds{
		MinSignalScore:     c.Scanner.MinSignalScore,
		MinSpikeRatio:      c.Scanner.MinSpikeRatio,
		MinVolumeUSD:       c.Scanner.MinVolumeUSD,
		MaxHoursToDeadline: c.Scanner.MaxHoursToDeadline,
	}
}

// LedgerLimits devuelve la configuración del paper ledger.
func (c *Config) LedgerLimits() ledger.Config {
	return ledger.Config{
		StartingBalance:     c.Ledger.StartingBalance,
		MaxPositionUSD:      c.Ledger.MaxPositionUSD,
		MaxDailyExposureUSD: c.Ledger.MaxDailyExposureUSD,
	}
}

// HistoryPath es el archivo JSON de ventanas de volumen.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.DataDir, "volume_history.json")
}

// LedgerPath es el archivo JSON del ledger y el trade log.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.DataDir, "paper_ledger.json")
}

// JournalDSN devuelve el DSN del journal, derivado de data_dir si no se configuró.
func (c *Config) JournalDSN() string {
	if c.Journal.DSN != "" {
		return c.Journal.DSN
	}
	return filepath.Join(c.DataDir, "spikebot.db")
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("PAPER_TRADING"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PAPER_TRADING=%q: %w", v, err)
		}
		cfg.PaperTrading = b
	}
	if v := os.Getenv("SPIKEBOT_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("GAMMA_API_BASE"); v != "" {
		cfg.API.GammaBase = v
	}
	return nil
}
