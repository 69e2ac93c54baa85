package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom log forwarding configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// BudgetConfig defines spend ceilings and alerting thresholds.
// Limits are USD amounts; thresholds are utilization ratios in (0,1].
type BudgetConfig struct {
	PerCallCostUSD    float64
	DailyLimitUSD     float64
	WeeklyLimitUSD    float64
	MonthlyLimitUSD   float64
	WarningThreshold  float64
	CriticalThreshold float64
}

// AnalysisConfig tunes scoring and page selection.
type AnalysisConfig struct {
	ComplexityThreshold float64
	MaxPages            int
	MinPages            int
	RenderDPI           int
	RenderMaxDimension  int
	RenderJPEGQuality   int
}

// ProviderModels defines the model pair for a provider.
type ProviderModels struct {
	Primary   string
	Secondary string
}

// AnalyzerConfig defines vision analyzer engines and models.
type AnalyzerConfig struct {
	PrimaryEngine   string // "anthropic"|"openai"
	SecondaryEngine string // "openai"|"anthropic"
	OpenAI          ProviderModels
	Anthropic       ProviderModels
	MaxTokens       int
}

// WorkerConfig bounds pipeline concurrency and per-call timeouts.
type WorkerConfig struct {
	Concurrency    int
	RequestTimeout time.Duration
}

// ServerConfig defines the HTTP listener.
type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
}

// Config is the top-level configuration.
type Config struct {
	Logging  LoggingConfig
	Axiom    AxiomConfig
	Budget   BudgetConfig
	Analysis AnalysisConfig
	Analyzer AnalyzerConfig
	Worker   WorkerConfig
	Server   ServerConfig
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/deckscope.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_deckscope",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.Budget = BudgetConfig{
		PerCallCostUSD:    parseFloat(getEnv("BUDGET_PER_CALL_COST_USD", "0.00765"), 0.00765),
		DailyLimitUSD:     parseFloat(getEnv("BUDGET_DAILY_LIMIT_USD", "5.00"), 5.00),
		WeeklyLimitUSD:    parseFloat(getEnv("BUDGET_WEEKLY_LIMIT_USD", "25.00"), 25.00),
		MonthlyLimitUSD:   parseFloat(getEnv("BUDGET_MONTHLY_LIMIT_USD", "80.00"), 80.00),
		WarningThreshold:  parseFloat(getEnv("BUDGET_WARNING_THRESHOLD", "0.80"), 0.80),
		CriticalThreshold: parseFloat(getEnv("BUDGET_CRITICAL_THRESHOLD", "0.95"), 0.95),
	}

	cfg.Analysis = AnalysisConfig{
		ComplexityThreshold: parseFloat(getEnv("COMPLEXITY_THRESHOLD", "0.6"), 0.6),
		MaxPages:            parseInt(getEnv("MAX_VISUAL_PAGES", "7"), 7),
		MinPages:            parseInt(getEnv("MIN_VISUAL_PAGES", "3"), 3),
		RenderDPI:           parseInt(getEnv("RENDER_DPI", "150"), 150),
		RenderMaxDimension:  parseInt(getEnv("RENDER_MAX_DIMENSION", "2048"), 2048),
		RenderJPEGQuality:   parseInt(getEnv("RENDER_JPEG_QUALITY", "85"), 85),
	}

	cfg.Analyzer = AnalyzerConfig{
		PrimaryEngine:   getEnv("PRIMARY_ENGINE", "anthropic"),
		SecondaryEngine: getEnv("SECONDARY_ENGINE", "openai"),
		OpenAI: ProviderModels{
			Primary:   getEnv("OPENAI_PRIMARY_MODEL", "gpt-4o"),
			Secondary: getEnv("OPENAI_SECONDARY_MODEL", "gpt-4o-mini"),
		},
		Anthropic: ProviderModels{
			Primary:   getEnv("ANTHROPIC_PRIMARY_MODEL", "claude-3-5-sonnet-20241022"),
			Secondary: getEnv("ANTHROPIC_SECONDARY_MODEL", "claude-3-haiku-20240307"),
		},
		MaxTokens: parseInt(getEnv("ANALYZER_MAX_TOKENS", "1536"), 1536),
	}

	cfg.Worker = WorkerConfig{
		Concurrency:    parseInt(getEnv("WORKER_CONCURRENCY", "4"), 4),
		RequestTimeout: parseDuration(getEnv("REQUEST_TIMEOUT", "60s"), 60*time.Second),
	}

	cfg.Server = ServerConfig{
		Port:            getEnv("PORT", "8080"),
		ShutdownTimeout: parseDuration(getEnv("SHUTDOWN_TIMEOUT", "10s"), 10*time.Second),
	}

	return cfg
}

// Validate rejects contract-violating configuration. These indicate a
// misconfigured deployment, not a runtime condition, so they are hard errors.
func (c Config) Validate() error {
	if c.Analysis.MaxPages <= 0 || c.Analysis.MinPages <= 0 {
		return fmt.Errorf("page counts must be positive: max=%d min=%d", c.Analysis.MaxPages, c.Analysis.MinPages)
	}
	if c.Analysis.MaxPages < c.Analysis.MinPages {
		return fmt.Errorf("MAX_VISUAL_PAGES (%d) < MIN_VISUAL_PAGES (%d)", c.Analysis.MaxPages, c.Analysis.MinPages)
	}
	if c.Budget.PerCallCostUSD <= 0 {
		return fmt.Errorf("per-call cost must be positive: %f", c.Budget.PerCallCostUSD)
	}
	if c.Budget.DailyLimitUSD < 0 || c.Budget.WeeklyLimitUSD < 0 || c.Budget.MonthlyLimitUSD < 0 {
		return fmt.Errorf("budget limits must be non-negative")
	}
	if c.Budget.WarningThreshold <= 0 || c.Budget.WarningThreshold > 1 ||
		c.Budget.CriticalThreshold <= 0 || c.Budget.CriticalThreshold > 1 {
		return fmt.Errorf("thresholds must be in (0,1]: warning=%f critical=%f",
			c.Budget.WarningThreshold, c.Budget.CriticalThreshold)
	}
	if c.Budget.WarningThreshold > c.Budget.CriticalThreshold {
		return fmt.Errorf("warning threshold (%f) above critical threshold (%f)",
			c.Budget.WarningThreshold, c.Budget.CriticalThreshold)
	}
	if c.Analysis.ComplexityThreshold < 0 || c.Analysis.ComplexityThreshold > 1 {
		return fmt.Errorf("complexity threshold must be in [0,1]: %f", c.Analysis.ComplexityThreshold)
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be positive: %d", c.Worker.Concurrency)
	}
	return nil
}

// Helpers

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
