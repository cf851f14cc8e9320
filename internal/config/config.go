package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ahmethakanbesel/yahoo-history/internal/scraper"
	"github.com/ahmethakanbesel/yahoo-history/internal/sink"
	"github.com/ahmethakanbesel/yahoo-history/internal/telemetry"
)

// Sink selections.
const (
	SinkCSV    = "csv"
	SinkSQLite = "sqlite"
	SinkBoth   = "both"
	SinkNone   = "none"
)

type Browser struct {
	Headless          bool          `yaml:"headless"`
	ExecPath          string        `yaml:"exec_path"`
	UserAgent         string        `yaml:"user_agent"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	MaxScrolls        int           `yaml:"max_scrolls"`
	Settle            time.Duration `yaml:"settle"`
	WindowWidth       int           `yaml:"window_width"`
	WindowHeight      int           `yaml:"window_height"`
}

type Config struct {
	BaseURL       string `yaml:"base_url"`
	Workers       int    `yaml:"workers"`
	DBPath        string `yaml:"db_path"`
	OutputDir     string `yaml:"output_dir"`
	Sink          string `yaml:"sink"`
	Mode          string `yaml:"mode"`
	TickersFile   string `yaml:"tickers_file"`
	LookbackWeeks int    `yaml:"lookback_weeks"`
	Strict        bool   `yaml:"strict"`
	// ChunkDays splits long ranges into page loads of at most this many
	// days. Zero loads each range in one page.
	ChunkDays int              `yaml:"chunk_days"`
	Schedule  string           `yaml:"schedule"`
	LogLevel  string           `yaml:"log_level"`
	Port      string           `yaml:"port"`
	Browser   Browser          `yaml:"browser"`
	Telemetry telemetry.Config `yaml:"telemetry"`
	// Profiles override built-in technical types, keyed by technical name.
	Profiles map[string]scraper.Profile `yaml:"profiles"`
}

func defaults() *Config {
	return &Config{
		BaseURL:       "https://finance.yahoo.com",
		Workers:       2,
		DBPath:        "data/history.db",
		OutputDir:     "data/history",
		Sink:          SinkCSV,
		Mode:          string(sink.ModeAppend),
		TickersFile:   "tickers.txt",
		LookbackWeeks: 60,
		Schedule:      "0 30 22 * * 1-5",
		LogLevel:      "info",
		Port:          "8080",
		Browser: Browser{
			Headless:          true,
			NavigationTimeout: 30 * time.Second,
			MaxScrolls:        50,
			Settle:            750 * time.Millisecond,
			WindowWidth:       1920,
			WindowHeight:      1080,
		},
	}
}

// Load starts from defaults, overlays the YAML file at path when it exists,
// then applies environment overrides. A .env file in the working directory
// is loaded first without replacing variables that are already set.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.BaseURL = getEnv("HISTORY_BASE_URL", cfg.BaseURL)
	cfg.Workers = getEnvInt("WORKERS", cfg.Workers)
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.OutputDir = getEnv("OUTPUT_DIR", cfg.OutputDir)
	cfg.Sink = getEnv("SINK", cfg.Sink)
	cfg.Mode = getEnv("WRITE_MODE", cfg.Mode)
	cfg.TickersFile = getEnv("TICKERS_FILE", cfg.TickersFile)
	cfg.LookbackWeeks = getEnvInt("LOOKBACK_WEEKS", cfg.LookbackWeeks)
	cfg.Strict = getEnvBool("STRICT", cfg.Strict)
	cfg.ChunkDays = getEnvInt("CHUNK_DAYS", cfg.ChunkDays)
	cfg.Schedule = getEnv("SCHEDULE", cfg.Schedule)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.Browser.Headless = getEnvBool("BROWSER_HEADLESS", cfg.Browser.Headless)
	cfg.Browser.ExecPath = getEnv("CHROME_PATH", cfg.Browser.ExecPath)
	cfg.Browser.UserAgent = getEnv("BROWSER_USER_AGENT", cfg.Browser.UserAgent)
	cfg.Browser.NavigationTimeout = getEnvDuration("NAVIGATION_TIMEOUT", cfg.Browser.NavigationTimeout)
	cfg.Browser.MaxScrolls = getEnvInt("MAX_SCROLLS", cfg.Browser.MaxScrolls)
	cfg.Browser.Settle = getEnvDuration("SCROLL_SETTLE", cfg.Browser.Settle)
	cfg.Telemetry.Endpoint = getEnv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.Protocol = getEnv("OTEL_EXPORTER_OTLP_PROTOCOL", cfg.Telemetry.Protocol)

	for name, p := range cfg.Profiles {
		p.Technical = scraper.Technical(name)
		cfg.Profiles[name] = p
	}

	return cfg, nil
}

// Validate checks that every field holds a usable value.
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if c.LookbackWeeks <= 0 {
		return fmt.Errorf("lookback_weeks must be positive")
	}
	switch c.Sink {
	case SinkCSV, SinkSQLite, SinkBoth, SinkNone:
	default:
		return fmt.Errorf("unknown sink %q", c.Sink)
	}
	if _, err := sink.ParseMode(c.Mode); err != nil {
		return err
	}
	if c.Browser.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be positive")
	}
	if c.Browser.MaxScrolls <= 0 {
		return fmt.Errorf("browser.max_scrolls must be positive")
	}
	if c.Browser.Settle < 0 {
		return fmt.Errorf("browser.settle cannot be negative")
	}
	if c.ChunkDays < 0 {
		return fmt.Errorf("chunk_days cannot be negative")
	}
	if c.Browser.WindowWidth <= 0 || c.Browser.WindowHeight <= 0 {
		return fmt.Errorf("browser window size must be positive")
	}
	if err := c.Telemetry.Validate(); err != nil {
		return err
	}
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}

// Registry returns the built-in profiles with the configured overrides
// applied.
func (c *Config) Registry() (*scraper.Registry, error) {
	r := scraper.DefaultRegistry()
	for name, p := range c.Profiles {
		if err := r.Override(p); err != nil {
			return nil, fmt.Errorf("profile %s: %w", name, err)
		}
	}
	return r, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n := 0
	for _, c := range v {
		if c < '0' || c > '9' {
			return fallback
		}
		n = n*10 + int(c-'0')
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return d
}
