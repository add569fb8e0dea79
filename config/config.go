package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/angch/vastlogmon/detectors"
	"github.com/angch/vastlogmon/logger"
	"github.com/angch/vastlogmon/sources"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL        = "https://console.vast.ai"
	DefaultPollInterval   = 10
	DefaultTimeout        = 3600
	DefaultRequestTimeout = 30
	DefaultAlertFormat    = "traceback"

	redactedValue = "***"
)

type APIConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	// RequestTimeout bounds each provider call, in seconds.
	RequestTimeout int               `yaml:"request_timeout"`
	Endpoints      sources.Endpoints `yaml:"endpoints"`
}

type StreamConfig struct {
	Instance string `yaml:"instance"`
	// PollInterval and Timeout are in seconds. A zero timeout never expires.
	PollInterval int `yaml:"poll_interval"`
	Timeout      int `yaml:"timeout"`
	// Replay serves batches from a dump file instead of the provider.
	Replay string `yaml:"replay"`
}

type AlertConfig struct {
	Format  string `yaml:"format"`  // traceback, json, custom
	Pattern string `yaml:"pattern"` // regex or literal for custom, field:regex for json
}

type SentryConfig struct {
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
	Release     string `yaml:"release"`
}

type Config struct {
	API         APIConfig            `yaml:"api"`
	Stream      StreamConfig         `yaml:"stream"`
	Alert       AlertConfig          `yaml:"alert"`
	Sentry      SentryConfig         `yaml:"sentry"`
	Logging     logger.LoggingConfig `yaml:"logging"`
	MetricsPort int                  `yaml:"metrics_port"`

	Path       string `yaml:"-"`
	Verbose    bool   `yaml:"-"`
	ShowStatus bool   `yaml:"-"`
}

// Default returns a configuration with every optional field filled in.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:        DefaultBaseURL,
			RequestTimeout: DefaultRequestTimeout,
			Endpoints:      sources.DefaultEndpoints,
		},
		Stream: StreamConfig{
			PollInterval: DefaultPollInterval,
			Timeout:      DefaultTimeout,
		},
		Alert: AlertConfig{
			Format: DefaultAlertFormat,
		},
		Sentry: SentryConfig{
			Environment: "production",
		},
	}
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Stream.PollInterval) * time.Second
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Stream.Timeout) * time.Second
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.API.RequestTimeout) * time.Second
}

// LoadFile reads a YAML file on top of the defaults, then fills the API key
// and DSN from the environment when the file leaves them empty.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Path = path
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if c.API.APIKey == "" {
		c.API.APIKey = os.Getenv("VAST_API_KEY")
	}
	if c.Sentry.DSN == "" {
		c.Sentry.DSN = os.Getenv("SENTRY_DSN")
	}
}

// Validate reports the first problem that would keep a stream from running.
func (c *Config) Validate() error {
	if c.Stream.Instance == "" {
		return fmt.Errorf("instance id is required")
	}
	if c.Stream.Replay == "" && c.API.BaseURL == "" {
		return fmt.Errorf("api base_url is required")
	}
	if c.Stream.PollInterval < 1 {
		return fmt.Errorf("poll_interval must be at least 1 second, got %d", c.Stream.PollInterval)
	}
	if c.Stream.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %d", c.Stream.Timeout)
	}
	if c.API.RequestTimeout < 1 {
		return fmt.Errorf("request_timeout must be at least 1 second, got %d", c.API.RequestTimeout)
	}
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		return fmt.Errorf("metrics_port %d is out of range", c.MetricsPort)
	}
	if c.Alert.Format != "" && !detectors.IsKnownDetector(c.Alert.Format) {
		return fmt.Errorf("unknown alert format: %s", c.Alert.Format)
	}
	if c.Alert.Format != "" || c.Alert.Pattern != "" {
		if _, err := detectors.GetDetector(c.Alert.Format, c.Alert.Pattern); err != nil {
			return fmt.Errorf("invalid alert detector: %w", err)
		}
	}
	return nil
}

// AlertDetector builds the configured detector, or nil when alerting is off.
func (c *Config) AlertDetector() (detectors.Detector, error) {
	if c.Alert.Format == "" && c.Alert.Pattern == "" {
		return nil, nil
	}
	return detectors.GetDetector(c.Alert.Format, c.Alert.Pattern)
}

// Redacted returns a copy of the configuration with secrets masked.
func (c *Config) Redacted() *Config {
	newC := *c
	if newC.API.APIKey != "" {
		newC.API.APIKey = redactedValue
	}
	if newC.Sentry.DSN != "" {
		newC.Sentry.DSN = redactedValue
	}
	return &newC
}

// Flags are the command line flags registered on one FlagSet.
type Flags struct {
	fs *flag.FlagSet

	configFile     *string
	instance       *string
	apiKey         *string
	baseURL        *string
	pollInterval   *int
	timeout        *int
	requestTimeout *int
	dsn            *string
	environment    *string
	release        *string
	alertFormat    *string
	alertPattern   *string
	replay         *string
	metricsPort    *int
	logFile        *string
	verbose        *bool
	status         *bool
}

func RegisterFlags(fs *flag.FlagSet) *Flags {
	return &Flags{
		fs:             fs,
		configFile:     fs.String("config", "", "Path to configuration file"),
		instance:       fs.String("instance", "", "Instance id to stream logs for"),
		apiKey:         fs.String("api-key", "", "Provider API key (default $VAST_API_KEY)"),
		baseURL:        fs.String("base-url", DefaultBaseURL, "Provider API base URL"),
		pollInterval:   fs.Int("poll-interval", DefaultPollInterval, "Seconds between log fetches"),
		timeout:        fs.Int("timeout", DefaultTimeout, "Seconds to wait for completion (0 waits forever)"),
		requestTimeout: fs.Int("request-timeout", DefaultRequestTimeout, "Seconds allowed for each provider call"),
		dsn:            fs.String("dsn", "", "Sentry DSN (default $SENTRY_DSN)"),
		environment:    fs.String("environment", "production", "Sentry environment"),
		release:        fs.String("release", "", "Sentry release version"),
		alertFormat:    fs.String("alert-format", DefaultAlertFormat, "Alert detector (traceback, json, custom)"),
		alertPattern:   fs.String("alert-pattern", "", "Pattern for the custom or json alert detector"),
		replay:         fs.String("replay", "", "Replay batches from a dump file instead of polling the provider"),
		metricsPort:    fs.Int("metrics-port", 0, "Port to expose Prometheus metrics (0 to disable)"),
		logFile:        fs.String("log-file", "", "Write diagnostics to a rotated file instead of stderr"),
		verbose:        fs.Bool("verbose", false, "Verbose logging"),
		status:         fs.Bool("status", false, "List running watchers and exit"),
	}
}

// CommandLine holds the flags registered on flag.CommandLine.
var CommandLine = RegisterFlags(flag.CommandLine)

// ParseFlags parses the command line flags.
// It must be called before Load.
func ParseFlags() {
	if !flag.Parsed() {
		flag.Usage = func() {
			out := flag.CommandLine.Output()
			fmt.Fprintf(out, "Vast Log Monitor\n")
			fmt.Fprintf(out, "Streams the logs of a rented GPU instance until its job reports completion.\n\n")
			fmt.Fprintf(out, "Usage:\n  vastlogmon [flags]\n\n")
			fmt.Fprintf(out, "Examples:\n")
			fmt.Fprintf(out, "  # Follow an instance until it finishes\n")
			fmt.Fprintf(out, "  VAST_API_KEY=... vastlogmon --instance=123456\n\n")
			fmt.Fprintf(out, "  # Report tracebacks to Sentry, give up after two hours\n")
			fmt.Fprintf(out, "  vastlogmon --instance=123456 --dsn=https://... --timeout=7200\n\n")
			fmt.Fprintf(out, "  # Use a config file\n")
			fmt.Fprintf(out, "  vastlogmon --config=vastlogmon.yaml\n\n")
			fmt.Fprintf(out, "  # List running watchers\n")
			fmt.Fprintf(out, "  vastlogmon --status\n\n")
			fmt.Fprintf(out, "Exit codes: 0 completed, 2 timed out, 130 cancelled, 1 configuration error.\n\n")
			fmt.Fprintf(out, "Flags:\n")
			flag.PrintDefaults()
		}
		flag.Parse()
	}
}

func Load() (*Config, error) {
	ParseFlags()
	return CommandLine.Load()
}

// Load builds the configuration from the --config file and the flags.
func (f *Flags) Load() (*Config, error) {
	return f.load(*f.configFile)
}

// Reload re-reads the config file at path and re-applies the flags the user
// set, so values given only on the command line survive a reload.
func (f *Flags) Reload(path string) (*Config, error) {
	return f.load(path)
}

// load merges defaults, the config file, the environment and the flags the
// user actually set, in increasing precedence.
func (f *Flags) load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		fileCfg, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	} else {
		cfg.applyEnv()
	}

	set := map[string]bool{}
	f.fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })

	if set["instance"] {
		cfg.Stream.Instance = *f.instance
	}
	if set["api-key"] {
		cfg.API.APIKey = *f.apiKey
	}
	if set["base-url"] {
		cfg.API.BaseURL = *f.baseURL
	}
	if set["poll-interval"] {
		cfg.Stream.PollInterval = *f.pollInterval
	}
	if set["timeout"] {
		cfg.Stream.Timeout = *f.timeout
	}
	if set["request-timeout"] {
		cfg.API.RequestTimeout = *f.requestTimeout
	}
	if set["dsn"] {
		cfg.Sentry.DSN = *f.dsn
	}
	if set["environment"] {
		cfg.Sentry.Environment = *f.environment
	}
	if set["release"] {
		cfg.Sentry.Release = *f.release
	}
	if set["alert-format"] {
		cfg.Alert.Format = *f.alertFormat
	}
	if set["alert-pattern"] {
		cfg.Alert.Pattern = *f.alertPattern
		// A bare pattern means a custom detector unless a format was given.
		if !set["alert-format"] && cfg.Alert.Format == DefaultAlertFormat {
			cfg.Alert.Format = "custom"
		}
	}
	if set["replay"] {
		cfg.Stream.Replay = *f.replay
	}
	if set["metrics-port"] {
		cfg.MetricsPort = *f.metricsPort
	}
	if set["log-file"] {
		cfg.Logging.Path = *f.logFile
	}

	cfg.Verbose = *f.verbose
	if cfg.Verbose {
		cfg.Logging.Level = "debug"
	}
	cfg.ShowStatus = *f.status
	return cfg, nil
}
