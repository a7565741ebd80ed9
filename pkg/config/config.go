package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for igfetch
type Config struct {
	Instagram InstagramConfig `yaml:"instagram" toml:"instagram" json:"instagram"`
	Browser   BrowserConfig   `yaml:"browser" toml:"browser" json:"browser"`
	Cache     CacheConfig     `yaml:"cache" toml:"cache" json:"cache"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit" json:"rate_limit"`
	Download  DownloadConfig  `yaml:"download" toml:"download" json:"download"`
	Output    OutputConfig    `yaml:"output" toml:"output" json:"output"`
	Jobs      JobsConfig      `yaml:"jobs" toml:"jobs" json:"jobs"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging" json:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics" json:"metrics"`
}

// InstagramConfig holds settings for the fast extraction path
type InstagramConfig struct {
	// SessionID is the optional sessionid cookie used for stories
	SessionID       string        `yaml:"session_id" toml:"session_id" json:"session_id"`
	MobileUserAgent string        `yaml:"mobile_user_agent" toml:"mobile_user_agent" json:"mobile_user_agent"`
	FastTimeout     time.Duration `yaml:"fast_timeout" toml:"fast_timeout" json:"fast_timeout"`
	BaseURL         string        `yaml:"base_url" toml:"base_url" json:"base_url"`
	// Headers are extra request headers sent on every page request
	Headers map[string]string `yaml:"headers,omitempty" toml:"headers,omitempty" json:"headers,omitempty"`
}

// BrowserConfig holds headless browser settings
type BrowserConfig struct {
	Enabled           bool          `yaml:"enabled" toml:"enabled" json:"enabled"`
	ExecPath          string        `yaml:"exec_path" toml:"exec_path" json:"exec_path"`
	Headless          bool          `yaml:"headless" toml:"headless" json:"headless"`
	// NoSandbox disables Chrome's sandbox; needed when running as root in containers
	NoSandbox bool `yaml:"no_sandbox" toml:"no_sandbox" json:"no_sandbox"`
	MobileBaseURL     string        `yaml:"mobile_base_url" toml:"mobile_base_url" json:"mobile_base_url"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout" toml:"navigation_timeout" json:"navigation_timeout"`
	ExtractionTimeout time.Duration `yaml:"extraction_timeout" toml:"extraction_timeout" json:"extraction_timeout"`
	SettleDelay       time.Duration `yaml:"settle_delay" toml:"settle_delay" json:"settle_delay"`
	StorySettleDelay  time.Duration `yaml:"story_settle_delay" toml:"story_settle_delay" json:"story_settle_delay"`
}

// CacheConfig holds extraction cache settings
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl" toml:"ttl" json:"ttl"`
}

// RateLimitConfig holds politeness settings for outbound requests
type RateLimitConfig struct {
	// RequestsPerMinute of 0 disables limiting
	RequestsPerMinute int `yaml:"requests_per_minute" toml:"requests_per_minute" json:"requests_per_minute"`
}

// DownloadConfig holds media fetcher and job runner settings
type DownloadConfig struct {
	Directory      string        `yaml:"directory" toml:"directory" json:"directory"`
	Timeout        time.Duration `yaml:"timeout" toml:"timeout" json:"timeout"`
	RetryAttempts  int           `yaml:"retry_attempts" toml:"retry_attempts" json:"retry_attempts"`
	ConcurrentJobs int           `yaml:"concurrent_jobs" toml:"concurrent_jobs" json:"concurrent_jobs"`
	JobTimeout     time.Duration `yaml:"job_timeout" toml:"job_timeout" json:"job_timeout"`
	AllMedia       bool          `yaml:"all_media" toml:"all_media" json:"all_media"`
	UserAgent      string        `yaml:"user_agent" toml:"user_agent" json:"user_agent"`
}

// OutputConfig holds settings for what is written next to media files
type OutputConfig struct {
	WriteSidecar bool `yaml:"write_sidecar" toml:"write_sidecar" json:"write_sidecar"`
}

// JobsConfig selects the job repository backend
type JobsConfig struct {
	// Driver is one of memory, sqlite, postgres
	Driver string `yaml:"driver" toml:"driver" json:"driver"`
	DSN    string `yaml:"dsn" toml:"dsn" json:"dsn"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" toml:"level" json:"level"`
	File  string `yaml:"file" toml:"file" json:"file"`
}

// MetricsConfig holds prometheus exposition settings
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled" json:"enabled"`
	Address string `yaml:"address" toml:"address" json:"address"`
}

const (
	DefaultMobileUserAgent  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E148 Instagram 338.0.3.20.94 (iPhone14,5; iOS 17_5; en_US; en; scale=3.00; 1170x2532; 620157146)"
	DefaultDesktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Instagram: InstagramConfig{
			MobileUserAgent: DefaultMobileUserAgent,
			FastTimeout:     8 * time.Second,
			BaseURL:         "https://www.instagram.com",
		},
		Browser: BrowserConfig{
			Enabled:           true,
			Headless:          true,
			MobileBaseURL:     "https://m.instagram.com",
			NavigationTimeout: 30 * time.Second,
			ExtractionTimeout: 60 * time.Second,
			SettleDelay:       1500 * time.Millisecond,
			StorySettleDelay:  3 * time.Second,
		},
		Cache: CacheConfig{
			TTL: 5 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 30,
		},
		Download: DownloadConfig{
			Directory:      "./downloads",
			Timeout:        2 * time.Minute,
			RetryAttempts:  3,
			ConcurrentJobs: 2,
			JobTimeout:     5 * time.Minute,
			UserAgent:      DefaultDesktopUserAgent,
		},
		Output: OutputConfig{
			WriteSidecar: false,
		},
		Jobs: JobsConfig{
			Driver: "sqlite",
			DSN:    DefaultJobsDSN(),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Address: ":9090",
		},
	}
}

// DefaultJobsDSN is the sqlite database under the user's data directory
func DefaultJobsDSN() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "igfetch-jobs.db"
	}
	return filepath.Join(home, ".local", "share", "igfetch", "jobs.db")
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	// Legacy name first so the prefixed variable wins
	if sessionID := os.Getenv("INSTAGRAM_SESSION_ID"); sessionID != "" {
		c.Instagram.SessionID = sessionID
	}
	if sessionID := os.Getenv("IGFETCH_SESSION_ID"); sessionID != "" {
		c.Instagram.SessionID = sessionID
	}
	if ua := os.Getenv("IGFETCH_MOBILE_USER_AGENT"); ua != "" {
		c.Instagram.MobileUserAgent = ua
	}
	if v := os.Getenv("IGFETCH_BROWSER_ENABLED"); v != "" {
		c.Browser.Enabled = parseBool(v)
	}
	if v := os.Getenv("IGFETCH_BROWSER_PATH"); v != "" {
		c.Browser.ExecPath = v
	}
	if v := os.Getenv("IGFETCH_BROWSER_HEADLESS"); v != "" {
		c.Browser.Headless = parseBool(v)
	}
	if v := os.Getenv("IGFETCH_BROWSER_NO_SANDBOX"); v != "" {
		c.Browser.NoSandbox = parseBool(v)
	}
	if v := os.Getenv("IGFETCH_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("IGFETCH_CACHE_TTL: %w", err))
		} else {
			c.Cache.TTL = d
		}
	}
	if v := os.Getenv("IGFETCH_REQUESTS_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("IGFETCH_REQUESTS_PER_MINUTE: %w", err))
		} else {
			c.RateLimit.RequestsPerMinute = n
		}
	}
	if dir := os.Getenv("IGFETCH_DOWNLOAD_DIR"); dir != "" {
		c.Download.Directory = dir
	}
	if v := os.Getenv("IGFETCH_CONCURRENT_JOBS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("IGFETCH_CONCURRENT_JOBS: %w", err))
		} else {
			c.Download.ConcurrentJobs = n
		}
	}
	if v := os.Getenv("IGFETCH_DOWNLOAD_ALL"); v != "" {
		c.Download.AllMedia = parseBool(v)
	}
	if v := os.Getenv("IGFETCH_WRITE_SIDECAR"); v != "" {
		c.Output.WriteSidecar = parseBool(v)
	}
	if v := os.Getenv("IGFETCH_JOBS_DRIVER"); v != "" {
		c.Jobs.Driver = v
	}
	if v := os.Getenv("IGFETCH_JOBS_DSN"); v != "" {
		c.Jobs.DSN = v
	}
	if v := os.Getenv("IGFETCH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("IGFETCH_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if v := os.Getenv("IGFETCH_METRICS_ADDR"); v != "" {
		c.Metrics.Enabled = true
		c.Metrics.Address = v
	}

	return errors.Join(errs...)
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// LoadFromFile loads configuration from a YAML or TOML file, chosen by extension
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), c); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".igfetch.yaml",
		".igfetch.yml",
		".igfetch.toml",
		filepath.Join(home, ".config", "igfetch", "config.yaml"),
		filepath.Join(home, ".config", "igfetch", "config.yml"),
		filepath.Join(home, ".config", "igfetch", "config.toml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// DefaultConfigPath is where `config init` writes
func DefaultConfigPath() string {
	return filepath.Join(os.Getenv("HOME"), ".config", "igfetch", "config.yaml")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Instagram.FastTimeout <= 0 {
		errs = append(errs, errors.New("instagram fast timeout must be positive"))
	}
	if c.Instagram.MobileUserAgent == "" {
		errs = append(errs, errors.New("instagram mobile user agent is required"))
	}

	if c.Browser.Enabled {
		if c.Browser.NavigationTimeout <= 0 {
			errs = append(errs, errors.New("browser navigation timeout must be positive"))
		}
		if c.Browser.ExtractionTimeout < c.Browser.NavigationTimeout {
			errs = append(errs, errors.New("browser extraction timeout must not be shorter than navigation timeout"))
		}
		if c.Browser.SettleDelay < 0 || c.Browser.StorySettleDelay < 0 {
			errs = append(errs, errors.New("browser settle delays cannot be negative"))
		}
	}

	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache ttl must be positive"))
	}
	if c.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}

	if c.Download.Directory == "" {
		errs = append(errs, errors.New("download directory is required"))
	}
	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Download.RetryAttempts < 1 {
		errs = append(errs, errors.New("download retry attempts must be at least 1"))
	}
	if c.Download.ConcurrentJobs <= 0 {
		errs = append(errs, errors.New("concurrent jobs must be positive"))
	}
	if c.Download.ConcurrentJobs > 10 {
		errs = append(errs, errors.New("concurrent jobs should not exceed 10"))
	}
	if c.Download.JobTimeout <= 0 {
		errs = append(errs, errors.New("job timeout must be positive"))
	}

	switch c.Jobs.Driver {
	case "memory":
	case "sqlite", "postgres":
		if c.Jobs.DSN == "" {
			errs = append(errs, fmt.Errorf("jobs dsn is required for driver %s", c.Jobs.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown jobs driver: %q", c.Jobs.Driver))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if c.Metrics.Enabled && c.Metrics.Address == "" {
		errs = append(errs, errors.New("metrics address is required when metrics are enabled"))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		var b strings.Builder
		err = toml.NewEncoder(&b).Encode(c)
		data = []byte(b.String())
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// 0600: the file may hold a session id
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Flags carries command line overrides. Zero values mean "not set".
type Flags struct {
	LogLevel       string
	NoBrowser      bool
	DownloadDir    string
	ConcurrentJobs int
	AllMedia       bool
	WriteSidecar   bool
	MetricsAddr    string
	JobsDriver     string
}

// MergeFlags applies command line overrides on top of the loaded configuration
func (c *Config) MergeFlags(f Flags) {
	if f.LogLevel != "" {
		c.Logging.Level = f.LogLevel
	}
	if f.NoBrowser {
		c.Browser.Enabled = false
	}
	if f.DownloadDir != "" {
		c.Download.Directory = f.DownloadDir
	}
	if f.ConcurrentJobs > 0 {
		c.Download.ConcurrentJobs = f.ConcurrentJobs
	}
	if f.AllMedia {
		c.Download.AllMedia = true
	}
	if f.WriteSidecar {
		c.Output.WriteSidecar = true
	}
	if f.MetricsAddr != "" {
		c.Metrics.Enabled = true
		c.Metrics.Address = f.MetricsAddr
	}
	if f.JobsDriver != "" {
		c.Jobs.Driver = f.JobsDriver
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags Flags) (*Config, error) {
	// Missing .env files are fine
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".igfetch.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
