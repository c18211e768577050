package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/livetemplate/legocoder"
)

// FileName is the config file looked up in the working directory.
const FileName = "legocoder.yaml"

// Config represents the legocoder configuration
type Config struct {
	Title      string           `yaml:"title"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Palette    PaletteConfig    `yaml:"palette"`
	Simulation SimulationConfig `yaml:"simulation"`
	API        *APIConfig       `yaml:"api,omitempty"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port  int    `yaml:"port"`
	Host  string `yaml:"host"`
	Debug bool   `yaml:"debug"`
}

// StorageConfig selects where the saved code buffer lives
type StorageConfig struct {
	Driver string `yaml:"driver"` // "sqlite", "postgres" or "memory"
	DSN    string `yaml:"dsn"`    // File path for sqlite, connection string for postgres (env vars expanded)
}

// GetDSN returns the DSN with environment variable expansion
func (c StorageConfig) GetDSN() string {
	return os.ExpandEnv(c.DSN)
}

// PaletteConfig points at a custom block palette
type PaletteConfig struct {
	File      string `yaml:"file"`       // YAML palette file; empty uses the built-in palette
	HotReload bool   `yaml:"hot_reload"` // Re-read the file when it changes
}

// SimulationConfig tunes the simulated brick
type SimulationConfig struct {
	USBInitialDelay  string  `yaml:"usb_initial_delay,omitempty"`  // Wait before each probe (default: 2s)
	USBRetryInterval string  `yaml:"usb_retry_interval,omitempty"` // Wait after a failed probe (default: 3s)
	USBSuccessRate   float64 `yaml:"usb_success_rate,omitempty"`   // Probe success probability (default: 0.7)
	UploadInterval   string  `yaml:"upload_interval,omitempty"`    // Progress tick interval (default: 200ms)
	UploadMaxStep    float64 `yaml:"upload_max_step,omitempty"`    // Max percent added per tick (default: 15)
	DefaultPlatform  string  `yaml:"default_platform,omitempty"`   // Platform before selection and for the generate API (default: spike)
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return def
	}
	return d
}

// GetUSBInitialDelay returns the delay before each USB probe (default: 2s)
func (c SimulationConfig) GetUSBInitialDelay() time.Duration {
	return parseDuration(c.USBInitialDelay, 2*time.Second)
}

// GetUSBRetryInterval returns the wait after a failed probe (default: 3s)
func (c SimulationConfig) GetUSBRetryInterval() time.Duration {
	return parseDuration(c.USBRetryInterval, 3*time.Second)
}

// GetUSBSuccessRate returns the probe success probability (default: 0.7)
func (c SimulationConfig) GetUSBSuccessRate() float64 {
	if c.USBSuccessRate <= 0 || c.USBSuccessRate > 1 {
		return 0.7
	}
	return c.USBSuccessRate
}

// GetUploadInterval returns the upload tick interval (default: 200ms)
func (c SimulationConfig) GetUploadInterval() time.Duration {
	d := parseDuration(c.UploadInterval, 200*time.Millisecond)
	if d == 0 {
		return 200 * time.Millisecond
	}
	return d
}

// GetUploadMaxStep returns the max percent per tick (default: 15)
func (c SimulationConfig) GetUploadMaxStep() float64 {
	if c.UploadMaxStep <= 0 {
		return 15
	}
	return c.UploadMaxStep
}

// GetDefaultPlatform returns the platform used before one is selected or when
// a request names none. Like any key other than mindstorms/ev3, an unset
// value means SPIKE Prime.
func (c SimulationConfig) GetDefaultPlatform() legocoder.Platform {
	return legocoder.ParsePlatform(c.DefaultPlatform)
}

// APIConfig holds REST API configuration
type APIConfig struct {
	Enabled   bool             `yaml:"enabled"` // Enable REST API endpoints (default: false)
	CORS      *CORSConfig      `yaml:"cors,omitempty"`
	RateLimit *RateLimitConfig `yaml:"rate_limit,omitempty"`
}

// CORSConfig holds CORS configuration for the API
type CORSConfig struct {
	Origins []string `yaml:"origins,omitempty"` // Allowed origins (e.g., ["http://localhost:3000", "*"])
}

// RateLimitConfig holds rate limiting configuration for the API
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"` // Rate limit in requests per second (default: 10)
	Burst             int     `yaml:"burst,omitempty"`               // Burst size (default: 20)
	MaxIPs            int     `yaml:"max_ips,omitempty"`             // Tracked client IPs (default: 10000)
}

// GetCORSOrigins returns the configured CORS origins, or nil if not configured
func (c *APIConfig) GetCORSOrigins() []string {
	if c == nil || c.CORS == nil {
		return nil
	}
	return c.CORS.Origins
}

// GetRateLimitRPS returns the rate limit in requests per second (default: 10)
func (c *APIConfig) GetRateLimitRPS() float64 {
	if c == nil || c.RateLimit == nil || c.RateLimit.RequestsPerSecond <= 0 {
		return 10
	}
	return c.RateLimit.RequestsPerSecond
}

// GetRateLimitBurst returns the burst size (default: 20)
func (c *APIConfig) GetRateLimitBurst() int {
	if c == nil || c.RateLimit == nil || c.RateLimit.Burst <= 0 {
		return 20
	}
	return c.RateLimit.Burst
}

// GetRateLimitMaxIPs returns the number of tracked IPs (default: 10000)
func (c *APIConfig) GetRateLimitMaxIPs() int {
	if c == nil || c.RateLimit == nil || c.RateLimit.MaxIPs <= 0 {
		return 10000
	}
	return c.RateLimit.MaxIPs
}

// IsAPIEnabled returns whether the API is enabled
func (c *Config) IsAPIEnabled() bool {
	return c.API != nil && c.API.Enabled
}

// Addr returns host:port for the HTTP listener
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Title: "LEGO Coder",
		Server: ServerConfig{
			Port:  8080,
			Host:  "localhost",
			Debug: false,
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			DSN:    "legocoder.db",
		},
	}
}

// Validate checks values that cannot be defaulted
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch c.Storage.Driver {
	case "", "sqlite", "postgres", "pg", "memory":
	default:
		return fmt.Errorf("storage.driver %q: expected sqlite, postgres or memory", c.Storage.Driver)
	}
	return nil
}

// Load loads configuration from a YAML file
// If the file doesn't exist, returns the default configuration
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig() // Start with defaults
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, legocoder.FromYAMLError(configPath, err).
			WithHint("Check indentation; legocoder.yaml uses two-space YAML nesting")
	}

	if err := config.Validate(); err != nil {
		return nil, legocoder.NewFileError(configPath, 0, err.Error())
	}

	return config, nil
}

// LoadFromDir looks for legocoder.yaml in the given directory
// If none is found, returns the default configuration
func LoadFromDir(dir string) (*Config, error) {
	return Load(filepath.Join(dir, FileName))
}

// Save writes the configuration to a YAML file
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
