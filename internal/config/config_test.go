package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/livetemplate/legocoder"
)

func TestSimulationDurations(t *testing.T) {
	tests := []struct {
		name     string
		cfg      SimulationConfig
		initial  time.Duration
		retry    time.Duration
		interval time.Duration
	}{
		{"defaults", SimulationConfig{}, 2 * time.Second, 3 * time.Second, 200 * time.Millisecond},
		{"custom", SimulationConfig{USBInitialDelay: "10ms", USBRetryInterval: "1s", UploadInterval: "50ms"}, 10 * time.Millisecond, time.Second, 50 * time.Millisecond},
		{"invalid", SimulationConfig{USBInitialDelay: "soon", USBRetryInterval: "-1s", UploadInterval: "0s"}, 2 * time.Second, 3 * time.Second, 200 * time.Millisecond},
		{"zero initial delay allowed", SimulationConfig{USBInitialDelay: "0s"}, 0, 3 * time.Second, 200 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.GetUSBInitialDelay(); got != tt.initial {
				t.Errorf("GetUSBInitialDelay() = %v, want %v", got, tt.initial)
			}
			if got := tt.cfg.GetUSBRetryInterval(); got != tt.retry {
				t.Errorf("GetUSBRetryInterval() = %v, want %v", got, tt.retry)
			}
			if got := tt.cfg.GetUploadInterval(); got != tt.interval {
				t.Errorf("GetUploadInterval() = %v, want %v", got, tt.interval)
			}
		})
	}
}

func TestSimulationNumbers(t *testing.T) {
	tests := []struct {
		name string
		cfg  SimulationConfig
		rate float64
		step float64
	}{
		{"defaults", SimulationConfig{}, 0.7, 15},
		{"custom", SimulationConfig{USBSuccessRate: 1, UploadMaxStep: 50}, 1, 50},
		{"out of range", SimulationConfig{USBSuccessRate: 1.5, UploadMaxStep: -3}, 0.7, 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.GetUSBSuccessRate(); got != tt.rate {
				t.Errorf("GetUSBSuccessRate() = %v, want %v", got, tt.rate)
			}
			if got := tt.cfg.GetUploadMaxStep(); got != tt.step {
				t.Errorf("GetUploadMaxStep() = %v, want %v", got, tt.step)
			}
		})
	}
}

func TestDefaultPlatform(t *testing.T) {
	if got := (SimulationConfig{}).GetDefaultPlatform(); got != legocoder.SpikePrime {
		t.Errorf("default = %v, want SPIKE Prime", got)
	}
	if got := (SimulationConfig{DefaultPlatform: "mindstorms"}).GetDefaultPlatform(); got != legocoder.EV3 {
		t.Errorf("mindstorms = %v, want EV3", got)
	}
	if got := (SimulationConfig{DefaultPlatform: "spike"}).GetDefaultPlatform(); got != legocoder.SpikePrime {
		t.Errorf("spike = %v, want SPIKE Prime", got)
	}
}

func TestAPIConfigDefaults(t *testing.T) {
	var nilAPI *APIConfig
	if nilAPI.GetRateLimitRPS() != 10 || nilAPI.GetRateLimitBurst() != 20 || nilAPI.GetRateLimitMaxIPs() != 10000 {
		t.Error("nil API config should return rate limit defaults")
	}
	if nilAPI.GetCORSOrigins() != nil {
		t.Error("nil API config should have no CORS origins")
	}

	api := &APIConfig{
		Enabled:   true,
		CORS:      &CORSConfig{Origins: []string{"*"}},
		RateLimit: &RateLimitConfig{RequestsPerSecond: 2, Burst: 4, MaxIPs: 8},
	}
	if api.GetRateLimitRPS() != 2 || api.GetRateLimitBurst() != 4 || api.GetRateLimitMaxIPs() != 8 {
		t.Error("explicit rate limit values should be returned")
	}
	if len(api.GetCORSOrigins()) != 1 {
		t.Error("expected one CORS origin")
	}
	if !(&Config{API: api}).IsAPIEnabled() {
		t.Error("API should be enabled")
	}
}

func TestStorageDSNExpandsEnv(t *testing.T) {
	t.Setenv("LEGO_DB", "/var/lib/legocoder.db")
	cfg := StorageConfig{DSN: "${LEGO_DB}"}
	if got := cfg.GetDSN(); got != "/var/lib/legocoder.db" {
		t.Errorf("GetDSN() = %q", got)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadFromDir(t.TempDir())
	if err != nil {
		t.Fatalf("LoadFromDir() error = %v", err)
	}
	if cfg.Server.Port != 8080 || cfg.Server.Host != "localhost" {
		t.Errorf("unexpected defaults: %+v", cfg.Server)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Errorf("Storage.Driver = %q, want sqlite", cfg.Storage.Driver)
	}
	if cfg.Addr() != "localhost:8080" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	content := `title: Robotics Club
server:
  port: 9090
storage:
  driver: memory
palette:
  file: blocks.yaml
  hot_reload: true
simulation:
  usb_initial_delay: 100ms
api:
  enabled: true
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("LoadFromDir() error = %v", err)
	}
	if cfg.Title != "Robotics Club" {
		t.Errorf("Title = %q", cfg.Title)
	}
	if cfg.Server.Port != 9090 || cfg.Server.Host != "localhost" {
		t.Errorf("Server = %+v, want port override with default host", cfg.Server)
	}
	if cfg.Storage.Driver != "memory" {
		t.Errorf("Storage.Driver = %q", cfg.Storage.Driver)
	}
	if cfg.Palette.File != "blocks.yaml" || !cfg.Palette.HotReload {
		t.Errorf("Palette = %+v", cfg.Palette)
	}
	if cfg.Simulation.GetUSBInitialDelay() != 100*time.Millisecond {
		t.Errorf("USB delay = %v", cfg.Simulation.GetUSBInitialDelay())
	}
	if !cfg.IsAPIEnabled() {
		t.Error("API should be enabled")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte("server:\n  port: [8080\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	var fe *legocoder.FileError
	if !errors.As(err, &fe) {
		t.Fatalf("Load() error = %v, want *legocoder.FileError", err)
	}
	if fe.File != path {
		t.Errorf("File = %q, want %q", fe.File, path)
	}
	if !strings.Contains(err.Error(), "Tip:") {
		t.Errorf("error should carry a hint:\n%s", err)
	}
}

func TestLoadInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte("storage:\n  driver: mongo\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "storage.driver") {
		t.Fatalf("Load() error = %v, want storage.driver complaint", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	cfg := DefaultConfig()
	cfg.Server.Port = 7000
	cfg.Palette.File = "custom.yaml"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Server.Port != 7000 || loaded.Palette.File != "custom.yaml" {
		t.Errorf("round trip lost values: %+v", loaded)
	}
}
