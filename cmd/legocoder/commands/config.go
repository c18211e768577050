package commands

import (
	"fmt"
	"os"

	"github.com/livetemplate/legocoder/internal/config"
)

// loadConfig reads an explicit config file, or legocoder.yaml in the working
// directory when path is empty. A missing explicit file is an error.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg, err := config.LoadFromDir(".")
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
