package device

import (
	"context"
	"math/rand/v2"
	"time"
)

// UploadConfig controls the simulated transfer progress.
type UploadConfig struct {
	// Interval between progress ticks.
	Interval time.Duration
	// MaxStep is the upper bound of the random percentage added per tick.
	MaxStep float64
	// Rand returns a value in [0,1). Defaults to math/rand/v2.
	Rand func() float64
}

// DefaultUploadConfig ticks every 200ms adding up to 15%.
func DefaultUploadConfig() UploadConfig {
	return UploadConfig{
		Interval: 200 * time.Millisecond,
		MaxStep:  15,
	}
}

// ProgressFunc receives the percentage after every tick. The final call is
// always exactly 100.
type ProgressFunc func(percent float64)

// Upload advances a progress counter from 0 to 100, calling onProgress after
// each tick. It returns nil once 100 is reached or ctx.Err() if cancelled;
// a tick that sees a cancelled ctx reports nothing.
func Upload(ctx context.Context, cfg UploadConfig, onProgress ProgressFunc) error {
	r := cfg.Rand
	if r == nil {
		r = rand.Float64
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	percent := 0.0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			percent = min(100, percent+r()*cfg.MaxStep)
			if err := ctx.Err(); err != nil {
				return err
			}
			if onProgress != nil {
				onProgress(percent)
			}
			if percent >= 100 {
				return nil
			}
		}
	}
}
