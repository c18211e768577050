// Package device simulates the USB link to a LEGO brick. Nothing here talks
// to hardware: detection is a weighted coin flip on a timer and uploads are a
// progress counter.
package device

import (
	"context"
	"math/rand/v2"
	"time"
)

// DetectorConfig controls the simulated USB detection.
type DetectorConfig struct {
	// InitialDelay is waited before every probe.
	InitialDelay time.Duration
	// RetryInterval is waited after a failed probe, before the next InitialDelay.
	RetryInterval time.Duration
	// SuccessRate is the probability in [0,1] that a probe finds the device.
	SuccessRate float64
	// Rand returns a value in [0,1). Defaults to math/rand/v2.
	Rand func() float64
}

// DefaultDetectorConfig probes after 2s with a 70% hit rate, and
// on failure tries again 3s later.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		InitialDelay:  2 * time.Second,
		RetryInterval: 3 * time.Second,
		SuccessRate:   0.7,
	}
}

func (c DetectorConfig) rand() float64 {
	if c.Rand != nil {
		return c.Rand()
	}
	return rand.Float64()
}

// Detect blocks until a probe succeeds or ctx is done. It returns the number
// of probes made and ctx.Err() if it was cancelled first, including while a
// probe was running.
func Detect(ctx context.Context, cfg DetectorConfig) (int, error) {
	attempts := 0
	for {
		if err := sleep(ctx, cfg.InitialDelay); err != nil {
			return attempts, err
		}

		attempts++
		hit := cfg.rand() < cfg.SuccessRate
		if err := ctx.Err(); err != nil {
			return attempts, err
		}
		if hit {
			return attempts, nil
		}

		if err := sleep(ctx, cfg.RetryInterval); err != nil {
			return attempts, err
		}
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
