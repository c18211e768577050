package server

import (
	"github.com/livetemplate/legocoder/internal/config"
	"github.com/livetemplate/legocoder/internal/device"
)

func deviceDetector(c config.SimulationConfig) device.DetectorConfig {
	return device.DetectorConfig{
		InitialDelay:  c.GetUSBInitialDelay(),
		RetryInterval: c.GetUSBRetryInterval(),
		SuccessRate:   c.GetUSBSuccessRate(),
	}
}

func deviceUpload(c config.SimulationConfig) device.UploadConfig {
	return device.UploadConfig{
		Interval: c.GetUploadInterval(),
		MaxStep:  c.GetUploadMaxStep(),
	}
}
