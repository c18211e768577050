// Package legocoder provides the core types for a simulated block-programming
// environment for LEGO MINDSTORMS EV3 and SPIKE Prime kits.
package legocoder

import "strings"

// Platform identifies the LEGO kit a session is programming.
type Platform int

const (
	EV3 Platform = iota
	SpikePrime
)

// Platforms lists every supported platform in selection-screen order.
var Platforms = []Platform{EV3, SpikePrime}

// ParsePlatform resolves a selection key. Only "mindstorms" (or "ev3") selects
// EV3; every other key falls through to SPIKE Prime.
func ParsePlatform(key string) Platform {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "mindstorms", "ev3":
		return EV3
	default:
		return SpikePrime
	}
}

// Key returns the selection key used by the UI.
func (p Platform) Key() string {
	if p == EV3 {
		return "mindstorms"
	}
	return "spike"
}

// DisplayName is the software name shown in the header (e.g. "MINDSTORMS EV3").
func (p Platform) DisplayName() string {
	if p == EV3 {
		return "MINDSTORMS EV3"
	}
	return "SPIKE PRIME"
}

// DeviceName names the physical controller (e.g. "EV3 brick").
func (p Platform) DeviceName() string {
	if p == EV3 {
		return "EV3 brick"
	}
	return "SPIKE Prime Hub"
}

// ShortName is used in generated program headers.
func (p Platform) ShortName() string {
	if p == EV3 {
		return "EV3"
	}
	return "SPIKE Prime"
}

// FileTag is the platform segment of a downloaded program's file name.
func (p Platform) FileTag() string {
	if p == EV3 {
		return "EV3"
	}
	return "SPIKE_Prime"
}

// Brand returns the three lines printed on the simulated device.
func (p Platform) Brand() [3]string {
	if p == EV3 {
		return [3]string{"LEGO", "MINDSTORMS", "EV3"}
	}
	return [3]string{"LEGO", "SPIKE", "PRIME"}
}

func (p Platform) String() string {
	return p.ShortName()
}
