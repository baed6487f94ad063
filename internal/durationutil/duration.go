// Package durationutil provides the duration and expiry value types used by
// the broker's configuration surface. Both implement
// encoding.TextMarshaler/TextUnmarshaler so they drop straight into the
// YAML-backed config struct and the HTTP admin JSON surface.
package durationutil

import (
	"fmt"
	"strings"
	"time"
)

// Duration wraps time.Duration with three special spellings ("unlimited",
// "disabled", "none") that all mean "no timeout" and are represented as
// Unlimited==true.
type Duration struct {
	Value     time.Duration
	Unlimited bool
}

// NewDuration wraps a concrete time.Duration.
func NewDuration(d time.Duration) Duration {
	return Duration{Value: d}
}

// UnlimitedDuration returns the sentinel "no timeout" duration.
func UnlimitedDuration() Duration {
	return Duration{Unlimited: true}
}

func (d Duration) String() string {
	if d.Unlimited {
		return "unlimited"
	}
	return d.Value.String()
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(text)))
	switch s {
	case "unlimited", "disabled", "none", "":
		*d = Duration{Unlimited: true}
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("durationutil: invalid duration %q: %w", s, err)
	}
	*d = Duration{Value: parsed}
	return nil
}

// Add sums two Durations; either side being Unlimited makes the sum
// Unlimited.
func (d Duration) Add(other Duration) Duration {
	if d.Unlimited || other.Unlimited {
		return Duration{Unlimited: true}
	}
	return Duration{Value: d.Value + other.Value}
}
