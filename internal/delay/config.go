package delay

import (
	"fmt"
	"time"
)

const (
	MinDelaySeconds     = 5
	MaxDelaySeconds     = 300
	DelayStepSeconds    = 5
	DefaultDelaySeconds = 30
)

// DelayConfig names the scenes and inputs of the delay choreography. Names
// may be empty until the operator picks them.
type DelayConfig struct {
	// RecordScene is the live scene restored on deactivate.
	RecordScene string `json:"recordScene"`
	// DelayScene carries the delayed path.
	DelayScene string `json:"delayScene"`
	// DelayInput is revealed once the delay has elapsed.
	DelayInput string `json:"delayInput"`
	// BridgeInput masks the switch until DelayInput is revealed.
	BridgeInput string `json:"bridgeInput"`
	// DelaySeconds is in [MinDelaySeconds, MaxDelaySeconds], a multiple of
	// DelayStepSeconds.
	DelaySeconds int `json:"delaySeconds"`
}

// DefaultDelayConfig returns an unset config with the default delay.
func DefaultDelayConfig() DelayConfig {
	return DelayConfig{DelaySeconds: DefaultDelaySeconds}
}

// ValidateDelaySeconds checks the delay range and step.
func ValidateDelaySeconds(sec int) error {
	if sec < MinDelaySeconds || sec > MaxDelaySeconds {
		return fmt.Errorf("%w: %ds is outside [%d, %d]", ErrInvalidDelay, sec, MinDelaySeconds, MaxDelaySeconds)
	}
	if sec%DelayStepSeconds != 0 {
		return fmt.Errorf("%w: %ds is not a multiple of %d", ErrInvalidDelay, sec, DelayStepSeconds)
	}
	return nil
}

// Validate checks the config. Names are not checked against an inventory.
func (c DelayConfig) Validate() error {
	return ValidateDelaySeconds(c.DelaySeconds)
}

// Delay returns DelaySeconds as a duration.
func (c DelayConfig) Delay() time.Duration {
	return time.Duration(c.DelaySeconds) * time.Second
}

// WithDefaults fills unset names from a fresh inventory: the first input is
// delayed, the second bridges; the first scene records and the second (or
// the only one) delays.
func (c DelayConfig) WithDefaults(inv Inventory) DelayConfig {
	pick := func(cur string, names []string, idx ...int) string {
		if cur != "" {
			return cur
		}
		for _, i := range idx {
			if i < len(names) {
				return names[i]
			}
		}
		return ""
	}
	c.DelayInput = pick(c.DelayInput, inv.Inputs, 0)
	c.BridgeInput = pick(c.BridgeInput, inv.Inputs, 1)
	c.RecordScene = pick(c.RecordScene, inv.Scenes, 0)
	c.DelayScene = pick(c.DelayScene, inv.Scenes, 1, 0)
	if c.DelaySeconds == 0 {
		c.DelaySeconds = DefaultDelaySeconds
	}
	return c
}
