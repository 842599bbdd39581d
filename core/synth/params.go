package synth

import (
	"errors"
	"fmt"
)

// 合成参数的取值范围，边界值本身合法
const (
	MinSpeed       = 0.5
	MaxSpeed       = 2.0
	MinPitch       = -1.0
	MaxPitch       = 1.0
	MinEnergy      = 0.5
	MaxEnergy      = 2.0
	MinPauseFactor = 0.5
	MaxPauseFactor = 2.0
)

// ErrInvalidParams wraps all parameter range violations.
var ErrInvalidParams = errors.New("invalid synthesis parameters")

// Params 控制一次合成的韵律参数。零值不可用，调用方应从
// DefaultParams 出发覆盖字段。
type Params struct {
	Speed       float64 `json:"speed"`
	Pitch       float64 `json:"pitch"`
	Energy      float64 `json:"energy"`
	PauseFactor float64 `json:"pause_factor"`
	IsPreview   bool    `json:"is_preview,omitempty"`
}

// DefaultParams returns the neutral prosody settings.
func DefaultParams() Params {
	return Params{
		Speed:       1.0,
		Pitch:       0.0,
		Energy:      1.0,
		PauseFactor: 1.0,
	}
}

// Validate checks every field against its inclusive range.
func (p Params) Validate() error {
	if p.Speed < MinSpeed || p.Speed > MaxSpeed {
		return fmt.Errorf("%w: speed %.2f out of range [%.1f, %.1f]", ErrInvalidParams, p.Speed, MinSpeed, MaxSpeed)
	}
	if p.Pitch < MinPitch || p.Pitch > MaxPitch {
		return fmt.Errorf("%w: pitch %.2f out of range [%.1f, %.1f]", ErrInvalidParams, p.Pitch, MinPitch, MaxPitch)
	}
	if p.Energy < MinEnergy || p.Energy > MaxEnergy {
		return fmt.Errorf("%w: energy %.2f out of range [%.1f, %.1f]", ErrInvalidParams, p.Energy, MinEnergy, MaxEnergy)
	}
	if p.PauseFactor < MinPauseFactor || p.PauseFactor > MaxPauseFactor {
		return fmt.Errorf("%w: pause_factor %.2f out of range [%.1f, %.1f]", ErrInvalidParams, p.PauseFactor, MinPauseFactor, MaxPauseFactor)
	}
	return nil
}
