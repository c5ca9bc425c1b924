package input

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidValue is returned for slider readings that are not finite numbers.
var ErrInvalidValue = errors.New("invalid slider value")

// Slider describes a linear range control such as throttle or steering.
type Slider struct {
	Min  float64
	Max  float64
	Step float64
}

// DefaultSlider matches the console's throttle and steering controls.
var DefaultSlider = Slider{Min: -1, Max: 1, Step: 0.05}

// Read validates a slider value. The host control already clamps to
// [Min, Max]; Read clamps again and snaps to Step so programmatic input
// obeys the same bounds.
func (s Slider) Read(value float64) (float64, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidValue, value)
	}
	if value < s.Min {
		value = s.Min
	}
	if value > s.Max {
		value = s.Max
	}
	if s.Step > 0 {
		steps := math.Round((value - s.Min) / s.Step)
		value = s.Min + steps*s.Step
		// keep float noise out of values like 0.6000000000000001
		value = math.Round(value*1e9) / 1e9
		if value > s.Max {
			value = s.Max
		}
	}
	return value, nil
}

// Parse reads the textual value of a range input.
func (s Slider) Parse(text string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidValue, text)
	}
	return s.Read(v)
}

// ReturnAnimation describes the cosmetic glide of a released slider back to zero.
// Commands never wait on it.
type ReturnAnimation struct {
	From     float64       `json:"from"`
	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"duration"`
}

// Value samples the rendered slider position at now.
func (a ReturnAnimation) Value(now time.Time) float64 {
	if a.Done(now) {
		return 0
	}
	elapsed := now.Sub(a.Start)
	if elapsed < 0 {
		return a.From
	}
	t := float64(elapsed) / float64(a.Duration)
	// ease-out, matching the UI transition curve
	return a.From * (1 - t) * (1 - t)
}

// Done reports whether the glide has finished at now.
func (a ReturnAnimation) Done(now time.Time) bool {
	return a.Duration <= 0 || !now.Before(a.Start.Add(a.Duration))
}
