// Package input turns raw pointer, touch and slider events into bounded control values.
package input

import "math"

// DefaultOverTravel caps the joystick vector 20% past the unit circle.
const DefaultOverTravel = 1.2

// Point is a pointer or touch coordinate in viewport pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Surface is the joystick base as laid out on screen.
type Surface struct {
	Center Point   `json:"center"`
	Radius float64 `json:"radius"`
}

// Contains reports whether p falls on the joystick base.
func (s Surface) Contains(p Point) bool {
	if s.Radius <= 0 {
		return false
	}
	return math.Hypot(p.X-s.Center.X, p.Y-s.Center.Y) <= s.Radius
}

// Vector is a normalized joystick deflection. Y grows downward, as on screen.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Magnitude returns the Euclidean length of v.
func (v Vector) Magnitude() float64 {
	return math.Hypot(v.X, v.Y)
}

// Normalize maps a pointer position to a deflection relative to the surface.
// Vectors longer than maxMagnitude are rescaled onto it, keeping their angle.
func Normalize(pointer Point, surface Surface, maxMagnitude float64) Vector {
	if surface.Radius <= 0 {
		return Vector{}
	}
	if maxMagnitude <= 0 {
		maxMagnitude = DefaultOverTravel
	}

	v := Vector{
		X: (pointer.X - surface.Center.X) / surface.Radius,
		Y: (pointer.Y - surface.Center.Y) / surface.Radius,
	}
	return Clamp(v, maxMagnitude)
}

// Clamp rescales v onto the circle of radius maxMagnitude when it lies outside it.
func Clamp(v Vector, maxMagnitude float64) Vector {
	if math.IsNaN(v.X) || math.IsNaN(v.Y) {
		return Vector{}
	}
	distance := v.Magnitude()
	if distance > maxMagnitude {
		return Vector{
			X: v.X / distance * maxMagnitude,
			Y: v.Y / distance * maxMagnitude,
		}
	}
	return v
}
