package input

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = Surface{Center: Point{X: 100, Y: 100}, Radius: 50}

func TestNormalizeInsideCircle(t *testing.T) {
	v := Normalize(Point{X: 125, Y: 75}, base, DefaultOverTravel)
	assert.InDelta(t, 0.5, v.X, 1e-9)
	assert.InDelta(t, -0.5, v.Y, 1e-9)
}

func TestNormalizeClampsOverTravel(t *testing.T) {
	// raw delta (1.5, 0)
	v := Normalize(Point{X: 175, Y: 100}, base, DefaultOverTravel)
	assert.InDelta(t, 1.2, v.X, 1e-9)
	assert.InDelta(t, 0, v.Y, 1e-9)
}

func TestNormalizeMagnitudeAndAngleProperty(t *testing.T) {
	for angle := 0.0; angle < 2*math.Pi; angle += math.Pi / 17 {
		for _, dist := range []float64{0, 0.3, 1, 1.19, 1.2, 1.5, 4, 100} {
			p := Point{
				X: base.Center.X + math.Cos(angle)*dist*base.Radius,
				Y: base.Center.Y + math.Sin(angle)*dist*base.Radius,
			}
			v := Normalize(p, base, DefaultOverTravel)
			require.LessOrEqual(t, v.Magnitude(), 1.2+1e-9, "angle=%v dist=%v", angle, dist)
			if dist > 0 {
				rawX := (p.X - base.Center.X) / base.Radius
				rawY := (p.Y - base.Center.Y) / base.Radius
				// same direction: parallel and pointing the same way
				assert.InDelta(t, 0, v.X*rawY-v.Y*rawX, 1e-9)
				assert.Greater(t, v.X*rawX+v.Y*rawY, 0.0)
			}
			if dist > 1.2 {
				assert.InDelta(t, 1.2, v.Magnitude(), 1e-9)
			}
		}
	}
}

func TestNormalizeDegenerateSurface(t *testing.T) {
	assert.Equal(t, Vector{}, Normalize(Point{X: 10, Y: 10}, Surface{}, DefaultOverTravel))
}

func TestDragTracker(t *testing.T) {
	t.Run("begin outside the base is ignored", func(t *testing.T) {
		d := NewDragTracker(base, 0)
		_, ok := d.Begin(Point{X: 0, Y: 0})
		assert.False(t, ok)
		assert.False(t, d.Active())
		_, ok = d.Move(Point{X: 110, Y: 100})
		assert.False(t, ok)
	})

	t.Run("moves outside the base keep tracking", func(t *testing.T) {
		d := NewDragTracker(base, 0)
		_, ok := d.Begin(Point{X: 100, Y: 100})
		require.True(t, ok)

		v, ok := d.Move(Point{X: 100, Y: 400})
		require.True(t, ok)
		assert.InDelta(t, 1.2, v.Y, 1e-9)
		assert.True(t, d.Active())
	})

	t.Run("end snaps to center", func(t *testing.T) {
		d := NewDragTracker(base, 0)
		d.Begin(Point{X: 120, Y: 100})
		assert.True(t, d.End())
		assert.Equal(t, Vector{}, d.Current())
		assert.False(t, d.End(), "second release is not a drag end")
	})
}

func TestSliderRead(t *testing.T) {
	s := DefaultSlider

	v, err := s.Read(0.6)
	require.NoError(t, err)
	assert.Equal(t, 0.6, v)

	v, err = s.Read(3)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	v, err = s.Read(-0.61)
	require.NoError(t, err)
	assert.Equal(t, -0.6, v)

	_, err = s.Read(math.NaN())
	assert.ErrorIs(t, err, ErrInvalidValue)

	v, err = s.Parse(" -0.25 ")
	require.NoError(t, err)
	assert.Equal(t, -0.25, v)

	_, err = s.Parse("fast")
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestReturnAnimation(t *testing.T) {
	start := time.Unix(1000, 0)
	a := ReturnAnimation{From: 0.8, Start: start, Duration: 400 * time.Millisecond}

	assert.Equal(t, 0.8, a.Value(start))
	mid := a.Value(start.Add(200 * time.Millisecond))
	assert.Greater(t, mid, 0.0)
	assert.Less(t, mid, 0.8)
	assert.False(t, a.Done(start.Add(399*time.Millisecond)))
	assert.True(t, a.Done(start.Add(400*time.Millisecond)))
	assert.Equal(t, 0.0, a.Value(start.Add(time.Second)))
}
