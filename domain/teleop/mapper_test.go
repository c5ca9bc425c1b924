package teleop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-teleop/console/domain/input"
)

type fixedMode Mode

func (f *fixedMode) Mode() Mode { return Mode(*f) }

func newTestMapper() (*Mapper, *fixedMode) {
	mode := fixedMode(ModeManual)
	return NewMapper(0, &mode), &mode
}

func TestDeadZoneMapsToNeutral(t *testing.T) {
	for _, v := range []float64{0, 0.01, -0.02, 0.049, -0.0499} {
		m, _ := newTestMapper()
		assert.Equal(t, []Command{Stop{}}, m.Throttle(v), "throttle %v", v)
		assert.Equal(t, []Command{Turn{}}, m.Steering(v), "steering %v", v)
	}
}

func TestOutsideDeadZonePassesValue(t *testing.T) {
	m, _ := newTestMapper()
	assert.Equal(t, []Command{Move{Speed: 0.6}}, m.Throttle(0.6))
	assert.Equal(t, []Command{Move{Speed: -0.05}}, m.Throttle(-0.05))
	assert.Equal(t, []Command{Turn{Speed: -0.4}}, m.Steering(-0.4))
}

func TestJoystickMapsAxesIndependently(t *testing.T) {
	t.Run("over-travel X maps to Turn, Y stays neutral", func(t *testing.T) {
		m, _ := newTestMapper()
		surface := input.Surface{Center: input.Point{X: 0, Y: 0}, Radius: 10}
		v := input.Normalize(input.Point{X: 15, Y: 0}, surface, input.DefaultOverTravel)

		cmds := m.Joystick(v)
		require.Len(t, cmds, 2)
		assert.Equal(t, Stop{}, cmds[0])
		require.IsType(t, Turn{}, cmds[1])
		assert.InDelta(t, 1.2, cmds[1].(Turn).Speed, 1e-9)
	})

	t.Run("up is forward", func(t *testing.T) {
		m, _ := newTestMapper()
		cmds := m.Joystick(input.Vector{X: 0.3, Y: -0.7})
		assert.Equal(t, []Command{Move{Speed: 0.7}, Turn{Speed: 0.3}}, cmds)
	})

	t.Run("moving while not turning", func(t *testing.T) {
		m, _ := newTestMapper()
		cmds := m.Joystick(input.Vector{X: 0.01, Y: 0.5})
		assert.Equal(t, []Command{Move{Speed: -0.5}, Turn{}}, cmds)
	})
}

func TestRepeatedNeutralIsSuppressed(t *testing.T) {
	m, _ := newTestMapper()

	assert.Equal(t, []Command{Move{Speed: 0.5}, Turn{}}, m.Joystick(input.Vector{X: 0, Y: -0.5}))
	// only drive changes, turn stays neutral and is not resent
	assert.Equal(t, []Command{Move{Speed: 0.6}}, m.Joystick(input.Vector{X: 0.02, Y: -0.6}))
	assert.Equal(t, []Command{Stop{}}, m.Throttle(0.01))
	assert.Empty(t, m.Throttle(0.02))

	// non-neutral values are never dropped
	assert.Equal(t, []Command{Move{Speed: 0.6}}, m.Throttle(0.6))
	assert.Equal(t, []Command{Move{Speed: 0.6}}, m.Throttle(0.6))
}

func TestReleaseAlwaysEmits(t *testing.T) {
	m, _ := newTestMapper()
	m.Throttle(0)
	assert.Equal(t, []Command{Stop{}}, m.ReleaseThrottle())
	assert.Equal(t, []Command{Stop{}}, m.ReleaseThrottle())
	assert.Equal(t, []Command{Turn{}}, m.ReleaseSteering())
	assert.Equal(t, []Command{Stop{}, Turn{}}, m.ReleaseJoystick())
}

func TestForgetResendsNeutral(t *testing.T) {
	m, _ := newTestMapper()
	m.Throttle(0)
	assert.Empty(t, m.Throttle(0))
	m.Forget()
	assert.Equal(t, []Command{Stop{}}, m.Throttle(0))
}

func TestAutoModeIsInert(t *testing.T) {
	m, mode := newTestMapper()
	*mode = fixedMode(ModeAuto)

	assert.Nil(t, m.Throttle(0.9))
	assert.Nil(t, m.Steering(-0.9))
	assert.Nil(t, m.Joystick(input.Vector{X: 1, Y: -1}))
	assert.Nil(t, m.ReleaseThrottle())
	assert.Nil(t, m.ReleaseSteering())
	assert.Nil(t, m.ReleaseJoystick())
	assert.Nil(t, m.Arm(ArmUp))

	// the session still gets its neutral pair
	assert.Equal(t, []Command{Stop{}, Turn{}}, m.Neutral())
}

func TestArmEmitsOncePerPress(t *testing.T) {
	m, _ := newTestMapper()
	assert.Equal(t, []Command{ArmMove{Direction: ArmUp}}, m.Arm(ArmUp))
	assert.Equal(t, []Command{ArmMove{Direction: ArmUp}}, m.Arm(ArmUp))
}

func TestParsers(t *testing.T) {
	d, err := ParseArmDirection(" Forward ")
	require.NoError(t, err)
	assert.Equal(t, ArmForward, d)
	_, err = ParseArmDirection("sideways")
	assert.Error(t, err)

	mode, err := ParseMode("AUTO")
	require.NoError(t, err)
	assert.Equal(t, ModeAuto, mode)
	_, err = ParseMode("cruise")
	assert.Error(t, err)
}

func TestPulseExpires(t *testing.T) {
	now := time.Unix(500, 0)
	p := NewPulse(ArmControl(ArmDown), now, 300*time.Millisecond)

	assert.Equal(t, "arm-down", p.At(now))
	assert.Equal(t, "arm-down", p.At(now.Add(299*time.Millisecond)))
	assert.Equal(t, "", p.At(now.Add(300*time.Millisecond)))
	assert.False(t, Pulse{}.ActiveAt(now))
}

func TestIsNeutral(t *testing.T) {
	assert.True(t, IsNeutral(Stop{}))
	assert.True(t, IsNeutral(Turn{}))
	assert.False(t, IsNeutral(Turn{Speed: 0.1}))
	assert.False(t, IsNeutral(EmergencyStop{}))
	assert.False(t, IsNeutral(Move{}))
}
