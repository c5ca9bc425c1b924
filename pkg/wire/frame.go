// Package wire encodes console telemetry as FlatBuffers for ZeroMQ subscribers.
package wire

import (
	"errors"
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"
)

// ErrMalformedFrame is returned for buffers that are not a TelemetryFrame.
var ErrMalformedFrame = errors.New("malformed telemetry frame")

const (
	flagTelemetry byte = 1 << iota
	flagTheta
	flagArmHeight
	flagArmDistance
)

// Frame is the decoded form of a TelemetryFrame. Pointer fields are nil when absent.
type Frame struct {
	RobotID      string
	Status       string
	HasTelemetry bool
	State        string
	Battery      float64
	X            float64
	Y            float64
	Theta        *float64
	ArmHeight    *float64
	ArmDistance  *float64
	ErrorMessage string
	TimestampNs  int64
	Seq          uint64
}

// Encode serialises f.
func Encode(f Frame) []byte {
	builder := flatbuffers.NewBuilder(256)
	robotID := builder.CreateString(f.RobotID)
	status := builder.CreateString(f.Status)
	state := builder.CreateString(f.State)
	errMsg := builder.CreateString(f.ErrorMessage)

	var flags byte
	if f.HasTelemetry {
		flags |= flagTelemetry
	}

	TelemetryFrameStart(builder)
	TelemetryFrameAddRobotId(builder, robotID)
	TelemetryFrameAddStatus(builder, status)
	TelemetryFrameAddState(builder, state)
	TelemetryFrameAddBattery(builder, f.Battery)
	TelemetryFrameAddX(builder, f.X)
	TelemetryFrameAddY(builder, f.Y)
	if f.Theta != nil {
		flags |= flagTheta
		TelemetryFrameAddTheta(builder, *f.Theta)
	}
	if f.ArmHeight != nil {
		flags |= flagArmHeight
		TelemetryFrameAddArmHeight(builder, *f.ArmHeight)
	}
	if f.ArmDistance != nil {
		flags |= flagArmDistance
		TelemetryFrameAddArmDistance(builder, *f.ArmDistance)
	}
	TelemetryFrameAddFlags(builder, flags)
	TelemetryFrameAddErrorMessage(builder, errMsg)
	TelemetryFrameAddTimestampNs(builder, f.TimestampNs)
	TelemetryFrameAddSeq(builder, f.Seq)
	builder.Finish(TelemetryFrameEnd(builder))
	return builder.FinishedBytes()
}

// Decode parses a buffer produced by Encode.
func Decode(buf []byte) (f Frame, err error) {
	if len(buf) < 8 {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrMalformedFrame, len(buf))
	}
	// accessors index the buffer directly and panic on bad offsets
	defer func() {
		if r := recover(); r != nil {
			f, err = Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, r)
		}
	}()

	t := GetRootAsTelemetryFrame(buf, 0)
	flags := t.Flags()
	f = Frame{
		RobotID:      string(t.RobotId()),
		Status:       string(t.Status()),
		HasTelemetry: flags&flagTelemetry != 0,
		State:        string(t.State()),
		Battery:      t.Battery(),
		X:            t.X(),
		Y:            t.Y(),
		ErrorMessage: string(t.ErrorMessage()),
		TimestampNs:  t.TimestampNs(),
		Seq:          t.Seq(),
	}
	if flags&flagTheta != 0 {
		v := t.Theta()
		f.Theta = &v
	}
	if flags&flagArmHeight != 0 {
		v := t.ArmHeight()
		f.ArmHeight = &v
	}
	if flags&flagArmDistance != 0 {
		v := t.ArmDistance()
		f.ArmDistance = &v
	}
	return f, nil
}
