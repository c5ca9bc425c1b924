package wire

import (
	flatbuffers "github.com/google/flatbuffers/go"
)

// TelemetryFrame accessors and builders for telemetry.fbs.

type TelemetryFrame struct {
	_tab flatbuffers.Table
}

func GetRootAsTelemetryFrame(buf []byte, offset flatbuffers.UOffsetT) *TelemetryFrame {
	n := flatbuffers.GetUOffsetT(buf[offset:])
	x := &TelemetryFrame{}
	x.Init(buf, n+offset)
	return x
}

func (rcv *TelemetryFrame) Init(buf []byte, i flatbuffers.UOffsetT) {
	rcv._tab.Bytes = buf
	rcv._tab.Pos = i
}

func (rcv *TelemetryFrame) Table() flatbuffers.Table {
	return rcv._tab
}

func (rcv *TelemetryFrame) str(slot flatbuffers.VOffsetT) []byte {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(slot))
	if o != 0 {
		return rcv._tab.ByteVector(o + rcv._tab.Pos)
	}
	return nil
}

func (rcv *TelemetryFrame) f64(slot flatbuffers.VOffsetT) float64 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(slot))
	if o != 0 {
		return rcv._tab.GetFloat64(o + rcv._tab.Pos)
	}
	return 0.0
}

func (rcv *TelemetryFrame) RobotId() []byte      { return rcv.str(4) }
func (rcv *TelemetryFrame) Status() []byte       { return rcv.str(6) }
func (rcv *TelemetryFrame) State() []byte        { return rcv.str(8) }
func (rcv *TelemetryFrame) Battery() float64     { return rcv.f64(10) }
func (rcv *TelemetryFrame) X() float64           { return rcv.f64(12) }
func (rcv *TelemetryFrame) Y() float64           { return rcv.f64(14) }
func (rcv *TelemetryFrame) Theta() float64       { return rcv.f64(16) }
func (rcv *TelemetryFrame) ArmHeight() float64   { return rcv.f64(20) }
func (rcv *TelemetryFrame) ArmDistance() float64 { return rcv.f64(22) }
func (rcv *TelemetryFrame) ErrorMessage() []byte { return rcv.str(24) }

func (rcv *TelemetryFrame) Flags() byte {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(18))
	if o != 0 {
		return rcv._tab.GetByte(o + rcv._tab.Pos)
	}
	return 0
}

func (rcv *TelemetryFrame) TimestampNs() int64 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(26))
	if o != 0 {
		return rcv._tab.GetInt64(o + rcv._tab.Pos)
	}
	return 0
}

func (rcv *TelemetryFrame) Seq() uint64 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(28))
	if o != 0 {
		return rcv._tab.GetUint64(o + rcv._tab.Pos)
	}
	return 0
}

func TelemetryFrameStart(builder *flatbuffers.Builder) {
	builder.StartObject(13)
}
func TelemetryFrameAddRobotId(builder *flatbuffers.Builder, robotId flatbuffers.UOffsetT) {
	builder.PrependUOffsetTSlot(0, robotId, 0)
}
func TelemetryFrameAddStatus(builder *flatbuffers.Builder, status flatbuffers.UOffsetT) {
	builder.PrependUOffsetTSlot(1, status, 0)
}
func TelemetryFrameAddState(builder *flatbuffers.Builder, state flatbuffers.UOffsetT) {
	builder.PrependUOffsetTSlot(2, state, 0)
}
func TelemetryFrameAddBattery(builder *flatbuffers.Builder, battery float64) {
	builder.PrependFloat64Slot(3, battery, 0.0)
}
func TelemetryFrameAddX(builder *flatbuffers.Builder, x float64) {
	builder.PrependFloat64Slot(4, x, 0.0)
}
func TelemetryFrameAddY(builder *flatbuffers.Builder, y float64) {
	builder.PrependFloat64Slot(5, y, 0.0)
}
func TelemetryFrameAddTheta(builder *flatbuffers.Builder, theta float64) {
	builder.PrependFloat64Slot(6, theta, 0.0)
}
func TelemetryFrameAddFlags(builder *flatbuffers.Builder, flags byte) {
	builder.PrependByteSlot(7, flags, 0)
}
func TelemetryFrameAddArmHeight(builder *flatbuffers.Builder, armHeight float64) {
	builder.PrependFloat64Slot(8, armHeight, 0.0)
}
func TelemetryFrameAddArmDistance(builder *flatbuffers.Builder, armDistance float64) {
	builder.PrependFloat64Slot(9, armDistance, 0.0)
}
func TelemetryFrameAddErrorMessage(builder *flatbuffers.Builder, errorMessage flatbuffers.UOffsetT) {
	builder.PrependUOffsetTSlot(10, errorMessage, 0)
}
func TelemetryFrameAddTimestampNs(builder *flatbuffers.Builder, timestampNs int64) {
	builder.PrependInt64Slot(11, timestampNs, 0)
}
func TelemetryFrameAddSeq(builder *flatbuffers.Builder, seq uint64) {
	builder.PrependUint64Slot(12, seq, 0)
}
func TelemetryFrameEnd(builder *flatbuffers.Builder) flatbuffers.UOffsetT {
	return builder.EndObject()
}
