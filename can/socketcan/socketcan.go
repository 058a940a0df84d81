// Package socketcan adapts github.com/brutella/can's callback-driven bus
// to canopen.Transport's blocking NextFrame/WriteFrame pair.
package socketcan

import (
	"context"

	"github.com/brutella/can"
	"github.com/libcanopen/gocanopen"
	"golang.org/x/sys/unix"
)

// Bus wraps a brutella/can bus bound to a Linux SocketCAN interface.
type Bus struct {
	bus *can.Bus
	rx  chan canopen.RawFrame
}

// New opens the named SocketCAN interface (e.g. "can0") and starts its
// receive loop.
func New(name string) (*Bus, error) {
	raw, err := can.NewBusForInterfaceWithName(name)
	if err != nil {
		return nil, &canopen.Error{Code: canopen.ErrSocketInstanciatingError, Detail: err.Error()}
	}
	b := &Bus{bus: raw, rx: make(chan canopen.RawFrame, 64)}
	b.bus.Subscribe(b)
	go b.bus.ConnectAndPublish()
	return b, nil
}

// Handle implements brutella/can's frame-handler interface.
func (b *Bus) Handle(frame can.Frame) {
	data := append([]byte(nil), frame.Data[:frame.Length]...)
	raw := canopen.RawFrame{
		CobId: frame.ID & unix.CAN_SFF_MASK,
		IsRTR: frame.ID&unix.CAN_RTR_FLAG != 0,
		Data:  data,
	}
	select {
	case b.rx <- raw:
	default:
	}
}

func (b *Bus) NextFrame(ctx context.Context) (canopen.RawFrame, error) {
	select {
	case frame := <-b.rx:
		return frame, nil
	case <-ctx.Done():
		return canopen.RawFrame{}, ctx.Err()
	}
}

func (b *Bus) WriteFrame(ctx context.Context, frame canopen.RawFrame) error {
	var data [8]byte
	copy(data[:], frame.Data)
	id := frame.CobId
	if frame.IsRTR {
		id |= unix.CAN_RTR_FLAG
	}
	out := can.Frame{ID: id, Length: uint8(len(frame.Data)), Data: data}
	if err := b.bus.Publish(out); err != nil {
		return &canopen.Error{Code: canopen.ErrSocketWriteError, Detail: err.Error()}
	}
	return nil
}
