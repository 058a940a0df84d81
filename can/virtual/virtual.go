// Package virtual provides an in-process loopback CAN bus used by tests:
// a shared Go channel stands in for the wire since
// nothing here crosses a process boundary.
package virtual

import (
	"context"
	"sync"

	"github.com/libcanopen/gocanopen"
)

// Network is a shared medium: every Bus created with the same Network
// observes every frame written by any other Bus on it, simulating a CAN
// bus's broadcast semantics.
type Network struct {
	mu   sync.Mutex
	subs []chan canopen.RawFrame
}

func NewNetwork() *Network {
	return &Network{}
}

func (n *Network) attach(buf int) chan canopen.RawFrame {
	n.mu.Lock()
	defer n.mu.Unlock()
	ch := make(chan canopen.RawFrame, buf)
	n.subs = append(n.subs, ch)
	return ch
}

func (n *Network) broadcast(from chan canopen.RawFrame, frame canopen.RawFrame) {
	n.mu.Lock()
	subs := append([]chan canopen.RawFrame(nil), n.subs...)
	n.mu.Unlock()
	for _, ch := range subs {
		if ch == from {
			continue
		}
		select {
		case ch <- frame:
		default:
		}
	}
}

// Bus is one endpoint on a Network. It implements canopen.Transport.
type Bus struct {
	net *Network
	rx  chan canopen.RawFrame
}

func NewBus(net *Network) *Bus {
	return &Bus{net: net, rx: net.attach(64)}
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
	cp := canopen.RawFrame{CobId: frame.CobId, IsRTR: frame.IsRTR, Data: append([]byte(nil), frame.Data...)}
	b.net.broadcast(b.rx, cp)
	return nil
}
