package canopen

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Transport is the "read next frame / write frame" abstraction that the
// SDO client and server depend on. It is the only place blocking or
// suspension occurs; the core makes no assumption about the scheduler
// driving it.
type Transport interface {
	// NextFrame blocks until a raw CAN frame arrives or ctx is done.
	NextFrame(ctx context.Context) (RawFrame, error)
	// WriteFrame sends a raw CAN frame, returning any transport-level error.
	WriteFrame(ctx context.Context, frame RawFrame) error
}

// FrameListener receives classified frames dispatched by a BusManager
// subscription.
type FrameListener interface {
	Handle(Frame)
}

type FrameListenerFunc func(Frame)

func (f FrameListenerFunc) Handle(fr Frame) { f(fr) }

type subscriber struct {
	id       uint64
	callback FrameListener
}

// BusManager is a mutex-protected, CAN-ID-indexed subscriber registry
// sitting on top of a Transport. It owns the single receive loop: Run
// parses every inbound RawFrame and fans it out to subscribers registered
// for that COB-ID.
type BusManager struct {
	logger *log.Logger

	mu        sync.Mutex
	transport Transport
	listeners map[uint32][]subscriber
	nextSubId uint64
}

func NewBusManager(transport Transport) *BusManager {
	return &BusManager{
		logger:    log.StandardLogger(),
		transport: transport,
		listeners: make(map[uint32][]subscriber),
	}
}

// Subscribe registers callback for frames with the given COB-ID. It
// returns a cancel func that removes the subscription.
func (bm *BusManager) Subscribe(cobId uint32, callback FrameListener) (cancel func()) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	bm.nextSubId++
	subId := bm.nextSubId
	bm.listeners[cobId] = append(bm.listeners[cobId], subscriber{id: subId, callback: callback})

	return func() {
		bm.mu.Lock()
		defer bm.mu.Unlock()
		subs := bm.listeners[cobId]
		for i, sub := range subs {
			if sub.id == subId {
				bm.listeners[cobId] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Send serialises a frame and writes it to the transport.
func (bm *BusManager) Send(ctx context.Context, frame Frame) error {
	raw, err := frame.ToRaw()
	if err != nil {
		return err
	}
	if err := bm.transport.WriteFrame(ctx, raw); err != nil {
		bm.logger.WithError(err).Warn("error sending frame")
		return &Error{Code: ErrSocketWriteError, Detail: err.Error()}
	}
	return nil
}

// Run drives the receive loop until ctx is cancelled or the transport
// returns an error. It is meant to run in its own goroutine; dispatch to
// subscribers is synchronous and must not block.
func (bm *BusManager) Run(ctx context.Context) error {
	for {
		raw, err := bm.transport.NextFrame(ctx)
		if err != nil {
			return err
		}
		frame, err := ParseFrame(raw)
		if err != nil {
			bm.logger.WithError(err).Debug("dropping unparseable frame")
			continue
		}
		bm.mu.Lock()
		subs := append([]subscriber(nil), bm.listeners[frame.CobId()]...)
		bm.mu.Unlock()
		for _, sub := range subs {
			sub.callback.Handle(frame)
		}
	}
}
