package canopen_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libcanopen/gocanopen"
	"github.com/libcanopen/gocanopen/can/virtual"
)

func newLinkedBuses(t *testing.T) (*canopen.BusManager, *canopen.BusManager) {
	net := virtual.NewNetwork()
	clientBus := canopen.NewBusManager(virtual.NewBus(net))
	serverBus := canopen.NewBusManager(virtual.NewBus(net))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go clientBus.Run(ctx)
	go serverBus.Run(ctx)
	return clientBus, serverBus
}

func TestExpeditedWriteThenRead(t *testing.T) {
	clientBus, serverBus := newLinkedBuses(t)

	od := canopen.NewBuilder().
		WithStandardEntries(canopen.Identity{VendorId: 1}).
		AddVariable(0x2000, 0x01, canopen.NewU32(0)).
		Build()
	canopen.NewSDOServer(serverBus, od, 0x01)

	client := canopen.NewSDOClient(clientBus, 0x02, 0x01)
	ctx := context.Background()

	err := client.WriteObject(ctx, 0x2000, 0x01, []byte{0x44, 0x33, 0x22, 0x11})
	require.NoError(t, err)

	dst := make([]byte, 4)
	n, err := client.ReadObject(ctx, 0x2000, 0x01, dst)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{0x44, 0x33, 0x22, 0x11}, dst)
}

func TestWriteToConstEntryAborts(t *testing.T) {
	clientBus, serverBus := newLinkedBuses(t)

	od := canopen.NewBuilder().WithStandardEntries(canopen.Identity{VendorId: 1}).Build()
	canopen.NewSDOServer(serverBus, od, 0x01)

	client := canopen.NewSDOClient(clientBus, 0x02, 0x01)
	err := client.WriteObject(context.Background(), 0x1000, 0x01, []byte{0x01})
	require.Error(t, err)

	coErr, ok := err.(*canopen.Error)
	require.True(t, ok)
	assert.Equal(t, canopen.ErrSdoAbortCode, coErr.Code)
	assert.Equal(t, canopen.AbortWriteReadOnlyError, coErr.AbortCode)
}

func TestSegmentedStringUpload(t *testing.T) {
	clientBus, serverBus := newLinkedBuses(t)

	od := canopen.NewBuilder().
		WithStandardEntries(canopen.Identity{VendorId: 1}).
		AddConst(0x2001, 0x01, canopen.NewString("hello world")).
		Build()
	canopen.NewSDOServer(serverBus, od, 0x01)

	client := canopen.NewSDOClient(clientBus, 0x02, 0x01)
	dst := make([]byte, 64)
	n, err := client.ReadObject(context.Background(), 0x2001, 0x01, dst)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(dst[:n]))
}

func TestReadUnknownObjectAborts(t *testing.T) {
	clientBus, serverBus := newLinkedBuses(t)
	od := canopen.NewBuilder().WithStandardEntries(canopen.Identity{VendorId: 1}).Build()
	canopen.NewSDOServer(serverBus, od, 0x01)

	client := canopen.NewSDOClient(clientBus, 0x02, 0x01)
	client.SetTimeout(100 * time.Millisecond)
	dst := make([]byte, 4)
	_, err := client.ReadObject(context.Background(), 0x9999, 0x00, dst)
	require.Error(t, err)
	coErr, ok := err.(*canopen.Error)
	require.True(t, ok)
	assert.Equal(t, canopen.ErrSdoAbortCode, coErr.Code)
	assert.Equal(t, canopen.AbortObjectDoesNotExist, coErr.AbortCode)
}

func TestServerRejectsBlockUpload(t *testing.T) {
	clientBus, serverBus := newLinkedBuses(t)
	od := canopen.NewBuilder().WithStandardEntries(canopen.Identity{VendorId: 1}).Build()
	canopen.NewSDOServer(serverBus, od, 0x01)

	respCh := make(chan canopen.Frame, 1)
	cancel := clientBus.Subscribe(0x581, canopen.FrameListenerFunc(func(f canopen.Frame) {
		respCh <- f
	}))
	defer cancel()

	req := canopen.Frame{
		NodeId: 0x01, FrameType: canopen.FuncSdoRx,
		Payload: canopen.SdoWithIndexPayload{Cs: canopen.CCSBlockUpload, Index: 0x1000, Subindex: 0x01},
	}
	require.NoError(t, clientBus.Send(context.Background(), req))

	select {
	case f := <-respCh:
		p, ok := f.Payload.(canopen.SdoWithIndexPayload)
		require.True(t, ok)
		assert.Equal(t, canopen.SCSAbort, p.Cs)
		assert.Equal(t, canopen.AbortUnsupportedAccess, canopen.SDOAbortCodeFromUint32(p.Data))
	case <-time.After(time.Second):
		t.Fatal("server did not respond to block upload request")
	}
}

func TestReadObjectRejectsMismatchedResponseIndex(t *testing.T) {
	clientBus, serverBus := newLinkedBuses(t)

	// A rogue responder answers every request with the wrong index; the
	// client must reject it instead of copying its data into dst.
	reqCobId := (uint32(canopen.FuncSdoRx) << 7) | uint32(0x01)
	cancel := serverBus.Subscribe(reqCobId, canopen.FrameListenerFunc(func(f canopen.Frame) {
		resp := canopen.NewSdoResponse(0x01).WithIndex(0x3000, 0x02).UploadFourBytesExpeditedResponse(0xDEADBEEF)
		_ = serverBus.Send(context.Background(), resp)
	}))
	defer cancel()

	client := canopen.NewSDOClient(clientBus, 0x02, 0x01)
	client.SetTimeout(200 * time.Millisecond)
	dst := make([]byte, 4)
	_, err := client.ReadObject(context.Background(), 0x2000, 0x01, dst)
	require.Error(t, err)
	coErr, ok := err.(*canopen.Error)
	require.True(t, ok)
	assert.Equal(t, canopen.ErrSdoAbortCode, coErr.Code)
	assert.Equal(t, canopen.AbortParameterIncompatibility, coErr.AbortCode)
}

func TestClientTimeoutWhenNoServer(t *testing.T) {
	net := virtual.NewNetwork()
	clientBus := canopen.NewBusManager(virtual.NewBus(net))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go clientBus.Run(ctx)

	client := canopen.NewSDOClient(clientBus, 0x02, 0x01)
	client.SetTimeout(50 * time.Millisecond)
	dst := make([]byte, 4)
	_, err := client.ReadObject(context.Background(), 0x1000, 0x01, dst)
	require.Error(t, err)
	coErr, ok := err.(*canopen.Error)
	require.True(t, ok)
	assert.Equal(t, canopen.ErrSdoProtocolTimedOut, coErr.Code)
}
