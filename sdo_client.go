package canopen

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultSDOTimeout bounds each send -> await-response exchange.
const DefaultSDOTimeout = 300 * time.Millisecond

// SDOClient performs remote reads (upload) and writes (download) against
// one server node. One client talks to exactly one NodeIdServer; create
// one per remote node.
type SDOClient struct {
	bus          *BusManager
	nodeId       uint8 // client's own node id; both SDO COB-IDs derive from nodeIdServer
	nodeIdServer uint8
	timeout      time.Duration
}

func NewSDOClient(bus *BusManager, nodeId, nodeIdServer uint8) *SDOClient {
	return &SDOClient{bus: bus, nodeId: nodeId, nodeIdServer: nodeIdServer, timeout: DefaultSDOTimeout}
}

func (c *SDOClient) SetTimeout(d time.Duration) { c.timeout = d }

// exchange subscribes on the server's SdoTx COB-ID, sends request, and
// waits for either a matching response or the per-exchange timeout. On
// timeout the in-progress session is discarded: no abort frame is sent,
// and the caller must restart from initiate.
func (c *SDOClient) exchange(ctx context.Context, request Frame) (SdoWithIndexPayload, SdoWithoutIndexPayload, bool, error) {
	respCh := make(chan Frame, 1)
	cobId := (uint32(FuncSdoTx) << 7) | uint32(c.nodeIdServer)
	cancel := c.bus.Subscribe(cobId, FrameListenerFunc(func(f Frame) {
		select {
		case respCh <- f:
		default:
		}
	}))
	defer cancel()

	if err := c.bus.Send(ctx, request); err != nil {
		return SdoWithIndexPayload{}, SdoWithoutIndexPayload{}, false, err
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case f := <-respCh:
		switch p := f.Payload.(type) {
		case SdoWithIndexPayload:
			return p, SdoWithoutIndexPayload{}, true, nil
		case SdoWithoutIndexPayload:
			return SdoWithIndexPayload{}, p, false, nil
		default:
			log.Warnf("[CLIENT][RX][x%x] unexpected payload on SDO response", c.nodeIdServer)
			return SdoWithIndexPayload{}, SdoWithoutIndexPayload{}, false, &Error{Code: ErrSdoPayloadParseError}
		}
	case <-timer.C:
		return SdoWithIndexPayload{}, SdoWithoutIndexPayload{}, false, &Error{Code: ErrSdoProtocolTimedOut}
	case <-ctx.Done():
		return SdoWithIndexPayload{}, SdoWithoutIndexPayload{}, false, ctx.Err()
	}
}

// ReadObject performs a full upload (expedited or segmented) of
// (index, subindex) into dst, returning the number of bytes written.
func (c *SDOClient) ReadObject(ctx context.Context, index uint16, subindex uint8, dst []byte) (int, error) {
	req := NewSdoRequest(c.nodeIdServer).WithIndex(index, subindex).UploadRequest()
	withIdx, _, isWithIdx, err := c.exchange(ctx, req)
	if err != nil {
		return 0, err
	}
	if !isWithIdx {
		return 0, &Error{Code: ErrSdoPayloadParseError}
	}
	if withIdx.Cs == SCSAbort {
		code := SDOAbortCodeFromUint32(withIdx.Data)
		log.Debugf("[CLIENT][RX][x%x] SERVER ABORT | x%x:x%x | %v", c.nodeIdServer, index, subindex, code)
		return 0, &Error{Code: ErrSdoAbortCode, AbortCode: code}
	}
	if withIdx.Index != index || withIdx.Subindex != subindex {
		log.Warnf("[CLIENT][RX][x%x] response index x%x:x%x does not match request x%x:x%x", c.nodeIdServer, withIdx.Index, withIdx.Subindex, index, subindex)
		return 0, &Error{Code: ErrSdoAbortCode, AbortCode: AbortParameterIncompatibility}
	}

	if withIdx.Expedited {
		n := withIdx.Size
		if n > len(dst) {
			return 0, &Error{Code: ErrStringIsTooLong, MaxLength: len(dst), GivenLength: n}
		}
		var buf [4]byte
		buf[0] = byte(withIdx.Data)
		buf[1] = byte(withIdx.Data >> 8)
		buf[2] = byte(withIdx.Data >> 16)
		buf[3] = byte(withIdx.Data >> 24)
		copy(dst, buf[:n])
		log.Debugf("[CLIENT][RX][x%x] UPLOAD EXPEDITED | x%x:x%x %v", c.nodeIdServer, index, subindex, dst[:n])
		return n, nil
	}

	total := int(withIdx.Data)
	if total > len(dst) {
		return 0, &Error{Code: ErrStringIsTooLong, MaxLength: len(dst), GivenLength: total}
	}

	seg := NewSegmentBuilder(c.nodeIdServer)
	written := 0
	for written < total {
		req := seg.UploadRequest()
		_, withoutIdx, isWithIdx, err := c.exchange(ctx, req)
		if err != nil {
			return written, err
		}
		if isWithIdx {
			return written, &Error{Code: ErrSdoPayloadParseError}
		}
		if withoutIdx.Toggle != seg.CurrentToggle() {
			log.Warnf("[CLIENT][RX][x%x] toggle bit not alternated | x%x:x%x", c.nodeIdServer, index, subindex)
			return written, &Error{Code: ErrSdoAbortCode, AbortCode: AbortToggleBitNotAlternated}
		}
		emptyBytes := 0
		if withoutIdx.LengthOfEmptyBytes != nil {
			emptyBytes = *withoutIdx.LengthOfEmptyBytes
		}
		chunkLen := 7 - emptyBytes
		if written+chunkLen > len(dst) {
			chunkLen = len(dst) - written
		}
		copy(dst[written:], withoutIdx.Data[:chunkLen])
		written += chunkLen
		log.Debugf("[CLIENT][RX][x%x] UPLOAD SEGMENT | x%x:x%x %v", c.nodeIdServer, index, subindex, withoutIdx.Data)
	}
	return written, nil
}

// WriteObject performs an expedited download of src (1..4 bytes) into
// (index, subindex). Segmented download is not supported.
func (c *SDOClient) WriteObject(ctx context.Context, index uint16, subindex uint8, src []byte) error {
	if len(src) == 0 || len(src) > 4 {
		return &Error{Code: ErrInvalidDataLength, Length: len(src)}
	}
	req := NewSdoRequest(c.nodeIdServer).WithIndex(index, subindex).Download(src)
	log.Debugf("[CLIENT][TX][x%x] DOWNLOAD EXPEDITED | x%x:x%x %v", c.nodeIdServer, index, subindex, src)
	withIdx, _, isWithIdx, err := c.exchange(ctx, req)
	if err != nil {
		return err
	}
	if !isWithIdx {
		return &Error{Code: ErrSdoPayloadParseError}
	}
	if withIdx.Cs == SCSAbort {
		code := SDOAbortCodeFromUint32(withIdx.Data)
		log.Debugf("[CLIENT][RX][x%x] SERVER ABORT | x%x:x%x | %v", c.nodeIdServer, index, subindex, code)
		return &Error{Code: ErrSdoAbortCode, AbortCode: code}
	}
	return nil
}
