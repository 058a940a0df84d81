package canopen

import "encoding/binary"

// PdoBuilder builds Unspecific-payload frames addressed by a PDO COB-ID.
type PdoBuilder struct {
	cobId uint32
	rtr   bool
	err   error
}

// PDO starts a PDO frame builder. cobId must fall in the PDO range
// (0x180-0x5FF); a builder carrying an out-of-range id defers the error to
// Payload so callers can chain SetRTR first, as in `PDO(id).SetRTR(true).Payload(...)`.
func PDO(cobId uint32) *PdoBuilder {
	b := &PdoBuilder{cobId: cobId}
	if cobId < 0x180 || cobId > 0x5FF {
		b.err = &Error{Code: ErrInvalidCobId, CobId: cobId}
	}
	return b
}

func (b *PdoBuilder) SetRTR(rtr bool) *PdoBuilder {
	b.rtr = rtr
	return b
}

func (b *PdoBuilder) Payload(data []byte) (Frame, error) {
	if b.err != nil {
		return Frame{}, b.err
	}
	if len(data) > 8 {
		return Frame{}, &Error{Code: ErrInvalidDataLength, Length: len(data)}
	}
	functionCode := FunctionCode((b.cobId >> 7) & 0x0F)
	nodeId := uint8(b.cobId & 0x7F)
	cp := make([]byte, len(data))
	copy(cp, data)
	return Frame{NodeId: nodeId, FrameType: functionCode, IsRTR: b.rtr, Payload: UnspecificPayload{Data: cp}}, nil
}

// SdoRequestBuilder builds client -> server (SdoRx) frames.
type SdoRequestBuilder struct {
	nodeId   uint8
	index    uint16
	subindex uint8
}

func NewSdoRequest(nodeId uint8) *SdoRequestBuilder {
	return &SdoRequestBuilder{nodeId: nodeId}
}

func (b *SdoRequestBuilder) WithIndex(index uint16, subindex uint8) *SdoRequestBuilder {
	b.index = index
	b.subindex = subindex
	return b
}

func (b *SdoRequestBuilder) DownloadOneByte(v uint8) Frame {
	return b.download([]byte{v})
}

func (b *SdoRequestBuilder) DownloadTwoBytes(v uint16) Frame {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, v)
	return b.download(buf)
}

func (b *SdoRequestBuilder) DownloadFourBytes(v uint32) Frame {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	return b.download(buf)
}

// Download builds an expedited write of up to 4 bytes. More than 4 bytes is
// a programmer error and panics.
func (b *SdoRequestBuilder) Download(data []byte) Frame {
	return b.download(data)
}

func (b *SdoRequestBuilder) download(data []byte) Frame {
	if len(data) > 4 {
		panic("canopen: expedited SDO download cannot exceed 4 bytes")
	}
	var buf [4]byte
	copy(buf[:], data)
	value := binary.LittleEndian.Uint32(buf[:])
	return Frame{
		NodeId:    b.nodeId,
		FrameType: FuncSdoRx,
		Payload: SdoWithIndexPayload{
			Cs: CCSInitiateDownload, Size: len(data), Expedited: true,
			Index: b.index, Subindex: b.subindex, Data: value,
		},
	}
}

func (b *SdoRequestBuilder) UploadRequest() Frame {
	return Frame{
		NodeId:    b.nodeId,
		FrameType: FuncSdoRx,
		Payload: SdoWithIndexPayload{
			Cs: CCSInitiateUpload, Size: 0, Expedited: false,
			Index: b.index, Subindex: b.subindex, Data: 0,
		},
	}
}

// SdoResponseBuilder builds server -> client (SdoTx) frames.
type SdoResponseBuilder struct {
	nodeId   uint8
	index    uint16
	subindex uint8
}

func NewSdoResponse(nodeId uint8) *SdoResponseBuilder {
	return &SdoResponseBuilder{nodeId: nodeId}
}

func (b *SdoResponseBuilder) WithIndex(index uint16, subindex uint8) *SdoResponseBuilder {
	b.index = index
	b.subindex = subindex
	return b
}

func (b *SdoResponseBuilder) DownloadResponse() Frame {
	return Frame{
		NodeId:    b.nodeId,
		FrameType: FuncSdoTx,
		Payload: SdoWithIndexPayload{
			Cs: SCSInitiateDownload, Size: 0, Expedited: false,
			Index: b.index, Subindex: b.subindex,
		},
	}
}

func (b *SdoResponseBuilder) UploadOneByteExpeditedResponse(v uint8) Frame {
	return b.uploadExpedited(1, uint32(v))
}

func (b *SdoResponseBuilder) UploadTwoBytesExpeditedResponse(v uint16) Frame {
	return b.uploadExpedited(2, uint32(v))
}

func (b *SdoResponseBuilder) UploadThreeBytesExpeditedResponse(v uint32) Frame {
	return b.uploadExpedited(3, v&0x00FFFFFF)
}

func (b *SdoResponseBuilder) UploadFourBytesExpeditedResponse(v uint32) Frame {
	return b.uploadExpedited(4, v)
}

func (b *SdoResponseBuilder) uploadExpedited(size int, value uint32) Frame {
	return Frame{
		NodeId:    b.nodeId,
		FrameType: FuncSdoTx,
		Payload: SdoWithIndexPayload{
			Cs: SCSInitiateUpload, Size: size, Expedited: true,
			Index: b.index, Subindex: b.subindex, Data: value,
		},
	}
}

// UploadSegmentedResponse initiates a multi-frame upload: expedited is
// false, size reads as FourBytes (4), and data carries the total length.
func (b *SdoResponseBuilder) UploadSegmentedResponse(totalLength uint32) Frame {
	return Frame{
		NodeId:    b.nodeId,
		FrameType: FuncSdoTx,
		Payload: SdoWithIndexPayload{
			Cs: SCSInitiateUpload, Size: 4, Expedited: false,
			Index: b.index, Subindex: b.subindex, Data: totalLength,
		},
	}
}

func (b *SdoResponseBuilder) Abort(code SDOAbortCode) Frame {
	return Frame{
		NodeId:    b.nodeId,
		FrameType: FuncSdoTx,
		Payload: SdoWithIndexPayload{
			Cs: SCSAbort, Size: 0, Expedited: false,
			Index: b.index, Subindex: b.subindex, Data: code.Uint32(),
		},
	}
}

// SegmentBuilder builds SdoWithoutIndex segment frames for one SDO session.
//
// Owning the toggle field on the builder rather than the session would be
// fragile: the builder is meant to be held by the session object (client or
// server) for the lifetime of one transfer, one instance per in-flight
// transfer, discarded with the session on completion, abort or timeout. It
// starts at toggle=true so the first build flips it to false, matching the
// segmented-transfer rule that the first segment always carries
// toggle=false.
type SegmentBuilder struct {
	nodeId uint8
	toggle bool
}

func NewSegmentBuilder(nodeId uint8) *SegmentBuilder {
	return &SegmentBuilder{nodeId: nodeId, toggle: true}
}

func (b *SegmentBuilder) nextToggle() bool {
	b.toggle = !b.toggle
	return b.toggle
}

// CurrentToggle reports the toggle value used by the most recently built
// frame, so a caller can check a peer's echoed toggle against it.
func (b *SegmentBuilder) CurrentToggle() bool { return b.toggle }

func (b *SegmentBuilder) UploadRequest() Frame {
	t := b.nextToggle()
	return Frame{
		NodeId: b.nodeId, FrameType: FuncSdoRx,
		Payload: SdoWithoutIndexPayload{Cs: CCSUploadSegment, Toggle: t},
	}
}

func (b *SegmentBuilder) UploadResponse(chunk []byte) (Frame, error) {
	if len(chunk) > 7 {
		return Frame{}, &Error{Code: ErrBuilderError, Detail: "segment chunk longer than 7 bytes"}
	}
	t := b.nextToggle()
	var data [7]byte
	copy(data[:], chunk)
	var lengthOfEmpty *int
	if len(chunk) < 7 {
		l := 7 - len(chunk)
		lengthOfEmpty = &l
	}
	return Frame{
		NodeId: b.nodeId, FrameType: FuncSdoTx,
		Payload: SdoWithoutIndexPayload{Cs: SCSUploadSegment, Toggle: t, LengthOfEmptyBytes: lengthOfEmpty, Data: data},
	}, nil
}

func (b *SegmentBuilder) DownloadRequest(chunk []byte) (Frame, error) {
	if len(chunk) > 7 {
		return Frame{}, &Error{Code: ErrBuilderError, Detail: "segment chunk longer than 7 bytes"}
	}
	t := b.nextToggle()
	var data [7]byte
	copy(data[:], chunk)
	var lengthOfEmpty *int
	if len(chunk) < 7 {
		l := 7 - len(chunk)
		lengthOfEmpty = &l
	}
	return Frame{
		NodeId: b.nodeId, FrameType: FuncSdoRx,
		Payload: SdoWithoutIndexPayload{Cs: CCSDownloadSegment, Toggle: t, LengthOfEmptyBytes: lengthOfEmpty, Data: data},
	}, nil
}

func (b *SegmentBuilder) DownloadResponse() Frame {
	t := b.nextToggle()
	return Frame{
		NodeId: b.nodeId, FrameType: FuncSdoTx,
		Payload: SdoWithoutIndexPayload{Cs: SCSDownloadSegment, Toggle: t},
	}
}
