package canopen

import "fmt"

// FunctionCode is the upper 4 bits of a COB-ID.
type FunctionCode uint8

const (
	FuncNmt             FunctionCode = 0b0000
	FuncSyncEmergency   FunctionCode = 0b0001
	FuncTime            FunctionCode = 0b0010
	FuncTpdo1           FunctionCode = 0b0011
	FuncRpdo1           FunctionCode = 0b0100
	FuncTpdo2           FunctionCode = 0b0101
	FuncRpdo2           FunctionCode = 0b0110
	FuncTpdo3           FunctionCode = 0b0111
	FuncRpdo3           FunctionCode = 0b1000
	FuncTpdo4           FunctionCode = 0b1001
	FuncRpdo4           FunctionCode = 0b1010
	FuncSdoTx           FunctionCode = 0b1011 // server -> client
	FuncSdoRx           FunctionCode = 0b1100 // client -> server
	FuncNmtErrorControl FunctionCode = 0b1110
)

var validFunctionCodes = map[FunctionCode]bool{
	FuncNmt: true, FuncSyncEmergency: true, FuncTime: true,
	FuncTpdo1: true, FuncRpdo1: true, FuncTpdo2: true, FuncRpdo2: true,
	FuncTpdo3: true, FuncRpdo3: true, FuncTpdo4: true, FuncRpdo4: true,
	FuncSdoTx: true, FuncSdoRx: true, FuncNmtErrorControl: true,
}

func (fc FunctionCode) String() string {
	switch fc {
	case FuncNmt:
		return "NMT"
	case FuncSyncEmergency:
		return "SYNC/EMCY"
	case FuncTime:
		return "TIME"
	case FuncTpdo1:
		return "TPDO1"
	case FuncRpdo1:
		return "RPDO1"
	case FuncTpdo2:
		return "TPDO2"
	case FuncRpdo2:
		return "RPDO2"
	case FuncTpdo3:
		return "TPDO3"
	case FuncRpdo3:
		return "RPDO3"
	case FuncTpdo4:
		return "TPDO4"
	case FuncRpdo4:
		return "RPDO4"
	case FuncSdoTx:
		return "SDOTx"
	case FuncSdoRx:
		return "SDORx"
	case FuncNmtErrorControl:
		return "NMT-ErrorControl"
	default:
		return fmt.Sprintf("FunctionCode(%d)", uint8(fc))
	}
}

// CommandSpecifier holds the 3-bit cs field of an SDO command byte. The
// meaning of a given value depends on the frame direction: SdoRx frames use
// the CCS* constants, SdoTx frames use the SCS* constants; both sets share
// the same underlying wire bits by CANopen convention.
type CommandSpecifier uint8

const (
	CCSDownloadSegment  CommandSpecifier = 0
	CCSInitiateDownload CommandSpecifier = 1
	CCSInitiateUpload   CommandSpecifier = 2
	CCSUploadSegment    CommandSpecifier = 3
	CCSBlockUpload      CommandSpecifier = 5
	CCSBlockDownload    CommandSpecifier = 6
	CCSUnspecified      CommandSpecifier = 7
)

const (
	SCSUploadSegment   CommandSpecifier = 0
	SCSDownloadSegment CommandSpecifier = 1
	SCSInitiateUpload  CommandSpecifier = 2
	SCSInitiateDownload CommandSpecifier = 3
	SCSAbort           CommandSpecifier = 4
	SCSBlockUpload     CommandSpecifier = 5
	SCSBlockDownload   CommandSpecifier = 6
	SCSUnspecified     CommandSpecifier = 7
)

// Payload is implemented by UnspecificPayload, SdoWithIndexPayload and
// SdoWithoutIndexPayload.
type Payload interface {
	isPayload()
}

// UnspecificPayload carries raw bytes for PDO, NMT, heartbeat, sync and
// emergency frames, and for anything on an SDO COB-ID that doesn't parse as
// a recognised SDO command byte.
type UnspecificPayload struct {
	Data []byte // len <= 8
}

func (UnspecificPayload) isPayload() {}

// SdoWithIndexPayload is the first frame of any SDO exchange that carries an
// index: expedited transfers, initiate responses, and abort frames.
type SdoWithIndexPayload struct {
	Cs        CommandSpecifier
	Size      int // 0 = NotSet, else 1..4 bytes of data present
	Expedited bool
	Index     uint16
	Subindex  uint8
	Data      uint32
}

func (SdoWithIndexPayload) isPayload() {}

// SdoWithoutIndexPayload is a segment continuation frame.
type SdoWithoutIndexPayload struct {
	Cs                 CommandSpecifier
	Toggle             bool
	LengthOfEmptyBytes *int // nil when the size flag is clear
	Data               [7]byte
}

func (SdoWithoutIndexPayload) isPayload() {}

// RawFrame is what the transport layer reads and writes: an 11-bit CAN
// frame with no CANopen interpretation applied.
type RawFrame struct {
	CobId uint32
	Data  []byte
	IsRTR bool
}

// Frame is a classified CANopen frame.
type Frame struct {
	NodeId    uint8
	FrameType FunctionCode
	IsRTR     bool
	Payload   Payload
}

// CobId reconstructs the 11-bit identifier from the frame type and node id.
func (f Frame) CobId() uint32 {
	return (uint32(f.FrameType) << 7) | uint32(f.NodeId)
}

// ParseFrame classifies a raw CAN frame into a typed Frame.
//
// WithIndex is used for command specifiers that carry an index/subindex
// (Abort, InitiateUpload, InitiateDownload) and for the block and
// unspecified specifiers, which share that byte layout. Segment
// continuations (UploadSegment, DownloadSegment) never carry an index and
// are routed to WithoutIndex instead, symmetrically for SdoTx and SdoRx.
// Treating all non-block command specifiers as WithIndex would misread
// segment continuations and break segmented transfer.
func ParseFrame(raw RawFrame) (Frame, error) {
	if raw.CobId > 0x77F {
		return Frame{}, &Error{Code: ErrInvalidCobId, CobId: raw.CobId}
	}
	functionCode := FunctionCode((raw.CobId >> 7) & 0x0F)
	nodeId := uint8(raw.CobId & 0x7F)
	if !validFunctionCodes[functionCode] {
		return Frame{}, &Error{Code: ErrInvalidCobId, CobId: raw.CobId}
	}
	if len(raw.Data) > 8 {
		return Frame{}, &Error{Code: ErrInvalidDataLength, Length: len(raw.Data)}
	}

	var payload Payload
	switch {
	case (functionCode == FuncSdoTx || functionCode == FuncSdoRx) && len(raw.Data) == 8:
		payload = parseSdoPayload(functionCode, raw.Data)
	default:
		data := make([]byte, len(raw.Data))
		copy(data, raw.Data)
		payload = UnspecificPayload{Data: data}
	}

	return Frame{NodeId: nodeId, FrameType: functionCode, IsRTR: raw.IsRTR, Payload: payload}, nil
}

func parseSdoPayload(functionCode FunctionCode, data []byte) Payload {
	cmd := data[0]
	cs := CommandSpecifier((cmd >> 5) & 0x07)

	if functionCode == FuncSdoTx {
		switch cs {
		case SCSAbort, SCSInitiateUpload, SCSInitiateDownload, SCSBlockUpload, SCSBlockDownload, SCSUnspecified:
			return decodeWithIndex(cs, cmd, data)
		case SCSUploadSegment, SCSDownloadSegment:
			return decodeWithoutIndex(cs, cmd, data)
		default:
			unspec := make([]byte, len(data))
			copy(unspec, data)
			return UnspecificPayload{Data: unspec}
		}
	}

	// FuncSdoRx. Block*/Unspecified carry the same cmd/index/subindex byte
	// layout as Initiate*, so they decode as WithIndex too; this is what lets
	// a server reject them with AbortUnsupportedAccess instead of dropping
	// the frame.
	switch cs {
	case CCSInitiateDownload, CCSInitiateUpload, CCSBlockUpload, CCSBlockDownload, CCSUnspecified:
		return decodeWithIndex(cs, cmd, data)
	case CCSDownloadSegment, CCSUploadSegment:
		return decodeWithoutIndex(cs, cmd, data)
	default:
		unspec := make([]byte, len(data))
		copy(unspec, data)
		return UnspecificPayload{Data: unspec}
	}
}

func decodeWithIndex(cs CommandSpecifier, cmd byte, data []byte) SdoWithIndexPayload {
	size := 0
	if cmd&0x01 != 0 {
		n := int((cmd >> 2) & 0x03)
		size = 4 - n
	}
	expedited := cmd&0x02 != 0
	index := uint16(data[1]) | uint16(data[2])<<8
	subindex := data[3]
	value := uint32(data[4]) | uint32(data[5])<<8 | uint32(data[6])<<16 | uint32(data[7])<<24
	return SdoWithIndexPayload{Cs: cs, Size: size, Expedited: expedited, Index: index, Subindex: subindex, Data: value}
}

func decodeWithoutIndex(cs CommandSpecifier, cmd byte, data []byte) SdoWithoutIndexPayload {
	toggle := cmd&0x10 != 0
	var lengthOfEmpty *int
	if cmd&0x01 != 0 {
		l := int((cmd >> 1) & 0x07)
		lengthOfEmpty = &l
	}
	var chunk [7]byte
	copy(chunk[:], data[1:8])
	return SdoWithoutIndexPayload{Cs: cs, Toggle: toggle, LengthOfEmptyBytes: lengthOfEmpty, Data: chunk}
}

// ToRaw serialises a typed frame back into wire bytes.
func (f Frame) ToRaw() (RawFrame, error) {
	switch p := f.Payload.(type) {
	case UnspecificPayload:
		return RawFrame{CobId: f.CobId(), Data: p.Data, IsRTR: f.IsRTR}, nil
	case SdoWithIndexPayload:
		return RawFrame{CobId: f.CobId(), Data: encodeWithIndex(p), IsRTR: f.IsRTR}, nil
	case SdoWithoutIndexPayload:
		return RawFrame{CobId: f.CobId(), Data: encodeWithoutIndex(p), IsRTR: f.IsRTR}, nil
	default:
		return RawFrame{}, &Error{Code: ErrBuilderError, Detail: "unknown payload type"}
	}
}

func encodeWithIndex(p SdoWithIndexPayload) []byte {
	var sizeBits, sizeFlag byte
	if p.Size != 0 {
		n := 4 - p.Size
		sizeBits = byte(n) << 2
		sizeFlag = 0x01
	}
	var expBit byte
	if p.Expedited {
		expBit = 0x02
	}
	cmd := byte(p.Cs)<<5 | sizeBits | expBit | sizeFlag

	idxHi, idxLo := splitU16(p.Index)
	dataHi, dataLo := splitU32(p.Data)
	dHiHi, dHiLo := splitU16(dataHi)
	dLoHi, dLoLo := splitU16(dataLo)

	return []byte{cmd, idxLo, idxHi, p.Subindex, dLoLo, dLoHi, dHiLo, dHiHi}
}

func encodeWithoutIndex(p SdoWithoutIndexPayload) []byte {
	var toggleBit byte
	if p.Toggle {
		toggleBit = 0x10
	}
	var sizeBits byte
	if p.LengthOfEmptyBytes != nil {
		sizeBits = (byte(*p.LengthOfEmptyBytes)&0x07)<<1 | 0x01
	}
	cmd := byte(p.Cs)<<5 | toggleBit | sizeBits

	out := make([]byte, 8)
	out[0] = cmd
	copy(out[1:], p.Data[:])
	return out
}
