package canopen

import "fmt"

// ErrorCode is the discriminant of Error. The source keeps CANopenError,
// ODR and SDOAbortCode as three separate typed-int enums; this library
// collapses frame/codec, protocol, transport and OD failures into one flat
// taxonomy, per the grouping below.
type ErrorCode uint8

const (
	// Frame / codec
	ErrInvalidCobId ErrorCode = iota
	ErrInvalidNodeId
	ErrInvalidDataLength
	ErrBuilderError
	ErrSdoPayloadParseError
	ErrSdoPayloadNotImplementedYet

	// Protocol
	ErrSdoProtocolTimedOut
	ErrSdoAbortCode

	// Transport
	ErrSocketInstanciatingError
	ErrSocketWriteError

	// Parsing helpers
	ErrInvalidNumber
	ErrInvalidNumberType
	ErrStringIsTooLong

	// Object dictionary
	ErrObjectDoesNotExist
	ErrWritingForbidden
	ErrReadAccessImpossible
	ErrCannotWriteToConstStorage
	ErrSharedOdAccessError
	ErrFormatting
)

var errorCodeNames = map[ErrorCode]string{
	ErrInvalidCobId:                "invalid COB-ID",
	ErrInvalidNodeId:               "invalid node id",
	ErrInvalidDataLength:           "invalid data length",
	ErrBuilderError:                "builder precondition violated",
	ErrSdoPayloadParseError:        "SDO payload parse error",
	ErrSdoPayloadNotImplementedYet: "SDO payload not implemented",
	ErrSdoProtocolTimedOut:         "SDO protocol timed out",
	ErrSdoAbortCode:                "SDO abort",
	ErrSocketInstanciatingError:    "socket instanciating error",
	ErrSocketWriteError:            "socket write error",
	ErrInvalidNumber:               "invalid number",
	ErrInvalidNumberType:           "invalid number type",
	ErrStringIsTooLong:             "string too long",
	ErrObjectDoesNotExist:          "object does not exist",
	ErrWritingForbidden:            "writing forbidden",
	ErrReadAccessImpossible:        "read access impossible",
	ErrCannotWriteToConstStorage:   "cannot write to const storage",
	ErrSharedOdAccessError:         "shared OD access error",
	ErrFormatting:                  "formatting error",
}

// Error is the single error type returned across the library. Only the
// fields relevant to Code are populated; it is the one place this library
// reaches for a struct instead of a plain typed-int enum, since Go enums
// cannot carry per-variant payloads.
type Error struct {
	Code ErrorCode

	CobId       uint32
	NodeId      uint8
	Length      int
	Index       uint16
	Subindex    uint8
	AbortCode   SDOAbortCode
	MaxLength   int
	GivenLength int
	Detail      string
}

func (e *Error) Error() string {
	name := errorCodeNames[e.Code]
	switch e.Code {
	case ErrInvalidCobId:
		return fmt.Sprintf("%s: 0x%03X", name, e.CobId)
	case ErrInvalidNodeId:
		return fmt.Sprintf("%s: 0x%02X", name, e.NodeId)
	case ErrInvalidDataLength:
		return fmt.Sprintf("%s: %d", name, e.Length)
	case ErrSdoAbortCode:
		return fmt.Sprintf("%s: %s", name, e.AbortCode.Error())
	case ErrObjectDoesNotExist:
		return fmt.Sprintf("%s: 0x%04X:0x%02X", name, e.Index, e.Subindex)
	case ErrStringIsTooLong:
		return fmt.Sprintf("%s: max %d, given %d", name, e.MaxLength, e.GivenLength)
	default:
		if e.Detail != "" {
			return fmt.Sprintf("%s: %s", name, e.Detail)
		}
		return name
	}
}

// Is reports whether target shares this error's Code, so callers can use
// errors.Is(err, &canopen.Error{Code: canopen.ErrObjectDoesNotExist}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}
