package canopen

import "fmt"

// SDOAbortCode is the 32-bit value carried in an SDO abort frame. It is a
// plain uint32 rather than a closed enum so that any wire value, known or
// not, round-trips exactly; sdoAbortDescriptions only affects display.
type SDOAbortCode uint32

const (
	AbortToggleBitNotAlternated  SDOAbortCode = 0x05030000
	AbortSDOProtocolTimedOut     SDOAbortCode = 0x05040000
	AbortCommandSpecifierError   SDOAbortCode = 0x05040001
	AbortInvalidBlockSize        SDOAbortCode = 0x05040002
	AbortInvalidSequenceNumber   SDOAbortCode = 0x05040003
	AbortCRCError                SDOAbortCode = 0x05040004
	AbortOutOfMemory             SDOAbortCode = 0x05040005
	AbortUnsupportedAccess       SDOAbortCode = 0x06010000
	AbortReadWriteOnlyError      SDOAbortCode = 0x06010001
	AbortWriteReadOnlyError      SDOAbortCode = 0x06010002
	AbortObjectDoesNotExist      SDOAbortCode = 0x06020000
	AbortObjectCannotBeMapped    SDOAbortCode = 0x06040041
	AbortPDOOverflow             SDOAbortCode = 0x06040042
	AbortParameterIncompatibility SDOAbortCode = 0x06040043
	AbortInternalIncompatibility SDOAbortCode = 0x06040047
	AbortHardwareError           SDOAbortCode = 0x06060000
	AbortWrongLength             SDOAbortCode = 0x06070010
	AbortTooLong                 SDOAbortCode = 0x06070012
	AbortTooShort                SDOAbortCode = 0x06070013
	AbortSubindexDoesNotExist    SDOAbortCode = 0x06090011
	AbortWrongValue              SDOAbortCode = 0x06090030
	AbortValueTooHigh            SDOAbortCode = 0x06090031
	AbortValueTooLow             SDOAbortCode = 0x06090032
	AbortRangeError              SDOAbortCode = 0x06090036
	AbortGeneralError            SDOAbortCode = 0x08000000
	AbortStorageError            SDOAbortCode = 0x08000020
	AbortLocalControlError       SDOAbortCode = 0x08000021
	AbortDeviceStateError        SDOAbortCode = 0x08000022
	AbortDictionaryError         SDOAbortCode = 0x08000023
)

// sdoAbortDescriptions names the known wire values. AbortUnsupportedAccess
// and AbortReadWriteOnlyError are kept distinct here, each with its own
// wire value, rather than collapsed onto a single code.
var sdoAbortDescriptions = map[SDOAbortCode]string{
	AbortToggleBitNotAlternated:   "toggle bit not alternated",
	AbortSDOProtocolTimedOut:      "SDO protocol timed out",
	AbortCommandSpecifierError:    "client/server command specifier not valid or unknown",
	AbortInvalidBlockSize:         "invalid block size (block mode only)",
	AbortInvalidSequenceNumber:    "invalid sequence number (block mode only)",
	AbortCRCError:                 "CRC error",
	AbortOutOfMemory:              "out of memory",
	AbortUnsupportedAccess:        "unsupported access to an object",
	AbortReadWriteOnlyError:       "attempt to read a write only object",
	AbortWriteReadOnlyError:       "attempt to write a read only object",
	AbortObjectDoesNotExist:       "object does not exist in the object dictionary",
	AbortObjectCannotBeMapped:     "object cannot be mapped to the PDO",
	AbortPDOOverflow:              "the number and length of the objects to be mapped would exceed PDO length",
	AbortParameterIncompatibility: "general parameter incompatibility reason",
	AbortInternalIncompatibility:  "general internal incompatibility in the device",
	AbortHardwareError:            "access failed due to a hardware error",
	AbortWrongLength:              "data type does not match, length of service parameter does not match",
	AbortTooLong:                  "data type does not match, length of service parameter too high",
	AbortTooShort:                 "data type does not match, length of service parameter too low",
	AbortSubindexDoesNotExist:     "sub-index does not exist",
	AbortWrongValue:               "value range of parameter exceeded (only for write access)",
	AbortValueTooHigh:             "value of parameter written too high",
	AbortValueTooLow:              "value of parameter written too low",
	AbortRangeError:               "maximum value is less than minimum value",
	AbortGeneralError:             "general error",
	AbortStorageError:             "data cannot be transferred or stored to the application",
	AbortLocalControlError:        "data cannot be transferred or stored to the application because of local control",
	AbortDeviceStateError:         "data cannot be transferred or stored to the application because of the present device state",
	AbortDictionaryError:          "object dictionary dynamic generation fails or no object dictionary is present",
}

func (c SDOAbortCode) Error() string {
	if s, ok := sdoAbortDescriptions[c]; ok {
		return s
	}
	return fmt.Sprintf("unknown abort code 0x%08X", uint32(c))
}

func (c SDOAbortCode) Uint32() uint32 { return uint32(c) }

// SDOAbortCodeFromUint32 parses a raw wire value. Codes outside the known
// table are preserved as-is so that round-tripping is total (RT-3).
func SDOAbortCodeFromUint32(x uint32) SDOAbortCode { return SDOAbortCode(x) }
