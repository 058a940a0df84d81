package canopen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRT3AbortCodeRoundTrip(t *testing.T) {
	codes := []SDOAbortCode{
		AbortToggleBitNotAlternated, AbortSDOProtocolTimedOut, AbortUnsupportedAccess,
		AbortReadWriteOnlyError, AbortWriteReadOnlyError, AbortObjectDoesNotExist,
		AbortGeneralError, AbortDictionaryError,
	}
	for _, c := range codes {
		back := SDOAbortCodeFromUint32(c.Uint32())
		assert.Equal(t, c, back)
	}
}

func TestRT3UnknownAbortCodeRoundTrip(t *testing.T) {
	const x = uint32(0x12340000)
	back := SDOAbortCodeFromUint32(x)
	assert.Equal(t, x, back.Uint32())
}

func TestAbortCodesStayDistinct(t *testing.T) {
	// AbortUnsupportedAccess and AbortReadWriteOnlyError differ only in the
	// lowest bit and must stay distinct on the wire.
	assert.NotEqual(t, AbortUnsupportedAccess.Uint32(), AbortReadWriteOnlyError.Uint32())
}
