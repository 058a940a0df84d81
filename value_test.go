package canopen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValueRoundTrip(t *testing.T) {
	buf := make([]byte, 8)

	v := NewU32(0xDEADBEEF)
	le, err := v.ToLE(buf)
	assert.NoError(t, err)
	assert.Equal(t, []byte{0xEF, 0xBE, 0xAD, 0xDE}, le)

	back, err := ParseBufferAs(TypeU32, le)
	assert.NoError(t, err)
	got, ok := back.U32()
	assert.True(t, ok)
	assert.Equal(t, uint32(0xDEADBEEF), got)
}

func TestValueI32Negative(t *testing.T) {
	v := NewI32(-1)
	buf := make([]byte, 4)
	le, err := v.ToLE(buf)
	assert.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, le)
}

func TestValueU64I64(t *testing.T) {
	v := NewU64(0x0102030405060708)
	buf := make([]byte, 8)
	le, err := v.ToLE(buf)
	assert.NoError(t, err)
	assert.Equal(t, []byte{0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}, le)

	back, err := ParseBufferAs(TypeU64, le)
	assert.NoError(t, err)
	got, ok := back.U64()
	assert.True(t, ok)
	assert.Equal(t, uint64(0x0102030405060708), got)

	vi := NewI64(-1)
	lei, err := vi.ToLE(buf)
	assert.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, lei)
}

func TestValueWrongWidthRejected(t *testing.T) {
	_, err := ParseBufferAs(TypeU32, []byte{0x01, 0x02})
	assert.Error(t, err)
}

func TestValueStringPassesThrough(t *testing.T) {
	v := NewString("hello")
	s, ok := v.AsString()
	assert.True(t, ok)
	assert.Equal(t, "hello", s)

	buf := make([]byte, 0)
	le, err := v.ToLE(buf)
	assert.NoError(t, err)
	assert.Empty(t, le)
}

func TestValueAccessorMismatchReturnsFalse(t *testing.T) {
	v := NewU8(1)
	_, ok := v.U16()
	assert.False(t, ok)
}
