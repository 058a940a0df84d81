package canopen

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	var err error = &Error{Code: ErrObjectDoesNotExist, Index: 0x2000, Subindex: 1}
	assert.True(t, errors.Is(err, &Error{Code: ErrObjectDoesNotExist}))
	assert.False(t, errors.Is(err, &Error{Code: ErrWritingForbidden}))
}

func TestErrorMessageFormatting(t *testing.T) {
	err := &Error{Code: ErrInvalidCobId, CobId: 0x780}
	assert.Contains(t, err.Error(), "0x780")
}
