package canopen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func buildTestOD() *ObjectDictionary {
	return NewBuilder().
		WithStandardEntries(Identity{DeviceType: 0, VendorId: 0x12345678}).
		AddVariable(0x2000, 0x01, NewU32(42)).
		AddConst(0x2001, 0x01, NewString("read-only")).
		AddNoStorage(0x2002, 0x01, TypeU8, func(v Value) error { return nil }).
		Build()
}

func TestODGetSet(t *testing.T) {
	od := buildTestOD()

	e, err := od.Get(0x2000, 0x01)
	assert.NoError(t, err)
	assert.Equal(t, ReadWrite, e.Access())

	err = od.Set(0x2000, 0x01, NewU32(100))
	assert.NoError(t, err)
	got, err := od.Upload(0x2000, 0x01)
	assert.NoError(t, err)
	v, ok := got.U32()
	assert.True(t, ok)
	assert.Equal(t, uint32(100), v)
}

func TestODObjectDoesNotExist(t *testing.T) {
	od := buildTestOD()
	_, err := od.Get(0x9999, 0x00)
	assert.Error(t, err)
	coErr := err.(*Error)
	assert.Equal(t, ErrObjectDoesNotExist, coErr.Code)
}

func TestODTypeTagIdentity(t *testing.T) {
	od := buildTestOD()
	err := od.Set(0x2000, 0x01, NewU8(1))
	assert.Error(t, err)
}

func TestODConstIsReadOnly(t *testing.T) {
	od := buildTestOD()
	e, err := od.Get(0x2001, 0x01)
	assert.NoError(t, err)
	assert.Equal(t, ReadOnly, e.Access())
	err = od.Set(0x2001, 0x01, NewString("nope"))
	assert.Error(t, err)
}

func TestODNoStorageIsWriteOnly(t *testing.T) {
	od := buildTestOD()
	e, err := od.Get(0x2002, 0x01)
	assert.NoError(t, err)
	assert.Equal(t, WriteOnly, e.Access())

	err = od.Set(0x2002, 0x01, NewU8(5))
	assert.NoError(t, err)

	_, err = od.Upload(0x2002, 0x01)
	assert.Error(t, err)
	coErr := err.(*Error)
	assert.Equal(t, ErrReadAccessImpossible, coErr.Code)
}

func TestINV1And2OrderingAndUniqueness(t *testing.T) {
	b := NewBuilder()
	b.AddVariable(0x3000, 0x02, NewU8(1))
	b.AddVariable(0x1000, 0x01, NewU8(1))
	b.AddVariable(0x2000, 0x01, NewU8(1))
	od := b.Build()

	var prev uint32
	for i, e := range od.entries {
		mi := e.mappedIndex()
		if i > 0 {
			assert.Greater(t, mi, prev)
		}
		prev = mi
	}
}

func TestBuilderPanicsOnDuplicateIndex(t *testing.T) {
	assert.Panics(t, func() {
		NewBuilder().
			AddVariable(0x2000, 0x01, NewU8(1)).
			AddVariable(0x2000, 0x01, NewU8(2))
	})
}

func TestODDownloadExpeditedRejectsReadOnly(t *testing.T) {
	od := buildTestOD()
	err := od.DownloadExpedited(0x2001, 0x01, NewString("x"))
	assert.Error(t, err)
	coErr := err.(*Error)
	assert.Equal(t, ErrWritingForbidden, coErr.Code)
}

func TestODDownloadExpeditedRejectsSizeMismatch(t *testing.T) {
	od := buildTestOD()
	err := od.DownloadExpedited(0x2000, 0x01, NewU8(1))
	assert.Error(t, err)
	coErr := err.(*Error)
	assert.Equal(t, ErrInvalidDataLength, coErr.Code)
}

func TestStandardEntriesPresent(t *testing.T) {
	od := buildTestOD()
	_, err := od.Get(0x1000, 0x01)
	assert.NoError(t, err)
	_, err = od.Get(0x1001, 0x01)
	assert.NoError(t, err)
	_, err = od.Get(0x1018, 0x01)
	assert.NoError(t, err)
}
