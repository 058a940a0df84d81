package canopen

import "sort"

// ObjectDictionary holds entries in strictly ascending mapped-index order.
// It is built once by Builder and sealed; only entry values change
// afterwards, never cardinality.
type ObjectDictionary struct {
	entries []*Entry
}

// Get returns the entry at (index, subindex), or ObjectDoesNotExist.
func (od *ObjectDictionary) Get(index uint16, subindex uint8) (*Entry, error) {
	i, ok := od.search(index, subindex)
	if !ok {
		return nil, &Error{Code: ErrObjectDoesNotExist, Index: index, Subindex: subindex}
	}
	return od.entries[i], nil
}

func (od *ObjectDictionary) search(index uint16, subindex uint8) (int, bool) {
	key := mappedIndex(index, subindex)
	n := len(od.entries)
	i := sort.Search(n, func(i int) bool { return od.entries[i].mappedIndex() >= key })
	if i < n && od.entries[i].mappedIndex() == key {
		return i, true
	}
	return i, false
}

// Set stores v into the entry at (index, subindex), enforcing the access
// class and the type-tag identity rule: the new value's tag must match
// the tag already stored, preventing silent narrowing. Persistent
// entries are stored like Variable ones; any external persistence is
// wired by the caller through OnChange. NoStorage entries route the value
// to their handler instead of storing it.
func (od *ObjectDictionary) Set(index uint16, subindex uint8, v Value) error {
	e, err := od.Get(index, subindex)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.kind {
	case slotConst:
		return &Error{Code: ErrCannotWriteToConstStorage}
	case slotNoStorage:
		if e.handler == nil {
			return &Error{Code: ErrWritingForbidden}
		}
		if err := e.handler(v); err != nil {
			return err
		}
		if e.onChange != nil {
			e.onChange(v)
		}
		return nil
	default: // slotVariable, slotPersistent
		if v.Type() != e.value.Type() {
			return &Error{Code: ErrInvalidNumberType, Detail: "value type does not match stored entry type"}
		}
		e.value = v
		if e.onChange != nil {
			e.onChange(v)
		}
		return nil
	}
}

// DownloadExpedited is the SDO-server wrapper around Set: it additionally
// rejects ReadOnly entries with WritingForbidden and size-mismatched
// values with InvalidDataLength (mapped to WrongLength by the SDO server).
func (od *ObjectDictionary) DownloadExpedited(index uint16, subindex uint8, v Value) error {
	e, err := od.Get(index, subindex)
	if err != nil {
		return err
	}
	if e.Access() == ReadOnly {
		return &Error{Code: ErrWritingForbidden}
	}
	e.mu.Lock()
	expectedWidth := e.value.Type().Width()
	e.mu.Unlock()
	if e.kind != slotNoStorage && expectedWidth >= 0 && v.Type().Width() != expectedWidth {
		return &Error{Code: ErrInvalidDataLength, Length: v.Type().Width()}
	}
	return od.Set(index, subindex, v)
}

// Upload is the SDO-server wrapper around Get+read: it rejects WriteOnly
// entries with ReadAccessImpossible.
func (od *ObjectDictionary) Upload(index uint16, subindex uint8) (Value, error) {
	e, err := od.Get(index, subindex)
	if err != nil {
		return Value{}, err
	}
	if e.Access() == WriteOnly {
		return Value{}, &Error{Code: ErrReadAccessImpossible}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value, nil
}

// Builder assembles an ObjectDictionary before it is sealed by Build.
type Builder struct {
	entries []*Entry
}

func NewBuilder() *Builder {
	return &Builder{}
}

// insert finds the insertion point via linear scan, panics on a duplicate
// mapped index (a programmer error at build time), else shifts the tail
// right and inserts, preserving ascending-mapped-index order.
func (b *Builder) insert(e *Entry) {
	key := e.mappedIndex()
	pos := len(b.entries)
	for i, existing := range b.entries {
		ek := existing.mappedIndex()
		if ek == key {
			panic("canopen: duplicate object dictionary entry")
		}
		if ek > key {
			pos = i
			break
		}
	}
	b.entries = append(b.entries, nil)
	copy(b.entries[pos+1:], b.entries[pos:])
	b.entries[pos] = e
}

func (b *Builder) AddConst(index uint16, subindex uint8, v Value) *Builder {
	b.insert(newConstEntry(index, subindex, v))
	return b
}

func (b *Builder) AddVariable(index uint16, subindex uint8, v Value) *Builder {
	b.insert(newVariableEntry(index, subindex, v))
	return b
}

func (b *Builder) AddPersistent(index uint16, subindex uint8, v Value) *Builder {
	b.insert(newPersistentEntry(index, subindex, v))
	return b
}

func (b *Builder) AddNoStorage(index uint16, subindex uint8, tag ValueType, handler NoStorageHandler) *Builder {
	b.insert(newNoStorageEntry(index, subindex, tag, handler))
	return b
}

// WithStandardEntries populates the mandatory identity entries: device
// type, error register and vendor id are always added; the
// remaining identity fields are added only when non-zero/non-empty.
func (b *Builder) WithStandardEntries(id Identity) *Builder {
	b.AddConst(0x1000, 0x01, NewU32(id.DeviceType))
	b.AddConst(0x1001, 0x01, NewU8(0))
	if id.DeviceName != "" {
		b.AddConst(0x1008, 0x01, NewString(id.DeviceName))
	}
	if id.HardwareVersion != "" {
		b.AddConst(0x1009, 0x01, NewString(id.HardwareVersion))
	}
	if id.SoftwareVersion != "" {
		b.AddConst(0x100A, 0x01, NewString(id.SoftwareVersion))
	}
	b.AddConst(0x1018, 0x01, NewU32(id.VendorId))
	if id.ProductCode != 0 {
		b.AddConst(0x1018, 0x02, NewU32(id.ProductCode))
	}
	if id.RevisionNumber != 0 {
		b.AddConst(0x1018, 0x03, NewU32(id.RevisionNumber))
	}
	if id.SerialNumber != 0 {
		b.AddConst(0x1018, 0x04, NewU32(id.SerialNumber))
	}
	return b
}

// Identity carries the 0x1000/0x1008/0x1009/0x100A/0x1018 identity-object
// fields a builder can populate via WithStandardEntries or LoadDescriptor.
type Identity struct {
	DeviceType      uint32
	DeviceName      string
	HardwareVersion string
	SoftwareVersion string
	VendorId        uint32
	ProductCode     uint32
	RevisionNumber  uint32
	SerialNumber    uint32
}

// Build seals the dictionary. Cardinality is fixed from this point on;
// only entry values change.
func (b *Builder) Build() *ObjectDictionary {
	return &ObjectDictionary{entries: b.entries}
}
