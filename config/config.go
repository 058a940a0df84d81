// Package config loads a small node descriptor file and turns it into an
// Object Dictionary's identity entries, using the same .ini
// section-scanning idiom as a full EDS parser, narrowed here to a flat
// [identity] section rather than full OBJ_VAR/OBJ_ARRAY/OBJ_RECORD object
// definitions.
package config

import (
	"gopkg.in/ini.v1"

	"github.com/libcanopen/gocanopen"
)

// Descriptor is the subset of a node's EDS identity object that this
// library loads from a flat .ini file, rather than a full EDS.
type Descriptor struct {
	DeviceType      uint32 `ini:"DeviceType"`
	DeviceName      string `ini:"DeviceName"`
	HardwareVersion string `ini:"HardwareVersion"`
	SoftwareVersion string `ini:"SoftwareVersion"`
	VendorId        uint32 `ini:"VendorId"`
	ProductCode     uint32 `ini:"ProductCode"`
	RevisionNumber  uint32 `ini:"RevisionNumber"`
	SerialNumber    uint32 `ini:"SerialNumber"`
}

// LoadDescriptor reads the [identity] section of path into a Descriptor.
func LoadDescriptor(path string) (Descriptor, error) {
	file, err := ini.Load(path)
	if err != nil {
		return Descriptor{}, &canopen.Error{Code: canopen.ErrFormatting, Detail: err.Error()}
	}
	var d Descriptor
	if err := file.Section("identity").MapTo(&d); err != nil {
		return Descriptor{}, &canopen.Error{Code: canopen.ErrFormatting, Detail: err.Error()}
	}
	return d, nil
}

// Identity converts the descriptor into canopen.Identity for use with
// Builder.WithStandardEntries.
func (d Descriptor) Identity() canopen.Identity {
	return canopen.Identity{
		DeviceType:      d.DeviceType,
		DeviceName:      d.DeviceName,
		HardwareVersion: d.HardwareVersion,
		SoftwareVersion: d.SoftwareVersion,
		VendorId:        d.VendorId,
		ProductCode:     d.ProductCode,
		RevisionNumber:  d.RevisionNumber,
		SerialNumber:    d.SerialNumber,
	}
}

// BuildObjectDictionary loads path and returns a sealed ObjectDictionary
// carrying only the standard mandatory/optional identity entries. Callers
// add application-specific entries via canopen.NewBuilder directly when
// more than identity is needed.
func BuildObjectDictionary(path string) (*canopen.ObjectDictionary, error) {
	d, err := LoadDescriptor(path)
	if err != nil {
		return nil, err
	}
	return canopen.NewBuilder().WithStandardEntries(d.Identity()).Build(), nil
}
