// Package bios implements the BIOS Attribute Registry: ingestion,
// validation, and lookup of enumeration/string/integer attribute
// descriptors, spec.md §4.5.
package bios

import (
	"fmt"
)

// StringEncoding enumerates the encodings a String attribute's value
// may be declared in.
type StringEncoding uint8

const (
	EncodingUnknown StringEncoding = iota
	EncodingASCII
	EncodingHex
	EncodingUTF8
	EncodingUTF16LE
	EncodingUTF16BE
	EncodingVendorSpecific
)

// DBusReader resolves the live object-bus property backing an
// attribute's current value. A nil DBusReader (or a lookup miss) falls
// back to the attribute's static default.
type DBusReader interface {
	ReadProperty(path, iface, property string) (any, bool)
}

// EnumAttribute is a BIOS enumeration attribute: its current value is
// resolved from an object-bus property through DBusValueMap, falling
// back to the first entry of DefaultValues when no mapping matches.
type EnumAttribute struct {
	Name           string
	ReadOnly       bool
	PossibleValues []string
	DefaultValues  []string
	DBusValueMap   map[any]string

	ObjectPath string
	Interface  string
	Property   string
}

// StringAttribute is a BIOS string attribute with bounded length and a
// declared encoding.
type StringAttribute struct {
	Name       string
	ReadOnly   bool
	Encoding   StringEncoding
	MinLength  uint16
	MaxLength  uint16
	DefaultLen uint16
	Default    string
}

// IntegerAttribute is a BIOS integer attribute with a scalar range.
type IntegerAttribute struct {
	Name            string
	ReadOnly        bool
	Lower           int64
	Upper           int64
	ScalarIncrement int64
	Default         int64
}

// Registry holds the ingested attribute descriptors. Setup is
// idempotent: calling it again after the registry is populated is a
// no-op, per spec.md §4.5.
type Registry struct {
	reader DBusReader

	enums    map[string]EnumAttribute
	strings  map[string]StringAttribute
	integers map[string]IntegerAttribute
	populated bool
}

// New constructs an empty registry. reader may be nil, in which case
// every enum attribute resolves to its default.
func New(reader DBusReader) *Registry {
	return &Registry{
		reader:   reader,
		enums:    make(map[string]EnumAttribute),
		strings:  make(map[string]StringAttribute),
		integers: make(map[string]IntegerAttribute),
	}
}

// Setup validates and installs the given descriptors. A second call on
// an already-populated registry is a no-op and returns nil.
func (r *Registry) Setup(enums []EnumAttribute, strs []StringAttribute, ints []IntegerAttribute) error {
	if r.populated {
		return nil
	}

	for _, s := range strs {
		if err := validateStringInfo(s); err != nil {
			return fmt.Errorf("bios: string attribute %q: %w", s.Name, err)
		}
	}
	for _, i := range ints {
		if err := validateIntegerInfo(i); err != nil {
			return fmt.Errorf("bios: integer attribute %q: %w", i.Name, err)
		}
	}

	for _, e := range enums {
		r.enums[e.Name] = e
	}
	for _, s := range strs {
		r.strings[s.Name] = s
	}
	for _, i := range ints {
		r.integers[i.Name] = i
	}

	r.populated = len(r.enums)+len(r.strings)+len(r.integers) > 0
	return nil
}

// validateStringInfo applies the standard PLDM BIOS string-info check:
// bounds must be ordered and the default must fit within them.
func validateStringInfo(s StringAttribute) error {
	if s.MinLength > s.MaxLength {
		return fmt.Errorf("min_length %d exceeds max_length %d", s.MinLength, s.MaxLength)
	}
	if s.DefaultLen < s.MinLength || s.DefaultLen > s.MaxLength {
		return fmt.Errorf("default_len %d out of [%d,%d]", s.DefaultLen, s.MinLength, s.MaxLength)
	}
	if uint16(len(s.Default)) != s.DefaultLen {
		return fmt.Errorf("default length %d does not match declared default_len %d", len(s.Default), s.DefaultLen)
	}
	return nil
}

// validateIntegerInfo applies the standard PLDM BIOS integer-info
// check: bounds ordered, default within bounds, and scalar_increment
// must evenly divide the range.
func validateIntegerInfo(i IntegerAttribute) error {
	if i.Lower > i.Upper {
		return fmt.Errorf("lower %d exceeds upper %d", i.Lower, i.Upper)
	}
	if i.Default < i.Lower || i.Default > i.Upper {
		return fmt.Errorf("default %d out of [%d,%d]", i.Default, i.Lower, i.Upper)
	}
	if i.ScalarIncrement <= 0 {
		return fmt.Errorf("scalar_increment must be positive, got %d", i.ScalarIncrement)
	}
	if (i.Upper-i.Lower)%i.ScalarIncrement != 0 {
		return fmt.Errorf("scalar_increment %d does not divide range [%d,%d]", i.ScalarIncrement, i.Lower, i.Upper)
	}
	return nil
}

// CurrentEnumValue resolves name's current attribute-string value: the
// object-bus property's mapped value if present, else the attribute's
// configured default.
func (r *Registry) CurrentEnumValue(name string) (string, bool) {
	e, ok := r.enums[name]
	if !ok {
		return "", false
	}
	if r.reader != nil {
		if v, ok := r.reader.ReadProperty(e.ObjectPath, e.Interface, e.Property); ok {
			if s, ok := e.DBusValueMap[v]; ok {
				return s, true
			}
		}
	}
	if len(e.DefaultValues) > 0 {
		return e.DefaultValues[0], true
	}
	return "", false
}

// StringValue returns the current (default) value of a string
// attribute.
func (r *Registry) StringValue(name string) (string, bool) {
	s, ok := r.strings[name]
	if !ok {
		return "", false
	}
	return s.Default, true
}

// IntegerValue returns the current (default) value of an integer
// attribute.
func (r *Registry) IntegerValue(name string) (int64, bool) {
	i, ok := r.integers[name]
	if !ok {
		return 0, false
	}
	return i.Default, true
}

// Empty reports whether Setup has never successfully populated the
// registry.
func (r *Registry) Empty() bool {
	return !r.populated
}
