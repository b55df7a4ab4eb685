// Copyright 2025, ShotReplay Authors.
// SPDX-License-Identifier: Apache-2.0

// Package sdata holds the shared data definitions for the replay engine:
// the closed set of numeric kinds a stored channel may carry, the
// resampling and hole-fill policies, and the per-channel configuration
// spec with its validation rules.
package sdata

import (
	"errors"
	"fmt"
	"strings"
)

// NumKind identifies the element type of a stored channel. The set is
// closed: these ten kinds are the only ones the engine will resample.
type NumKind int

const (
	KindInvalid NumKind = iota
	KindUint8
	KindInt8
	KindUint16
	KindInt16
	KindUint32
	KindInt32
	KindUint64
	KindInt64
	KindFloat32
	KindFloat64
)

var kindNames = map[NumKind]string{
	KindUint8:   "uint8",
	KindInt8:    "int8",
	KindUint16:  "uint16",
	KindInt16:   "int16",
	KindUint32:  "uint32",
	KindInt32:   "int32",
	KindUint64:  "uint64",
	KindInt64:   "int64",
	KindFloat32: "float32",
	KindFloat64: "float64",
}

func (k NumKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("NumKind(%d)", int(k))
}

// Valid reports whether k is one of the ten supported kinds.
func (k NumKind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// Size returns the element size in bytes.
func (k NumKind) Size() int {
	switch k {
	case KindUint8, KindInt8:
		return 1
	case KindUint16, KindInt16:
		return 2
	case KindUint32, KindInt32, KindFloat32:
		return 4
	case KindUint64, KindInt64, KindFloat64:
		return 8
	}
	return 0
}

// TimeKind reports whether k may carry the published cycle time.
// Only the four wide integer kinds are allowed, matching the stored
// time base resolution (microseconds).
func (k NumKind) TimeKind() bool {
	switch k {
	case KindUint32, KindInt32, KindUint64, KindInt64:
		return true
	}
	return false
}

// ParseNumKind parses the lowercase kind name used in dump files and
// channel configuration ("uint8" ... "float64").
func ParseNumKind(s string) (NumKind, error) {
	for k, name := range kindNames {
		if name == strings.ToLower(s) {
			return k, nil
		}
	}
	return KindInvalid, fmt.Errorf("unsupported element kind %q", s)
}

// ResamplePolicy selects how a channel's stored samples are mapped onto
// the per-cycle output grid.
type ResamplePolicy int

const (
	// ResampleRaw copies stored samples one-for-one. The channel's
	// nominal storage period must equal the output sample period.
	ResampleRaw ResamplePolicy = iota
	// ResampleInterp linearly interpolates (or decimates) between the
	// two stored samples bracketing each output instant.
	ResampleInterp
	// ResampleNearest holds whichever bracketing sample is nearer in
	// time; ties resolve to the earlier sample.
	ResampleNearest
)

func (p ResamplePolicy) String() string {
	switch p {
	case ResampleRaw:
		return "raw"
	case ResampleInterp:
		return "interp"
	case ResampleNearest:
		return "nearest"
	}
	return fmt.Sprintf("ResamplePolicy(%d)", int(p))
}

// ParseResamplePolicy parses "raw", "interp" or "nearest".
func ParseResamplePolicy(s string) (ResamplePolicy, error) {
	switch strings.ToLower(s) {
	case "raw":
		return ResampleRaw, nil
	case "interp", "interpolate":
		return ResampleInterp, nil
	case "nearest", "hold":
		return ResampleNearest, nil
	}
	return 0, fmt.Errorf("unsupported resample policy %q", s)
}

// HolePolicy selects the filler value used inside storage holes and
// after a channel's data has run out.
type HolePolicy int

const (
	// HoleZero fills with the kind's zero value.
	HoleZero HolePolicy = iota
	// HoleHoldLast repeats the last real sample delivered before the
	// hole; zero when no real sample has been delivered yet.
	HoleHoldLast
)

func (p HolePolicy) String() string {
	switch p {
	case HoleZero:
		return "zero"
	case HoleHoldLast:
		return "holdlast"
	}
	return fmt.Sprintf("HolePolicy(%d)", int(p))
}

// ParseHolePolicy parses "zero" or "holdlast".
func ParseHolePolicy(s string) (HolePolicy, error) {
	switch strings.ToLower(s) {
	case "zero", "0":
		return HoleZero, nil
	case "holdlast", "hold", "last":
		return HoleHoldLast, nil
	}
	return 0, fmt.Errorf("unsupported hole policy %q", s)
}

var ErrInvalidSpec = errors.New("invalid channel spec")

// ChannelSpec configures one resampled channel. Out is the caller-owned
// output buffer the engine overwrites every cycle; it must be a slice of
// the Go type matching Kind with length exactly Elements.
type ChannelSpec struct {
	Name     string
	Kind     NumKind
	Elements int
	Resample ResamplePolicy
	Holes    HolePolicy
	Out      any
}

// Validate checks the spec without touching storage. Storage-dependent
// checks (kind cross-check, raw rate match) happen at engine setup.
func (cs ChannelSpec) Validate() error {
	if cs.Name == "" {
		return fmt.Errorf("%w: empty channel name", ErrInvalidSpec)
	}
	if !cs.Kind.Valid() {
		return fmt.Errorf("%w: channel %s: bad kind %v", ErrInvalidSpec, cs.Name, cs.Kind)
	}
	if cs.Elements <= 0 {
		return fmt.Errorf("%w: channel %s: elements must be > 0, got %d", ErrInvalidSpec, cs.Name, cs.Elements)
	}
	switch cs.Resample {
	case ResampleRaw, ResampleInterp, ResampleNearest:
	default:
		return fmt.Errorf("%w: channel %s: bad resample policy %v", ErrInvalidSpec, cs.Name, cs.Resample)
	}
	switch cs.Holes {
	case HoleZero, HoleHoldLast:
	default:
		return fmt.Errorf("%w: channel %s: bad hole policy %v", ErrInvalidSpec, cs.Name, cs.Holes)
	}
	if cs.Out == nil {
		return fmt.Errorf("%w: channel %s: nil output buffer", ErrInvalidSpec, cs.Name)
	}
	if err := checkOutBuffer(cs.Kind, cs.Elements, cs.Out); err != nil {
		return fmt.Errorf("%w: channel %s: %v", ErrInvalidSpec, cs.Name, err)
	}
	return nil
}

func checkOutBuffer(kind NumKind, elements int, out any) error {
	n, ok := -1, false
	switch kind {
	case KindUint8:
		var b []uint8
		b, ok = out.([]uint8)
		n = len(b)
	case KindInt8:
		var b []int8
		b, ok = out.([]int8)
		n = len(b)
	case KindUint16:
		var b []uint16
		b, ok = out.([]uint16)
		n = len(b)
	case KindInt16:
		var b []int16
		b, ok = out.([]int16)
		n = len(b)
	case KindUint32:
		var b []uint32
		b, ok = out.([]uint32)
		n = len(b)
	case KindInt32:
		var b []int32
		b, ok = out.([]int32)
		n = len(b)
	case KindUint64:
		var b []uint64
		b, ok = out.([]uint64)
		n = len(b)
	case KindInt64:
		var b []int64
		b, ok = out.([]int64)
		n = len(b)
	case KindFloat32:
		var b []float32
		b, ok = out.([]float32)
		n = len(b)
	case KindFloat64:
		var b []float64
		b, ok = out.([]float64)
		n = len(b)
	}
	if !ok {
		return fmt.Errorf("output buffer type %T does not match kind %v", out, kind)
	}
	if n != elements {
		return fmt.Errorf("output buffer length %d does not match elements %d", n, elements)
	}
	return nil
}
