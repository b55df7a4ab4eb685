// Copyright 2025, ShotReplay Authors.
// SPDX-License-Identifier: Apache-2.0

package sdata

import (
	"errors"
	"testing"
)

func TestNumKindRoundTrip(t *testing.T) {
	kinds := []NumKind{
		KindUint8, KindInt8, KindUint16, KindInt16, KindUint32,
		KindInt32, KindUint64, KindInt64, KindFloat32, KindFloat64,
	}
	for _, k := range kinds {
		if !k.Valid() {
			t.Errorf("%v not valid", k)
		}
		parsed, err := ParseNumKind(k.String())
		if err != nil {
			t.Errorf("ParseNumKind(%q): %v", k.String(), err)
		}
		if parsed != k {
			t.Errorf("round trip %v -> %q -> %v", k, k.String(), parsed)
		}
	}
	if KindInvalid.Valid() {
		t.Errorf("KindInvalid reported valid")
	}
	if _, err := ParseNumKind("complex64"); err == nil {
		t.Errorf("ParseNumKind accepted complex64")
	}
}

func TestNumKindSize(t *testing.T) {
	tests := []struct {
		kind NumKind
		want int
	}{
		{KindUint8, 1},
		{KindInt16, 2},
		{KindFloat32, 4},
		{KindUint64, 8},
		{KindFloat64, 8},
		{KindInvalid, 0},
	}
	for _, tc := range tests {
		if got := tc.kind.Size(); got != tc.want {
			t.Errorf("%v.Size() = %d, want %d", tc.kind, got, tc.want)
		}
	}
}

func TestTimeKind(t *testing.T) {
	for _, k := range []NumKind{KindUint32, KindInt32, KindUint64, KindInt64} {
		if !k.TimeKind() {
			t.Errorf("%v should be a time kind", k)
		}
	}
	for _, k := range []NumKind{KindUint8, KindInt16, KindFloat32, KindFloat64} {
		if k.TimeKind() {
			t.Errorf("%v should not be a time kind", k)
		}
	}
}

func TestParsePolicies(t *testing.T) {
	tests := []struct {
		in   string
		want ResamplePolicy
	}{
		{"raw", ResampleRaw},
		{"interp", ResampleInterp},
		{"interpolate", ResampleInterp},
		{"nearest", ResampleNearest},
		{"NEAREST", ResampleNearest},
	}
	for _, tc := range tests {
		got, err := ParseResamplePolicy(tc.in)
		if err != nil || got != tc.want {
			t.Errorf("ParseResamplePolicy(%q) = (%v, %v), want %v", tc.in, got, err, tc.want)
		}
	}
	if _, err := ParseResamplePolicy("cubic"); err == nil {
		t.Errorf("ParseResamplePolicy accepted cubic")
	}

	holes := []struct {
		in   string
		want HolePolicy
	}{
		{"zero", HoleZero},
		{"holdlast", HoleHoldLast},
		{"hold", HoleHoldLast},
	}
	for _, tc := range holes {
		got, err := ParseHolePolicy(tc.in)
		if err != nil || got != tc.want {
			t.Errorf("ParseHolePolicy(%q) = (%v, %v), want %v", tc.in, got, err, tc.want)
		}
	}
	if _, err := ParseHolePolicy("nan"); err == nil {
		t.Errorf("ParseHolePolicy accepted nan")
	}
}

func TestChannelSpecValidate(t *testing.T) {
	good := ChannelSpec{
		Name: "ip", Kind: KindFloat64, Elements: 4,
		Resample: ResampleInterp, Holes: HoleZero, Out: make([]float64, 4),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("valid spec rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*ChannelSpec)
	}{
		{"empty name", func(s *ChannelSpec) { s.Name = "" }},
		{"invalid kind", func(s *ChannelSpec) { s.Kind = KindInvalid }},
		{"zero elements", func(s *ChannelSpec) { s.Elements = 0 }},
		{"bad resample policy", func(s *ChannelSpec) { s.Resample = ResamplePolicy(42) }},
		{"bad hole policy", func(s *ChannelSpec) { s.Holes = HolePolicy(42) }},
		{"nil buffer", func(s *ChannelSpec) { s.Out = nil }},
		{"wrong buffer type", func(s *ChannelSpec) { s.Out = make([]int32, 4) }},
		{"wrong buffer length", func(s *ChannelSpec) { s.Out = make([]float64, 3) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			spec := good
			tc.mutate(&spec)
			err := spec.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !errors.Is(err, ErrInvalidSpec) {
				t.Errorf("err = %v, want ErrInvalidSpec", err)
			}
		})
	}
}
