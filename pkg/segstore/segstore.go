// Copyright 2025, ShotReplay Authors.
// SPDX-License-Identifier: Apache-2.0

// Package segstore provides access to segmented channel storage: ordered,
// immutable runs of uniformly spaced samples. The replay engine consumes
// storage exclusively through the narrow Store interface; the in-memory
// implementation and the JSON dump loader in this package exist for the
// CLI and for tests.
package segstore

import (
	"errors"

	"github.com/shotreplay/shotreplay/pkg/sdata"
)

var (
	ErrUnknownChannel = errors.New("unknown channel")
	ErrSegmentIndex   = errors.New("segment index out of range")
	ErrFetchRange     = errors.New("fetch range exceeds segment")
)

// SegmentRange describes one stored segment: Start is the time of the
// first sample, End is Start + Count*period (exclusive), Count is the
// number of samples. Spacing inside a segment is uniform.
type SegmentRange struct {
	Start float64
	End   float64
	Count int
}

// Period returns the sample spacing of the segment.
func (sr SegmentRange) Period() float64 {
	if sr.Count == 0 {
		return 0
	}
	return (sr.End - sr.Start) / float64(sr.Count)
}

// SampleTime returns the time of sample i within the segment.
func (sr SegmentRange) SampleTime(i int) float64 {
	return sr.Start + float64(i)*sr.Period()
}

// Store is the read-only view of segmented channel storage. All calls
// are synchronous; implementations fail only via explicit errors.
type Store interface {
	// Channels returns the stored channel names in configuration order.
	Channels() []string

	// Kind returns the element kind of the named channel.
	Kind(channel string) (sdata.NumKind, error)

	// SegmentCount returns the number of segments of the channel.
	SegmentCount(channel string) (int, error)

	// SegmentRange returns the time range of segment seg.
	SegmentRange(channel string, seg int) (SegmentRange, error)

	// Fetch returns count samples of segment seg starting at offset,
	// as a slice of the channel's Go element type. The returned slice
	// is a read-only view; callers must not modify it.
	Fetch(channel string, seg, offset, count int) (any, error)
}
