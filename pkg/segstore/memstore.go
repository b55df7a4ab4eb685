// Copyright 2025, ShotReplay Authors.
// SPDX-License-Identifier: Apache-2.0

package segstore

import (
	"fmt"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"

	"github.com/shotreplay/shotreplay/pkg/sdata"
)

type memSegment struct {
	rng  SegmentRange
	data any // slice of the channel's element type, len == rng.Count
}

type memChannel struct {
	name     string
	kind     sdata.NumKind
	segments []memSegment
	// byStart maps segment start time -> segment index for the
	// store-level time lookup (SegmentAt). The engine does not use
	// this; its forward scan lives in the cursor.
	byStart *treemap.Map
}

// MemStore is an in-memory Store. Channels and segments are appended at
// build time and immutable afterwards.
type MemStore struct {
	tree     string
	shot     int
	order    []string
	channels map[string]*memChannel
}

// NewMemStore creates an empty store identified by a tree name and shot
// number (carried as metadata only).
func NewMemStore(tree string, shot int) *MemStore {
	return &MemStore{
		tree:     tree,
		shot:     shot,
		channels: make(map[string]*memChannel),
	}
}

func (ms *MemStore) Tree() string { return ms.tree }
func (ms *MemStore) Shot() int    { return ms.shot }

// AddChannel registers a new empty channel of the given kind.
func (ms *MemStore) AddChannel(name string, kind sdata.NumKind) error {
	if !kind.Valid() {
		return fmt.Errorf("channel %s: invalid kind %v", name, kind)
	}
	if _, exists := ms.channels[name]; exists {
		return fmt.Errorf("channel %s already exists", name)
	}
	ms.channels[name] = &memChannel{
		name:    name,
		kind:    kind,
		byStart: treemap.NewWith(utils.Float64Comparator),
	}
	ms.order = append(ms.order, name)
	return nil
}

// AppendSegment appends a segment with the given start time and sample
// period. The data slice type must match the channel kind; segments must
// be appended in time order and must not overlap.
func (ms *MemStore) AppendSegment(name string, start, period float64, data any) error {
	mc, ok := ms.channels[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, name)
	}
	count, err := sliceLen(mc.kind, data)
	if err != nil {
		return fmt.Errorf("channel %s: %w", name, err)
	}
	if count == 0 {
		return fmt.Errorf("channel %s: empty segment", name)
	}
	if period <= 0 {
		return fmt.Errorf("channel %s: period must be > 0, got %g", name, period)
	}
	if n := len(mc.segments); n > 0 {
		prev := mc.segments[n-1].rng
		if start < prev.End {
			return fmt.Errorf("channel %s: segment start %g overlaps previous end %g", name, start, prev.End)
		}
	}
	rng := SegmentRange{Start: start, End: start + float64(count)*period, Count: count}
	mc.byStart.Put(start, len(mc.segments))
	mc.segments = append(mc.segments, memSegment{rng: rng, data: data})
	return nil
}

func (ms *MemStore) Channels() []string {
	out := make([]string, len(ms.order))
	copy(out, ms.order)
	return out
}

func (ms *MemStore) Kind(channel string) (sdata.NumKind, error) {
	mc, ok := ms.channels[channel]
	if !ok {
		return sdata.KindInvalid, fmt.Errorf("%w: %s", ErrUnknownChannel, channel)
	}
	return mc.kind, nil
}

func (ms *MemStore) SegmentCount(channel string) (int, error) {
	mc, ok := ms.channels[channel]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownChannel, channel)
	}
	return len(mc.segments), nil
}

func (ms *MemStore) SegmentRange(channel string, seg int) (SegmentRange, error) {
	mc, ok := ms.channels[channel]
	if !ok {
		return SegmentRange{}, fmt.Errorf("%w: %s", ErrUnknownChannel, channel)
	}
	if seg < 0 || seg >= len(mc.segments) {
		return SegmentRange{}, fmt.Errorf("%w: %s[%d]", ErrSegmentIndex, channel, seg)
	}
	return mc.segments[seg].rng, nil
}

func (ms *MemStore) Fetch(channel string, seg, offset, count int) (any, error) {
	mc, ok := ms.channels[channel]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChannel, channel)
	}
	if seg < 0 || seg >= len(mc.segments) {
		return nil, fmt.Errorf("%w: %s[%d]", ErrSegmentIndex, channel, seg)
	}
	s := mc.segments[seg]
	if offset < 0 || count < 0 || offset+count > s.rng.Count {
		return nil, fmt.Errorf("%w: %s[%d] offset %d count %d of %d", ErrFetchRange, channel, seg, offset, count, s.rng.Count)
	}
	return subSlice(mc.kind, s.data, offset, count), nil
}

// SegmentAt returns the index of the segment containing time t, or
// (-1, false) when t falls in a hole or outside the stored range. Uses
// the start-time treemap; intended for offline inspection, not the
// per-cycle path.
func (ms *MemStore) SegmentAt(channel string, t float64) (int, bool) {
	mc, ok := ms.channels[channel]
	if !ok {
		return -1, false
	}
	_, v := mc.byStart.Floor(t)
	if v == nil {
		return -1, false
	}
	idx := v.(int)
	if t < mc.segments[idx].rng.End {
		return idx, true
	}
	return -1, false
}

func sliceLen(kind sdata.NumKind, data any) (int, error) {
	switch kind {
	case sdata.KindUint8:
		if b, ok := data.([]uint8); ok {
			return len(b), nil
		}
	case sdata.KindInt8:
		if b, ok := data.([]int8); ok {
			return len(b), nil
		}
	case sdata.KindUint16:
		if b, ok := data.([]uint16); ok {
			return len(b), nil
		}
	case sdata.KindInt16:
		if b, ok := data.([]int16); ok {
			return len(b), nil
		}
	case sdata.KindUint32:
		if b, ok := data.([]uint32); ok {
			return len(b), nil
		}
	case sdata.KindInt32:
		if b, ok := data.([]int32); ok {
			return len(b), nil
		}
	case sdata.KindUint64:
		if b, ok := data.([]uint64); ok {
			return len(b), nil
		}
	case sdata.KindInt64:
		if b, ok := data.([]int64); ok {
			return len(b), nil
		}
	case sdata.KindFloat32:
		if b, ok := data.([]float32); ok {
			return len(b), nil
		}
	case sdata.KindFloat64:
		if b, ok := data.([]float64); ok {
			return len(b), nil
		}
	}
	return 0, fmt.Errorf("segment data type %T does not match kind %v", data, kind)
}

func subSlice(kind sdata.NumKind, data any, offset, count int) any {
	switch kind {
	case sdata.KindUint8:
		return data.([]uint8)[offset : offset+count]
	case sdata.KindInt8:
		return data.([]int8)[offset : offset+count]
	case sdata.KindUint16:
		return data.([]uint16)[offset : offset+count]
	case sdata.KindInt16:
		return data.([]int16)[offset : offset+count]
	case sdata.KindUint32:
		return data.([]uint32)[offset : offset+count]
	case sdata.KindInt32:
		return data.([]int32)[offset : offset+count]
	case sdata.KindUint64:
		return data.([]uint64)[offset : offset+count]
	case sdata.KindInt64:
		return data.([]int64)[offset : offset+count]
	case sdata.KindFloat32:
		return data.([]float32)[offset : offset+count]
	case sdata.KindFloat64:
		return data.([]float64)[offset : offset+count]
	}
	return nil
}
