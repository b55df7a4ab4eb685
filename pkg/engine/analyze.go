// Copyright 2025, ShotReplay Authors.
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"fmt"

	"github.com/shotreplay/shotreplay/pkg/sdata"
	"github.com/shotreplay/shotreplay/pkg/segstore"
)

// Hole is a located storage discontinuity: Start is the end time of the
// segment before the gap, End the start time of the segment after it.
type Hole struct {
	Start float64
	End   float64
}

// GapReport summarizes one channel's stored layout.
type GapReport struct {
	Channel       string
	Kind          sdata.NumKind
	Segments      int
	Samples       int
	NominalPeriod float64
	FirstTime     float64
	LastTime      float64
	Holes         []Hole
}

// AnalyzeChannel walks a channel's segment list and reports its layout
// and discontinuities. gapFactor <= 0 selects DefaultGapFactor. Used by
// offline inspection; the engine runs the same analysis incrementally
// per cycle.
func AnalyzeChannel(store segstore.Store, channel string, gapFactor float64) (GapReport, error) {
	if gapFactor <= 0 {
		gapFactor = DefaultGapFactor
	}
	kind, err := store.Kind(channel)
	if err != nil {
		return GapReport{}, err
	}
	segCount, err := store.SegmentCount(channel)
	if err != nil {
		return GapReport{}, err
	}
	report := GapReport{Channel: channel, Kind: kind, Segments: segCount}
	if segCount == 0 {
		return report, nil
	}
	first, err := store.SegmentRange(channel, 0)
	if err != nil {
		return GapReport{}, err
	}
	if first.Count == 0 {
		return GapReport{}, fmt.Errorf("channel %s: empty first segment", channel)
	}
	report.NominalPeriod = first.Period()
	report.FirstTime = first.Start

	cur := &segCursor{
		store:     store,
		name:      channel,
		segCount:  segCount,
		nomPeriod: report.NominalPeriod,
		gapFactor: gapFactor,
	}
	for s := 0; s < segCount; s++ {
		rng, err := store.SegmentRange(channel, s)
		if err != nil {
			return GapReport{}, err
		}
		report.Samples += rng.Count
		report.LastTime = rng.End
	}
	for from := 0; from < segCount-1; {
		found, gapStart, gapEnd, err := cur.findNextDiscontinuity(from)
		if err != nil {
			return GapReport{}, err
		}
		if !found {
			break
		}
		report.Holes = append(report.Holes, Hole{Start: gapStart, End: gapEnd})
		// resume after the segment that opens the gap
		for ; from < segCount; from++ {
			rng, err := store.SegmentRange(channel, from)
			if err != nil {
				return GapReport{}, err
			}
			if rng.Start >= gapEnd {
				break
			}
		}
	}
	return report, nil
}
