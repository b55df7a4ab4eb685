// Copyright 2025, ShotReplay Authors.
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"fmt"

	"github.com/shotreplay/shotreplay/pkg/segstore"
)

// findResult classifies where a requested time falls relative to a
// channel's stored segments.
type findResult int

const (
	// segFound: t lies inside a stored segment.
	segFound findResult = iota
	// segNotYetStored: t falls in a hole between two stored segments.
	segNotYetStored
	// segEndOfData: t is at or beyond the end of the last segment.
	segEndOfData
)

// segCursor is the policy-independent part of a channel's resampling
// state: the forward-scan segment hint and the gap analysis over the
// channel's segment list. Requested times never move backward across
// calls; the scan therefore resumes from scanSeg and is amortized
// linear over a run.
type segCursor struct {
	store    segstore.Store
	name     string
	segCount int

	// nomPeriod is the channel's storage sampling period, derived once
	// from the first segment after the store is opened.
	nomPeriod float64

	// gapFactor is the discontinuity threshold multiplier: a boundary
	// whose sample-to-sample gap exceeds gapFactor*nomPeriod counts as
	// a hole. 1.5 by default; deliberately above 1.0 so that timing
	// jitter on contiguous segments is not misread as a hole.
	gapFactor float64

	// scanSeg is the last visited segment; it never regresses.
	scanSeg int
}

// timeEps returns the comparison tolerance for time values, scaled to
// the channel's sampling period.
func (c *segCursor) timeEps() float64 {
	return c.nomPeriod * 1e-6
}

func (c *segCursor) rng(seg int) (segstore.SegmentRange, error) {
	return c.store.SegmentRange(c.name, seg)
}

// findSegment locates the segment containing time t, scanning forward
// from scanSeg. On segFound the returned index is the containing
// segment; on segNotYetStored it is the first stored segment after t.
// A caller requesting a time earlier than a previous call violates the
// monotonic-time contract and may get segEndOfData spuriously.
func (c *segCursor) findSegment(t float64) (int, findResult, error) {
	eps := c.timeEps()
	for s := c.scanSeg; s < c.segCount; s++ {
		rng, err := c.rng(s)
		if err != nil {
			return 0, 0, err
		}
		if t < rng.Start-eps {
			c.scanSeg = s
			return s, segNotYetStored, nil
		}
		if t < rng.End-eps {
			c.scanSeg = s
			return s, segFound, nil
		}
	}
	return c.segCount, segEndOfData, nil
}

// discontinuous reports whether the boundary between segment s and s+1
// is a hole: the distance from the last sample of s to the first sample
// of s+1 exceeds gapFactor times the nominal period.
func (c *segCursor) discontinuous(s int) (bool, error) {
	cur, err := c.rng(s)
	if err != nil {
		return false, err
	}
	next, err := c.rng(s + 1)
	if err != nil {
		return false, err
	}
	lastSample := cur.End - c.nomPeriod
	return next.Start-lastSample > c.gapFactor*c.nomPeriod, nil
}

// countDiscontinuities counts the holes between segments from and to
// inclusive.
func (c *segCursor) countDiscontinuities(from, to int) (int, error) {
	if from < 0 || to >= c.segCount || from > to {
		return 0, fmt.Errorf("channel %s: segment range [%d,%d] out of [0,%d)", c.name, from, to, c.segCount)
	}
	n := 0
	for s := from; s < to; s++ {
		disc, err := c.discontinuous(s)
		if err != nil {
			return 0, err
		}
		if disc {
			n++
		}
	}
	return n, nil
}

// findNextDiscontinuity scans forward from segment from and returns the
// time range of the first hole: gapStart is the end time of the segment
// before the hole, gapEnd the start time of the segment after it.
func (c *segCursor) findNextDiscontinuity(from int) (bool, float64, float64, error) {
	for s := from; s < c.segCount-1; s++ {
		disc, err := c.discontinuous(s)
		if err != nil {
			return false, 0, 0, err
		}
		if disc {
			cur, err := c.rng(s)
			if err != nil {
				return false, 0, 0, err
			}
			next, err := c.rng(s + 1)
			if err != nil {
				return false, 0, 0, err
			}
			return true, cur.End, next.Start, nil
		}
	}
	return false, 0, 0, nil
}

// dataEndAfter returns the time at which the contiguous data run
// containing segment seg ends: the start of the next hole, or the end
// of the last segment when no hole follows.
func (c *segCursor) dataEndAfter(seg int) (float64, error) {
	for s := seg; s < c.segCount-1; s++ {
		disc, err := c.discontinuous(s)
		if err != nil {
			return 0, err
		}
		if disc {
			rng, err := c.rng(s)
			if err != nil {
				return 0, err
			}
			return rng.End, nil
		}
	}
	rng, err := c.rng(c.segCount - 1)
	if err != nil {
		return 0, err
	}
	return rng.End, nil
}
