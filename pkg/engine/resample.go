// Copyright 2025, ShotReplay Authors.
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"fmt"
	"math"

	"golang.org/x/exp/constraints"

	"github.com/shotreplay/shotreplay/pkg/sdata"
	"github.com/shotreplay/shotreplay/pkg/segstore"
)

// Number is the closed arithmetic constraint for channel elements. The
// ten supported kinds all satisfy it; the per-kind instantiation happens
// once at configure time so the per-cycle path is monomorphic.
type Number interface {
	constraints.Integer | constraints.Float
}

// chanRunner is the non-generic view of a channel's per-cycle state
// machine. One instance exists per configured channel.
type chanRunner interface {
	chanName() string
	isDone() bool
	runCycle(start float64) (int, error)
	resetCursor()
}

// chanState carries the full resampling state of one channel across
// cycles. Filler values never update the hold state; the bracket state
// (prevT/prevV) tracks stored samples only.
type chanState[T Number] struct {
	segCursor
	spec    sdata.ChannelSpec
	out     []T
	outStep float64

	// bracket cursor: next unconsumed stored sample, advanced strictly
	// forward. brSeg == -1 until the first data run.
	brSeg, brIdx int
	prevT        float64
	prevV        T
	hasPrev      bool

	// raw copy position. rawSeg == -1 forces realignment on entry.
	rawSeg, rawOff int

	// hold-last fill state: the last real output value delivered.
	holdV   T
	hasHold bool

	done bool

	// endTime is the end of the final stored segment; a window that
	// reaches it exhausts the channel without waiting for the next
	// cycle's segment scan.
	endTime float64

	// single-segment fetch cache
	cacheSeg int
	cacheBuf []T
}

func newChanState[T Number](store segstore.Store, spec sdata.ChannelSpec, period, gapFactor float64) (*chanState[T], error) {
	out, ok := spec.Out.([]T)
	if !ok {
		return nil, fmt.Errorf("channel %s: output buffer type %T does not match kind %v", spec.Name, spec.Out, spec.Kind)
	}
	segCount, err := store.SegmentCount(spec.Name)
	if err != nil {
		return nil, err
	}
	cs := &chanState[T]{
		segCursor: segCursor{
			store:     store,
			name:      spec.Name,
			segCount:  segCount,
			gapFactor: gapFactor,
		},
		spec:    spec,
		out:     out,
		outStep: period / float64(spec.Elements),
	}
	if segCount > 0 {
		rng, err := store.SegmentRange(spec.Name, 0)
		if err != nil {
			return nil, err
		}
		if rng.Count <= 0 || rng.Period() <= 0 {
			return nil, fmt.Errorf("channel %s: first segment %d samples over [%g, %g), cannot derive a sampling period",
				spec.Name, rng.Count, rng.Start, rng.End)
		}
		cs.nomPeriod = rng.Period()
		last, err := store.SegmentRange(spec.Name, segCount-1)
		if err != nil {
			return nil, err
		}
		cs.endTime = last.End
	} else {
		// empty channel: exhausted from the first cycle, gap-filled
		// for the whole run
		cs.nomPeriod = cs.outStep
		cs.done = true
	}
	if spec.Resample == sdata.ResampleRaw && segCount > 0 {
		if math.Abs(cs.nomPeriod-cs.outStep) > cs.nomPeriod*1e-6 {
			return nil, fmt.Errorf("channel %s: raw copy requires storage period %g to match output period %g",
				spec.Name, cs.nomPeriod, cs.outStep)
		}
	}
	cs.resetCursor()
	return cs, nil
}

func (cs *chanState[T]) chanName() string { return cs.spec.Name }
func (cs *chanState[T]) isDone() bool     { return cs.done }

func (cs *chanState[T]) resetCursor() {
	cs.scanSeg = 0
	cs.brSeg = -1
	cs.brIdx = 0
	cs.hasPrev = false
	cs.rawSeg = -1
	cs.rawOff = 0
	var zero T
	cs.prevV = zero
	cs.holdV = zero
	cs.hasHold = false
	cs.done = cs.segCount == 0
	cs.cacheSeg = -1
	cs.cacheBuf = nil
}

// runCycle produces exactly spec.Elements samples for the window
// [start, start+Elements*outStep), stitching data runs and fill runs
// around holes. Returns the number of samples written; on error the
// channel's buffer contents are undefined.
func (cs *chanState[T]) runCycle(start float64) (int, error) {
	n := cs.spec.Elements
	windowEnd := start + float64(n)*cs.outStep
	produced := 0
	for produced < n {
		remaining := n - produced
		if cs.done {
			cs.fill(produced, remaining)
			produced = n
			break
		}
		t := start + float64(produced)*cs.outStep
		seg, res, err := cs.findSegment(t)
		if err != nil {
			return produced, err
		}
		switch res {
		case segEndOfData:
			cs.done = true
			// filled on the next loop iteration

		case segNotYetStored:
			rng, err := cs.rng(seg)
			if err != nil {
				return produced, err
			}
			k := samplesUntil(t, math.Min(rng.Start, windowEnd), cs.outStep, cs.timeEps())
			if k < 1 {
				// the scan placed t inside the hole, so the run holds at
				// least that instant; never loop without progress
				k = 1
			}
			if k > remaining {
				k = remaining
			}
			cs.fill(produced, k)
			produced += k

		case segFound:
			runEnd, err := cs.dataEndAfter(seg)
			if err != nil {
				return produced, err
			}
			if windowEnd < runEnd {
				runEnd = windowEnd
			}
			k := samplesUntil(t, runEnd, cs.outStep, cs.timeEps())
			if k < 1 {
				k = 1
			}
			if k > remaining {
				k = remaining
			}
			var m int
			if cs.spec.Resample == sdata.ResampleRaw {
				m, err = cs.copyRaw(seg, k, produced, t)
			} else {
				m, err = cs.copyResampled(seg, k, produced, t)
			}
			if err != nil {
				return produced, err
			}
			if m <= 0 {
				return produced, fmt.Errorf("channel %s: resample stalled at t=%g (segment %d)", cs.name, t, seg)
			}
			produced += m
		}
	}
	if !cs.done && windowEnd >= cs.endTime-cs.timeEps() {
		// the next window starts at or beyond the last stored sample
		cs.done = true
	}
	return n, nil
}

// fill writes count filler samples at offset off: zero, or the last
// real value delivered when the channel holds on holes. Filler values
// never feed back into the hold state.
func (cs *chanState[T]) fill(off, count int) {
	var v T
	if cs.spec.Holes == sdata.HoleHoldLast && cs.hasHold {
		v = cs.holdV
	}
	for i := 0; i < count; i++ {
		cs.out[off+i] = v
	}
}

// fetchSeg returns the full sample slice of a segment, cached so that
// chunked copies within a cycle fetch each segment once.
func (cs *chanState[T]) fetchSeg(seg int) ([]T, error) {
	if cs.cacheBuf != nil && cs.cacheSeg == seg {
		return cs.cacheBuf, nil
	}
	rng, err := cs.rng(seg)
	if err != nil {
		return nil, err
	}
	raw, err := cs.store.Fetch(cs.name, seg, 0, rng.Count)
	if err != nil {
		return nil, err
	}
	buf, ok := raw.([]T)
	if !ok {
		return nil, fmt.Errorf("channel %s: segment %d fetch returned %T, want []%v", cs.name, seg, raw, cs.spec.Kind)
	}
	cs.cacheSeg = seg
	cs.cacheBuf = buf
	return buf, nil
}

// copyRaw copies k stored samples verbatim starting at time t, chunking
// across contiguous segments. Returns fewer than k only when storage
// runs out mid-run.
func (cs *chanState[T]) copyRaw(seg, k, off int, t float64) (int, error) {
	produced := 0
	for produced < k {
		rng, err := cs.rng(seg)
		if err != nil {
			return produced, err
		}
		if cs.rawSeg != seg {
			// entering a new segment: align the consumed offset to
			// the current output instant
			tcur := t + float64(produced)*cs.outStep
			idx := int(math.Round((tcur - rng.Start) / cs.nomPeriod))
			if idx < 0 {
				idx = 0
			}
			cs.rawSeg = seg
			cs.rawOff = idx
		}
		avail := rng.Count - cs.rawOff
		if avail <= 0 {
			if seg+1 >= cs.segCount {
				break
			}
			seg++
			continue
		}
		take := avail
		if take > k-produced {
			take = k - produced
		}
		buf, err := cs.fetchSeg(seg)
		if err != nil {
			return produced, err
		}
		copy(cs.out[off+produced:off+produced+take], buf[cs.rawOff:cs.rawOff+take])
		cs.rawOff += take
		produced += take
		cs.holdV = buf[cs.rawOff-1]
		cs.hasHold = true
	}
	return produced, nil
}

// bracketNext returns the stored sample at the bracket cursor, rolling
// the cursor over segment boundaries. ok is false past the last stored
// sample of the channel.
func (cs *chanState[T]) bracketNext() (float64, T, bool, error) {
	var zero T
	for cs.brSeg < cs.segCount {
		rng, err := cs.rng(cs.brSeg)
		if err != nil {
			return 0, zero, false, err
		}
		if cs.brIdx < rng.Count {
			buf, err := cs.fetchSeg(cs.brSeg)
			if err != nil {
				return 0, zero, false, err
			}
			return rng.SampleTime(cs.brIdx), buf[cs.brIdx], true, nil
		}
		cs.brSeg++
		cs.brIdx = 0
	}
	return 0, zero, false, nil
}

// copyResampled produces k interpolated or nearest-held samples
// starting at time t0. For each output instant the bracket cursor is
// advanced so that prev is the last stored sample strictly before the
// instant and next the first at or after it; the cursor walk is shared
// by both policies and amortized linear over the channel's data.
func (cs *chanState[T]) copyResampled(seg, k, off int, t0 float64) (int, error) {
	if cs.brSeg < 0 {
		cs.brSeg = seg
		cs.brIdx = 0
	}
	eps := cs.timeEps()
	produced := 0
	for produced < k {
		tk := t0 + float64(produced)*cs.outStep

		var nextT float64
		var nextV T
		hasNext := false
		for {
			st, sv, ok, err := cs.bracketNext()
			if err != nil {
				return produced, err
			}
			if !ok {
				break
			}
			if st >= tk-eps {
				nextT, nextV, hasNext = st, sv, true
				break
			}
			cs.prevT, cs.prevV, cs.hasPrev = st, sv, true
			cs.brIdx++
		}

		var val T
		switch {
		case !hasNext:
			// past the last stored sample but still inside the final
			// segment's nominal range: hold the last sample
			val = cs.prevV
		case !cs.hasPrev:
			val = nextV
		case cs.spec.Resample == sdata.ResampleInterp:
			val = interpolate(tk, cs.prevT, cs.prevV, nextT, nextV)
		default:
			// nearest; ties resolve to the earlier sample
			if tk-cs.prevT <= nextT-tk {
				val = cs.prevV
			} else {
				val = nextV
			}
		}
		cs.out[off+produced] = val
		produced++
	}
	if produced > 0 {
		cs.holdV = cs.out[off+produced-1]
		cs.hasHold = true
	}
	return produced, nil
}

// interpolate computes d1 + (d2-d1)*(tk-t1)/(t2-t1) in float64 and
// converts back to the element type. A zero-duration interval yields d1
// rather than dividing by zero.
func interpolate[T Number](tk, t1 float64, d1 T, t2 float64, d2 T) T {
	if t2 == t1 {
		return d1
	}
	r := float64(d1) + (float64(d2)-float64(d1))*(tk-t1)/(t2-t1)
	return T(r)
}

// samplesUntil counts the output instants from+i*step that fall in the
// closed-open interval [from, to). eps must be the same classification
// tolerance the segment scan uses, so that an instant the scan placed
// before the boundary is counted into this run and one within eps of
// the boundary belongs to the next.
func samplesUntil(from, to, step, eps float64) int {
	k := int(math.Ceil((to - from - eps) / step))
	if k < 0 {
		return 0
	}
	return k
}
