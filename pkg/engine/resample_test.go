// Copyright 2025, ShotReplay Authors.
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"math"
	"testing"

	"github.com/shotreplay/shotreplay/pkg/sdata"
	"github.com/shotreplay/shotreplay/pkg/segstore"
)

func mustEngine(t *testing.T, store segstore.Store, cfg Config) *Engine {
	t.Helper()
	eng, err := New(store, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return eng
}

func mustCycle(t *testing.T, eng *Engine) CycleResult {
	t.Helper()
	res, err := eng.RunCycle()
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	return res
}

func TestRawCopyDeliversStoredSamples(t *testing.T) {
	ms := segstore.NewMemStore("test_tree", 1)
	if err := ms.AddChannel("a", sdata.KindFloat64); err != nil {
		t.Fatalf("AddChannel: %v", err)
	}
	if err := ms.AppendSegment("a", 0, 0.1, rampSamples(0, 30)); err != nil {
		t.Fatalf("AppendSegment: %v", err)
	}

	out := make([]float64, 10)
	eng := mustEngine(t, ms, Config{
		Frequency: 1,
		Channels: []sdata.ChannelSpec{{
			Name: "a", Kind: sdata.KindFloat64, Elements: 10,
			Resample: sdata.ResampleRaw, Holes: sdata.HoleZero, Out: out,
		}},
	})

	for cycle := 0; cycle < 3; cycle++ {
		mustCycle(t, eng)
		for i := range out {
			want := float64(cycle*10 + i)
			if out[i] != want {
				t.Fatalf("cycle %d out[%d] = %g, want %g", cycle, i, out[i], want)
			}
		}
	}
}

func TestRawCopyChunksAcrossContiguousSegments(t *testing.T) {
	ms := segstore.NewMemStore("test_tree", 1)
	if err := ms.AddChannel("a", sdata.KindInt32); err != nil {
		t.Fatalf("AddChannel: %v", err)
	}
	seg1 := []int32{0, 1, 2, 3}
	seg2 := []int32{4, 5, 6, 7, 8, 9}
	if err := ms.AppendSegment("a", 0, 0.1, seg1); err != nil {
		t.Fatalf("AppendSegment: %v", err)
	}
	if err := ms.AppendSegment("a", 0.4, 0.1, seg2); err != nil {
		t.Fatalf("AppendSegment: %v", err)
	}

	out := make([]int32, 10)
	eng := mustEngine(t, ms, Config{
		Frequency: 1,
		Channels: []sdata.ChannelSpec{{
			Name: "a", Kind: sdata.KindInt32, Elements: 10,
			Resample: sdata.ResampleRaw, Holes: sdata.HoleZero, Out: out,
		}},
	})

	res := mustCycle(t, eng)
	for i := range out {
		if out[i] != int32(i) {
			t.Errorf("out[%d] = %d, want %d", i, out[i], i)
		}
	}
	if res.More {
		t.Errorf("More = true after consuming all data")
	}
}

func TestRawRateMismatchIsConfigError(t *testing.T) {
	ms := segstore.NewMemStore("test_tree", 1)
	if err := ms.AddChannel("a", sdata.KindFloat64); err != nil {
		t.Fatalf("AddChannel: %v", err)
	}
	if err := ms.AppendSegment("a", 0, 0.25, rampSamples(0, 8)); err != nil {
		t.Fatalf("AppendSegment: %v", err)
	}
	_, err := New(ms, Config{
		Frequency: 1,
		Channels: []sdata.ChannelSpec{{
			Name: "a", Kind: sdata.KindFloat64, Elements: 10,
			Resample: sdata.ResampleRaw, Holes: sdata.HoleZero, Out: make([]float64, 10),
		}},
	})
	if err == nil {
		t.Fatalf("expected configuration error for 0.25s storage period vs 0.1s output period")
	}
}

func TestInterpolationDoubleRate(t *testing.T) {
	ms := segstore.NewMemStore("test_tree", 1)
	if err := ms.AddChannel("a", sdata.KindFloat64); err != nil {
		t.Fatalf("AddChannel: %v", err)
	}
	stored := []float64{0, 10, 20, 30, 40, 50, 60, 70}
	if err := ms.AppendSegment("a", 0, 1, stored); err != nil {
		t.Fatalf("AppendSegment: %v", err)
	}

	// output rate is twice the storage rate: 2 elements per 1s cycle
	out := make([]float64, 2)
	eng := mustEngine(t, ms, Config{
		Frequency: 1,
		Channels: []sdata.ChannelSpec{{
			Name: "a", Kind: sdata.KindFloat64, Elements: 2,
			Resample: sdata.ResampleInterp, Holes: sdata.HoleZero, Out: out,
		}},
	})

	for cycle := 0; cycle < 7; cycle++ {
		mustCycle(t, eng)
		even, odd := out[0], out[1]
		if even != stored[cycle] {
			t.Errorf("cycle %d even sample = %g, want stored %g", cycle, even, stored[cycle])
		}
		lo, hi := stored[cycle], stored[cycle+1]
		if !(odd > lo && odd < hi) {
			t.Errorf("cycle %d odd sample = %g, want strictly inside (%g, %g)", cycle, odd, lo, hi)
		}
		if math.Abs(odd-(lo+hi)/2) > 1e-9 {
			t.Errorf("cycle %d odd sample = %g, want midpoint %g", cycle, odd, (lo+hi)/2)
		}
	}
}

func TestInterpolationDecimation(t *testing.T) {
	ms := segstore.NewMemStore("test_tree", 1)
	if err := ms.AddChannel("a", sdata.KindFloat64); err != nil {
		t.Fatalf("AddChannel: %v", err)
	}
	// storage at 10 Hz, output at 2 Hz: same formula, downsampled
	if err := ms.AppendSegment("a", 0, 0.1, rampSamples(0, 40)); err != nil {
		t.Fatalf("AppendSegment: %v", err)
	}

	out := make([]float64, 2)
	eng := mustEngine(t, ms, Config{
		Frequency: 1,
		Channels: []sdata.ChannelSpec{{
			Name: "a", Kind: sdata.KindFloat64, Elements: 2,
			Resample: sdata.ResampleInterp, Holes: sdata.HoleZero, Out: out,
		}},
	})

	mustCycle(t, eng)
	// t=0 lands on sample 0, t=0.5 lands on sample 5
	if math.Abs(out[0]-0) > 1e-9 || math.Abs(out[1]-5) > 1e-9 {
		t.Errorf("decimated cycle = %v, want [0 5]", out)
	}
	mustCycle(t, eng)
	if math.Abs(out[0]-10) > 1e-9 || math.Abs(out[1]-15) > 1e-9 {
		t.Errorf("decimated cycle = %v, want [10 15]", out)
	}
}

func TestNearestHoldTieBreaksEarlier(t *testing.T) {
	ms := segstore.NewMemStore("test_tree", 1)
	if err := ms.AddChannel("a", sdata.KindFloat64); err != nil {
		t.Fatalf("AddChannel: %v", err)
	}
	// samples (1.0, 1) and (2.0, 5)
	if err := ms.AppendSegment("a", 1.0, 1.0, []float64{1, 5}); err != nil {
		t.Fatalf("AppendSegment: %v", err)
	}

	out := make([]float64, 1)
	eng := mustEngine(t, ms, Config{
		Frequency: 2,
		StartTime: 1.0,
		Channels: []sdata.ChannelSpec{{
			Name: "a", Kind: sdata.KindFloat64, Elements: 1,
			Resample: sdata.ResampleNearest, Holes: sdata.HoleZero, Out: out,
		}},
	})

	mustCycle(t, eng)
	if out[0] != 1 {
		t.Errorf("t=1.0: out = %g, want 1", out[0])
	}
	mustCycle(t, eng)
	if out[0] != 1 {
		t.Errorf("t=1.5 tie: out = %g, want earlier sample 1", out[0])
	}
	mustCycle(t, eng)
	if out[0] != 5 {
		t.Errorf("t=2.0: out = %g, want 5", out[0])
	}
}

func TestNearestHoldPicksNearer(t *testing.T) {
	ms := segstore.NewMemStore("test_tree", 1)
	if err := ms.AddChannel("a", sdata.KindFloat64); err != nil {
		t.Fatalf("AddChannel: %v", err)
	}
	if err := ms.AppendSegment("a", 1.0, 1.0, []float64{1, 5}); err != nil {
		t.Fatalf("AppendSegment: %v", err)
	}

	out := make([]float64, 1)
	eng := mustEngine(t, ms, Config{
		Frequency: 10,
		StartTime: 1.6,
		Channels: []sdata.ChannelSpec{{
			Name: "a", Kind: sdata.KindFloat64, Elements: 1,
			Resample: sdata.ResampleNearest, Holes: sdata.HoleZero, Out: out,
		}},
	})

	mustCycle(t, eng)
	if out[0] != 5 {
		t.Errorf("t=1.6: out = %g, want nearer sample 5", out[0])
	}
}

func TestInterpolationAcrossContiguousSegmentBoundary(t *testing.T) {
	ms := segstore.NewMemStore("test_tree", 1)
	if err := ms.AddChannel("a", sdata.KindFloat64); err != nil {
		t.Fatalf("AddChannel: %v", err)
	}
	if err := ms.AppendSegment("a", 0, 1, []float64{0, 10}); err != nil {
		t.Fatalf("AppendSegment: %v", err)
	}
	if err := ms.AppendSegment("a", 2, 1, []float64{20, 30}); err != nil {
		t.Fatalf("AppendSegment: %v", err)
	}

	out := make([]float64, 2)
	eng := mustEngine(t, ms, Config{
		Frequency: 1,
		Channels: []sdata.ChannelSpec{{
			Name: "a", Kind: sdata.KindFloat64, Elements: 2,
			Resample: sdata.ResampleInterp, Holes: sdata.HoleZero, Out: out,
		}},
	})

	mustCycle(t, eng) // t=0, 0.5
	mustCycle(t, eng) // t=1.0, 1.5: 1.5 brackets (1,10) and (2,20) across the boundary
	if math.Abs(out[0]-10) > 1e-9 {
		t.Errorf("t=1.0: out = %g, want 10", out[0])
	}
	if math.Abs(out[1]-15) > 1e-9 {
		t.Errorf("t=1.5 across boundary: out = %g, want 15", out[1])
	}
}

func TestSubMicrosecondSegmentOffsetDoesNotStall(t *testing.T) {
	ms := segstore.NewMemStore("test_tree", 1)
	if err := ms.AddChannel("a", sdata.KindFloat64); err != nil {
		t.Fatalf("AddChannel: %v", err)
	}
	// 1 kHz storage with the second segment shifted half a microsecond
	// off the 1 Hz output grid: t=1.0 falls before the segment start by
	// less than one output step but more than the classification slack
	if err := ms.AppendSegment("a", 0, 0.001, rampSamples(0, 1000)); err != nil {
		t.Fatalf("AppendSegment: %v", err)
	}
	if err := ms.AppendSegment("a", 1.0000005, 0.001, rampSamples(1000, 1000)); err != nil {
		t.Fatalf("AppendSegment: %v", err)
	}

	out := make([]float64, 1)
	eng := mustEngine(t, ms, Config{
		Frequency: 1,
		Channels: []sdata.ChannelSpec{{
			Name: "a", Kind: sdata.KindFloat64, Elements: 1,
			Resample: sdata.ResampleNearest, Holes: sdata.HoleZero, Out: out,
		}},
	})

	mustCycle(t, eng)
	if out[0] != 0 {
		t.Errorf("t=0: out = %g, want 0", out[0])
	}
	// every RunCycle must make progress: this window lands in the
	// sub-step sliver before the second segment and fills one sample
	mustCycle(t, eng)
	if out[0] != 0 {
		t.Errorf("t=1 sliver: out = %g, want zero fill", out[0])
	}
	res := mustCycle(t, eng)
	if out[0] != 1999 {
		t.Errorf("t=2: out = %g, want held last sample 1999", out[0])
	}
	if res.More {
		t.Errorf("More = true after the last segment's range")
	}
}

func TestIntegerInterpolationTruncates(t *testing.T) {
	ms := segstore.NewMemStore("test_tree", 1)
	if err := ms.AddChannel("a", sdata.KindUint16); err != nil {
		t.Fatalf("AddChannel: %v", err)
	}
	if err := ms.AppendSegment("a", 0, 1, []uint16{0, 5}); err != nil {
		t.Fatalf("AppendSegment: %v", err)
	}

	out := make([]uint16, 2)
	eng := mustEngine(t, ms, Config{
		Frequency: 1,
		Channels: []sdata.ChannelSpec{{
			Name: "a", Kind: sdata.KindUint16, Elements: 2,
			Resample: sdata.ResampleInterp, Holes: sdata.HoleZero, Out: out,
		}},
	})

	mustCycle(t, eng)
	if out[0] != 0 {
		t.Errorf("even sample = %d, want 0", out[0])
	}
	if out[1] != 2 { // 2.5 truncated toward zero
		t.Errorf("odd sample = %d, want 2", out[1])
	}
}
