// Copyright 2025, ShotReplay Authors.
// SPDX-License-Identifier: Apache-2.0

package cyclestats

import (
	"testing"
	"time"
)

func TestRecorderAccumulates(t *testing.T) {
	rec := NewRecorder(4)
	rec.RecordCycle(2 * time.Millisecond)
	rec.RecordCycle(4 * time.Millisecond)
	rec.RecordCycle(6 * time.Millisecond)

	snap := rec.Snapshot()
	if snap.Cycles != 3 {
		t.Errorf("Cycles = %d, want 3", snap.Cycles)
	}
	if snap.AvgCycleMs != 4 {
		t.Errorf("AvgCycleMs = %g, want 4", snap.AvgCycleMs)
	}
	if snap.MaxCycleMs != 6 {
		t.Errorf("MaxCycleMs = %g, want 6", snap.MaxCycleMs)
	}
	if len(snap.RecentMs) != 3 {
		t.Errorf("RecentMs = %v, want 3 entries", snap.RecentMs)
	}
}

func TestRecorderWindowBounded(t *testing.T) {
	rec := NewRecorder(2)
	for i := 0; i < 10; i++ {
		rec.RecordCycle(time.Millisecond)
	}
	snap := rec.Snapshot()
	if snap.Cycles != 10 {
		t.Errorf("Cycles = %d, want 10", snap.Cycles)
	}
	if len(snap.RecentMs) != 2 {
		t.Errorf("recent window = %d entries, want 2", len(snap.RecentMs))
	}
}

func TestEmptySnapshot(t *testing.T) {
	snap := NewRecorder(8).Snapshot()
	if snap.Cycles != 0 || snap.AvgCycleMs != 0 || snap.MaxCycleMs != 0 {
		t.Errorf("empty snapshot = %+v, want zero timing fields", snap)
	}
}
