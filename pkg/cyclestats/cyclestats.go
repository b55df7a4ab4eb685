// Copyright 2025, ShotReplay Authors.
// SPDX-License-Identifier: Apache-2.0

// Package cyclestats records timing and process statistics across a
// replay run: per-cycle wall time plus process CPU and memory sampled
// via gopsutil. The recorder is driven from the replay loop itself and
// keeps only a bounded window of recent cycles.
package cyclestats

import (
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/shotreplay/shotreplay/pkg/utilds"
)

// Snapshot is a point-in-time summary of a run.
type Snapshot struct {
	Cycles     int
	AvgCycleMs float64
	MaxCycleMs float64
	RecentMs   []float64
	CPUPercent float64
	RSSBytes   uint64
}

// Recorder accumulates cycle durations. Not safe for concurrent use.
type Recorder struct {
	recent   *utilds.CirBuf[float64]
	cycles   int
	totalMs  float64
	maxMs    float64
	proc     *process.Process
}

// NewRecorder creates a recorder keeping the last window cycle times.
func NewRecorder(window int) *Recorder {
	rec := &Recorder{
		recent: utilds.NewCirBuf[float64](window),
	}
	// process handle is best-effort; stats degrade to zero without it
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		rec.proc = proc
	}
	return rec
}

// RecordCycle records the wall time of one completed cycle.
func (rec *Recorder) RecordCycle(d time.Duration) {
	ms := float64(d.Microseconds()) / 1000.0
	rec.cycles++
	rec.totalMs += ms
	if ms > rec.maxMs {
		rec.maxMs = ms
	}
	rec.recent.Write(ms)
}

// Snapshot summarizes the run so far.
func (rec *Recorder) Snapshot() Snapshot {
	snap := Snapshot{
		Cycles:     rec.cycles,
		MaxCycleMs: rec.maxMs,
		RecentMs:   rec.recent.Items(),
	}
	if rec.cycles > 0 {
		snap.AvgCycleMs = rec.totalMs / float64(rec.cycles)
	}
	if rec.proc != nil {
		if cpu, err := rec.proc.CPUPercent(); err == nil {
			snap.CPUPercent = cpu
		}
		if mem, err := rec.proc.MemoryInfo(); err == nil && mem != nil {
			snap.RSSBytes = mem.RSS
		}
	}
	return snap
}
