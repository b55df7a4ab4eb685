// Copyright 2025, ShotReplay Authors.
// SPDX-License-Identifier: Apache-2.0

// Package engine reconstructs fixed-rate, gap-free sample streams from
// irregularly segmented storage. One Engine instance drives an arbitrary
// set of channels: every cycle it delivers exactly the configured number
// of samples per channel into caller-owned buffers, resampling stored
// data where it exists and filling holes per policy where it does not.
//
// The engine is single-threaded: the caller invokes RunCycle once per
// period and must serialize calls to a given instance. Requested time
// never moves backward, which is what makes the amortized forward
// segment scan correct.
package engine

import (
	"errors"
	"fmt"
	"math"

	"github.com/shotreplay/shotreplay/pkg/sdata"
	"github.com/shotreplay/shotreplay/pkg/segstore"
)

var ErrConfig = errors.New("engine configuration error")

// DefaultGapFactor is the discontinuity threshold multiplier: a segment
// boundary counts as a hole when the sample-to-sample distance across
// it exceeds DefaultGapFactor times the channel's nominal period. The
// value is a design choice, not derived: large enough to absorb timing
// jitter, small enough to catch a single missing storage period.
const DefaultGapFactor = 1.5

// TimeSpec configures the optional published time signal: the cycle
// start time in microseconds, written once per cycle into Out. Out must
// be a length-1 slice of the Go type matching Kind; Kind must be one of
// the four wide integer kinds.
type TimeSpec struct {
	Kind sdata.NumKind
	Out  any
}

// Config configures an Engine.
type Config struct {
	// Frequency is the cycle rate in Hz; the engine period is its
	// inverse. Must be > 0.
	Frequency float64

	// StartTime is the time of the first cycle window, in the same
	// time base as the stored segments. Zero is a valid start.
	StartTime float64

	// GapFactor overrides DefaultGapFactor when > 0.
	GapFactor float64

	// Channels lists the resampled channels. At least one is required.
	Channels []sdata.ChannelSpec

	// Time optionally configures the published time signal.
	Time *TimeSpec
}

// CycleResult reports one completed cycle.
type CycleResult struct {
	// Counts holds the number of samples written per channel, in
	// configuration order. A successful cycle writes the full element
	// count for every channel, filler included.
	Counts []int

	// More is true while at least one channel still has stored data
	// ahead of the clock. A short channel keeps being gap-filled until
	// every channel has ended.
	More bool
}

// Engine is the cycle-driven resampling engine. Not safe for concurrent
// use; all mutable state is touched only by the calling goroutine.
type Engine struct {
	store     segstore.Store
	period    float64
	startTime float64
	cycles    int
	runners   []chanRunner
	timeSig   *TimeSpec
}

// New validates the configuration against the store and builds the
// engine. All configuration errors surface here, before any cycle runs:
// invalid policies, zero element counts, buffer/kind mismatches, kind
// mismatches against storage, and raw-copy rate mismatches.
func New(store segstore.Store, cfg Config) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: nil store", ErrConfig)
	}
	if cfg.Frequency <= 0 {
		return nil, fmt.Errorf("%w: frequency must be > 0, got %g", ErrConfig, cfg.Frequency)
	}
	if len(cfg.Channels) == 0 {
		return nil, fmt.Errorf("%w: no channels configured", ErrConfig)
	}
	gapFactor := cfg.GapFactor
	if gapFactor <= 0 {
		gapFactor = DefaultGapFactor
	}
	period := 1.0 / cfg.Frequency

	e := &Engine{
		store:     store,
		period:    period,
		startTime: cfg.StartTime,
	}
	seen := make(map[string]bool)
	for _, spec := range cfg.Channels {
		if err := spec.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfig, err)
		}
		if seen[spec.Name] {
			return nil, fmt.Errorf("%w: duplicate channel %s", ErrConfig, spec.Name)
		}
		seen[spec.Name] = true
		storeKind, err := store.Kind(spec.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfig, err)
		}
		if storeKind != spec.Kind {
			return nil, fmt.Errorf("%w: channel %s: configured kind %v, stored kind %v",
				ErrConfig, spec.Name, spec.Kind, storeKind)
		}
		runner, err := newRunner(store, spec, period, gapFactor)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfig, err)
		}
		e.runners = append(e.runners, runner)
	}
	if cfg.Time != nil {
		if err := validateTimeSpec(cfg.Time); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfig, err)
		}
		e.timeSig = cfg.Time
	}
	return e, nil
}

// newRunner instantiates the generic channel state for the spec's kind.
// The kind switch runs once per channel at configure time; the per-cycle
// copy path is monomorphic.
func newRunner(store segstore.Store, spec sdata.ChannelSpec, period, gapFactor float64) (chanRunner, error) {
	switch spec.Kind {
	case sdata.KindUint8:
		return newChanState[uint8](store, spec, period, gapFactor)
	case sdata.KindInt8:
		return newChanState[int8](store, spec, period, gapFactor)
	case sdata.KindUint16:
		return newChanState[uint16](store, spec, period, gapFactor)
	case sdata.KindInt16:
		return newChanState[int16](store, spec, period, gapFactor)
	case sdata.KindUint32:
		return newChanState[uint32](store, spec, period, gapFactor)
	case sdata.KindInt32:
		return newChanState[int32](store, spec, period, gapFactor)
	case sdata.KindUint64:
		return newChanState[uint64](store, spec, period, gapFactor)
	case sdata.KindInt64:
		return newChanState[int64](store, spec, period, gapFactor)
	case sdata.KindFloat32:
		return newChanState[float32](store, spec, period, gapFactor)
	case sdata.KindFloat64:
		return newChanState[float64](store, spec, period, gapFactor)
	}
	return nil, fmt.Errorf("channel %s: unsupported kind %v", spec.Name, spec.Kind)
}

// CurrentTime returns the start time of the next cycle window.
func (e *Engine) CurrentTime() float64 {
	return e.startTime + float64(e.cycles)*e.period
}

// Period returns the cycle period.
func (e *Engine) Period() float64 { return e.period }

// RunCycle processes one cycle for every channel and advances the
// clock by exactly one period, regardless of fill activity. Channels
// are independent: a failure leaves only the affected channel's buffer
// undefined, and the returned error joins the per-channel failures.
func (e *Engine) RunCycle() (CycleResult, error) {
	start := e.CurrentTime()
	counts := make([]int, len(e.runners))
	var errs []error
	for i, r := range e.runners {
		n, err := r.runCycle(start)
		counts[i] = n
		if err != nil {
			errs = append(errs, fmt.Errorf("channel %s: %w", r.chanName(), err))
		}
	}
	if e.timeSig != nil {
		publishTime(e.timeSig, start)
	}
	e.cycles++

	more := false
	for _, r := range e.runners {
		if !r.isDone() {
			more = true
			break
		}
	}
	return CycleResult{Counts: counts, More: more}, errors.Join(errs...)
}

// Reset rewinds every cursor and the clock to start-of-data. Intended
// only between runs, never mid-run.
func (e *Engine) Reset() {
	for _, r := range e.runners {
		r.resetCursor()
	}
	e.cycles = 0
}

func validateTimeSpec(ts *TimeSpec) error {
	if !ts.Kind.TimeKind() {
		return fmt.Errorf("time signal: kind %v not supported (want uint32/int32/uint64/int64)", ts.Kind)
	}
	if ts.Out == nil {
		return errors.New("time signal: nil output buffer")
	}
	ok := false
	n := 0
	switch ts.Kind {
	case sdata.KindUint32:
		var b []uint32
		b, ok = ts.Out.([]uint32)
		n = len(b)
	case sdata.KindInt32:
		var b []int32
		b, ok = ts.Out.([]int32)
		n = len(b)
	case sdata.KindUint64:
		var b []uint64
		b, ok = ts.Out.([]uint64)
		n = len(b)
	case sdata.KindInt64:
		var b []int64
		b, ok = ts.Out.([]int64)
		n = len(b)
	}
	if !ok {
		return fmt.Errorf("time signal: buffer type %T does not match kind %v", ts.Out, ts.Kind)
	}
	if n != 1 {
		return fmt.Errorf("time signal: buffer length %d, want 1", n)
	}
	return nil
}

// publishTime writes the cycle start time in microseconds.
func publishTime(ts *TimeSpec, start float64) {
	us := math.Round(start * 1e6)
	switch out := ts.Out.(type) {
	case []uint32:
		out[0] = uint32(us)
	case []int32:
		out[0] = int32(us)
	case []uint64:
		out[0] = uint64(us)
	case []int64:
		out[0] = int64(us)
	}
}
