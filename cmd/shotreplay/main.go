// Copyright 2025, ShotReplay Authors.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/shotreplay/shotreplay/pkg/cyclestats"
	"github.com/shotreplay/shotreplay/pkg/engine"
	"github.com/shotreplay/shotreplay/pkg/sdata"
	"github.com/shotreplay/shotreplay/pkg/segstore"
)

// ShotReplayVersion is the current version of shotreplay
var ShotReplayVersion = "v0.0.0"

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})

	if err := newRootCmd().Execute(); err != nil {
		logrus.Errorf("%v", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "shotreplay",
		Short: "Replay segmented shot archives as fixed-rate sample streams",
	}

	replayCmd := &cobra.Command{
		Use:   "replay <dump.json>",
		Short: "Run the resampling engine over a shot dump and write per-cycle samples",
		Args:  cobra.ExactArgs(1),
		RunE:  runReplay,
	}
	replayCmd.Flags().Float64("freq", 1000, "Cycle frequency in Hz")
	replayCmd.Flags().Int("elements", 1, "Samples per cycle per channel")
	replayCmd.Flags().String("resample", "interp", "Resample policy: raw, interp or nearest")
	replayCmd.Flags().String("holes", "zero", "Hole policy: zero or holdlast")
	replayCmd.Flags().Float64("gap-factor", engine.DefaultGapFactor, "Discontinuity threshold multiplier")
	replayCmd.Flags().String("out", "", "CSV output path (default stdout)")
	replayCmd.Flags().Int("max-cycles", 0, "Stop after this many cycles (0 = run to end of data)")
	replayCmd.Flags().Bool("pace", false, "Pace cycles at the real-time period instead of running flat out")

	infoCmd := &cobra.Command{
		Use:   "info <dump.json>",
		Short: "Describe the channels, segments and holes of a shot dump",
		Args:  cobra.ExactArgs(1),
		RunE:  runInfo,
	}
	infoCmd.Flags().Float64("gap-factor", engine.DefaultGapFactor, "Discontinuity threshold multiplier")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the shotreplay version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("shotreplay %s\n", ShotReplayVersion)
		},
	}

	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(versionCmd)
	return rootCmd
}

func runReplay(cmd *cobra.Command, args []string) error {
	freq, _ := cmd.Flags().GetFloat64("freq")
	elements, _ := cmd.Flags().GetInt("elements")
	resampleName, _ := cmd.Flags().GetString("resample")
	holesName, _ := cmd.Flags().GetString("holes")
	gapFactor, _ := cmd.Flags().GetFloat64("gap-factor")
	outPath, _ := cmd.Flags().GetString("out")
	maxCycles, _ := cmd.Flags().GetInt("max-cycles")
	pace, _ := cmd.Flags().GetBool("pace")

	resample, err := sdata.ParseResamplePolicy(resampleName)
	if err != nil {
		return err
	}
	holes, err := sdata.ParseHolePolicy(holesName)
	if err != nil {
		return err
	}

	store, err := segstore.LoadDump(args[0])
	if err != nil {
		return err
	}
	names := store.Channels()
	if len(names) == 0 {
		return fmt.Errorf("dump %s contains no channels", args[0])
	}

	cfg := engine.Config{
		Frequency: freq,
		StartTime: earliestStart(store),
		GapFactor: gapFactor,
	}
	buffers := make([]any, len(names))
	for i, name := range names {
		kind, err := store.Kind(name)
		if err != nil {
			return err
		}
		buffers[i] = makeBuffer(kind, elements)
		cfg.Channels = append(cfg.Channels, sdata.ChannelSpec{
			Name:     name,
			Kind:     kind,
			Elements: elements,
			Resample: resample,
			Holes:    holes,
			Out:      buffers[i],
		})
	}
	timeBuf := make([]uint64, 1)
	cfg.Time = &engine.TimeSpec{Kind: sdata.KindUint64, Out: timeBuf}

	eng, err := engine.New(store, cfg)
	if err != nil {
		return err
	}

	out := os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	w := csv.NewWriter(out)
	defer w.Flush()
	header := append([]string{"time"}, names...)
	if err := w.Write(header); err != nil {
		return err
	}

	runID := uuid.New().String()
	log := logrus.WithFields(logrus.Fields{
		"run":  runID[:8],
		"tree": store.Tree(),
		"shot": store.Shot(),
	})
	log.Infof("replaying %d channels at %g Hz, %d elements/cycle", len(names), freq, elements)

	rec := cyclestats.NewRecorder(256)
	period := eng.Period()
	outStep := period / float64(elements)
	cycles := 0
	for {
		cycleStart := eng.CurrentTime()
		t0 := time.Now()
		res, err := eng.RunCycle()
		rec.RecordCycle(time.Since(t0))
		if err != nil {
			return fmt.Errorf("cycle %d: %w", cycles, err)
		}
		for k := 0; k < elements; k++ {
			row := make([]string, 0, len(names)+1)
			row = append(row, strconv.FormatFloat(cycleStart+float64(k)*outStep, 'g', -1, 64))
			for _, buf := range buffers {
				row = append(row, formatSample(buf, k))
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		cycles++
		if !res.More {
			break
		}
		if maxCycles > 0 && cycles >= maxCycles {
			log.Warnf("stopping at cycle limit %d with data remaining", maxCycles)
			break
		}
		if pace {
			if sleep := time.Duration(period*float64(time.Second)) - time.Since(t0); sleep > 0 {
				time.Sleep(sleep)
			}
		}
	}
	// the deferred Flush swallows write errors on the early-return
	// paths; the success path must surface them
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}
	snap := rec.Snapshot()
	log.Infof("replayed %d cycles, avg %.3fms max %.3fms, cpu %.1f%%, rss %d bytes",
		snap.Cycles, snap.AvgCycleMs, snap.MaxCycleMs, snap.CPUPercent, snap.RSSBytes)
	return nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	gapFactor, _ := cmd.Flags().GetFloat64("gap-factor")
	store, err := segstore.LoadDump(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("tree %q shot %d\n", store.Tree(), store.Shot())
	for _, name := range store.Channels() {
		report, err := engine.AnalyzeChannel(store, name, gapFactor)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %v, %d segments, %d samples, period %g, range [%g, %g)\n",
			report.Channel, report.Kind, report.Segments, report.Samples,
			report.NominalPeriod, report.FirstTime, report.LastTime)
		for _, hole := range report.Holes {
			fmt.Printf("  hole [%g, %g) (%g missing periods)\n",
				hole.Start, hole.End, math.Round((hole.End-hole.Start)/report.NominalPeriod))
		}
	}
	return nil
}

func earliestStart(store *segstore.MemStore) float64 {
	earliest := math.Inf(1)
	for _, name := range store.Channels() {
		count, err := store.SegmentCount(name)
		if err != nil || count == 0 {
			continue
		}
		rng, err := store.SegmentRange(name, 0)
		if err != nil {
			continue
		}
		if rng.Start < earliest {
			earliest = rng.Start
		}
	}
	if math.IsInf(earliest, 1) {
		return 0
	}
	return earliest
}

func makeBuffer(kind sdata.NumKind, n int) any {
	switch kind {
	case sdata.KindUint8:
		return make([]uint8, n)
	case sdata.KindInt8:
		return make([]int8, n)
	case sdata.KindUint16:
		return make([]uint16, n)
	case sdata.KindInt16:
		return make([]int16, n)
	case sdata.KindUint32:
		return make([]uint32, n)
	case sdata.KindInt32:
		return make([]int32, n)
	case sdata.KindUint64:
		return make([]uint64, n)
	case sdata.KindInt64:
		return make([]int64, n)
	case sdata.KindFloat32:
		return make([]float32, n)
	case sdata.KindFloat64:
		return make([]float64, n)
	}
	return nil
}

func formatSample(buf any, i int) string {
	switch b := buf.(type) {
	case []uint8:
		return strconv.FormatUint(uint64(b[i]), 10)
	case []int8:
		return strconv.FormatInt(int64(b[i]), 10)
	case []uint16:
		return strconv.FormatUint(uint64(b[i]), 10)
	case []int16:
		return strconv.FormatInt(int64(b[i]), 10)
	case []uint32:
		return strconv.FormatUint(uint64(b[i]), 10)
	case []int32:
		return strconv.FormatInt(int64(b[i]), 10)
	case []uint64:
		return strconv.FormatUint(b[i], 10)
	case []int64:
		return strconv.FormatInt(b[i], 10)
	case []float32:
		return strconv.FormatFloat(float64(b[i]), 'g', -1, 32)
	case []float64:
		return strconv.FormatFloat(b[i], 'g', -1, 64)
	}
	return ""
}
