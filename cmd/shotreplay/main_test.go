// Copyright 2025, ShotReplay Authors.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func writeTestDump(t *testing.T) string {
	t.Helper()
	payload := `{
		"tree": "test_tree",
		"shot": 1,
		"channels": [
			{
				"name": "sig",
				"kind": "float64",
				"segments": [
					{"start": 0, "period": 1, "samples": [1, 2, 3]}
				]
			}
		]
	}`
	path := filepath.Join(t.TempDir(), "shot.json")
	if err := os.WriteFile(path, []byte(payload), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestReplayCommandWritesCSV(t *testing.T) {
	dump := writeTestDump(t)
	outPath := filepath.Join(t.TempDir(), "out.csv")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"replay", dump, "--freq", "1", "--elements", "1", "--resample", "raw", "--out", outPath})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("replay: %v", err)
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("reading csv: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("csv has %d records, want header + 3 rows", len(records))
	}
	if records[0][0] != "time" || records[0][1] != "sig" {
		t.Errorf("header = %v, want [time sig]", records[0])
	}
	wantSamples := []string{"1", "2", "3"}
	for i, want := range wantSamples {
		if records[i+1][1] != want {
			t.Errorf("row %d sample = %q, want %q", i, records[i+1][1], want)
		}
	}
}

func TestReplayCommandReportsWriteFailure(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("requires /dev/full")
	}
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("/dev/full not available")
	}
	dump := writeTestDump(t)

	cmd := newRootCmd()
	cmd.SetArgs([]string{"replay", dump, "--freq", "1", "--elements", "1", "--resample", "raw", "--out", "/dev/full"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected a write error when the output device is full")
	}
}
