// Copyright 2025, ShotReplay Authors.
// SPDX-License-Identifier: Apache-2.0

package segstore

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shotreplay/shotreplay/pkg/sdata"
)

// Dump is the on-disk JSON form of a segmented store, produced by
// exporting a shot from the acquisition archive. Sample values are
// carried as float64 in JSON and converted to the channel kind on load;
// integer kinds are truncated toward zero.
type Dump struct {
	Tree     string        `json:"tree"`
	Shot     int           `json:"shot"`
	Channels []DumpChannel `json:"channels"`
}

type DumpChannel struct {
	Name     string        `json:"name"`
	Kind     string        `json:"kind"`
	Segments []DumpSegment `json:"segments"`
}

type DumpSegment struct {
	Start   float64   `json:"start"`
	Period  float64   `json:"period"`
	Samples []float64 `json:"samples"`
}

// LoadDump reads a JSON dump file into a MemStore.
func LoadDump(path string) (*MemStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dump: %w", err)
	}
	var dump Dump
	if err := json.Unmarshal(data, &dump); err != nil {
		return nil, fmt.Errorf("parsing dump %s: %w", path, err)
	}
	return FromDump(&dump)
}

// FromDump builds a MemStore from an in-memory Dump.
func FromDump(dump *Dump) (*MemStore, error) {
	ms := NewMemStore(dump.Tree, dump.Shot)
	for _, ch := range dump.Channels {
		kind, err := sdata.ParseNumKind(ch.Kind)
		if err != nil {
			return nil, fmt.Errorf("channel %s: %w", ch.Name, err)
		}
		if err := ms.AddChannel(ch.Name, kind); err != nil {
			return nil, err
		}
		for i, seg := range ch.Segments {
			data := convertSamples(kind, seg.Samples)
			if err := ms.AppendSegment(ch.Name, seg.Start, seg.Period, data); err != nil {
				return nil, fmt.Errorf("channel %s segment %d: %w", ch.Name, i, err)
			}
		}
	}
	return ms, nil
}

func convertSamples(kind sdata.NumKind, samples []float64) any {
	switch kind {
	case sdata.KindUint8:
		return convertTo[uint8](samples)
	case sdata.KindInt8:
		return convertTo[int8](samples)
	case sdata.KindUint16:
		return convertTo[uint16](samples)
	case sdata.KindInt16:
		return convertTo[int16](samples)
	case sdata.KindUint32:
		return convertTo[uint32](samples)
	case sdata.KindInt32:
		return convertTo[int32](samples)
	case sdata.KindUint64:
		return convertTo[uint64](samples)
	case sdata.KindInt64:
		return convertTo[int64](samples)
	case sdata.KindFloat32:
		return convertTo[float32](samples)
	case sdata.KindFloat64:
		out := make([]float64, len(samples))
		copy(out, samples)
		return out
	}
	return nil
}

func convertTo[T int8 | uint8 | int16 | uint16 | int32 | uint32 | int64 | uint64 | float32](samples []float64) []T {
	out := make([]T, len(samples))
	for i, v := range samples {
		out[i] = T(v)
	}
	return out
}
