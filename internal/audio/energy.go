// Copyright (c) 2024-2026 HireVox Labs
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package internal_audio

import (
	"encoding/binary"
	"math"
	"sync/atomic"
)

const (
	// InternalSampleRate is the client-side capture format: PCM16LE mono 16kHz.
	InternalSampleRate = 16000
	InternalChannels   = 1
	BytesPerSample     = 2

	// levelScale maps mean int16 amplitude onto the 0-255 range the silence
	// detector thresholds are tuned against.
	levelScale = 128.0
)

// EnergyMonitor turns a live PCM frame stream into a continuous loudness
// signal. It keeps no history beyond the current sample; the latest level is
// observable concurrently for UI meters and for the silence detector.
type EnergyMonitor struct {
	level atomic.Uint64 // float64 bits
}

func NewEnergyMonitor() *EnergyMonitor {
	return &EnergyMonitor{}
}

// Sample computes the loudness of one PCM16LE frame, stores it as the current
// level, and returns it. Loudness is the mean absolute amplitude scaled to
// 0-255.
func (m *EnergyMonitor) Sample(frame []byte) float64 {
	n := len(frame) / BytesPerSample
	if n == 0 {
		m.store(0)
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(frame[i*BytesPerSample:]))
		sum += math.Abs(float64(s))
	}
	level := sum / float64(n) / levelScale
	m.store(level)
	return level
}

// Level returns the most recent loudness sample.
func (m *EnergyMonitor) Level() float64 {
	return math.Float64frombits(m.level.Load())
}

func (m *EnergyMonitor) store(v float64) {
	m.level.Store(math.Float64bits(v))
}

// FrameDurationMS returns the wall-clock length of a PCM16LE frame in
// milliseconds.
func FrameDurationMS(frameBytes int) float64 {
	samples := float64(frameBytes) / BytesPerSample
	return samples / InternalSampleRate * 1000
}
