// Copyright (c) 2024-2026 HireVox Labs
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Defaults
// ============================================================================

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "interview-client", cfg.Name)
	assert.Equal(t, "info", cfg.LogLevel)

	// The detector thresholds sit on the 0-255 mean-amplitude scale.
	assert.Equal(t, "energy", cfg.VAD.Engine)
	assert.Equal(t, 15.0, cfg.VAD.SpeechThreshold)
	assert.Equal(t, 10.0, cfg.VAD.SilenceThreshold)
	assert.Equal(t, 20.0, cfg.VAD.InterruptThreshold)
	assert.True(t, cfg.VAD.SilenceThreshold < cfg.VAD.SpeechThreshold,
		"hysteresis requires the silence threshold below the speech threshold")

	assert.Equal(t, 16000, cfg.Capture.SampleRate)
	assert.Equal(t, 320, cfg.Capture.FrameSamples, "20 ms frames at 16 kHz")

	assert.Equal(t, 10, cfg.Turn.TotalTurns)
	assert.Equal(t, 2, cfg.Turn.MaxSendRetries)

	assert.Equal(t, "ws://localhost:5001/interview", cfg.Channel.URL)
	assert.Empty(t, cfg.Monitor.SnapshotDir, "presence monitoring is opt-in")
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	t.Setenv("TURN__TOTAL_TURNS", "3")
	t.Setenv("VAD__ENGINE", "silero")
	t.Setenv("CHANNEL__URL", "wss://interviews.hirevox.dev/interview")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Turn.TotalTurns)
	assert.Equal(t, "silero", cfg.VAD.Engine)
	assert.Equal(t, "wss://interviews.hirevox.dev/interview", cfg.Channel.URL)
	assert.Equal(t, 10.0, cfg.VAD.SilenceThreshold, "untouched keys keep their defaults")
}

// ============================================================================
// Duration helpers
// ============================================================================

func TestDurationHelpers(t *testing.T) {
	vad := VADConfig{MinRecordingMS: 500, SilenceTimeoutMS: 1200, NoSpeechTimeoutMS: 10000}
	assert.Equal(t, 500*time.Millisecond, vad.MinRecording())
	assert.Equal(t, 1200*time.Millisecond, vad.SilenceTimeout())
	assert.Equal(t, 10*time.Second, vad.NoSpeechTimeout())

	turn := TurnConfig{DedupWindowMS: 2000, GraceDelayMS: 1000}
	assert.Equal(t, 2*time.Second, turn.DedupWindow())
	assert.Equal(t, time.Second, turn.GraceDelay())

	channel := ChannelConfig{ProcessingExpiryMS: 2000, ReconnectMinMS: 250}
	assert.Equal(t, 2*time.Second, channel.ProcessingExpiry())
	assert.Equal(t, 250*time.Millisecond, channel.ReconnectMin())
}
