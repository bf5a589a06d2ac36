// Copyright (c) 2024-2026 HireVox Labs
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package internal_turn

import (
	"context"
	"encoding/binary"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirevox/interview-client/pkg/commons"
	"github.com/hirevox/interview-client/pkg/config"

	internal_audio "github.com/hirevox/interview-client/internal/audio"
	internal_vad "github.com/hirevox/interview-client/internal/audio/vad"
	internal_capture "github.com/hirevox/interview-client/internal/capture"
	internal_channel "github.com/hirevox/interview-client/internal/channel"
	internal_playback "github.com/hirevox/interview-client/internal/playback"
	internal_type "github.com/hirevox/interview-client/internal/type"
)

// ============================================================================
// Live capture wiring helpers
// ============================================================================

// scriptedCaptureSource delivers one frame per pace tick at the scripted
// amplitude, then silence once the script runs out.
type scriptedCaptureSource struct {
	mu     sync.Mutex
	script []int16
	pos    int
}

func (s *scriptedCaptureSource) ReadFrame(ctx context.Context) ([]byte, error) {
	select {
	case <-time.After(2 * time.Millisecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.mu.Lock()
	var amp int16
	if s.pos < len(s.script) {
		amp = s.script[s.pos]
		s.pos++
	}
	s.mu.Unlock()

	frame := make([]byte, 64*2)
	for i := 0; i < 64; i++ {
		binary.LittleEndian.PutUint16(frame[i*2:], uint16(amp))
	}
	return frame, nil
}

func (s *scriptedCaptureSource) Close() error { return nil }

// scriptedMic hands out one scripted source per acquisition.
type scriptedMic struct {
	mu      sync.Mutex
	scripts [][]int16
	opened  int
}

func (m *scriptedMic) provider(ctx context.Context) (internal_type.AudioSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var script []int16
	if m.opened < len(m.scripts) {
		script = m.scripts[m.opened]
	}
	m.opened++
	return &scriptedCaptureSource{script: script}, nil
}

func (m *scriptedMic) openCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened
}

func repeatAmp(amp int16, n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = amp
	}
	return out
}

// slowClipPlayer holds each clip for a long playback window.
type slowClipPlayer struct {
	started     chan struct{}
	interrupted atomic.Bool
}

func (p *slowClipPlayer) Play(ctx context.Context, clip []byte) error {
	select {
	case p.started <- struct{}{}:
	default:
	}
	select {
	case <-ctx.Done():
		p.interrupted.Store(true)
		return ctx.Err()
	case <-time.After(2 * time.Second):
		return nil
	}
}

// ============================================================================
// Barge-in through the real capture/VAD/playback pipeline
// ============================================================================

// Drives the full wiring: real capture session reading a scripted microphone,
// real detector and energy monitor, real playback queue holding the speaking
// signal. The candidate answers, the interviewer starts a long reply, and the
// candidate talks over it; the playback must be cut and the state machine must
// land in Recording while the clip is still inside its playback window.
func TestController_BargeInThroughLiveCapture(t *testing.T) {
	logger, err := commons.NewApplicationLogger()
	require.NoError(t, err)

	turnCfg := config.TurnConfig{
		TotalTurns:        3,
		DedupWindowMS:     2000,
		GraceDelayMS:      10,
		ResponseTimeoutMS: 60000,
		MaxSendRetries:    1,
		NoSynthDelayMS:    10,
		IdleNudgeMS:       60000,
		NudgeCheckMS:      60000,
	}

	// First acquisition: a short burst of speech, then silence. Second
	// acquisition: the candidate talking loudly the whole time.
	mic := &scriptedMic{scripts: [][]int16{
		repeatAmp(10000, 15),
		repeatAmp(10000, 2000),
	}}

	speaking := internal_playback.NewSignal()
	playbackEvents := make(chan internal_playback.Event, 8)
	fallback := internal_playback.NewSynthesisFallback(logger, nil, speaking, playbackEvents, turnCfg.NoSynthDelay())
	player := &slowClipPlayer{started: make(chan struct{}, 1)}
	queue := internal_playback.NewQueue(logger, player, fallback, speaking, playbackEvents)

	energy := internal_audio.NewEnergyMonitor()
	detector := internal_vad.NewDetector(internal_vad.Config{
		SpeechThreshold:    15,
		SilenceThreshold:   10,
		InterruptThreshold: 20,
		MinRecording:       20 * time.Millisecond,
		SilenceTimeout:     40 * time.Millisecond,
		MinSpeechGap:       10 * time.Millisecond,
		NoSpeechTimeout:    5 * time.Second,
	})

	transport := newFakeTransport()
	capture := internal_capture.NewSession(logger, config.CaptureConfig{
		MinAttemptMS:   20,
		RestartDelayMS: 10,
		DeferRetryMS:   10,
	}, mic.provider, energy, detector, speaking, transport.Busy)

	session := NewSession(turnCfg, time.Now)
	controller := NewController(logger, turnCfg, session, capture, queue, fallback,
		transport, &fakeRecorder{}, &fakeSink{}, playbackEvents)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go queue.Run(ctx)
	go controller.Run(ctx)

	transport.events <- internal_channel.Inbound{Kind: internal_channel.InboundJoined}

	// The spoken answer finalizes on trailing silence and is transmitted.
	require.Eventually(t, func() bool { return transport.sentCount() == 1 },
		2*time.Second, 2*time.Millisecond, "the first attempt must finalize and transmit")

	// The interviewer starts a long reply; the mic must reopen with it.
	transport.events <- internal_channel.Inbound{
		Kind:     internal_channel.InboundResponse,
		Response: &internal_channel.Response{Text: "tell me more about that", Audio: []byte("question-clip")},
	}
	select {
	case <-player.started:
	case <-time.After(2 * time.Second):
		t.Fatal("playback never started")
	}
	require.Eventually(t, func() bool { return mic.openCount() >= 2 },
		time.Second, 2*time.Millisecond, "the mic must stay open for the playback window")

	// The candidate talks over the question.
	require.Eventually(t, func() bool { return controller.State() == StateRecording },
		2*time.Second, 2*time.Millisecond, "loud candidate audio must preempt the interviewer")
	assert.True(t, player.interrupted.Load(), "the in-flight clip must be cancelled")
	require.Eventually(t, func() bool { return !speaking.Speaking() },
		time.Second, 2*time.Millisecond, "the speaking signal must drop with the interrupt")
	assert.Contains(t, eventTypes(session), "barge-in")
}
