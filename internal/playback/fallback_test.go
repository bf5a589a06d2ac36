// Copyright (c) 2024-2026 HireVox Labs
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package internal_playback

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirevox/interview-client/pkg/commons"
)

func newTestFallback(t *testing.T, synth *fakeSynth) (*SynthesisFallback, *Signal, chan Event) {
	t.Helper()
	logger, err := commons.NewApplicationLogger()
	require.NoError(t, err)

	speaking := NewSignal()
	events := make(chan Event, 8)
	// A nil *fakeSynth must become a nil interface, not a typed nil.
	if synth == nil {
		return NewSynthesisFallback(logger, nil, speaking, events, 40*time.Millisecond), speaking, events
	}
	return NewSynthesisFallback(logger, synth, speaking, events, 40*time.Millisecond), speaking, events
}

func TestFallback_SpeaksAndEmitsCompletion(t *testing.T) {
	synth := &fakeSynth{}
	fallback, speaking, events := newTestFallback(t, synth)

	fallback.Speak(context.Background(), "next question", false)

	ev := waitEvent(t, events)
	assert.Equal(t, EventIdle, ev.Kind, "non-final utterance completes to playbackIdle")
	assert.Equal(t, []string{"next question"}, synth.spokenTexts())
	assert.False(t, speaking.Speaking(), "speaking drops after completion")
}

func TestFallback_FinalUtteranceEndsInterview(t *testing.T) {
	synth := &fakeSynth{}
	fallback, _, events := newTestFallback(t, synth)

	fallback.Speak(context.Background(), "goodbye", true)

	ev := waitEvent(t, events)
	assert.Equal(t, EventEnded, ev.Kind, "final utterance completion must end the interview")
}

func TestFallback_NoCapabilityStillAdvances(t *testing.T) {
	fallback, speaking, events := newTestFallback(t, nil)

	start := time.Now()
	fallback.Speak(context.Background(), "unvoiced", false)

	ev := waitEvent(t, events)
	assert.Equal(t, EventIdle, ev.Kind, "the loop advances even with no synthesis capability")
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond, "the fixed pause substitutes for speaking time")
	assert.False(t, speaking.Speaking())
}

func TestFallback_InterruptSuppressesCompletion(t *testing.T) {
	fallback, speaking, events := newTestFallback(t, nil)

	fallback.Speak(context.Background(), "interrupted", false)
	time.Sleep(5 * time.Millisecond)
	fallback.Interrupt()

	select {
	case ev := <-events:
		t.Fatalf("interrupted utterance must not emit a completion event, got %v", ev.Kind)
	case <-time.After(150 * time.Millisecond):
	}
	assert.False(t, speaking.Speaking(), "interrupt drops the speaking signal")
}

func TestFallback_InterruptRaceLeavesSpeakingDown(t *testing.T) {
	fallback, speaking, _ := newTestFallback(t, nil)

	// An interrupt landing before the utterance goroutine even runs must
	// still win: the signal may never stick true afterwards.
	for i := 0; i < 200; i++ {
		fallback.Speak(context.Background(), "racing", false)
		fallback.Interrupt()
		require.Eventually(t, func() bool { return !speaking.Speaking() },
			time.Second, time.Millisecond, "speaking signal stuck after interrupt")
	}
}
