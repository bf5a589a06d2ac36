// Copyright (c) 2024-2026 HireVox Labs
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package internal_playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirevox/interview-client/pkg/commons"

	internal_type "github.com/hirevox/interview-client/internal/type"
)

// ============================================================================
// Test helpers
// ============================================================================

// fakePlayer records play order and supports per-clip blocking and failure.
type fakePlayer struct {
	mu      sync.Mutex
	played  []string
	failOn  map[string]error
	speed   time.Duration // simulated clip duration
	started chan string
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{
		failOn:  make(map[string]error),
		speed:   10 * time.Millisecond,
		started: make(chan string, 16),
	}
}

func (p *fakePlayer) Play(ctx context.Context, clip []byte) error {
	name := string(clip)
	p.started <- name

	p.mu.Lock()
	err := p.failOn[name]
	p.mu.Unlock()
	if err != nil {
		return err
	}

	select {
	case <-time.After(p.speed):
	case <-ctx.Done():
		return ctx.Err()
	}

	p.mu.Lock()
	p.played = append(p.played, name)
	p.mu.Unlock()
	return nil
}

func (p *fakePlayer) playedClips() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.played))
	copy(out, p.played)
	return out
}

type fakeSynth struct {
	mu     sync.Mutex
	spoken []string
}

func (s *fakeSynth) Speak(ctx context.Context, text string) error {
	s.mu.Lock()
	s.spoken = append(s.spoken, text)
	s.mu.Unlock()
	return nil
}

func (s *fakeSynth) spokenTexts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.spoken))
	copy(out, s.spoken)
	return out
}

func newTestQueue(t *testing.T, player internal_type.Player, synth internal_type.Synthesizer) (*Queue, *SynthesisFallback, *Signal, chan Event, context.CancelFunc) {
	t.Helper()
	logger, err := commons.NewApplicationLogger()
	require.NoError(t, err)

	speaking := NewSignal()
	events := make(chan Event, 8)
	fallback := NewSynthesisFallback(logger, synth, speaking, events, 30*time.Millisecond)
	queue := NewQueue(logger, player, fallback, speaking, events)

	ctx, cancel := context.WithCancel(context.Background())
	go queue.Run(ctx)
	return queue, fallback, speaking, events, cancel
}

func waitEvent(t *testing.T, events chan Event) Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for playback event")
		return Event{}
	}
}

func segment(name string, isFinal bool) internal_type.AudioSegment {
	return internal_type.AudioSegment{Audio: []byte(name), Text: "text-" + name, IsFinal: isFinal}
}

// ============================================================================
// FIFO order and completion events
// ============================================================================

func TestQueue_PlaysInFIFOOrder(t *testing.T) {
	player := newFakePlayer()
	queue, _, speaking, events, cancel := newTestQueue(t, player, nil)
	defer cancel()

	queue.Enqueue(segment("a", false))
	queue.Enqueue(segment("b", false))
	queue.Enqueue(segment("c", false))

	ev := waitEvent(t, events)
	assert.Equal(t, EventIdle, ev.Kind, "a non-final drain ends with playbackIdle")
	assert.Equal(t, []string{"a", "b", "c"}, player.playedClips(), "segments must play in enqueue order")
	assert.False(t, speaking.Speaking(), "speaking drops after the drain")
}

func TestQueue_FinalSegmentEndsInterview(t *testing.T) {
	player := newFakePlayer()
	queue, _, _, events, cancel := newTestQueue(t, player, nil)
	defer cancel()

	queue.Enqueue(segment("closing", true))

	ev := waitEvent(t, events)
	assert.Equal(t, EventEnded, ev.Kind, "final segment completion must end the interview")
}

func TestQueue_SpeakingSignalDuringPlayback(t *testing.T) {
	player := newFakePlayer()
	player.speed = 200 * time.Millisecond
	queue, _, speaking, events, cancel := newTestQueue(t, player, nil)
	defer cancel()

	queue.Enqueue(segment("slow", false))
	<-player.started
	assert.True(t, speaking.Speaking(), "speaking must be raised while a clip plays")

	waitEvent(t, events)
	assert.False(t, speaking.Speaking(), "speaking must drop on completion")
}

// ============================================================================
// Interruption
// ============================================================================

func TestQueue_InterruptDiscardsQueueSilently(t *testing.T) {
	player := newFakePlayer()
	player.speed = time.Second
	queue, _, speaking, events, cancel := newTestQueue(t, player, nil)
	defer cancel()

	queue.Enqueue(segment("a", false))
	queue.Enqueue(segment("b", true))
	<-player.started

	queue.Interrupt()

	assert.False(t, speaking.Speaking(), "interrupt drops the speaking signal immediately")
	assert.Zero(t, queue.Depth(), "interrupt clears the pending queue")

	select {
	case ev := <-events:
		t.Fatalf("interrupt must not emit a completion event, got %v", ev.Kind)
	case <-time.After(150 * time.Millisecond):
	}
	assert.Empty(t, player.playedClips(), "nothing completed naturally")
}

// blockingPlayer holds every clip until its context is cancelled.
type blockingPlayer struct{}

func (blockingPlayer) Play(ctx context.Context, clip []byte) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestQueue_InterruptRaceLeavesSpeakingDown(t *testing.T) {
	queue, _, speaking, _, cancel := newTestQueue(t, blockingPlayer{}, nil)
	defer cancel()

	// Interrupt racing the drain's segment pickup must settle with the signal
	// down regardless of which side wins the pop.
	for i := 0; i < 200; i++ {
		queue.Enqueue(segment("clip", false))
		queue.Interrupt()
		require.Eventually(t, func() bool {
			return !speaking.Speaking() && queue.Depth() == 0
		}, time.Second, time.Millisecond, "speaking signal stuck after interrupt")
	}
}

func TestQueue_ShutdownMidSegmentDropsSpeaking(t *testing.T) {
	player := newFakePlayer()
	player.speed = time.Minute
	queue, _, speaking, _, cancel := newTestQueue(t, player, nil)

	queue.Enqueue(segment("long goodbye", false))
	<-player.started
	require.Eventually(t, func() bool { return speaking.Speaking() },
		time.Second, time.Millisecond)

	cancel()
	require.Eventually(t, func() bool { return !speaking.Speaking() },
		time.Second, time.Millisecond, "shutdown must release the speaking signal")
}

// ============================================================================
// Playback failure falls back to local synthesis
// ============================================================================

func TestQueue_FailedSegmentRecoveredBySynthesis(t *testing.T) {
	player := newFakePlayer()
	player.failOn["bad"] = errors.New("decode failed")
	synth := &fakeSynth{}
	queue, _, _, events, cancel := newTestQueue(t, player, synth)
	defer cancel()

	queue.Enqueue(segment("bad", false))
	queue.Enqueue(segment("good", false))

	ev := waitEvent(t, events)
	assert.Equal(t, EventIdle, ev.Kind)
	assert.Equal(t, []string{"text-bad"}, synth.spokenTexts(), "failed clip must be voiced from its text")
	assert.Equal(t, []string{"good"}, player.playedClips(), "drain continues past the failed segment")
}

func TestQueue_FailedFinalSegmentStillEnds(t *testing.T) {
	player := newFakePlayer()
	player.failOn["closing"] = errors.New("playback rejected")
	queue, _, _, events, cancel := newTestQueue(t, player, nil)
	defer cancel()

	// No synthesizer either: the fixed-delay substitute still advances.
	queue.Enqueue(segment("closing", true))

	ev := waitEvent(t, events)
	assert.Equal(t, EventEnded, ev.Kind, "the loop must never stall on a failed final segment")
}
