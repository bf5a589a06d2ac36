// Copyright (c) 2024-2026 HireVox Labs
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package internal_vad

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Test helpers
// ============================================================================

const frameStep = 20 * time.Millisecond

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func testConfig() Config {
	return Config{
		SpeechThreshold:    15,
		SilenceThreshold:   10,
		InterruptThreshold: 20,
		MinRecording:       500 * time.Millisecond,
		SilenceTimeout:     1200 * time.Millisecond,
		MinSpeechGap:       500 * time.Millisecond,
		NoSpeechTimeout:    10 * time.Second,
	}
}

func newTestDetector() (*Detector, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	d := NewDetector(testConfig(), WithClock(clock.Now))
	d.Begin()
	return d, clock
}

// feed advances the clock one frame step and processes a frame at the given
// loudness, collecting any events.
func feed(d *Detector, clock *fakeClock, level float64, playing bool) []Event {
	clock.Advance(frameStep)
	return d.Process(nil, level, playing)
}

// feedUntil keeps feeding at the given level until the deadline or an event
// of the wanted kind appears.
func feedUntil(t *testing.T, d *Detector, clock *fakeClock, level float64, until time.Duration, want Kind) (Event, bool) {
	t.Helper()
	end := clock.now.Add(until)
	for clock.now.Before(end) {
		for _, ev := range feed(d, clock, level, false) {
			if ev.Kind == want {
				return ev, true
			}
		}
	}
	return Event{}, false
}

// ============================================================================
// Finalization timing
// ============================================================================

func TestDetector_FinalizeAnchorsAtLastSpeech(t *testing.T) {
	d, clock := newTestDetector()
	start := clock.now

	// Candidate speaks for 2.8s.
	var lastSpeech time.Time
	for clock.now.Sub(start) < 2800*time.Millisecond {
		feed(d, clock, 30, false)
		lastSpeech = clock.now
	}
	require.True(t, d.HasSpeech(), "speech frames must set hasSpeech")

	// Then goes quiet. The attempt must finalize one SilenceTimeout after the
	// last speech frame, not one SilenceTimeout after the gap guard arms.
	ev, ok := feedUntil(t, d, clock, 2, 3*time.Second, KindFinalize)
	require.True(t, ok, "sustained silence must finalize the attempt")

	sinceSpeech := ev.At.Sub(lastSpeech)
	assert.GreaterOrEqual(t, sinceSpeech, 1200*time.Millisecond, "finalize must wait the full silence timeout")
	assert.Less(t, sinceSpeech, 1200*time.Millisecond+2*frameStep, "finalize must not drift past the anchored deadline")
}

func TestDetector_SilenceBeforeMinRecordingNeverFinalizes(t *testing.T) {
	d, clock := newTestDetector()

	// One loud frame right away, then silence. Nothing may finalize inside
	// the minimum recording floor.
	feed(d, clock, 30, false)
	start := clock.now
	for clock.now.Sub(start) < 400*time.Millisecond {
		events := feed(d, clock, 2, false)
		assert.Empty(t, events, "no event may fire inside the minimum recording floor")
	}
}

func TestDetector_DropoutShorterThanGapDoesNotArm(t *testing.T) {
	d, clock := newTestDetector()
	start := clock.now

	// Speak past the floor.
	for clock.now.Sub(start) < 600*time.Millisecond {
		feed(d, clock, 30, false)
	}

	// A 300ms dropout (shorter than the 500ms gap guard), then speech again.
	gapStart := clock.now
	for clock.now.Sub(gapStart) < 300*time.Millisecond {
		events := feed(d, clock, 2, false)
		assert.Empty(t, events, "a transient dropout must not start the silence countdown")
	}
	feed(d, clock, 30, false)

	// Real silence now: finalize anchors at the new last speech frame.
	lastSpeech := clock.now
	ev, ok := feedUntil(t, d, clock, 2, 3*time.Second, KindFinalize)
	require.True(t, ok)
	assert.GreaterOrEqual(t, ev.At.Sub(lastSpeech), 1200*time.Millisecond, "countdown must restart from the resumed speech")
}

func TestDetector_AmbientLevelDisarmsCountdown(t *testing.T) {
	d, clock := newTestDetector()
	start := clock.now

	for clock.now.Sub(start) < 600*time.Millisecond {
		feed(d, clock, 30, false)
	}

	// Quiet long enough to arm, then an ambient (between thresholds) frame.
	quietStart := clock.now
	for clock.now.Sub(quietStart) < 800*time.Millisecond {
		feed(d, clock, 2, false)
	}
	require.Empty(t, feed(d, clock, 12, false), "ambient frame must not emit events")

	// Ambient noise holds the attempt open indefinitely.
	for i := 0; i < 200; i++ {
		events := feed(d, clock, 12, false)
		assert.Empty(t, events, "sustained ambient noise must not finalize")
	}
}

// ============================================================================
// Silent attempts
// ============================================================================

func TestDetector_AllSilentAttemptTimesOut(t *testing.T) {
	d, clock := newTestDetector()
	start := clock.now

	ev, ok := feedUntil(t, d, clock, 2, 11*time.Second, KindQuietTimeout)
	require.True(t, ok, "a fully silent attempt must emit the quiet timeout")
	assert.False(t, d.HasSpeech(), "quiet timeout implies no speech was detected")
	assert.GreaterOrEqual(t, ev.At.Sub(start), 10*time.Second, "timeout must wait the configured window")

	// Once done, further frames are inert.
	assert.Empty(t, feed(d, clock, 2, false), "detector must be inert after the attempt resolves")
}

// ============================================================================
// Speech start and barge-in
// ============================================================================

func TestDetector_SpeechStartEmittedOnce(t *testing.T) {
	d, clock := newTestDetector()

	events := feed(d, clock, 30, false)
	require.Len(t, events, 1)
	assert.Equal(t, KindSpeechStart, events[0].Kind)

	assert.Empty(t, feed(d, clock, 30, false), "speech start fires once per attempt")

	d.Begin()
	events = feed(d, clock, 30, false)
	require.Len(t, events, 1, "a new attempt gets its own speech start")
	assert.Equal(t, KindSpeechStart, events[0].Kind)
}

func TestDetector_BargeInRequiresPlayback(t *testing.T) {
	d, clock := newTestDetector()

	events := feed(d, clock, 25, false)
	for _, ev := range events {
		assert.NotEqual(t, KindBargeIn, ev.Kind, "no barge-in while the interviewer is quiet")
	}

	events = feed(d, clock, 25, true)
	var sawBargeIn bool
	for _, ev := range events {
		if ev.Kind == KindBargeIn {
			sawBargeIn = true
		}
	}
	assert.True(t, sawBargeIn, "loud frame during playback must emit barge-in")
}

func TestDetector_BargeInIndependentOfLifecycle(t *testing.T) {
	d, clock := newTestDetector()

	// Resolve the attempt first.
	_, ok := feedUntil(t, d, clock, 2, 11*time.Second, KindQuietTimeout)
	require.True(t, ok)

	// Barge-in still fires even though the attempt is done.
	events := feed(d, clock, 25, true)
	require.Len(t, events, 1, "only barge-in may fire after the attempt resolved")
	assert.Equal(t, KindBargeIn, events[0].Kind)
}

func TestDetector_PlaybackBleedHoldsSilenceMachine(t *testing.T) {
	d, clock := newTestDetector()

	// Eleven seconds of the interviewer's own voice bleeding into the mic at
	// speech-level loudness: no speech, no finalize, no quiet timeout.
	for i := 0; i < 550; i++ {
		events := feed(d, clock, 16, true)
		require.Empty(t, events, "bleed below the interrupt threshold is inert")
	}
	assert.False(t, d.HasSpeech(), "playback bleed is not candidate speech")

	// The quiet timeout counts from the moment playback stops.
	_, ok := feedUntil(t, d, clock, 2, 11*time.Second, KindQuietTimeout)
	require.True(t, ok, "an all-quiet attempt still times out after playback ends")
}

func TestDetector_BargeInCarriesAttemptSpeech(t *testing.T) {
	d, clock := newTestDetector()

	// Quiet playback first, then the candidate talks over it.
	feed(d, clock, 5, true)
	events := feed(d, clock, 25, true)
	require.Len(t, events, 2)
	assert.Equal(t, KindBargeIn, events[0].Kind)
	assert.Equal(t, KindSpeechStart, events[1].Kind, "the interrupting voice opens the attempt's speech")
	assert.True(t, d.HasSpeech())

	// Playback is cut; the same attempt finalizes on trailing silence.
	_, ok := feedUntil(t, d, clock, 2, 5*time.Second, KindFinalize)
	require.True(t, ok, "the carried attempt must finalize normally")
}

func TestDetector_InterruptThresholdBoundary(t *testing.T) {
	d, clock := newTestDetector()

	events := feed(d, clock, 20, true)
	for _, ev := range events {
		assert.NotEqual(t, KindBargeIn, ev.Kind, "level equal to the interrupt threshold must not trigger")
	}

	events = feed(d, clock, 20.5, true)
	var sawBargeIn bool
	for _, ev := range events {
		if ev.Kind == KindBargeIn {
			sawBargeIn = true
		}
	}
	assert.True(t, sawBargeIn, "level above the interrupt threshold must trigger")
}
