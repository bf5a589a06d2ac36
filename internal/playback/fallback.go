// Copyright (c) 2024-2026 HireVox Labs
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package internal_playback

import (
	"context"
	"sync"
	"time"

	"github.com/hirevox/interview-client/pkg/commons"
	"github.com/hirevox/interview-client/pkg/utils"

	internal_type "github.com/hirevox/interview-client/internal/type"
)

// SynthesisFallback speaks interviewer text through a local synthesizer when
// no audio clip arrived, or when a clip failed to play. It shares the speaking
// signal and the completion event stream with the playback queue so the rest
// of the client cannot tell the two apart.
//
// When the host has no synthesis capability at all (nil synthesizer) each
// utterance degrades to a fixed pause, so the turn cycle keeps moving even on
// a silent machine.
type SynthesisFallback struct {
	logger   commons.Logger
	synth    internal_type.Synthesizer // nil when the host has no local voice
	speaking *Signal
	events   chan<- Event

	// noSynthDelay substitutes for speaking time when synth is nil.
	noSynthDelay time.Duration

	mu         sync.Mutex
	generation int64
	cancel     context.CancelFunc
}

// NewSynthesisFallback builds the fallback. synth may be nil.
func NewSynthesisFallback(logger commons.Logger, synth internal_type.Synthesizer, speaking *Signal, events chan<- Event, noSynthDelay time.Duration) *SynthesisFallback {
	return &SynthesisFallback{
		logger:       logger,
		synth:        synth,
		speaking:     speaking,
		events:       events,
		noSynthDelay: noSynthDelay,
	}
}

// Speak voices text asynchronously. On natural completion it emits the same
// completion event the playback queue would: EventEnded when isFinal,
// EventIdle otherwise. An interrupt before completion suppresses the event.
func (f *SynthesisFallback) Speak(ctx context.Context, text string, isFinal bool) {
	f.mu.Lock()
	f.generation++
	generation := f.generation
	speakCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.mu.Unlock()

	utils.Go(ctx, func() {
		defer cancel()
		// Raise the signal only while this utterance is still current, so an
		// interrupt landing before the goroutine runs cannot be overwritten.
		f.mu.Lock()
		if generation != f.generation {
			f.mu.Unlock()
			return
		}
		f.speaking.Set(true)
		f.mu.Unlock()
		f.voice(speakCtx, text)

		f.mu.Lock()
		stale := generation != f.generation
		f.mu.Unlock()
		if stale {
			// Superseded: the interrupting party or the newer utterance owns
			// the signal now.
			return
		}
		if speakCtx.Err() != nil {
			// Parent shutdown without an interrupt.
			f.speaking.Set(false)
			return
		}

		f.speaking.Set(false)
		kind := EventIdle
		if isFinal {
			kind = EventEnded
		}
		select {
		case f.events <- Event{Kind: kind}:
		default:
			f.logger.Warnw("playback event channel full, dropping fallback event", "kind", kind)
		}
	})
}

// Interrupt cancels an in-flight utterance. The completion event is
// suppressed and the speaking signal is dropped.
func (f *SynthesisFallback) Interrupt() {
	f.mu.Lock()
	f.generation++
	cancel := f.cancel
	f.cancel = nil
	f.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	f.speaking.Set(false)
}

// speakBlocking voices text synchronously on behalf of the playback queue's
// failure path. The queue already holds the speaking signal and emits the
// completion event itself, so this only produces sound.
func (f *SynthesisFallback) speakBlocking(ctx context.Context, text string) {
	f.voice(ctx, text)
}

func (f *SynthesisFallback) voice(ctx context.Context, text string) {
	if f.synth == nil {
		// No local voice on this host: hold the floor briefly so the
		// turn cycle still alternates instead of snapping straight back
		// to capture.
		select {
		case <-time.After(f.noSynthDelay):
		case <-ctx.Done():
		}
		return
	}
	if err := f.synth.Speak(ctx, text); err != nil && ctx.Err() == nil {
		f.logger.Warnw("local synthesis failed", "error", err, "textLen", len(text))
	}
}
