// Copyright (c) 2024-2026 HireVox Labs
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package internal_playback

import (
	"context"
	"sync"

	"github.com/hirevox/interview-client/pkg/commons"

	internal_type "github.com/hirevox/interview-client/internal/type"
)

// Queue plays interviewer audio segments strictly in enqueue order. It owns
// the playback device exclusively: segments are popped one at a time, the
// speaking signal is raised for the whole drain, and Interrupt stops the
// current segment and discards the rest immediately.
//
// A segment that fails to decode or play is recovered in place through the
// synthesis fallback using the segment's text, then the drain continues as if
// the segment had played.
type Queue struct {
	logger   commons.Logger
	player   internal_type.Player
	fallback *SynthesisFallback
	speaking *Signal
	events   chan<- Event

	mu         sync.Mutex
	pending    []internal_type.AudioSegment
	generation int64 // bumped on interrupt; completions from a stale generation are ignored
	playCancel context.CancelFunc

	wake chan struct{}
}

// NewQueue builds a playback queue. events receives completion events shared
// with the synthesis fallback.
func NewQueue(logger commons.Logger, player internal_type.Player, fallback *SynthesisFallback, speaking *Signal, events chan<- Event) *Queue {
	return &Queue{
		logger:   logger,
		player:   player,
		fallback: fallback,
		speaking: speaking,
		events:   events,
		wake:     make(chan struct{}, 1),
	}
}

// Enqueue appends a segment to the tail. If nothing is playing, playback
// starts immediately.
func (q *Queue) Enqueue(segment internal_type.AudioSegment) {
	q.mu.Lock()
	q.pending = append(q.pending, segment)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Interrupt stops the current segment, clears the remaining queue, and drops
// the speaking signal. No completion event is emitted; the caller owns the
// resulting transition.
func (q *Queue) Interrupt() {
	q.mu.Lock()
	q.pending = nil
	q.generation++
	cancel := q.playCancel
	q.playCancel = nil
	q.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	q.speaking.Set(false)
}

// Speaking reports whether a segment is currently playing.
func (q *Queue) Speaking() bool { return q.speaking.Speaking() }

// Depth returns the number of queued (not yet playing) segments.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Run drains the queue until ctx is cancelled. It is the only goroutine that
// touches the player.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.wake:
			q.drain(ctx)
		}
	}
}

func (q *Queue) drain(ctx context.Context) {
	var lastFinal bool
	played := false

	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.mu.Unlock()
			break
		}
		segment := q.pending[0]
		q.pending = q.pending[1:]
		generation := q.generation
		playCtx, cancel := context.WithCancel(ctx)
		q.playCancel = cancel
		// Raise the signal under the lock: an interrupt serializes either
		// fully before (and this pop never happens, pending is cleared) or
		// fully after, so its Set(false) cannot be overwritten.
		q.speaking.Set(true)
		q.mu.Unlock()

		err := q.player.Play(playCtx, segment.Audio)
		if err != nil && playCtx.Err() == nil {
			// PlaybackFailure: never let the queue get stuck. Speak the
			// segment's text locally and proceed as if it were the head.
			q.logger.Warnw("segment playback failed, using local synthesis",
				"error", err, "textLen", len(segment.Text))
			q.fallback.speakBlocking(playCtx, segment.Text)
		}
		cancel()

		q.mu.Lock()
		stale := generation != q.generation
		q.playCancel = nil
		q.mu.Unlock()
		if stale {
			// Interrupted: the interrupting party already dropped the signal
			// (possibly re-raised it for a newer utterance) and owns the
			// transition.
			return
		}
		if ctx.Err() != nil {
			// Shutdown mid-segment: nothing newer can hold the signal.
			q.speaking.Set(false)
			return
		}

		played = true
		lastFinal = segment.IsFinal
	}

	if !played {
		return
	}
	q.speaking.Set(false)
	if lastFinal {
		q.emit(Event{Kind: EventEnded})
	} else {
		q.emit(Event{Kind: EventIdle})
	}
}

// emit pushes a completion event without ever blocking the drain loop.
func (q *Queue) emit(e Event) {
	select {
	case q.events <- e:
	default:
		q.logger.Warnw("playback event channel full, dropping event", "kind", e.Kind)
	}
}
