// Copyright (c) 2024-2026 HireVox Labs
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package internal_playback

import "sync/atomic"

// EventKind tags a playback completion event.
type EventKind int

const (
	// EventIdle fires when playback drains naturally and the interview
	// continues: the controller should reopen capture.
	EventIdle EventKind = iota
	// EventEnded fires when the segment that just finished carried the final
	// flag: the interview is over.
	EventEnded
)

// Event is pushed to the turn controller when playback or local synthesis
// completes naturally. Interruptions emit nothing; the interrupting party owns
// that transition.
type Event struct {
	Kind EventKind
}

// Signal is the shared "interviewer is speaking" flag. The playback queue and
// the synthesis fallback both drive it; the capture pipeline reads it to gate
// barge-in detection.
type Signal struct {
	v atomic.Bool
}

func NewSignal() *Signal { return &Signal{} }

func (s *Signal) Set(speaking bool) { s.v.Store(speaking) }
func (s *Signal) Speaking() bool    { return s.v.Load() }
