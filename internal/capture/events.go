// Copyright (c) 2024-2026 HireVox Labs
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package internal_capture

import (
	internal_type "github.com/hirevox/interview-client/internal/type"
)

// EventKind classifies capture session notifications.
type EventKind int

const (
	// EventFinalized carries a speech-bearing attempt ready for transmission.
	EventFinalized EventKind = iota
	// EventDiscarded reports a silent attempt that was dropped; a fresh
	// attempt restarts automatically after a short delay.
	EventDiscarded
	// EventBargeIn reports the candidate speaking over active playback.
	EventBargeIn
	// EventFailed reports a device-level failure opening or reading the
	// microphone.
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventFinalized:
		return "finalized"
	case EventDiscarded:
		return "discarded"
	case EventBargeIn:
		return "barge-in"
	case EventFailed:
		return "failed"
	}
	return "unknown"
}

// Event is a capture session notification.
type Event struct {
	Kind    EventKind
	Attempt *internal_type.CaptureAttempt // set for EventFinalized
	Err     error                         // set for EventFailed
}
