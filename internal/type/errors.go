// Copyright (c) 2024-2026 HireVox Labs
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package internal_type

import (
	"errors"
	"fmt"
)

// ErrCaptureActive is returned when a second capture attempt is opened while
// one is already running. Exclusive mic ownership is an invariant, not a
// recoverable race.
var ErrCaptureActive = errors.New("capture attempt already in progress")

// DeviceError marks microphone/camera acquisition failures. It is fatal to
// starting capture and surfaced to the user once.
type DeviceError struct {
	Device string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Device, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// TransportStall marks a backend round trip that produced no response within
// the timeout, after exhausting the bounded retries. It is recoverable: the
// session continues.
type TransportStall struct {
	Retries int
}

func (e *TransportStall) Error() string {
	return fmt.Sprintf("no response from backend after %d retries", e.Retries)
}

// PlaybackFailure marks an audio segment that failed to decode or play. It is
// recovered locally through the synthesis fallback and never surfaced.
type PlaybackFailure struct {
	Err error
}

func (e *PlaybackFailure) Error() string {
	return fmt.Sprintf("audio segment playback failed: %v", e.Err)
}

func (e *PlaybackFailure) Unwrap() error { return e.Err }
