// Copyright (c) 2024-2026 HireVox Labs
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package internal_channel

import (
	"encoding/json"
)

// InboundKind classifies events delivered to the turn controller.
type InboundKind int

const (
	// InboundJoined confirms the session was announced on a live connection.
	InboundJoined InboundKind = iota
	// InboundProcessingStarted marks the backend working on an attempt.
	InboundProcessingStarted
	// InboundProcessingEnded clears the working state. Expired is set when
	// the matching end never arrived and the state self-cleared.
	InboundProcessingEnded
	// InboundResponse carries the interviewer's next utterance.
	InboundResponse
	// InboundTranscript carries a transcript correction.
	InboundTranscript
	// InboundError carries a backend-reported failure.
	InboundError
	// InboundDisconnected reports a dropped connection; reconnection is
	// already underway and is otherwise transparent to the controller.
	InboundDisconnected
)

func (k InboundKind) String() string {
	switch k {
	case InboundJoined:
		return "joined"
	case InboundProcessingStarted:
		return "processing-started"
	case InboundProcessingEnded:
		return "processing-ended"
	case InboundResponse:
		return "response"
	case InboundTranscript:
		return "transcript"
	case InboundError:
		return "error"
	case InboundDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// Response is the decoded interviewer reply.
type Response struct {
	Text       string
	Audio      []byte // absent audio is normal; synthesize Text locally
	IsFinal    bool
	IsFollowup bool
	Evaluation json.RawMessage
}

// TranscriptUpdate is a recognizer correction for a transcript entry.
type TranscriptUpdate struct {
	Role  string
	Text  string
	Final bool
}

// ErrorNotice is a backend-reported failure.
type ErrorNotice struct {
	Message     string
	Recoverable bool
}

// Inbound is one event from the channel to the controller.
type Inbound struct {
	Kind       InboundKind
	Response   *Response
	Transcript *TranscriptUpdate
	Err        *ErrorNotice
	Expired    bool // InboundProcessingEnded only
}
