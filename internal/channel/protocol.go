// Copyright (c) 2024-2026 HireVox Labs
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package internal_channel

import (
	"encoding/json"
)

// Wire message types exchanged with the interview backend. Every frame is a
// JSON envelope with a "type" discriminator and the payload fields inline.
const (
	typeJoinInterview   = "join-interview"
	typeAudioResponse   = "audio-response"
	typeTextResponse    = "text-response"
	typeMonitoringEvent = "monitoring-event"

	typeProcessingStart  = "processing-start"
	typeProcessingEnd    = "processing-end"
	typeAIResponse       = "ai-response"
	typeTranscriptUpdate = "transcript-update"
	typeError            = "error"
)

type envelope struct {
	Type string `json:"type"`
}

// joinMessage announces the session identity to the backend. Sent exactly
// once per established connection.
type joinMessage struct {
	Type          string `json:"type"`
	SessionID     string `json:"sessionId"`
	TotalTurns    int    `json:"totalTurns"`
	Language      string `json:"language"`
	Persona       string `json:"persona"`
	Difficulty    string `json:"difficulty"`
	Sector        string `json:"sector,omitempty"`
	TargetCompany string `json:"targetCompany,omitempty"`
}

// attemptMessage carries one finalized capture attempt. Audio is
// base64-encoded by the JSON marshaller.
type attemptMessage struct {
	Type       string            `json:"type"`
	SessionID  string            `json:"sessionId"`
	AttemptID  string            `json:"attemptId"`
	Audio      []byte            `json:"audio"`
	TurnIndex  int               `json:"turnIndex"`
	TotalTurns int               `json:"totalTurns"`
	Signals    map[string]string `json:"contextualSignals,omitempty"`
}

// textMessage carries a typed (non-audio) candidate answer.
type textMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
	TurnIndex int    `json:"turnIndex"`
}

// monitoringMessage carries one throttled proctoring signal.
type monitoringMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Kind      string          `json:"kind"`
	Timestamp int64           `json:"timestamp"`
	Detail    json.RawMessage `json:"detail,omitempty"`
}

// responseMessage is the backend's answer to a capture attempt. Audio may be
// absent; the client then voices Text through local synthesis.
type responseMessage struct {
	Type       string          `json:"type"`
	Text       string          `json:"text"`
	Audio      []byte          `json:"audio,omitempty"`
	IsFinal    bool            `json:"isFinal"`
	IsFollowup bool            `json:"isFollowup"`
	Evaluation json.RawMessage `json:"evaluation,omitempty"`
}

// transcriptMessage is an incremental transcript correction from the
// backend's speech recognizer.
type transcriptMessage struct {
	Type  string `json:"type"`
	Role  string `json:"role"`
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

// errorMessage is a backend-reported failure.
type errorMessage struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
}
