// Copyright (c) 2024-2026 HireVox Labs
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package internal_type

import (
	"context"
	"time"
)

// ============================================================================
// Core data model
// ============================================================================

// AudioSegment is one unit of playable interviewer audio. The payload is an
// opaque, self-contained clip (the backend's encoding is never inspected).
// A segment is owned exclusively by the playback queue until it is played or
// discarded.
type AudioSegment struct {
	Audio   []byte
	Text    string // transcript of the clip, used for local synthesis fallback
	IsFinal bool   // the interview ends when this segment finishes playing
}

// FinalizeReason records why a capture attempt ended.
type FinalizeReason string

const (
	FinalizeSilenceTimeout FinalizeReason = "silence-timeout"
	FinalizeManualStop     FinalizeReason = "manual-stop"
	FinalizeBargeInAbort   FinalizeReason = "barge-in-abort"
)

// CaptureAttempt is one microphone recording window. It is owned exclusively
// by the capture session; an attempt without detected speech is discarded,
// never transmitted.
type CaptureAttempt struct {
	ID                string
	StartedAt         time.Time
	Audio             []byte
	Duration          time.Duration
	HasDetectedSpeech bool
	Reason            FinalizeReason
}

// Turn is one question/answer exchange. Follow-up turns extend the current
// exchange and do not advance the turn index.
type Turn struct {
	Index      int
	Question   string
	IsFollowup bool
	Evaluation map[string]interface{}
}

// TranscriptEntry is one chat-log line. Evaluation is attached to candidate
// entries after the backend scores the answer.
type TranscriptEntry struct {
	Role       string                 `json:"role"` // "ai" or "user"
	Text       string                 `json:"text"`
	Evaluation map[string]interface{} `json:"evaluation,omitempty"`
}

// EventRecord is one append-only audit-log entry. Timestamp is relative to
// session start so a report replay is reproducible.
type EventRecord struct {
	Type      string                 `json:"type"`
	Timestamp time.Duration          `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// ViolationKind classifies an environmental-monitoring violation.
type ViolationKind string

const (
	ViolationFaceMissing   ViolationKind = "face_missing"
	ViolationMultipleFaces ViolationKind = "multiple_faces"
	ViolationLookingAway   ViolationKind = "looking_away"
	ViolationTabHidden     ViolationKind = "tab_hidden"
	ViolationWindowBlur    ViolationKind = "window_blur"
)

// ViolationEvent is a throttled monitoring signal, independent of the turn
// cycle.
type ViolationEvent struct {
	Kind      ViolationKind
	Timestamp time.Time
}

// Classification is the opaque result of the external video-frame classifier.
type Classification struct {
	FaceCount      int     `json:"face_count"`
	AttentionScore float64 `json:"attention_score"`
	Emotion        string  `json:"emotion"`
	Posture        string  `json:"posture"`
	LookingAway    bool    `json:"looking_away"`
}

// ============================================================================
// Boundary collaborator interfaces
// ============================================================================

// AudioSource is a live microphone stream delivering fixed-size PCM16 frames.
// The active capture session owns the source exclusively and must Close it on
// every exit path.
type AudioSource interface {
	// ReadFrame blocks until the next frame of PCM16LE audio is available.
	ReadFrame(ctx context.Context) ([]byte, error)
	Close() error
}

// SourceProvider acquires a fresh AudioSource for one capture attempt.
// Acquisition failure surfaces as a DeviceError.
type SourceProvider func(ctx context.Context) (AudioSource, error)

// Player plays one opaque audio clip to completion. It returns once playback
// finishes naturally, or early with ctx.Err() when cancelled, or with a
// decode/playback error.
type Player interface {
	Play(ctx context.Context, clip []byte) error
}

// Synthesizer is the on-device text-to-speech capability used when the
// backend sends no audio. It blocks until speech completes or ctx is
// cancelled.
type Synthesizer interface {
	Speak(ctx context.Context, text string) error
}

// FrameSource captures the current camera frame as an encoded image.
type FrameSource interface {
	CaptureFrame(ctx context.Context) ([]byte, error)
}

// Classifier submits a camera frame to the external presence/attention
// classification service.
type Classifier interface {
	Classify(ctx context.Context, frame []byte) (*Classification, error)
}

// MediaRecorder accumulates the session's audio for the post-session report.
// Candidate audio and interviewer audio are placed on separate tracks sharing
// one timeline anchored at Start.
type MediaRecorder interface {
	Start()
	RecordCandidate(frame []byte)
	RecordInterviewer(clip []byte)
	Persist() (candidateWAV []byte, interviewerWAV []byte, err error)
}

// ReportSink receives the full session artifacts at session end. The
// persisted format is the sink's concern.
type ReportSink interface {
	Submit(ctx context.Context, report *SessionReport) (reportID string, err error)
}

// SessionReport bundles everything handed to the reporting sink.
type SessionReport struct {
	SessionID      string
	Transcript     []TranscriptEntry
	Events         []EventRecord
	CandidateWAV   []byte
	InterviewerWAV []byte
	TotalTurns     int
	Language       string
	Persona        string
	Difficulty     string
	Sector         string
	TargetCompany  string
}
