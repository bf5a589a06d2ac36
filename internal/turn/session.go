// Copyright (c) 2024-2026 HireVox Labs
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package internal_turn

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hirevox/interview-client/pkg/config"

	internal_type "github.com/hirevox/interview-client/internal/type"
)

// Session holds one interview instance's mutable data: the turn log, the
// transcript, and the append-only event record. All writes go through it so
// ordering is consistent: a response's text lands in the transcript before
// its audio is ever enqueued, and event records carry timestamps relative to
// session start.
type Session struct {
	ID  string
	cfg config.TurnConfig

	clock func() time.Time

	mu         sync.Mutex
	startedAt  time.Time
	turnIndex  int
	turns      []internal_type.Turn
	transcript []internal_type.TranscriptEntry
	events     []internal_type.EventRecord

	// dedup state: identical response text inside the window collapses to one.
	lastResponseText string
	lastResponseAt   time.Time

	// latest interim candidate transcript, kept for the stall text fallback.
	interimTranscript string
}

// NewSession creates a session with a fresh id.
func NewSession(cfg config.TurnConfig, clock func() time.Time) *Session {
	if clock == nil {
		clock = time.Now
	}
	s := &Session{
		ID:    uuid.NewString(),
		cfg:   cfg,
		clock: clock,
	}
	s.startedAt = clock()
	return s
}

// TurnIndex returns the current turn ordinal.
func (s *Session) TurnIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turnIndex
}

// RecordEvent appends one audit-log entry timestamped relative to session
// start.
func (s *Session) RecordEvent(eventType string, metadata map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, internal_type.EventRecord{
		Type:      eventType,
		Timestamp: s.clock().Sub(s.startedAt),
		Metadata:  metadata,
	})
}

// IsDuplicate reports whether text repeats the previous response within the
// dedup window. A positive check also refreshes the window so a burst of
// duplicate deliveries collapses to one.
func (s *Session) IsDuplicate(text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	if text != "" && text == s.lastResponseText && now.Sub(s.lastResponseAt) < s.cfg.DedupWindow() {
		s.lastResponseAt = now
		return true
	}
	s.lastResponseText = text
	s.lastResponseAt = now
	return false
}

// ApplyResponse appends the interviewer's utterance to the turn log and the
// transcript. Follow-ups extend the current turn without advancing the index;
// anything else advances it by one, clamped to the configured total. The
// evaluation, when present, attaches to the most recent unevaluated candidate
// entry.
func (s *Session) ApplyResponse(text string, isFollowup bool, evaluation json.RawMessage) internal_type.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	var eval map[string]interface{}
	if len(evaluation) > 0 {
		if err := json.Unmarshal(evaluation, &eval); err != nil {
			eval = nil
		}
	}

	if eval != nil {
		for i := len(s.transcript) - 1; i >= 0; i-- {
			if s.transcript[i].Role == "user" && s.transcript[i].Evaluation == nil {
				s.transcript[i].Evaluation = eval
				break
			}
		}
	}

	if !isFollowup && s.turnIndex < s.cfg.TotalTurns {
		s.turnIndex++
	}

	turn := internal_type.Turn{
		Index:      s.turnIndex,
		Question:   text,
		IsFollowup: isFollowup,
		Evaluation: eval,
	}
	s.turns = append(s.turns, turn)
	s.transcript = append(s.transcript, internal_type.TranscriptEntry{Role: "ai", Text: text})
	return turn
}

// AppendCandidate opens a transcript entry for the candidate's answer. The
// text usually arrives later through recognizer transcript updates.
func (s *Session) AppendCandidate(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append(s.transcript, internal_type.TranscriptEntry{Role: "user", Text: text})
}

// ApplyTranscript applies a recognizer correction to the most recent entry of
// the given role, or appends when none exists. Interim candidate text never
// enters the chat log; it is only stashed for the stall fallback.
func (s *Session) ApplyTranscript(role, text string, final bool) {
	if !final {
		if role == "user" {
			s.mu.Lock()
			s.interimTranscript = text
			s.mu.Unlock()
		}
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if role == "user" {
		s.interimTranscript = ""
	}
	for i := len(s.transcript) - 1; i >= 0; i-- {
		if s.transcript[i].Role == role {
			s.transcript[i].Text = text
			return
		}
	}
	s.transcript = append(s.transcript, internal_type.TranscriptEntry{Role: role, Text: text})
}

// TakeInterimTranscript returns the stashed interim candidate text and clears
// it, so at most one stall fallback fires per attempt.
func (s *Session) TakeInterimTranscript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	text := s.interimTranscript
	s.interimTranscript = ""
	return text
}

// Transcript returns a copy of the chat log.
func (s *Session) Transcript() []internal_type.TranscriptEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]internal_type.TranscriptEntry, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Events returns a copy of the audit log.
func (s *Session) Events() []internal_type.EventRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]internal_type.EventRecord, len(s.events))
	copy(out, s.events)
	return out
}

// Report assembles the artifacts handed to the reporting sink.
func (s *Session) Report(candidateWAV, interviewerWAV []byte) *internal_type.SessionReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	transcript := make([]internal_type.TranscriptEntry, len(s.transcript))
	copy(transcript, s.transcript)
	events := make([]internal_type.EventRecord, len(s.events))
	copy(events, s.events)
	return &internal_type.SessionReport{
		SessionID:      s.ID,
		Transcript:     transcript,
		Events:         events,
		CandidateWAV:   candidateWAV,
		InterviewerWAV: interviewerWAV,
		TotalTurns:     s.cfg.TotalTurns,
		Language:       s.cfg.Language,
		Persona:        s.cfg.Persona,
		Difficulty:     s.cfg.Difficulty,
		Sector:         s.cfg.Sector,
		TargetCompany:  s.cfg.TargetCompany,
	}
}
