// Copyright (c) 2024-2026 HireVox Labs
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package internal_recorder

import (
	"fmt"
	"sync"
	"time"

	"github.com/hirevox/interview-client/pkg/commons"

	internal_audio "github.com/hirevox/interview-client/internal/audio"
	internal_type "github.com/hirevox/interview-client/internal/type"
)

const (
	trackCandidate   = 0
	trackInterviewer = 1
)

// chunk is a recorded audio fragment placed at a specific position on the
// session timeline. ByteOffset is the byte position relative to Start().
type chunk struct {
	ByteOffset int
	Data       []byte
	Track      int
}

// mediaRecorder keeps the whole interview as two parallel PCM tracks sharing
// one timeline: the candidate's microphone and the interviewer's voice. Gaps
// between utterances render as silence so the two WAVs line up when played
// side by side.
type mediaRecorder struct {
	logger    commons.Logger
	mu        sync.Mutex
	startTime time.Time
	started   bool
	chunks    []chunk
	// Per-track cursor: the byte position just past the last written byte on
	// each track. Candidate audio uses wall-clock placement since the mic
	// delivers at real-time rate. Interviewer audio often arrives in bursts
	// faster than real time, so only the first chunk after a gap anchors at
	// wall-clock; the rest pace from the cursor.
	cursor [2]int
	// clock is injectable for testing; defaults to time.Now.
	clock func() time.Time
}

func NewMediaRecorder(logger commons.Logger) internal_type.MediaRecorder {
	return &mediaRecorder{
		logger: logger,
		clock:  time.Now,
	}
}

// Start begins the recording session. Both tracks share this start time.
func (r *mediaRecorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startTime = r.clock()
	r.started = true
}

func bytesPerSecond() int {
	return internal_audio.InternalSampleRate * internal_audio.InternalChannels * internal_audio.BytesPerSample
}

// durationBytes converts a wall-clock duration to a frame-aligned byte count.
func durationBytes(d time.Duration) int {
	raw := int(d.Seconds() * float64(bytesPerSecond()))
	frameSize := internal_audio.BytesPerSample * internal_audio.InternalChannels
	return (raw / frameSize) * frameSize
}

// RecordCandidate places microphone audio on the candidate track at the
// current wall-clock position.
func (r *mediaRecorder) RecordCandidate(audio []byte) {
	r.push(audio, trackCandidate)
}

// RecordInterviewer places interviewer voice audio on the interviewer track.
func (r *mediaRecorder) RecordInterviewer(audio []byte) {
	r.push(audio, trackInterviewer)
}

func (r *mediaRecorder) push(data []byte, track int) {
	if len(data) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	wallOffset := 0
	if r.started {
		wallOffset = durationBytes(r.clock().Sub(r.startTime))
	}

	var offset int
	switch track {
	case trackCandidate:
		offset = wallOffset
		if r.cursor[track] > offset {
			offset = r.cursor[track]
		}
	case trackInterviewer:
		if r.cursor[track] > wallOffset {
			// Burst continuation: pace from cursor so back-to-back clips stay
			// continuous at the playback rate.
			offset = r.cursor[track]
		} else {
			// New utterance after a gap: anchor at wall-clock.
			offset = wallOffset
		}
	}

	// Copy to avoid caller mutations.
	buf := make([]byte, len(data))
	copy(buf, data)

	r.chunks = append(r.chunks, chunk{
		ByteOffset: offset,
		Data:       buf,
		Track:      track,
	})
	r.cursor[track] = offset + len(buf)
}

// Persist renders two WAV files spanning the full session duration. Chunks
// land at their recorded timeline positions; everything else is silence.
func (r *mediaRecorder) Persist() ([]byte, []byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.chunks) == 0 {
		return nil, nil, fmt.Errorf("no audio chunks to persist")
	}

	sessionBytes := 0
	if r.started {
		sessionBytes = durationBytes(r.clock().Sub(r.startTime))
	}

	totalLen := sessionBytes
	for _, c := range r.chunks {
		end := c.ByteOffset + len(c.Data)
		if end > totalLen {
			totalLen = end
		}
	}

	candidatePCM := make([]byte, totalLen)
	interviewerPCM := make([]byte, totalLen)

	candidateBytes := 0
	interviewerBytes := 0
	for _, c := range r.chunks {
		var dst []byte
		if c.Track == trackCandidate {
			dst = candidatePCM
			candidateBytes += len(c.Data)
		} else {
			dst = interviewerPCM
			interviewerBytes += len(c.Data)
		}
		copy(dst[c.ByteOffset:], c.Data)
	}

	r.logger.Info(fmt.Sprintf(
		"Media persist: candidate=%d (%.2fs), interviewer=%d (%.2fs), totalLen=%d (%.2fs), chunks=%d",
		candidateBytes, float64(candidateBytes)/float64(bytesPerSecond()),
		interviewerBytes, float64(interviewerBytes)/float64(bytesPerSecond()),
		totalLen, float64(totalLen)/float64(bytesPerSecond()),
		len(r.chunks),
	))

	return internal_audio.EncodeWAV(candidatePCM), internal_audio.EncodeWAV(interviewerPCM), nil
}
