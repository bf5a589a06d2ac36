// Copyright (c) 2024-2026 HireVox Labs
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package internal_vad

import (
	"time"
)

// Kind tags a detector event.
type Kind int

const (
	// KindSpeechStart fires once per attempt, on the first speech frame.
	KindSpeechStart Kind = iota
	// KindFinalize fires when continuous post-speech silence exceeds the
	// configured timeout. The attempt contains speech.
	KindFinalize
	// KindQuietTimeout fires when no speech at all was detected within the
	// no-speech window. The attempt should be discarded.
	KindQuietTimeout
	// KindBargeIn fires when the candidate speaks over active playback.
	KindBargeIn
)

// Event is a detector output sample.
type Event struct {
	Kind Kind
	At   time.Time
}

// Config holds the detector thresholds and timings. Levels are on the 0-255
// loudness scale of the energy monitor.
type Config struct {
	SpeechThreshold    float64
	SilenceThreshold   float64
	InterruptThreshold float64

	// MinRecording is the floor before silence may finalize an attempt.
	MinRecording time.Duration
	// SilenceTimeout is the continuous-silence span, measured from the last
	// detected speech, that finalizes an attempt.
	SilenceTimeout time.Duration
	// MinSpeechGap must elapse after the last speech frame before silence
	// counting may arm. Guards against single-frame dropouts mid-sentence.
	MinSpeechGap time.Duration
	// NoSpeechTimeout bounds an attempt in which the candidate never speaks.
	NoSpeechTimeout time.Duration
}

// Detector is the stateful voice-activity detector for one capture attempt.
//
// A fixed-duration silence cutoff either clips fast talkers or makes slow
// talkers wait. Instead, finalization requires all of: speech was detected at
// least once, the minimum recording floor has passed, the dropout gap since
// the last speech frame has passed, and silence has then persisted for the
// full timeout. The timeout is anchored at the last speech frame so the turn
// ends as soon as the candidate has genuinely stopped.
//
// Not safe for concurrent use; the capture loop is its only caller.
type Detector struct {
	cfg        Config
	classifier Classifier
	clock      func() time.Time

	startedAt  time.Time
	hasSpeech  bool
	lastSpeech time.Time
	armed      bool
	deadline   time.Time
	done       bool
}

// Option customises a Detector.
type Option func(*Detector)

// WithClock injects a test clock.
func WithClock(clock func() time.Time) Option {
	return func(d *Detector) { d.clock = clock }
}

// WithClassifier replaces the threshold-based speech judgement (for example
// with the silero model classifier). Barge-in stays energy-based.
func WithClassifier(c Classifier) Option {
	return func(d *Detector) { d.classifier = c }
}

// NewDetector builds a detector. Begin must be called before Process.
func NewDetector(cfg Config, opts ...Option) *Detector {
	d := &Detector{
		cfg:   cfg,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.classifier == nil {
		d.classifier = NewEnergyClassifier(cfg.SpeechThreshold, cfg.SilenceThreshold)
	}
	return d
}

// Begin resets the detector for a new capture attempt.
func (d *Detector) Begin() {
	d.startedAt = d.clock()
	d.hasSpeech = false
	d.lastSpeech = time.Time{}
	d.armed = false
	d.deadline = time.Time{}
	d.done = false
	d.classifier.Reset()
}

// HasSpeech reports whether any speech frame has been seen this attempt.
func (d *Detector) HasSpeech() bool { return d.hasSpeech }

// Process consumes one frame plus its loudness sample and returns the events
// it triggers. While playing (the playback queue's speaking signal is up) the
// frame drives barge-in detection only: the silence machine holds, so the
// interviewer's own voice bleeding into the mic can neither arm a finalize
// nor burn the quiet timeout.
func (d *Detector) Process(frame []byte, level float64, playing bool) []Event {
	now := d.clock()
	var events []Event

	if playing {
		// Barge-in is independent of the attempt lifecycle: any loud frame
		// while the interviewer is speaking preempts playback.
		if level > d.cfg.InterruptThreshold {
			events = append(events, Event{Kind: KindBargeIn, At: now})
			if !d.done {
				// The loud frame is the candidate talking over the
				// interviewer; the running attempt carries it as speech.
				if !d.hasSpeech {
					events = append(events, Event{Kind: KindSpeechStart, At: now})
				}
				d.hasSpeech = true
				d.lastSpeech = now
				d.armed = false
			}
		} else if !d.done && !d.hasSpeech {
			// Slide the attempt anchor so the quiet timeout starts counting
			// once the interviewer stops, not while they talk.
			d.startedAt = now
		}
		return events
	}

	if d.done {
		return events
	}

	switch d.classifier.Judge(frame, level) {
	case JudgeSpeech:
		if !d.hasSpeech {
			events = append(events, Event{Kind: KindSpeechStart, At: now})
		}
		d.hasSpeech = true
		d.lastSpeech = now
		d.armed = false

	case JudgeQuiet:
		if !d.hasSpeech {
			if d.cfg.NoSpeechTimeout > 0 && now.Sub(d.startedAt) >= d.cfg.NoSpeechTimeout {
				d.done = true
				events = append(events, Event{Kind: KindQuietTimeout, At: now})
			}
			break
		}
		if now.Sub(d.startedAt) < d.cfg.MinRecording {
			break
		}
		if now.Sub(d.lastSpeech) < d.cfg.MinSpeechGap {
			break
		}
		if !d.armed {
			d.armed = true
			// Anchor the countdown at the last speech frame so the timeout
			// measures true silence length, but never let an already-elapsed
			// anchor fire before this frame.
			d.deadline = d.lastSpeech.Add(d.cfg.SilenceTimeout)
			if d.deadline.Before(now) {
				d.deadline = now
			}
		}
		if !now.Before(d.deadline) {
			d.done = true
			events = append(events, Event{Kind: KindFinalize, At: now})
		}

	case JudgeAmbient:
		// Between thresholds: neither speech nor countable silence.
		d.armed = false
	}

	return events
}
