// Copyright (c) 2024-2026 HireVox Labs
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package internal_capture

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hirevox/interview-client/pkg/commons"
	"github.com/hirevox/interview-client/pkg/config"
	"github.com/hirevox/interview-client/pkg/utils"

	internal_audio "github.com/hirevox/interview-client/internal/audio"
	internal_vad "github.com/hirevox/interview-client/internal/audio/vad"
	internal_playback "github.com/hirevox/interview-client/internal/playback"
	internal_type "github.com/hirevox/interview-client/internal/type"
)

// Session owns the single active capture attempt. It acquires the microphone,
// drives the energy monitor and voice activity detector over each frame,
// buffers the attempt's audio, and finalizes or discards the attempt. The
// microphone source is released on every exit path.
//
// At most one attempt is open at a time; Begin while an attempt is open
// returns ErrCaptureActive.
type Session struct {
	logger   commons.Logger
	cfg      config.CaptureConfig
	provider internal_type.SourceProvider
	energy   *internal_audio.EnergyMonitor
	detector *internal_vad.Detector
	recorder internal_type.MediaRecorder // optional; candidate track
	speaking *internal_playback.Signal
	// busy reports whether the backend is still processing the previous
	// turn; Begin defers while it returns true.
	busy   func() bool
	events chan Event
	clock  func() time.Time

	mu         sync.Mutex
	active     bool
	closed     bool
	stopReason internal_type.FinalizeReason
	stopped    bool
	cancel     context.CancelFunc
}

// Option configures a Session.
type Option func(*Session)

// WithClock injects a deterministic clock.
func WithClock(clock func() time.Time) Option {
	return func(s *Session) { s.clock = clock }
}

// WithRecorder attaches a media recorder receiving the candidate track.
func WithRecorder(recorder internal_type.MediaRecorder) Option {
	return func(s *Session) { s.recorder = recorder }
}

// NewSession builds a capture session.
func NewSession(
	logger commons.Logger,
	cfg config.CaptureConfig,
	provider internal_type.SourceProvider,
	energy *internal_audio.EnergyMonitor,
	detector *internal_vad.Detector,
	speaking *internal_playback.Signal,
	busy func() bool,
	opts ...Option,
) *Session {
	s := &Session{
		logger:   logger,
		cfg:      cfg,
		provider: provider,
		energy:   energy,
		detector: detector,
		speaking: speaking,
		busy:     busy,
		events:   make(chan Event, 16),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Events delivers capture notifications to the controller.
func (s *Session) Events() <-chan Event { return s.events }

// Level returns the most recent loudness sample.
func (s *Session) Level() float64 { return s.energy.Level() }

// Active reports whether an attempt is currently open.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Begin opens a new capture attempt. While the backend is still processing
// the previous turn, the open is deferred and retried instead of overlapping
// in-flight submissions. Acquisition failure surfaces as a DeviceError.
func (s *Session) Begin(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if s.active {
		s.mu.Unlock()
		return internal_type.ErrCaptureActive
	}
	if s.busy != nil && s.busy() {
		s.mu.Unlock()
		s.logger.Debugf("backend busy, deferring capture start by %s", s.cfg.DeferRetry())
		s.scheduleBegin(ctx, s.cfg.DeferRetry())
		return nil
	}

	source, err := s.provider(ctx)
	if err != nil {
		s.mu.Unlock()
		s.logger.Errorw("microphone acquisition failed", "error", err)
		s.emit(Event{Kind: EventFailed, Err: err})
		return err
	}

	attemptCtx, cancel := context.WithCancel(ctx)
	s.active = true
	s.stopped = false
	s.cancel = cancel
	s.mu.Unlock()

	utils.Go(ctx, func() {
		s.run(ctx, attemptCtx, source)
	})
	return nil
}

// Stop finalizes the open attempt with the given reason. A speech-bearing
// attempt of sufficient length is emitted for transmission; a silent or
// too-short one is discarded and, except for barge-in aborts, capture
// restarts automatically.
func (s *Session) Stop(reason internal_type.FinalizeReason) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.stopReason = reason
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Close tears the session down for good: the open attempt (if any) is
// abandoned without emitting events and no restart is scheduled.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Session) scheduleBegin(ctx context.Context, delay time.Duration) {
	utils.Go(ctx, func() {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
		if err := s.Begin(ctx); err != nil && err != internal_type.ErrCaptureActive {
			s.logger.Warnw("deferred capture start failed", "error", err)
		}
	})
}

// run is the per-attempt frame loop. It owns the source and releases it on
// every exit path.
func (s *Session) run(parent, attemptCtx context.Context, source internal_type.AudioSource) {
	defer source.Close()

	attempt := &internal_type.CaptureAttempt{
		ID:        uuid.NewString(),
		StartedAt: s.clock(),
	}
	s.detector.Begin()
	s.logger.Debugw("capture attempt opened", "attemptId", attempt.ID)

	for {
		frame, err := source.ReadFrame(attemptCtx)
		if err != nil {
			if attemptCtx.Err() != nil {
				s.finishStopped(parent, attempt)
				return
			}
			s.deactivate()
			s.logger.Errorw("microphone read failed", "attemptId", attempt.ID, "error", err)
			s.emit(Event{Kind: EventFailed, Err: err})
			return
		}

		level := s.energy.Sample(frame)
		attempt.Audio = append(attempt.Audio, frame...)
		if s.recorder != nil {
			s.recorder.RecordCandidate(frame)
		}

		for _, ev := range s.detector.Process(frame, level, s.speaking.Speaking()) {
			switch ev.Kind {
			case internal_vad.KindBargeIn:
				s.emit(Event{Kind: EventBargeIn})
			case internal_vad.KindFinalize:
				s.seal(attempt, internal_type.FinalizeSilenceTimeout)
				s.deactivate()
				s.emit(Event{Kind: EventFinalized, Attempt: attempt})
				return
			case internal_vad.KindQuietTimeout:
				s.deactivate()
				s.logger.Debugw("no speech in attempt, discarding", "attemptId", attempt.ID)
				s.emit(Event{Kind: EventDiscarded})
				s.scheduleBegin(parent, s.cfg.RestartDelay())
				return
			}
		}
	}
}

// finishStopped resolves an attempt whose context was cancelled, either by
// Stop or by session teardown.
func (s *Session) finishStopped(parent context.Context, attempt *internal_type.CaptureAttempt) {
	s.mu.Lock()
	closed := s.closed
	stopped := s.stopped
	reason := s.stopReason
	s.active = false
	s.cancel = nil
	s.mu.Unlock()

	if closed || !stopped {
		return
	}

	elapsed := s.clock().Sub(attempt.StartedAt)
	if s.detector.HasSpeech() && elapsed >= s.cfg.MinAttempt() {
		s.seal(attempt, reason)
		s.emit(Event{Kind: EventFinalized, Attempt: attempt})
		return
	}

	s.logger.Debugw("stopped attempt discarded",
		"attemptId", attempt.ID, "reason", reason, "elapsed", elapsed)
	s.emit(Event{Kind: EventDiscarded})
	if reason != internal_type.FinalizeBargeInAbort {
		s.scheduleBegin(parent, s.cfg.RestartDelay())
	}
}

func (s *Session) seal(attempt *internal_type.CaptureAttempt, reason internal_type.FinalizeReason) {
	attempt.Duration = s.clock().Sub(attempt.StartedAt)
	attempt.HasDetectedSpeech = s.detector.HasSpeech()
	attempt.Reason = reason
}

func (s *Session) deactivate() {
	s.mu.Lock()
	s.active = false
	s.cancel = nil
	s.mu.Unlock()
}

// emit never blocks the frame loop.
func (s *Session) emit(e Event) {
	select {
	case s.events <- e:
	default:
		s.logger.Warnw("capture event channel full, dropping event", "kind", e.Kind)
	}
}
