// Copyright (c) 2024-2026 HireVox Labs
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package internal_monitor

import (
	"context"
	"sync"
	"time"

	"github.com/hirevox/interview-client/pkg/commons"
	"github.com/hirevox/interview-client/pkg/config"

	internal_type "github.com/hirevox/interview-client/internal/type"
)

// Loop samples the camera on a fixed cadence, classifies each frame through
// the external service, and emits rate-limited violation events. It runs
// fully independently of the turn cycle: it only ever emits into the
// controller, classification failures are swallowed, and nothing here blocks
// the interview.
//
// Externally observed visibility violations (tab hidden, window blur) are
// injected through ReportVisibility and go through the same throttle.
type Loop struct {
	logger     commons.Logger
	cfg        config.MonitorConfig
	frames     internal_type.FrameSource // nil when no camera is attached
	classifier internal_type.Classifier
	notify     func(internal_type.ViolationEvent)
	clock      func() time.Time

	mu       sync.Mutex
	lastEmit map[internal_type.ViolationKind]time.Time
}

// Option configures a Loop.
type Option func(*Loop)

// WithClock injects a deterministic clock.
func WithClock(clock func() time.Time) Option {
	return func(l *Loop) { l.clock = clock }
}

// NewLoop builds a monitoring loop. notify receives each throttled violation.
func NewLoop(
	logger commons.Logger,
	cfg config.MonitorConfig,
	frames internal_type.FrameSource,
	classifier internal_type.Classifier,
	notify func(internal_type.ViolationEvent),
	opts ...Option,
) *Loop {
	l := &Loop{
		logger:     logger,
		cfg:        cfg,
		frames:     frames,
		classifier: classifier,
		notify:     notify,
		clock:      time.Now,
		lastEmit:   make(map[internal_type.ViolationKind]time.Time),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run ticks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	if l.frames == nil || l.classifier == nil {
		l.logger.Debugf("no camera attached, presence monitoring disabled")
		return
	}

	ticker := time.NewTicker(l.cfg.Interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	frame, err := l.frames.CaptureFrame(ctx)
	if err != nil {
		// Best-effort monitoring: a missed frame never affects the interview.
		l.logger.Debugw("frame capture failed", "error", err)
		return
	}

	classification, err := l.classifier.Classify(ctx, frame)
	if err != nil {
		l.logger.Debugw("frame classification failed", "error", err)
		return
	}

	switch {
	case classification.FaceCount == 0:
		l.report(internal_type.ViolationFaceMissing)
	case classification.FaceCount > 1:
		l.report(internal_type.ViolationMultipleFaces)
	case classification.LookingAway:
		l.report(internal_type.ViolationLookingAway)
	}
}

// ReportVisibility injects an externally observed visibility violation.
func (l *Loop) ReportVisibility(kind internal_type.ViolationKind) {
	l.report(kind)
}

// report emits the violation unless the same kind fired within the configured
// gap.
func (l *Loop) report(kind internal_type.ViolationKind) {
	now := l.clock()

	l.mu.Lock()
	if last, ok := l.lastEmit[kind]; ok && now.Sub(last) < l.cfg.ViolationGap() {
		l.mu.Unlock()
		return
	}
	l.lastEmit[kind] = now
	l.mu.Unlock()

	l.logger.Infow("monitoring violation", "kind", kind)
	if l.notify != nil {
		l.notify(internal_type.ViolationEvent{Kind: kind, Timestamp: now})
	}
}
