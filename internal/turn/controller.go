// Copyright (c) 2024-2026 HireVox Labs
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package internal_turn

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/hirevox/interview-client/pkg/commons"
	"github.com/hirevox/interview-client/pkg/config"
	"github.com/hirevox/interview-client/pkg/utils"

	internal_audio "github.com/hirevox/interview-client/internal/audio"
	internal_capture "github.com/hirevox/interview-client/internal/capture"
	internal_channel "github.com/hirevox/interview-client/internal/channel"
	internal_playback "github.com/hirevox/interview-client/internal/playback"
	internal_type "github.com/hirevox/interview-client/internal/type"
)

// State is the controller's conversational phase.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateTransmitting
	StateSpeaking
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateTransmitting:
		return "transmitting"
	case StateSpeaking:
		return "speaking"
	case StateEnded:
		return "ended"
	}
	return "unknown"
}

// Transport is the controller's view of the message channel.
type Transport interface {
	Events() <-chan internal_channel.Inbound
	SendAttempt(attempt *internal_type.CaptureAttempt, turnIndex, totalTurns int, signals map[string]string) error
	SendText(text string, turnIndex int) error
	SendMonitoring(kind string, at time.Time, detail json.RawMessage) error
	Busy() bool
	Close()
}

// Capturer is the controller's view of the capture session.
type Capturer interface {
	Events() <-chan internal_capture.Event
	Begin(ctx context.Context) error
	Stop(reason internal_type.FinalizeReason)
	Close()
}

// Notice is a user-visible message. Only device failures and exhausted
// transport retries ever reach the user; everything else is absorbed with an
// automatic corrective action.
type Notice struct {
	Message     string
	Recoverable bool
}

// Controller is the interview's single logical thread of control. Every
// collaborator (capture, playback, transport, monitoring) emits events into
// it; it alone decides state transitions, so conversational timing stays
// deterministic no matter what the collaborators are doing.
type Controller struct {
	logger   commons.Logger
	cfg      config.TurnConfig
	session  *Session
	capture  Capturer
	queue    *internal_playback.Queue
	fallback *internal_playback.SynthesisFallback
	channel  Transport
	recorder internal_type.MediaRecorder
	sink     internal_type.ReportSink

	playbackEvents <-chan internal_playback.Event

	clock func() time.Time

	notices chan Notice

	// resumeCh delivers the deferred capture reopen after the grace delay.
	resumeCh chan struct{}
	// violationCh delivers monitoring violations into the loop.
	violationCh chan internal_type.ViolationEvent

	endOnce sync.Once
	endCh   chan struct{}
	doneCh  chan struct{}

	mu    sync.Mutex
	state State

	// in-flight attempt being retried on transport stalls
	pending     *internal_type.CaptureAttempt
	sendRetries int
	stallTimer  *time.Timer

	lastActivity time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock injects a deterministic clock.
func WithClock(clock func() time.Time) Option {
	return func(c *Controller) { c.clock = clock }
}

// NewController wires the conversational loop together.
func NewController(
	logger commons.Logger,
	cfg config.TurnConfig,
	session *Session,
	capture Capturer,
	queue *internal_playback.Queue,
	fallback *internal_playback.SynthesisFallback,
	channel Transport,
	recorder internal_type.MediaRecorder,
	sink internal_type.ReportSink,
	playbackEvents <-chan internal_playback.Event,
	opts ...Option,
) *Controller {
	c := &Controller{
		logger:         logger,
		cfg:            cfg,
		session:        session,
		capture:        capture,
		queue:          queue,
		fallback:       fallback,
		channel:        channel,
		recorder:       recorder,
		sink:           sink,
		playbackEvents: playbackEvents,
		clock:          time.Now,
		notices:        make(chan Notice, 8),
		resumeCh:       make(chan struct{}, 1),
		violationCh:    make(chan internal_type.ViolationEvent, 16),
		endCh:          make(chan struct{}),
		doneCh:         make(chan struct{}),
		state:          StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.lastActivity = c.clock()
	return c
}

// Notices delivers user-visible messages.
func (c *Controller) Notices() <-chan Notice { return c.notices }

// State returns the current conversational phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// End requests a manual session end. Safe from any goroutine and any state;
// the loop performs the actual teardown exactly once.
func (c *Controller) End() {
	c.endOnce.Do(func() { close(c.endCh) })
}

// Done closes when the controller has fully torn down.
func (c *Controller) Done() <-chan struct{} { return c.doneCh }

// OnViolation feeds one monitoring violation into the loop. Never blocks the
// monitoring side.
func (c *Controller) OnViolation(v internal_type.ViolationEvent) {
	select {
	case c.violationCh <- v:
	default:
	}
}

// Run drives the state machine until the interview ends or ctx is cancelled.
func (c *Controller) Run(ctx context.Context) {
	defer close(c.doneCh)
	if c.recorder != nil {
		c.recorder.Start()
	}
	c.session.RecordEvent("session-started", map[string]interface{}{
		"sessionId":  c.session.ID,
		"totalTurns": c.cfg.TotalTurns,
	})

	nudge := time.NewTicker(c.cfg.NudgeCheck())
	defer nudge.Stop()

	for {
		select {
		case <-ctx.Done():
			c.finish(context.Background(), "cancelled")
			return

		case <-c.endCh:
			c.finish(ctx, "manual-end")
			return

		case in := <-c.channel.Events():
			if c.handleInbound(ctx, in) {
				c.finish(ctx, "completed")
				return
			}

		case ev := <-c.capture.Events():
			c.handleCapture(ctx, ev)

		case pv := <-c.playbackEvents:
			if c.handlePlayback(ctx, pv) {
				c.finish(ctx, "completed")
				return
			}

		case <-c.resumeCh:
			c.resumeCapture(ctx)

		case v := <-c.violationCh:
			c.handleViolation(v)

		case <-nudge.C:
			c.maybeNudge()
		}
	}
}

// handleInbound processes one backend event; returns true when the interview
// is over.
func (c *Controller) handleInbound(ctx context.Context, in internal_channel.Inbound) bool {
	switch in.Kind {
	case internal_channel.InboundJoined:
		if c.State() != StateIdle {
			// Reconnect mid-session; capture/playback state is unaffected.
			c.session.RecordEvent("session-rejoined", nil)
			return false
		}
		c.session.RecordEvent("session-joined", nil)
		c.beginCapture(ctx)

	case internal_channel.InboundProcessingStarted:
		c.session.RecordEvent("processing-started", nil)

	case internal_channel.InboundProcessingEnded:
		var meta map[string]interface{}
		if in.Expired {
			meta = map[string]interface{}{"expired": true}
		}
		c.session.RecordEvent("processing-ended", meta)

	case internal_channel.InboundResponse:
		return c.handleResponse(ctx, in.Response)

	case internal_channel.InboundTranscript:
		c.session.ApplyTranscript(in.Transcript.Role, in.Transcript.Text, in.Transcript.Final)

	case internal_channel.InboundError:
		c.session.RecordEvent("backend-error", map[string]interface{}{
			"message":     in.Err.Message,
			"recoverable": in.Err.Recoverable,
		})
		if !in.Err.Recoverable {
			c.notify(Notice{Message: in.Err.Message, Recoverable: false})
		}

	case internal_channel.InboundDisconnected:
		c.session.RecordEvent("transport-disconnected", nil)
	}
	return false
}

// handleResponse runs the Transmitting→Speaking transition. Returns true only
// when a duplicate-free final response has no voicing path at all, which
// cannot happen (fallback always voices); the interview ends later on the
// playback-completion event.
func (c *Controller) handleResponse(ctx context.Context, resp *internal_channel.Response) bool {
	if c.session.IsDuplicate(resp.Text) {
		c.logger.Debugw("duplicate response suppressed", "textLen", len(resp.Text))
		return false
	}

	c.clearStall()
	c.touch()

	turn := c.session.ApplyResponse(resp.Text, resp.IsFollowup, resp.Evaluation)
	c.session.RecordEvent("question-received", map[string]interface{}{
		"turnIndex": turn.Index,
		"followup":  resp.IsFollowup,
		"final":     resp.IsFinal,
		"hasAudio":  len(resp.Audio) > 0,
	})

	c.setState(StateSpeaking)

	// Keep the mic open for the whole playback window: a loud candidate frame
	// preempts the interviewer, and the running attempt carries over as the
	// answer window on barge-in. The detector holds its silence machine while
	// the speaking signal is up, so playback bleed never finalizes anything.
	if err := c.capture.Begin(ctx); err != nil && err != internal_type.ErrCaptureActive {
		c.logger.Errorw("capture start failed", "error", err)
	}

	// Text is already in the transcript; now voice it. Absent audio is the
	// normal local-synthesis path, not an error.
	if len(resp.Audio) > 0 {
		if c.recorder != nil {
			if pcm, err := internal_audio.DecodePCM(resp.Audio); err == nil {
				c.recorder.RecordInterviewer(pcm)
			}
		}
		c.queue.Enqueue(internal_type.AudioSegment{
			Audio:   resp.Audio,
			Text:    resp.Text,
			IsFinal: resp.IsFinal,
		})
	} else {
		c.fallback.Speak(ctx, resp.Text, resp.IsFinal)
	}
	return false
}

func (c *Controller) handleCapture(ctx context.Context, ev internal_capture.Event) {
	switch ev.Kind {
	case internal_capture.EventFinalized:
		c.touch()
		c.session.AppendCandidate("")
		c.session.RecordEvent("answer-captured", map[string]interface{}{
			"attemptId": ev.Attempt.ID,
			"duration":  ev.Attempt.Duration.Milliseconds(),
			"reason":    string(ev.Attempt.Reason),
		})
		c.setState(StateTransmitting)
		c.transmit(ev.Attempt)

	case internal_capture.EventDiscarded:
		// Silent attempt; the capture session restarts itself.
		c.session.RecordEvent("attempt-discarded", nil)

	case internal_capture.EventBargeIn:
		if c.State() != StateSpeaking {
			return
		}
		c.touch()
		c.session.RecordEvent("barge-in", nil)
		// Cut the interviewer off and keep the already-running capture
		// attempt as the candidate's answer window.
		c.queue.Interrupt()
		c.fallback.Interrupt()
		c.setState(StateRecording)

	case internal_capture.EventFailed:
		c.session.RecordEvent("device-error", map[string]interface{}{"error": ev.Err.Error()})
		c.notify(Notice{Message: "microphone unavailable: " + ev.Err.Error(), Recoverable: false})
	}
}

// handlePlayback processes a playback completion; returns true when the
// interview ended with the final segment.
func (c *Controller) handlePlayback(ctx context.Context, pv internal_playback.Event) bool {
	switch pv.Kind {
	case internal_playback.EventEnded:
		c.session.RecordEvent("interview-finished", nil)
		return true
	case internal_playback.EventIdle:
		c.touch()
		// Give the candidate a beat before the mic reopens.
		c.scheduleResume(ctx, c.cfg.GraceDelay())
	}
	return false
}

func (c *Controller) scheduleResume(ctx context.Context, delay time.Duration) {
	utils.Go(ctx, func() {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
		select {
		case c.resumeCh <- struct{}{}:
		default:
		}
	})
}

func (c *Controller) resumeCapture(ctx context.Context) {
	if c.State() != StateSpeaking {
		return
	}
	c.beginCapture(ctx)
}

func (c *Controller) beginCapture(ctx context.Context) {
	c.setState(StateRecording)
	if err := c.capture.Begin(ctx); err != nil && err != internal_type.ErrCaptureActive {
		c.logger.Errorw("capture start failed", "error", err)
	}
}

// transmit sends the attempt and arms the stall timer. Retries are bounded;
// exhaustion surfaces a recoverable notice and reopens capture rather than
// ending the session.
func (c *Controller) transmit(attempt *internal_type.CaptureAttempt) {
	c.mu.Lock()
	c.pending = attempt
	c.sendRetries = 0
	c.mu.Unlock()
	c.send(attempt)
}

func (c *Controller) send(attempt *internal_type.CaptureAttempt) {
	err := c.channel.SendAttempt(attempt, c.session.TurnIndex(), c.cfg.TotalTurns, nil)
	if err != nil {
		c.logger.Warnw("attempt send failed", "attemptId", attempt.ID, "error", err)
	}
	c.armStall()
}

func (c *Controller) armStall() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stallTimer != nil {
		c.stallTimer.Stop()
	}
	c.stallTimer = time.AfterFunc(c.cfg.ResponseTimeout(), c.onStall)
}

func (c *Controller) onStall() {
	c.mu.Lock()
	attempt := c.pending
	if attempt == nil || c.state != StateTransmitting {
		c.mu.Unlock()
		return
	}
	c.sendRetries++
	retries := c.sendRetries
	c.mu.Unlock()

	if retries <= c.cfg.MaxSendRetries {
		// When the recognizer already produced interim text for this answer,
		// resend that as a typed response instead of replaying the audio; it
		// gives a stuck transcription path a way forward.
		if interim := c.session.TakeInterimTranscript(); interim != "" {
			c.logger.Warnw("no response from backend, falling back to interim transcript",
				"attemptId", attempt.ID, "retry", retries)
			c.session.RecordEvent("transcript-fallback", map[string]interface{}{"retry": retries})
			if err := c.channel.SendText(interim, c.session.TurnIndex()); err != nil {
				c.logger.Warnw("text fallback send failed", "attemptId", attempt.ID, "error", err)
			}
			c.armStall()
			return
		}
		c.logger.Warnw("no response from backend, retrying",
			"attemptId", attempt.ID, "retry", retries)
		c.session.RecordEvent("transport-retry", map[string]interface{}{"retry": retries})
		c.send(attempt)
		return
	}

	// Retries exhausted: recoverable, never ends the session.
	stall := &internal_type.TransportStall{Retries: retries - 1}
	c.logger.Errorw("backend stalled", "attemptId", attempt.ID, "error", stall)
	c.session.RecordEvent("transport-stall", map[string]interface{}{"retries": retries - 1})
	c.notify(Notice{Message: "the interviewer is taking too long to respond, please answer again", Recoverable: true})

	c.mu.Lock()
	c.pending = nil
	c.mu.Unlock()
	// Reopen capture through the same deferred-resume path playback uses.
	c.setState(StateSpeaking)
	select {
	case c.resumeCh <- struct{}{}:
	default:
	}
}

func (c *Controller) clearStall() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = nil
	c.sendRetries = 0
	if c.stallTimer != nil {
		c.stallTimer.Stop()
		c.stallTimer = nil
	}
}

func (c *Controller) handleViolation(v internal_type.ViolationEvent) {
	c.session.RecordEvent("violation", map[string]interface{}{"kind": string(v.Kind)})
	if err := c.channel.SendMonitoring(string(v.Kind), v.Timestamp, nil); err != nil {
		c.logger.Debugw("monitoring send failed", "kind", v.Kind, "error", err)
	}
}

// maybeNudge records an inactivity prompt when the candidate has been quiet
// too long during their answer window.
func (c *Controller) maybeNudge() {
	if c.State() != StateRecording {
		return
	}
	c.mu.Lock()
	idle := c.clock().Sub(c.lastActivity)
	if idle < c.cfg.IdleNudge() {
		c.mu.Unlock()
		return
	}
	c.lastActivity = c.clock()
	c.mu.Unlock()

	c.session.RecordEvent("inactivity-nudge", map[string]interface{}{
		"idleMs": idle.Milliseconds(),
	})
	if err := c.channel.SendMonitoring("inactivity", c.clock(), nil); err != nil {
		c.logger.Debugw("nudge send failed", "error", err)
	}
}

// finish tears everything down exactly once: capture and playback stop, the
// session media is persisted, and the full report goes to the sink.
func (c *Controller) finish(ctx context.Context, reason string) {
	c.setState(StateEnded)
	c.clearStall()
	c.session.RecordEvent("session-ended", map[string]interface{}{"reason": reason})

	c.capture.Close()
	c.queue.Interrupt()
	c.fallback.Interrupt()
	c.channel.Close()

	var candidateWAV, interviewerWAV []byte
	if c.recorder != nil {
		var err error
		candidateWAV, interviewerWAV, err = c.recorder.Persist()
		if err != nil {
			c.logger.Warnw("session media persist failed", "error", err)
		}
	}

	if c.sink != nil {
		submitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 60*time.Second)
		defer cancel()
		reportID, err := c.sink.Submit(submitCtx, c.session.Report(candidateWAV, interviewerWAV))
		if err != nil {
			c.logger.Errorw("report submission failed", "sessionId", c.session.ID, "error", err)
		} else {
			c.logger.Infow("interview complete", "sessionId", c.session.ID, "reportId", reportID)
		}
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	prev := c.state
	if prev == StateEnded && s != StateEnded {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()
	if prev != s {
		c.logger.Debugf("state %s -> %s", prev, s)
	}
}

func (c *Controller) touch() {
	c.mu.Lock()
	c.lastActivity = c.clock()
	c.mu.Unlock()
}

func (c *Controller) notify(n Notice) {
	select {
	case c.notices <- n:
	default:
	}
}
