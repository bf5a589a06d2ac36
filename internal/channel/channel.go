// Copyright (c) 2024-2026 HireVox Labs
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package internal_channel

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hirevox/interview-client/pkg/commons"
	"github.com/hirevox/interview-client/pkg/config"

	internal_type "github.com/hirevox/interview-client/internal/type"
)

// Channel is the single persistent connection to the interview backend. It
// announces the session identity once per established connection, forwards
// finalized capture attempts and monitoring signals outbound, and decodes
// inbound frames into controller events. Reconnection with exponential
// backoff is transparent to the controller.
type Channel struct {
	logger commons.Logger
	cfg    config.ChannelConfig
	join   joinMessage
	dialer *websocket.Dialer

	mu        sync.Mutex
	conn      *websocket.Conn
	announced bool // join sent on the current connection
	closed    bool

	writeMu sync.Mutex

	events chan Inbound

	procMu     sync.Mutex
	processing bool
	procExpiry *time.Timer
}

// NewChannel builds a channel for one interview session.
func NewChannel(logger commons.Logger, cfg config.ChannelConfig, sessionID string, turn config.TurnConfig) *Channel {
	return &Channel{
		logger: logger,
		cfg:    cfg,
		join: joinMessage{
			Type:          typeJoinInterview,
			SessionID:     sessionID,
			TotalTurns:    turn.TotalTurns,
			Language:      turn.Language,
			Persona:       turn.Persona,
			Difficulty:    turn.Difficulty,
			Sector:        turn.Sector,
			TargetCompany: turn.TargetCompany,
		},
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		events: make(chan Inbound, 32),
	}
}

// Events delivers decoded backend events to the controller.
func (c *Channel) Events() <-chan Inbound { return c.events }

// Busy reports whether the backend is still processing the previous attempt.
func (c *Channel) Busy() bool {
	c.procMu.Lock()
	defer c.procMu.Unlock()
	return c.processing
}

// Run maintains the connection until ctx is cancelled or Close is called.
func (c *Channel) Run(ctx context.Context) {
	backoff := c.cfg.ReconnectMin()
	for {
		if ctx.Err() != nil || c.isClosed() {
			return
		}

		conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warnw("backend dial failed, retrying", "url", c.cfg.URL, "backoff", backoff, "error", err)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			backoff *= 2
			if backoff > c.cfg.ReconnectMax() {
				backoff = c.cfg.ReconnectMax()
			}
			continue
		}
		backoff = c.cfg.ReconnectMin()

		c.mu.Lock()
		c.conn = conn
		c.announced = false
		c.mu.Unlock()

		if err := c.announce(); err != nil {
			c.logger.Warnw("session announce failed", "error", err)
			conn.Close()
			continue
		}
		c.emit(Inbound{Kind: InboundJoined})

		c.readLoop(ctx, conn)

		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		closed := c.closed
		c.mu.Unlock()
		conn.Close()

		if closed || ctx.Err() != nil {
			return
		}
		c.emit(Inbound{Kind: InboundDisconnected})
	}
}

// announce sends the join message exactly once for the current connection.
// The guard keeps overlapping reconnect attempts from registering the same
// participant twice.
func (c *Channel) announce() error {
	c.mu.Lock()
	if c.announced {
		c.mu.Unlock()
		return nil
	}
	c.announced = true
	c.mu.Unlock()
	return c.writeJSON(c.join)
}

func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !c.isClosed() {
				c.logger.Warnw("backend connection lost", "error", err)
			}
			return
		}
		c.handleMessage(data)
	}
}

func (c *Channel) handleMessage(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.Warnw("undecodable backend frame", "error", err)
		return
	}

	switch env.Type {
	case typeProcessingStart:
		c.beginProcessing()
		c.emit(Inbound{Kind: InboundProcessingStarted})

	case typeProcessingEnd:
		if c.endProcessing() {
			c.emit(Inbound{Kind: InboundProcessingEnded})
		}

	case typeAIResponse:
		var msg responseMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warnw("undecodable response frame", "error", err)
			return
		}
		// A response implicitly ends any open processing window.
		if c.endProcessing() {
			c.emit(Inbound{Kind: InboundProcessingEnded})
		}
		c.emit(Inbound{Kind: InboundResponse, Response: &Response{
			Text:       msg.Text,
			Audio:      msg.Audio,
			IsFinal:    msg.IsFinal,
			IsFollowup: msg.IsFollowup,
			Evaluation: msg.Evaluation,
		}})

	case typeTranscriptUpdate:
		var msg transcriptMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warnw("undecodable transcript frame", "error", err)
			return
		}
		c.emit(Inbound{Kind: InboundTranscript, Transcript: &TranscriptUpdate{
			Role:  msg.Role,
			Text:  msg.Text,
			Final: msg.Final,
		}})

	case typeError:
		var msg errorMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warnw("undecodable error frame", "error", err)
			return
		}
		c.emit(Inbound{Kind: InboundError, Err: &ErrorNotice{
			Message:     msg.Message,
			Recoverable: msg.Recoverable,
		}})

	default:
		c.logger.Debugw("ignoring backend frame", "type", env.Type)
	}
}

// beginProcessing marks the backend busy and arms the self-clearing expiry:
// if no processing-end arrives within the window, a synthetic ended event is
// emitted so the controller never stays stuck believing the backend is
// working.
func (c *Channel) beginProcessing() {
	c.procMu.Lock()
	defer c.procMu.Unlock()
	c.processing = true
	if c.procExpiry != nil {
		c.procExpiry.Stop()
	}
	c.procExpiry = time.AfterFunc(c.cfg.ProcessingExpiry(), func() {
		c.procMu.Lock()
		expired := c.processing
		c.processing = false
		c.procMu.Unlock()
		if expired {
			c.logger.Debugf("processing indicator expired after %s", c.cfg.ProcessingExpiry())
			c.emit(Inbound{Kind: InboundProcessingEnded, Expired: true})
		}
	})
}

// endProcessing clears the busy state; returns false when it was already
// clear so duplicate ends emit nothing.
func (c *Channel) endProcessing() bool {
	c.procMu.Lock()
	defer c.procMu.Unlock()
	if c.procExpiry != nil {
		c.procExpiry.Stop()
		c.procExpiry = nil
	}
	was := c.processing
	c.processing = false
	return was
}

// SendAttempt transmits one finalized speech-bearing capture attempt.
func (c *Channel) SendAttempt(attempt *internal_type.CaptureAttempt, turnIndex, totalTurns int, signals map[string]string) error {
	return c.writeJSON(attemptMessage{
		Type:       typeAudioResponse,
		SessionID:  c.join.SessionID,
		AttemptID:  attempt.ID,
		Audio:      attempt.Audio,
		TurnIndex:  turnIndex,
		TotalTurns: totalTurns,
		Signals:    signals,
	})
}

// SendText transmits a typed candidate answer.
func (c *Channel) SendText(text string, turnIndex int) error {
	return c.writeJSON(textMessage{
		Type:      typeTextResponse,
		SessionID: c.join.SessionID,
		Text:      text,
		TurnIndex: turnIndex,
	})
}

// SendMonitoring transmits one throttled proctoring signal. Best-effort.
func (c *Channel) SendMonitoring(kind string, at time.Time, detail json.RawMessage) error {
	return c.writeJSON(monitoringMessage{
		Type:      typeMonitoringEvent,
		SessionID: c.join.SessionID,
		Kind:      kind,
		Timestamp: at.UnixMilli(),
		Detail:    detail,
	})
}

func (c *Channel) writeJSON(v any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("backend connection not established")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout()))
	return conn.WriteJSON(v)
}

// Close tears the connection down for good.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	c.endProcessing()
	if conn != nil {
		c.writeMu.Lock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		conn.Close()
	}
}

func (c *Channel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// emit never blocks the read loop.
func (c *Channel) emit(e Inbound) {
	select {
	case c.events <- e:
	default:
		c.logger.Warnw("channel event buffer full, dropping event", "kind", e.Kind)
	}
}
