// Copyright (c) 2024-2026 HireVox Labs
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package internal_mic

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/hirevox/interview-client/pkg/commons"

	internal_audio "github.com/hirevox/interview-client/internal/audio"
	internal_type "github.com/hirevox/interview-client/internal/type"
)

var (
	initOnce sync.Once
	initErr  error
)

// ensureInit initializes the host audio backend exactly once per process.
func ensureInit() error {
	initOnce.Do(func() {
		initErr = portaudio.Initialize()
	})
	return initErr
}

// source reads LINEAR16 frames from the default input device.
type source struct {
	logger  commons.Logger
	stream  *portaudio.Stream
	samples []int16

	mu     sync.Mutex
	closed bool
}

// NewSource opens the default microphone at the internal audio format and
// starts streaming. Callers own the source exclusively until Close.
func NewSource(logger commons.Logger, frameSamples int) (internal_type.AudioSource, error) {
	if err := ensureInit(); err != nil {
		return nil, &internal_type.DeviceError{Device: "microphone", Err: err}
	}

	s := &source{
		logger:  logger,
		samples: make([]int16, frameSamples),
	}
	stream, err := portaudio.OpenDefaultStream(
		internal_audio.InternalChannels, 0,
		float64(internal_audio.InternalSampleRate),
		frameSamples, s.samples,
	)
	if err != nil {
		return nil, &internal_type.DeviceError{Device: "microphone", Err: err}
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, &internal_type.DeviceError{Device: "microphone", Err: err}
	}
	s.stream = stream
	return s, nil
}

// ReadFrame blocks until a full frame is available and returns it as
// little-endian LINEAR16 bytes. The returned slice is owned by the caller.
func (s *source) ReadFrame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, context.Canceled
	}
	stream := s.stream
	s.mu.Unlock()

	if err := stream.Read(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &internal_type.DeviceError{Device: "microphone", Err: err}
	}

	frame := make([]byte, len(s.samples)*internal_audio.BytesPerSample)
	for i, v := range s.samples {
		binary.LittleEndian.PutUint16(frame[i*2:], uint16(v))
	}
	return frame, nil
}

// Close stops the stream and releases the device.
func (s *source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.stream.Stop(); err != nil {
		s.logger.Debugw("microphone stop", "error", err)
	}
	return s.stream.Close()
}

// Provider returns a SourceProvider that opens a fresh microphone source per
// capture attempt.
func Provider(logger commons.Logger, frameSamples int) internal_type.SourceProvider {
	return func(ctx context.Context) (internal_type.AudioSource, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return NewSource(logger, frameSamples)
	}
}
