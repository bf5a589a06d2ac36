// Copyright (c) 2024-2026 HireVox Labs
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package internal_mic

import (
	"context"
	"encoding/binary"

	"github.com/gordonklaus/portaudio"

	"github.com/hirevox/interview-client/pkg/commons"

	internal_audio "github.com/hirevox/interview-client/internal/audio"
	internal_type "github.com/hirevox/interview-client/internal/type"
)

const playerFrameSamples = 1024

// player writes LINEAR16 clips to the default output device. A fresh stream
// is opened per clip so an interrupted Play leaves no device state behind.
type player struct {
	logger commons.Logger
}

func NewPlayer(logger commons.Logger) internal_type.Player {
	return &player{logger: logger}
}

// Play decodes the clip and writes it frame by frame, honoring ctx between
// frames so interruption is near-immediate.
func (p *player) Play(ctx context.Context, clip []byte) error {
	if err := ensureInit(); err != nil {
		return &internal_type.PlaybackFailure{Err: err}
	}
	pcm, err := internal_audio.DecodePCM(clip)
	if err != nil {
		return &internal_type.PlaybackFailure{Err: err}
	}

	samples := make([]int16, playerFrameSamples)
	stream, err := portaudio.OpenDefaultStream(
		0, internal_audio.InternalChannels,
		float64(internal_audio.InternalSampleRate),
		playerFrameSamples, samples,
	)
	if err != nil {
		return &internal_type.PlaybackFailure{Err: err}
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return &internal_type.PlaybackFailure{Err: err}
	}
	defer stream.Stop()

	frameBytes := playerFrameSamples * internal_audio.BytesPerSample
	for off := 0; off < len(pcm); off += frameBytes {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := off + frameBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		// Last frame is zero-padded to a full device buffer.
		for i := range samples {
			samples[i] = 0
		}
		for i := 0; off+i*2+1 < end; i++ {
			samples[i] = int16(binary.LittleEndian.Uint16(pcm[off+i*2:]))
		}
		if err := stream.Write(); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &internal_type.PlaybackFailure{Err: err}
		}
	}
	return nil
}
