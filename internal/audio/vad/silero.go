// Copyright (c) 2024-2026 HireVox Labs
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package internal_vad

import (
	"encoding/binary"
	"fmt"

	"github.com/streamer45/silero-vad-go/speech"

	"github.com/hirevox/interview-client/pkg/commons"
)

// sileroWindow is the frame size the silero model expects at 16kHz.
const sileroWindow = 512

// sileroClassifier judges frames with the silero ONNX model instead of energy
// thresholds. Capture frames are shorter than the model window, so samples are
// accumulated and the model runs once per full window; the judgement holds the
// last model state in between.
type sileroClassifier struct {
	logger   commons.Logger
	detector *speech.Detector

	buf      []float32
	inSpeech bool
}

// NewSileroClassifier loads the silero model. Callers should fall back to the
// energy classifier when the model cannot be loaded.
func NewSileroClassifier(logger commons.Logger, modelPath string, sampleRate int, threshold float64) (Classifier, error) {
	detector, err := speech.NewDetector(speech.DetectorConfig{
		ModelPath:  modelPath,
		SampleRate: sampleRate,
		Threshold:  float32(threshold),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load silero model: %w", err)
	}
	return &sileroClassifier{
		logger:   logger,
		detector: detector,
		buf:      make([]float32, 0, sileroWindow*2),
	}, nil
}

func (c *sileroClassifier) Judge(frame []byte, _ float64) Judgement {
	for i := 0; i+1 < len(frame); i += 2 {
		s := int16(binary.LittleEndian.Uint16(frame[i:]))
		c.buf = append(c.buf, float32(s)/32768.0)
	}

	for len(c.buf) >= sileroWindow {
		window := c.buf[:sileroWindow]
		c.buf = c.buf[sileroWindow:]

		event, err := c.detector.DetectStreamFrame(window)
		if err != nil {
			c.logger.Debugw("silero frame detection failed, resetting", "error", err)
			if err := c.detector.Reset(); err != nil {
				c.logger.Warnw("silero detector reset failed", "error", err)
			}
			continue
		}
		if event == nil {
			continue
		}
		if event.IsStart {
			c.inSpeech = true
		}
		if event.IsEnd {
			c.inSpeech = false
		}
	}

	if c.inSpeech {
		return JudgeSpeech
	}
	return JudgeQuiet
}

func (c *sileroClassifier) Reset() {
	c.buf = c.buf[:0]
	c.inSpeech = false
	if err := c.detector.Reset(); err != nil {
		c.logger.Debugw("silero detector reset failed", "error", err)
	}
}
