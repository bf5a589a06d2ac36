// Copyright (c) 2024-2026 HireVox Labs
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package internal_vad

// Judgement is a per-frame speech classification.
type Judgement int

const (
	// JudgeSpeech marks a frame containing candidate speech.
	JudgeSpeech Judgement = iota
	// JudgeQuiet marks a frame of countable silence.
	JudgeQuiet
	// JudgeAmbient marks a frame between the two thresholds: too loud to count
	// as silence, too quiet to count as speech.
	JudgeAmbient
)

// Classifier decides what a frame contains. Implementations are stateful per
// attempt and reset through Reset.
type Classifier interface {
	Judge(frame []byte, level float64) Judgement
	Reset()
}

// energyClassifier is the default judgement: compare the loudness sample
// against the tuned speech/silence thresholds.
type energyClassifier struct {
	speechThreshold  float64
	silenceThreshold float64
}

// NewEnergyClassifier builds the threshold-based classifier.
func NewEnergyClassifier(speechThreshold, silenceThreshold float64) Classifier {
	return &energyClassifier{
		speechThreshold:  speechThreshold,
		silenceThreshold: silenceThreshold,
	}
}

func (c *energyClassifier) Judge(_ []byte, level float64) Judgement {
	switch {
	case level >= c.speechThreshold:
		return JudgeSpeech
	case level < c.silenceThreshold:
		return JudgeQuiet
	default:
		return JudgeAmbient
	}
}

func (c *energyClassifier) Reset() {}
