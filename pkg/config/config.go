// Copyright (c) 2024-2026 HireVox Labs
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// AppConfig is the full client configuration. Every timing heuristic of the
// conversational loop is a tunable here rather than a constant in code; the
// defaults reproduce the hand-tuned production values.
type AppConfig struct {
	Name     string `mapstructure:"service_name"`
	Version  string `mapstructure:"version"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`

	VAD     VADConfig     `mapstructure:"vad"`
	Capture CaptureConfig `mapstructure:"capture"`
	Turn    TurnConfig    `mapstructure:"turn"`
	Channel ChannelConfig `mapstructure:"channel"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	Report  ReportConfig  `mapstructure:"report"`
}

// VADConfig holds the silence-detector thresholds. Levels are on the 0-255
// mean-amplitude scale produced by the energy monitor.
type VADConfig struct {
	Engine             string  `mapstructure:"engine"` // "energy" or "silero"
	SpeechThreshold    float64 `mapstructure:"speech_threshold"`
	SilenceThreshold   float64 `mapstructure:"silence_threshold"`
	InterruptThreshold float64 `mapstructure:"interrupt_threshold"`
	MinRecordingMS     int     `mapstructure:"min_recording_ms"`
	SilenceTimeoutMS   int     `mapstructure:"silence_timeout_ms"`
	MinSpeechGapMS     int     `mapstructure:"min_speech_gap_ms"`
	NoSpeechTimeoutMS  int     `mapstructure:"no_speech_timeout_ms"`
	SileroModelPath    string  `mapstructure:"silero_model_path"`
	SileroThreshold    float64 `mapstructure:"silero_threshold"`
}

// CaptureConfig holds microphone capture parameters.
type CaptureConfig struct {
	SampleRate     int `mapstructure:"sample_rate"`
	FrameSamples   int `mapstructure:"frame_samples"`
	MinAttemptMS   int `mapstructure:"min_attempt_ms"`
	RestartDelayMS int `mapstructure:"restart_delay_ms"`
	DeferRetryMS   int `mapstructure:"defer_retry_ms"`
}

// TurnConfig holds the turn-taking state machine parameters plus the opaque
// session labels threaded through to the backend.
type TurnConfig struct {
	TotalTurns    int    `mapstructure:"total_turns"`
	Language      string `mapstructure:"language"`
	Persona       string `mapstructure:"persona"`
	Difficulty    string `mapstructure:"difficulty"`
	Sector        string `mapstructure:"sector"`
	TargetCompany string `mapstructure:"target_company"`

	DedupWindowMS     int `mapstructure:"dedup_window_ms"`
	GraceDelayMS      int `mapstructure:"grace_delay_ms"`
	ResponseTimeoutMS int `mapstructure:"response_timeout_ms"`
	MaxSendRetries    int `mapstructure:"max_send_retries"`
	NoSynthDelayMS    int `mapstructure:"no_synth_delay_ms"`
	IdleNudgeMS       int `mapstructure:"idle_nudge_ms"`
	NudgeCheckMS      int `mapstructure:"nudge_check_ms"`
}

// ChannelConfig holds the backend message-channel parameters.
type ChannelConfig struct {
	URL                string `mapstructure:"url"`
	ProcessingExpiryMS int    `mapstructure:"processing_expiry_ms"`
	ReconnectMinMS     int    `mapstructure:"reconnect_min_ms"`
	ReconnectMaxMS     int    `mapstructure:"reconnect_max_ms"`
	WriteTimeoutMS     int    `mapstructure:"write_timeout_ms"`
}

// MonitorConfig holds the environmental-monitoring loop parameters.
type MonitorConfig struct {
	IntervalMS     int    `mapstructure:"interval_ms"`
	ViolationGapMS int    `mapstructure:"violation_gap_ms"`
	ClassifierURL  string `mapstructure:"classifier_url"`
	// SnapshotDir is where an external camera process drops frames; empty
	// disables presence monitoring.
	SnapshotDir string `mapstructure:"snapshot_dir"`
}

// ReportConfig holds the session reporting sink parameters.
type ReportConfig struct {
	URL string `mapstructure:"url"`
}

// InitConfig builds the viper instance: .env file if present, environment
// variables always, and defaults for every key.
func InitConfig() (*viper.Viper, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter("__"))

	v.AddConfigPath(".")
	v.SetConfigName(".env")
	if path := os.Getenv("ENV_PATH"); path != "" {
		v.SetConfigFile(path)
	}
	v.SetConfigType("env")
	v.AutomaticEnv()

	setDefaults(v)
	// A missing .env file is fine; env vars and defaults still apply.
	_ = v.ReadInConfig()
	return v, nil
}

// Load reads and decodes the full application config.
func Load() (*AppConfig, error) {
	v, err := InitConfig()
	if err != nil {
		return nil, err
	}
	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVICE_NAME", "interview-client")
	v.SetDefault("VERSION", "0.1.0")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FILE", "")

	// Silence detector. The thresholds are hand-tuned for the 0-255 scale.
	v.SetDefault("VAD__ENGINE", "energy")
	v.SetDefault("VAD__SPEECH_THRESHOLD", 15.0)
	v.SetDefault("VAD__SILENCE_THRESHOLD", 10.0)
	v.SetDefault("VAD__INTERRUPT_THRESHOLD", 20.0)
	v.SetDefault("VAD__MIN_RECORDING_MS", 500)
	v.SetDefault("VAD__SILENCE_TIMEOUT_MS", 1200)
	v.SetDefault("VAD__MIN_SPEECH_GAP_MS", 500)
	v.SetDefault("VAD__NO_SPEECH_TIMEOUT_MS", 10000)
	v.SetDefault("VAD__SILERO_MODEL_PATH", "silero_vad.onnx")
	v.SetDefault("VAD__SILERO_THRESHOLD", 0.5)

	// Capture: PCM16 mono 16 kHz, 20 ms frames.
	v.SetDefault("CAPTURE__SAMPLE_RATE", 16000)
	v.SetDefault("CAPTURE__FRAME_SAMPLES", 320)
	v.SetDefault("CAPTURE__MIN_ATTEMPT_MS", 500)
	v.SetDefault("CAPTURE__RESTART_DELAY_MS", 500)
	v.SetDefault("CAPTURE__DEFER_RETRY_MS", 500)

	// Turn taking.
	v.SetDefault("TURN__TOTAL_TURNS", 10)
	v.SetDefault("TURN__LANGUAGE", "English")
	v.SetDefault("TURN__PERSONA", "Friendly Mentor")
	v.SetDefault("TURN__DIFFICULTY", "Intermediate")
	v.SetDefault("TURN__SECTOR", "General")
	v.SetDefault("TURN__TARGET_COMPANY", "")
	v.SetDefault("TURN__DEDUP_WINDOW_MS", 2000)
	v.SetDefault("TURN__GRACE_DELAY_MS", 1000)
	v.SetDefault("TURN__RESPONSE_TIMEOUT_MS", 8000)
	v.SetDefault("TURN__MAX_SEND_RETRIES", 2)
	v.SetDefault("TURN__NO_SYNTH_DELAY_MS", 2000)
	v.SetDefault("TURN__IDLE_NUDGE_MS", 8000)
	v.SetDefault("TURN__NUDGE_CHECK_MS", 2000)

	// Message channel.
	v.SetDefault("CHANNEL__URL", "ws://localhost:5001/interview")
	v.SetDefault("CHANNEL__PROCESSING_EXPIRY_MS", 2000)
	v.SetDefault("CHANNEL__RECONNECT_MIN_MS", 250)
	v.SetDefault("CHANNEL__RECONNECT_MAX_MS", 4000)
	v.SetDefault("CHANNEL__WRITE_TIMEOUT_MS", 5000)

	// Environmental monitoring.
	v.SetDefault("MONITOR__INTERVAL_MS", 4000)
	v.SetDefault("MONITOR__VIOLATION_GAP_MS", 3000)
	v.SetDefault("MONITOR__CLASSIFIER_URL", "http://localhost:5001/api/reports/analyze-frame")
	v.SetDefault("MONITOR__SNAPSHOT_DIR", "")

	// Reporting sink.
	v.SetDefault("REPORT__URL", "http://localhost:5001/api/reports")
}

// Duration helpers so callers do not repeat the ms conversion.

func (c VADConfig) MinRecording() time.Duration {
	return time.Duration(c.MinRecordingMS) * time.Millisecond
}
func (c VADConfig) SilenceTimeout() time.Duration {
	return time.Duration(c.SilenceTimeoutMS) * time.Millisecond
}
func (c VADConfig) MinSpeechGap() time.Duration {
	return time.Duration(c.MinSpeechGapMS) * time.Millisecond
}
func (c VADConfig) NoSpeechTimeout() time.Duration {
	return time.Duration(c.NoSpeechTimeoutMS) * time.Millisecond
}

func (c CaptureConfig) MinAttempt() time.Duration {
	return time.Duration(c.MinAttemptMS) * time.Millisecond
}
func (c CaptureConfig) RestartDelay() time.Duration {
	return time.Duration(c.RestartDelayMS) * time.Millisecond
}
func (c CaptureConfig) DeferRetry() time.Duration {
	return time.Duration(c.DeferRetryMS) * time.Millisecond
}

func (c TurnConfig) DedupWindow() time.Duration {
	return time.Duration(c.DedupWindowMS) * time.Millisecond
}
func (c TurnConfig) GraceDelay() time.Duration {
	return time.Duration(c.GraceDelayMS) * time.Millisecond
}
func (c TurnConfig) ResponseTimeout() time.Duration {
	return time.Duration(c.ResponseTimeoutMS) * time.Millisecond
}
func (c TurnConfig) NoSynthDelay() time.Duration {
	return time.Duration(c.NoSynthDelayMS) * time.Millisecond
}
func (c TurnConfig) IdleNudge() time.Duration { return time.Duration(c.IdleNudgeMS) * time.Millisecond }
func (c TurnConfig) NudgeCheck() time.Duration {
	return time.Duration(c.NudgeCheckMS) * time.Millisecond
}

func (c ChannelConfig) ProcessingExpiry() time.Duration {
	return time.Duration(c.ProcessingExpiryMS) * time.Millisecond
}
func (c ChannelConfig) ReconnectMin() time.Duration {
	return time.Duration(c.ReconnectMinMS) * time.Millisecond
}
func (c ChannelConfig) ReconnectMax() time.Duration {
	return time.Duration(c.ReconnectMaxMS) * time.Millisecond
}
func (c ChannelConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutMS) * time.Millisecond
}

func (c MonitorConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}
func (c MonitorConfig) ViolationGap() time.Duration {
	return time.Duration(c.ViolationGapMS) * time.Millisecond
}
