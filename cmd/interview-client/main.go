// Copyright (c) 2024-2026 HireVox Labs
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hirevox/interview-client/pkg/commons"
	"github.com/hirevox/interview-client/pkg/config"

	internal_audio "github.com/hirevox/interview-client/internal/audio"
	internal_vad "github.com/hirevox/interview-client/internal/audio/vad"
	internal_capture "github.com/hirevox/interview-client/internal/capture"
	internal_mic "github.com/hirevox/interview-client/internal/capture/mic"
	internal_channel "github.com/hirevox/interview-client/internal/channel"
	internal_monitor "github.com/hirevox/interview-client/internal/monitor"
	internal_playback "github.com/hirevox/interview-client/internal/playback"
	internal_recorder "github.com/hirevox/interview-client/internal/recorder"
	internal_report "github.com/hirevox/interview-client/internal/report"
	internal_turn "github.com/hirevox/interview-client/internal/turn"
	internal_type "github.com/hirevox/interview-client/internal/type"
)

func main() {
	root := &cobra.Command{
		Use:   "interview-client",
		Short: "AI-driven spoken interview client",
		Long: "Runs one spoken interview session: captures the candidate's answers from " +
			"the microphone, plays the interviewer's questions, and submits the full " +
			"session report at the end.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
		SilenceUsage: true,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	loggerOpts := []commons.LoggerOption{commons.WithLogLevel(cfg.LogLevel)}
	if cfg.LogFile != "" {
		loggerOpts = append(loggerOpts, commons.WithLogFile(cfg.LogFile))
	}
	logger, err := commons.NewApplicationLogger(loggerOpts...)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	logger.Infow("starting interview client",
		"version", cfg.Version, "backend", cfg.Channel.URL, "totalTurns", cfg.Turn.TotalTurns)

	// Voice activity pipeline.
	energy := internal_audio.NewEnergyMonitor()
	var detectorOpts []internal_vad.Option
	if cfg.VAD.Engine == "silero" {
		classifier, err := internal_vad.NewSileroClassifier(
			logger, cfg.VAD.SileroModelPath, cfg.Capture.SampleRate, cfg.VAD.SileroThreshold)
		if err != nil {
			return fmt.Errorf("load silero model: %w", err)
		}
		detectorOpts = append(detectorOpts, internal_vad.WithClassifier(classifier))
	}
	detector := internal_vad.NewDetector(internal_vad.Config{
		SpeechThreshold:    cfg.VAD.SpeechThreshold,
		SilenceThreshold:   cfg.VAD.SilenceThreshold,
		InterruptThreshold: cfg.VAD.InterruptThreshold,
		MinRecording:       cfg.VAD.MinRecording(),
		SilenceTimeout:     cfg.VAD.SilenceTimeout(),
		MinSpeechGap:       cfg.VAD.MinSpeechGap(),
		NoSpeechTimeout:    cfg.VAD.NoSpeechTimeout(),
	}, detectorOpts...)

	// Playback side. No on-device synthesizer is bundled; without one the
	// fallback still advances the turn cycle after a fixed pause.
	speaking := internal_playback.NewSignal()
	playbackEvents := make(chan internal_playback.Event, 8)
	fallback := internal_playback.NewSynthesisFallback(
		logger, nil, speaking, playbackEvents, cfg.Turn.NoSynthDelay())
	queue := internal_playback.NewQueue(
		logger, internal_mic.NewPlayer(logger), fallback, speaking, playbackEvents)

	recorder := internal_recorder.NewMediaRecorder(logger)

	session := internal_turn.NewSession(cfg.Turn, time.Now)
	channel := internal_channel.NewChannel(logger, cfg.Channel, session.ID, cfg.Turn)

	capture := internal_capture.NewSession(
		logger, cfg.Capture,
		internal_mic.Provider(logger, cfg.Capture.FrameSamples),
		energy, detector, speaking, channel.Busy,
		internal_capture.WithRecorder(recorder),
	)

	sink := internal_report.NewSink(logger, cfg.Report.URL)

	controller := internal_turn.NewController(
		logger, cfg.Turn, session, capture, queue, fallback, channel, recorder, sink, playbackEvents)

	var frames internal_type.FrameSource
	if cfg.Monitor.SnapshotDir != "" {
		frames = internal_monitor.NewSnapshotFrameSource(cfg.Monitor.SnapshotDir)
	}
	monitor := internal_monitor.NewLoop(
		logger, cfg.Monitor, frames,
		internal_monitor.NewClassifier(cfg.Monitor.ClassifierURL),
		controller.OnViolation,
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		channel.Run(groupCtx)
		return nil
	})
	group.Go(func() error {
		queue.Run(groupCtx)
		return nil
	})
	group.Go(func() error {
		monitor.Run(groupCtx)
		return nil
	})
	group.Go(func() error {
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case n := <-controller.Notices():
				fmt.Fprintln(os.Stderr, n.Message)
			}
		}
	})
	group.Go(func() error {
		// Signal or parent cancellation is a manual end from any state.
		select {
		case <-ctx.Done():
			controller.End()
		case <-groupCtx.Done():
		}
		return nil
	})
	group.Go(func() error {
		controller.Run(runCtx)
		cancel()
		return nil
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		return err
	}
	logger.Info("interview client stopped")
	return nil
}
