// Copyright (c) 2024-2026 HireVox Labs
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package internal_report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/hirevox/interview-client/pkg/commons"

	internal_type "github.com/hirevox/interview-client/internal/type"
)

// sink posts the finished session's artifacts to the reporting service as one
// multipart request: transcript and event log as JSON parts, the two session
// audio tracks as WAV attachments.
type sink struct {
	logger commons.Logger
	client *resty.Client
	url    string
}

// NewSink builds a reporting sink client for the given endpoint.
func NewSink(logger commons.Logger, url string) internal_type.ReportSink {
	return &sink{
		logger: logger,
		client: resty.New().SetTimeout(60 * time.Second).SetRetryCount(2),
		url:    url,
	}
}

type submitResult struct {
	ReportID string `json:"reportId"`
}

func (s *sink) Submit(ctx context.Context, report *internal_type.SessionReport) (string, error) {
	transcript, err := json.Marshal(report.Transcript)
	if err != nil {
		return "", fmt.Errorf("encode transcript: %w", err)
	}
	events, err := json.Marshal(report.Events)
	if err != nil {
		return "", fmt.Errorf("encode event log: %w", err)
	}

	req := s.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"sessionId":     report.SessionID,
			"totalTurns":    fmt.Sprintf("%d", report.TotalTurns),
			"language":      report.Language,
			"persona":       report.Persona,
			"difficulty":    report.Difficulty,
			"sector":        report.Sector,
			"targetCompany": report.TargetCompany,
		}).
		SetMultipartField("transcript", "transcript.json", "application/json", bytes.NewReader(transcript)).
		SetMultipartField("events", "events.json", "application/json", bytes.NewReader(events))

	if len(report.CandidateWAV) > 0 {
		req.SetMultipartField("candidateAudio", "candidate.wav", "audio/wav", bytes.NewReader(report.CandidateWAV))
	}
	if len(report.InterviewerWAV) > 0 {
		req.SetMultipartField("interviewerAudio", "interviewer.wav", "audio/wav", bytes.NewReader(report.InterviewerWAV))
	}

	var result submitResult
	resp, err := req.SetResult(&result).Post(s.url)
	if err != nil {
		return "", fmt.Errorf("submit report: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("report sink returned %s", resp.Status())
	}

	s.logger.Infow("session report submitted",
		"sessionId", report.SessionID, "reportId", result.ReportID,
		"transcriptEntries", len(report.Transcript), "events", len(report.Events))
	return result.ReportID, nil
}
