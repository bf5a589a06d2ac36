// Copyright (c) 2024-2026 HireVox Labs
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package internal_monitor

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	internal_type "github.com/hirevox/interview-client/internal/type"
)

// restyClassifier submits camera frames to the external presence/attention
// classification service over HTTP.
type restyClassifier struct {
	client *resty.Client
	url    string
}

// NewClassifier builds a classifier client for the given endpoint.
func NewClassifier(url string) internal_type.Classifier {
	return &restyClassifier{
		client: resty.New().SetTimeout(10 * time.Second),
		url:    url,
	}
}

func (c *restyClassifier) Classify(ctx context.Context, frame []byte) (*internal_type.Classification, error) {
	var result internal_type.Classification
	resp, err := c.client.R().
		SetContext(ctx).
		SetFileReader("frame", "frame.jpg", bytes.NewReader(frame)).
		SetResult(&result).
		Post(c.url)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("classifier returned %s", resp.Status())
	}
	return &result, nil
}
