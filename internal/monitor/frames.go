// Copyright (c) 2024-2026 HireVox Labs
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package internal_monitor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	internal_type "github.com/hirevox/interview-client/internal/type"
)

// snapshotFrameSource reads the most recent image dropped into a snapshot
// directory by an external camera process. Keeps the camera pipeline out of
// process while still giving the loop a frame per tick.
type snapshotFrameSource struct {
	dir string
}

// NewSnapshotFrameSource builds a FrameSource over a snapshot directory.
func NewSnapshotFrameSource(dir string) internal_type.FrameSource {
	return &snapshotFrameSource{dir: dir}
}

func (s *snapshotFrameSource) CaptureFrame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var newest string
	var newestMod int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".jpg", ".jpeg", ".png":
		default:
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if mod := info.ModTime().UnixNano(); mod > newestMod {
			newestMod = mod
			newest = e.Name()
		}
	}
	if newest == "" {
		return nil, fmt.Errorf("no camera snapshot in %s", s.dir)
	}
	return os.ReadFile(filepath.Join(s.dir, newest))
}
