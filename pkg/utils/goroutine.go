// Copyright (c) 2024-2026 HireVox Labs
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package utils

import (
	"context"
	"log"
	"runtime/debug"
)

// Go spawns fn on its own goroutine with panic recovery. A panicking
// background task must never take down the conversational loop; the panic is
// logged with its stack and swallowed.
func Go(ctx context.Context, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("recovered panic in background goroutine: %v\n%s", r, debug.Stack())
			}
		}()
		select {
		case <-ctx.Done():
			return
		default:
		}
		fn()
	}()
}
