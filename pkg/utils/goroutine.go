// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package utils

import (
	"context"
	"log"
	"runtime/debug"
)

// Go runs fn in a goroutine with panic recovery. A panicking capture
// goroutine must never take down the whole service; the session-level
// error handling decides what an absent channel means. fn always runs —
// it is responsible for honoring ctx itself, so cleanup tied to fn
// (waitgroups, final flushes) is never skipped by a cancellation race.
func Go(_ context.Context, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("recovered panic in goroutine: %v\n%s", r, debug.Stack())
			}
		}()
		fn()
	}()
}
