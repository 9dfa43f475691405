// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_type

import "context"

// Track is one producer of raw media data inside a stream. Read blocks
// until the next fragment is available, the track ends (io.EOF) or ctx is
// cancelled.
type Track interface {
	// Kind is the track media kind, "video" or "audio".
	Kind() string
	Read(ctx context.Context) ([]byte, error)
	// Stop releases the track. Implementations must tolerate being called
	// through MediaStream.Stop only; the stream guards exactly-once
	// semantics.
	Stop()
}

// MediaStream is an acquired media source. It is exclusively owned by one
// MediaChannel; Stop releases every track exactly once regardless of how
// many times it is called.
type MediaStream interface {
	ID() string
	Tracks() []Track
	Stop()
}

// Recorder is the per-channel recorder primitive. One recorder is bound to
// one acquired channel for the lifetime of a session.
type Recorder interface {
	// Start begins consuming the channel's stream. All chunk timestamps
	// are relative to ref, which is shared by every channel of a session.
	Start(ref int64) error
	// Pause and Resume gate chunk production. Both are idempotent; calling
	// them in an unexpected state is a no-op.
	Pause()
	Resume()
	// Stop signals the recorder to finish. Completion is observed through
	// Done; chunks collected so far remain readable via the channel.
	Stop()
	// Done is closed once the recorder has flushed its final chunk and
	// released its read loop.
	Done() <-chan struct{}
	// Err reports a recorder fault, if any. A faulted recorder silently
	// stops producing chunks; the session is never aborted for it.
	Err() error
}
