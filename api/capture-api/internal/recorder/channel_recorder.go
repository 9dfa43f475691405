// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_recorder

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	internal_type "github.com/rapidaai/capture/api/capture-api/internal/type"
	"github.com/rapidaai/capture/pkg/commons"
)

type recorderState int

const (
	stateIdle recorderState = iota
	stateRecording
	statePaused
	stateStopped
)

// ChannelRecorder is the recorder primitive bound to one acquired channel.
// It consumes the channel's stream tracks, accumulates raw data and flushes
// one chunk onto the channel's chunk sequence on a fixed interval, so
// partial output is available for incremental handling. Chunk order within
// the channel is strictly append-only.
type ChannelRecorder struct {
	logger  commons.Logger
	channel *internal_type.MediaChannel
	flush   time.Duration

	mu        sync.Mutex
	state     recorderState
	detached  bool
	buf       bytes.Buffer
	err       error
	ref       int64
	startedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	done     chan struct{}
	stopOnce sync.Once

	// clock is injectable for testing; defaults to time.Now.
	clock func() time.Time
}

// NewChannelRecorder binds a recorder to channel. flush is the chunk-flush
// interval, identical for every channel of a session.
func NewChannelRecorder(logger commons.Logger, channel *internal_type.MediaChannel, flush time.Duration) *ChannelRecorder {
	ctx, cancel := context.WithCancel(context.Background())
	return &ChannelRecorder{
		logger:  logger,
		channel: channel,
		flush:   flush,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		clock:   time.Now,
	}
}

// Channel returns the media channel this recorder writes to.
func (r *ChannelRecorder) Channel() *internal_type.MediaChannel {
	return r.channel
}

// Start launches one read loop per stream track and the flush loop. ref is
// the shared session reference timestamp in unix microseconds.
func (r *ChannelRecorder) Start(ref int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != stateIdle {
		return errors.New("recorder already started")
	}
	r.state = stateRecording
	r.ref = ref
	r.startedAt = r.clock()

	for _, track := range r.channel.Stream.Tracks() {
		r.wg.Add(1)
		go r.readLoop(track)
	}
	r.wg.Add(1)
	go r.flushLoop()
	return nil
}

// Pause gates data production. Idempotent: pausing a recorder that is not
// recording is a no-op.
func (r *ChannelRecorder) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != stateRecording {
		return
	}
	r.state = statePaused
}

// Resume re-enables data production. Idempotent like Pause.
func (r *ChannelRecorder) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != statePaused {
		return
	}
	r.state = stateRecording
}

// Stop terminates the read and flush loops, flushes the remaining buffer
// as a final chunk and closes Done. Safe to call multiple times and safe
// to call on a recorder that was never started.
func (r *ChannelRecorder) Stop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		r.state = stateStopped
		r.mu.Unlock()

		r.cancel()
		r.wg.Wait()

		r.mu.Lock()
		r.flushLocked()
		detached := r.detached
		var chunks, size int
		if !detached {
			chunks = len(r.channel.Chunks)
			size = r.channel.ChunkBytes()
		}
		started := r.startedAt
		r.mu.Unlock()
		if !started.IsZero() && !detached {
			r.logger.Infof("recorder stopped: channel=%s chunks=%d bytes=%d duration=%s",
				r.channel.Kind, chunks, size, r.clock().Sub(started).Round(time.Millisecond))
		}
		close(r.done)
	})
}

// Detach abandons a recorder that missed its stop deadline. The channel
// gives up exclusive ownership of its chunk sequence at that point, so
// chunk production ceases immediately: the accumulation buffer is dropped
// and a late final flush is discarded instead of appended.
func (r *ChannelRecorder) Detach() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = stateStopped
	r.detached = true
	r.buf.Reset()
}

// Done is closed once the final chunk has been flushed.
func (r *ChannelRecorder) Done() <-chan struct{} {
	return r.done
}

// Err reports a recorder fault. A faulted recorder stops producing chunks
// but the session proceeds to stop and assembly normally.
func (r *ChannelRecorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *ChannelRecorder) readLoop(track internal_type.Track) {
	defer r.wg.Done()
	for {
		data, err := track.Read(r.ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return
			}
			r.mu.Lock()
			if r.err == nil {
				r.err = err
			}
			r.mu.Unlock()
			r.logger.Warnw("recorder fault, channel stops producing",
				"channel", r.channel.Kind,
				"track", track.Kind(),
				"error", err,
			)
			return
		}
		r.mu.Lock()
		// Data arriving while paused is measured and discarded; membership
		// of the channel set never changes across pause/resume.
		if r.state == stateRecording {
			r.buf.Write(data)
		}
		r.mu.Unlock()
	}
}

func (r *ChannelRecorder) flushLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.flush)
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.mu.Lock()
			r.flushLocked()
			r.mu.Unlock()
		}
	}
}

// flushLocked drains the accumulation buffer into one chunk. Caller holds
// r.mu. A detached recorder no longer owns the chunk sequence and drops
// the buffer instead.
func (r *ChannelRecorder) flushLocked() {
	if r.detached {
		r.buf.Reset()
		return
	}
	if r.buf.Len() == 0 {
		return
	}
	chunk := make([]byte, r.buf.Len())
	r.buf.Read(chunk)
	r.channel.Chunks = append(r.channel.Chunks, chunk)
}
