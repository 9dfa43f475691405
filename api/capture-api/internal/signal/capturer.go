// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_signal

import (
	"context"
	"errors"
	"sync"
	"time"

	internal_sink "github.com/rapidaai/capture/api/capture-api/internal/sink"
	internal_type "github.com/rapidaai/capture/api/capture-api/internal/type"
	"github.com/rapidaai/capture/pkg/commons"
	"github.com/rapidaai/capture/pkg/configs"
	"github.com/rapidaai/capture/pkg/utils"
)

// Capturer listens for interaction events on the observed surface,
// normalizes and smooths them, and flushes the buffer to the sink as one
// SignalBatch on a fixed cadence. One capturer serves one session at a
// time; all timestamps are relative to the session reference time shared
// with the channel recorders.
type Capturer struct {
	logger  commons.Logger
	cfg     configs.CaptureConfig
	surface Surface
	sink    internal_sink.BatchSink

	mu        sync.Mutex
	active    bool
	paused    bool
	sessionID string
	ref       time.Time
	buffer    []internal_type.SignalEvent
	seq       uint64
	lastTsUs  int64

	// Pointer smoothing state, reset on every start.
	pos          internal_type.Point
	vel          internal_type.Point
	lastMoveAt   time.Time
	lastSampleAt time.Time

	unsubscribe func()
	cancel      context.CancelFunc
	wg          sync.WaitGroup

	// clock and newTicker are injectable for deterministic tests.
	clock     func() time.Time
	newTicker func(d time.Duration) (<-chan time.Time, func())
}

func NewCapturer(logger commons.Logger, cfg configs.CaptureConfig, surface Surface, sink internal_sink.BatchSink) *Capturer {
	return &Capturer{
		logger:  logger,
		cfg:     cfg.Defaulted(),
		surface: surface,
		sink:    sink,
		clock:   time.Now,
		newTicker: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
	}
}

// Start registers the surface listener and launches the flush loop.
// Smoothing state is reset so nothing carries over between sessions.
func (c *Capturer) Start(sessionID string, ref time.Time) error {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return errors.New("signal capturer already active")
	}
	c.active = true
	c.paused = false
	c.sessionID = sessionID
	c.ref = ref
	c.buffer = nil
	c.seq = 0
	c.lastTsUs = 0
	c.pos = internal_type.Point{X: 0.5, Y: 0.5}
	c.vel = internal_type.Point{}
	c.lastMoveAt = time.Time{}
	c.lastSampleAt = time.Time{}
	c.mu.Unlock()

	c.unsubscribe = c.surface.Subscribe(c.handle)

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.wg.Add(1)
	utils.Go(ctx, func() { c.flushLoop(ctx) })

	c.logger.Debugf("signal capture started: session=%s flushEvery=%s", sessionID, c.cfg.SignalFlushInterval)
	return nil
}

// Pause gates event production. Events keep being measured so smoothing
// state stays warm, but nothing reaches the buffer while paused.
func (c *Capturer) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
}

// Resume re-enables event production. Depending on policy, smoothed
// velocity is reset so a long pause does not replay a stale velocity into
// the first post-resume sample.
func (c *Capturer) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
	if c.cfg.ResetVelocityOnResume {
		c.vel = internal_type.Point{}
		c.lastSampleAt = time.Time{}
	}
}

// Stop tears the listener down, cancels the flush loop and delivers one
// final batch with whatever remained buffered. Every exit path from an
// active session goes through here.
func (c *Capturer) Stop(ctx context.Context) {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	c.active = false
	c.mu.Unlock()

	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.wg.Wait()

	c.flush(ctx, true)
	c.logger.Debugf("signal capture stopped: session=%s", c.sessionID)
}

func (c *Capturer) flushLoop(ctx context.Context) {
	defer c.wg.Done()
	tick, stop := c.newTicker(c.cfg.SignalFlushInterval)
	defer stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			c.flush(ctx, false)
		}
	}
}

// flush drains the buffer atomically into one batch. Intermediate empty
// flushes are skipped; the final flush is always delivered so downstream
// consumers observe completion.
func (c *Capturer) flush(ctx context.Context, final bool) {
	c.mu.Lock()
	events := c.buffer
	c.buffer = nil
	if len(events) == 0 && !final {
		c.mu.Unlock()
		return
	}
	c.seq++
	batch := internal_type.SignalBatch{
		SessionID: c.sessionID,
		Seq:       c.seq,
		Events:    events,
		FlushedAt: c.clock(),
		Final:     final,
	}
	c.mu.Unlock()

	if err := c.sink.Deliver(ctx, batch); err != nil {
		c.logger.Warnw("signal batch dropped by sink",
			"session", batch.SessionID,
			"seq", batch.Seq,
			"error", err,
		)
	}
}

// handle processes one raw surface event. Events arriving while inactive
// are ignored; events arriving while paused are measured (smoothing state
// advances) but never buffered.
func (c *Capturer) handle(raw RawEvent) {
	now := c.clock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return
	}

	event, ok := c.measure(raw, now)
	if !ok || c.paused {
		return
	}
	c.buffer = append(c.buffer, event)
}

// measure normalizes the raw event and advances the smoothing state.
// Returns ok=false for throttled pointer-move samples. Caller holds c.mu.
func (c *Capturer) measure(raw RawEvent, now time.Time) (internal_type.SignalEvent, bool) {
	width, height := c.surface.Bounds()
	if width <= 0 {
		width = 1
	}
	if height <= 0 {
		height = 1
	}
	pos := internal_type.Point{
		X: utils.Clamp01(raw.X / width),
		Y: utils.Clamp01(raw.Y / height),
	}

	event := internal_type.SignalEvent{
		Kind:        raw.Kind,
		Position:    pos,
		TimestampUs: c.timestampUs(now),
	}

	switch raw.Kind {
	case internal_type.SignalPointerMove:
		// Throttle: bound event volume while preserving trajectories.
		if !c.lastMoveAt.IsZero() && now.Sub(c.lastMoveAt) < c.cfg.PointerThrottle {
			return event, false
		}
		c.lastMoveAt = now

		// Exponential smoothing. Velocity only updates when the elapsed
		// time is positive and below the outlier threshold, so a long gap
		// (tab backgrounding) never produces a spurious spike.
		if !c.lastSampleAt.IsZero() {
			dt := now.Sub(c.lastSampleAt)
			if dt > 0 && dt <= c.cfg.VelocityGapLimit {
				alpha := c.cfg.SmoothingAlpha
				instant := internal_type.Point{
					X: (pos.X - c.pos.X) / dt.Seconds(),
					Y: (pos.Y - c.pos.Y) / dt.Seconds(),
				}
				c.vel = internal_type.Point{
					X: c.vel.X*(1-alpha) + instant.X*alpha,
					Y: c.vel.Y*(1-alpha) + instant.Y*alpha,
				}
			}
		}
		c.lastSampleAt = now
		c.pos = pos
		vel := c.vel
		event.Velocity = &vel

	case internal_type.SignalClick:
		button := raw.Button
		event.Button = &button
		c.pos = pos

	case internal_type.SignalScroll:
		event.Delta = &internal_type.Point{
			X: raw.DeltaX / width,
			Y: raw.DeltaY / height,
		}

	case internal_type.SignalFocusChange:
		event.Bounds = &internal_type.Rect{
			X:      utils.Clamp01(raw.BoundsX / width),
			Y:      utils.Clamp01(raw.BoundsY / height),
			Width:  utils.Clamp01(raw.BoundsW / width),
			Height: utils.Clamp01(raw.BoundsH / height),
		}
		if raw.Target != "" {
			target := raw.Target
			event.Target = &target
		}

	case internal_type.SignalPointerEnter, internal_type.SignalPointerLeave:
		c.pos = pos
	}

	return event, true
}

// timestampUs converts now to microseconds relative to the session
// reference, enforcing monotonic non-decrease. Caller holds c.mu.
func (c *Capturer) timestampUs(now time.Time) int64 {
	us := now.Sub(c.ref).Microseconds()
	if us < c.lastTsUs {
		us = c.lastTsUs
	}
	c.lastTsUs = us
	return us
}
