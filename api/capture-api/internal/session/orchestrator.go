// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	internal_assembler "github.com/rapidaai/capture/api/capture-api/internal/assembler"
	internal_capability "github.com/rapidaai/capture/api/capture-api/internal/capability"
	internal_media "github.com/rapidaai/capture/api/capture-api/internal/media"
	internal_recorder "github.com/rapidaai/capture/api/capture-api/internal/recorder"
	internal_type "github.com/rapidaai/capture/api/capture-api/internal/type"
	"github.com/rapidaai/capture/pkg/commons"
	"github.com/rapidaai/capture/pkg/configs"
	"github.com/rapidaai/capture/pkg/utils"
	"golang.org/x/sync/errgroup"
)

// captureSession is the single active recording context: the acquired
// channel set and one recorder primitive per channel, all sharing one
// reference timestamp.
type captureSession struct {
	id        string
	startedAt time.Time
	channels  []*internal_type.MediaChannel
	recorders []*internal_recorder.ChannelRecorder
}

// SessionInfo is the observable snapshot handed to the dispatcher and the
// status endpoint.
type SessionInfo struct {
	ID        string                      `json:"id"`
	State     internal_type.SessionState  `json:"state"`
	StartedAt time.Time                   `json:"startedAt"`
	Channels  []internal_type.ChannelKind `json:"channels"`
}

// Orchestrator owns the capture session state machine
// (Idle → Starting → Recording ⇄ Paused → Stopping → Stopped → Idle) and
// fans lifecycle commands out to every channel recorder. At most one
// session is non-idle at a time; there are no ambient globals — all state
// lives on this value.
type Orchestrator struct {
	logger    commons.Logger
	cfg       configs.CaptureConfig
	acquirer  *internal_media.Acquirer
	assembler *internal_assembler.Assembler

	mu      sync.Mutex // commands are serialized
	state   internal_type.SessionState
	session *captureSession

	// clock is injectable for testing; defaults to time.Now.
	clock func() time.Time
}

func NewOrchestrator(
	logger commons.Logger,
	cfg configs.CaptureConfig,
	acquirer *internal_media.Acquirer,
	assembler *internal_assembler.Assembler,
) *Orchestrator {
	return &Orchestrator{
		logger:    logger,
		cfg:       cfg.Defaulted(),
		acquirer:  acquirer,
		assembler: assembler,
		state:     internal_type.StateIdle,
		clock:     time.Now,
	}
}

// State returns the current session state.
func (o *Orchestrator) State() internal_type.SessionState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Info returns an observable snapshot of the current session, or a bare
// idle snapshot when none is active.
func (o *Orchestrator) Info() SessionInfo {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.infoLocked()
}

// Start acquires the channel set, negotiates an encoding per channel and
// starts one recorder per channel against a single shared reference
// timestamp captured immediately before the first start call, minimizing
// cross-channel skew. Only ErrMandatoryAcquisition (wrapped) and
// ErrSessionBusy can escape.
func (o *Orchestrator) Start(ctx context.Context, req internal_type.AcquireRequest) (SessionInfo, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != internal_type.StateIdle {
		return SessionInfo{}, internal_type.ErrSessionBusy
	}
	o.state = internal_type.StateStarting

	channels, err := o.acquirer.Acquire(ctx, req)
	if err != nil {
		o.state = internal_type.StateIdle
		return SessionInfo{}, err
	}

	support := o.acquirer.Provider().Support()
	for _, channel := range channels {
		channel.Encoding = internal_capability.Negotiate(support, internal_capability.PreferredEncodings(channel.Kind))
		if channel.Encoding == "" {
			// No preferred candidate supported; the platform default is a
			// valid, non-exceptional outcome.
			o.logger.Debugf("no preferred encoding supported for %s, using platform default", channel.Kind)
		}
	}

	session := &captureSession{
		id:       uuid.New().String(),
		channels: channels,
	}
	for _, channel := range channels {
		session.recorders = append(session.recorders,
			internal_recorder.NewChannelRecorder(o.logger, channel, o.cfg.ChunkFlushInterval))
	}

	// Shared reference timestamp, captured immediately before the first
	// recorder start.
	session.startedAt = o.clock()
	ref := session.startedAt.UnixMicro()
	for _, rec := range session.recorders {
		if err := rec.Start(ref); err != nil {
			// A recorder that cannot start behaves like a faulted channel:
			// it produces no chunks but never aborts the session.
			o.logger.Errorf("recorder start failed for %s: %v", rec.Channel().Kind, err)
		}
	}

	o.session = session
	o.state = internal_type.StateRecording
	o.logger.Infow("capture session started",
		"session", session.id,
		"channels", len(channels),
		"chunkFlush", o.cfg.ChunkFlushInterval,
	)
	return o.infoLocked(), nil
}

func (o *Orchestrator) infoLocked() SessionInfo {
	info := SessionInfo{State: o.state}
	if o.session != nil {
		info.ID = o.session.id
		info.StartedAt = o.session.startedAt
		for _, ch := range o.session.channels {
			info.Channels = append(info.Channels, ch.Kind)
		}
	}
	return info
}

// Pause fans out to every channel recorder. Recorders in an unexpected
// state skip the command, so pause is idempotent per channel and at the
// session level.
func (o *Orchestrator) Pause() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch o.state {
	case internal_type.StatePaused:
		return nil
	case internal_type.StateRecording:
	default:
		return internal_type.ErrSessionNotActive
	}
	for _, rec := range o.session.recorders {
		rec.Pause()
	}
	o.state = internal_type.StatePaused
	o.logger.Debugf("capture session paused: %s", o.session.id)
	return nil
}

// Resume mirrors Pause.
func (o *Orchestrator) Resume() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch o.state {
	case internal_type.StateRecording:
		return nil
	case internal_type.StatePaused:
	default:
		return internal_type.ErrSessionNotActive
	}
	for _, rec := range o.session.recorders {
		rec.Resume()
	}
	o.state = internal_type.StateRecording
	o.logger.Debugf("capture session resumed: %s", o.session.id)
	return nil
}

// Stop fans the stop out to every channel recorder and joins their
// completions — channels may complete in any order. The join is bounded by
// the stop grace period: a hung recorder forfeits its unflushed tail and
// the session force-finalizes with whatever chunks were collected, so
// forward progress is guaranteed. After assembly every stream track is
// released exactly once and the orchestrator folds back to idle.
func (o *Orchestrator) Stop(ctx context.Context) ([]internal_type.RecordingArtifact, error) {
	o.mu.Lock()
	switch o.state {
	case internal_type.StateRecording, internal_type.StatePaused:
	default:
		o.mu.Unlock()
		return nil, internal_type.ErrSessionNotActive
	}
	o.state = internal_type.StateStopping
	session := o.session
	// The join can last up to the grace period; release the lock so state
	// inspection stays responsive while channels drain. Stopping gates
	// every other command until the final transition below.
	o.mu.Unlock()

	var g errgroup.Group
	for _, rec := range session.recorders {
		rec := rec
		g.Go(func() error {
			rec.Stop()
			<-rec.Done()
			return nil
		})
	}

	joined := make(chan struct{})
	utils.Go(ctx, func() {
		g.Wait() //nolint:errcheck // recorder stop never errors
		close(joined)
	})
	select {
	case <-joined:
	case <-time.After(o.cfg.StopGrace):
		o.logger.Warnw("stop grace period elapsed, force-finalizing",
			"session", session.id,
			"grace", o.cfg.StopGrace,
		)
		// Hung recorders forfeit chunk ownership before assembly reads
		// the chunk sequences; a recorder that unsticks later discards
		// its tail instead of appending to an assembled channel.
		for _, rec := range session.recorders {
			rec.Detach()
		}
	}

	for _, rec := range session.recorders {
		if err := rec.Err(); err != nil {
			o.logger.Warnf("channel %s faulted during session: %v", rec.Channel().Kind, err)
		}
	}

	artifacts := o.assembler.Assemble(session.channels)
	internal_media.Release(session.channels)

	o.mu.Lock()
	o.state = internal_type.StateStopped
	o.logger.Infow("capture session stopped",
		"session", session.id,
		"artifacts", len(artifacts),
	)

	// Stopped is transient: fold back to idle after assembly handoff.
	o.session = nil
	o.state = internal_type.StateIdle
	o.mu.Unlock()
	return artifacts, nil
}
