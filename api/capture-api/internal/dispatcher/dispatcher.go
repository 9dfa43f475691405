// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	internal_assembler "github.com/rapidaai/capture/api/capture-api/internal/assembler"
	internal_media "github.com/rapidaai/capture/api/capture-api/internal/media"
	internal_session "github.com/rapidaai/capture/api/capture-api/internal/session"
	internal_signal "github.com/rapidaai/capture/api/capture-api/internal/signal"
	internal_sink "github.com/rapidaai/capture/api/capture-api/internal/sink"
	internal_store "github.com/rapidaai/capture/api/capture-api/internal/store"
	internal_type "github.com/rapidaai/capture/api/capture-api/internal/type"
	"github.com/rapidaai/capture/pkg/commons"
	"github.com/rapidaai/capture/pkg/configs"
)

// Sender delivers outbound envelopes to the connected collaborator.
// Implementations must be safe for concurrent use: signal batches are
// pushed from the capturer's flush loop while control replies come from
// the dispatch loop.
type Sender interface {
	Send(msg Outbound) error
}

// Dispatcher is the boundary of the capture subsystem for one connected
// collaborator: control commands route in to the orchestrator and the
// signal capturer, signal batches and assembled artifacts route out.
type Dispatcher struct {
	logger commons.Logger
	cfg    configs.CaptureConfig

	orchestrator *internal_session.Orchestrator
	capturer     *internal_signal.Capturer
	surface      *eventSurface
	provider     internal_media.Provider
	store        internal_store.Store
	sender       Sender

	// Last reported permission outcome; constrains optional channels of
	// subsequent starts. Commands are serialized by the dispatch loop so
	// no lock is needed.
	permissionsKnown bool
	hasMicrophone    bool
	hasCamera        bool
}

// NewDispatcher wires one dispatcher around a media provider. Signal
// batches are fanned out to the sender and to every extra sink (for
// example the redis publisher feeding the analysis engine). store may be
// nil to run without persistence.
func NewDispatcher(
	logger commons.Logger,
	cfg configs.CaptureConfig,
	provider internal_media.Provider,
	store internal_store.Store,
	sender Sender,
	extra ...internal_sink.BatchSink,
) *Dispatcher {
	d := &Dispatcher{
		logger:   logger,
		cfg:      cfg.Defaulted(),
		surface:  newEventSurface(),
		provider: provider,
		store:    store,
		sender:   sender,
	}
	d.orchestrator = internal_session.NewOrchestrator(
		logger,
		d.cfg,
		internal_media.NewAcquirer(logger, provider),
		internal_assembler.NewAssembler(logger),
	)
	sinks := append([]internal_sink.BatchSink{internal_sink.SinkFunc(d.pushBatch)}, extra...)
	d.capturer = internal_signal.NewCapturer(logger, d.cfg, d.surface, internal_sink.NewMultiSink(logger, sinks...))
	return d
}

// Session exposes the orchestrator's observable state for status routes.
func (d *Dispatcher) Session() internal_session.SessionInfo {
	return d.orchestrator.Info()
}

// Handle routes one control message. Raw signal events are forwarded to
// the observed surface; everything else mutates the session lifecycle.
func (d *Dispatcher) Handle(ctx context.Context, env Envelope) error {
	switch env.Type {
	case MessageSignalEvent:
		var data SignalEventData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return d.sendError(ErrorCodeBadMessage, fmt.Sprintf("malformed signal event: %v", err))
		}
		d.surface.publish(rawEventFromData(data))
		return nil
	case MessageStartCapture:
		var data StartCaptureData
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &data); err != nil {
				return d.sendError(ErrorCodeBadMessage, fmt.Sprintf("malformed start command: %v", err))
			}
		}
		return d.handleStart(ctx, data)
	case MessagePauseCapture:
		if err := d.orchestrator.Pause(); err != nil {
			return d.sendError(ErrorCodeNotActive, err.Error())
		}
		d.capturer.Pause()
		return nil
	case MessageResumeCapture:
		if err := d.orchestrator.Resume(); err != nil {
			return d.sendError(ErrorCodeNotActive, err.Error())
		}
		d.capturer.Resume()
		return nil
	case MessageStopCapture:
		return d.handleStop(ctx)
	case MessagePermissionsResult:
		var data PermissionsResultData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return d.sendError(ErrorCodeBadMessage, fmt.Sprintf("malformed permissions result: %v", err))
		}
		d.permissionsKnown = true
		d.hasMicrophone = data.HasMicrophone
		d.hasCamera = data.HasCamera
		d.logger.Debugf("permissions updated: microphone=%t camera=%t", data.HasMicrophone, data.HasCamera)
		return nil
	case MessageWebRTCOffer:
		var data WebRTCSessionData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return d.sendError(ErrorCodeBadMessage, fmt.Sprintf("malformed offer: %v", err))
		}
		answerer, ok := d.provider.(internal_media.Answerer)
		if !ok {
			return d.sendError(ErrorCodeNegotiation, "media provider does not negotiate")
		}
		answer, err := answerer.Answer(ctx, data.SDP)
		if err != nil {
			return d.sendError(ErrorCodeNegotiation, err.Error())
		}
		return d.send(Outbound{Type: MessageWebRTCAnswer, Data: WebRTCSessionData{SDP: answer}})
	case MessagePing:
		return d.send(Outbound{Type: MessagePong})
	default:
		return d.sendError(ErrorCodeBadMessage, fmt.Sprintf("unknown message type %q", env.Type))
	}
}

func (d *Dispatcher) handleStart(ctx context.Context, data StartCaptureData) error {
	d.surface.setBounds(data.SurfaceWidth, data.SurfaceHeight)

	req := internal_type.AcquireRequest{
		WantMicrophone: data.WantMicrophone,
		WantCamera:     data.WantCamera,
		DisplayIntent:  internal_type.DisplayIntent(strings.ToLower(data.DisplayIntent)),
	}
	// A known permission denial overrides the requested optional channels.
	if d.permissionsKnown {
		req.WantMicrophone = req.WantMicrophone && d.hasMicrophone
		req.WantCamera = req.WantCamera && d.hasCamera
	}

	info, err := d.orchestrator.Start(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, internal_type.ErrMandatoryAcquisition):
			return d.sendError(ErrorCodeAcquisition, err.Error())
		case errors.Is(err, internal_type.ErrSessionBusy):
			return d.sendError(ErrorCodeBusy, err.Error())
		default:
			return d.sendError(ErrorCodeAcquisition, err.Error())
		}
	}

	if d.store != nil {
		if err := d.store.Begin(ctx, info.ID, req.DisplayIntent, len(info.Channels), info.StartedAt); err != nil {
			d.logger.Errorf("failed to persist session %s: %v", info.ID, err)
		}
	}

	// The capturer shares the session's reference timestamp so signal
	// events and media chunks land on one time base.
	if err := d.capturer.Start(info.ID, info.StartedAt); err != nil {
		d.logger.Warnf("signal capture unavailable for session %s: %v", info.ID, err)
	}

	return d.send(Outbound{Type: MessageCaptureStarted, Data: info})
}

func (d *Dispatcher) handleStop(ctx context.Context) error {
	info := d.orchestrator.Info()

	// Final signal flush first so the closing batch precedes the
	// artifacts on the wire.
	d.capturer.Stop(ctx)

	artifacts, err := d.orchestrator.Stop(ctx)
	if err != nil {
		if d.store != nil && info.ID != "" {
			if ferr := d.store.Fail(ctx, info.ID, err.Error()); ferr != nil {
				d.logger.Errorf("failed to mark session %s failed: %v", info.ID, ferr)
			}
		}
		return d.sendError(ErrorCodeNotActive, err.Error())
	}

	if d.store != nil {
		if err := d.store.SaveArtifacts(ctx, info.ID, artifacts); err != nil {
			d.logger.Errorf("failed to persist artifacts for session %s: %v", info.ID, err)
		}
		if err := d.store.Complete(ctx, info.ID); err != nil {
			d.logger.Errorf("failed to complete session %s: %v", info.ID, err)
		}
	}

	return d.send(Outbound{Type: MessageCaptureStopped, Data: CaptureStoppedData{
		Session:   info,
		Artifacts: artifacts,
	}})
}

// Shutdown force-stops any active session, for connection teardown.
func (d *Dispatcher) Shutdown(ctx context.Context) {
	state := d.orchestrator.State()
	if state == internal_type.StateIdle || state == internal_type.StateStopped {
		return
	}
	d.logger.Warnf("connection closed with session in state %s, stopping", state)
	if err := d.handleStop(ctx); err != nil {
		d.logger.Errorf("teardown stop failed: %v", err)
	}
}

// pushBatch is the sender leg of the capturer's sink fan-out.
func (d *Dispatcher) pushBatch(_ context.Context, batch internal_type.SignalBatch) error {
	return d.send(Outbound{Type: MessageSignalBatch, Data: batch})
}

func (d *Dispatcher) send(msg Outbound) error {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}
	return d.sender.Send(msg)
}

func (d *Dispatcher) sendError(code, message string) error {
	d.logger.Warnf("rejected command: %s %s", code, message)
	return d.send(Outbound{Type: MessageError, Data: ErrorData{Code: code, Message: message}})
}
