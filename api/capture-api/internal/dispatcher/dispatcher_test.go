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
	"path/filepath"
	"sync"
	"testing"
	"time"

	internal_media "github.com/rapidaai/capture/api/capture-api/internal/media"
	internal_session "github.com/rapidaai/capture/api/capture-api/internal/session"
	internal_store "github.com/rapidaai/capture/api/capture-api/internal/store"
	internal_type "github.com/rapidaai/capture/api/capture-api/internal/type"
	"github.com/rapidaai/capture/pkg/commons"
	"github.com/rapidaai/capture/pkg/configs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu   sync.Mutex
	msgs []Outbound
}

func (s *recordingSender) Send(msg Outbound) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *recordingSender) byType(kind MessageType) []Outbound {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Outbound
	for _, msg := range s.msgs {
		if msg.Type == kind {
			out = append(out, msg)
		}
	}
	return out
}

func (s *recordingSender) last(kind MessageType) (Outbound, bool) {
	matches := s.byType(kind)
	if len(matches) == 0 {
		return Outbound{}, false
	}
	return matches[len(matches)-1], true
}

func testConfig() configs.CaptureConfig {
	return configs.CaptureConfig{
		ChunkFlushInterval:  10 * time.Millisecond,
		SignalFlushInterval: 10 * time.Millisecond,
		PointerThrottle:     time.Millisecond,
		VelocityGapLimit:    100 * time.Millisecond,
		SmoothingAlpha:      0.3,
		StopGrace:           2 * time.Second,
	}
}

func newTestDispatcher(t *testing.T, opts ...internal_media.LoopbackOption) (*Dispatcher, *recordingSender) {
	t.Helper()
	logger, err := commons.NewApplicationLogger(commons.Name("test-dispatcher"))
	require.NoError(t, err)
	opts = append([]internal_media.LoopbackOption{
		internal_media.WithFrameCadence(64, 2*time.Millisecond),
	}, opts...)
	sender := &recordingSender{}
	d := NewDispatcher(logger, testConfig(), internal_media.NewLoopbackProvider(opts...), nil, sender)
	return d, sender
}

func mustData(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func handle(t *testing.T, d *Dispatcher, env Envelope) {
	t.Helper()
	require.NoError(t, d.Handle(context.Background(), env))
}

func TestStartRecordStopRoundTrip(t *testing.T) {
	d, sender := newTestDispatcher(t)
	ctx := context.Background()

	handle(t, d, Envelope{Type: MessageStartCapture, Data: mustData(t, StartCaptureData{
		WantMicrophone: true,
		WantCamera:     true,
		DisplayIntent:  "monitor",
		SurfaceWidth:   1000,
		SurfaceHeight:  500,
	})})

	started, ok := sender.last(MessageCaptureStarted)
	require.True(t, ok, "expected CAPTURE_STARTED")
	startedInfo, ok := started.Data.(internal_session.SessionInfo)
	require.True(t, ok)
	assert.False(t, startedInfo.StartedAt.IsZero())
	assert.Equal(t, internal_type.StateRecording, d.Session().State)
	assert.Len(t, d.Session().Channels, 3)

	// Feed interaction samples while recording.
	for i := 0; i < 5; i++ {
		handle(t, d, Envelope{Type: MessageSignalEvent, Data: mustData(t, SignalEventData{
			Kind: string(internal_type.SignalClick), X: 500, Y: 250, Button: 0,
		})})
	}
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, d.Handle(ctx, Envelope{Type: MessageStopCapture}))

	stopped, ok := sender.last(MessageCaptureStopped)
	require.True(t, ok, "expected CAPTURE_STOPPED")
	payload, ok := stopped.Data.(CaptureStoppedData)
	require.True(t, ok)
	require.Len(t, payload.Artifacts, 3)
	for _, artifact := range payload.Artifacts {
		assert.NotEmpty(t, artifact.MimeType)
		assert.Greater(t, artifact.ByteSize, 0)
	}

	batches := sender.byType(MessageSignalBatch)
	require.NotEmpty(t, batches, "stop must flush buffered signal events")
	final, ok := batches[len(batches)-1].Data.(internal_type.SignalBatch)
	require.True(t, ok)
	assert.True(t, final.Final)

	assert.Equal(t, internal_type.StateIdle, d.Session().State)
}

func TestPermissionsConstrainSubsequentStarts(t *testing.T) {
	d, sender := newTestDispatcher(t)

	handle(t, d, Envelope{Type: MessagePermissionsResult, Data: mustData(t, PermissionsResultData{
		HasMicrophone: false,
		HasCamera:     true,
	})})
	handle(t, d, Envelope{Type: MessageStartCapture, Data: mustData(t, StartCaptureData{
		WantMicrophone: true,
		WantCamera:     true,
	})})

	_, ok := sender.last(MessageCaptureStarted)
	require.True(t, ok)
	channels := d.Session().Channels
	assert.Contains(t, channels, internal_type.ChannelDisplay)
	assert.Contains(t, channels, internal_type.ChannelCamera)
	assert.NotContains(t, channels, internal_type.ChannelMicrophone)

	require.NoError(t, d.Handle(context.Background(), Envelope{Type: MessageStopCapture}))
}

func TestMandatoryAcquisitionFailureRejectsStart(t *testing.T) {
	d, sender := newTestDispatcher(t,
		internal_media.WithDisplayFailure(errors.New("screen capture denied")))

	handle(t, d, Envelope{Type: MessageStartCapture, Data: mustData(t, StartCaptureData{})})

	errMsg, ok := sender.last(MessageError)
	require.True(t, ok, "expected ERROR for failed display acquisition")
	data, ok := errMsg.Data.(ErrorData)
	require.True(t, ok)
	assert.Equal(t, ErrorCodeAcquisition, data.Code)
	assert.Equal(t, internal_type.StateIdle, d.Session().State)
}

func TestLifecycleCommandsWithoutSession(t *testing.T) {
	d, sender := newTestDispatcher(t)

	for _, kind := range []MessageType{MessagePauseCapture, MessageResumeCapture, MessageStopCapture} {
		handle(t, d, Envelope{Type: kind})
	}
	assert.Len(t, sender.byType(MessageError), 3)
}

func TestUnknownMessageType(t *testing.T) {
	d, sender := newTestDispatcher(t)
	handle(t, d, Envelope{Type: "REWIND_CAPTURE"})

	errMsg, ok := sender.last(MessageError)
	require.True(t, ok)
	assert.Equal(t, ErrorCodeBadMessage, errMsg.Data.(ErrorData).Code)
}

func TestOfferRejectedByNonNegotiatingProvider(t *testing.T) {
	d, sender := newTestDispatcher(t)
	handle(t, d, Envelope{Type: MessageWebRTCOffer, Data: mustData(t, WebRTCSessionData{SDP: "v=0"})})

	errMsg, ok := sender.last(MessageError)
	require.True(t, ok)
	assert.Equal(t, ErrorCodeNegotiation, errMsg.Data.(ErrorData).Code)
}

func TestPingPong(t *testing.T) {
	d, sender := newTestDispatcher(t)
	handle(t, d, Envelope{Type: MessagePing})

	pong, ok := sender.last(MessagePong)
	require.True(t, ok)
	assert.NotZero(t, pong.Timestamp)
}

func TestSignalEventsBeforeStartProduceNoBatches(t *testing.T) {
	d, sender := newTestDispatcher(t)

	handle(t, d, Envelope{Type: MessageSignalEvent, Data: mustData(t, SignalEventData{
		Kind: string(internal_type.SignalPointerMove), X: 10, Y: 10,
	})})
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, sender.byType(MessageSignalBatch))
}

func TestPauseGatesSignalDelivery(t *testing.T) {
	d, sender := newTestDispatcher(t)
	ctx := context.Background()

	handle(t, d, Envelope{Type: MessageStartCapture, Data: mustData(t, StartCaptureData{})})
	handle(t, d, Envelope{Type: MessagePauseCapture})
	assert.Equal(t, internal_type.StatePaused, d.Session().State)

	before := len(sender.byType(MessageSignalBatch))
	handle(t, d, Envelope{Type: MessageSignalEvent, Data: mustData(t, SignalEventData{
		Kind: string(internal_type.SignalClick), X: 100, Y: 100,
	})})
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, before, len(sender.byType(MessageSignalBatch)),
		"paused interaction must not produce batches")

	handle(t, d, Envelope{Type: MessageResumeCapture})
	assert.Equal(t, internal_type.StateRecording, d.Session().State)
	require.NoError(t, d.Handle(ctx, Envelope{Type: MessageStopCapture}))
}

func TestStopPersistsSessionAndArtifacts(t *testing.T) {
	logger, err := commons.NewApplicationLogger(commons.Name("test-dispatcher"))
	require.NoError(t, err)
	store, err := internal_store.NewStore(logger, configs.SqliteConfig{
		Path: filepath.Join(t.TempDir(), "capture.db"),
	})
	require.NoError(t, err)

	sender := &recordingSender{}
	provider := internal_media.NewLoopbackProvider(
		internal_media.WithFrameCadence(64, 2*time.Millisecond))
	d := NewDispatcher(logger, testConfig(), provider, store, sender)
	ctx := context.Background()

	handle(t, d, Envelope{Type: MessageStartCapture, Data: mustData(t, StartCaptureData{
		DisplayIntent: "window",
	})})
	sessionID := d.Session().ID
	require.NotEmpty(t, sessionID)

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, d.Handle(ctx, Envelope{Type: MessageStopCapture}))

	record, err := store.Get(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, internal_store.StatusCompleted, record.Status)

	artifacts, err := store.Artifacts(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, string(internal_type.ChannelDisplay), artifacts[0].ChannelKind)
}

func TestShutdownFinalizesActiveSession(t *testing.T) {
	d, sender := newTestDispatcher(t)

	handle(t, d, Envelope{Type: MessageStartCapture, Data: mustData(t, StartCaptureData{})})
	time.Sleep(20 * time.Millisecond)

	d.Shutdown(context.Background())
	_, ok := sender.last(MessageCaptureStopped)
	assert.True(t, ok, "teardown must resolve the in-flight session")
	assert.Equal(t, internal_type.StateIdle, d.Session().State)
}
