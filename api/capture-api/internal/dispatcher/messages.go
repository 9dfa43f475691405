// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_dispatcher

import (
	"encoding/json"

	internal_session "github.com/rapidaai/capture/api/capture-api/internal/session"
	internal_type "github.com/rapidaai/capture/api/capture-api/internal/type"
)

// =============================================================================
// Control-message types
// =============================================================================

// MessageType tags an envelope and decides what Data carries.
type MessageType string

const (
	// Client -> subsystem
	MessageStartCapture      MessageType = "START_CAPTURE"      // Data: StartCaptureData
	MessagePauseCapture      MessageType = "PAUSE_CAPTURE"      // Data: nil
	MessageResumeCapture     MessageType = "RESUME_CAPTURE"     // Data: nil
	MessageStopCapture       MessageType = "STOP_CAPTURE"       // Data: nil
	MessagePermissionsResult MessageType = "PERMISSIONS_RESULT" // Data: PermissionsResultData
	MessageSignalEvent       MessageType = "SIGNAL_EVENT"       // Data: SignalEventData
	MessageWebRTCOffer       MessageType = "WEBRTC_OFFER"       // Data: WebRTCSessionData

	// Subsystem -> client
	MessageCaptureStarted MessageType = "CAPTURE_STARTED" // Data: session.SessionInfo
	MessageCaptureStopped MessageType = "CAPTURE_STOPPED" // Data: CaptureStoppedData
	MessageSignalBatch    MessageType = "SIGNAL_BATCH"    // Data: type.SignalBatch
	MessageWebRTCAnswer   MessageType = "WEBRTC_ANSWER"   // Data: WebRTCSessionData
	MessageError          MessageType = "ERROR"           // Data: ErrorData

	// Bidirectional keepalive
	MessagePing MessageType = "PING"
	MessagePong MessageType = "PONG"
)

// =============================================================================
// Envelopes
// =============================================================================

// Envelope is an incoming control message; Data is decoded per Type.
type Envelope struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"timestamp,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Outbound is an outgoing message with already-typed data.
type Outbound struct {
	Type      MessageType `json:"type"`
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// =============================================================================
// Per-type payloads
// =============================================================================

// StartCaptureData selects the optional channels and the display surface
// for a new session. SurfaceWidth/Height are the observed surface pixel
// dimensions used to normalize interaction coordinates.
type StartCaptureData struct {
	WantMicrophone bool   `json:"wantMicrophone"`
	WantCamera     bool   `json:"wantCamera"`
	DisplayIntent  string `json:"displayIntent,omitempty"`

	SurfaceWidth  float64 `json:"surfaceWidth,omitempty"`
	SurfaceHeight float64 `json:"surfaceHeight,omitempty"`
}

// PermissionsResultData reports the outcome of the permission-request
// flow. It constrains the optional channels of subsequent starts.
type PermissionsResultData struct {
	HasMicrophone bool `json:"hasMicrophone"`
	HasCamera     bool `json:"hasCamera"`
}

// SignalEventData is one raw interaction sample from the observed
// surface, in surface pixel coordinates.
type SignalEventData struct {
	Kind    string  `json:"kind"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Button  int     `json:"button,omitempty"`
	DeltaX  float64 `json:"deltaX,omitempty"`
	DeltaY  float64 `json:"deltaY,omitempty"`
	BoundsX float64 `json:"boundsX,omitempty"`
	BoundsY float64 `json:"boundsY,omitempty"`
	BoundsW float64 `json:"boundsW,omitempty"`
	BoundsH float64 `json:"boundsH,omitempty"`
	Target  string  `json:"target,omitempty"`
}

// WebRTCSessionData carries one SDP description for media negotiation.
type WebRTCSessionData struct {
	SDP string `json:"sdp"`
}

// CaptureStoppedData resolves a stop with the assembled artifacts.
type CaptureStoppedData struct {
	Session   internal_session.SessionInfo      `json:"session"`
	Artifacts []internal_type.RecordingArtifact `json:"artifacts"`
}

// ErrorData reports a rejected operation.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	ErrorCodeAcquisition = "acquisition_failed"
	ErrorCodeBusy        = "session_busy"
	ErrorCodeNotActive   = "session_not_active"
	ErrorCodeBadMessage  = "bad_message"
	ErrorCodeNegotiation = "negotiation_failed"
)
