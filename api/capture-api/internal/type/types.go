// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_type

import "time"

// ChannelKind identifies one independently acquired and recorded media
// source.
type ChannelKind string

const (
	ChannelDisplay    ChannelKind = "display"
	ChannelMicrophone ChannelKind = "microphone"
	ChannelCamera     ChannelKind = "camera"
)

// SessionState is the capture session lifecycle state.
type SessionState string

const (
	StateIdle      SessionState = "idle"
	StateStarting  SessionState = "starting"
	StateRecording SessionState = "recording"
	StatePaused    SessionState = "paused"
	StateStopping  SessionState = "stopping"
	StateStopped   SessionState = "stopped"
)

// DisplayIntent expresses what part of the screen the display channel
// should cover. Capability profiles decide how (or whether) the intent can
// be expressed to the platform; they never decide whether acquisition is
// attempted.
type DisplayIntent string

const (
	DisplayIntentWindow  DisplayIntent = "window"
	DisplayIntentMonitor DisplayIntent = "monitor"
)

// AcquireRequest selects which optional channels to attempt. The display
// channel is always acquired.
type AcquireRequest struct {
	WantMicrophone bool
	WantCamera     bool
	DisplayIntent  DisplayIntent
}

// MediaChannel is one recordable source: its acquired stream, the
// negotiated encoding (empty means platform default) and the chunk
// sequence collected while recording. The channel exclusively owns its
// stream; chunks are append-only until assembly.
type MediaChannel struct {
	Kind     ChannelKind
	Stream   MediaStream
	Encoding string
	Chunks   [][]byte
}

// ChunkBytes returns the total size of all appended chunks.
func (c *MediaChannel) ChunkBytes() int {
	total := 0
	for _, chunk := range c.Chunks {
		total += len(chunk)
	}
	return total
}

// SignalKind is the interaction sample kind.
type SignalKind string

const (
	SignalPointerMove  SignalKind = "pointer_move"
	SignalPointerEnter SignalKind = "pointer_enter"
	SignalPointerLeave SignalKind = "pointer_leave"
	SignalClick        SignalKind = "click"
	SignalFocusChange  SignalKind = "focus_change"
	SignalScroll       SignalKind = "scroll"
)

// Point is a normalized coordinate pair, each component in [0, 1].
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is a normalized bounding rectangle.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// SignalEvent is one normalized interaction sample. TimestampUs is
// microseconds relative to the session reference time and is monotonically
// non-decreasing within a session.
type SignalEvent struct {
	Kind        SignalKind `json:"kind"`
	Position    Point      `json:"position"`
	TimestampUs int64      `json:"timestampUs"`

	// Kind-specific payloads.
	Velocity *Point  `json:"velocity,omitempty"` // pointer_move
	Button   *int    `json:"button,omitempty"`   // click
	Bounds   *Rect   `json:"bounds,omitempty"`   // focus_change
	Delta    *Point  `json:"delta,omitempty"`    // scroll
	Target   *string `json:"target,omitempty"`   // focus_change
}

// SignalBatch is an insertion-ordered group of signal events drained from
// the capture buffer on a fixed cadence or on session stop.
type SignalBatch struct {
	SessionID string        `json:"sessionId"`
	Seq       uint64        `json:"seq"`
	Events    []SignalEvent `json:"events"`
	FlushedAt time.Time     `json:"flushedAt"`
	Final     bool          `json:"final"`
}

// RecordingArtifact is the assembled, transportable output of one recorded
// channel. EncodedPayload is a self-describing data URI so the artifact
// crosses process boundaries without extra framing.
type RecordingArtifact struct {
	ChannelKind    ChannelKind `json:"channelKind"`
	MimeType       string      `json:"mimeType"`
	ByteSize       int         `json:"byteSize"`
	EncodedPayload string      `json:"encodedPayload"`
}
