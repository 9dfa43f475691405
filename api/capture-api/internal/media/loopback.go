// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_media

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	internal_capability "github.com/rapidaai/capture/api/capture-api/internal/capability"
	internal_type "github.com/rapidaai/capture/api/capture-api/internal/type"
)

// loopbackProvider is an in-process synthetic media provider. It backs the
// service's dry-run mode and the package tests: streams produce
// deterministic frames on a fixed cadence without touching any platform
// capture API.
type loopbackProvider struct {
	profile   Profile
	frameSize int
	frameRate time.Duration

	mu             sync.Mutex
	failDisplay    error
	failMicrophone error
	failCamera     error
}

// LoopbackOption configures the loopback provider.
type LoopbackOption func(*loopbackProvider)

// WithLoopbackProfile overrides the default capability profile.
func WithLoopbackProfile(profile Profile) LoopbackOption {
	return func(p *loopbackProvider) { p.profile = profile }
}

// WithDisplayFailure makes display acquisition fail with err.
func WithDisplayFailure(err error) LoopbackOption {
	return func(p *loopbackProvider) { p.failDisplay = err }
}

// WithMicrophoneFailure makes microphone acquisition fail with err.
func WithMicrophoneFailure(err error) LoopbackOption {
	return func(p *loopbackProvider) { p.failMicrophone = err }
}

// WithCameraFailure makes camera acquisition fail with err.
func WithCameraFailure(err error) LoopbackOption {
	return func(p *loopbackProvider) { p.failCamera = err }
}

// WithFrameCadence overrides frame size and production interval.
func WithFrameCadence(size int, interval time.Duration) LoopbackOption {
	return func(p *loopbackProvider) {
		p.frameSize = size
		p.frameRate = interval
	}
}

// NewLoopbackProvider builds a synthetic provider with a permissive
// default profile.
func NewLoopbackProvider(opts ...LoopbackOption) Provider {
	p := &loopbackProvider{
		profile: Profile{
			Name:            "loopback",
			DisplayAudio:    true,
			WindowSelection: true,
		},
		frameSize: 256,
		frameRate: 10 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *loopbackProvider) Profile() Profile {
	return p.profile
}

// Support reports every webm flavour as encodable; the loopback platform
// has no real encoder so mp4 is the one thing it declines.
func (p *loopbackProvider) Support() internal_capability.Support {
	return internal_capability.SupportFunc(func(mimeType string) bool {
		return mimeType != "video/mp4"
	})
}

func (p *loopbackProvider) OpenDisplay(ctx context.Context, constraint DisplayConstraint) (internal_type.MediaStream, error) {
	if p.failDisplay != nil {
		return nil, p.failDisplay
	}
	tracks := []internal_type.Track{p.newTrack("video", 0xD1)}
	if constraint.WithAudio {
		tracks = append(tracks, p.newTrack("audio", 0xD2))
	}
	return newLoopbackStream(tracks), nil
}

func (p *loopbackProvider) OpenMicrophone(ctx context.Context) (internal_type.MediaStream, error) {
	if p.failMicrophone != nil {
		return nil, p.failMicrophone
	}
	return newLoopbackStream([]internal_type.Track{p.newTrack("audio", 0xA1)}), nil
}

func (p *loopbackProvider) OpenCamera(ctx context.Context) (internal_type.MediaStream, error) {
	if p.failCamera != nil {
		return nil, p.failCamera
	}
	return newLoopbackStream([]internal_type.Track{p.newTrack("video", 0xC1)}), nil
}

func (p *loopbackProvider) newTrack(kind string, fill byte) *loopbackTrack {
	t := &loopbackTrack{
		kind:   kind,
		frames: make(chan []byte, 64),
		done:   make(chan struct{}),
	}
	go t.pump(p.frameSize, p.frameRate, fill)
	return t
}

// loopbackTrack produces deterministic frames until stopped.
type loopbackTrack struct {
	kind     string
	frames   chan []byte
	done     chan struct{}
	stopOnce sync.Once
}

func (t *loopbackTrack) pump(size int, interval time.Duration, fill byte) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	seq := byte(0)
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			frame := make([]byte, size)
			for i := range frame {
				frame[i] = fill
			}
			frame[0] = seq
			seq++
			select {
			case t.frames <- frame:
			default:
				// consumer is behind; drop the frame rather than block
			}
		}
	}
}

func (t *loopbackTrack) Kind() string { return t.kind }

func (t *loopbackTrack) Read(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-t.frames:
		return frame, nil
	case <-t.done:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *loopbackTrack) Stop() {
	t.stopOnce.Do(func() { close(t.done) })
}

// loopbackStream groups tracks and guards exactly-once release.
type loopbackStream struct {
	id       string
	tracks   []internal_type.Track
	stopOnce sync.Once
}

func newLoopbackStream(tracks []internal_type.Track) *loopbackStream {
	return &loopbackStream{
		id:     fmt.Sprintf("loopback-%s", uuid.New().String()),
		tracks: tracks,
	}
}

func (s *loopbackStream) ID() string { return s.id }

func (s *loopbackStream) Tracks() []internal_type.Track { return s.tracks }

func (s *loopbackStream) Stop() {
	s.stopOnce.Do(func() {
		for _, t := range s.tracks {
			t.Stop()
		}
	})
}
