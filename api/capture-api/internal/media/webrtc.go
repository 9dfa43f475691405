// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	internal_capability "github.com/rapidaai/capture/api/capture-api/internal/capability"
	internal_type "github.com/rapidaai/capture/api/capture-api/internal/type"
	"github.com/rapidaai/capture/pkg/commons"
)

// Answerer is implemented by providers whose media arrives over a
// negotiated peer connection. The dispatcher routes the collaborator's
// SDP offer here and returns the answer.
type Answerer interface {
	Answer(ctx context.Context, offerSDP string) (string, error)
}

// webrtcProvider ingests remote media tracks sent by the recording
// client over a WebRTC peer connection. The peer connection carries the
// already-captured channels; acquisition here means waiting for the
// corresponding remote track to arrive. Track order follows acquisition
// order: the first video track is the display, a later one the camera.
type webrtcProvider struct {
	logger commons.Logger

	mu sync.Mutex
	pc *webrtc.PeerConnection

	video chan *webrtc.TrackRemote
	audio chan *webrtc.TrackRemote

	// trackWait bounds how long acquisition waits for a remote track.
	trackWait time.Duration
}

// WebRTCOption configures the provider.
type WebRTCOption func(*webrtcProvider)

// WithTrackWait overrides the remote-track arrival deadline.
func WithTrackWait(d time.Duration) WebRTCOption {
	return func(p *webrtcProvider) { p.trackWait = d }
}

// NewWebRTCProvider builds a provider with no peer connection yet; one is
// established on the first Answer call.
func NewWebRTCProvider(logger commons.Logger, opts ...WebRTCOption) Provider {
	p := &webrtcProvider{
		logger:    logger,
		video:     make(chan *webrtc.TrackRemote, 4),
		audio:     make(chan *webrtc.TrackRemote, 4),
		trackWait: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *webrtcProvider) Profile() Profile {
	return Profile{
		Name: "webrtc",
		// The client combines display audio into the display stream when
		// it can; the server sees plain tracks either way.
		DisplayAudio:    false,
		WindowSelection: true,
	}
}

// Support accepts the webm family. RTP payloads are repackaged
// client-side, so mp4 is never produced on this path.
func (p *webrtcProvider) Support() internal_capability.Support {
	return internal_capability.SupportFunc(func(mimeType string) bool {
		return strings.HasPrefix(mimeType, "video/webm") ||
			strings.HasPrefix(mimeType, "audio/webm")
	})
}

// Answer establishes the peer connection from the collaborator's offer
// and returns a non-trickle answer once ICE gathering completes.
func (p *webrtcProvider) Answer(ctx context.Context, offerSDP string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pc != nil {
		return "", errors.New("peer connection already established")
	}

	engine := &webrtc.MediaEngine{}
	if err := engine.RegisterDefaultCodecs(); err != nil {
		return "", fmt.Errorf("failed to register codecs: %w", err)
	}
	api := webrtc.NewAPI(webrtc.WithMediaEngine(engine))
	pc, err := api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return "", fmt.Errorf("failed to create peer connection: %w", err)
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		p.logger.Debugf("remote track arrived: kind=%s codec=%s", track.Kind(), track.Codec().MimeType)
		switch track.Kind() {
		case webrtc.RTPCodecTypeVideo:
			p.offer(p.video, track)
		case webrtc.RTPCodecTypeAudio:
			p.offer(p.audio, track)
		}
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		p.logger.Debugf("peer connection state: %s", state)
	})

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  offerSDP,
	}); err != nil {
		pc.Close()
		return "", fmt.Errorf("failed to apply offer: %w", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		return "", fmt.Errorf("failed to create answer: %w", err)
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		pc.Close()
		return "", fmt.Errorf("failed to apply answer: %w", err)
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		pc.Close()
		return "", ctx.Err()
	}

	p.pc = pc
	return pc.LocalDescription().SDP, nil
}

func (p *webrtcProvider) offer(ch chan *webrtc.TrackRemote, track *webrtc.TrackRemote) {
	select {
	case ch <- track:
	default:
		p.logger.Warnw("remote track dropped, acquisition queue full",
			"kind", track.Kind().String(),
		)
	}
}

func (p *webrtcProvider) OpenDisplay(ctx context.Context, constraint DisplayConstraint) (internal_type.MediaStream, error) {
	track, err := p.await(ctx, p.video)
	if err != nil {
		return nil, fmt.Errorf("display track: %w", err)
	}
	return newRemoteStream(track), nil
}

func (p *webrtcProvider) OpenMicrophone(ctx context.Context) (internal_type.MediaStream, error) {
	track, err := p.await(ctx, p.audio)
	if err != nil {
		return nil, fmt.Errorf("microphone track: %w", err)
	}
	return newRemoteStream(track), nil
}

func (p *webrtcProvider) OpenCamera(ctx context.Context) (internal_type.MediaStream, error) {
	track, err := p.await(ctx, p.video)
	if err != nil {
		return nil, fmt.Errorf("camera track: %w", err)
	}
	return newRemoteStream(track), nil
}

func (p *webrtcProvider) await(ctx context.Context, ch chan *webrtc.TrackRemote) (*webrtc.TrackRemote, error) {
	p.mu.Lock()
	established := p.pc != nil
	p.mu.Unlock()
	if !established {
		return nil, errors.New("no peer connection established")
	}

	ctx, cancel := context.WithTimeout(ctx, p.trackWait)
	defer cancel()
	select {
	case track := <-ch:
		return track, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("no remote track arrived: %w", ctx.Err())
	}
}

// Close tears down the peer connection and every remote track with it.
func (p *webrtcProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pc == nil {
		return nil
	}
	err := p.pc.Close()
	p.pc = nil
	return err
}

// =============================================================================
// Remote track adapters
// =============================================================================

type remoteTrack struct {
	remote *webrtc.TrackRemote

	mu     sync.Mutex
	closed bool
}

func (t *remoteTrack) Kind() string {
	return t.remote.Kind().String()
}

// Read returns the next RTP payload as one opaque fragment. Read
// deadlines are cycled so ctx cancellation and Stop are observed without
// a dedicated pump goroutine.
func (t *remoteTrack) Read(ctx context.Context) ([]byte, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		t.mu.Lock()
		closed := t.closed
		t.mu.Unlock()
		if closed {
			return nil, io.EOF
		}

		if err := t.remote.SetReadDeadline(time.Now().Add(200 * time.Millisecond)); err != nil {
			return nil, err
		}
		packet, _, err := t.remote.ReadRTP()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, err
		}
		if len(packet.Payload) == 0 {
			continue
		}
		return packet.Payload, nil
	}
}

func (t *remoteTrack) Stop() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
}

type remoteStream struct {
	id     string
	tracks []internal_type.Track

	stopOnce sync.Once
}

func newRemoteStream(track *webrtc.TrackRemote) internal_type.MediaStream {
	return &remoteStream{
		id:     uuid.NewString(),
		tracks: []internal_type.Track{&remoteTrack{remote: track}},
	}
}

func (s *remoteStream) ID() string { return s.id }

func (s *remoteStream) Tracks() []internal_type.Track { return s.tracks }

func (s *remoteStream) Stop() {
	s.stopOnce.Do(func() {
		for _, track := range s.tracks {
			track.Stop()
		}
	})
}
