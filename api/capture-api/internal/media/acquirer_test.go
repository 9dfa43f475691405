// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_media

import (
	"context"
	"errors"
	"io"
	"testing"

	internal_type "github.com/rapidaai/capture/api/capture-api/internal/type"
	"github.com/rapidaai/capture/pkg/commons"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAcquirer(t *testing.T, opts ...LoopbackOption) *Acquirer {
	t.Helper()
	logger, err := commons.NewApplicationLogger(commons.Name("test-acquirer"))
	require.NoError(t, err)
	return NewAcquirer(logger, NewLoopbackProvider(opts...))
}

func kinds(channels []*internal_type.MediaChannel) []internal_type.ChannelKind {
	out := make([]internal_type.ChannelKind, 0, len(channels))
	for _, ch := range channels {
		out = append(out, ch.Kind)
	}
	return out
}

func TestAcquire_AllChannels(t *testing.T) {
	a := newTestAcquirer(t)

	channels, err := a.Acquire(context.Background(), internal_type.AcquireRequest{
		WantMicrophone: true,
		WantCamera:     true,
		DisplayIntent:  internal_type.DisplayIntentMonitor,
	})
	require.NoError(t, err)
	defer Release(channels)

	assert.Equal(t, []internal_type.ChannelKind{
		internal_type.ChannelDisplay,
		internal_type.ChannelMicrophone,
		internal_type.ChannelCamera,
	}, kinds(channels))
	for _, ch := range channels {
		assert.NotNil(t, ch.Stream, "channel %s must own a stream", ch.Kind)
		assert.NotEmpty(t, ch.Stream.Tracks())
	}
}

func TestAcquire_DisplayOnlyIsValid(t *testing.T) {
	a := newTestAcquirer(t)

	channels, err := a.Acquire(context.Background(), internal_type.AcquireRequest{})
	require.NoError(t, err)
	defer Release(channels)

	assert.Equal(t, []internal_type.ChannelKind{internal_type.ChannelDisplay}, kinds(channels))
}

// Scenario: microphone requested but denied — acquisition succeeds with
// only the display channel.
func TestAcquire_MicrophoneDeniedIsAbsorbed(t *testing.T) {
	a := newTestAcquirer(t, WithMicrophoneFailure(errors.New("permission denied")))

	channels, err := a.Acquire(context.Background(), internal_type.AcquireRequest{
		WantMicrophone: true,
	})
	require.NoError(t, err)
	defer Release(channels)

	assert.Equal(t, []internal_type.ChannelKind{internal_type.ChannelDisplay}, kinds(channels))
}

func TestAcquire_OptionalFailuresAreIndependent(t *testing.T) {
	a := newTestAcquirer(t, WithMicrophoneFailure(errors.New("denied")))

	channels, err := a.Acquire(context.Background(), internal_type.AcquireRequest{
		WantMicrophone: true,
		WantCamera:     true,
	})
	require.NoError(t, err)
	defer Release(channels)

	// Camera still acquired even though the microphone attempt failed.
	assert.Equal(t, []internal_type.ChannelKind{
		internal_type.ChannelDisplay,
		internal_type.ChannelCamera,
	}, kinds(channels))
}

// Scenario: display acquisition itself fails — the whole start aborts with
// the mandatory-acquisition error and no channels exist.
func TestAcquire_DisplayFailureIsFatal(t *testing.T) {
	a := newTestAcquirer(t,
		WithDisplayFailure(errors.New("screen capture unavailable")),
	)

	channels, err := a.Acquire(context.Background(), internal_type.AcquireRequest{
		WantMicrophone: true,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, internal_type.ErrMandatoryAcquisition)
	assert.Nil(t, channels)
}

func TestResolveDisplayConstraint_WindowDegradesWithoutSelection(t *testing.T) {
	profile := Profile{Name: "coarse", WindowSelection: false, DisplayAudio: false}

	constraint := ResolveDisplayConstraint(profile, internal_type.DisplayIntentWindow)
	assert.Equal(t, internal_type.DisplayIntentMonitor, constraint.Surface)
	assert.False(t, constraint.WithAudio)
}

func TestResolveDisplayConstraint_EmptyIntentDefaultsToMonitor(t *testing.T) {
	constraint := ResolveDisplayConstraint(Profile{WindowSelection: true}, "")
	assert.Equal(t, internal_type.DisplayIntentMonitor, constraint.Surface)
}

func TestResolveDisplayConstraint_WindowKeptWhenSupported(t *testing.T) {
	profile := Profile{WindowSelection: true, DisplayAudio: true}

	constraint := ResolveDisplayConstraint(profile, internal_type.DisplayIntentWindow)
	assert.Equal(t, internal_type.DisplayIntentWindow, constraint.Surface)
	assert.True(t, constraint.WithAudio)
}

func TestStreamStop_IsExactlyOnce(t *testing.T) {
	a := newTestAcquirer(t)
	channels, err := a.Acquire(context.Background(), internal_type.AcquireRequest{})
	require.NoError(t, err)

	stream := channels[0].Stream
	stream.Stop()
	// Second stop must be a no-op, not a double-close panic.
	assert.NotPanics(t, func() { stream.Stop() })

	// After stop, track reads terminate with EOF once buffered frames
	// are drained.
	track := stream.Tracks()[0]
	var readErr error
	for i := 0; i < 128; i++ {
		if _, readErr = track.Read(context.Background()); readErr != nil {
			break
		}
	}
	assert.ErrorIs(t, readErr, io.EOF)
}
