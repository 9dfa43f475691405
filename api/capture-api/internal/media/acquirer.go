// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_media

import (
	"context"
	"fmt"

	internal_type "github.com/rapidaai/capture/api/capture-api/internal/type"
	"github.com/rapidaai/capture/pkg/commons"
)

// Acquirer acquires the channel set for one capture session: the mandatory
// display channel plus whichever optional channels were requested and
// could actually be opened.
type Acquirer struct {
	logger   commons.Logger
	provider Provider
}

func NewAcquirer(logger commons.Logger, provider Provider) *Acquirer {
	return &Acquirer{
		logger:   logger,
		provider: provider,
	}
}

// Provider returns the platform provider backing this acquirer.
func (a *Acquirer) Provider() Provider {
	return a.provider
}

// Acquire opens the display channel first — failure there is fatal and
// surfaces as ErrMandatoryAcquisition. Optional channels are attempted
// independently afterwards; each failure is logged and absorbed, leaving
// the channel absent without affecting the rest of the set. Any stream
// already opened when an abort happens is released before the error
// propagates.
func (a *Acquirer) Acquire(ctx context.Context, req internal_type.AcquireRequest) ([]*internal_type.MediaChannel, error) {
	profile := a.provider.Profile()
	constraint := ResolveDisplayConstraint(profile, req.DisplayIntent)
	a.logger.Debugw("acquiring channels",
		"profile", profile.Name,
		"surface", constraint.Surface,
		"displayAudio", constraint.WithAudio,
		"wantMicrophone", req.WantMicrophone,
		"wantCamera", req.WantCamera,
	)

	display, err := a.provider.OpenDisplay(ctx, constraint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internal_type.ErrMandatoryAcquisition, err)
	}

	channels := []*internal_type.MediaChannel{{
		Kind:   internal_type.ChannelDisplay,
		Stream: display,
	}}

	if req.WantMicrophone {
		if stream, err := a.provider.OpenMicrophone(ctx); err != nil {
			a.logger.Warnf("microphone acquisition failed, continuing without it: %v", err)
		} else {
			channels = append(channels, &internal_type.MediaChannel{
				Kind:   internal_type.ChannelMicrophone,
				Stream: stream,
			})
		}
	}

	if req.WantCamera {
		if stream, err := a.provider.OpenCamera(ctx); err != nil {
			a.logger.Warnf("camera acquisition failed, continuing without it: %v", err)
		} else {
			channels = append(channels, &internal_type.MediaChannel{
				Kind:   internal_type.ChannelCamera,
				Stream: stream,
			})
		}
	}

	a.logger.Infof("acquired %d channel(s), display surface=%s", len(channels), constraint.Surface)
	return channels, nil
}

// Release stops every stream in the channel set. MediaStream.Stop is
// exactly-once, so Release itself is safe to call on any abort path.
func Release(channels []*internal_type.MediaChannel) {
	for _, ch := range channels {
		if ch.Stream != nil {
			ch.Stream.Stop()
		}
	}
}
