// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_media

import (
	"context"

	internal_capability "github.com/rapidaai/capture/api/capture-api/internal/capability"
	internal_type "github.com/rapidaai/capture/api/capture-api/internal/type"
)

// Profile is the capability profile resolved once per acquisition. It
// determines which constraint shape is requested from the platform, never
// whether acquisition is attempted.
type Profile struct {
	// Name identifies the platform profile for logging.
	Name string
	// DisplayAudio reports whether the platform can combine audio capture
	// with display capture in one stream.
	DisplayAudio bool
	// WindowSelection reports whether the platform can express a
	// window-level display intent. When false, a window intent degrades to
	// the coarse monitor constraint.
	WindowSelection bool
}

// DisplayConstraint is the platform-facing constraint shape for the
// display channel, derived from the profile and the requested intent.
type DisplayConstraint struct {
	Surface   internal_type.DisplayIntent
	WithAudio bool
}

// Provider abstracts the platform media layer. Each implementation maps
// one capability profile onto concrete stream acquisition.
type Provider interface {
	Profile() Profile
	// Support probes encoding capability for the negotiator.
	Support() internal_capability.Support

	OpenDisplay(ctx context.Context, constraint DisplayConstraint) (internal_type.MediaStream, error)
	OpenMicrophone(ctx context.Context) (internal_type.MediaStream, error)
	OpenCamera(ctx context.Context) (internal_type.MediaStream, error)
}

// ResolveDisplayConstraint folds the requested intent through the profile:
// unsupported window selection degrades to monitor, display audio is only
// requested where the platform can deliver it.
func ResolveDisplayConstraint(profile Profile, intent internal_type.DisplayIntent) DisplayConstraint {
	surface := intent
	if surface == "" {
		surface = internal_type.DisplayIntentMonitor
	}
	if surface == internal_type.DisplayIntentWindow && !profile.WindowSelection {
		surface = internal_type.DisplayIntentMonitor
	}
	return DisplayConstraint{
		Surface:   surface,
		WithAudio: profile.DisplayAudio,
	}
}
