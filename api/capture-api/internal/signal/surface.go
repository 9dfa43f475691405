// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_signal

import internal_type "github.com/rapidaai/capture/api/capture-api/internal/type"

// RawEvent is one unnormalized interaction sample as delivered by the
// observed surface, in surface pixel coordinates.
type RawEvent struct {
	Kind   internal_type.SignalKind
	X, Y   float64
	Button int
	DeltaX float64
	DeltaY float64
	// Bounds carries the focused element rectangle for focus changes, in
	// surface pixels.
	BoundsX, BoundsY, BoundsW, BoundsH float64
	Target                             string
}

// Surface is the observed input surface. Subscribe registers a listener
// and returns its deterministic teardown; implementations must not invoke
// the listener after cancel returns.
type Surface interface {
	Subscribe(listener func(RawEvent)) (cancel func())
	// Bounds returns the current surface dimensions used to normalize
	// coordinates.
	Bounds() (width, height float64)
}
