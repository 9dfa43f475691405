// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_type

import "errors"

var (
	// ErrMandatoryAcquisition is the only error that escapes the
	// orchestrator boundary: the display channel could not be acquired, so
	// the start sequence aborts and the session returns to idle.
	ErrMandatoryAcquisition = errors.New("mandatory display acquisition failed")

	// ErrSessionBusy rejects a start while another session is active.
	ErrSessionBusy = errors.New("a capture session is already active")

	// ErrSessionNotActive rejects lifecycle commands without an active
	// session.
	ErrSessionNotActive = errors.New("no active capture session")
)
