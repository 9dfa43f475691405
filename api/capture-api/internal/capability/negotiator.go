// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_capability

import internal_type "github.com/rapidaai/capture/api/capture-api/internal/type"

// Support reports whether the platform can encode a given MIME type.
// Providers implement it from whatever probe the platform offers.
type Support interface {
	IsSupported(mimeType string) bool
}

// SupportFunc adapts a plain function to Support.
type SupportFunc func(mimeType string) bool

func (f SupportFunc) IsSupported(mimeType string) bool { return f(mimeType) }

// Negotiate returns the first candidate the platform reports as supported,
// or "" meaning "let the platform choose". Absence of any supported
// candidate is a valid, non-exceptional result, not an error.
func Negotiate(support Support, candidates []string) string {
	if support == nil {
		return ""
	}
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if support.IsSupported(candidate) {
			return candidate
		}
	}
	return ""
}

// PreferredEncodings is the default candidate order per channel kind,
// most specific codec string first.
func PreferredEncodings(kind internal_type.ChannelKind) []string {
	switch kind {
	case internal_type.ChannelDisplay, internal_type.ChannelCamera:
		return []string{
			"video/webm;codecs=vp9",
			"video/webm;codecs=vp8",
			"video/webm",
			"video/mp4",
		}
	case internal_type.ChannelMicrophone:
		return []string{
			"audio/webm;codecs=opus",
			"audio/webm",
			"audio/ogg;codecs=opus",
		}
	}
	return nil
}

// DefaultMimeType is the observed platform default reported on artifacts
// when negotiation yielded the empty sentinel.
func DefaultMimeType(kind internal_type.ChannelKind) string {
	if kind == internal_type.ChannelMicrophone {
		return "audio/webm"
	}
	return "video/webm"
}
