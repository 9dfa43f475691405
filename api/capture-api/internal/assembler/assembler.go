// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_assembler

import (
	"bytes"
	"strings"

	internal_capability "github.com/rapidaai/capture/api/capture-api/internal/capability"
	internal_type "github.com/rapidaai/capture/api/capture-api/internal/type"
	"github.com/rapidaai/capture/pkg/commons"
	"github.com/vincent-petithory/dataurl"
)

// Assembler concatenates each channel's chunk sequence into one
// transportable artifact. Channels that started but produced no data still
// yield a zero-size artifact, so callers can distinguish "channel absent"
// (no artifact) from "channel present but empty".
type Assembler struct {
	logger commons.Logger
}

func NewAssembler(logger commons.Logger) *Assembler {
	return &Assembler{logger: logger}
}

// Assemble builds one artifact per channel, in channel order, then clears
// each channel's chunk sequence. The payload is a self-describing data URI
// carrying the concatenated chunks under the channel's negotiated (or
// observed default) encoding.
func (a *Assembler) Assemble(channels []*internal_type.MediaChannel) []internal_type.RecordingArtifact {
	artifacts := make([]internal_type.RecordingArtifact, 0, len(channels))
	for _, channel := range channels {
		artifacts = append(artifacts, a.assembleOne(channel))
		channel.Chunks = nil
	}
	return artifacts
}

func (a *Assembler) assembleOne(channel *internal_type.MediaChannel) internal_type.RecordingArtifact {
	var payload bytes.Buffer
	for _, chunk := range channel.Chunks {
		payload.Write(chunk)
	}

	mimeType := channel.Encoding
	if mimeType == "" {
		mimeType = internal_capability.DefaultMimeType(channel.Kind)
	}

	a.logger.Infof("assembled artifact: channel=%s mime=%s chunks=%d bytes=%d",
		channel.Kind, mimeType, len(channel.Chunks), payload.Len())

	base, params := splitMime(mimeType)
	return internal_type.RecordingArtifact{
		ChannelKind:    channel.Kind,
		MimeType:       mimeType,
		ByteSize:       payload.Len(),
		EncodedPayload: dataurl.New(payload.Bytes(), base, params...).String(),
	}
}

// splitMime separates "video/webm;codecs=vp9" into the bare media type and
// dataurl parameter pairs.
func splitMime(mimeType string) (string, []string) {
	parts := strings.Split(mimeType, ";")
	base := strings.TrimSpace(parts[0])
	var params []string
	for _, part := range parts[1:] {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found || key == "" {
			continue
		}
		params = append(params, key, value)
	}
	return base, params
}
