// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_store

import "time"

const (
	StatusRecording = "recording"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// SessionRecord is the persisted trail of one capture session. Rows are
// never deleted during the session lifecycle; they only transition through
// statuses (recording → completed/failed), so a crash always leaves an
// inspectable row behind.
type SessionRecord struct {
	ID        uint64 `gorm:"primarykey"`
	SessionID string `gorm:"uniqueIndex;size:64"`
	Status    string `gorm:"size:16;index"`

	DisplayIntent string `gorm:"size:16"`
	ChannelCount  int
	// FailReason is set for failed sessions only.
	FailReason string

	StartedAt   time.Time
	EndedAt     *time.Time
	CreatedDate time.Time `gorm:"autoCreateTime"`
	UpdatedDate time.Time `gorm:"autoUpdateTime"`
}

func (SessionRecord) TableName() string { return "capture_sessions" }

// ArtifactRecord is one persisted channel artifact of a completed session.
type ArtifactRecord struct {
	ID          uint64 `gorm:"primarykey"`
	SessionID   string `gorm:"index;size:64"`
	ChannelKind string `gorm:"size:16"`
	MimeType    string `gorm:"size:64"`
	ByteSize    int
	// Payload is the transportable data-URI encoding of the channel data.
	Payload     string    `gorm:"type:text"`
	CreatedDate time.Time `gorm:"autoCreateTime"`
}

func (ArtifactRecord) TableName() string { return "capture_artifacts" }
