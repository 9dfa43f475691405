// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_store

import (
	"context"
	"fmt"
	"time"

	internal_type "github.com/rapidaai/capture/api/capture-api/internal/type"
	"github.com/rapidaai/capture/pkg/commons"
	"github.com/rapidaai/capture/pkg/configs"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Store persists capture sessions and their assembled artifacts.
type Store interface {
	// Begin records a started session with status "recording".
	Begin(ctx context.Context, sessionID string, intent internal_type.DisplayIntent, channels int, startedAt time.Time) error

	// Complete atomically transitions a session from "recording" to
	// "completed". Only one concurrent caller can win; a session that
	// already ended stays in its terminal status.
	Complete(ctx context.Context, sessionID string) error

	// Fail marks a session failed with a reason. Terminal like Complete.
	Fail(ctx context.Context, sessionID, reason string) error

	// SaveArtifacts stores the assembled artifacts of a session.
	SaveArtifacts(ctx context.Context, sessionID string, artifacts []internal_type.RecordingArtifact) error

	// Get retrieves a session row regardless of status.
	Get(ctx context.Context, sessionID string) (*SessionRecord, error)

	// Artifacts lists the persisted artifacts of a session in insertion
	// order.
	Artifacts(ctx context.Context, sessionID string) ([]ArtifactRecord, error)
}

type sqliteStore struct {
	db     *gorm.DB
	logger commons.Logger
}

// NewStore opens (and migrates) the sqlite-backed session store.
func NewStore(logger commons.Logger, cfg configs.SqliteConfig) (Store, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open session store at %s: %w", cfg.Path, err)
	}
	if err := db.AutoMigrate(&SessionRecord{}, &ArtifactRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate session store: %w", err)
	}
	return &sqliteStore{db: db, logger: logger}, nil
}

func (s *sqliteStore) Begin(ctx context.Context, sessionID string, intent internal_type.DisplayIntent, channels int, startedAt time.Time) error {
	record := SessionRecord{
		SessionID:     sessionID,
		Status:        StatusRecording,
		DisplayIntent: string(intent),
		ChannelCount:  channels,
		StartedAt:     startedAt,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to persist session %s: %w", sessionID, err)
	}
	s.logger.Debugf("persisted session: %s channels=%d", sessionID, channels)
	return nil
}

func (s *sqliteStore) Complete(ctx context.Context, sessionID string) error {
	return s.finish(ctx, sessionID, StatusCompleted, "")
}

func (s *sqliteStore) Fail(ctx context.Context, sessionID, reason string) error {
	return s.finish(ctx, sessionID, StatusFailed, reason)
}

// finish performs the atomic recording → terminal transition with an
// UPDATE ... WHERE status = 'recording' guard.
func (s *sqliteStore) finish(ctx context.Context, sessionID, status, reason string) error {
	updates := map[string]interface{}{
		"status":   status,
		"ended_at": time.Now(),
	}
	if reason != "" {
		updates["fail_reason"] = reason
	}
	result := s.db.WithContext(ctx).Model(&SessionRecord{}).
		Where("session_id = ? AND status = ?", sessionID, StatusRecording).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to mark session %s %s: %w", sessionID, status, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("session %s not found or already finished", sessionID)
	}
	s.logger.Debugf("session %s marked %s", sessionID, status)
	return nil
}

func (s *sqliteStore) SaveArtifacts(ctx context.Context, sessionID string, artifacts []internal_type.RecordingArtifact) error {
	if len(artifacts) == 0 {
		return nil
	}
	records := make([]ArtifactRecord, 0, len(artifacts))
	for _, artifact := range artifacts {
		records = append(records, ArtifactRecord{
			SessionID:   sessionID,
			ChannelKind: string(artifact.ChannelKind),
			MimeType:    artifact.MimeType,
			ByteSize:    artifact.ByteSize,
			Payload:     artifact.EncodedPayload,
		})
	}
	if err := s.db.WithContext(ctx).Create(&records).Error; err != nil {
		return fmt.Errorf("failed to persist %d artifact(s) for session %s: %w", len(records), sessionID, err)
	}
	return nil
}

func (s *sqliteStore) Get(ctx context.Context, sessionID string) (*SessionRecord, error) {
	var record SessionRecord
	if err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&record).Error; err != nil {
		return nil, fmt.Errorf("session not found: %s: %w", sessionID, err)
	}
	return &record, nil
}

func (s *sqliteStore) Artifacts(ctx context.Context, sessionID string) ([]ArtifactRecord, error) {
	var records []ArtifactRecord
	if err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id asc").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list artifacts for session %s: %w", sessionID, err)
	}
	return records, nil
}
