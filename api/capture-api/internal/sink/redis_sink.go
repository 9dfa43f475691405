// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_sink

import (
	"context"
	"encoding/json"
	"fmt"

	internal_type "github.com/rapidaai/capture/api/capture-api/internal/type"
	"github.com/rapidaai/capture/pkg/commons"
	"github.com/rapidaai/capture/pkg/configs"
	"github.com/redis/go-redis/v9"
)

// RedisSink publishes every signal batch to a per-session redis channel so
// the analysis engine can subscribe without coupling to the capture
// service.
type RedisSink struct {
	logger commons.Logger
	client *redis.Client
}

func NewRedisSink(logger commons.Logger, cfg configs.RedisConfig) *RedisSink {
	return &RedisSink{
		logger: logger,
		client: redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Password: cfg.Password,
			DB:       cfg.Database,
		}),
	}
}

// ChannelName is the pub/sub channel carrying batches for one session.
func ChannelName(sessionID string) string {
	return "capture:signals:" + sessionID
}

func (s *RedisSink) Deliver(ctx context.Context, batch internal_type.SignalBatch) error {
	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to encode signal batch %d: %w", batch.Seq, err)
	}
	if err := s.client.Publish(ctx, ChannelName(batch.SessionID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish signal batch %d: %w", batch.Seq, err)
	}
	s.logger.Debugf("published signal batch: session=%s seq=%d events=%d",
		batch.SessionID, batch.Seq, len(batch.Events))
	return nil
}

// Close releases the redis connection.
func (s *RedisSink) Close() error {
	return s.client.Close()
}
