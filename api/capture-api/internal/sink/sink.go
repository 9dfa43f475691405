// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_sink

import (
	"context"

	internal_type "github.com/rapidaai/capture/api/capture-api/internal/type"
	"github.com/rapidaai/capture/pkg/commons"
)

// BatchSink receives signal batches in capture order. The downstream
// analysis engine is reached exclusively through this contract.
type BatchSink interface {
	Deliver(ctx context.Context, batch internal_type.SignalBatch) error
}

// SinkFunc adapts a function to BatchSink.
type SinkFunc func(ctx context.Context, batch internal_type.SignalBatch) error

func (f SinkFunc) Deliver(ctx context.Context, batch internal_type.SignalBatch) error {
	return f(ctx, batch)
}

// MultiSink fans one batch out to several sinks. Delivery failures are
// absorbed per sink so one slow or broken consumer never blocks the
// capture path for the others.
type MultiSink struct {
	logger commons.Logger
	sinks  []BatchSink
}

func NewMultiSink(logger commons.Logger, sinks ...BatchSink) *MultiSink {
	return &MultiSink{logger: logger, sinks: sinks}
}

func (m *MultiSink) Deliver(ctx context.Context, batch internal_type.SignalBatch) error {
	for _, sink := range m.sinks {
		if err := sink.Deliver(ctx, batch); err != nil {
			m.logger.Warnw("signal batch delivery failed",
				"session", batch.SessionID,
				"seq", batch.Seq,
				"error", err,
			)
		}
	}
	return nil
}
