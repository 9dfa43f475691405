// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package configs

import "time"

// RedisConfig is the connection config for the optional signal fan-out
// publisher.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	Database int    `mapstructure:"database"`
	Enabled  bool   `mapstructure:"enabled"`
}

// SqliteConfig locates the session store database file.
type SqliteConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// CaptureConfig carries the recording tunables shared by the orchestrator
// and the signal capturer. All durations have working defaults; they are
// exposed so operators can trade event volume against trajectory fidelity.
type CaptureConfig struct {
	// ChunkFlushInterval is how often every channel recorder emits a chunk.
	// Identical for all channels of a session.
	ChunkFlushInterval time.Duration `mapstructure:"chunk_flush_interval"`
	// SignalFlushInterval is the signal batch delivery cadence.
	SignalFlushInterval time.Duration `mapstructure:"signal_flush_interval"`
	// PointerThrottle is the minimum interval between accepted pointer
	// move samples.
	PointerThrottle time.Duration `mapstructure:"pointer_throttle"`
	// VelocityGapLimit is the elapsed-time ceiling above which a pointer
	// sample no longer updates smoothed velocity (tab backgrounding etc.).
	VelocityGapLimit time.Duration `mapstructure:"velocity_gap_limit"`
	// SmoothingAlpha is the exponential smoothing factor for velocity.
	SmoothingAlpha float64 `mapstructure:"smoothing_alpha"`
	// StopGrace bounds how long the orchestrator waits for channel
	// recorders to complete before force-finalizing with whatever chunks
	// were collected.
	StopGrace time.Duration `mapstructure:"stop_grace"`
	// ResetVelocityOnResume resets smoothed velocity and position when a
	// paused session resumes, avoiding a stale-velocity jump after long
	// pauses.
	ResetVelocityOnResume bool `mapstructure:"reset_velocity_on_resume"`
}

// Defaulted returns c with every zero field replaced by its default.
func (c CaptureConfig) Defaulted() CaptureConfig {
	if c.ChunkFlushInterval <= 0 {
		c.ChunkFlushInterval = 100 * time.Millisecond
	}
	if c.SignalFlushInterval <= 0 {
		c.SignalFlushInterval = 100 * time.Millisecond
	}
	if c.PointerThrottle <= 0 {
		c.PointerThrottle = 8 * time.Millisecond
	}
	if c.VelocityGapLimit <= 0 {
		c.VelocityGapLimit = 100 * time.Millisecond
	}
	if c.SmoothingAlpha <= 0 || c.SmoothingAlpha > 1 {
		c.SmoothingAlpha = 0.3
	}
	if c.StopGrace <= 0 {
		c.StopGrace = 5 * time.Second
	}
	return c
}
