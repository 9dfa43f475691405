// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package capture_api

import (
	"io"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/rapidaai/capture/api/capture-api/config"
	internal_dispatcher "github.com/rapidaai/capture/api/capture-api/internal/dispatcher"
	internal_media "github.com/rapidaai/capture/api/capture-api/internal/media"
	internal_session "github.com/rapidaai/capture/api/capture-api/internal/session"
	internal_sink "github.com/rapidaai/capture/api/capture-api/internal/sink"
	internal_store "github.com/rapidaai/capture/api/capture-api/internal/store"
	internal_type "github.com/rapidaai/capture/api/capture-api/internal/type"
	"github.com/rapidaai/capture/pkg/commons"
)

var captureUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// CaptureApi hosts the capture subsystem boundary: one websocket
// dispatcher per connected collaborator plus the status-polling route.
// It owns the session store and the optional stream sinks, so callers
// outside this service only hand over configuration.
type CaptureApi struct {
	cfg         *config.AppConfig
	logger      commons.Logger
	newProvider func() internal_media.Provider
	store       internal_store.Store
	extra       []internal_sink.BatchSink

	mu      sync.Mutex
	current *internal_dispatcher.Dispatcher
}

// NewCaptureApi wires the capture subsystem from application config:
// the sqlite session store, the redis stream sink when enabled, and a
// per-connection media provider factory (synthetic loopback or WebRTC
// ingestion depending on cfg.Loopback).
func NewCaptureApi(cfg *config.AppConfig, logger commons.Logger) (*CaptureApi, error) {
	store, err := internal_store.NewStore(logger, cfg.SqliteConfig)
	if err != nil {
		return nil, err
	}

	var extra []internal_sink.BatchSink
	if cfg.RedisConfig.Enabled {
		extra = append(extra, internal_sink.NewRedisSink(logger, cfg.RedisConfig))
	}

	newProvider := func() internal_media.Provider {
		return internal_media.NewWebRTCProvider(logger)
	}
	if cfg.Loopback {
		logger.Warnf("serving synthetic loopback media")
		newProvider = func() internal_media.Provider {
			return internal_media.NewLoopbackProvider()
		}
	}

	return &CaptureApi{
		cfg:         cfg,
		logger:      logger,
		newProvider: newProvider,
		store:       store,
		extra:       extra,
	}, nil
}

// Close releases the sinks the api owns. Safe after all connections
// have drained.
func (api *CaptureApi) Close() error {
	var first error
	for _, sink := range api.extra {
		if closer, ok := sink.(io.Closer); ok {
			if err := closer.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

// Connect upgrades to a websocket and runs the dispatch loop until the
// collaborator disconnects.
//
// @Router /v1/capture/connect [get]
// @Summary Connect to the capture subsystem
// @Success 101 "Switching Protocols"
// @Failure 400 {object} gin.H
func (api *CaptureApi) Connect(c *gin.Context) {
	conn, err := captureUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		api.logger.Errorf("WebSocket upgrade failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unable to upgrade to WebSocket"})
		return
	}
	defer conn.Close()

	provider := api.newProvider()
	if closer, ok := provider.(io.Closer); ok {
		defer closer.Close()
	}

	dispatcher := internal_dispatcher.NewDispatcher(
		api.logger,
		api.cfg.CaptureConfig,
		provider,
		api.store,
		internal_dispatcher.NewWebsocketSender(conn),
		api.extra...,
	)

	api.mu.Lock()
	api.current = dispatcher
	api.mu.Unlock()

	dispatcher.Serve(c.Request.Context(), conn)

	api.mu.Lock()
	if api.current == dispatcher {
		api.current = nil
	}
	api.mu.Unlock()
}

// Status reports the observable state of the active session, or an idle
// snapshot when no collaborator is connected.
//
// @Router /v1/capture/status [get]
// @Summary Poll capture session status
// @Success 200 {object} internal_session.SessionInfo
func (api *CaptureApi) Status(c *gin.Context) {
	api.mu.Lock()
	dispatcher := api.current
	api.mu.Unlock()

	if dispatcher == nil {
		c.JSON(http.StatusOK, internal_session.SessionInfo{State: internal_type.StateIdle})
		return
	}
	c.JSON(http.StatusOK, dispatcher.Session())
}
