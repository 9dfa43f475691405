// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	captureApi "github.com/rapidaai/capture/api/capture-api/api/capture"
	"github.com/rapidaai/capture/api/capture-api/config"
	capture_routers "github.com/rapidaai/capture/api/routers"
	"github.com/rapidaai/capture/pkg/commons"
)

func main() {
	vConfig, err := config.InitConfig()
	if err != nil {
		log.Fatalf("failed to initialize config: %v", err)
	}
	cfg, err := config.GetApplicationConfig(vConfig)
	if err != nil {
		log.Fatalf("failed to load application config: %v", err)
	}

	opts := []commons.Option{commons.Name(cfg.Name), commons.Level(cfg.LogLevel)}
	if cfg.LogPath != "" {
		opts = append(opts, commons.Path(cfg.LogPath))
	}
	logger, err := commons.NewApplicationLogger(opts...)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	api, err := captureApi.NewCaptureApi(cfg, logger)
	if err != nil {
		logger.Errorf("failed to wire capture api: %v", err)
		os.Exit(1)
	}
	defer api.Close()

	engine := gin.New()
	engine.Use(gin.Recovery())
	capture_routers.CaptureApiRoute(cfg, engine, api)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: engine,
	}

	go func() {
		logger.Infof("%s %s listening on %s", cfg.Name, cfg.Version, server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Infof("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("shutdown error: %v", err)
	}
}
