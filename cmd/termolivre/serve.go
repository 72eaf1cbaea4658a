// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/AleutianAI/termolivre/pkg/config"
	"github.com/AleutianAI/termolivre/pkg/logging"
	"github.com/AleutianAI/termolivre/pkg/validation"
	"github.com/AleutianAI/termolivre/services/chat"
	"github.com/AleutianAI/termolivre/services/server"
	"github.com/AleutianAI/termolivre/services/server/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// chatBuffer decouples the IRC reader from relay flushes.
const chatBuffer = 256

func newServeCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the moderation API, websocket feed and Twitch chat relay",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides config)")
	return cmd
}

// app is the wired service graph.
type app struct {
	channel string
	hub     *chat.Hub
	relay   *chat.Relay
	reader  *chat.TwitchReader
	service server.Service
}

func buildApp(cfg config.Config, logger *logging.Logger, reg *prometheus.Registry) (*app, error) {
	channel, err := validation.SanitizeChannel(chat.ChannelFromURL(cfg.Chat.ChannelURL))
	if err != nil {
		return nil, fmt.Errorf("chat channel: %w", err)
	}
	mode, err := chat.ParseSuppressMode(cfg.Chat.SuppressMode)
	if err != nil {
		return nil, err
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(reg)

	filter, err := buildFilter(cfg, false, logger, metrics)
	if err != nil {
		return nil, err
	}

	hub := chat.NewHub(chat.HubConfig{}, logger)
	metrics.TrackSubscribers(hub.Count)
	relay := chat.NewRelay(filter, hub, chat.RelayConfig{
		MaxBatch: cfg.Chat.MaxBatch,
		Window:   cfg.Chat.Window,
		Mode:     mode,
		MaskText: cfg.Chat.MaskText,
		Observer: metrics,
	}, logger)

	a := &app{channel: channel, hub: hub, relay: relay}
	if cfg.Chat.Enabled {
		a.reader = chat.NewTwitchReader(chat.TwitchConfig{
			URL:            cfg.Chat.IRCURL,
			Channel:        channel,
			Nick:           cfg.Chat.Nick,
			ReconnectDelay: cfg.Chat.ReconnectDelay,
		}, logger)
	}

	a.service, err = server.New(server.Config{
		Port:            cfg.Server.Port,
		Mode:            cfg.Server.Mode,
		EnableMetrics:   cfg.Server.Metrics,
		OTelEndpoint:    cfg.Server.OTelEndpoint,
		APIToken:        cfg.Server.APIToken,
		Channel:         channel,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, server.Deps{
		Evaluator: filter,
		Hub:       hub,
		Relay:     relay,
		Metrics:   metrics,
		Gatherer:  reg,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// run serves until ctx ends or a component fails.
func (a *app) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.service.Run(gctx) })
	if a.reader != nil {
		in := make(chan chat.Message, chatBuffer)
		g.Go(func() error { return ignoreCanceled(a.reader.Run(gctx, in)) })
		g.Go(func() error { return ignoreCanceled(a.relay.Run(gctx, in)) })
	}
	return g.Wait()
}

func runServe(ctx context.Context, cfg config.Config) error {
	logger := newLogger(cfg.Logging)
	defer logger.Close()

	a, err := buildApp(cfg, logger, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	logger.Info("termolivre starting",
		"port", cfg.Server.Port,
		"channel", a.channel,
		"chat_enabled", cfg.Chat.Enabled,
		"suppress_mode", cfg.Chat.SuppressMode)

	err = a.run(ctx)
	logger.Info("termolivre stopped")
	return err
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
