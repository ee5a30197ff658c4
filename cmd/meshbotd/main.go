// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// meshbotd is the mesh companion process: it holds one TCP connection to
// a Meshtastic node, classifies every packet that arrives on it into the
// store, answers commands through the module registry, and optionally
// serves a read-only dashboard and relays text to chat-platform bridges.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/mesh-companion/meshbot/internal/bridgefabric"
	"github.com/mesh-companion/meshbot/internal/clock"
	"github.com/mesh-companion/meshbot/internal/config"
	"github.com/mesh-companion/meshbot/internal/dashboardapi"
	"github.com/mesh-companion/meshbot/internal/loop"
	"github.com/mesh-companion/meshbot/internal/modules"
	"github.com/mesh-companion/meshbot/internal/probe"
	"github.com/mesh-companion/meshbot/internal/queue"
	"github.com/mesh-companion/meshbot/internal/radio"
	"github.com/mesh-companion/meshbot/internal/ratelimit"
	"github.com/mesh-companion/meshbot/internal/registry"
	"github.com/mesh-companion/meshbot/internal/store"
	"github.com/mesh-companion/meshbot/lib/httpserver"
)

// gracePeriod is how long the loop defers node-discovered events after a
// (re)connect, so a full config dump doesn't look like a wave of
// first-sight nodes.
const gracePeriod = 30 * time.Second

// bridgeInboundBuffer sizes the fabric's inbound channel; it only needs
// to absorb a short burst since the event loop drains it every tick.
const bridgeInboundBuffer = 16

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var showVersion bool

	flagSet := pflag.NewFlagSet("meshbotd", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "meshbot.toml", "path to the TOML configuration file")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	if showVersion {
		fmt.Println("meshbotd (development build)")
		return nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	realClock := clock.Real()

	s, err := store.Open(cfg.Bot.DBPath, realClock, logger)
	if err != nil {
		return fmt.Errorf("opening store %s: %w", cfg.Bot.DBPath, err)
	}
	defer s.Close()

	q := queue.New()
	reg := registerModules(cfg, realClock, logger)
	limiter := ratelimit.New(realClock, cfg.Bot.RateLimitCommands, int64(cfg.Bot.RateLimitWindowSecs))
	fabric := bridgefabric.New(bridgeInboundBuffer)

	eventLoop := loop.New(
		&radio.TCPDialer{Timeout: 10 * time.Second},
		s, q, reg, limiter, fabric, realClock, logger,
		loop.Config{
			Address:        cfg.Connection.Address,
			ReconnectDelay: time.Duration(cfg.Connection.ReconnectDelaySecs) * time.Second,
			SendInterval:   time.Duration(cfg.Bot.SendDelayMs) * time.Millisecond,
			GracePeriod:    gracePeriod,
		},
	)

	if cfg.TracerouteProbe.Enabled {
		cooldowns := clock.NewCooldowns(realClock)
		eventLoop.SetProbe(probe.New(s, q, cooldowns, realClock, eventLoop.MyNode, probe.Config{
			Enabled:              cfg.TracerouteProbe.Enabled,
			Interval:             time.Duration(cfg.TracerouteProbe.IntervalSecs) * time.Second,
			IntervalJitterPct:    cfg.TracerouteProbe.IntervalJitterPct,
			RecentSeenWithinSecs: cfg.TracerouteProbe.RecentSeenWithinSecs,
			PerNodeCooldownSecs:  cfg.TracerouteProbe.PerNodeCooldownSecs,
			MeshChannel:          cfg.TracerouteProbe.MeshChannel,
		}, logger))
	}

	if cfg.Dashboard.Enabled {
		dashboard := httpserver.New(httpserver.Config{
			Address: cfg.Dashboard.BindAddress,
			Handler: dashboardapi.NewRouter(dashboardapi.Deps{
				Store:      s,
				Clock:      realClock,
				QueueDepth: q.Depth,
				MyNode:     eventLoop.MyNode,
				BotName:    cfg.Bot.Name,
				Logger:     logger,
			}),
			Logger: logger,
		})
		go func() {
			if err := dashboard.Serve(ctx); err != nil {
				logger.Error("dashboard server stopped", "error", err)
			}
		}()
	}

	logger.Info("meshbotd starting", "address", cfg.Connection.Address, "db", cfg.Bot.DBPath)
	if err := eventLoop.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("event loop: %w", err)
	}
	logger.Info("meshbotd stopped")
	return nil
}

// registerModules builds the registry and registers every module whose
// [modules.<name>] section is enabled, or that carries no config section
// at all (every module registered here defaults to on; config.Default
// leaves Modules empty). The welcome module is gated by [welcome].enabled
// instead.
func registerModules(cfg *config.Config, c clock.Clock, logger *slog.Logger) *registry.Registry {
	reg := registry.New(cfg.Bot.CommandPrefix)

	enabled := func(name string, defaultOn bool) bool {
		m, ok := cfg.Modules[name]
		if !ok {
			return defaultOn
		}
		return m.Enabled
	}

	if enabled("ping", true) {
		reg.Register(modules.Ping{})
	}
	if enabled("nodes", true) {
		reg.Register(modules.NewNodeInfo())
	}
	if enabled("uptime", true) {
		reg.Register(modules.NewUptime(c))
	}
	if enabled("mail", true) {
		reg.Register(modules.NewMail(c))
	}
	if cfg.Welcome.Enabled {
		whitelist := make(map[uint32]bool, len(cfg.Welcome.Whitelist))
		for _, id := range cfg.Welcome.Whitelist {
			whitelist[id] = true
		}
		reg.Register(modules.NewWelcome(c, cfg.Welcome.Message, cfg.Welcome.WelcomeBackMessage, cfg.Welcome.AbsenceThresholdHours, whitelist))
	}
	if enabled("help", true) {
		help := modules.NewHelp(reg)
		reg.Register(help)
	}

	// modules.weather has no WeatherProvider wired in: the provider is an
	// external HTTP client left to the deployer, per modules.Weather's
	// documented seam. It's registered only once a caller supplies one,
	// which this binary doesn't yet.
	if _, ok := cfg.Modules["weather"]; ok {
		logger.Warn("modules.weather configured but no WeatherProvider is wired into this binary; skipping registration")
	}
	return reg
}
