// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the TOML configuration file that drives
// cmd/meshbotd: the radio connection, the bot's own identity and rate
// limits, per-module settings, the auto-probe, the dashboard, and any
// chat-platform bridges.
//
// There is no environment-variable layering and no config discovery —
// the caller always passes an explicit path. That keeps a running
// process's behavior fully explained by one file.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config is the root of the TOML file.
type Config struct {
	Connection      ConnectionConfig        `toml:"connection"`
	Bot             BotConfig               `toml:"bot"`
	Welcome         WelcomeConfig           `toml:"welcome"`
	Weather         WeatherConfig           `toml:"weather"`
	Modules         map[string]ModuleConfig `toml:"modules"`
	TracerouteProbe TracerouteProbeConfig   `toml:"traceroute_probe"`
	Dashboard       DashboardConfig         `toml:"dashboard"`
	Bridge          map[string]BridgeConfig `toml:"bridge"`
}

// ConnectionConfig is the [connection] section.
type ConnectionConfig struct {
	Address            string `toml:"address"`
	ReconnectDelaySecs int    `toml:"reconnect_delay_secs"`
}

// BotConfig is the [bot] section.
type BotConfig struct {
	Name                string `toml:"name"`
	DBPath              string `toml:"db_path"`
	CommandPrefix       string `toml:"command_prefix"`
	RateLimitCommands   int    `toml:"rate_limit_commands"`
	RateLimitWindowSecs int    `toml:"rate_limit_window_secs"`
	SendDelayMs         int    `toml:"send_delay_ms"`
}

// WelcomeConfig is the [welcome] section.
type WelcomeConfig struct {
	Enabled               bool     `toml:"enabled"`
	Message               string   `toml:"message"`
	WelcomeBackMessage    string   `toml:"welcome_back_message"`
	AbsenceThresholdHours int64    `toml:"absence_threshold_hours"`
	Whitelist             []uint32 `toml:"whitelist"`
}

// WeatherUnits is the unit system a [weather] section requests.
type WeatherUnits string

const (
	WeatherUnitsMetric   WeatherUnits = "metric"
	WeatherUnitsImperial WeatherUnits = "imperial"
)

// WeatherConfig is the [weather] section.
type WeatherConfig struct {
	Latitude  float64      `toml:"latitude"`
	Longitude float64      `toml:"longitude"`
	Units     WeatherUnits `toml:"units"`
}

// ModuleScope mirrors registry.Scope for config purposes, kept as its
// own type so this package does not need to import internal/registry
// just to describe a TOML value.
type ModuleScope string

const (
	ModuleScopePublic ModuleScope = "public"
	ModuleScopeDM     ModuleScope = "dm"
	ModuleScopeBoth   ModuleScope = "both"
)

// ModuleConfig is one [modules.<name>] section.
type ModuleConfig struct {
	Enabled bool        `toml:"enabled"`
	Scope   ModuleScope `toml:"scope"`
}

// TracerouteProbeConfig is the [traceroute_probe] section.
type TracerouteProbeConfig struct {
	Enabled              bool   `toml:"enabled"`
	IntervalSecs         int    `toml:"interval_secs"`
	IntervalJitterPct    int    `toml:"interval_jitter_pct"`
	RecentSeenWithinSecs int64  `toml:"recent_seen_within_secs"`
	PerNodeCooldownSecs  int64  `toml:"per_node_cooldown_secs"`
	MeshChannel          uint32 `toml:"mesh_channel"`
}

// DashboardConfig is the [dashboard] section.
type DashboardConfig struct {
	Enabled     bool   `toml:"enabled"`
	BindAddress string `toml:"bind_address"`
}

// BridgeDirection mirrors bridgefabric.Direction for config purposes.
type BridgeDirection string

const (
	BridgeDirectionBoth       BridgeDirection = "both"
	BridgeDirectionToExternal BridgeDirection = "to_external"
	BridgeDirectionToMesh     BridgeDirection = "to_mesh"
)

// BridgeConfig is one [bridge.<platform>] section.
type BridgeConfig struct {
	Enabled        bool            `toml:"enabled"`
	Credentials    string          `toml:"credentials"`
	ChatID         string          `toml:"chat_id"`
	MeshChannel    uint32          `toml:"mesh_channel"`
	Direction      BridgeDirection `toml:"direction"`
	FormatTemplate string          `toml:"format_template"`
}

// Default returns a Config with every field set to the value the spec
// calls out as the default, so a caller only needs to override what
// their deployment actually changes.
func Default() *Config {
	return &Config{
		Connection: ConnectionConfig{
			Address:            "127.0.0.1:4403",
			ReconnectDelaySecs: 10,
		},
		Bot: BotConfig{
			Name:                "meshbot",
			DBPath:              "meshbot.db",
			CommandPrefix:       "!",
			RateLimitCommands:   5,
			RateLimitWindowSecs: 60,
			SendDelayMs:         1500,
		},
		Welcome: WelcomeConfig{
			Enabled:               true,
			Message:               "Welcome to the mesh, {name}!",
			WelcomeBackMessage:    "Welcome back, {name}!",
			AbsenceThresholdHours: 24,
		},
		Weather: WeatherConfig{
			Units: WeatherUnitsMetric,
		},
		Modules: map[string]ModuleConfig{},
		TracerouteProbe: TracerouteProbeConfig{
			Enabled:              false,
			IntervalSecs:         900,
			IntervalJitterPct:    20,
			RecentSeenWithinSecs: 3600,
			PerNodeCooldownSecs:  3600,
		},
		Dashboard: DashboardConfig{
			Enabled:     false,
			BindAddress: "127.0.0.1:8080",
		},
		Bridge: map[string]BridgeConfig{},
	}
}

// Load reads and parses the TOML file at path, starting from Default()
// so any field the file omits keeps its documented default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects a configuration the rest of the process could not run
// with. It is deliberately narrow: most fields have safe defaults, so
// only the handful with no safe default, or with an enumerated set of
// legal values, are checked here.
func (c *Config) Validate() error {
	if c.Connection.Address == "" {
		return fmt.Errorf("connection.address is required")
	}
	if c.Bot.DBPath == "" {
		return fmt.Errorf("bot.db_path is required")
	}
	if c.Bot.CommandPrefix == "" {
		return fmt.Errorf("bot.command_prefix is required")
	}
	if c.Weather.Units != WeatherUnitsMetric && c.Weather.Units != WeatherUnitsImperial {
		return fmt.Errorf("weather.units must be %q or %q, got %q", WeatherUnitsMetric, WeatherUnitsImperial, c.Weather.Units)
	}
	for name, m := range c.Modules {
		if m.Scope != "" && m.Scope != ModuleScopePublic && m.Scope != ModuleScopeDM && m.Scope != ModuleScopeBoth {
			return fmt.Errorf("modules.%s.scope must be one of public, dm, both, got %q", name, m.Scope)
		}
	}
	for name, b := range c.Bridge {
		if !b.Enabled {
			continue
		}
		if b.Direction != "" && b.Direction != BridgeDirectionBoth && b.Direction != BridgeDirectionToExternal && b.Direction != BridgeDirectionToMesh {
			return fmt.Errorf("bridge.%s.direction must be one of both, to_external, to_mesh, got %q", name, b.Direction)
		}
	}
	return nil
}
