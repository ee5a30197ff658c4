// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Connection.Address != "127.0.0.1:4403" {
		t.Errorf("Connection.Address = %q", cfg.Connection.Address)
	}
	if cfg.Bot.CommandPrefix != "!" {
		t.Errorf("Bot.CommandPrefix = %q", cfg.Bot.CommandPrefix)
	}
	if cfg.Weather.Units != WeatherUnitsMetric {
		t.Errorf("Weather.Units = %q", cfg.Weather.Units)
	}
	if cfg.TracerouteProbe.Enabled {
		t.Error("expected traceroute_probe disabled by default")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meshbot.toml")

	content := `
[connection]
address = "10.0.0.5:4403"
reconnect_delay_secs = 30

[bot]
name = "trailbot"
db_path = "/var/lib/meshbot/trail.db"
command_prefix = "?"
rate_limit_commands = 3
rate_limit_window_secs = 30
send_delay_ms = 500

[welcome]
enabled = true
message = "hi {name}"
welcome_back_message = "back again, {name}?"
absence_threshold_hours = 48
whitelist = [1, 2, 3]

[weather]
latitude = 37.7
longitude = -122.4
units = "imperial"

[modules.mail]
enabled = true
scope = "dm"

[traceroute_probe]
enabled = true
interval_secs = 600
interval_jitter_pct = 10
recent_seen_within_secs = 1800
per_node_cooldown_secs = 900
mesh_channel = 2

[dashboard]
enabled = true
bind_address = "0.0.0.0:9090"

[bridge.telegram]
enabled = true
credentials = "token-here"
chat_id = "-1001"
mesh_channel = 0
direction = "both"
format_template = "[TG:{user}] {text}"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Connection.Address != "10.0.0.5:4403" || cfg.Connection.ReconnectDelaySecs != 30 {
		t.Errorf("Connection = %+v", cfg.Connection)
	}
	if cfg.Bot.Name != "trailbot" || cfg.Bot.CommandPrefix != "?" {
		t.Errorf("Bot = %+v", cfg.Bot)
	}
	if len(cfg.Welcome.Whitelist) != 3 {
		t.Errorf("Welcome.Whitelist = %v", cfg.Welcome.Whitelist)
	}
	if cfg.Weather.Units != WeatherUnitsImperial {
		t.Errorf("Weather.Units = %q", cfg.Weather.Units)
	}
	mail, ok := cfg.Modules["mail"]
	if !ok || !mail.Enabled || mail.Scope != ModuleScopeDM {
		t.Errorf("Modules[mail] = %+v, ok=%v", mail, ok)
	}
	if !cfg.TracerouteProbe.Enabled || cfg.TracerouteProbe.MeshChannel != 2 {
		t.Errorf("TracerouteProbe = %+v", cfg.TracerouteProbe)
	}
	tg, ok := cfg.Bridge["telegram"]
	if !ok || !tg.Enabled || tg.Direction != BridgeDirectionBoth {
		t.Errorf("Bridge[telegram] = %+v, ok=%v", tg, ok)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/meshbot.toml"); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestValidateRejectsEmptyAddress(t *testing.T) {
	cfg := Default()
	cfg.Connection.Address = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for empty connection.address")
	}
}

func TestValidateRejectsBadWeatherUnits(t *testing.T) {
	cfg := Default()
	cfg.Weather.Units = "kelvin"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for invalid weather.units")
	}
}

func TestValidateRejectsBadModuleScope(t *testing.T) {
	cfg := Default()
	cfg.Modules["mail"] = ModuleConfig{Enabled: true, Scope: "everywhere"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for invalid module scope")
	}
}

func TestValidateIgnoresDisabledBridgeDirection(t *testing.T) {
	cfg := Default()
	cfg.Bridge["discord"] = BridgeConfig{Enabled: false, Direction: "nonsense"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected a disabled bridge's direction to be ignored, got %v", err)
	}
}
