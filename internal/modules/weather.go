// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package modules

import (
	"context"
	"fmt"

	"github.com/mesh-companion/meshbot/internal/registry"
	"github.com/mesh-companion/meshbot/internal/store"
)

// WeatherProvider is the external collaborator a real deployment plugs
// in to answer "weather": a forecast API client. Wiring an HTTP client
// against a specific provider is out of scope here — this interface is
// the seam a caller supplies.
type WeatherProvider interface {
	// Forecast returns a short human-readable current-conditions line for
	// the given coordinates.
	Forecast(ctx context.Context, latitude, longitude float64, units string) (string, error)
}

// Weather answers the "weather" command using the sender's last known
// position when available, falling back to a configured default.
type Weather struct {
	provider         WeatherProvider
	defaultLatitude  float64
	defaultLongitude float64
	units            string
}

func NewWeather(provider WeatherProvider, defaultLatitude, defaultLongitude float64, units string) *Weather {
	return &Weather{provider: provider, defaultLatitude: defaultLatitude, defaultLongitude: defaultLongitude, units: units}
}

func (*Weather) Name() string          { return "weather" }
func (*Weather) Description() string   { return "Weather forecast" }
func (*Weather) Commands() []string    { return []string{"weather"} }
func (*Weather) Scope() registry.Scope { return registry.ScopeBoth }

func (w *Weather) HandleCommand(ctx context.Context, s *store.Store, command, args string, msg registry.MessageContext) ([]registry.Response, error) {
	lat, lon, locationNote := w.defaultLatitude, w.defaultLongitude, ""
	if node, err := s.GetNode(ctx, msg.From); err == nil && node != nil && node.Latitude != nil && node.Longitude != nil {
		lat, lon, locationNote = *node.Latitude, *node.Longitude, " (your location)"
	}

	forecast, err := w.provider.Forecast(ctx, lat, lon, w.units)
	if err != nil {
		return []registry.Response{{Text: "Weather unavailable", Destination: registry.DestinationSender, Channel: msg.Channel}}, nil
	}

	text := fmt.Sprintf("Weather%s: %s", locationNote, forecast)
	return []registry.Response{{Text: text, Destination: registry.DestinationSender, Channel: msg.Channel}}, nil
}

func (*Weather) HandleEvent(ctx context.Context, s *store.Store, ev registry.Event) ([]registry.Response, error) {
	return nil, nil
}

// wmoCodeToDescription maps an Open-Meteo WMO weather code to a short
// English description. Kept even though no WeatherProvider in this repo
// calls it yet, since any concrete provider built against this module
// will need the same table.
func wmoCodeToDescription(code int64) string {
	switch {
	case code == 0:
		return "Clear sky"
	case code == 1:
		return "Mainly clear"
	case code == 2:
		return "Partly cloudy"
	case code == 3:
		return "Overcast"
	case code == 45 || code == 48:
		return "Foggy"
	case code == 51 || code == 53 || code == 55:
		return "Drizzle"
	case code == 56 || code == 57:
		return "Freezing drizzle"
	case code == 61 || code == 63 || code == 65:
		return "Rain"
	case code == 66 || code == 67:
		return "Freezing rain"
	case code == 71 || code == 73 || code == 75:
		return "Snowfall"
	case code == 77:
		return "Snow grains"
	case code >= 80 && code <= 82:
		return "Rain showers"
	case code == 85 || code == 86:
		return "Snow showers"
	case code == 95:
		return "Thunderstorm"
	case code == 96 || code == 99:
		return "Thunderstorm w/ hail"
	default:
		return "Unknown"
	}
}
