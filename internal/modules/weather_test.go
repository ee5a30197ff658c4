// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package modules

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mesh-companion/meshbot/internal/clock"
	"github.com/mesh-companion/meshbot/internal/registry"
	"github.com/mesh-companion/meshbot/internal/store"
)

func TestWMOCodes(t *testing.T) {
	cases := map[int64]string{
		0: "Clear sky", 1: "Mainly clear", 2: "Partly cloudy", 3: "Overcast",
		45: "Foggy", 48: "Foggy", 61: "Rain", 80: "Rain showers", 81: "Rain showers",
		82: "Rain showers", 95: "Thunderstorm", 96: "Thunderstorm w/ hail", 999: "Unknown",
	}
	for code, want := range cases {
		if got := wmoCodeToDescription(code); got != want {
			t.Fatalf("wmoCodeToDescription(%d) = %q, want %q", code, got, want)
		}
	}
}

type stubProvider struct {
	text string
	err  error
}

func (p stubProvider) Forecast(ctx context.Context, lat, lon float64, units string) (string, error) {
	return p.text, p.err
}

func TestWeatherUsesSenderPosition(t *testing.T) {
	c := clock.Fake(time.Unix(1_700_000_000, 0))
	s, err := store.Open(":memory:", c, nil)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer s.Close()

	lat, lon := 1.0, 2.0
	ctx := context.Background()
	if err := s.UpsertNode(ctx, store.NodeObservation{NodeID: 0xAAAA, Latitude: &lat, Longitude: &lon, At: c.Now().Unix()}); err != nil {
		t.Fatalf("UpsertNode: %v", err)
	}

	w := NewWeather(stubProvider{text: "Clear sky, 20C"}, 0, 0, "metric")
	resp, err := w.HandleCommand(ctx, s, "weather", "", registry.MessageContext{From: 0xAAAA})
	if err != nil {
		t.Fatalf("HandleCommand: %v", err)
	}
	if resp[0].Text != "Weather (your location): Clear sky, 20C" {
		t.Fatalf("Text = %q", resp[0].Text)
	}
}

func TestWeatherFallsBackToDefaultLocation(t *testing.T) {
	c := clock.Fake(time.Unix(1_700_000_000, 0))
	s, err := store.Open(":memory:", c, nil)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer s.Close()

	w := NewWeather(stubProvider{text: "Overcast, 10C"}, 25.0, 121.0, "metric")
	resp, err := w.HandleCommand(context.Background(), s, "weather", "", registry.MessageContext{From: 0xAAAA})
	if err != nil {
		t.Fatalf("HandleCommand: %v", err)
	}
	if resp[0].Text != "Weather: Overcast, 10C" {
		t.Fatalf("Text = %q", resp[0].Text)
	}
}

func TestWeatherProviderErrorReportsUnavailable(t *testing.T) {
	c := clock.Fake(time.Unix(1_700_000_000, 0))
	s, err := store.Open(":memory:", c, nil)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer s.Close()

	w := NewWeather(stubProvider{err: errors.New("boom")}, 0, 0, "metric")
	resp, err := w.HandleCommand(context.Background(), s, "weather", "", registry.MessageContext{From: 0xAAAA})
	if err != nil {
		t.Fatalf("HandleCommand: %v", err)
	}
	if resp[0].Text != "Weather unavailable" {
		t.Fatalf("Text = %q", resp[0].Text)
	}
}
