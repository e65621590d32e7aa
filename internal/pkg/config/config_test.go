package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/samirrijal/safemap/internal/pkg/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("safemap-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Telemetry.ServiceName != "safemap-test" {
		t.Errorf("expected service name safemap-test, got %s", cfg.Telemetry.ServiceName)
	}
	if cfg.Map.Zoom != 11 || cfg.Map.CenterLat != 28.6139 || cfg.Map.CenterLng != 77.2090 {
		t.Errorf("unexpected map defaults %+v", cfg.Map)
	}
	if cfg.Health.Interval != 5*time.Second || cfg.Health.RefreshLatency != time.Second {
		t.Errorf("unexpected health timings %+v", cfg.Health)
	}
	if cfg.Health.Source != "simulated" {
		t.Errorf("expected simulated source, got %s", cfg.Health.Source)
	}
	if cfg.Map.SessionIdleTimeout != 30*time.Minute {
		t.Errorf("expected 30m session idle timeout, got %s", cfg.Map.SessionIdleTimeout)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("unexpected log defaults %+v", cfg.Log)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SAFEMAP_SERVER_PORT", "9090")
	t.Setenv("SAFEMAP_MAP_ZOOM", "14")
	t.Setenv("SAFEMAP_HEALTH_INTERVAL", "250ms")

	cfg, err := config.Load("safemap-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Map.Zoom != 14 {
		t.Errorf("expected zoom 14, got %d", cfg.Map.Zoom)
	}
	if cfg.Health.Interval != 250*time.Millisecond {
		t.Errorf("expected 250ms interval, got %s", cfg.Health.Interval)
	}
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg, err := config.Load("safemap-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.Server.Port = 0
	cfg.Map.Zoom = 40
	cfg.Health.Source = "carrier-pigeon"
	cfg.Log.Format = "xml"
	cfg.Map.SessionIdleTimeout = -time.Second

	err = cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"server.port", "map.zoom", "health.source", "log.format", "map.session_idle_timeout"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}

func TestMapConfig_Defaults(t *testing.T) {
	m := config.MapConfig{CenterLat: 28.5, CenterLng: 77.1, Zoom: 9, ShowControls: false}
	d := m.Defaults().Resolve()
	if d.Center.Lat != 28.5 || d.Center.Lng != 77.1 || d.Zoom != 9 || d.ShowControls {
		t.Errorf("unexpected resolved defaults %+v", d)
	}
}

func TestMapConfig_MaintenanceInterval(t *testing.T) {
	cases := []struct {
		reload, idle, want time.Duration
	}{
		{time.Minute, 30 * time.Minute, time.Minute},
		{time.Minute, 0, time.Minute},
		{0, 30 * time.Minute, 30 * time.Minute},
		{time.Minute, 10 * time.Second, 10 * time.Second},
		{0, 0, 0},
	}
	for _, c := range cases {
		m := config.MapConfig{ReloadInterval: c.reload, SessionIdleTimeout: c.idle}
		if got := m.MaintenanceInterval(); got != c.want {
			t.Errorf("reload=%s idle=%s: got %s, want %s", c.reload, c.idle, got, c.want)
		}
	}
}
