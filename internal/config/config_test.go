package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/san-kum/gravsim/internal/body"
	"github.com/san-kum/gravsim/internal/sim"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Dt <= 0 {
		t.Error("dt should be positive")
	}
	if cfg.Gravity.ForceMode != "auto" {
		t.Errorf("force mode = %s, want auto", cfg.Gravity.ForceMode)
	}
	if cfg.Merge.TOVLimit != 3 || cfg.Merge.ChandrasekharLimit != 1.4 {
		t.Errorf("merge thresholds = %+v", cfg.Merge)
	}
	if cfg.Tidal.Multipliers["black_hole"] != 4 {
		t.Errorf("black hole multiplier = %v, want 4", cfg.Tidal.Multipliers["black_hole"])
	}
}

func TestDefaultConfig_MatchesEngine(t *testing.T) {
	got, err := DefaultConfig().SimConfig()
	if err != nil {
		t.Fatal(err)
	}
	want := sim.DefaultConfig()
	if diff := cmp.Diff(want, got, cmp.Comparer(func(a, b float64) bool {
		return a == b || (a-b < 1e-12 && b-a < 1e-12)
	})); diff != "" {
		t.Errorf("SimConfig differs from engine defaults (-want +got):\n%s", diff)
	}
}

func TestSaveLoad(t *testing.T) {
	for _, name := range []string{"scenario.yaml", "scenario.toml"} {
		path := filepath.Join(t.TempDir(), name)
		cfg := GetPreset("belt")
		cfg.Gravity.Theta = 0.7

		if err := Save(path, cfg); err != nil {
			t.Fatalf("%s: Save: %v", name, err)
		}
		loaded, err := Load(path)
		if err != nil {
			t.Fatalf("%s: Load: %v", name, err)
		}
		if diff := cmp.Diff(cfg, loaded); diff != "" {
			t.Errorf("%s: round trip differs (-saved +loaded):\n%s", name, diff)
		}
	}
}

func TestLoad_PartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	os.WriteFile(path, []byte("dt: 0.002\ngravity:\n  theta: 0.9\n"), 0644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Dt != 0.002 || cfg.Gravity.Theta != 0.9 {
		t.Errorf("overrides not applied: dt=%v theta=%v", cfg.Dt, cfg.Gravity.Theta)
	}
	if cfg.Gravity.G != 1 || cfg.Merge.SolarMass != 100 {
		t.Errorf("defaults lost: G=%v solar=%v", cfg.Gravity.G, cfg.Merge.SolarMass)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero dt", func(c *Config) { c.Dt = 0 }},
		{"bad force mode", func(c *Config) { c.Gravity.ForceMode = "fmm" }},
		{"unknown body type", func(c *Config) { c.Bodies = []BodySpec{{Type: "quasar", Mass: 1}} }},
		{"zero mass", func(c *Config) { c.Bodies = []BodySpec{{Type: "planet"}} }},
		{"disk particle", func(c *Config) { c.Bodies = []BodySpec{{Type: "disk_particle", Mass: 1}} }},
		{"bad density", func(c *Config) { c.Bodies = []BodySpec{{Type: "planet", Mass: 1, Density: "gooey"}} }},
		{"bad group range", func(c *Config) {
			c.Groups = []Group{{Type: "comet", Count: 3, MinMass: 2, MaxMass: 1}}
		}},
		{"bad floor key", func(c *Config) { c.Tidal.Floors["moon"] = 1 }},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mutate(cfg)
		if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
			t.Errorf("%s: Validate() = %v, want ErrInvalid", tt.name, err)
		}
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("tde")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if len(cfg.Bodies) != 2 || cfg.Bodies[0].Type != "black_hole" {
		t.Errorf("tde bodies = %+v", cfg.Bodies)
	}

	cfg.Bodies = nil
	if again := GetPreset("tde"); len(again.Bodies) != 2 {
		t.Error("preset shared state between calls")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if cfg := GetPreset("nonexistent"); cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestListPresets(t *testing.T) {
	want := []string{"belt", "binary-bh", "cluster", "kilonova", "tde"}
	if diff := cmp.Diff(want, ListPresets()); diff != "" {
		t.Errorf("ListPresets() (-want +got):\n%s", diff)
	}
	for _, name := range want {
		if err := GetPreset(name).Validate(); err != nil {
			t.Errorf("preset %s invalid: %v", name, err)
		}
	}
}

func TestSpawns_Deterministic(t *testing.T) {
	cfg := GetPreset("belt")
	a, err := cfg.Spawns()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := cfg.Spawns()

	if len(a) != 2+150+10 {
		t.Errorf("spawns = %d, want 162", len(a))
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("spawns differ between calls:\n%s", diff)
	}
	if a[0].Type != body.Star || a[1].Params.Density != body.Metallic {
		t.Errorf("explicit bodies = %+v %+v", a[0], a[1])
	}
	for _, s := range a[2:152] {
		r := s.Params.Pos.X*s.Params.Pos.X + s.Params.Pos.Y*s.Params.Pos.Y
		if r < 150*150 || r > 220*220 {
			t.Fatalf("asteroid at radius² %v outside belt", r)
		}
	}
}

func TestBuild(t *testing.T) {
	w, err := GetPreset("kilonova").Build()
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if n := w.Registry().Len(); n != 2 {
		t.Errorf("bodies = %d, want 2", n)
	}
	if w.Config().Duration != 30 {
		t.Errorf("duration = %v, want 30", w.Config().Duration)
	}
}

func TestWatcher_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "live.yaml")
	if err := Save(path, DefaultConfig()); err != nil {
		t.Fatal(err)
	}
	w, err := NewWatcher(path)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	cfg := DefaultConfig()
	cfg.Gravity.G = 2.5
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}

	select {
	case ch := <-w.Changes:
		if ch.Err != nil {
			t.Fatalf("reload error: %v", ch.Err)
		}
		if ch.Config.Gravity.G != 2.5 {
			t.Errorf("G = %v, want 2.5", ch.Config.Gravity.G)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
}
