package ops

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"main/internal/schema"
)

func baseConfig() FileConfig {
	return FileConfig{
		Mode: ModePaper,
		Registry: RegistryConfig{
			Venues: []VenueConfig{{Name: "SIM"}},
			Instruments: []InstrumentConfig{
				{Name: "AAA-USD", Venue: "SIM", Scale: schema.ScaleSpec{PriceScale: 2}},
				{Name: "BBB-USD", Venue: "SIM", Scale: schema.ScaleSpec{PriceScale: 2}, MaxPosition: 25},
			},
		},
		Sizing: SizingConfig{BaseQty: 10},
	}
}

func TestResolveBuildsRegistryAndFoldsLimits(t *testing.T) {
	loaded, err := Resolve(baseConfig())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if loaded.Mode != ModePaper {
		t.Fatalf("mode = %s, want paper", loaded.Mode)
	}
	if loaded.Registry.InstrumentCount() != 2 {
		t.Fatalf("instruments = %d, want 2", loaded.Registry.InstrumentCount())
	}

	id, ok := loaded.Registry.InstrumentIDByName("BBB-USD")
	if !ok {
		t.Fatal("BBB-USD not registered")
	}
	if got := loaded.Risk.PositionLimits[id]; got != 25 {
		t.Fatalf("per-instrument limit = %d, want 25", got)
	}
	other, _ := loaded.Registry.InstrumentIDByName("AAA-USD")
	if _, ok := loaded.Risk.PositionLimits[other]; ok {
		t.Fatal("AAA-USD has no override, limits map should omit it")
	}
}

func TestResolveDefaults(t *testing.T) {
	cfg := baseConfig()
	cfg.Mode = ""
	cfg.Strategies = nil

	loaded, err := Resolve(cfg)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if loaded.Mode != ModeDryRun {
		t.Fatalf("mode = %s, want dry-run default", loaded.Mode)
	}
	if len(loaded.Strategies) != 1 || loaded.Strategies[0] != "ehma" {
		t.Fatalf("strategies = %v, want default [ehma]", loaded.Strategies)
	}
	if loaded.Exec.BrokerTimeout != 0 {
		t.Fatalf("broker timeout = %v, want unset so the handler default applies", loaded.Exec.BrokerTimeout)
	}
}

func TestResolveSizing(t *testing.T) {
	cfg := baseConfig()
	cfg.Sizing = SizingConfig{BaseQty: 100, MinQty: 5, BrokerTimeoutMs: 250, FeeBps: 10}

	loaded, err := Resolve(cfg)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if loaded.Exec.BaseQty != 100 || loaded.Exec.MinQty != 5 {
		t.Fatalf("sizing = %+v, want baseQty 100 minQty 5", loaded.Exec)
	}
	if loaded.Exec.BrokerTimeout != 250*time.Millisecond {
		t.Fatalf("broker timeout = %v, want 250ms", loaded.Exec.BrokerTimeout)
	}
	if loaded.FeeBps != 10 {
		t.Fatalf("fee bps = %d, want 10", loaded.FeeBps)
	}
}

func TestResolveRejectsBadInput(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*FileConfig)
	}{
		{"unknown mode", func(c *FileConfig) { c.Mode = "turbo" }},
		{"missing venue", func(c *FileConfig) { c.Registry.Instruments[0].Venue = "NOPE" }},
		{"negative scale", func(c *FileConfig) { c.Registry.Instruments[0].Scale.PriceScale = -1 }},
		{"zero base qty", func(c *FileConfig) { c.Sizing.BaseQty = 0 }},
		{"negative min qty", func(c *FileConfig) { c.Sizing.MinQty = -1 }},
		{"negative fee", func(c *FileConfig) { c.Sizing.FeeBps = -1 }},
		{"live without url", func(c *FileConfig) { c.Mode = ModeLive }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := baseConfig()
			tc.mutate(&cfg)
			if _, err := Resolve(cfg); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestLoadReadsJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"mode": "replay",
		"registry": {
			"venues": [{"name": "SIM"}],
			"instruments": [
				{"name": "AAA-USD", "venue": "SIM", "scale": {"priceScale": 2, "quantityScale": 0, "notionalScale": 2, "feeScale": 2}, "maxPosition": 50}
			]
		},
		"risk": {"maxPosition": 100, "maxDailyTrades": 20},
		"sizing": {"baseQty": 10, "minQty": 1},
		"strategies": ["confluence", "ehma"],
		"wal": {"dir": "/tmp/wal"}
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Mode != ModeReplay {
		t.Fatalf("mode = %s, want replay", loaded.Mode)
	}
	if loaded.Risk.MaxPosition != 100 || loaded.Risk.MaxDailyTrades != 20 {
		t.Fatalf("risk = %+v, want maxPosition 100 maxDailyTrades 20", loaded.Risk)
	}
	if len(loaded.Strategies) != 2 || loaded.Strategies[0] != "confluence" {
		t.Fatalf("strategies = %v, want configured order preserved", loaded.Strategies)
	}
	if loaded.WAL.Dir != "/tmp/wal" {
		t.Fatalf("wal dir = %s, want /tmp/wal", loaded.WAL.Dir)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
