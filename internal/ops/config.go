package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"main/internal/exec"
	"main/internal/risk"
	"main/internal/schema"
)

// Mode selects the execution backend.
type Mode string

const (
	ModeReplay Mode = "replay"
	ModeDryRun Mode = "dry-run"
	ModePaper  Mode = "paper"
	ModeLive   Mode = "live"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Mode       Mode             `json:"mode"`
	Registry   RegistryConfig   `json:"registry"`
	Risk       risk.Config      `json:"risk"`
	Sizing     SizingConfig     `json:"sizing"`
	Strategies []string         `json:"strategies"`
	WAL        WALConfig        `json:"wal"`
	Store      StoreConfig      `json:"store"`
	Live       LiveBrokerConfig `json:"live"`
	Profiling  bool             `json:"profiling"`
}

// RegistryConfig defines venue and instrument mappings.
type RegistryConfig struct {
	Venues      []VenueConfig      `json:"venues"`
	Instruments []InstrumentConfig `json:"instruments"`
}

// VenueConfig describes a venue entry.
type VenueConfig struct {
	Name string `json:"name"`
}

// InstrumentConfig describes an instrument entry. MaxPosition overrides
// the global position limit for this instrument when set.
type InstrumentConfig struct {
	Name        string           `json:"name"`
	Venue       string           `json:"venue"`
	Scale       schema.ScaleSpec `json:"scale"`
	MaxPosition schema.Quantity  `json:"maxPosition"`
}

// SizingConfig controls order construction.
type SizingConfig struct {
	BaseQty         schema.Quantity  `json:"baseQty"`
	MinQty          schema.Quantity  `json:"minQty"`
	OrderType       schema.OrderType `json:"orderType"`
	BrokerTimeoutMs int64            `json:"brokerTimeoutMs"`
	FeeBps          int64            `json:"feeBps"`
}

// WALConfig locates the durable event log.
type WALConfig struct {
	Dir             string `json:"dir"`
	FilePrefix      string `json:"filePrefix"`
	SegmentMaxBytes int64  `json:"segmentMaxBytes"`
	SyncEveryRecord *bool  `json:"syncEveryRecord"`
}

// StoreConfig locates the optional postgres audit mirror.
type StoreConfig struct {
	DSN string `json:"dsn"`
}

// LiveBrokerConfig locates the venue order endpoint.
type LiveBrokerConfig struct {
	URL string `json:"url"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Mode       Mode
	Registry   *schema.Registry
	Risk       risk.Config
	Exec       exec.Config
	FeeBps     int64
	Strategies []string
	WAL        WALConfig
	Store      StoreConfig
	Live       LiveBrokerConfig
	Profiling  bool
}

// Load reads a JSON config file and resolves it.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}
	return Resolve(cfg)
}

// Resolve validates a parsed config and builds the registry. Per-instrument
// position limits are folded into the risk config here, so the risk manager
// never sees instrument names.
func Resolve(cfg FileConfig) (Loaded, error) {
	mode, err := resolveMode(cfg.Mode)
	if err != nil {
		return Loaded{}, err
	}
	registry, limits, err := buildRegistry(cfg.Registry)
	if err != nil {
		return Loaded{}, err
	}
	riskCfg := cfg.Risk
	riskCfg.PositionLimits = limits

	execCfg, err := resolveSizing(cfg.Sizing)
	if err != nil {
		return Loaded{}, err
	}
	if mode == ModeLive && cfg.Live.URL == "" {
		return Loaded{}, fmt.Errorf("live mode requires live.url")
	}

	strategies := cfg.Strategies
	if len(strategies) == 0 {
		strategies = []string{"ehma"}
	}
	return Loaded{
		Mode:       mode,
		Registry:   registry,
		Risk:       riskCfg,
		Exec:       execCfg,
		FeeBps:     cfg.Sizing.FeeBps,
		Strategies: strategies,
		WAL:        cfg.WAL,
		Store:      cfg.Store,
		Live:       cfg.Live,
		Profiling:  cfg.Profiling,
	}, nil
}

func resolveMode(mode Mode) (Mode, error) {
	switch mode {
	case "":
		return ModeDryRun, nil
	case ModeReplay, ModeDryRun, ModePaper, ModeLive:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown mode: %s", mode)
	}
}

func buildRegistry(cfg RegistryConfig) (*schema.Registry, map[schema.InstrumentID]schema.Quantity, error) {
	reg := schema.NewRegistry()
	for _, venue := range cfg.Venues {
		if _, err := reg.AddVenue(venue.Name); err != nil {
			return nil, nil, err
		}
	}
	limits := make(map[schema.InstrumentID]schema.Quantity)
	for _, inst := range cfg.Instruments {
		venueID, ok := reg.VenueIDByName(inst.Venue)
		if !ok {
			return nil, nil, fmt.Errorf("venue not found: %s", inst.Venue)
		}
		if err := validateScale(inst.Scale); err != nil {
			return nil, nil, fmt.Errorf("invalid scale for %s: %w", inst.Name, err)
		}
		id, err := reg.AddInstrument(inst.Name, venueID, inst.Scale)
		if err != nil {
			return nil, nil, err
		}
		if inst.MaxPosition > 0 {
			limits[id] = inst.MaxPosition
		}
	}
	return reg, limits, nil
}

func validateScale(scale schema.ScaleSpec) error {
	if scale.PriceScale < 0 || scale.QuantityScale < 0 || scale.NotionalScale < 0 || scale.FeeScale < 0 {
		return fmt.Errorf("scale must be >= 0")
	}
	return nil
}

func resolveSizing(cfg SizingConfig) (exec.Config, error) {
	if cfg.BaseQty <= 0 {
		return exec.Config{}, fmt.Errorf("sizing baseQty must be > 0")
	}
	if cfg.MinQty < 0 {
		return exec.Config{}, fmt.Errorf("sizing minQty must be >= 0")
	}
	if cfg.FeeBps < 0 {
		return exec.Config{}, fmt.Errorf("sizing feeBps must be >= 0")
	}
	out := exec.Config{
		BaseQty:   cfg.BaseQty,
		MinQty:    cfg.MinQty,
		OrderType: cfg.OrderType,
	}
	if cfg.BrokerTimeoutMs > 0 {
		out.BrokerTimeout = time.Duration(cfg.BrokerTimeoutMs) * time.Millisecond
	}
	return out, nil
}
