package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"

	"main/internal/bus"
	"main/internal/clock"
	"main/internal/exec"
	"main/internal/feed"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/risk"
	"main/internal/runner"
	"main/internal/schema"
	"main/internal/state"
	"main/internal/store"
	"main/internal/strategy"
	"main/internal/wal"
	"main/pkg/conn"
)

func main() {
	configPath := flag.String("config", "", "Path to JSON config")
	walDir := flag.String("wal-dir", "", "WAL directory (overrides config)")
	cycles := flag.Int("cycles", 0, "Max decision cycles (0=until data exhausted)")
	barsPath := flag.String("bars", "", "JSONL bar file for replay mode")
	barsWALDir := flag.String("bars-wal", "", "WAL directory holding recorded bar events for replay mode")
	synthetic := flag.Int("synthetic", 0, "Generate N synthetic cycles instead of reading bars")
	seed := flag.Uint64("seed", 1, "Seed for synthetic bars")
	snapshotPath := flag.String("snapshot-path", "", "Position snapshot output (default: <wal-dir>/positions.json)")
	verifySnapshot := flag.Bool("verify-snapshot", false, "Verify final positions against the snapshot after a replay run")
	recoverEnabled := flag.Bool("recover", false, "Recover positions from snapshot + WAL before running")
	flag.Parse()

	ctx := context.Background()
	loaded, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *walDir != "" {
		loaded.WAL.Dir = *walDir
	}
	if loaded.WAL.Dir == "" {
		loaded.WAL.Dir = "testdata/wal"
	}

	if loaded.Profiling {
		stop, err := startProfiler()
		if err != nil {
			log.Fatalf("profiler start failed: %v", err)
		}
		defer stop()
	}

	if err := run(ctx, loaded, runOptions{
		cycles:         *cycles,
		barsPath:       *barsPath,
		barsWALDir:     *barsWALDir,
		synthetic:      *synthetic,
		seed:           *seed,
		snapshotPath:   resolveSnapshotPath(loaded.WAL.Dir, *snapshotPath),
		verifySnapshot: *verifySnapshot,
		recover:        *recoverEnabled,
	}); err != nil {
		if errors.Is(err, runner.ErrHalted) {
			log.Fatalf("halted: %v", err)
		}
		log.Fatalf("run failed: %v", err)
	}
}

type runOptions struct {
	cycles         int
	barsPath       string
	barsWALDir     string
	synthetic      int
	seed           uint64
	snapshotPath   string
	verifySnapshot bool
	recover        bool
}

func run(ctx context.Context, loaded ops.Loaded, opt runOptions) error {
	metrics := obs.NewMetrics()

	walCfg := wal.DefaultConfig(loaded.WAL.Dir)
	if loaded.WAL.FilePrefix != "" {
		walCfg.FilePrefix = loaded.WAL.FilePrefix
	}
	if loaded.WAL.SegmentMaxBytes > 0 {
		walCfg.SegmentMaxBytes = loaded.WAL.SegmentMaxBytes
	}
	walCfg.SyncEveryRecord = loaded.Mode == ops.ModeLive
	if loaded.WAL.SyncEveryRecord != nil {
		walCfg.SyncEveryRecord = *loaded.WAL.SyncEveryRecord
	}
	writer, err := wal.NewWriter(walCfg)
	if err != nil {
		return err
	}
	defer writer.Close()

	b := bus.New(writer, 1, metrics)
	defer b.Close()

	tracker := state.NewTracker()
	var (
		lastSeq     uint64
		lastEventTs int64
	)
	if opt.recover {
		recovered, err := state.RecoverPositions(ctx, state.RecoverConfig{
			WALDir:       loaded.WAL.Dir,
			SnapshotPath: opt.snapshotPath,
			FilePrefix:   walCfg.FilePrefix,
		})
		if err != nil {
			return err
		}
		tracker = recovered.Positions
		lastSeq = recovered.LastSeq
		lastEventTs = recovered.LastEventTs
		b.ResumeFrom(lastSeq)
		log.Printf("recovered positions=%d last_seq=%d", tracker.Count(), lastSeq)
	}

	source, clk, err := buildFeed(loaded, opt)
	if err != nil {
		return err
	}

	kill := risk.NewKillSwitchState(clk.Now())
	manager := risk.NewManager(loaded.Risk)
	broker, closeBroker, err := buildBroker(ctx, loaded, clk)
	if err != nil {
		return err
	}
	defer closeBroker()

	if loaded.Mode == ops.ModeLive {
		if err := reconcilePositions(ctx, broker, tracker); err != nil {
			return err
		}
	}

	handler := exec.NewHandler(loaded.Exec, manager, kill, tracker, broker, b, clk, metrics)
	handler.SeedOrderID(lastSeq)

	strategies, err := strategy.Default().Build(loaded.Strategies)
	if err != nil {
		return err
	}
	analytics := strategy.NewRollingAnalytics(12, 26)

	orch, err := runner.New(runner.Config{
		Clock:      clk,
		Source:     source,
		Registry:   loaded.Registry,
		Strategies: strategies,
		Analytics:  analytics,
		Tracker:    tracker,
		Handler:    handler,
		Bus:        b,
		Kill:       kill,
		Metrics:    metrics,
		MaxCycles:  opt.cycles,
	})
	if err != nil {
		return err
	}
	orch.SeedSignalID(lastSeq)

	var stopMirror func()
	if loaded.Store.DSN != "" {
		mirror, err := store.NewMirror(conn.Option{ConnString: loaded.Store.DSN})
		if err != nil {
			return err
		}
		defer mirror.Close()
		stopMirror, err = mirror.Drain(ctx, b)
		if err != nil {
			return err
		}
	}

	runErr := orch.Run(ctx)
	if stopMirror != nil {
		stopMirror()
	}
	if flushErr := writer.Sync(); flushErr != nil && runErr == nil {
		runErr = flushErr
	}

	lastEventTs = clk.Now()
	if opt.snapshotPath != "" && runErr == nil {
		snapshot := tracker.SnapshotWithMeta(b.LastSeq(), lastEventTs)
		if opt.verifySnapshot && loaded.Mode == ops.ModeReplay {
			expected, err := state.ReadSnapshot(opt.snapshotPath)
			if err != nil {
				return err
			}
			if err := state.CompareSnapshots(expected, tracker.Snapshot()); err != nil {
				return err
			}
			log.Printf("snapshot verified: positions=%d", tracker.Count())
		} else if err := state.WriteSnapshot(opt.snapshotPath, snapshot); err != nil {
			return err
		}
	}

	snap := metrics.Snapshot()
	log.Printf("done: state=%s cycles=%d events=%v rejects=%v drops=%d gaps=%d faults=%d",
		orch.State(), orch.Cycles(), snap.EventCounts, snap.RejectCounts,
		snap.BroadcastDrops, snap.DataGaps, snap.StrategyFaults)
	return runErr
}

func buildFeed(loaded ops.Loaded, opt runOptions) (feed.Source, clock.Clock, error) {
	switch loaded.Mode {
	case ops.ModeReplay:
		bars, err := loadBars(loaded, opt)
		if err != nil {
			return nil, nil, err
		}
		return feed.NewReplaySource(bars)
	case ops.ModeLive:
		return feed.NewLiveSource(), clock.NewLive(), nil
	default:
		cycles := opt.synthetic
		if cycles == 0 {
			cycles = opt.cycles
		}
		if cycles == 0 {
			cycles = 256
		}
		gen, err := feed.NewGenerator(loaded.Registry, time.Second, 100_000, 500, 10, opt.seed)
		if err != nil {
			return nil, nil, err
		}
		start := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
		return feed.NewReplaySource(gen.Session(start, cycles))
	}
}

func loadBars(loaded ops.Loaded, opt runOptions) ([]schema.Bar, error) {
	switch {
	case opt.barsPath != "":
		f, err := os.Open(opt.barsPath)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return feed.LoadBarsJSONL(f, loaded.Registry)
	case opt.barsWALDir != "":
		return feed.LoadBarsWAL(context.Background(), wal.ScanConfig{Dir: opt.barsWALDir})
	default:
		return nil, errors.New("replay mode requires -bars or -bars-wal")
	}
}

// reconcilePositions compares the venue's open positions against the
// recovered local book before trading starts. A mismatch means the local
// log and the venue disagree about exposure, which is not safe to trade on.
func reconcilePositions(ctx context.Context, broker exec.Broker, tracker *state.Tracker) error {
	venue, err := broker.Positions(ctx)
	if err != nil {
		return err
	}
	for _, pos := range venue {
		local := tracker.Position(schema.InstrumentID(pos.InstrumentID))
		if local.Qty != pos.Qty {
			return fmt.Errorf("position desync on instrument %d: venue=%d local=%d",
				pos.InstrumentID, pos.Qty, local.Qty)
		}
	}
	log.Printf("positions reconciled: venue=%d", len(venue))
	return nil
}

func buildBroker(ctx context.Context, loaded ops.Loaded, clk clock.Clock) (exec.Broker, func(), error) {
	switch loaded.Mode {
	case ops.ModeLive:
		live := exec.NewLiveBroker(ctx, exec.LiveBrokerConfig{
			URL: loaded.Live.URL,
			VenueSymbol: func(instrumentID uint32) string {
				inst, _ := loaded.Registry.Instrument(schema.InstrumentID(instrumentID))
				return inst.Name
			},
			InstrumentBySymbol: func(symbol string) (uint32, bool) {
				id, ok := loaded.Registry.InstrumentIDByName(symbol)
				return uint32(id), ok
			},
		})
		if err := live.Start(ctx); err != nil {
			return nil, nil, err
		}
		return live, live.Close, nil
	case ops.ModeDryRun:
		return exec.DryRunBroker{}, func() {}, nil
	default:
		return exec.NewPaperBroker(clk, loaded.FeeBps), func() {}, nil
	}
}

func loadConfig(path string) (ops.Loaded, error) {
	if path == "" {
		return defaultLoaded()
	}
	return ops.Load(path)
}

func defaultLoaded() (ops.Loaded, error) {
	scale := schema.ScaleSpec{PriceScale: 8, QuantityScale: 8, NotionalScale: 8, FeeScale: 8}
	return ops.Resolve(ops.FileConfig{
		Mode: ops.ModePaper,
		Registry: ops.RegistryConfig{
			Venues: []ops.VenueConfig{{Name: "SIM"}},
			Instruments: []ops.InstrumentConfig{
				{Name: "TEST-USD", Venue: "SIM", Scale: scale},
			},
		},
		Risk: risk.Config{
			MaxOrderQty:      schema.Quantity(1000),
			MaxOrderNotional: schema.Notional(1_000_000_000),
			MaxPosition:      schema.Quantity(5000),
		},
		Sizing: ops.SizingConfig{
			BaseQty:   schema.Quantity(10),
			OrderType: schema.OrderTypeLimit,
		},
		Strategies: []string{"ehma"},
	})
}

func resolveSnapshotPath(dir, path string) string {
	if path != "" {
		return path
	}
	return filepath.Join(dir, "positions.json")
}

func startProfiler() (func(), error) {
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: "trading/runner",
		ServerAddress:   "http://localhost:4040",
		Tags:            map[string]string{"env": "local"},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
	if err != nil {
		return nil, err
	}
	return func() { _ = profiler.Stop() }, nil
}
