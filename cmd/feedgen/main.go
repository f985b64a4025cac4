package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"main/internal/codec"
	"main/internal/feed"
	"main/internal/ops"
	"main/internal/schema"
	"main/internal/wal"
)

func main() {
	configPath := flag.String("config", "", "Path to JSON config")
	walDir := flag.String("wal-dir", "", "Write bars as events into this WAL directory")
	outPath := flag.String("out", "", "Write bars as JSONL to this file (- for stdout)")
	cycles := flag.Int("cycles", 256, "Number of bar cycles to generate")
	interval := flag.Duration("interval", time.Second, "Bar interval")
	basePrice := flag.Int64("base-price", 100_000, "Base price (scaled)")
	amplitude := flag.Int64("amplitude", 500, "Max per-bar price move (scaled)")
	baseVolume := flag.Int64("base-volume", 10, "Base volume (scaled)")
	seed := flag.Uint64("seed", 1, "Generator seed")
	start := flag.String("start", "2024-01-02T09:30:00Z", "Session start (RFC3339)")
	flag.Parse()

	if *walDir == "" && *outPath == "" {
		log.Fatalf("either -wal-dir or -out is required")
	}

	loaded, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	startAt, err := time.Parse(time.RFC3339, *start)
	if err != nil {
		log.Fatalf("invalid start: %v", err)
	}

	gen, err := feed.NewGenerator(loaded.Registry, *interval, *basePrice, *amplitude, *baseVolume, *seed)
	if err != nil {
		log.Fatalf("generator init failed: %v", err)
	}
	bars := gen.Session(startAt, *cycles)

	if *walDir != "" {
		if err := writeWAL(context.Background(), *walDir, bars); err != nil {
			log.Fatalf("wal write failed: %v", err)
		}
	}
	if *outPath != "" {
		if err := writeJSONL(*outPath, loaded.Registry, bars); err != nil {
			log.Fatalf("jsonl write failed: %v", err)
		}
	}
	log.Printf("generated bars=%d cycles=%d instruments=%d", len(bars), *cycles, loaded.Registry.InstrumentCount())
}

func writeWAL(ctx context.Context, dir string, bars []schema.Bar) error {
	_ = ctx
	w, err := wal.NewWriter(wal.DefaultConfig(dir))
	if err != nil {
		return err
	}
	var (
		seq uint64
		buf []byte
	)
	for _, bar := range bars {
		seq++
		header := schema.NewHeader(schema.EventBar, 1, seq, bar.TsNano, bar.TsNano)
		header.TraceID = seq
		buf = codec.EncodeBar(buf[:0], bar)
		if err := w.Append(header, buf); err != nil {
			_ = w.Close()
			return err
		}
	}
	return w.Close()
}

func writeJSONL(path string, reg *schema.Registry, bars []schema.Bar) error {
	out := os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	w := bufio.NewWriter(out)
	for _, bar := range bars {
		inst, ok := reg.Instrument(schema.InstrumentID(bar.InstrumentID))
		if !ok {
			return fmt.Errorf("unknown instrument id: %d", bar.InstrumentID)
		}
		ps := int32(inst.Scale.PriceScale)
		qs := int32(inst.Scale.QuantityScale)
		fmt.Fprintf(w, `{"instrument":%q,"ts":%d,"open":%q,"high":%q,"low":%q,"close":%q,"volume":%q}`+"\n",
			inst.Name, bar.TsNano,
			formatScaled(int64(bar.Open), ps),
			formatScaled(int64(bar.High), ps),
			formatScaled(int64(bar.Low), ps),
			formatScaled(int64(bar.Close), ps),
			formatScaled(int64(bar.Volume), qs),
		)
	}
	return w.Flush()
}

func formatScaled(value int64, scale int32) string {
	neg := value < 0
	if neg {
		value = -value
	}
	s := strconv.FormatInt(value, 10)
	if scale > 0 {
		for int32(len(s)) <= scale {
			s = "0" + s
		}
		cut := len(s) - int(scale)
		s = s[:cut] + "." + s[cut:]
	}
	if neg {
		s = "-" + s
	}
	return s
}

func loadConfig(path string) (ops.Loaded, error) {
	if path == "" {
		scale := schema.ScaleSpec{PriceScale: 8, QuantityScale: 8, NotionalScale: 8, FeeScale: 8}
		return ops.Resolve(ops.FileConfig{
			Mode: ops.ModeReplay,
			Registry: ops.RegistryConfig{
				Venues: []ops.VenueConfig{{Name: "SIM"}},
				Instruments: []ops.InstrumentConfig{
					{Name: "TEST-USD", Venue: "SIM", Scale: scale},
				},
			},
			Sizing: ops.SizingConfig{BaseQty: 1},
		})
	}
	return ops.Load(path)
}
