// bench - schemapack benchmark runner
//
// Compares the snapshot sample encoded as:
//   - JSON (minified)
//   - msgpack
//   - schemapack
//   - schemapack wrapped in zstd
//
// and measures parallel encode throughput with one model per worker.
//
// Output: summary on stdout, optional markdown report
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"runtime"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/errgroup"

	"github.com/Neumenon/schemapack/internal/config"
	"github.com/Neumenon/schemapack/schemapack"
)

type options struct {
	players    int
	iterations int
	workers    int
	seed       uint64
	report     string
}

// SizeResult is one row of the size comparison.
type SizeResult struct {
	Name  string
	Bytes int
	Pct   float64 // relative to JSON
}

// Throughput is the outcome of the parallel encode run.
type Throughput struct {
	Workers   int
	Encodes   int
	Bytes     int64
	Elapsed   time.Duration
	PerSecond float64
}

func main() {
	var opts options
	flag.IntVar(&opts.players, "players", 2, "players in the snapshot sample")
	flag.IntVar(&opts.iterations, "n", 100000, "encodes per worker")
	flag.IntVar(&opts.workers, "workers", runtime.GOMAXPROCS(0), "parallel encode workers")
	flag.Uint64Var(&opts.seed, "seed", 1, "sample generator seed")
	flag.StringVar(&opts.report, "report", "", "write a markdown report to this file")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := cfg.Logger()

	if err := run(context.Background(), cfg, log, opts, os.Stdout); err != nil {
		log.Error("bench failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger, opts options, w io.Writer) error {
	reg := schemapack.NewRegistry(schemapack.WithLogger(log))
	snapshot, err := defineSnapshot(reg)
	if err != nil {
		return err
	}
	sample := newSample(opts.players, opts.seed)

	sizes, err := compareSizes(snapshot, cfg, sample)
	if err != nil {
		return err
	}
	log.Info("sizes measured", "players", opts.players, "schemapack", sizes[2].Bytes, "json", sizes[0].Bytes)

	pool := schemapack.NewModelPool(snapshot, cfg.ModelOptions()...)
	tp, err := measureThroughput(ctx, pool, sample, opts.workers, opts.iterations)
	if err != nil {
		return err
	}
	log.Info("throughput measured", "workers", tp.Workers, "encodes", tp.Encodes, "elapsed", tp.Elapsed)

	writeSummary(w, opts, sizes, tp)
	if opts.report != "" {
		f, err := os.Create(opts.report)
		if err != nil {
			return fmt.Errorf("create report: %w", err)
		}
		defer f.Close()
		writeMarkdown(f, opts, sizes, tp)
		fmt.Fprintf(os.Stderr, "Markdown written to: %s\n", opts.report)
	}
	return nil
}

// defineSnapshot registers the game-state sample schemas.
func defineSnapshot(reg *schemapack.Registry) (*schemapack.Schema, error) {
	castle, err := reg.Define(schemapack.Definition{"id": schemapack.Uint8(), "health": schemapack.Uint8()}, schemapack.WithName("castle"))
	if err != nil {
		return nil, err
	}
	player, err := reg.Define(schemapack.Definition{
		"id": schemapack.Uint8(),
		"x":  schemapack.Int16(),
		"y":  schemapack.Int16(),
	}, schemapack.WithName("player"))
	if err != nil {
		return nil, err
	}
	item, err := reg.Define(schemapack.Definition{"value": schemapack.Uint8()}, schemapack.WithName("item"))
	if err != nil {
		return nil, err
	}
	return reg.Define(schemapack.Definition{
		"time":   schemapack.Uint16(),
		"single": schemapack.Uint8(),
		"data": schemapack.Definition{
			"list":    []*schemapack.Schema{item},
			"players": []*schemapack.Schema{player},
			"castles": []*schemapack.Schema{castle},
		},
	}, schemapack.WithName("snapshot"))
}

// newSample builds a snapshot with n players. Two players reproduce the
// classic sample exactly.
func newSample(n int, seed uint64) map[string]any {
	players := []any{
		map[string]any{"id": 14, "x": 145, "y": 98},
		map[string]any{"id": 15, "x": 218, "y": -14},
	}
	if n < len(players) {
		players = players[:max(n, 0)]
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	for i := len(players); i < n; i++ {
		players = append(players, map[string]any{
			"id": i % 256,
			"x":  rng.IntN(4096) - 2048,
			"y":  rng.IntN(4096) - 2048,
		})
	}
	return map[string]any{
		"time":   1234,
		"single": 0,
		"data": map[string]any{
			"list":    []any{map[string]any{"value": 1}, map[string]any{"value": 2}},
			"castles": []any{map[string]any{"id": 2, "health": 81}},
			"players": players,
		},
	}
}

func compareSizes(s *schemapack.Schema, cfg *config.Config, sample map[string]any) ([]SizeResult, error) {
	jsonBytes, err := json.Marshal(sample)
	if err != nil {
		return nil, fmt.Errorf("json: %w", err)
	}
	msgpackBytes, err := msgpack.Marshal(sample)
	if err != nil {
		return nil, fmt.Errorf("msgpack: %w", err)
	}
	packed, err := schemapack.NewModel(s, cfg.ModelOptions()...).Encode(sample)
	if err != nil {
		return nil, fmt.Errorf("schemapack: %w", err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	defer enc.Close()
	zipped := enc.EncodeAll(packed, nil)

	results := []SizeResult{
		{Name: "json", Bytes: len(jsonBytes)},
		{Name: "msgpack", Bytes: len(msgpackBytes)},
		{Name: "schemapack", Bytes: len(packed)},
		{Name: "schemapack+zstd", Bytes: len(zipped)},
	}
	for i := range results {
		results[i].Pct = float64(results[i].Bytes) / float64(len(jsonBytes)) * 100
	}
	return results, nil
}

// measureThroughput encodes sample iterations times on each of workers
// goroutines. Every worker holds its own model from the pool.
func measureThroughput(ctx context.Context, pool *schemapack.ModelPool, sample map[string]any, workers, iterations int) (Throughput, error) {
	workers = max(workers, 1)
	bytesOut := make([]int64, workers)

	g, ctx := errgroup.WithContext(ctx)
	start := time.Now()
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			m := pool.Get()
			defer pool.Put(m)
			for i := 0; i < iterations; i++ {
				if i%1024 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				out, err := m.Encode(sample)
				if err != nil {
					return err
				}
				bytesOut[w] += int64(len(out))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Throughput{}, err
	}
	elapsed := time.Since(start)

	tp := Throughput{Workers: workers, Encodes: workers * iterations, Elapsed: elapsed}
	for _, n := range bytesOut {
		tp.Bytes += n
	}
	if elapsed > 0 {
		tp.PerSecond = float64(tp.Encodes) / elapsed.Seconds()
	}
	return tp, nil
}

func writeSummary(w io.Writer, opts options, sizes []SizeResult, tp Throughput) {
	fmt.Fprintf(w, "\n=== SUMMARY ===\n")
	fmt.Fprintf(w, "Players:      %d\n", opts.players)
	for _, r := range sizes {
		fmt.Fprintf(w, "%-16s %6d bytes (%.1f%% of JSON)\n", r.Name+":", r.Bytes, r.Pct)
	}
	fmt.Fprintf(w, "Encodes:      %d on %d workers in %s\n", tp.Encodes, tp.Workers, tp.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Throughput:   %.0f encodes/s, %.1f MiB/s\n", tp.PerSecond, mibPerSecond(tp))
}

func writeMarkdown(w io.Writer, opts options, sizes []SizeResult, tp Throughput) {
	fmt.Fprintf(w, "# schemapack Benchmark Results\n\n")
	fmt.Fprintf(w, "**Date:** %s  \n", time.Now().Format("2006-01-02"))
	fmt.Fprintf(w, "**Sample:** snapshot with %d players (seed %d)  \n\n", opts.players, opts.seed)

	fmt.Fprintf(w, "## Size\n\n")
	fmt.Fprintf(w, "| Format | Bytes | vs JSON |\n")
	fmt.Fprintf(w, "|--------|-------|---------|\n")
	for _, r := range sizes {
		fmt.Fprintf(w, "| %s | %d | %.1f%% |\n", r.Name, r.Bytes, r.Pct)
	}

	fmt.Fprintf(w, "\n## Encode Throughput\n\n")
	fmt.Fprintf(w, "| Workers | Encodes | Elapsed | Encodes/s | MiB/s |\n")
	fmt.Fprintf(w, "|---------|---------|---------|-----------|-------|\n")
	fmt.Fprintf(w, "| %d | %d | %s | %.0f | %.1f |\n\n", tp.Workers, tp.Encodes, tp.Elapsed.Round(time.Millisecond), tp.PerSecond, mibPerSecond(tp))

	fmt.Fprintf(w, "## Methodology\n\n")
	fmt.Fprintf(w, "- **JSON:** Minified, using Go's `json.Marshal`\n")
	fmt.Fprintf(w, "- **msgpack:** `github.com/vmihailenco/msgpack/v5`\n")
	fmt.Fprintf(w, "- **schemapack+zstd:** schemapack buffer in one zstd frame at best-compression level\n")
	fmt.Fprintf(w, "- **Throughput:** each worker encodes with its own pooled model\n")
}

func mibPerSecond(tp Throughput) float64 {
	if tp.Elapsed <= 0 {
		return 0
	}
	return float64(tp.Bytes) / (1 << 20) / tp.Elapsed.Seconds()
}
