// Package main provides the snowball command line entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/snowball/internal/config"
	"github.com/thebtf/snowball/internal/privacy"
	"github.com/thebtf/snowball/internal/source"
	"github.com/thebtf/snowball/internal/watcher"
	"github.com/thebtf/snowball/pkg/models"
	"github.com/thebtf/snowball/pkg/similarity"
	"github.com/thebtf/snowball/pkg/snowball"
)

// Version is set at build time via ldflags.
var Version = "dev"

// result is the JSON document written for every clustering run.
type result struct {
	Source           string          `json:"source"`
	Shape            string          `json:"shape"`
	DistanceFunction string          `json:"distance_function"`
	Threshold        float64         `json:"threshold"`
	ClusterSize      int             `json:"cluster_size"`
	Records          int             `json:"records"`
	Clusters         models.Clusters `json:"clusters"`
}

type options struct {
	source    string
	threshold float64
	watch     bool
	settings  *config.Config
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		cfg = config.Default()
	}

	src := flag.String("source", "", "Directory, path prefix, sqlite:// or postgres:// reference (required)")
	threshold := flag.Float64("threshold", cfg.Threshold, "Match threshold")
	distance := flag.String("distance", cfg.DistanceFunction, "Distance function: "+metricNames())
	comparison := flag.String("comparison", cfg.Comparison, "Threshold comparison: at_least or directional")
	clusterSize := flag.Int("cluster-size", cfg.ClusterSize, "Minimum members for a cluster")
	ext := flag.String("ext", cfg.Extension, "Record file extension for directory sources")
	table := flag.String("table", cfg.SourceTable, "Table for sqlite:// and postgres:// sources")
	watch := flag.Bool("watch", false, "Re-cluster when the source directory changes")
	progress := flag.Bool("progress", cfg.ShowProgress, "Log clustering progress")
	debug := flag.Bool("debug", false, "Enable debug logging")
	version := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *version {
		fmt.Println(Version)
		return
	}

	// Clusters go to stdout, logs to stderr.
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	if err != nil {
		log.Warn().Err(err).Msg("Failed to load config, using defaults")
	}
	if *src == "" {
		log.Fatal().Msg("-source is required")
	}

	cfg.DistanceFunction = *distance
	cfg.Comparison = *comparison
	cfg.ClusterSize = *clusterSize
	cfg.Extension = *ext
	cfg.SourceTable = *table
	cfg.ShowProgress = *progress

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("Shutting down")
		cancel()
	}()

	opts := options{source: *src, threshold: *threshold, watch: *watch, settings: cfg}
	if err := run(ctx, opts, os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("Clustering failed")
	}
}

func metricNames() string {
	names := make([]string, 0, 2)
	for _, m := range similarity.SupportedMetrics() {
		names = append(names, m.String())
	}
	return strings.Join(names, ", ")
}

// run clusters the source once and, in watch mode, again after every change
// until ctx is cancelled.
func run(ctx context.Context, opts options, out io.Writer) error {
	engineCfg, err := opts.settings.Engine()
	if err != nil {
		return err
	}

	var root, pattern string
	if opts.watch {
		if root, pattern, err = watchTarget(opts.source, engineCfg.Extension); err != nil {
			return err
		}
	}

	if err := clusterOnce(ctx, opts, engineCfg, out); err != nil {
		return err
	}
	if !opts.watch {
		return nil
	}

	var mu sync.Mutex
	w, err := watcher.New(ctx, root, func() {
		mu.Lock()
		defer mu.Unlock()
		if err := clusterOnce(ctx, opts, engineCfg, out); err != nil {
			log.Error().Err(err).Msg("Re-clustering failed")
		}
	}, watcher.Config{Pattern: pattern, Ignore: opts.settings.WatchIgnore})
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Start(); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}

	<-ctx.Done()
	return w.Stop()
}

func clusterOnce(ctx context.Context, opts options, cfg snowball.Config, out io.Writer) error {
	engine, err := snowball.New(ctx, opts.source, cfg)
	if err != nil {
		return err
	}

	clusters, err := engine.Cluster(opts.threshold, snowball.ClusterOptions{})
	if err != nil {
		return err
	}

	log.Info().
		Int("clusters", clusters.Len()).
		Int("clustered", clusters.Size()).
		Int("records", len(engine.Records())).
		Msg("Clustering finished")

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result{
		Source:           privacy.RedactReference(opts.source),
		Shape:            engine.Shape().String(),
		DistanceFunction: engine.Config().DistanceFunction.String(),
		Threshold:        opts.threshold,
		ClusterSize:      engine.Config().ClusterSize,
		Records:          len(engine.Records()),
		Clusters:         clusters,
	})
}

// watchTarget returns the directory and file pattern a directory source reads.
func watchTarget(ref, ext string) (string, string, error) {
	if strings.Contains(ref, "://") {
		return "", "", fmt.Errorf("-watch needs a directory source, got %s", ref)
	}
	dir, err := source.NewDir(source.DirConfig{Prefix: ref, Extension: ext})
	if err != nil {
		return "", "", err
	}
	return dir.Root(), filepath.Base(dir.String()), nil
}
