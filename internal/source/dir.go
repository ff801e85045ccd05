package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/thebtf/snowball/pkg/dataset"
)

// DefaultConcurrency bounds concurrent file decoding.
const DefaultConcurrency = 8

// DirConfig configures a Dir source.
type DirConfig struct {
	Logger *zerolog.Logger
	// Prefix is a directory (all *.ext files inside it) or a path prefix
	// (all files matching Prefix*.ext).
	Prefix      string
	Extension   string
	Concurrency int
}

// Dir loads one record per file.
type Dir struct {
	logger      *zerolog.Logger
	pattern     string
	extension   string
	concurrency int
}

// NewDir creates a directory source.
func NewDir(cfg DirConfig) (*Dir, error) {
	if cfg.Prefix == "" {
		return nil, fmt.Errorf("source prefix is required")
	}

	ext := strings.TrimPrefix(strings.ToLower(cfg.Extension), ".")
	if ext == "" {
		ext = dataset.DefaultExtension
	}

	pattern := cfg.Prefix + "*." + ext
	if info, err := os.Stat(cfg.Prefix); err == nil && info.IsDir() {
		pattern = filepath.Join(cfg.Prefix, "*."+ext)
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	logger := cfg.Logger
	if logger == nil {
		logger = &log.Logger
	}

	return &Dir{
		logger:      logger,
		pattern:     pattern,
		extension:   ext,
		concurrency: concurrency,
	}, nil
}

func (d *Dir) String() string {
	return d.pattern
}

// Root returns the directory holding the matched files.
func (d *Dir) Root() string {
	return filepath.Dir(d.pattern)
}

// Load decodes every matching file, in file name order.
// Files that fail to decode are skipped with a warning.
func (d *Dir) Load(ctx context.Context) ([]dataset.Item, error) {
	paths, err := filepath.Glob(d.pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", d.pattern, err)
	}
	sort.Strings(paths)

	decoded := make([]map[string]any, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fields, err := d.decodeFile(path)
			if err != nil {
				d.logger.Warn().Err(err).Str("path", path).Msg("Skipping undecodable record file")
				return nil
			}
			decoded[i] = fields
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	items := make([]dataset.Item, 0, len(paths))
	for i, fields := range decoded {
		if fields == nil {
			continue
		}
		items = append(items, dataset.Item{
			Origin: strings.TrimSuffix(filepath.Base(paths[i]), filepath.Ext(paths[i])),
			Fields: fields,
		})
	}
	return items, nil
}

func (d *Dir) decodeFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read record file: %w", err)
	}
	return Decode(d.extension, data)
}

// Decode decodes a single record document. yaml/yml use YAML, everything
// else is treated as JSON.
func Decode(extension string, data []byte) (map[string]any, error) {
	var fields map[string]any
	switch extension {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("decode yaml record: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("decode json record: %w", err)
		}
	}
	if fields == nil {
		return nil, fmt.Errorf("record document is empty")
	}
	return fields, nil
}
