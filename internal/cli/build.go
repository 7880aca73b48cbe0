package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/hupe1980/hnswgo"
	"github.com/hupe1980/hnswgo/persistence"
	"github.com/hupe1980/hnswgo/snapshot"
	"github.com/spf13/cobra"
)

type buildOptions struct {
	config      string
	input       string
	compression string
	threads     int
	ioLimit     int64
	keep        int
}

func newBuildCommand(g *globals) *cobra.Command {
	o := &buildOptions{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build an index from a vector file and save a snapshot",
		Long: `Build an index from JSON-lines vectors and save it as a new snapshot.

The YAML config holds the index parameters (space, dimension, m,
ef_construction, ef_search, max_elements, num_threads, seed, compression).
A zero dimension is taken from the first vector and max_elements grows to
fit the input.

Examples:
  hnswctl build --config index.yaml --input vectors.jsonl
  hnswctl build --input vectors.jsonl --store s3://my-bucket/faces --keep 3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBuild(cmd, g, o)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&o.config, "config", "c", "", "YAML index config (default: built-in defaults)")
	flags.StringVarP(&o.input, "input", "i", "-", "JSON-lines vector file, - for stdin")
	flags.StringVar(&o.compression, "compression", "", "override snapshot compression: none, lz4, zstd")
	flags.IntVar(&o.threads, "threads", 0, "override num_threads")
	flags.Int64Var(&o.ioLimit, "io-limit", 0, "snapshot IO limit in bytes per second (0 = unlimited)")
	flags.IntVar(&o.keep, "keep", 0, "prune to the newest N snapshots after saving (0 = keep all)")

	return cmd
}

func runBuild(cmd *cobra.Command, g *globals, o *buildOptions) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(o.config)
	if err != nil {
		return err
	}
	if o.compression != "" {
		if cfg.Compression, err = persistence.ParseCompression(o.compression); err != nil {
			return err
		}
	}
	if o.threads > 0 {
		cfg.NumThreads = o.threads
	}

	c, err := g.jsonCodec()
	if err != nil {
		return err
	}

	vf, err := readInput(cmd, o.input, func(r io.Reader) (*vectorFile, error) { return readVectors(r, c) })
	if err != nil {
		return err
	}
	if len(vf.Vectors) == 0 {
		return fmt.Errorf("no vectors in %s", o.input)
	}

	if cfg.Dimension == 0 {
		cfg.Dimension = len(vf.Vectors[0])
	}
	cfg.MaxElements = max(cfg.MaxElements, len(vf.Vectors))

	logger, err := g.logger(cmd)
	if err != nil {
		return err
	}

	ctrl := hnswgo.NewResourceController(hnswgo.ResourceConfig{
		MaxWorkers:         cfg.NumThreads,
		IOLimitBytesPerSec: o.ioLimit,
	})

	idx, err := hnswgo.NewIndex(cfg.Config, hnswgo.WithLogger(logger), hnswgo.WithResourceController(ctrl))
	if err != nil {
		return err
	}

	if err := idx.InsertBatch(ctx, vf.IDs, vf.Vectors); err != nil {
		return err
	}

	store, err := openStore(ctx, g.store, g.ddbTable)
	if err != nil {
		return err
	}

	mgr := &snapshot.Manager{
		Store:       store,
		Compression: cfg.Compression,
		Controller:  ctrl,
		Logger:      logger,
	}

	info, err := mgr.Save(ctx, idx)
	if err != nil {
		return err
	}

	if vf.Records != nil {
		data, err := c.Marshal(vf.Records)
		if err != nil {
			return err
		}
		if err := store.Put(ctx, MetadataName, data); err != nil {
			return err
		}
	} else if err := store.Delete(ctx, MetadataName); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "saved %s: %d vectors, dimension %d, %d bytes (%s)\n",
		info.Key, idx.Count(), cfg.Dimension, info.Size, cfg.Compression)

	if o.keep > 0 {
		deleted, err := mgr.Prune(ctx, o.keep)
		if err != nil {
			return err
		}
		if deleted > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %d snapshot(s)\n", deleted)
		}
	}

	return nil
}

// readInput opens path ("-" is stdin) and decodes it with fn.
func readInput[T any](cmd *cobra.Command, path string, fn func(io.Reader) (T, error)) (T, error) {
	if path == "-" || path == "" {
		return fn(cmd.InOrStdin())
	}

	f, err := os.Open(path)
	if err != nil {
		var zero T
		return zero, err
	}
	defer f.Close()

	return fn(f)
}
