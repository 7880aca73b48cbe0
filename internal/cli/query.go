package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/hnswgo"
	"github.com/hupe1980/hnswgo/blobstore"
	"github.com/hupe1980/hnswgo/codec"
	"github.com/hupe1980/hnswgo/match"
	"github.com/hupe1980/hnswgo/snapshot"
	"github.com/spf13/cobra"
)

type queryOptions struct {
	input     string
	k         int
	ef        int
	threshold float32
	match     bool
	snapshot  string
}

func newQueryCommand(g *globals) *cobra.Command {
	o := &queryOptions{}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query the current snapshot",
		Long: `Load the current snapshot and run every vector of the input as a query.

One JSON line is written per query, in input order:
  {"ids": [...], "distances": [...]}

With --match or --threshold each query is matched against its nearest
neighbor instead and the build records are attached. --match alone uses the
default cutoff of 0.5 in hnswlib units (Euclidean sqrt(0.5) for the l2 space):
  {"status": "found", "id": 3, "distance": 0.21, "record": {...}}
  {"status": "unknown", "distance": 0.93}

Examples:
  hnswctl query --input queries.jsonl -k 5 --ef 64
  hnswctl query --input queries.jsonl --match
  hnswctl query --input queries.jsonl --threshold 0.5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runQuery(cmd, g, o)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&o.input, "input", "i", "-", "JSON-lines query file, - for stdin")
	flags.IntVarP(&o.k, "k", "k", 10, "neighbors per query")
	flags.IntVar(&o.ef, "ef", 0, "override ef_search (0 = use the snapshot's value)")
	flags.BoolVar(&o.match, "match", false, "match mode with the default threshold")
	flags.Float32Var(&o.threshold, "threshold", 0, "match mode: maximum accepted distance")
	flags.StringVar(&o.snapshot, "snapshot", "", "snapshot key to load instead of CURRENT")

	return cmd
}

func loadIndex(ctx context.Context, cmd *cobra.Command, g *globals, key string) (*hnswgo.Index, blobstore.Store, *hnswgo.Logger, error) {
	logger, err := g.logger(cmd)
	if err != nil {
		return nil, nil, nil, err
	}

	store, err := openStore(ctx, g.store, g.ddbTable)
	if err != nil {
		return nil, nil, nil, err
	}

	mgr := snapshot.NewManager(store)
	mgr.Logger = logger

	var idx *hnswgo.Index
	if key != "" {
		idx, err = mgr.LoadKey(ctx, key, hnswgo.WithLogger(logger))
	} else {
		idx, err = mgr.Load(ctx, hnswgo.WithLogger(logger))
	}
	if err != nil {
		return nil, nil, nil, err
	}

	return idx, store, logger, nil
}

func runQuery(cmd *cobra.Command, g *globals, o *queryOptions) error {
	ctx := cmd.Context()

	c, err := g.jsonCodec()
	if err != nil {
		return err
	}

	idx, store, logger, err := loadIndex(ctx, cmd, g, o.snapshot)
	if err != nil {
		return err
	}

	if o.ef > 0 {
		if err := idx.SetEfSearch(o.ef); err != nil {
			return err
		}
	}

	vf, err := readInput(cmd, o.input, func(r io.Reader) (*vectorFile, error) { return readVectors(r, c) })
	if err != nil {
		return err
	}

	var results []any
	if o.match || cmd.Flags().Changed("threshold") {
		opts := []match.Option{match.WithLogger(logger)}
		if cmd.Flags().Changed("threshold") {
			opts = append(opts, match.WithThreshold(o.threshold))
		}
		results, err = matchAll(ctx, idx, store, c, opts, vf.Vectors)
	} else {
		results, err = queryAll(ctx, idx, vf.Vectors, o.k)
	}
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(cmd.OutOrStdout())
	for _, r := range results {
		data, err := c.Marshal(r)
		if err != nil {
			return err
		}
		if _, err := bw.Write(append(data, '\n')); err != nil {
			return err
		}
	}

	return bw.Flush()
}

func queryAll(ctx context.Context, idx *hnswgo.Index, vecs [][]float32, k int) ([]any, error) {
	batch, err := idx.QueryBatch(ctx, vecs, k)
	if err != nil {
		return nil, err
	}

	out := make([]any, len(batch))
	for i, r := range batch {
		out[i] = r
	}
	return out, nil
}

func matchAll(ctx context.Context, idx *hnswgo.Index, store blobstore.Store, c codec.Codec, opts []match.Option, vecs [][]float32) ([]any, error) {
	meta, err := loadMetadata(ctx, store, c)
	if err != nil {
		return nil, err
	}

	m, err := match.New(idx, meta, opts...)
	if err != nil {
		return nil, err
	}

	batch, err := m.MatchBatch(ctx, vecs)
	if err != nil {
		return nil, err
	}

	out := make([]any, len(batch))
	for i, r := range batch {
		out[i] = r
	}
	return out, nil
}

// loadMetadata reads the records saved by build. A missing blob yields an empty store.
func loadMetadata(ctx context.Context, store blobstore.Store, c codec.Codec) (*match.MemoryMetadataStore, error) {
	meta := match.NewMemoryMetadataStore()

	data, err := store.Get(ctx, MetadataName)
	if errors.Is(err, blobstore.ErrNotFound) {
		return meta, nil
	}
	if err != nil {
		return nil, err
	}

	var records map[uint64]match.Record
	if err := c.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%s: %w", MetadataName, err)
	}

	for id, rec := range records {
		if err := meta.Put(ctx, id, rec); err != nil {
			return nil, err
		}
	}

	return meta, nil
}
