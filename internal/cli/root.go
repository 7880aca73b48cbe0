package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/hupe1980/hnswgo"
	"github.com/hupe1980/hnswgo/codec"
	"github.com/spf13/cobra"
)

const (
	// DefaultStore is the snapshot location used when --store is not set.
	DefaultStore = "./hnsw-data"
	// MetadataName is the blob holding the records of the last build.
	MetadataName = "metadata.json"
)

type globals struct {
	store    string
	ddbTable string
	logLevel string
	codec    string
}

// NewRootCommand returns the hnswctl command tree.
func NewRootCommand() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:   "hnswctl",
		Short: "Build, query and inspect HNSW index snapshots",
		Long: `hnswctl manages approximate nearest neighbor indexes stored as snapshots.

Vectors are read and written as JSON lines:
  {"id": 1, "vector": [0.1, 0.2, ...], "record": {"name": "Ada"}}

The id is optional (ids are then assigned in input order) and the record is
only used by query --threshold.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pflags := root.PersistentFlags()
	pflags.StringVar(&g.store, "store", DefaultStore, "snapshot store: directory, s3://bucket/prefix or minio://host/bucket/prefix")
	pflags.StringVar(&g.ddbTable, "ddb-table", "", "DynamoDB table committing CURRENT for s3:// stores (concurrent writers)")
	pflags.StringVar(&g.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	pflags.StringVar(&g.codec, "codec", codec.Default.Name(), fmt.Sprintf("JSON codec for vector files %v", codec.Names()))

	root.AddCommand(
		newGenerateCommand(g),
		newBuildCommand(g),
		newQueryCommand(g),
		newStatsCommand(g),
	)

	return root
}

func (g *globals) logger(cmd *cobra.Command) (*hnswgo.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(g.logLevel))); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", g.logLevel)
	}
	return hnswgo.NewLogger(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})), nil
}

func (g *globals) jsonCodec() (codec.Codec, error) {
	c, ok := codec.ByName(g.codec)
	if !ok {
		return nil, fmt.Errorf("unknown --codec %q, want one of %v", g.codec, codec.Names())
	}
	return c, nil
}
