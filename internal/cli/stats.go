package cli

import (
	"fmt"

	"github.com/hupe1980/hnswgo"
	"github.com/hupe1980/hnswgo/snapshot"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type statsOptions struct {
	json     bool
	snapshot string
}

type statsReport struct {
	Snapshot  string       `json:"snapshot" yaml:"snapshot"`
	Snapshots []string     `json:"snapshots" yaml:"snapshots"`
	Index     hnswgo.Stats `json:"index" yaml:"index"`
}

func newStatsCommand(g *globals) *cobra.Command {
	o := &statsOptions{}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show statistics of the current snapshot",
		Long: `Load a snapshot and print its configuration, counts and per-level graph
statistics as YAML (or JSON with --json).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd, g, o)
		},
	}

	cmd.Flags().BoolVar(&o.json, "json", false, "output JSON")
	cmd.Flags().StringVar(&o.snapshot, "snapshot", "", "snapshot key to load instead of CURRENT")

	return cmd
}

func runStats(cmd *cobra.Command, g *globals, o *statsOptions) error {
	ctx := cmd.Context()

	idx, store, _, err := loadIndex(ctx, cmd, g, o.snapshot)
	if err != nil {
		return err
	}

	mgr := snapshot.NewManager(store)

	report := statsReport{Snapshot: o.snapshot}
	if report.Snapshot == "" {
		if report.Snapshot, err = mgr.Current(ctx); err != nil {
			return err
		}
	}

	infos, err := mgr.List(ctx)
	if err != nil {
		return err
	}
	for _, info := range infos {
		report.Snapshots = append(report.Snapshots, info.Key)
	}

	if report.Index, err = idx.Stats(); err != nil {
		return err
	}

	var data []byte
	if o.json {
		c, err := g.jsonCodec()
		if err != nil {
			return err
		}
		if data, err = c.Marshal(report); err != nil {
			return err
		}
		data = append(data, '\n')
	} else if data, err = yaml.Marshal(report); err != nil {
		return err
	}

	_, err = fmt.Fprint(cmd.OutOrStdout(), string(data))
	return err
}
