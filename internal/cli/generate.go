package cli

import (
	"bufio"
	"fmt"
	"io"
	"math/rand/v2"
	"os"

	"github.com/hupe1980/hnswgo/distance"
	"github.com/spf13/cobra"
)

type generateOptions struct {
	dim       int
	count     int
	seed      uint64
	normalize bool
	output    string
}

func newGenerateCommand(g *globals) *cobra.Command {
	o := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate random vectors",
		Long: `Generate uniformly distributed random vectors in [0, 1) as JSON lines.

Examples:
  hnswctl generate --dim 128 --count 10000 --output vectors.jsonl
  hnswctl generate --dim 16 --count 100 --normalize --seed 7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd, g, o)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&o.dim, "dim", 128, "vector dimension")
	flags.IntVar(&o.count, "count", 1000, "number of vectors")
	flags.Uint64Var(&o.seed, "seed", 1, "random seed")
	flags.BoolVar(&o.normalize, "normalize", false, "scale every vector to unit length")
	flags.StringVarP(&o.output, "output", "o", "", "output file (default stdout)")

	return cmd
}

func runGenerate(cmd *cobra.Command, g *globals, o *generateOptions) (err error) {
	if o.dim < 1 || o.count < 0 {
		return fmt.Errorf("--dim must be positive and --count non-negative")
	}

	c, err := g.jsonCodec()
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if o.output != "" && o.output != "-" {
		f, err := os.Create(o.output)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		out = f
	}

	bw := bufio.NewWriter(out)
	rng := rand.New(rand.NewPCG(o.seed, o.seed^0x9E3779B97F4A7C15))

	vec := make([]float32, o.dim)
	for i := range o.count {
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		for j := range vec {
			vec[j] = rng.Float32()
		}
		if o.normalize {
			distance.NormalizeL2InPlace(vec)
		}
		if err := writeVector(bw, c, uint64(i), vec); err != nil {
			return err
		}
	}

	return bw.Flush()
}
