package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hupe1980/hnswgo"
	"github.com/hupe1980/hnswgo/persistence"
	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML layout read by build:
//
//	space: cosine
//	dimension: 128
//	m: 16
//	ef_construction: 200
//	ef_search: 50
//	max_elements: 100000
//	seed: 42
//	compression: zstd
type fileConfig struct {
	hnswgo.Config `yaml:",inline"`
	Compression   persistence.Compression `yaml:"compression"`
}

func defaultFileConfig() fileConfig {
	return fileConfig{
		Config:      hnswgo.DefaultConfig(0),
		Compression: persistence.CompressionZSTD,
	}
}

// loadConfig reads path over the defaults. Unknown keys are rejected.
// An empty path returns the defaults.
func loadConfig(path string) (fileConfig, error) {
	cfg := defaultFileConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}
