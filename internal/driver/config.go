package driver

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the project-root config file Index/Watch callers load
// their Options from, named after the teacher's own .cgrconfig.
const ConfigFileName = ".ckg.yaml"

// Config is the on-disk shape of .ckg.yaml. Every field mirrors Options
// directly so LoadConfig's only job is decoding, not translation.
type Config struct {
	IgnoreGlobs []string `yaml:"ignore_globs"`
	BatchSize   int      `yaml:"batch_size"`
	WorkerCount int      `yaml:"worker_count"`
	Incremental bool     `yaml:"incremental"`

	Languages map[string]bool `yaml:"languages"`

	EnableRouteScanner bool `yaml:"enable_route_scanner"`
	RouteTables        []struct {
		RelPath       string `yaml:"path"`
		ClassTemplate string `yaml:"class_template"`
	} `yaml:"route_tables"`

	MetadataRoots []string `yaml:"metadata_roots"`
}

// LoadConfig reads .ckg.yaml from dir. A missing file is not an error —
// it yields the zero Config, which Options treats as "extractors on,
// everything else off" (see Options' doc comment).
func LoadConfig(dir string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(filepath.Join(dir, ConfigFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Options converts a Config into the Options shape Driver.Index expects.
func (c *Config) Options() Options {
	opts := Options{
		IgnoreGlobs:        c.IgnoreGlobs,
		BatchSize:          c.BatchSize,
		WorkerCount:        c.WorkerCount,
		Incremental:        c.Incremental,
		Languages:          c.Languages,
		EnableRouteScanner: c.EnableRouteScanner,
		MetadataRoots:      c.MetadataRoots,
	}
	for _, rt := range c.RouteTables {
		opts.RouteTables = append(opts.RouteTables, RouteTable{RelPath: rt.RelPath, ClassTemplate: rt.ClassTemplate})
	}
	return opts
}
