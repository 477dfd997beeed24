package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no --config flag is given.
const DefaultPath = "ydiff.yaml"

const (
	EngineExternal = "external"
	EngineBuiltin  = "builtin"

	ContentMemory = "memory"
	ContentFile   = "file"
)

type HDiff struct {
	Enabled    bool `yaml:"enabled"`
	MinContext int  `yaml:"min_context"`
	Depth      int  `yaml:"depth"`
}

type Dir struct {
	// MaxDepth is how many subdirectory levels are expanded; -1 is unlimited.
	MaxDepth int      `yaml:"max_depth"`
	Exclude  []string `yaml:"exclude"`
}

type Config struct {
	DiffTool           string `yaml:"diff_tool"`
	Engine             string `yaml:"engine"`
	IgnoreCase         bool   `yaml:"ignore_case"`
	IgnoreAllSpace     bool   `yaml:"ignore_all_space"`
	IgnoreSpaceChange  bool   `yaml:"ignore_space_change"`
	IgnoreTabExpansion bool   `yaml:"ignore_tab_expansion"`
	StripTrailingCR    bool   `yaml:"strip_trailing_cr"`
	Quality            string `yaml:"quality"`
	Content            string `yaml:"content"`
	Workers            int    `yaml:"workers"`
	HDiff              HDiff  `yaml:"hdiff"`
	Dir                Dir    `yaml:"dir"`
}

func DefaultConfig() *Config {
	return &Config{
		DiffTool: "diff",
		Engine:   EngineExternal,
		Quality:  "normal",
		Content:  ContentMemory,
		Workers:  4,
		HDiff: HDiff{
			Enabled:    true,
			MinContext: 5,
			Depth:      10,
		},
		Dir: Dir{
			MaxDepth: -1,
			Exclude: []string{
				".git/",
				".svn/",
				".hg/",
				"*.swp",
				".DS_Store",
				"Thumbs.db",
			},
		},
	}
}

// LoadConfig reads path over the defaults. A missing file yields the
// defaults unchanged.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	if cfg.Dir.Exclude == nil {
		cfg.Dir.Exclude = []string{}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Engine {
	case EngineExternal, EngineBuiltin:
	default:
		return fmt.Errorf("invalid engine %q: must be %s or %s", c.Engine, EngineExternal, EngineBuiltin)
	}
	switch c.Quality {
	case "normal", "best", "fastest":
	default:
		return fmt.Errorf("invalid quality %q: must be normal, best or fastest", c.Quality)
	}
	switch c.Content {
	case ContentMemory, ContentFile:
	default:
		return fmt.Errorf("invalid content %q: must be %s or %s", c.Content, ContentMemory, ContentFile)
	}
	if c.Engine == EngineExternal && c.DiffTool == "" {
		return fmt.Errorf("diff_tool must be set for the external engine")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.HDiff.MinContext < 1 {
		return fmt.Errorf("hdiff.min_context must be at least 1, got %d", c.HDiff.MinContext)
	}
	if c.HDiff.Depth < 0 {
		return fmt.Errorf("hdiff.depth must not be negative, got %d", c.HDiff.Depth)
	}
	return nil
}
