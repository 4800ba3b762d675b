package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/modelcrucible/crucible/internal/job"
)

// Config is the top-level crucible.yaml shape.
type Config struct {
	Datasets  Datasets          `yaml:"datasets" validate:"required"`
	Models    []job.ModelConfig `yaml:"models" validate:"required,min=1"`
	Scorer    job.ScorerConfig  `yaml:"scorer"`
	Execution Execution         `yaml:"execution"`
	Baseline  Baseline          `yaml:"baseline"`
	Results   Results           `yaml:"results"`
}

type Datasets struct {
	Dir string   `yaml:"dir" validate:"required"`
	IDs []string `yaml:"ids"`
}

type Execution struct {
	Concurrency       int `yaml:"concurrency" validate:"gte=0,lte=256"`
	RequestsPerMinute int `yaml:"requests_per_minute" validate:"gte=0"`
	TokensPerMinute   int `yaml:"tokens_per_minute" validate:"gte=0"`
	ScoringWorkers    int `yaml:"scoring_workers" validate:"gte=0"`
	MaxConcurrentJobs int `yaml:"max_concurrent_jobs" validate:"gte=0"`
}

type Baseline struct {
	Compare    bool   `yaml:"compare"`
	ReportPath string `yaml:"report_path"`
	Name       string `yaml:"name"`
}

type Results struct {
	Dir string `yaml:"dir"`
}

var structValidate = validator.New()

// Load reads and validates a config file. Structural rules live in the
// validate tags; cross-field rules the tags cannot express are checked
// manually afterwards.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	applyDefaults(&cfg)
	if err := structValidate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Scorer.Type == "" {
		cfg.Scorer.Type = "exact"
	}
	if cfg.Execution.Concurrency == 0 {
		cfg.Execution.Concurrency = 4
	}
	if cfg.Execution.MaxConcurrentJobs == 0 {
		cfg.Execution.MaxConcurrentJobs = 1
	}
	if cfg.Results.Dir == "" {
		cfg.Results.Dir = "results"
	}
}

func validate(cfg *Config) error {
	seen := make(map[string]struct{}, len(cfg.Models))
	for i, m := range cfg.Models {
		if m.Name == "" {
			return fmt.Errorf("model %d: name is required", i)
		}
		if m.Model == "" {
			return fmt.Errorf("model %q: model is required", m.Name)
		}
		if _, dup := seen[m.Name]; dup {
			return fmt.Errorf("model %d: duplicate name %q", i, m.Name)
		}
		seen[m.Name] = struct{}{}
	}
	if cfg.Baseline.Compare && cfg.Baseline.ReportPath == "" {
		return fmt.Errorf("baseline.report_path is required when baseline.compare is set")
	}
	return nil
}

// JobConfig projects the file config onto a single job's configuration.
// An empty id list means every dataset listed in the file.
func (c *Config) JobConfig(datasetIDs []string) job.Config {
	if len(datasetIDs) == 0 {
		datasetIDs = c.Datasets.IDs
	}
	return job.Config{
		DatasetIDs:      datasetIDs,
		ModelConfigs:    c.Models,
		Scorer:          c.Scorer,
		CompareBaseline: c.Baseline.Compare,
		Concurrency:     c.Execution.Concurrency,
	}
}
