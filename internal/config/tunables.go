package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/LJTian/MedNewsHub/internal/aggregator"
	"github.com/LJTian/MedNewsHub/internal/collector"
	"github.com/LJTian/MedNewsHub/internal/filter"
	"github.com/LJTian/MedNewsHub/internal/formatter"
)

var ErrInvalidTunables = errors.New("config: invalid tunables")

type Keywords struct {
	Radiology  []string `yaml:"radiology"`
	Healthcare []string `yaml:"healthcare"`
	AI         []string `yaml:"ai"`
}

// Tunables holds every scoring and ranking knob. A YAML file only needs the
// keys it changes: maps are merged into the defaults, lists replace them.
type Tunables struct {
	Keywords   Keywords                 `yaml:"keywords"`
	Score      filter.ScoreParams       `yaml:"score"`
	Boost      float64                  `yaml:"boost"`
	Weights    filter.Weights           `yaml:"weights"`
	Thresholds filter.Thresholds        `yaml:"thresholds"`
	Priorities aggregator.PriorityTable `yaml:"priorities"`
	Ranking    aggregator.RankConfig    `yaml:"ranking"`
	Formatter  formatter.Options        `yaml:"formatter"`
}

func DefaultTunables() Tunables {
	eng := filter.DefaultEngineConfig()
	return Tunables{
		Keywords: Keywords{
			Radiology:  eng.Radiology.Terms(),
			Healthcare: eng.Healthcare.Terms(),
			AI:         eng.AI.Terms(),
		},
		Score:      eng.Score,
		Boost:      eng.Boost,
		Weights:    eng.Weights,
		Thresholds: eng.Thresholds,
		Priorities: aggregator.DefaultPriorityTable(),
		Ranking:    aggregator.DefaultRankConfig(),
		Formatter:  formatter.DefaultOptions(),
	}
}

// LoadTunables reads path over the defaults. A missing file is not an error.
func LoadTunables(path string) (Tunables, error) {
	t := DefaultTunables()
	if path == "" {
		return t, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return t, nil
	}
	if err != nil {
		return t, fmt.Errorf("read tunables %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("parse tunables %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func (t Tunables) EngineConfig() filter.EngineConfig {
	return filter.EngineConfig{
		Radiology:  filter.NewKeywordSet("radiology", t.Keywords.Radiology...),
		Healthcare: filter.NewKeywordSet("healthcare", t.Keywords.Healthcare...),
		AI:         filter.NewKeywordSet("ai", t.Keywords.AI...),
		Score:      t.Score,
		Boost:      t.Boost,
		Weights:    t.Weights,
		Thresholds: t.Thresholds,
	}
}

func (t Tunables) Validate() error {
	if err := t.EngineConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTunables, err)
	}
	if err := t.Ranking.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTunables, err)
	}
	for source, tier := range t.Priorities {
		if tier <= 0 {
			return fmt.Errorf("%w: priority for %q must be positive", ErrInvalidTunables, source)
		}
	}
	return nil
}

type sourcesFile struct {
	Sources []collector.SourceSpec `yaml:"sources"`
}

// LoadSources reads the source list from path; without a file the built-in
// sources are used. A file replaces the built-in list entirely.
func LoadSources(path string) ([]collector.SourceSpec, error) {
	if path == "" {
		return collector.DefaultSources(), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return collector.DefaultSources(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sources %s: %w", path, err)
	}
	var f sourcesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse sources %s: %w", path, err)
	}
	for _, s := range f.Sources {
		if s.Disabled {
			continue
		}
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return f.Sources, nil
}
