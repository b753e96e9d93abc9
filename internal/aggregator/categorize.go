package aggregator

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/LJTian/MedNewsHub/internal/collector"
	"github.com/LJTian/MedNewsHub/internal/filter"
)

const (
	CategoryRadiology  = "radiology"
	CategoryHealthcare = "healthcare"
)

// Categories in the order they are rendered.
var Categories = []string{CategoryRadiology, CategoryHealthcare}

var ErrInvalidRanking = errors.New("aggregator: invalid ranking config")

// Digest maps each category to its ranked articles. Both keys are always
// present, possibly with empty slices.
type Digest map[string][]collector.Article

func NewDigest() Digest {
	d := make(Digest, len(Categories))
	for _, c := range Categories {
		d[c] = []collector.Article{}
	}
	return d
}

// Len 所有分类的文章总数
func (d Digest) Len() int {
	n := 0
	for _, list := range d {
		n += len(list)
	}
	return n
}

// RankConfig 排序相关的可调参数
type RankConfig struct {
	Multipliers map[int]float64 `yaml:"priority_multipliers" json:"priorityMultipliers"`
	Automatic   []string        `yaml:"automatic_sources" json:"automaticSources"`
	BucketCap   int             `yaml:"bucket_cap" json:"bucketCap"`
}

func DefaultRankConfig() RankConfig {
	return RankConfig{
		Multipliers: map[int]float64{1: 1.5, 2: 1.3, 3: 1.2, 4: 1.0, 5: 0.9},
		Automatic:   []string{"ACR News", "RSNA"},
		BucketCap:   5,
	}
}

func (c RankConfig) Validate() error {
	if c.BucketCap <= 0 {
		return fmt.Errorf("%w: bucket_cap must be positive, got %d", ErrInvalidRanking, c.BucketCap)
	}
	if _, ok := c.Multipliers[DefaultPriority]; !ok {
		return fmt.Errorf("%w: priority_multipliers needs an entry for tier %d", ErrInvalidRanking, DefaultPriority)
	}
	for tier, m := range c.Multipliers {
		if tier <= 0 {
			return fmt.Errorf("%w: tier %d is not positive", ErrInvalidRanking, tier)
		}
		if m <= 0 {
			return fmt.Errorf("%w: multiplier for tier %d must be positive", ErrInvalidRanking, tier)
		}
	}
	return nil
}

// Multiplier returns the weight for tier; unknown tiers get the lowest tier's.
func (c RankConfig) Multiplier(tier int) float64 {
	if m, ok := c.Multipliers[tier]; ok {
		return m
	}
	return c.Multipliers[DefaultPriority]
}

// Assessment is how one article would be treated by Categorize.
type Assessment struct {
	filter.Result
	Priority   int           `json:"priority"`
	Multiplier float64       `json:"multiplier"`
	Weighted   filter.Scores `json:"weightedScores"`
	Automatic  bool          `json:"automatic"`
	// Category is empty when the article would be dropped.
	Category string `json:"category"`
}

// Categorizer scores articles, buckets them and keeps the best of each bucket.
type Categorizer struct {
	engine    *filter.Engine
	cfg       RankConfig
	automatic map[string]struct{}
	logger    *zap.Logger
	metrics   *Metrics
}

func NewCategorizer(engine *filter.Engine, cfg RankConfig, logger *zap.Logger, metrics *Metrics) (*Categorizer, error) {
	if engine == nil {
		return nil, fmt.Errorf("%w: nil relevance engine", ErrInvalidRanking)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	auto := make(map[string]struct{}, len(cfg.Automatic))
	for _, s := range cfg.Automatic {
		auto[s] = struct{}{}
	}
	return &Categorizer{engine: engine, cfg: cfg, automatic: auto, logger: logger, metrics: metrics}, nil
}

func (c *Categorizer) Assess(a collector.Article) Assessment {
	tier := a.Priority
	if tier <= 0 {
		tier = DefaultPriority
	}
	res := c.engine.Classify(a.Title + " " + a.Summary)
	mult := c.cfg.Multiplier(tier)

	as := Assessment{
		Result:     res,
		Priority:   tier,
		Multiplier: mult,
		Weighted:   res.Scores.Scale(mult),
	}
	_, as.Automatic = c.automatic[a.Source]
	switch {
	case as.Automatic, res.IsRadiology:
		as.Category = CategoryRadiology
	case res.IsGeneralHealthcare:
		as.Category = CategoryHealthcare
	}
	return as
}

// Dropped counts articles that did not make it into the digest.
type Dropped struct {
	Malformed  int
	Irrelevant int
	Truncated  int
}

func (d Dropped) Total() int { return d.Malformed + d.Irrelevant + d.Truncated }

// Categorize builds the digest. The input slice is not modified; articles in
// the digest are copies carrying priority-weighted scores.
func (c *Categorizer) Categorize(articles []collector.Article) Digest {
	d, _ := c.categorize(articles)
	return d
}

func (c *Categorizer) categorize(articles []collector.Article) (Digest, Dropped) {
	d := NewDigest()
	var dropped Dropped

	for _, a := range articles {
		if strings.TrimSpace(a.Title) == "" {
			c.logger.Warn("skip malformed article",
				zap.String("source", a.Source),
				zap.String("url", a.URL),
			)
			dropped.Malformed++
			continue
		}

		as := c.Assess(a)
		if as.Category == "" {
			dropped.Irrelevant++
			continue
		}
		weighted := as.Weighted
		a.Scores = &weighted
		a.Priority = as.Priority
		place(d, as.Category, a)
	}

	sortRadiology(d[CategoryRadiology])
	sortHealthcare(d[CategoryHealthcare])

	for _, cat := range Categories {
		if n := len(d[cat]); n > c.cfg.BucketCap {
			dropped.Truncated += n - c.cfg.BucketCap
			d[cat] = d[cat][:c.cfg.BucketCap]
		}
		c.metrics.setBucket(cat, len(d[cat]))
	}
	c.metrics.drop("malformed", dropped.Malformed)
	c.metrics.drop("irrelevant", dropped.Irrelevant)
	c.metrics.drop("truncated", dropped.Truncated)

	c.logger.Info("categorized",
		zap.Int("input", len(articles)),
		zap.Int(CategoryRadiology, len(d[CategoryRadiology])),
		zap.Int(CategoryHealthcare, len(d[CategoryHealthcare])),
		zap.Int("dropped", dropped.Total()),
	)
	return d, dropped
}

// place panics on a category the digest does not know: that is a bug, not data.
func place(d Digest, category string, a collector.Article) {
	bucket, ok := d[category]
	if !ok {
		panic(fmt.Sprintf("aggregator: unknown category %q", category))
	}
	d[category] = append(bucket, a)
}

func combined(a collector.Article) float64 {
	if a.Scores == nil {
		return 0
	}
	return a.Scores.Combined
}

// newer 发布时间新者在前，无时间视为最旧
func newer(a, b collector.Article) bool {
	if a.PublishedAt == nil {
		return false
	}
	if b.PublishedAt == nil {
		return true
	}
	return a.PublishedAt.After(*b.PublishedAt)
}

func sortRadiology(list []collector.Article) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Priority != list[j].Priority {
			return list[i].Priority < list[j].Priority
		}
		if ci, cj := combined(list[i]), combined(list[j]); ci != cj {
			return ci > cj
		}
		return newer(list[i], list[j])
	})
}

func sortHealthcare(list []collector.Article) {
	sort.SliceStable(list, func(i, j int) bool {
		if ci, cj := combined(list[i]), combined(list[j]); ci != cj {
			return ci > cj
		}
		return newer(list[i], list[j])
	})
}
