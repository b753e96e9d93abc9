package aggregator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/LJTian/MedNewsHub/internal/collector"
	"github.com/LJTian/MedNewsHub/internal/processor"
)

// CycleStats summarises one Run.
type CycleStats struct {
	StartedAt     time.Time      `json:"startedAt"`
	Elapsed       time.Duration  `json:"elapsed"`
	Gathered      int            `json:"gathered"`
	PerSource     map[string]int `json:"perSource"`
	FailedSources []string       `json:"failedSources,omitempty"`
	Dropped       int            `json:"dropped"`
}

// NewsAggregator 一轮完整的采集 → 清洗 → 分类
type NewsAggregator struct {
	fetchers    []collector.Fetcher
	gatherer    *Gatherer
	normalizer  *processor.Normalizer
	categorizer *Categorizer
	logger      *zap.Logger
}

func NewNewsAggregator(fetchers []collector.Fetcher, g *Gatherer, n *processor.Normalizer, c *Categorizer, logger *zap.Logger) *NewsAggregator {
	if n == nil {
		n = processor.NewNormalizer()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NewsAggregator{fetchers: fetchers, gatherer: g, normalizer: n, categorizer: c, logger: logger}
}

func (n *NewsAggregator) Fetchers() []collector.Fetcher { return n.fetchers }

func (n *NewsAggregator) Categorizer() *Categorizer { return n.categorizer }

// Run gathers from every source and returns the digest. Source failures only
// show up in the stats; the only error is cancellation of ctx, in which case
// nothing is categorized.
func (n *NewsAggregator) Run(ctx context.Context) (Digest, CycleStats, error) {
	stats := CycleStats{StartedAt: time.Now(), PerSource: make(map[string]int, len(n.fetchers))}

	results := n.gatherer.Collect(ctx, n.fetchers)
	for _, r := range results {
		if r.Err != nil {
			stats.FailedSources = append(stats.FailedSources, r.Source)
			continue
		}
		stats.PerSource[r.Source] = len(r.Articles)
	}
	if err := ctx.Err(); err != nil {
		stats.Elapsed = time.Since(stats.StartedAt)
		return NewDigest(), stats, fmt.Errorf("gather cancelled: %w", err)
	}

	articles := n.normalizer.Normalize(n.gatherer.Merge(results))
	stats.Gathered = len(articles)

	digest, dropped := n.categorizer.categorize(articles)
	stats.Dropped = dropped.Total()
	stats.Elapsed = time.Since(stats.StartedAt)

	n.logger.Info("aggregation finished",
		zap.Int("gathered", stats.Gathered),
		zap.Strings("failed_sources", stats.FailedSources),
		zap.Int("selected", digest.Len()),
		zap.Duration("elapsed", stats.Elapsed),
	)
	return digest, stats, nil
}
