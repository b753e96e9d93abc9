// Package aggregator runs the source adapters concurrently, tags what they
// return with source and priority metadata, and turns the result into a
// ranked, size-capped digest.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/LJTian/MedNewsHub/internal/collector"
)

// DefaultPriority 未登记的数据源一律视为最低档
const DefaultPriority = 5

const defaultSourceTimeout = 45 * time.Second

var ErrAdapterPanic = errors.New("aggregator: adapter panicked")

// PriorityTable maps a source name to its tier, 1 being the most trusted.
type PriorityTable map[string]int

func DefaultPriorityTable() PriorityTable {
	return PriorityTable{
		"ACR News":           1,
		"RSNA":               1,
		"AuntMinnie":         2,
		"STAT News":          3,
		"Healthcare IT News": 3,
		"Beckers":            4,
		"Modern Healthcare":  4,
	}
}

func (t PriorityTable) Lookup(source string) int {
	if p, ok := t[source]; ok && p > 0 {
		return p
	}
	return DefaultPriority
}

// withDeclared 配置表优先；表里没有的适配器才登记其自报档位
func (t PriorityTable) withDeclared(results []SourceResult) PriorityTable {
	out := make(PriorityTable, len(t)+len(results))
	for k, v := range t {
		out[k] = v
	}
	for _, r := range results {
		if _, ok := out[r.Source]; !ok && r.Tier > 0 {
			out[r.Source] = r.Tier
		}
	}
	return out
}

// SourceResult is the outcome of one adapter invocation. Err is set when the
// adapter failed, panicked or ran past its timeout; Articles is then empty.
type SourceResult struct {
	Source   string
	Tier     int
	Articles []collector.Article
	Err      error
	Elapsed  time.Duration
}

// Gatherer 并发调用所有适配器，单个源失败只影响它自己
type Gatherer struct {
	priorities PriorityTable
	timeout    time.Duration
	logger     *zap.Logger
	metrics    *Metrics
}

func NewGatherer(priorities PriorityTable, timeout time.Duration, logger *zap.Logger, metrics *Metrics) *Gatherer {
	if priorities == nil {
		priorities = DefaultPriorityTable()
	}
	if timeout <= 0 {
		timeout = defaultSourceTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gatherer{priorities: priorities, timeout: timeout, logger: logger, metrics: metrics}
}

// Gather fetches from every adapter and returns the tagged union of what
// succeeded. It never fails: broken sources simply contribute nothing.
func (g *Gatherer) Gather(ctx context.Context, fetchers []collector.Fetcher) []collector.Article {
	return g.Merge(g.Collect(ctx, fetchers))
}

// Collect runs all adapters concurrently and returns one result per adapter,
// in adapter order.
func (g *Gatherer) Collect(ctx context.Context, fetchers []collector.Fetcher) []SourceResult {
	start := time.Now()
	results := make([]SourceResult, len(fetchers))

	// 每个 goroutine 只写自己下标的位置，无需加锁
	var eg errgroup.Group
	for i, f := range fetchers {
		eg.Go(func() error {
			results[i] = g.invoke(ctx, f)
			return nil
		})
	}
	_ = eg.Wait()

	elapsed := time.Since(start)
	g.metrics.observeGather(elapsed)

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	g.logger.Info("gather done",
		zap.Int("sources", len(fetchers)),
		zap.Int("failed", failed),
		zap.Duration("elapsed", elapsed),
	)
	return results
}

type fetchOutcome struct {
	articles []collector.Article
	err      error
}

func (g *Gatherer) invoke(ctx context.Context, f collector.Fetcher) SourceResult {
	name := f.Name()
	start := time.Now()

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	// 缓冲为 1：放弃等待后适配器仍可写入并退出
	done := make(chan fetchOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fetchOutcome{err: fmt.Errorf("%w: %v", ErrAdapterPanic, r)}
			}
		}()
		articles, err := f.Fetch(callCtx)
		done <- fetchOutcome{articles: articles, err: err}
	}()

	var out fetchOutcome
	select {
	case out = <-done:
	case <-callCtx.Done():
		out.err = fmt.Errorf("abandoned: %w", callCtx.Err())
	}

	res := SourceResult{Source: name, Tier: f.Priority(), Elapsed: time.Since(start)}
	if out.err != nil {
		res.Err = fmt.Errorf("%s: %w", name, out.err)
		g.logger.Warn("source failed",
			zap.String("source", name),
			zap.Duration("elapsed", res.Elapsed),
			zap.Error(out.err),
		)
		g.metrics.recordSource(name, 0, true)
		return res
	}

	res.Articles = out.articles
	g.logger.Debug("source fetched",
		zap.String("source", name),
		zap.Int("count", len(out.articles)),
		zap.Duration("elapsed", res.Elapsed),
	)
	g.metrics.recordSource(name, len(out.articles), false)
	return res
}

// Merge flattens successful results, filling in Source from the adapter
// identity when the adapter left it empty and Priority from the table.
func (g *Gatherer) Merge(results []SourceResult) []collector.Article {
	table := g.priorities.withDeclared(results)

	total := 0
	for _, r := range results {
		total += len(r.Articles)
	}
	out := make([]collector.Article, 0, total)
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		for _, a := range r.Articles {
			a.Source = strings.TrimSpace(a.Source)
			if a.Source == "" {
				a.Source = r.Source
			}
			a.Priority = table.Lookup(a.Source)
			out = append(out, a)
		}
	}
	return out
}
