// Package pipeline runs one posting cycle: aggregate, format, post, archive.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/LJTian/MedNewsHub/internal/aggregator"
	"github.com/LJTian/MedNewsHub/internal/formatter"
	"github.com/LJTian/MedNewsHub/internal/poster"
	"github.com/LJTian/MedNewsHub/internal/storage"
)

var ErrCycleRunning = errors.New("pipeline: a cycle is already running")

type Aggregator interface {
	Run(ctx context.Context) (aggregator.Digest, aggregator.CycleStats, error)
}

// Archiver 归档发帖记录；为 nil 时跳过
type Archiver interface {
	SaveDigest(ctx context.Context, rec *storage.Digest) error
}

// Report is what one cycle produced.
type Report struct {
	Digest    aggregator.Digest     `json:"digest"`
	Stats     aggregator.CycleStats `json:"stats"`
	PostText  string                `json:"postText"`
	ImagePath string                `json:"imagePath,omitempty"`
	Status    string                `json:"status"`
	ArchiveID uint                  `json:"archiveId,omitempty"`
}

// CoverMaker 为每一期生成封面图，返回图片路径
type CoverMaker interface {
	Create(date time.Time) (string, error)
}

type Options struct {
	// ImagePath 固定封面；为空时由 Cover 每期生成
	ImagePath string
	Cover     CoverMaker
	DryRun    bool
	Timeout   time.Duration
}

type Cycle struct {
	agg       Aggregator
	formatter *formatter.Formatter
	poster    poster.Poster
	archive   Archiver
	opts      Options
	logger    *zap.Logger
	now       func() time.Time

	mu sync.Mutex
}

func NewCycle(agg Aggregator, f *formatter.Formatter, p poster.Poster, archive Archiver, opts Options, logger *zap.Logger) *Cycle {
	if f == nil {
		f = formatter.New(formatter.DefaultOptions())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cycle{agg: agg, formatter: f, poster: p, archive: archive, opts: opts, logger: logger, now: time.Now}
}

// Run executes one cycle. Only aggregation cancellation and posting failures
// are returned; archive problems are logged.
func (c *Cycle) Run(ctx context.Context) (*Report, error) {
	if !c.mu.TryLock() {
		return nil, ErrCycleRunning
	}
	defer c.mu.Unlock()
	return c.run(ctx)
}

// Trigger starts a cycle in the background and returns at once.
func (c *Cycle) Trigger(ctx context.Context) error {
	if !c.mu.TryLock() {
		return ErrCycleRunning
	}
	go func() {
		defer c.mu.Unlock()
		if _, err := c.run(ctx); err != nil {
			c.logger.Error("triggered cycle failed", zap.Error(err))
		}
	}()
	return nil
}

func (c *Cycle) run(ctx context.Context) (*Report, error) {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	started := c.now()
	c.logger.Info("cycle started", zap.Bool("dry_run", c.opts.DryRun))

	digest, stats, err := c.agg.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}

	report := &Report{Digest: digest, Stats: stats, Status: storage.StatusPosted}
	if c.opts.DryRun {
		report.Status = storage.StatusDryRun
	}
	report.PostText = c.formatter.Format(digest, started)

	report.ImagePath = c.coverImage(started)

	postErr := c.poster.Post(ctx, report.PostText, report.ImagePath)
	if postErr != nil {
		report.Status = storage.StatusFailed
		c.logger.Error("post failed", zap.Error(postErr))
	}

	if c.archive != nil {
		rec := storage.NewDigestRecord(digest, report.PostText, report.Status, started)
		if err := c.archive.SaveDigest(ctx, rec); err != nil {
			c.logger.Warn("archive digest failed", zap.Error(err))
		} else {
			report.ArchiveID = rec.ID
		}
	}

	c.logger.Info("cycle finished",
		zap.String("status", report.Status),
		zap.Int("articles", digest.Len()),
		zap.Duration("elapsed", c.now().Sub(started)),
	)
	if postErr != nil {
		return report, fmt.Errorf("post: %w", postErr)
	}
	return report, nil
}

// coverImage 封面生成失败时不带图发帖
func (c *Cycle) coverImage(date time.Time) string {
	if c.opts.ImagePath != "" || c.opts.Cover == nil {
		return c.opts.ImagePath
	}
	path, err := c.opts.Cover.Create(date)
	if err != nil {
		c.logger.Warn("create cover failed", zap.Error(err))
		return ""
	}
	return path
}
