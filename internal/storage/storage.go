package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/LJTian/MedNewsHub/internal/aggregator"
)

const (
	StatusPosted = "posted"
	StatusDryRun = "dry_run"
	StatusFailed = "failed"
)

const (
	latestCacheKey = "digest:latest"
	latestCacheTTL = 24 * time.Hour

	defaultListLimit = 10
	maxListLimit     = 100
)

var ErrNotFound = errors.New("storage: digest not found")

// Digest 每次发帖的归档记录，只供 API 查询，采集流程从不回读
type Digest struct {
	ID       uint          `gorm:"primaryKey" json:"id"`
	PostedAt time.Time     `gorm:"index" json:"postedAt"`
	PostText string        `gorm:"type:text" json:"postText"`
	Status   string        `gorm:"size:32;index" json:"status"` // posted / dry_run / failed
	Entries  []DigestEntry `gorm:"constraint:OnDelete:CASCADE" json:"entries"`

	CreatedAt time.Time `json:"createdAt"`
}

type DigestEntry struct {
	ID          uint              `gorm:"primaryKey" json:"-"`
	DigestID    uint              `gorm:"index" json:"-"`
	Category    string            `gorm:"size:32;index" json:"category"`
	Rank        int               `json:"rank"`
	ArticleID   string            `gorm:"size:40" json:"articleId"`
	Title       string            `gorm:"size:512" json:"title"`
	URL         string            `gorm:"size:1024" json:"url"`
	Source      string            `gorm:"size:64;index" json:"source"`
	Summary     string            `gorm:"size:600" json:"summary"`
	Priority    int               `json:"priority"`
	PublishedAt *time.Time        `json:"publishedAt,omitempty"`
	Scores      datatypes.JSONMap `gorm:"type:jsonb" json:"scores"`
}

type Store struct {
	DB     *gorm.DB
	Redis  *redis.Client
	logger *zap.Logger
}

// NewStore opens Postgres, migrates the schema and connects Redis. A Redis
// outage is only logged; the store then reads straight from Postgres.
func NewStore(dsn, redisAddr string, logger *zap.Logger) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	var rdb *redis.Client
	if redisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr: redisAddr,
		})
	}

	s := New(db, rdb, logger)
	if err := s.Migrate(); err != nil {
		return nil, err
	}

	if rdb != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			s.logger.Warn("redis ping failed", zap.String("addr", redisAddr), zap.Error(err))
		}
	}
	return s, nil
}

// New wraps existing connections; rdb may be nil.
func New(db *gorm.DB, rdb *redis.Client, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{DB: db, Redis: rdb, logger: logger}
}

func (s *Store) Migrate() error {
	if err := s.DB.AutoMigrate(&Digest{}, &DigestEntry{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// toValidUTF8 将字符串规范为合法 UTF-8，避免 PostgreSQL invalid byte sequence 错误
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

// truncateRunesDB 按 rune 数截断字符串，确保不会超过数据库字段长度（例如 varchar(600)）
func truncateRunesDB(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	s = strings.TrimSpace(s)
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}

// NewDigestRecord flattens d into archive rows, ranked within each category.
func NewDigestRecord(d aggregator.Digest, postText, status string, postedAt time.Time) *Digest {
	rec := &Digest{
		PostedAt: postedAt,
		PostText: toValidUTF8(postText),
		Status:   status,
	}
	for _, cat := range aggregator.Categories {
		for i, a := range d[cat] {
			e := DigestEntry{
				Category:    cat,
				Rank:        i + 1,
				ArticleID:   a.ID,
				Title:       truncateRunesDB(toValidUTF8(a.Title), 512),
				URL:         truncateRunesDB(a.URL, 1024),
				Source:      truncateRunesDB(a.Source, 64),
				Summary:     truncateRunesDB(toValidUTF8(a.Summary), 600),
				Priority:    a.Priority,
				PublishedAt: a.PublishedAt,
			}
			if a.Scores != nil {
				e.Scores = datatypes.JSONMap(a.Scores.Map())
			}
			rec.Entries = append(rec.Entries, e)
		}
	}
	return rec
}

// SaveDigest archives one cycle and refreshes the latest-digest cache.
func (s *Store) SaveDigest(ctx context.Context, rec *Digest) error {
	if err := s.DB.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("save digest: %w", err)
	}
	s.cacheLatest(ctx, rec)
	return nil
}

// LatestDigest 先读 Redis，未命中再查库并回写缓存
func (s *Store) LatestDigest(ctx context.Context) (*Digest, error) {
	if s.Redis != nil {
		if bs, err := s.Redis.Get(ctx, latestCacheKey).Bytes(); err == nil {
			var cached Digest
			if err := json.Unmarshal(bs, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	var d Digest
	err := s.withEntries(ctx).Order("posted_at DESC").First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load latest digest: %w", err)
	}
	s.cacheLatest(ctx, &d)
	return &d, nil
}

// ListDigests returns the most recent digests, newest first.
func (s *Store) ListDigests(ctx context.Context, limit int) ([]Digest, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	var list []Digest
	if err := s.withEntries(ctx).Order("posted_at DESC").Limit(limit).Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list digests: %w", err)
	}
	return list, nil
}

func (s *Store) withEntries(ctx context.Context) *gorm.DB {
	return s.DB.WithContext(ctx).Preload("Entries", func(db *gorm.DB) *gorm.DB {
		return db.Order("category ASC").Order("rank ASC")
	})
}

func (s *Store) cacheLatest(ctx context.Context, d *Digest) {
	if s.Redis == nil {
		return
	}
	bs, err := json.Marshal(d)
	if err != nil {
		return
	}
	if err := s.Redis.Set(ctx, latestCacheKey, bs, latestCacheTTL).Err(); err != nil {
		s.logger.Warn("cache latest digest failed", zap.Error(err))
	}
}
