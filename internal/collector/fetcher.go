package collector

import (
	"context"
	"time"

	"github.com/LJTian/MedNewsHub/internal/filter"
)

// Article 统一采集后的基础结构；Scores 在分类前为 nil
type Article struct {
	ID           string         `json:"id,omitempty"`
	Title        string         `json:"title"`
	Summary      string         `json:"summary"`
	URL          string         `json:"url"`
	Source       string         `json:"source"`
	Priority     int            `json:"priority"`
	PublishedAt  *time.Time     `json:"publishedAt,omitempty"`
	Takeaways    []string       `json:"takeaways,omitempty"`
	RequiresAuth bool           `json:"requiresAuth,omitempty"`
	Scores       *filter.Scores `json:"relevanceScores,omitempty"`
}

// Fetcher 抽象每一个数据源
type Fetcher interface {
	Name() string
	// Priority is the tier the adapter declares for itself; the configured
	// priority table takes precedence.
	Priority() int
	Fetch(ctx context.Context) ([]Article, error)
}

const (
	defaultUserAgent = "MedNewsHubBot/1.0 (+research digest)"
	defaultTimeout   = 15 * time.Second
	defaultMaxItems  = 5
)
