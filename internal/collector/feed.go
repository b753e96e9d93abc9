package collector

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
)

// FeedFetcher 通过 RSS/Atom 抓取文章，支持按关键词组预筛
type FeedFetcher struct {
	spec   SourceSpec
	client *http.Client
	logger *zap.Logger
}

func NewFeedFetcher(spec SourceSpec, client *http.Client, logger *zap.Logger) *FeedFetcher {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedFetcher{spec: spec, client: client, logger: logger.With(zap.String("source", spec.Name))}
}

func (f *FeedFetcher) Name() string  { return f.spec.Name }
func (f *FeedFetcher) Priority() int { return f.spec.Priority }

func (f *FeedFetcher) Fetch(ctx context.Context) ([]Article, error) {
	parser := gofeed.NewParser()
	parser.Client = f.client
	parser.UserAgent = defaultUserAgent

	feed, err := parser.ParseURLWithContext(f.spec.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: parse feed: %w", f.spec.Name, err)
	}
	f.logger.Debug("feed parsed", zap.Int("entries", len(feed.Items)))

	limit := f.spec.maxItems()
	results := make([]Article, 0, limit)
	for _, item := range feed.Items {
		if len(results) >= limit {
			break
		}
		if item == nil || strings.TrimSpace(item.Title) == "" {
			continue
		}

		summary := item.Description
		if summary == "" {
			summary = item.Content
		}
		if !f.spec.accepts(item.Title + " " + summary) {
			continue
		}

		results = append(results, Article{
			Title:        strings.TrimSpace(item.Title),
			URL:          resolveLink(f.spec.BaseURL, item.Link),
			Summary:      summary,
			PublishedAt:  itemTime(item),
			RequiresAuth: hasCategory(item.Categories, "+"),
		})
	}

	f.logger.Debug("feed filtered", zap.Int("accepted", len(results)))
	return readTakeaways(ctx, results, f.spec.Selectors, f.logger), nil
}

func itemTime(item *gofeed.Item) *time.Time {
	switch {
	case item.PublishedParsed != nil:
		t := item.PublishedParsed.UTC()
		return &t
	case item.UpdatedParsed != nil:
		t := item.UpdatedParsed.UTC()
		return &t
	}
	return parseDate(item.Published)
}

func hasCategory(categories []string, want string) bool {
	for _, c := range categories {
		if strings.TrimSpace(c) == want {
			return true
		}
	}
	return false
}
