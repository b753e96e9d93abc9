package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// ListingFetcher 抓取 HTML 列表页（ACR、RSNA 等没有 RSS 的站点）
type ListingFetcher struct {
	spec     SourceSpec
	renderer Renderer
	logger   *zap.Logger
}

// NewListingFetcher uses colly unless a renderer is given, in which case pages
// are rendered by a headless browser first.
func NewListingFetcher(spec SourceSpec, renderer Renderer, logger *zap.Logger) *ListingFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ListingFetcher{spec: spec, renderer: renderer, logger: logger.With(zap.String("source", spec.Name))}
}

func (l *ListingFetcher) Name() string  { return l.spec.Name }
func (l *ListingFetcher) Priority() int { return l.spec.Priority }

func (l *ListingFetcher) Fetch(ctx context.Context) ([]Article, error) {
	fetch := l.fetchStatic
	if l.renderer != nil {
		fetch = l.fetchRendered
	}
	results, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	// 详情页统一走 colly，不经过浏览器渲染
	return readTakeaways(ctx, results, l.spec.Selectors, l.logger), nil
}

func (l *ListingFetcher) fetchStatic(ctx context.Context) ([]Article, error) {
	c := colly.NewCollector(
		colly.UserAgent(defaultUserAgent),
	)
	c.SetRequestTimeout(defaultTimeout)

	// 调用方取消后不再发起新请求
	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})

	var results []Article
	limit := l.spec.maxItems()
	c.OnHTML(l.spec.Selectors.Item, func(e *colly.HTMLElement) {
		if len(results) >= limit {
			return
		}
		if a, ok := l.extract(e.DOM); ok {
			results = append(results, a)
		}
	})

	var errs []error
	for _, path := range l.spec.Paths {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		pageURL := resolveLink(l.spec.BaseURL, path)
		if err := c.Visit(pageURL); err != nil {
			// 单个栏目失败不影响其它栏目
			l.logger.Warn("visit listing failed", zap.String("url", pageURL), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", pageURL, err))
		}
	}
	c.Wait()

	return l.finish(results, errs)
}

func (l *ListingFetcher) fetchRendered(ctx context.Context) ([]Article, error) {
	var (
		results []Article
		errs    []error
	)
	limit := l.spec.maxItems()
	for _, path := range l.spec.Paths {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		pageURL := resolveLink(l.spec.BaseURL, path)
		html, err := l.renderer.Render(ctx, pageURL)
		if err != nil {
			l.logger.Warn("render listing failed", zap.String("url", pageURL), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", pageURL, err))
			continue
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: parse rendered page: %w", pageURL, err))
			continue
		}
		doc.Find(l.spec.Selectors.Item).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if a, ok := l.extract(s); ok {
				results = append(results, a)
			}
			return len(results) < limit
		})
	}
	return l.finish(results, errs)
}

// finish 全部栏目都失败时才返回错误
func (l *ListingFetcher) finish(results []Article, errs []error) ([]Article, error) {
	if len(results) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("%s: %w", l.spec.Name, errors.Join(errs...))
	}
	l.logger.Debug("listing collected", zap.Int("count", len(results)), zap.Int("failed_pages", len(errs)))
	return results, nil
}

func (l *ListingFetcher) extract(item *goquery.Selection) (Article, bool) {
	sel := l.spec.Selectors

	title := item.Text()
	if sel.Title != "" {
		title = item.Find(sel.Title).First().Text()
	}
	title = strings.TrimSpace(spaceExpr.ReplaceAllString(title, " "))
	if title == "" {
		return Article{}, false
	}

	href, _ := item.Attr("href")
	if sel.Link != "" {
		if v, ok := item.Find(sel.Link).First().Attr("href"); ok {
			href = v
		}
	}
	if strings.TrimSpace(href) == "" {
		return Article{}, false
	}

	var summary string
	if sel.Summary != "" {
		summary = strings.TrimSpace(item.Find(sel.Summary).First().Text())
	}
	if !l.spec.accepts(title + " " + summary) {
		return Article{}, false
	}

	var dateText string
	if sel.Date != "" {
		d := item.Find(sel.Date).First()
		if v, ok := d.Attr("datetime"); ok {
			dateText = v
		} else {
			dateText = d.Text()
		}
	}

	return Article{
		Title:       title,
		URL:         resolveLink(l.spec.BaseURL, href),
		Summary:     summary,
		PublishedAt: parseDate(dateText),
		Source:      l.spec.Name,
	}, true
}
