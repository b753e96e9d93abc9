package collector

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	KindRSS  = "rss"
	KindHTML = "html"
)

// Selectors 列表页的 CSS 选择器，均相对于 Item
type Selectors struct {
	Item    string `yaml:"item"`
	Title   string `yaml:"title"`
	Link    string `yaml:"link"`
	Summary string `yaml:"summary"`
	Date    string `yaml:"date"`

	// 以下两项作用于文章详情页：Takeaways 非空时逐篇抓取正文提取要点
	Content   string `yaml:"content"`
	Takeaways string `yaml:"takeaways"`
}

// SourceSpec describes one news source as it appears in sources.yaml.
type SourceSpec struct {
	Name      string     `yaml:"name"`
	Kind      string     `yaml:"kind"`
	URL       string     `yaml:"url"`
	BaseURL   string     `yaml:"base_url"`
	Paths     []string   `yaml:"paths"`
	Priority  int        `yaml:"priority"`
	MaxItems  int        `yaml:"max_items"`
	Require   [][]string `yaml:"require"`
	Selectors Selectors  `yaml:"selectors"`
	Render    bool       `yaml:"render"`
	Disabled  bool       `yaml:"disabled"`
}

var ErrInvalidSource = errors.New("collector: invalid source")

func (s SourceSpec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidSource)
	}
	switch s.Kind {
	case KindRSS:
		if s.URL == "" {
			return fmt.Errorf("%w: %s: rss source needs url", ErrInvalidSource, s.Name)
		}
	case KindHTML:
		if s.BaseURL == "" || len(s.Paths) == 0 || s.Selectors.Item == "" {
			return fmt.Errorf("%w: %s: html source needs base_url, paths and selectors.item", ErrInvalidSource, s.Name)
		}
	default:
		return fmt.Errorf("%w: %s: unknown kind %q", ErrInvalidSource, s.Name, s.Kind)
	}
	if s.Priority < 0 {
		return fmt.Errorf("%w: %s: negative priority", ErrInvalidSource, s.Name)
	}
	return nil
}

func (s SourceSpec) maxItems() int {
	if s.MaxItems > 0 {
		return s.MaxItems
	}
	return defaultMaxItems
}

// accepts 每个关键词组至少命中一个（子串、忽略大小写）；没有配置则全部接受
func (s SourceSpec) accepts(text string) bool {
	if len(s.Require) == 0 {
		return true
	}
	text = strings.ToLower(text)
	for _, group := range s.Require {
		hit := false
		for _, kw := range group {
			if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

// Options 构建采集器时共享的依赖
type Options struct {
	Client   *http.Client
	Renderer Renderer
	Logger   *zap.Logger
}

// BuildFetchers turns source specs into fetchers, skipping disabled ones.
// Sources that ask for rendering fall back to colly when no renderer is set.
func BuildFetchers(specs []SourceSpec, opts Options) ([]Fetcher, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	fetchers := make([]Fetcher, 0, len(specs))
	for _, spec := range specs {
		if spec.Disabled {
			continue
		}
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		switch spec.Kind {
		case KindRSS:
			fetchers = append(fetchers, NewFeedFetcher(spec, opts.Client, logger))
		case KindHTML:
			var r Renderer
			if spec.Render {
				r = opts.Renderer
			}
			fetchers = append(fetchers, NewListingFetcher(spec, r, logger))
		}
	}
	return fetchers, nil
}

func resolveLink(base, link string) string {
	link = strings.TrimSpace(link)
	if link == "" || base == "" {
		return link
	}
	if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	b, err := url.Parse(base)
	if err != nil {
		return link
	}
	ref, err := url.Parse(link)
	if err != nil {
		return link
	}
	return b.ResolveReference(ref).String()
}

var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"02 Jan 2006",
	"01/02/2006",
}

var spaceExpr = regexp.MustCompile(`\s+`)

// parseDate 尽力解析页面上的日期文本，失败返回 nil（排序时视为最旧）
func parseDate(raw string) *time.Time {
	raw = strings.TrimSpace(spaceExpr.ReplaceAllString(raw, " "))
	raw = strings.TrimPrefix(raw, "Published ")
	if raw == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// DefaultSources 内置的数据源，sources.yaml 存在时整体替换
func DefaultSources() []SourceSpec {
	aiTerms := []string{"artificial intelligence", "ai", "machine learning", "deep learning", "neural network", "algorithm", "computer-aided"}
	radTerms := []string{"radiology", "imaging", "radiologist", "x-ray", "ct", "mri"}
	healthTerms := []string{"health", "medical", "clinical", "patient", "hospital", "doctor", "physician", "diagnosis", "treatment"}

	return []SourceSpec{
		{
			Name:     "AuntMinnie",
			Kind:     KindRSS,
			URL:      "https://www.auntminnie.com/rss/channels/all",
			Priority: 2,
			Require:  [][]string{aiTerms},
			Selectors: Selectors{
				Content:   "article, div.article-content",
				Takeaways: "h2, strong, b",
			},
		},
		{
			Name:     "Beckers",
			Kind:     KindRSS,
			URL:      "https://www.beckershospitalreview.com/rss/healthcare-information-technology.xml",
			Priority: 4,
			Require:  [][]string{radTerms, aiTerms[:4]},
		},
		{
			Name:     "STAT News",
			Kind:     KindRSS,
			URL:      "https://www.statnews.com/feed/",
			Priority: 3,
			Require:  [][]string{aiTerms[:6], healthTerms},
		},
		{
			Name:     "Healthcare IT News",
			Kind:     KindRSS,
			URL:      "https://www.healthcareitnews.com/rss/topics/artificial-intelligence",
			BaseURL:  "https://www.healthcareitnews.com",
			Priority: 3,
		},
		{
			Name:    "ACR News",
			Kind:    KindHTML,
			BaseURL: "https://www.acr.org",
			Paths: []string{
				"/Media-Center/ACR-News-Releases",
				"/Practice-Management-Quality-Informatics/Artificial-Intelligence",
				"/Clinical-Resources/Informatics",
				"/Research/AI-LAB/News",
			},
			Priority: 1,
			MaxItems: 5,
			Require:  [][]string{aiTerms},
			Selectors: Selectors{
				Item:    ".news-item, .list-item, .content-item, .media-item",
				Title:   ".title, .heading, h2, h3, h4",
				Link:    "a[href]",
				Summary: ".summary, .description, .excerpt",
				Date:    "time, .date, .timestamp",

				Content:   "article, div.article, div.content, div.news-content",
				Takeaways: "h2, h3, strong, b",
			},
		},
		{
			Name:     "RSNA",
			Kind:     KindHTML,
			BaseURL:  "https://pubs.rsna.org",
			Paths:    []string{"/journal/ai", "/toc/ai/0/0"},
			Priority: 1,
			Selectors: Selectors{
				Item:    ".issue-item, .toc-item, article",
				Title:   ".issue-item__title, .hlFld-Title, h3, h5",
				Link:    "a[href]",
				Summary: ".issue-item__abstract, .abstract, p",
				Date:    ".pub-date, .epub-date, time",
			},
		},
		{
			Name:     "Modern Healthcare",
			Kind:     KindHTML,
			BaseURL:  "https://www.modernhealthcare.com",
			Paths:    []string{"/technology"},
			Priority: 4,
			Render:   true,
			Require:  [][]string{aiTerms},
			Selectors: Selectors{
				Item:    "article, .feature-article, .story",
				Title:   "h2, h3, .headline",
				Link:    "a[href]",
				Summary: ".summary, .dek, p",
				Date:    "time, .date",
			},
		},
	}
}
