package collector

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

const (
	maxTakeaways = 3
	// 要点长度（rune）须在 (min, max) 之间，过短多为标签，过长多为整段正文
	minTakeawayRunes = 20
	maxTakeawayRunes = 200
)

// readTakeaways visits each article page and fills Takeaways from
// sel.Content/sel.Takeaways. A page that fails only loses its takeaways.
func readTakeaways(ctx context.Context, articles []Article, sel Selectors, logger *zap.Logger) []Article {
	if sel.Takeaways == "" || len(articles) == 0 {
		return articles
	}

	c := colly.NewCollector(
		colly.UserAgent(defaultUserAgent),
	)
	c.SetRequestTimeout(defaultTimeout)
	c.AllowURLRevisit = true
	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})

	// colly 默认同步执行，Visit 返回时回调已跑完
	var current []string
	c.OnHTML("html", func(e *colly.HTMLElement) {
		current = extractTakeaways(e.DOM, sel)
	})

	read := 0
	for i := range articles {
		if ctx.Err() != nil {
			break
		}
		if articles[i].URL == "" || len(articles[i].Takeaways) > 0 {
			continue
		}
		current = nil
		if err := c.Visit(articles[i].URL); err != nil {
			logger.Debug("read article page failed", zap.String("url", articles[i].URL), zap.Error(err))
			continue
		}
		if len(current) > 0 {
			articles[i].Takeaways = current
			read++
		}
	}
	logger.Debug("takeaways read", zap.Int("articles", read))
	return articles
}

// extractTakeaways picks up to three headings or emphasised lines from the
// article body, falling back to its first paragraphs.
func extractTakeaways(page *goquery.Selection, sel Selectors) []string {
	root := page
	if sel.Content != "" {
		root = page.Find(sel.Content).First()
		if root.Length() == 0 {
			return nil
		}
	}

	var out []string
	seen := make(map[string]struct{})
	add := func(text string, bounded bool) {
		text = strings.TrimSpace(spaceExpr.ReplaceAllString(text, " "))
		n := utf8.RuneCountInString(text)
		if n <= minTakeawayRunes || (bounded && n >= maxTakeawayRunes) {
			return
		}
		if _, ok := seen[text]; ok {
			return
		}
		seen[text] = struct{}{}
		out = append(out, text)
	}

	root.Find(sel.Takeaways).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		add(s.Text(), true)
		return len(out) < maxTakeaways
	})
	if len(out) == 0 {
		root.Find("p").EachWithBreak(func(i int, s *goquery.Selection) bool {
			add(s.Text(), false)
			return i < maxTakeaways-1
		})
	}
	return out
}
