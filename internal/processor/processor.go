package processor

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/LJTian/MedNewsHub/internal/collector"
)

var spaceExpr = regexp.MustCompile(`\s+`)

// Normalizer 做最基础的数据清洗与 ID 生成。
// 不去重：同一篇文章出现在多个源时两条都保留。
// 摘要保持全文，评分看完整文本；长度限制只在入库和排版时做。
type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize 返回清洗后的新切片，输入不被修改
func (n *Normalizer) Normalize(items []collector.Article) []collector.Article {
	out := make([]collector.Article, 0, len(items))
	for _, it := range items {
		a := it
		a.Title = collapse(a.Title)
		a.Summary = collapse(stripHTML(a.Summary))
		a.URL = strings.TrimSpace(a.URL)
		a.Source = strings.TrimSpace(a.Source)
		if a.ID == "" && a.URL != "" {
			a.ID = hashURL(a.URL)
		}
		if len(it.Takeaways) > 0 {
			a.Takeaways = make([]string, 0, len(it.Takeaways))
			for _, t := range it.Takeaways {
				if t = collapse(t); t != "" {
					a.Takeaways = append(a.Takeaways, t)
				}
			}
		}
		out = append(out, a)
	}
	return out
}

// stripHTML RSS 描述里常带标签，没有 '<' 时直接返回
func stripHTML(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return doc.Text()
}

func collapse(s string) string {
	return strings.TrimSpace(spaceExpr.ReplaceAllString(s, " "))
}

func hashURL(url string) string {
	h := sha1.New()
	h.Write([]byte(url))
	return hex.EncodeToString(h.Sum(nil))
}
