// Package formatter renders a digest as the text of a social post.
package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/LJTian/MedNewsHub/internal/aggregator"
	"github.com/LJTian/MedNewsHub/internal/collector"
)

const DefaultHashtags = "#HealthcareAI #RadiologyAI #ArtificialIntelligence " +
	"#HealthTech #DigitalHealth #MedicalImaging #Healthcare " +
	"#Innovation #AI #Radiology"

type Options struct {
	MaxSummary   int    `yaml:"max_summary" json:"maxSummary"`
	MaxTakeaways int    `yaml:"max_takeaways" json:"maxTakeaways"`
	Hashtags     string `yaml:"hashtags" json:"hashtags"`
}

func DefaultOptions() Options {
	return Options{MaxSummary: 300, MaxTakeaways: 3, Hashtags: DefaultHashtags}
}

type section struct {
	category string
	heading  string
	empty    string
}

var sections = []section{
	{aggregator.CategoryRadiology, "🔬 Radiology AI Highlights:", "No major radiology AI updates this week."},
	{aggregator.CategoryHealthcare, "🏥 Healthcare AI Innovations:", "No major healthcare AI updates this week."},
}

type Formatter struct {
	opts Options
}

func New(opts Options) *Formatter {
	def := DefaultOptions()
	if opts.MaxSummary <= 0 {
		opts.MaxSummary = def.MaxSummary
	}
	if opts.MaxTakeaways < 0 {
		opts.MaxTakeaways = 0
	}
	if opts.Hashtags == "" {
		opts.Hashtags = def.Hashtags
	}
	return &Formatter{opts: opts}
}

// Format renders d. Empty sections get an explicit "no updates" line.
func (f *Formatter) Format(d aggregator.Digest, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📰 Healthcare AI News Update - %s\n\n", now.Format("January 2, 2006"))

	for _, s := range sections {
		b.WriteString(s.heading)
		b.WriteString("\n\n")
		articles := d[s.category]
		if len(articles) == 0 {
			b.WriteString(s.empty)
			b.WriteString("\n\n")
			continue
		}
		for i, a := range articles {
			f.writeArticle(&b, i+1, a)
		}
	}

	b.WriteString(f.opts.Hashtags)
	return b.String()
}

func (f *Formatter) writeArticle(b *strings.Builder, n int, a collector.Article) {
	fmt.Fprintf(b, "%d. %s\n", n, a.Title)
	fmt.Fprintf(b, "Source: %s\n", a.Source)
	if a.Summary != "" {
		b.WriteString(truncate(a.Summary, f.opts.MaxSummary))
		b.WriteString("\n")
	}
	if len(a.Takeaways) > 0 && f.opts.MaxTakeaways > 0 {
		b.WriteString("Key takeaways:\n")
		for i, t := range a.Takeaways {
			if i == f.opts.MaxTakeaways {
				break
			}
			fmt.Fprintf(b, "• %s\n", t)
		}
	}
	if a.URL != "" {
		fmt.Fprintf(b, "%s\n", a.URL)
	}
	b.WriteString("\n")
}

func truncate(s string, limit int) string {
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit]) + "..."
}
