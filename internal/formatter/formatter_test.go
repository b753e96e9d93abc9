package formatter

import (
	"strings"
	"testing"
	"time"

	"github.com/LJTian/MedNewsHub/internal/aggregator"
	"github.com/LJTian/MedNewsHub/internal/collector"
)

var postDate = time.Date(2025, time.January, 6, 13, 0, 0, 0, time.UTC)

func TestFormatEmptyDigest(t *testing.T) {
	got := New(Options{}).Format(aggregator.NewDigest(), postDate)

	want := "📰 Healthcare AI News Update - January 6, 2025\n\n" +
		"🔬 Radiology AI Highlights:\n\n" +
		"No major radiology AI updates this week.\n\n" +
		"🏥 Healthcare AI Innovations:\n\n" +
		"No major healthcare AI updates this week.\n\n" +
		DefaultHashtags
	if got != want {
		t.Fatalf("unexpected post:\n%s\nwant:\n%s", got, want)
	}
}

func TestFormatArticles(t *testing.T) {
	d := aggregator.NewDigest()
	d[aggregator.CategoryRadiology] = []collector.Article{
		{
			Title:     "AI reads chest X-rays",
			Source:    "AuntMinnie",
			Summary:   strings.Repeat("x", 320),
			URL:       "https://example.org/a",
			Takeaways: []string{"one", "two", "three", "four"},
		},
		{Title: "Second item", Source: "RSNA"},
	}

	got := New(DefaultOptions()).Format(d, postDate)

	for _, want := range []string{
		"1. AI reads chest X-rays\nSource: AuntMinnie\n" + strings.Repeat("x", 300) + "...\n",
		"Key takeaways:\n• one\n• two\n• three\nhttps://example.org/a\n",
		"2. Second item\nSource: RSNA\n\n",
		"No major healthcare AI updates this week.",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("post missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "four") {
		t.Fatalf("takeaways should be capped at 3")
	}
	if strings.Contains(got, "No major radiology") {
		t.Fatalf("radiology section is not empty")
	}
	if !strings.HasSuffix(got, DefaultHashtags) {
		t.Fatalf("post should end with hashtags")
	}
}

func TestTruncateKeepsRunes(t *testing.T) {
	if got := truncate("Résumé", 3); got != "Rés..." {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("truncate should not touch short text: %q", got)
	}
}
