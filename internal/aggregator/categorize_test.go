package aggregator

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/LJTian/MedNewsHub/internal/collector"
	"github.com/LJTian/MedNewsHub/internal/filter"
)

const (
	radiologyText = "New AI algorithm improves MRI tumor detection accuracy, radiologists say"
	healthText    = "Hospital deploys machine learning for clinical diagnosis and patient care"
	offTopicText  = "Hospital announces new cafeteria menu"
)

func newTestCategorizer(t *testing.T, logger *zap.Logger, metrics *Metrics) *Categorizer {
	t.Helper()
	c, err := NewCategorizer(filter.NewEngine(filter.DefaultEngineConfig()), DefaultRankConfig(), logger, metrics)
	if err != nil {
		t.Fatalf("NewCategorizer: %v", err)
	}
	return c
}

func TestCategorizeEmptyInput(t *testing.T) {
	t.Parallel()

	c := newTestCategorizer(t, nil, nil)
	for _, in := range [][]collector.Article{nil, {}} {
		got := c.Categorize(in)
		want := Digest{CategoryRadiology: {}, CategoryHealthcare: {}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("empty digest mismatch (-want +got):\n%s", diff)
		}
		bs, err := json.Marshal(got)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if string(bs) != `{"healthcare":[],"radiology":[]}` {
			t.Fatalf("unexpected json: %s", bs)
		}
	}
}

func TestCategorizeCapsBuckets(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	c := newTestCategorizer(t, nil, metrics)

	var in []collector.Article
	for i := 0; i < 100; i++ {
		a := collector.Article{Title: fmt.Sprintf("item %d", i), Source: "Some Blog", Priority: DefaultPriority}
		switch {
		case i < 10:
			a.Summary = radiologyText
		case i < 20:
			a.Summary = healthText
		default:
			a.Summary = offTopicText
		}
		in = append(in, a)
	}

	d, dropped := c.categorize(in)
	if len(d[CategoryRadiology]) != 5 || len(d[CategoryHealthcare]) != 5 {
		t.Fatalf("buckets not capped: radiology=%d healthcare=%d", len(d[CategoryRadiology]), len(d[CategoryHealthcare]))
	}
	if dropped.Irrelevant != 80 || dropped.Truncated != 10 || dropped.Malformed != 0 {
		t.Fatalf("unexpected drop stats: %+v", dropped)
	}
	if v := testutil.ToFloat64(metrics.DroppedArticles.WithLabelValues("irrelevant")); v != 80 {
		t.Fatalf("irrelevant counter = %v", v)
	}
	if v := testutil.ToFloat64(metrics.CategorizedCount.WithLabelValues(CategoryRadiology)); v != 5 {
		t.Fatalf("radiology gauge = %v", v)
	}

	seen := make(map[string]string)
	for cat, list := range d {
		for _, a := range list {
			if a.Scores == nil {
				t.Fatalf("%s: article %q has no scores", cat, a.Title)
			}
			if prev, ok := seen[a.Title]; ok {
				t.Fatalf("article %q in both %s and %s", a.Title, prev, cat)
			}
			seen[a.Title] = cat
		}
	}
	if in[0].Scores != nil {
		t.Fatalf("input articles must not be modified")
	}
}

func TestTierOneOutranksTierFour(t *testing.T) {
	t.Parallel()

	c := newTestCategorizer(t, nil, nil)
	d := c.Categorize([]collector.Article{
		{Title: radiologyText, Source: "Beckers", Priority: 4},
		{Title: radiologyText, Source: "AuntMinnie", Priority: 1},
	})

	rad := d[CategoryRadiology]
	if len(rad) != 2 || rad[0].Priority != 1 || rad[1].Priority != 4 {
		t.Fatalf("unexpected radiology order: %+v", rad)
	}
	if rad[0].Scores.Combined <= rad[1].Scores.Combined {
		t.Fatalf("tier 1 should carry the larger weighted score: %v vs %v", rad[0].Scores.Combined, rad[1].Scores.Combined)
	}
}

func TestHealthcareRanksByWeightedScore(t *testing.T) {
	t.Parallel()

	c := newTestCategorizer(t, nil, nil)
	d := c.Categorize([]collector.Article{
		{Title: healthText, Source: "Unknown", Priority: 5},
		{Title: healthText, Source: "AuntMinnie", Priority: 2},
	})

	hc := d[CategoryHealthcare]
	if len(hc) != 2 || hc[0].Source != "AuntMinnie" {
		t.Fatalf("priority multiplier should lift the tier-2 article: %+v", hc)
	}
}

func TestTiesBrokenByPublishedAt(t *testing.T) {
	t.Parallel()

	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(48 * time.Hour)

	c := newTestCategorizer(t, nil, nil)
	d := c.Categorize([]collector.Article{
		{Title: healthText, URL: "nil", Priority: 3},
		{Title: healthText, URL: "older", Priority: 3, PublishedAt: &older},
		{Title: healthText, URL: "newer", Priority: 3, PublishedAt: &newer},
	})

	var got []string
	for _, a := range d[CategoryHealthcare] {
		got = append(got, a.URL)
	}
	if diff := cmp.Diff([]string{"newer", "older", "nil"}, got); diff != "" {
		t.Fatalf("tie-break order mismatch (-want +got):\n%s", diff)
	}
}

func TestAutomaticSourceBypassesRelevance(t *testing.T) {
	t.Parallel()

	c := newTestCategorizer(t, nil, nil)
	d := c.Categorize([]collector.Article{
		{Title: offTopicText, Source: "ACR News", Priority: 1},
		{Title: offTopicText, Source: "Some Blog", Priority: 5},
	})

	rad := d[CategoryRadiology]
	if len(rad) != 1 || rad[0].Source != "ACR News" {
		t.Fatalf("automatic source should land in radiology: %+v", d)
	}
	if rad[0].Scores == nil {
		t.Fatalf("automatic placement still needs scores")
	}
	if len(d[CategoryHealthcare]) != 0 {
		t.Fatalf("off-topic article should be dropped: %+v", d[CategoryHealthcare])
	}
}

func TestMalformedArticleSkipped(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	c := newTestCategorizer(t, zap.New(core), nil)

	d, dropped := c.categorize([]collector.Article{
		{Title: "   ", Summary: radiologyText, Source: "AuntMinnie", URL: "https://x/bad"},
		{Title: radiologyText, Source: "AuntMinnie", Priority: 2},
	})

	if dropped.Malformed != 1 {
		t.Fatalf("expected 1 malformed, got %+v", dropped)
	}
	if logs.FilterMessage("skip malformed article").Len() != 1 {
		t.Fatalf("expected a warning for the malformed article, got %v", logs.All())
	}
	if len(d[CategoryRadiology]) != 1 {
		t.Fatalf("processing should continue after a malformed article")
	}
}

func TestPlaceUnknownCategoryPanics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for unknown category")
		}
	}()
	place(NewDigest(), "oncology", collector.Article{Title: "x"})
}

func TestAssess(t *testing.T) {
	t.Parallel()

	c := newTestCategorizer(t, nil, nil)

	as := c.Assess(collector.Article{Title: radiologyText, Priority: 1})
	if as.Category != CategoryRadiology || as.Multiplier != 1.5 {
		t.Fatalf("unexpected assessment: %+v", as)
	}
	if as.Weighted != as.Scores.Scale(1.5) {
		t.Fatalf("weighted scores should be raw scores times multiplier")
	}

	unranked := c.Assess(collector.Article{Title: healthText})
	if unranked.Priority != DefaultPriority || unranked.Multiplier != 0.9 {
		t.Fatalf("missing priority should use the lowest tier: %+v", unranked)
	}

	odd := c.Assess(collector.Article{Title: offTopicText, Priority: 9})
	if odd.Multiplier != 0.9 || odd.Category != "" {
		t.Fatalf("unknown tier should use tier-5 multiplier and drop: %+v", odd)
	}
}

func TestRankConfigValidate(t *testing.T) {
	t.Parallel()

	cases := map[string]func(*RankConfig){
		"zero cap":          func(c *RankConfig) { c.BucketCap = 0 },
		"missing tier five": func(c *RankConfig) { delete(c.Multipliers, DefaultPriority) },
		"negative weight":   func(c *RankConfig) { c.Multipliers[2] = -1 },
		"tier zero":         func(c *RankConfig) { c.Multipliers[0] = 1 },
	}
	for name, mutate := range cases {
		cfg := DefaultRankConfig()
		mutate(&cfg)
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidRanking) {
			t.Fatalf("%s: expected ErrInvalidRanking, got %v", name, err)
		}
	}
	if err := DefaultRankConfig().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
