package aggregator

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/LJTian/MedNewsHub/internal/collector"
)

type stubFetcher struct {
	name     string
	tier     int
	articles []collector.Article
	err      error
	panicMsg string
	hang     chan struct{}
	delay    time.Duration
}

func (s *stubFetcher) Name() string  { return s.name }
func (s *stubFetcher) Priority() int { return s.tier }

func (s *stubFetcher) Fetch(ctx context.Context) ([]collector.Article, error) {
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if s.hang != nil {
		// 不理会 ctx，模拟卡死的适配器
		<-s.hang
		return nil, nil
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.articles, s.err
}

func titles(articles []collector.Article) []string {
	out := make([]string, 0, len(articles))
	for _, a := range articles {
		out = append(out, a.Title)
	}
	sort.Strings(out)
	return out
}

func TestGatherIsolatesFailingSource(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	g := NewGatherer(PriorityTable{"Alpha": 1}, time.Second, zap.New(core), metrics)

	fetchers := []collector.Fetcher{
		&stubFetcher{name: "Alpha", tier: 4, articles: []collector.Article{
			{Title: "a1"},
			{Title: "a2", Source: "Custom Outlet"},
		}},
		&stubFetcher{name: "Broken", tier: 2, err: errors.New("connection refused")},
		&stubFetcher{name: "Gamma", tier: 3, articles: []collector.Article{{Title: "c1"}}},
	}

	got := g.Gather(context.Background(), fetchers)
	if diff := cmp.Diff([]string{"a1", "a2", "c1"}, titles(got)); diff != "" {
		t.Fatalf("gathered titles mismatch (-want +got):\n%s", diff)
	}

	wantMeta := map[string][2]any{
		"a1": {"Alpha", 1},         // configured table wins over declared tier 4
		"a2": {"Custom Outlet", 5}, // adapter-set source kept, unknown tier
		"c1": {"Gamma", 3},         // declared tier registered for unlisted adapter
	}
	for _, a := range got {
		want := wantMeta[a.Title]
		if a.Source != want[0] || a.Priority != want[1] {
			t.Fatalf("%s: got source=%q priority=%d, want %v", a.Title, a.Source, a.Priority, want)
		}
	}

	if logs.FilterMessage("source failed").FilterField(zap.String("source", "Broken")).Len() != 1 {
		t.Fatalf("expected one warning for Broken, got %v", logs.All())
	}
	if v := testutil.ToFloat64(metrics.GatherFailures.WithLabelValues("Broken")); v != 1 {
		t.Fatalf("failures counter = %v, want 1", v)
	}
	if v := testutil.ToFloat64(metrics.GatherArticles.WithLabelValues("Alpha")); v != 2 {
		t.Fatalf("articles counter = %v, want 2", v)
	}
}

func TestCollectRecoversPanics(t *testing.T) {
	t.Parallel()

	g := NewGatherer(nil, time.Second, nil, nil)
	results := g.Collect(context.Background(), []collector.Fetcher{
		&stubFetcher{name: "Panicky", panicMsg: "nil map write"},
		&stubFetcher{name: "Fine", articles: []collector.Article{{Title: "ok"}}},
	})

	if len(results) != 2 {
		t.Fatalf("expected one result per adapter, got %d", len(results))
	}
	if !errors.Is(results[0].Err, ErrAdapterPanic) || len(results[0].Articles) != 0 {
		t.Fatalf("panic not isolated: %+v", results[0])
	}
	if results[1].Err != nil || len(results[1].Articles) != 1 {
		t.Fatalf("healthy adapter affected: %+v", results[1])
	}
}

func TestCollectAbandonsSlowSource(t *testing.T) {
	t.Parallel()

	hang := make(chan struct{})
	t.Cleanup(func() { close(hang) })

	g := NewGatherer(nil, 50*time.Millisecond, nil, nil)
	start := time.Now()
	results := g.Collect(context.Background(), []collector.Fetcher{
		&stubFetcher{name: "Stuck", hang: hang},
		&stubFetcher{name: "Quick", articles: []collector.Article{{Title: "q"}}},
	})

	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("gather waited %v for a stuck adapter", elapsed)
	}
	if !errors.Is(results[0].Err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", results[0].Err)
	}
	if len(results[1].Articles) != 1 {
		t.Fatalf("quick adapter lost its articles")
	}
}

func TestGatherCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	hang := make(chan struct{})
	t.Cleanup(func() { close(hang) })

	g := NewGatherer(nil, time.Minute, nil, nil)
	got := g.Gather(ctx, []collector.Fetcher{&stubFetcher{name: "Stuck", hang: hang}})
	if len(got) != 0 {
		t.Fatalf("expected nothing from a cancelled gather, got %d", len(got))
	}
}

func TestPriorityTableLookup(t *testing.T) {
	t.Parallel()

	table := DefaultPriorityTable()
	if table.Lookup("ACR News") != 1 || table.Lookup("Beckers") != 4 {
		t.Fatalf("unexpected default tiers: %v", table)
	}
	if table.Lookup("Some Blog") != DefaultPriority {
		t.Fatalf("unknown source should get tier %d", DefaultPriority)
	}
	if (PriorityTable{"Zero": 0}).Lookup("Zero") != DefaultPriority {
		t.Fatalf("non-positive tiers fall back to the default")
	}
}

func TestCollectRunsSourcesConcurrently(t *testing.T) {
	t.Parallel()

	g := NewGatherer(nil, 5*time.Second, nil, nil)
	fetchers := make([]collector.Fetcher, 0, 3)
	for _, name := range []string{"Alpha", "Beta", "Gamma"} {
		fetchers = append(fetchers, &stubFetcher{
			name:     name,
			delay:    100 * time.Millisecond,
			articles: []collector.Article{{Title: name + " story"}},
		})
	}

	start := time.Now()
	results := g.Collect(context.Background(), fetchers)
	elapsed := time.Since(start)

	// 串行执行至少需要 300ms
	if elapsed >= 250*time.Millisecond {
		t.Fatalf("Collect took %v, sources are not running concurrently", elapsed)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Err != nil || len(r.Articles) != 1 {
			t.Fatalf("source %s: err=%v articles=%d", r.Source, r.Err, len(r.Articles))
		}
	}
}

func TestMergeTrimsSourceBeforeLookup(t *testing.T) {
	t.Parallel()

	g := NewGatherer(DefaultPriorityTable(), time.Second, nil, nil)
	got := g.Merge([]SourceResult{{
		Source:   "Feed",
		Articles: []collector.Article{{Title: "t", Source: " RSNA "}, {Title: "u", Source: "   "}},
	}})

	if got[0].Source != "RSNA" || got[0].Priority != 1 {
		t.Fatalf("padded source should resolve to RSNA tier 1, got %q tier %d", got[0].Source, got[0].Priority)
	}
	if got[1].Source != "Feed" {
		t.Fatalf("blank source should fall back to the adapter, got %q", got[1].Source)
	}
}
