// Package filter scores article text against topical keyword sets and decides
// whether an article is relevant to the radiology or healthcare AI digest.
package filter

import (
	"math"
	"regexp"
	"sort"
	"strings"

	ahocorasick "github.com/cloudflare/ahocorasick"
)

// phraseWords 达到该词数的短语，子串命中时额外记半次
const (
	phraseWords       = 3
	phraseMatchWeight = 0.5
)

// ScoreParams tunes how raw keyword hits turn into a score.
type ScoreParams struct {
	FrequencyNorm    float64 `yaml:"frequency_norm" json:"frequencyNorm"`
	ExpectedCoverage float64 `yaml:"expected_coverage" json:"expectedCoverage"`
	FrequencyWeight  float64 `yaml:"frequency_weight" json:"frequencyWeight"`
	VarietyWeight    float64 `yaml:"variety_weight" json:"varietyWeight"`
}

// DefaultScoreParams: 30% frequency, 70% variety, 25% expected coverage.
func DefaultScoreParams() ScoreParams {
	return ScoreParams{
		FrequencyNorm:    2,
		ExpectedCoverage: 0.25,
		FrequencyWeight:  0.3,
		VarietyWeight:    0.7,
	}
}

// Match is the raw outcome of matching one text against one keyword set.
type Match struct {
	Total   float64
	Matched []string
}

type compiledKeyword struct {
	term    string
	pattern *regexp.Regexp
	phrase  bool
}

// Scorer matches text against a single keyword set. It is safe for concurrent use.
type Scorer struct {
	set      KeywordSet
	keywords []compiledKeyword
	matcher  *ahocorasick.Matcher
	params   ScoreParams
}

func NewScorer(set KeywordSet, params ScoreParams) *Scorer {
	s := &Scorer{set: set, params: params}
	terms := set.Terms()
	if len(terms) == 0 {
		return s
	}

	s.keywords = make([]compiledKeyword, 0, len(terms))
	for _, t := range terms {
		s.keywords = append(s.keywords, compiledKeyword{
			term:    t,
			pattern: regexp.MustCompile(`\b` + regexp.QuoteMeta(t) + `\b`),
			phrase:  len(strings.Fields(t)) >= phraseWords,
		})
	}
	s.matcher = ahocorasick.NewStringMatcher(terms)
	return s
}

func (s *Scorer) Name() string { return s.set.Name() }

// Match counts boundary-aware hits. The automaton only narrows down which
// keywords occur as substrings; counting is done on word boundaries.
func (s *Scorer) Match(text string) Match {
	var m Match
	if s.matcher == nil || text == "" {
		return m
	}
	text = strings.ToLower(text)

	hits := s.matcher.MatchThreadSafe([]byte(text))
	sort.Ints(hits)
	prev := -1
	for _, idx := range hits {
		if idx == prev || idx < 0 || idx >= len(s.keywords) {
			continue
		}
		prev = idx
		kw := s.keywords[idx]

		n := len(kw.pattern.FindAllStringIndex(text, -1))
		matched := n > 0
		m.Total += float64(n)

		// 长短语只要以子串出现即计入，权重减半
		if kw.phrase {
			matched = true
			m.Total += phraseMatchWeight
		}
		if matched {
			m.Matched = append(m.Matched, kw.term)
		}
	}
	return m
}

// Score returns a value in [0,1] blending hit frequency and keyword variety.
func (s *Scorer) Score(text string) float64 {
	if len(s.keywords) == 0 {
		return 0
	}
	return s.params.combine(s.Match(text), len(s.keywords))
}

func (p ScoreParams) combine(m Match, keywordCount int) float64 {
	if keywordCount == 0 || p.FrequencyNorm <= 0 || p.ExpectedCoverage <= 0 {
		return 0
	}
	frequency := math.Min(m.Total/p.FrequencyNorm, 1)
	variety := clamp01(float64(len(m.Matched)) / (float64(keywordCount) * p.ExpectedCoverage))
	return math.Min(frequency*p.FrequencyWeight+variety*p.VarietyWeight, 1)
}

// Score is a one-shot helper for ad-hoc keyword lists.
func Score(text string, keywords []string, params ScoreParams) float64 {
	return NewScorer(NewKeywordSet("adhoc", keywords...), params).Score(text)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
