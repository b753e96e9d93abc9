package filter

import (
	"errors"
	"testing"
)

func TestClassifyRadiologyScenario(t *testing.T) {
	e := NewEngine(DefaultEngineConfig())

	res := e.Classify("New AI algorithm improves MRI tumor detection accuracy, radiologists say")
	if res.Scores.Radiology <= 0 || res.Scores.AI <= 0 {
		t.Fatalf("expected radiology and ai scores > 0, got %+v", res.Scores)
	}
	if !res.IsRadiology || !res.IsRelevant {
		t.Fatalf("expected radiology relevance, got %+v", res)
	}
	if res.IsGeneralHealthcare {
		t.Fatalf("radiology article must not also be general healthcare")
	}
}

func TestClassifyIrrelevantWithoutAI(t *testing.T) {
	e := NewEngine(DefaultEngineConfig())

	res := e.Classify("Hospital announces new cafeteria menu")
	if res.Scores.AI != 0 {
		t.Fatalf("ai score = %v, want 0", res.Scores.AI)
	}
	if res.Scores.Healthcare <= 0 {
		t.Fatalf("expected some healthcare signal from 'hospital', got %+v", res.Scores)
	}
	if res.IsRelevant {
		t.Fatalf("article without AI signal must not be relevant: %+v", res)
	}
}

func TestClassifyGeneralHealthcare(t *testing.T) {
	e := NewEngine(DefaultEngineConfig())

	res := e.Classify("Hospital deploys machine learning for clinical diagnosis and patient care")
	if !res.IsGeneralHealthcare || res.IsRadiology {
		t.Fatalf("expected general healthcare only, got %+v", res)
	}
	if res.Scores.Healthcare != 1 {
		t.Fatalf("boosted healthcare score should clamp to 1, got %v", res.Scores.Healthcare)
	}
}

func TestClassifyCategoriesMutuallyExclusive(t *testing.T) {
	e := NewEngine(DefaultEngineConfig())
	texts := []string{
		"AI radiology imaging with deep learning in the hospital for clinical diagnosis",
		"machine learning ct scan triage for oncology and cardiology patient care",
		"LLM assistant for EHR documentation",
		"deep learning mammography screening",
		"telemedicine startup raises funds",
		"",
	}
	for _, text := range texts {
		res := e.Classify(text)
		if res.IsRadiology && res.IsGeneralHealthcare {
			t.Fatalf("both categories set for %q: %+v", text, res)
		}
		if res.IsRelevant != (res.IsRadiology || res.IsGeneralHealthcare) {
			t.Fatalf("IsRelevant inconsistent for %q: %+v", text, res)
		}
		if res.Scores.AI == 0 && res.IsRelevant {
			t.Fatalf("relevant without AI signal for %q", text)
		}
	}
}

func TestCoOccurrenceBoost(t *testing.T) {
	cfg := DefaultEngineConfig()
	e := NewEngine(cfg)
	plain := NewEngine(func() EngineConfig { c := cfg; c.Boost = 1; return c }())

	text := "mri ai"
	boosted, base := e.Scores(text), plain.Scores(text)
	if boosted.Radiology <= base.Radiology || boosted.AI <= base.AI {
		t.Fatalf("expected boost to raise scores: boosted=%+v base=%+v", boosted, base)
	}

	// 单一领域不加权
	only := "mri pacs"
	if e.Scores(only) != plain.Scores(only) {
		t.Fatalf("single-domain text must not be boosted")
	}
}

func TestCombinedWithinUnitInterval(t *testing.T) {
	e := NewEngine(DefaultEngineConfig())
	s := e.Scores("radiology imaging radiologist x-ray ct mri pacs ai machine learning deep learning hospital clinical")
	if s.Combined < 0 || s.Combined > 1 {
		t.Fatalf("combined = %v, want within [0,1]", s.Combined)
	}
}

func TestEngineConfigValidate(t *testing.T) {
	if err := DefaultEngineConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	cases := map[string]func(*EngineConfig){
		"variety not dominant": func(c *EngineConfig) { c.Score.VarietyWeight = 0.2 },
		"zero norm":            func(c *EngineConfig) { c.Score.FrequencyNorm = 0 },
		"threshold too high":   func(c *EngineConfig) { c.Thresholds.AI = 1.5 },
		"boost below one":      func(c *EngineConfig) { c.Boost = 0.5 },
		"empty keyword set":    func(c *EngineConfig) { c.AI = NewKeywordSet("ai") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultEngineConfig()
			mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}
