package filter

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig 配置不合法（权重、阈值越界等）
var ErrInvalidConfig = errors.New("filter: invalid engine config")

// Scores 各主题域的相关度得分
type Scores struct {
	Radiology  float64 `json:"radiology"`
	Healthcare float64 `json:"healthcare"`
	AI         float64 `json:"ai"`
	Combined   float64 `json:"combined"`
}

// Scale multiplies every component by f.
func (s Scores) Scale(f float64) Scores {
	return Scores{
		Radiology:  s.Radiology * f,
		Healthcare: s.Healthcare * f,
		AI:         s.AI * f,
		Combined:   s.Combined * f,
	}
}

// Map is the flat form used for JSON columns and templates.
func (s Scores) Map() map[string]any {
	return map[string]any{
		"radiology":  s.Radiology,
		"healthcare": s.Healthcare,
		"ai":         s.AI,
		"combined":   s.Combined,
	}
}

// Result is the outcome of Classify. IsRadiology and IsGeneralHealthcare are
// never both true.
type Result struct {
	Scores              Scores `json:"scores"`
	IsRelevant          bool   `json:"isRelevant"`
	IsRadiology         bool   `json:"isRadiology"`
	IsGeneralHealthcare bool   `json:"isGeneralHealthcare"`
}

type Weights struct {
	Radiology  float64 `yaml:"radiology" json:"radiology"`
	Healthcare float64 `yaml:"healthcare" json:"healthcare"`
	AI         float64 `yaml:"ai" json:"ai"`
}

type Thresholds struct {
	Radiology  float64 `yaml:"radiology" json:"radiology"`
	Healthcare float64 `yaml:"healthcare" json:"healthcare"`
	AI         float64 `yaml:"ai" json:"ai"`
}

// EngineConfig carries every tunable of the relevance engine.
type EngineConfig struct {
	Radiology  KeywordSet
	Healthcare KeywordSet
	AI         KeywordSet
	Score      ScoreParams
	Boost      float64
	Weights    Weights
	Thresholds Thresholds
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Radiology:  NewKeywordSet("radiology", DefaultRadiologyTerms...),
		Healthcare: NewKeywordSet("healthcare", DefaultHealthcareTerms...),
		AI:         NewKeywordSet("ai", DefaultAITerms...),
		Score:      DefaultScoreParams(),
		Boost:      1.2,
		Weights:    Weights{Radiology: 0.4, Healthcare: 0.3, AI: 0.3},
		Thresholds: Thresholds{Radiology: 0.2, Healthcare: 0.2, AI: 0.2},
	}
}

// Validate rejects configs that would break the [0,1] contract.
func (c EngineConfig) Validate() error {
	p := c.Score
	if p.FrequencyNorm <= 0 || p.ExpectedCoverage <= 0 || p.ExpectedCoverage > 1 {
		return fmt.Errorf("%w: frequency_norm and expected_coverage must be positive (coverage <= 1)", ErrInvalidConfig)
	}
	if p.FrequencyWeight < 0 || p.VarietyWeight < 0 || p.VarietyWeight <= p.FrequencyWeight {
		return fmt.Errorf("%w: variety_weight must exceed frequency_weight", ErrInvalidConfig)
	}
	if c.Boost < 1 {
		return fmt.Errorf("%w: boost %.2f below 1", ErrInvalidConfig, c.Boost)
	}
	w := c.Weights
	if w.Radiology < 0 || w.Healthcare < 0 || w.AI < 0 {
		return fmt.Errorf("%w: negative domain weight", ErrInvalidConfig)
	}
	for name, t := range map[string]float64{
		"radiology":  c.Thresholds.Radiology,
		"healthcare": c.Thresholds.Healthcare,
		"ai":         c.Thresholds.AI,
	} {
		if t < 0 || t >= 1 {
			return fmt.Errorf("%w: %s threshold %.2f outside [0,1)", ErrInvalidConfig, name, t)
		}
	}
	for _, set := range []KeywordSet{c.Radiology, c.Healthcare, c.AI} {
		if set.Len() == 0 {
			return fmt.Errorf("%w: keyword set %q is empty", ErrInvalidConfig, set.Name())
		}
	}
	return nil
}

// Engine 组合三个领域的打分器，给出分数与分类决策
type Engine struct {
	radiology  *Scorer
	healthcare *Scorer
	ai         *Scorer
	cfg        EngineConfig
}

func NewEngine(cfg EngineConfig) *Engine {
	return &Engine{
		radiology:  NewScorer(cfg.Radiology, cfg.Score),
		healthcare: NewScorer(cfg.Healthcare, cfg.Score),
		ai:         NewScorer(cfg.AI, cfg.Score),
		cfg:        cfg,
	}
}

// Scores computes boosted per-domain scores and the weighted combination.
func (e *Engine) Scores(text string) Scores {
	rad := e.radiology.Score(text)
	health := e.healthcare.Score(text)
	ai := e.ai.Score(text)

	// AI 与医疗/影像同时出现时整体加权
	if ai > 0 && (health > 0 || rad > 0) {
		rad *= e.cfg.Boost
		health *= e.cfg.Boost
		ai *= e.cfg.Boost
	}

	rad, health, ai = clamp01(rad), clamp01(health), clamp01(ai)
	w := e.cfg.Weights
	return Scores{
		Radiology:  rad,
		Healthcare: health,
		AI:         ai,
		Combined:   clamp01(rad*w.Radiology + health*w.Healthcare + ai*w.AI),
	}
}

// Classify scores text and applies the relevance thresholds. AI signal is a
// required co-factor for both categories.
func (e *Engine) Classify(text string) Result {
	s := e.Scores(text)
	t := e.cfg.Thresholds

	hasAI := s.AI > t.AI && s.AI > 0
	isRad := hasAI && s.Radiology > t.Radiology
	isHealth := hasAI && s.Healthcare > t.Healthcare && !isRad

	return Result{
		Scores:              s,
		IsRelevant:          isRad || isHealth,
		IsRadiology:         isRad,
		IsGeneralHealthcare: isHealth,
	}
}

// Config returns the config the engine was built with.
func (e *Engine) Config() EngineConfig { return e.cfg }
