package filter

import "strings"

// KeywordSet 一个主题域的关键词集合，构造后不可变
type KeywordSet struct {
	name  string
	terms []string
}

// NewKeywordSet lower-cases and de-duplicates terms, keeping first-seen order.
func NewKeywordSet(name string, terms ...string) KeywordSet {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return KeywordSet{name: name, terms: out}
}

func (k KeywordSet) Name() string { return k.name }

// Terms returns a copy of the normalized terms.
func (k KeywordSet) Terms() []string {
	return append([]string(nil), k.terms...)
}

func (k KeywordSet) Len() int { return len(k.terms) }

var (
	DefaultRadiologyTerms = []string{
		"radiology", "imaging", "radiologist", "x-ray", "CT", "MRI", "PACS",
		"diagnostic imaging", "nuclear medicine", "ultrasound", "mammography",
		"interventional radiology", "image analysis", "scan", "imaging technology",
	}

	DefaultHealthcareTerms = []string{
		"healthcare", "medical", "clinical", "hospital", "physician",
		"pathology", "cardiology", "oncology", "surgery", "diagnosis",
		"patient care", "EMR", "EHR", "digital health", "telemedicine",
		"remote monitoring", "precision medicine", "population health",
	}

	DefaultAITerms = []string{
		"artificial intelligence", "AI", "machine learning", "deep learning",
		"neural network", "computer vision", "natural language processing",
		"algorithm", "automation", "predictive analytics", "decision support",
		"automated detection", "ML", "generative AI", "large language model",
		"LLM", "foundation model", "computer-aided", "digital transformation",
	}
)
