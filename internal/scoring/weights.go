// Package scoring implements the evidence normalization and aggregation
// engine: classification-to-weight mapping, percentile ranking of count
// evidence, and the per-gene composite score over all active sources.
package scoring

import (
	"math"
	"strings"

	"github.com/nephroseq/genevidence-cli/api/schemas"
)

// clinGenWeights maps ClinGen gene-disease validity classifications to
// normalized weights. Lookups are case-insensitive.
var clinGenWeights = map[string]float64{
	"definitive":                    1.0,
	"strong":                        0.8,
	"moderate":                      0.6,
	"limited":                       0.4,
	"disputed":                      0.2,
	"disputed evidence":             0.2,
	"refuted":                       0.1,
	"refuted evidence":              0.1,
	"no known disease relationship": 0.0,
}

// genCCWeights maps GenCC submission classifications to normalized weights.
// "Limited" is 0.4, matching the ClinGen table; the 0.3 figure seen in some
// GenCC exports belongs to a simplified fallback table this engine does not
// use.
var genCCWeights = map[string]float64{
	"definitive":                    1.0,
	"strong":                        0.8,
	"moderate":                      0.6,
	"supportive":                    0.5,
	"limited":                       0.4,
	"disputed":                      0.1,
	"disputed evidence":             0.1,
	"refuted":                       0.0,
	"refuted evidence":              0.0,
	"no known disease relationship": 0.0,
}

const noDiseaseRelationship = "no known disease relationship"

// genCCQualitySubmissions is the submission count at which the quantity
// component saturates; five independent submissions count as well-supported.
const genCCQualitySubmissions = 5.0

// WeightMapper converts categorical evidence classifications into normalized
// weights in [0,1]. It is the only place in the engine that inspects payload
// variants; everything downstream sees plain weights.
type WeightMapper struct {
	defaultWeight float64
}

// NewWeightMapper creates a mapper with the given fallback weight for
// unrecognized or missing classifications.
func NewWeightMapper(defaultWeight float64) *WeightMapper {
	if defaultWeight <= 0 || defaultWeight > 1 {
		defaultWeight = 0.3
	}
	return &WeightMapper{defaultWeight: defaultWeight}
}

// Weight returns the normalized weight for a classification payload. The
// second return value is false when the evidence explicitly asserts no
// disease relationship and must be excluded from aggregation entirely.
func (m *WeightMapper) Weight(payload schemas.EvidencePayload) (float64, bool) {
	switch p := payload.(type) {
	case schemas.ClinGenPayload:
		return m.clinGenWeight(p)
	case schemas.GenCCPayload:
		return m.genCCWeight(p), true
	default:
		// Other classification-bearing sources have no dedicated table.
		return 0.5, true
	}
}

// clinGenWeight maps the first classification in the submitted array, falling
// back to the legacy singular field.
func (m *WeightMapper) clinGenWeight(p schemas.ClinGenPayload) (float64, bool) {
	classification := p.Classification
	if len(p.Classifications) > 0 {
		classification = p.Classifications[0]
	}

	key := strings.ToLower(strings.TrimSpace(classification))
	if key == noDiseaseRelationship {
		return 0, false
	}
	if w, ok := clinGenWeights[key]; ok {
		return w, true
	}
	return m.defaultWeight, true
}

// genCCWeight applies the three-component composite over all submissions:
//
//	quality    (50%): sum(w^2)/sum(w), quadratic so high-confidence
//	                  submissions dominate without discarding weak ones
//	quantity   (30%): min(1, sqrt(n/5)), diminishing returns
//	confidence (20%): fraction classified Definitive or Strong
//
// Zero submissions fall back to the default weight.
func (m *WeightMapper) genCCWeight(p schemas.GenCCPayload) float64 {
	if len(p.Submissions) == 0 {
		return m.defaultWeight
	}

	var sumW, sumW2 float64
	var highConfidence int
	for _, sub := range p.Submissions {
		key := strings.ToLower(strings.TrimSpace(sub.Classification))
		w, ok := genCCWeights[key]
		if !ok {
			w = m.defaultWeight
		}
		sumW += w
		sumW2 += w * w
		if key == "definitive" || key == "strong" {
			highConfidence++
		}
	}

	var quality float64
	if sumW > 0 {
		quality = sumW2 / sumW
	}
	n := float64(len(p.Submissions))
	quantity := math.Min(1.0, math.Sqrt(n/genCCQualitySubmissions))
	confidence := float64(highConfidence) / n

	return 0.5*quality + 0.3*quantity + 0.2*confidence
}
