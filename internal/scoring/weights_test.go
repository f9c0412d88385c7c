package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nephroseq/genevidence-cli/api/schemas"
)

func TestClinGenWeights(t *testing.T) {
	m := NewWeightMapper(0.3)

	testCases := []struct {
		name           string
		payload        schemas.ClinGenPayload
		expectedWeight float64
		expectedOK     bool
	}{
		{"definitive from array", schemas.ClinGenPayload{Classifications: []string{"Definitive"}}, 1.0, true},
		{"first array entry wins", schemas.ClinGenPayload{Classifications: []string{"Strong", "Definitive"}}, 0.8, true},
		{"legacy singular field", schemas.ClinGenPayload{Classification: "Moderate"}, 0.6, true},
		{"array preferred over legacy", schemas.ClinGenPayload{Classifications: []string{"Limited"}, Classification: "Definitive"}, 0.4, true},
		{"case insensitive", schemas.ClinGenPayload{Classification: "dIsPuTeD"}, 0.2, true},
		{"refuted", schemas.ClinGenPayload{Classification: "Refuted"}, 0.1, true},
		{"no disease relationship excluded", schemas.ClinGenPayload{Classification: "No Known Disease Relationship"}, 0, false},
		{"unrecognized falls back", schemas.ClinGenPayload{Classification: "Curated"}, 0.3, true},
		{"missing falls back", schemas.ClinGenPayload{}, 0.3, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w, ok := m.Weight(tc.payload)
			assert.Equal(t, tc.expectedOK, ok)
			assert.InDelta(t, tc.expectedWeight, w, 1e-12)
		})
	}
}

// TestClassificationMonotonicity verifies that clinically stronger
// classifications never map to lower weights.
func TestClassificationMonotonicity(t *testing.T) {
	order := []string{"definitive", "strong", "moderate", "limited", "disputed", "refuted"}

	for _, table := range []map[string]float64{clinGenWeights, genCCWeights} {
		prev := 2.0
		for _, class := range order {
			w, ok := table[class]
			require.True(t, ok, "classification %q missing from table", class)
			assert.LessOrEqual(t, w, prev, "weight for %q should not exceed the stronger class", class)
			prev = w
		}
	}
}

func TestGenCCCompositeWeight(t *testing.T) {
	m := NewWeightMapper(0.3)

	submissions := func(classes ...string) schemas.GenCCPayload {
		p := schemas.GenCCPayload{}
		for _, c := range classes {
			p.Submissions = append(p.Submissions, schemas.GenCCSubmission{Classification: c})
		}
		return p
	}

	t.Run("two definitive submissions", func(t *testing.T) {
		// Quality = 1.0, Quantity = sqrt(2/5), Confidence = 1.0.
		w, ok := m.Weight(submissions("Definitive", "Definitive"))
		require.True(t, ok)
		assert.InDelta(t, 0.8897, w, 0.0005)
	})

	t.Run("zero submissions falls back", func(t *testing.T) {
		w, ok := m.Weight(schemas.GenCCPayload{})
		require.True(t, ok)
		assert.InDelta(t, 0.3, w, 1e-12)
	})

	t.Run("supportive only", func(t *testing.T) {
		// Quality = 0.5, Quantity = sqrt(1/5), Confidence = 0.
		w, ok := m.Weight(submissions("Supportive"))
		require.True(t, ok)
		assert.InDelta(t, 0.5*0.5+0.3*0.4472135955, w, 1e-9)
	})

	t.Run("bounds hold for mixed submissions", func(t *testing.T) {
		mixes := [][]string{
			{"Definitive"},
			{"Refuted"},
			{"Limited", "Disputed", "Strong"},
			{"Definitive", "Definitive", "Definitive", "Definitive", "Definitive", "Definitive"},
			{"Moderate", "Supportive", "Limited", "no known disease relationship"},
		}
		for _, mix := range mixes {
			w, ok := m.Weight(submissions(mix...))
			require.True(t, ok)
			assert.GreaterOrEqual(t, w, 0.0, "mix %v", mix)
			assert.LessOrEqual(t, w, 1.0, "mix %v", mix)
		}
	})

	t.Run("quantity saturates at five submissions", func(t *testing.T) {
		five, _ := m.Weight(submissions("Definitive", "Definitive", "Definitive", "Definitive", "Definitive"))
		ten, _ := m.Weight(submissions("Definitive", "Definitive", "Definitive", "Definitive", "Definitive",
			"Definitive", "Definitive", "Definitive", "Definitive", "Definitive"))
		assert.InDelta(t, five, ten, 1e-12)
		assert.InDelta(t, 1.0, five, 1e-12)
	})
}

func TestOtherSourcesDefaultWeight(t *testing.T) {
	m := NewWeightMapper(0.3)
	w, ok := m.Weight(schemas.PanelAppPayload{})
	assert.True(t, ok)
	assert.InDelta(t, 0.5, w, 1e-12)
}
