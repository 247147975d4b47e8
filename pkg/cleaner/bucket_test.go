package cleaner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/David-Botos/survey-etl/pkg/config"
	"github.com/David-Botos/survey-etl/pkg/model"
)

func TestBucketer_ExperienceExample(t *testing.T) {
	b := NewBucketer(experienceBucket())

	input := []model.Cell{model.String("0-1"), model.String("5-10"), model.String("20+"), model.Null()}
	want := []string{"beginner(0-2)", "advanced(4-10)", "expert(10+)", "not specified"}

	for i, cell := range input {
		got, _ := b.Assign(cell)
		assert.Equal(t, want[i], got)
	}
}

func TestBucketer_DefaultRules(t *testing.T) {
	tc, err := config.DefaultTransformConfig()
	require.NoError(t, err)
	require.Len(t, tc.Buckets, 2)

	exp := NewBucketer(tc.Buckets[0])
	label, outcome := exp.Assign(model.String("30 +"))
	assert.Equal(t, "expert(10+)", label)
	assert.Equal(t, Matched, outcome)

	comp := NewBucketer(tc.Buckets[1])
	tests := map[string]string{
		"0-10,000":      "low(0-20k)",
		"40-50,000":     "medium(20-50k)",
		"90-100,000":    "high(50-100k)",
		"500,000+":      "very high(100k+)",
		"Not specified": "not specified",
		"I do not wish to disclose my approximate yearly compensation": "not specified",
	}
	for in, want := range tests {
		got, _ := comp.Assign(model.String(in))
		assert.Equal(t, want, got, in)
	}

	_, outcome = comp.Assign(model.String("I do not wish to disclose my approximate yearly compensation"))
	assert.Equal(t, MissingValue, outcome)
}

func TestBucketer_Outcomes(t *testing.T) {
	b := NewBucketer(experienceBucket())

	_, outcome := b.Assign(model.String("0-1"))
	assert.Equal(t, Matched, outcome)
	_, outcome = b.Assign(model.Null())
	assert.Equal(t, MissingValue, outcome)
	_, outcome = b.Assign(model.String("Not specified"))
	assert.Equal(t, MissingValue, outcome)
	label, outcome := b.Assign(model.String("0 - 1"))
	assert.Equal(t, Unmatched, outcome, "matching is exact")
	assert.Equal(t, "not specified", label)
}

func TestBucketer_TotalAndSingleLabel(t *testing.T) {
	b := NewBucketer(experienceBucket())
	labels := b.Labels()

	inputs := []model.Cell{
		model.Null(), model.String(""), model.String("0-1"), model.String("garbage"),
		model.String("30+"), model.String("Not specified"), model.String("3-4"),
	}
	for _, cell := range inputs {
		got, _ := b.Assign(cell)
		assert.NotEmpty(t, got)
		assert.Contains(t, labels, got)

		again, _ := b.Assign(cell)
		assert.Equal(t, got, again, "assignment is deterministic")
	}
}

func TestBucketer_FirstRuleWins(t *testing.T) {
	b := NewBucketer(config.BucketConfig{
		Name:     "B",
		Source:   "S",
		Fallback: "other",
		Rules: []config.BucketRule{
			{Label: "first", Values: []string{"x"}},
			{Label: "second", Values: []string{"x", "y"}},
		},
	})

	got, _ := b.Assign(model.String("x"))
	assert.Equal(t, "first", got)
	got, _ = b.Assign(model.String("y"))
	assert.Equal(t, "second", got)
	assert.Equal(t, []string{"first", "second", "other"}, b.Labels())
}

func TestBucketResult_UnmatchedValues(t *testing.T) {
	r := BucketResult{Unmatched: map[string]int{"b": 2, "a": 2, "c": 5}}
	assert.Equal(t, []ValueCount{{"c", 5}, {"a", 2}, {"b", 2}}, r.UnmatchedValues())
}

func TestBucketer_ExtraMissingMarkers(t *testing.T) {
	b := NewBucketer(experienceBucket(), "No especificado", "0-1")

	_, outcome := b.Assign(model.String("No especificado"))
	assert.Equal(t, MissingValue, outcome)

	label, outcome := b.Assign(model.String("0-1"))
	assert.Equal(t, "beginner(0-2)", label)
	assert.Equal(t, Matched, outcome, "rule values win over markers")
}
