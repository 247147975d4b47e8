package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTransformConfig(t *testing.T) {
	tc, err := DefaultTransformConfig()
	require.NoError(t, err)
	require.NoError(t, tc.Validate())

	assert.Equal(t, "Not specified", tc.TextSentinel)
	assert.Equal(t, []string{"Q1_OTHER_TEXT", "Q6_OTHER_TEXT", "Q7_OTHER_TEXT", "Q11_OTHER_TEXT"}, tc.LowercaseColumns)

	renames := tc.RenameMap()
	assert.Equal(t, "Years_Experience", renames["Q8"])
	assert.Equal(t, "Yearly_Compensation_Range", renames["Q9"])
	assert.Equal(t, "Survey_Duration_Seconds", renames["Time from Start to Finish (seconds)"])

	require.Len(t, tc.Buckets, 2)
	exp := tc.Buckets[0]
	assert.Equal(t, "Experience_Category", exp.Name)
	assert.Equal(t, "Years_Experience", exp.Source)
	assert.Equal(t, "not specified", exp.Fallback)
	require.Len(t, exp.Rules, 4)
	assert.Equal(t, "expert(10+)", exp.Rules[3].Label)
	assert.Contains(t, exp.Rules[3].Values, "30 +")

	comp := tc.Buckets[1]
	assert.Equal(t, "Yearly_Compensation_Range", comp.Source)
	assert.Contains(t, comp.MissingValues, "I do not wish to disclose my approximate yearly compensation")
}

func TestTransformConfig_ValidateRenames(t *testing.T) {
	tests := []struct {
		name    string
		rules   []RenameRule
		wantErr error
	}{
		{"duplicate key", []RenameRule{{"A", "X"}, {"A", "Y"}}, ErrDuplicateRenameKey},
		{"duplicate target", []RenameRule{{"A", "X"}, {"B", "X"}}, ErrDuplicateRenameTarget},
		{"chained", []RenameRule{{"A", "B"}, {"B", "C"}}, ErrChainedRename},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc, err := DefaultTransformConfig()
			require.NoError(t, err)
			tc.Rename = tt.rules
			assert.ErrorIs(t, tc.Validate(), tt.wantErr)
		})
	}
}

func TestTransformConfig_ValidateBuckets(t *testing.T) {
	valid := BucketConfig{
		Name:     "B",
		Source:   "S",
		Fallback: "other",
		Rules:    []BucketRule{{Label: "a", Values: []string{"1"}}},
	}

	tests := []struct {
		name   string
		mutate func(b *BucketConfig)
	}{
		{"no name", func(b *BucketConfig) { b.Name = "" }},
		{"no source", func(b *BucketConfig) { b.Source = "" }},
		{"no fallback", func(b *BucketConfig) { b.Fallback = "" }},
		{"no rules", func(b *BucketConfig) { b.Rules = nil }},
		{"empty label", func(b *BucketConfig) { b.Rules = []BucketRule{{Values: []string{"1"}}} }},
		{"no values", func(b *BucketConfig) { b.Rules = []BucketRule{{Label: "a"}} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc, err := DefaultTransformConfig()
			require.NoError(t, err)
			b := valid
			tt.mutate(&b)
			tc.Buckets = []BucketConfig{b}
			assert.ErrorIs(t, tc.Validate(), ErrInvalidBucket)
		})
	}

	tc, err := DefaultTransformConfig()
	require.NoError(t, err)
	tc.Buckets = []BucketConfig{valid, valid}
	assert.ErrorIs(t, tc.Validate(), ErrInvalidBucket)
}

func TestTransformConfig_EmptySentinel(t *testing.T) {
	tc, err := DefaultTransformConfig()
	require.NoError(t, err)
	tc.TextSentinel = "  "
	assert.ErrorIs(t, tc.Validate(), ErrEmptySentinel)
}

func TestLoadTransformConfig(t *testing.T) {
	path := createTempConfigFile(t, `
missing_threshold: 0.9
rename:
  - { from: Q1, to: Age }
buckets: []
`)

	tc, err := LoadTransformConfig(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.9, tc.MissingThreshold, 1e-9)
	assert.Equal(t, []RenameRule{{From: "Q1", To: "Age"}}, tc.Rename)
	assert.Empty(t, tc.Buckets)
	assert.Equal(t, "Not specified", tc.TextSentinel)

	_, err = LoadTransformConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrConfigNotFound)
}
