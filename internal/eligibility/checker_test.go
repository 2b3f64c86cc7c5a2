package eligibility

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeCriteria(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "criteria.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const testCriteria = `{
  "stateSOL": {
    "Texas": { "minorSOL": "14th birthday" },
    "New York": { "minorSOL": "10 years" },
    "Washington": { "minorSOL": "21st birthday" }
  },
  "globalExclusions": {
    "excludedStates": { "list": ["Louisiana"] }
  }
}`

func newTestChecker(t *testing.T) *Checker {
	t.Helper()
	return NewChecker(writeCriteria(t, testCriteria), zap.NewNop())
}

func TestParseSOLAge(t *testing.T) {
	cases := []struct {
		input    string
		expected float64
		ok       bool
	}{
		{"21st birthday", 21, true},
		{"14th birthday", 14, true},
		{"2nd birthday", 2, true},
		{"10 years", 10, true},
		{"1 year", 1, true},
		{"7", 7, true},
		{"", 0, false},
		{"until adulthood", 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			limit, ok := ParseSOLAge(tc.input)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.expected, limit)
			}
		})
	}
}

func TestWithinSOL(t *testing.T) {
	assert.True(t, WithinSOL(13.9, "14th birthday"))
	assert.False(t, WithinSOL(14, "14th birthday"))
	assert.False(t, WithinSOL(5, "unparseable"))
}

func TestCheckStateExclusion(t *testing.T) {
	c := newTestChecker(t)

	excluded, reason := c.CheckStateExclusion("Louisiana")
	assert.True(t, excluded)
	assert.Contains(t, reason, "Louisiana")

	excluded, _ = c.CheckStateExclusion("Texas")
	assert.False(t, excluded)
}

func TestCheckAgeEligibility(t *testing.T) {
	c := newTestChecker(t)

	ok, _ := c.CheckAgeEligibility(5, "Texas")
	assert.True(t, ok)

	ok, reason := c.CheckAgeEligibility(15, "Texas")
	assert.False(t, ok)
	assert.Contains(t, reason, "Texas")

	// The hard ceiling applies even without a state rule.
	ok, _ = c.CheckAgeEligibility(21, "")
	assert.False(t, ok)

	// Unknown states only get the ceiling.
	ok, _ = c.CheckAgeEligibility(18, "Nowhere")
	assert.True(t, ok)
}

func TestCheckEligibility(t *testing.T) {
	c := newTestChecker(t)

	age := 5.0
	state := "Louisiana"
	ok, reason := c.CheckEligibility(&age, &state)
	assert.False(t, ok)
	assert.Contains(t, reason, "Louisiana")

	state = "New York"
	ok, _ = c.CheckEligibility(&age, &state)
	assert.True(t, ok)

	// Age alone.
	tooOld := 22.0
	ok, _ = c.CheckEligibility(&tooOld, nil)
	assert.False(t, ok)

	// Nothing known yet never disqualifies.
	ok, _ = c.CheckEligibility(nil, nil)
	assert.True(t, ok)
}

func TestCheckerDegradesOnMissingFile(t *testing.T) {
	c := NewChecker(filepath.Join(t.TempDir(), "absent.json"), zap.NewNop())
	assert.False(t, c.Loaded())

	age := 5.0
	state := "Louisiana"
	ok, _ := c.CheckEligibility(&age, &state)
	assert.True(t, ok)

	// The ceiling still holds with empty rules.
	tooOld := 21.0
	ok, _ = c.CheckEligibility(&tooOld, &state)
	assert.False(t, ok)
}

func TestCheckerDegradesOnMalformedFile(t *testing.T) {
	c := NewChecker(writeCriteria(t, "{not json"), zap.NewNop())
	assert.False(t, c.Loaded())
}

func TestNormalizeAge(t *testing.T) {
	assert.Equal(t, 5.5, NormalizeAge(5.54))
	assert.Equal(t, 0.0, NormalizeAge(-1))
	assert.Equal(t, 25.0, NormalizeAge(30))
	assert.Equal(t, 5.9, NormalizeAge(5.9))
}

func TestValidateAgeRange(t *testing.T) {
	assert.True(t, ValidateAgeRange(0))
	assert.True(t, ValidateAgeRange(25))
	assert.False(t, ValidateAgeRange(-0.1))
	assert.False(t, ValidateAgeRange(25.1))
}
