package eligibility

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"regexp"
	"strconv"

	"go.uber.org/zap"
)

// Rules is the legal criteria document loaded at startup.
type Rules struct {
	StateSOL         map[string]StateRule `json:"stateSOL"`
	GlobalExclusions GlobalExclusions     `json:"globalExclusions"`
}

// StateRule carries the per-state statute of limitations for minors.
type StateRule struct {
	MinorSOL string `json:"minorSOL"`
}

type GlobalExclusions struct {
	ExcludedStates ExcludedStates `json:"excludedStates"`
}

type ExcludedStates struct {
	List []string `json:"list"`
}

// Checker evaluates age and state eligibility against loaded criteria.
// A missing or malformed criteria file degrades to empty rules, so only
// the hard age ceiling still applies.
type Checker struct {
	rules      Rules
	loaded     bool
	sourcePath string
	logger     *zap.Logger
}

var (
	birthdayRe = regexp.MustCompile(`(\d+)(?:st|nd|rd|th)\s*birthday`)
	yearsRe    = regexp.MustCompile(`(\d+)\s*years?`)
	numberRe   = regexp.MustCompile(`(\d+)`)
)

// NewChecker loads criteria from path. Load failures are logged, not fatal.
func NewChecker(path string, logger *zap.Logger) *Checker {
	c := &Checker{
		rules:      Rules{StateSOL: map[string]StateRule{}},
		sourcePath: path,
		logger:     logger,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("criteria file not readable", zap.String("path", path), zap.Error(err))
		return c
	}
	var rules Rules
	if err := json.Unmarshal(data, &rules); err != nil {
		logger.Error("criteria file malformed", zap.String("path", path), zap.Error(err))
		return c
	}
	if rules.StateSOL == nil {
		rules.StateSOL = map[string]StateRule{}
	}
	c.rules = rules
	c.loaded = true
	logger.Info("legal criteria loaded", zap.String("path", path), zap.Int("states", len(rules.StateSOL)))
	return c
}

// Loaded reports whether the criteria file parsed successfully.
func (c *Checker) Loaded() bool {
	return c.loaded
}

// CheckStateExclusion reports whether a state is on the exclusion list,
// with a user-facing reason when it is.
func (c *Checker) CheckStateExclusion(state string) (bool, string) {
	if state == "" {
		return false, ""
	}
	for _, excluded := range c.rules.GlobalExclusions.ExcludedStates.List {
		if excluded == state {
			c.logger.Info("state excluded", zap.String("state", state))
			return true, fmt.Sprintf("We apologize, but we are currently not accepting cases from %s.", state)
		}
	}
	return false, ""
}

// ParseSOLAge converts a statute string ("21st birthday", "7 years", "10")
// to a numeric age limit. Unparseable strings return false.
func ParseSOLAge(sol string) (float64, bool) {
	if sol == "" {
		return 0, false
	}
	for _, re := range []*regexp.Regexp{birthdayRe, yearsRe, numberRe} {
		if m := re.FindStringSubmatch(sol); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				return v, true
			}
		}
	}
	return 0, false
}

// WithinSOL reports whether an age falls under the statute limit. An
// unparseable statute string fails closed.
func WithinSOL(age float64, sol string) bool {
	limit, ok := ParseSOLAge(sol)
	if !ok {
		return false
	}
	return age < limit
}

// CheckAgeEligibility applies the hard age ceiling and the state statute
// when a state is known.
func (c *Checker) CheckAgeEligibility(age float64, state string) (bool, string) {
	if age >= 21 {
		return false, "We apologize, but based on your child's age, we cannot proceed with your case."
	}
	if state != "" {
		if rule, ok := c.rules.StateSOL[state]; ok && rule.MinorSOL != "" {
			if !WithinSOL(age, rule.MinorSOL) {
				return false, fmt.Sprintf("We apologize, but based on your child's age and %s's requirements, we cannot proceed with your case.", state)
			}
		}
	}
	return true, ""
}

// CheckEligibility combines the exclusion list, the age ceiling and the
// state statute. Either input may be missing; unknown facts never
// disqualify on their own.
func (c *Checker) CheckEligibility(age *float64, state *string) (bool, string) {
	if age != nil && state != nil {
		if excluded, reason := c.CheckStateExclusion(*state); excluded {
			return false, reason
		}
		return c.CheckAgeEligibility(*age, *state)
	}
	if age != nil {
		return c.CheckAgeEligibility(*age, "")
	}
	return true, ""
}

// StateSOL returns the statute string for a state, if known.
func (c *Checker) StateSOL(state string) (string, bool) {
	rule, ok := c.rules.StateSOL[state]
	if !ok {
		return "", false
	}
	return rule.MinorSOL, true
}

// ValidateAgeRange reports whether an age is plausible for an intake.
func ValidateAgeRange(age float64) bool {
	return age >= 0 && age <= 25
}

// NormalizeAge rounds to one decimal and clamps to the valid range.
func NormalizeAge(age float64) float64 {
	age = math.Round(age*10) / 10
	if age < 0 {
		return 0
	}
	if age > 25 {
		return 25
	}
	return age
}
