package nlu

import (
	"regexp"
	"strconv"
	"strings"
)

var textToNum = map[string]float64{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4,
	"five": 5, "six": 6, "seven": 7, "eight": 8, "nine": 9,
	"ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13,
	"fourteen": 14, "fifteen": 15, "sixteen": 16, "seventeen": 17,
	"eighteen": 18, "nineteen": 19, "twenty": 20, "thirty": 30,
	"forty": 40, "fifty": 50, "sixty": 60, "seventy": 70,
	"eighty": 80, "ninety": 90,
}

var stateAbbreviations = map[string]string{
	"AL": "Alabama", "AK": "Alaska", "AZ": "Arizona", "AR": "Arkansas",
	"CA": "California", "CO": "Colorado", "CT": "Connecticut", "DE": "Delaware",
	"FL": "Florida", "GA": "Georgia", "HI": "Hawaii", "ID": "Idaho",
	"IL": "Illinois", "IN": "Indiana", "IA": "Iowa", "KS": "Kansas",
	"KY": "Kentucky", "LA": "Louisiana", "ME": "Maine", "MD": "Maryland",
	"MA": "Massachusetts", "MI": "Michigan", "MN": "Minnesota", "MS": "Mississippi",
	"MO": "Missouri", "MT": "Montana", "NE": "Nebraska", "NV": "Nevada",
	"NH": "New Hampshire", "NJ": "New Jersey", "NM": "New Mexico", "NY": "New York",
	"NC": "North Carolina", "ND": "North Dakota", "OH": "Ohio", "OK": "Oklahoma",
	"OR": "Oregon", "PA": "Pennsylvania", "RI": "Rhode Island", "SC": "South Carolina",
	"SD": "South Dakota", "TN": "Tennessee", "TX": "Texas", "UT": "Utah",
	"VT": "Vermont", "VA": "Virginia", "WA": "Washington", "WV": "West Virginia",
	"WI": "Wisconsin", "WY": "Wyoming", "DC": "District of Columbia",
}

var (
	monthsOldRe = regexp.MustCompile(`(\d+)\s*(?:months?|mos?)\s*old`)
	almostRe    = regexp.MustCompile(`almost\s*(\d+)`)

	agePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:year|yr|y)s?\s*old`),
		regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:year|yr|y)s?`),
		regexp.MustCompile(`(?:is|turned|age)\s*(\d+(?:\.\d+)?)`),
		regexp.MustCompile(`^(\d+(?:\.\d+)?)$`),
		regexp.MustCompile(`just turned\s*(\d+)`),
		regexp.MustCompile(`about to turn\s*(\d+)`),
	}

	textAgeRe = regexp.MustCompile(`\b(` + strings.Join(textNumKeys(), "|") + `)\b`)
)

func textNumKeys() []string {
	keys := make([]string, 0, len(textToNum))
	for k := range textToNum {
		keys = append(keys, k)
	}
	return keys
}

var fractionModifiers = []struct {
	phrase   string
	modifier float64
}{
	{"and a half", 0.5}, {"and 1/2", 0.5},
	{"and a quarter", 0.25}, {"and 1/4", 0.25},
	{"and three quarters", 0.75}, {"and 3/4", 0.75},
}

func parseAgePatterns(text string) *float64 {
	input := strings.ToLower(strings.TrimSpace(text))

	if m := monthsOldRe.FindStringSubmatch(input); m != nil {
		if months, err := strconv.ParseFloat(m[1], 64); err == nil {
			age := roundTenth(months / 12.0)
			return &age
		}
	}

	// "almost 6" reads as 5.9, not 6.
	if m := almostRe.FindStringSubmatch(input); m != nil {
		if age, err := strconv.ParseFloat(m[1], 64); err == nil {
			age -= 0.1
			return &age
		}
	}

	for _, fm := range fractionModifiers {
		if !strings.Contains(input, fm.phrase) {
			continue
		}
		re := regexp.MustCompile(`(\d+)\s*` + regexp.QuoteMeta(fm.phrase))
		if m := re.FindStringSubmatch(input); m != nil {
			if base, err := strconv.ParseFloat(m[1], 64); err == nil {
				age := base + fm.modifier
				return &age
			}
		}
	}

	for _, re := range agePatterns {
		m := re.FindStringSubmatch(input)
		if m == nil {
			continue
		}
		age, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		if age >= 0 && age <= 25 {
			return &age
		}
	}

	if m := textAgeRe.FindStringSubmatch(input); m != nil {
		if v, ok := textToNum[m[1]]; ok && v <= 25 {
			return &v
		}
	}

	return nil
}

var (
	weeksPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(\d+)\s*(?:weeks|week|wks|wk)`),
		regexp.MustCompile(`(\d+)\s*w\b`),
	}
	fullTermRe = regexp.MustCompile(`(?:full|term|full term|full-term)\b`)
)

var difficultIndicators = []string{
	"difficult", "not easy", "hard", "complications", "emergency",
	"c-section", "csection", "c section", "cesarean", "forceps",
	"vacuum", "distress", "oxygen", "resuscitate", "nicu",
	"intensive care", "problem", "complication", "issue",
	"prolonged", "stuck", "trauma", "injury", "monitor", "fetal",
	"induced", "induction", "premature", "preemie", "breech",
}

func parsePregnancyPatterns(text string) PregnancyDetails {
	lower := strings.ToLower(text)

	var weeks *int
	for _, re := range weeksPatterns {
		if m := re.FindStringSubmatch(lower); m != nil {
			if w, err := strconv.Atoi(m[1]); err == nil {
				weeks = &w
				break
			}
		}
	}

	// Full term is defined as 40 weeks.
	if weeks == nil && fullTermRe.MatchString(lower) {
		fullTerm := 40
		weeks = &fullTerm
	}

	return PregnancyDetails{
		Weeks:             weeks,
		DifficultDelivery: containsAny(lower, difficultIndicators),
	}
}

var (
	quickYes = []string{"yes", "yeah", "yep", "yup", "sure", "definitely", "absolutely", "correct"}
	quickNo  = []string{"no", "nope", "not", "never", "negative"}

	normalDevelopmentIndicators = []string{
		"no delays", "meeting milestones", "on track", "normal development",
		"no major delays", "everything seems normal", "developing normally",
		"no issues", "no problems", "no concerns", "normal", "typical",
	}

	coolingIndicators = []string{"cooling", "hypothermia", "hie therapy", "head cool", "cooling blanket"}
	coolingNegative   = []string{"no cooling", "didn't receive cooling", "without cooling", "no hypothermia"}

	scanIndicators = []string{"mri", "brain scan", "head scan", "cat scan", "ct scan", "ultrasound"}
	scanNegative   = []string{"no scan", "didn't have scan", "no mri", "without scan", "no scans"}

	positivePhrases = []string{
		"i do", "we did", "that is right", "that is correct",
		"that's right", "that's correct", "had to", "did have",
		"we had", "they did", "doctor", "received", "cooling", "blanket",
		"mri", "brain scan", "scan", "behind", "delayed", "delay", "missing",
		"not meeting", "therapy", "treatment", "cool", "attorney", "spoke", "spoken",
	}

	uncertaintyPhrases = []string{"i think", "maybe", "possibly", "probably", "might have", "could have", "not sure"}
	negativeIndicators = []string{"no", "not", "never", "don't", "didn't", "doesn't", "don't think"}
)

func parseYesNoPatterns(text, questionContext string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	ctxLower := strings.ToLower(questionContext)

	if strings.Contains(ctxLower, "cooling") || strings.Contains(ctxLower, "hie therapy") {
		if containsAny(lower, coolingIndicators) {
			return !containsAny(lower, coolingNegative)
		}
	}

	if strings.Contains(ctxLower, "brain scan") || strings.Contains(ctxLower, "mri") {
		if containsAny(lower, scanIndicators) {
			return !containsAny(lower, scanNegative)
		}
	}

	if containsAny(lower, positivePhrases) {
		return true
	}

	if containsAny(lower, uncertaintyPhrases) {
		return !containsAny(lower, negativeIndicators)
	}

	return false
}

var (
	nicuDurationRe = regexp.MustCompile(`(?:spent|stayed|was in)(?:\s+\w+)?\s+(\d+)\s+(days?|weeks?|months?)\s+(?:in|at)\s+(?:the\s+)?(?:nicu|intensive care)`)
	monthDurRe     = regexp.MustCompile(`(\d+)\s*(?:months?|mos?)`)
	weekDurRe      = regexp.MustCompile(`(\d+)\s*(?:weeks?|wks?)`)
	dayDurRe       = regexp.MustCompile(`(\d+)\s*(?:days?|d)\b`)
	bareNumberRe   = regexp.MustCompile(`\b(\d+)\b`)

	durationPhrases = []struct {
		re   *regexp.Regexp
		days int
	}{
		{regexp.MustCompile(`\bcouple\s+(?:of\s+)?days?\b`), 2},
		{regexp.MustCompile(`\bfew\s+(?:of\s+)?days?\b`), 3},
		{regexp.MustCompile(`\bcouple\s+(?:of\s+)?weeks?\b`), 14},
		{regexp.MustCompile(`\bfew\s+(?:of\s+)?weeks?\b`), 21},
		{regexp.MustCompile(`\babout\s+a\s+week\b`), 7},
		{regexp.MustCompile(`\bweek\s+and\s+(?:a\s+)?half\b`), 10},
		{regexp.MustCompile(`\bcouple\s+(?:of\s+)?months?\b`), 60},
		{regexp.MustCompile(`\bfew\s+(?:of\s+)?months?\b`), 90},
	}
)

func parseDurationPatterns(text string) int {
	lower := strings.ToLower(text)

	if m := nicuDurationRe.FindStringSubmatch(lower); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			switch {
			case strings.HasPrefix(m[2], "week"):
				return n * 7
			case strings.HasPrefix(m[2], "month"):
				return n * 30
			default:
				return n
			}
		}
	}

	total := 0
	if m := monthDurRe.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			total += n * 30
		}
	}
	if m := weekDurRe.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			total += n * 7
		}
	}
	if m := dayDurRe.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			total += n
		}
	}
	if total > 0 {
		return total
	}

	if m := bareNumberRe.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 1 && n <= 365 {
			return n
		}
	}

	for _, phrase := range durationPhrases {
		if phrase.re.MatchString(lower) {
			return phrase.days
		}
	}

	return 0
}

func parseStatePatterns(text string) string {
	for abbrev, fullName := range stateAbbreviations {
		re := regexp.MustCompile(`\b` + abbrev + `\b`)
		if re.MatchString(text) {
			return fullName
		}
	}

	lower := strings.ToLower(text)
	for _, fullName := range stateAbbreviations {
		if containsWord(lower, strings.ToLower(fullName)) {
			return fullName
		}
	}
	return ""
}

func containsWord(haystack, needle string) bool {
	idx := strings.Index(haystack, needle)
	if idx < 0 {
		return false
	}
	before := idx == 0 || !isWordChar(haystack[idx-1])
	afterIdx := idx + len(needle)
	after := afterIdx >= len(haystack) || !isWordChar(haystack[afterIdx])
	return before && after
}

func isWordChar(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func roundTenth(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
