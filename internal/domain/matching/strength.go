package matching

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const numPattern = `(?:\d*\.)?\d+`

var (
	numRe = regexp.MustCompile(numPattern)

	// ratioRe captures an "X ... / Y" ratio anchored at the start of a
	// strength text; the greedy middle takes the last denominator, so
	// "300 UNITS/3ML" yields 300/3.
	ratioRe = regexp.MustCompile(`^(` + numPattern + `).*/(` + numPattern + `)`)
)

// isClose reports |a-b| <= rel * max(|a|, |b|).
func isClose(a, b, rel float64) bool {
	return math.Abs(a-b) <= rel*math.Max(math.Abs(a), math.Abs(b))
}

// scanNumbers extracts the number tokens of a strength text, skipping
// denominators: a number directly preceded by '/' is not a candidate, but
// scanning resumes one byte later rather than past it.
func scanNumbers(s string) []string {
	var out []string
	pos := 0
	for pos < len(s) {
		loc := numRe.FindStringIndex(s[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		if start > 0 && s[start-1] == '/' {
			pos = start + 1
			continue
		}
		out = append(out, s[start:end])
		pos = end
	}
	return out
}

// EquivalentStrength reports whether a key-side free-text strength denotes
// the same dose as a product-code numeric strength with its unit string.
//
// The product-code unit may embed a denominator ("mg/5", "ug/.137mL"); the
// numeric strength divided by that denominator gives the concentration the
// key side usually quotes.  Each number in the key text is then compared
// against the raw number and the concentration, directly and through the
// unit-bridging conversions: grams against a microgram/milligram scale
// (x1000), percentages against a mg/mL reading (x10), and gram-per-unit
// strengths scaled down (/1000).  As a last resort an explicit "X/Y" ratio
// in the key text is compared against the concentration.
func EquivalentStrength(keyStrength, recStrength, recUnit string) bool {
	recNum, err := strconv.ParseFloat(recStrength, 64)
	if err != nil {
		return false
	}
	recRatio := recNum
	if denom := numRe.FindString(recUnit); denom != "" {
		d, _ := strconv.ParseFloat(denom, 64)
		recRatio = recNum / d
	}

	gramScale := strings.Contains(keyStrength, "GM") || strings.Contains(recUnit, "ug")
	percent := strings.Contains(keyStrength, "%")
	perGram := strings.HasPrefix(recUnit, "g/")

	for _, tok := range scanNumbers(keyStrength) {
		if tok == recStrength {
			return true
		}
		num, _ := strconv.ParseFloat(tok, 64)
		if isClose(num, recNum, 1e-9) {
			return true
		}
		if num == recRatio {
			return true
		}
		if gramScale {
			if isClose(num*1000, recRatio, 1e-4) || isClose(num*1000, recNum, 1e-4) {
				return true
			}
		}
		if perGram && isClose(num/1000, recNum, 1e-4) {
			return true
		}
		if percent {
			// Percent strengths are typically mg/mL in disguise: divide by
			// 100 and scale grams to milligrams.
			if isClose(num*10, recRatio, 1e-4) || isClose(num*10, recNum, 1e-4) {
				return true
			}
		}
	}

	if m := ratioRe.FindStringSubmatch(keyStrength); m != nil {
		a, _ := strconv.ParseFloat(m[1], 64)
		b, _ := strconv.ParseFloat(m[2], 64)
		if isClose(a/b, recRatio, 1e-4) {
			return true
		}
	}
	return false
}
