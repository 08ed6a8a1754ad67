package formulation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/linkrx/formident/pkg/errors"
)

var (
	// federalRegisterRe strips the "**Federal Register ..." annotations the
	// agency appends to some strength fields.
	federalRegisterRe = regexp.MustCompile(` \*\*Federal Register.*$`)

	// parenPairRe recognizes the "a;b (c;d)" layout where each ingredient's
	// strength carries a parenthesized concentration.
	parenPairRe = regexp.MustCompile(`^(.*;.*?)\s*\((.*;.*)\)`)
)

// quadStrengthRaw is the one known record whose strength field defeats every
// segmentation rule; its four per-ingredient strengths are substituted
// verbatim.  Discovered empirically in the 2014 release.
const quadStrengthRaw = "250.0MG;12.5MG;75.0MG;EQ 250MG BASE,N/A,N/A,N/A; " +
	"N/A,12.5MG,75MG,50MG"

var quadStrengthFixed = []string{"250MG", "12.5MG", "75MG", "50MG"}

// parseStrengths segments a raw strength field into expLen per-ingredient
// tokens.  The agency's strength formats vary release to release; the rules
// below were derived from the data and are tried in order:
//
//  1. the hard-coded correction row;
//  2. "a;b (c;d)" parenthesized pairs, recombined as "a (c)", "b (d)";
//  3. a plain semicolon split when it yields expLen tokens (or expLen is 1);
//  4. a comma transpose, for fields listing each component's strengths
//     comma-joined within semicolon groups;
//  5. block regrouping when the token count is a multiple of expLen.
//
// Any remaining shape is a fatal ErrCodeStrengthCardinality carrying the raw
// text, surfaced to the caller so the offending record can be reported.
func parseStrengths(text string, expLen int) ([]string, error) {
	text = federalRegisterRe.ReplaceAllString(text, "")

	if text == quadStrengthRaw {
		out := make([]string, len(quadStrengthFixed))
		copy(out, quadStrengthFixed)
		return out, nil
	}

	if m := parenPairRe.FindStringSubmatch(text); m != nil {
		bases := semiSplit(m[1])
		concs := semiSplit(m[2])
		n := len(bases)
		if len(concs) < n {
			n = len(concs)
		}
		out := make([]string, n)
		for i := 0; i < n; i++ {
			out[i] = fmt.Sprintf("%s (%s)", bases[i], concs[i])
		}
		return out, nil
	}

	elts := semiSplit(text)
	if len(elts) == expLen || expLen == 1 {
		return elts, nil
	}

	// Comma transpose: "1MG,2MG;3MG,4MG" for two ingredients means strengths
	// (1MG,3MG) and (2MG,4MG) — each semicolon group lists one value per
	// marketed presentation.
	if transposed := commaTranspose(elts); len(transposed) == expLen {
		return transposed, nil
	}

	if len(elts)%expLen == 0 {
		step := len(elts) / expLen
		var out []string
		for i := 0; i < len(elts); i += step {
			end := i + expLen
			if end > len(elts) {
				end = len(elts)
			}
			out = append(out, strings.Join(elts[i:end], ", "))
		}
		return out, nil
	}

	return nil, errors.Newf(errors.ErrCodeStrengthCardinality,
		"cannot segment strength text into %d tokens", expLen).
		WithDetail(fmt.Sprintf("strength=%q", text))
}

// commaTranspose splits each element on commas and transposes the resulting
// matrix, truncating to the shortest row, with the transposed rows re-joined
// by ", ".
func commaTranspose(elts []string) []string {
	rows := make([][]string, len(elts))
	minLen := -1
	for i, e := range elts {
		rows[i] = strings.Split(e, ",")
		if minLen < 0 || len(rows[i]) < minLen {
			minLen = len(rows[i])
		}
	}
	out := make([]string, 0, minLen)
	for c := 0; c < minLen; c++ {
		col := make([]string, len(rows))
		for r := range rows {
			col[r] = rows[r][c]
		}
		out = append(out, strings.Join(col, ", "))
	}
	return out
}
