package matching

import "regexp"

// formRouteSynonyms folds the two corpora's dose form and route vocabularies
// onto shared tokens before set intersection.
var formRouteSynonyms = map[string]string{
	"IV":          "INJECTION",
	"INTRAVENOUS": "INJECTION",
	"INJECTABLE":  "INJECTION",
	"SC":          "SUBCUTANEOUS",
	"PELLETS":     "PELLET",
	"INHALANT":    "INHALATION",
	"CAPSULE":     "TABLET",
	"FILM":        "PATCH",
	"LIQUID":      "SOLUTION",
}

var wordRe = regexp.MustCompile(`\w+`)

type wordSet map[string]struct{}

func (s wordSet) has(w string) bool {
	_, ok := s[w]
	return ok
}

func (s wordSet) intersects(o wordSet) bool {
	for w := range s {
		if o.has(w) {
			return true
		}
	}
	return false
}

// formRouteWords tokenizes a form or route text into its normalized word
// set.
func formRouteWords(text string) wordSet {
	out := make(wordSet)
	for _, w := range wordRe.FindAllString(text, -1) {
		if canon, ok := formRouteSynonyms[w]; ok {
			w = canon
		}
		out[w] = struct{}{}
	}
	return out
}

// splitFormRoute splits "FORM;ROUTE" at the first semicolon.  A text without
// a semicolon yields an empty route.
func splitFormRoute(text string) (string, string) {
	for i := 0; i < len(text); i++ {
		if text[i] == ';' {
			return text[:i], text[i+1:]
		}
	}
	return text, ""
}

// EquivalentFormRoute reports whether the two form/route texts describe a
// compatible dose form and administration route.
//
// Injectables and inhalants are labeled inconsistently across corpora, with
// the administration term appearing sometimes in the form and sometimes in
// the route field, so those two terms match across the fields.  Everything
// else requires overlap in both the route words and the form words.
func EquivalentFormRoute(keyFR, recFR string) bool {
	kf, kr := splitFormRoute(keyFR)
	rf, rr := splitFormRoute(recFR)

	keyForm, keyRoute := formRouteWords(kf), formRouteWords(kr)
	recForm, recRoute := formRouteWords(rf), formRouteWords(rr)

	if keyRoute.has("INJECTION") && recRoute.has("INJECTION") {
		return true
	}
	if keyRoute.has("INJECTION") && recForm.has("INJECTION") {
		return true
	}
	if keyRoute.has("INHALATION") && recForm.has("INHALATION") {
		return true
	}
	if !keyRoute.intersects(recRoute) {
		return false
	}
	if !keyForm.intersects(recForm) {
		return false
	}
	return true
}
