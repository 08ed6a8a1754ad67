package matching

import "strings"

// matchIngredient resolves a product-code ingredient name against the pool
// of key-side ingredient names by prefix disambiguation: candidates are
// narrowed word by word until exactly one remains.  Zero survivors, or more
// than one after the query's words run out, is no match; the predicate never
// guesses between tied candidates.
//
// The query and a candidate need not be equal: "NALOXONE HYDROCHLORIDE
// DIHYDRATE" resolves to "NALOXONE HYDROCHLORIDE" once the first word is
// unique, which is how salt and hydrate suffixes differ across corpora.
func matchIngredient(ing string, pool map[string]string) string {
	words := strings.Split(ing, " ")
	candidates := make([][]string, 0, len(pool))
	for name := range pool {
		candidates = append(candidates, strings.Split(name, " "))
	}

	for i := range words {
		next := candidates[:0]
		for _, c := range candidates {
			if len(c) > i && c[i] == words[i] {
				next = append(next, c)
			}
		}
		candidates = next
		if len(candidates) == 1 {
			return strings.Join(candidates[0], " ")
		}
		if len(candidates) == 0 {
			return ""
		}
	}
	return ""
}
