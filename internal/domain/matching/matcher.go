// Package matching implements the cross-schema equivalence predicate that
// decides whether a formulation key from the application corpus denotes the
// same pharmaceutical product as a differently-shaped listing from the
// product-code corpus.
//
// The two corpora disagree on field layout: one side carries a single
// free-text strength string per product, the other a numeric strength plus a
// unit string per ingredient.  Equivalence therefore reconciles three axes
// independently: dose form and route vocabulary, ingredient naming, and
// strength/unit arithmetic.  All predicates are pure functions; a failed
// comparison is the expected outcome for most cross-corpus pairs and is
// never an error.
package matching

import (
	"strings"

	"github.com/linkrx/formident/internal/domain/formulation"
)

// Record is one product listing from the second corpus.  Multi-ingredient
// products arrive with semicolon-joined field values kept in lockstep order,
// mirroring the formulation key layout: Strength holds one numeric token per
// ingredient and Unit one unit string per ingredient.
type Record struct {
	Ingredient string
	FormRoute  string
	Strength   string
	Unit       string
}

// Candidate is the left-hand side of the equivalence predicate: either a
// single formulation key or a whole equivalence class of them.
type Candidate interface {
	FormulationKeys() []formulation.Key
}

// Single adapts one formulation key to the Candidate interface.
type Single struct {
	Key formulation.Key
}

// FormulationKeys returns the wrapped key as a one-element slice.
func (s Single) FormulationKeys() []formulation.Key {
	return []formulation.Key{s.Key}
}

// Equivalent reports whether any formulation key of c denotes the same
// product as rec: the form/route vocabularies must overlap and every
// ingredient on both sides must pair up with a reconcilable strength.
func Equivalent(c Candidate, rec Record) bool {
	for _, k := range c.FormulationKeys() {
		if equivalentKey(k, rec) {
			return true
		}
	}
	return false
}

// FindEquivalents returns the subset of recs equivalent to c, preserving
// input order.
func FindEquivalents(c Candidate, recs []Record) []Record {
	var out []Record
	for _, rec := range recs {
		if Equivalent(c, rec) {
			out = append(out, rec)
		}
	}
	return out
}

func equivalentKey(k formulation.Key, rec Record) bool {
	if !EquivalentFormRoute(k.FormRoute, rec.FormRoute) {
		return false
	}
	return equivalentComposition(
		compMap(k.Ingredient, k.Strength),
		compMap(rec.Ingredient, rec.Strength, rec.Unit))
}

// component is one ingredient with its positionally aligned strength fields.
// fields[0] is the strength text; the product-code side adds fields[1], the
// unit string.
type component struct {
	ingredient string
	fields     []string
}

// compMap splits semicolon-joined lockstep fields into per-ingredient
// components.  Rows are truncated to the shortest field, so a malformed
// listing with a missing trailing unit degrades to fewer components rather
// than a panic.
func compMap(ingredient string, fields ...string) []component {
	ings := splitTrim(ingredient)
	cols := make([][]string, len(fields))
	n := len(ings)
	for i, f := range fields {
		cols[i] = splitTrim(f)
		if len(cols[i]) < n {
			n = len(cols[i])
		}
	}
	out := make([]component, n)
	for i := 0; i < n; i++ {
		c := component{ingredient: ings[i], fields: make([]string, len(cols))}
		for j := range cols {
			c.fields[j] = cols[j][i]
		}
		out[i] = c
	}
	return out
}

func splitTrim(s string) []string {
	parts := strings.Split(s, ";")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// equivalentComposition reconciles the ingredient/strength pairings of the
// two sides.  Every product-code ingredient must resolve, by prefix
// disambiguation, to a distinct ingredient in the key's pool with a
// reconcilable strength, and the pool must be fully consumed at the end.
// Duplicate ingredient names in the pool collapse to the last occurrence.
func equivalentComposition(keyComps, recComps []component) bool {
	pool := make(map[string]string, len(keyComps))
	for _, c := range keyComps {
		pool[c.ingredient] = c.fields[0]
	}

	for _, rc := range recComps {
		ing := matchIngredient(rc.ingredient, pool)
		if ing == "" {
			return false
		}
		strength, unit := rc.fields[0], ""
		if len(rc.fields) > 1 {
			unit = rc.fields[1]
		}

		// Tavaborole 5% topical solution is listed as 43.5 mg/mL on the
		// product-code side; accepted as a known data correction.
		if ing == "TAVABOROLE" && pool[ing] == "5%" && strength == "43.5" {
			delete(pool, ing)
			continue
		}

		keyStrength := pool[ing]
		delete(pool, ing)
		if !EquivalentStrength(keyStrength, strength, unit) {
			return false
		}
	}
	return len(pool) == 0
}
