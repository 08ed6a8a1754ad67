// Package formulation provides the canonical value identities for drug
// formulation records.  Based on the definition of pharmaceutical
// equivalence, a formulation is identified by its active ingredient(s), its
// dose form/route, and its strength; an agency application is identified by
// an application/product number pair.  Both identities are immutable value
// types with structural equality, usable as map keys.
package formulation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/linkrx/formident/pkg/errors"
)

// Key is the canonical identity of "active ingredient(s) + dose form/route +
// strength" for one agency record.  The ingredient list is sorted
// lexicographically so that permutations canonicalize to one key, with the
// strength tokens reordered in lockstep so each strength stays paired with
// its ingredient.
type Key struct {
	// Ingredient is the semicolon-joined, sorted active-ingredient list.
	Ingredient string

	// FormRoute is the semicolon-joined dose form then route, with the
	// source's "; " separators collapsed to ";".
	FormRoute string

	// Strength is the semicolon-joined strength tokens, in ingredient order.
	Strength string
}

// semiSplit splits a semicolon-joined agency field, absorbing the trailing
// whitespace the sources are inconsistent about.
func semiSplit(text string) []string {
	parts := strings.Split(text, ";")
	for i, p := range parts {
		if i > 0 {
			parts[i] = strings.TrimLeft(p, " \t")
		}
	}
	return parts
}

// NewKey derives a Key from the raw ingredient, form/route, and strength text
// of one agency product record.  The strength text is segmented into one
// token per ingredient (see parseStrengths); a record whose strength text
// cannot be segmented to match the ingredient count is rejected with
// ErrCodeStrengthCardinality and must be surfaced to the caller, never
// silently dropped.
func NewKey(ingredientText, formRouteText, strengthText string) (Key, error) {
	if strings.TrimSpace(ingredientText) == "" {
		return Key{}, errors.New(errors.ErrCodeKeyFieldEmpty, "ingredient text is empty").
			WithDetail(fmt.Sprintf("form_route=%q strength=%q", formRouteText, strengthText))
	}

	formRoute := strings.ReplaceAll(formRouteText, "; ", ";")
	ingredients := semiSplit(ingredientText)

	strengths, err := parseStrengths(strengthText, len(ingredients))
	if err != nil {
		return Key{}, err
	}

	// A single named ingredient with several strength tokens denotes the same
	// substance at each strength; replicate the name so the lists pair up.
	if len(ingredients) == 1 && len(strengths) > 1 {
		replicated := make([]string, len(strengths))
		for i := range replicated {
			replicated[i] = ingredients[0]
		}
		ingredients = replicated
	}
	if len(ingredients) != len(strengths) {
		return Key{}, errors.Newf(errors.ErrCodeStrengthCardinality,
			"%d ingredients but %d strengths", len(ingredients), len(strengths)).
			WithDetail(fmt.Sprintf("ingredient=%q strength=%q", ingredientText, strengthText))
	}

	// Canonicalize: sort ingredients lexicographically, carrying each
	// strength with its ingredient.
	type pair struct{ ing, str string }
	pairs := make([]pair, len(ingredients))
	for i := range ingredients {
		pairs[i] = pair{ingredients[i], strengths[i]}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].ing != pairs[j].ing {
			return pairs[i].ing < pairs[j].ing
		}
		return pairs[i].str < pairs[j].str
	})
	for i, p := range pairs {
		ingredients[i] = p.ing
		strengths[i] = p.str
	}

	return Key{
		Ingredient: strings.Join(ingredients, "; "),
		FormRoute:  formRoute,
		Strength:   strings.Join(strengths, "; "),
	}, nil
}

// Ingredients returns the individual ingredient names of the key.
func (k Key) Ingredients() []string {
	return semiSplit(k.Ingredient)
}

// Strengths returns the individual strength tokens of the key, paired by
// index with Ingredients.
func (k Key) Strengths() []string {
	return semiSplit(k.Strength)
}

// Less imposes a total structural ordering (field-wise string comparison),
// used for canonical serialization order.
func (k Key) Less(o Key) bool {
	if k.Ingredient != o.Ingredient {
		return k.Ingredient < o.Ingredient
	}
	if k.FormRoute != o.FormRoute {
		return k.FormRoute < o.FormRoute
	}
	return k.Strength < o.Strength
}

// IsZero reports whether the key is the zero value.
func (k Key) IsZero() bool {
	return k == Key{}
}

func (k Key) String() string {
	return fmt.Sprintf("Form<%s, %s, %s>", k.Ingredient, k.FormRoute, k.Strength)
}

// ApplicationKey is the identity of one agency application/product pair.
// Application numbers are stable across releases: an application number
// always refers to the same application over time, and the product number
// always identifies the same product within the application.
type ApplicationKey struct {
	ApplNo    string
	ProductNo string
}

// Less imposes a total structural ordering on application keys.
func (a ApplicationKey) Less(o ApplicationKey) bool {
	if a.ApplNo != o.ApplNo {
		return a.ApplNo < o.ApplNo
	}
	return a.ProductNo < o.ProductNo
}

// IsZero reports whether the key is the zero value.
func (a ApplicationKey) IsZero() bool {
	return a == ApplicationKey{}
}

func (a ApplicationKey) String() string {
	return fmt.Sprintf("App<%s.%s>", a.ApplNo, a.ProductNo)
}
