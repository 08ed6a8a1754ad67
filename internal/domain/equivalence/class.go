// Package equivalence implements the incremental dual-key clustering
// structure that partitions formulation records into equivalence classes.
//
// Agency releases are not consistent in identifying drug formulations, so
// the partition is built from two assumptions:
//
//   - Within a single release, records with the same formulation key are
//     pharmaceutical equivalents.
//   - Across releases, application/product pairs are stable, and identical
//     formulation keys denote equivalent products.
//
// Each record therefore carries two identity keys, either of which may
// already assign it to an existing class; a record whose two keys resolve to
// two different classes triggers a merge.
package equivalence

import (
	"fmt"
	"sort"

	"github.com/linkrx/formident/internal/domain/formulation"
)

// ClassID is the stable non-negative identifier of an equivalence class.
// IDs are allocated monotonically at class creation and are never reused,
// even after the class is absorbed by a merge.
type ClassID int

// Class is a set of formulation keys and a set of application keys believed
// to denote the same real-world product.  Classes are owned by a Registry
// and mutated only through it.
type Class struct {
	id       ClassID
	formKeys map[formulation.Key]struct{}
	appKeys  map[formulation.ApplicationKey]struct{}
}

func newClass(id ClassID) *Class {
	return &Class{
		id:       id,
		formKeys: make(map[formulation.Key]struct{}),
		appKeys:  make(map[formulation.ApplicationKey]struct{}),
	}
}

// ID returns the class's stable identifier.
func (c *Class) ID() ClassID { return c.id }

// HasFormulation reports whether k is a member of the class.
func (c *Class) HasFormulation(k formulation.Key) bool {
	_, ok := c.formKeys[k]
	return ok
}

// HasApplication reports whether a is a member of the class.
func (c *Class) HasApplication(a formulation.ApplicationKey) bool {
	_, ok := c.appKeys[a]
	return ok
}

// FormulationKeys returns the class's formulation keys in canonical
// (structural) order.
func (c *Class) FormulationKeys() []formulation.Key {
	out := make([]formulation.Key, 0, len(c.formKeys))
	for k := range c.formKeys {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// ApplicationKeys returns the class's application keys in canonical order.
func (c *Class) ApplicationKeys() []formulation.ApplicationKey {
	out := make([]formulation.ApplicationKey, 0, len(c.appKeys))
	for a := range c.appKeys {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Size returns the membership counts (formulation keys, application keys).
func (c *Class) Size() (int, int) {
	return len(c.formKeys), len(c.appKeys)
}

// Representative returns the structurally smallest formulation key of the
// class, for use in user displays and reports.
func (c *Class) Representative() formulation.Key {
	var best formulation.Key
	first := true
	for k := range c.formKeys {
		if first || k.Less(best) {
			best = k
			first = false
		}
	}
	return best
}

func (c *Class) String() string {
	rep := c.Representative()
	return fmt.Sprintf("Class<%d: %s, %s> (%d form, %d app)",
		c.id, rep.Ingredient, rep.Strength, len(c.formKeys), len(c.appKeys))
}
