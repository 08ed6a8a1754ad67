package equivalence

import (
	"github.com/linkrx/formident/internal/domain/formulation"
	"github.com/linkrx/formident/pkg/errors"
)

// Registry owns all equivalence classes and both key-to-class indexes.  It is
// constructed once per batch run and passed explicitly to ingestion and query
// call sites; there is no ambient global state.
//
// Classes live in an arena indexed by ClassID.  Merging rewrites the index
// entries of the absorbed class's keys and clears the absorbed arena slot, so
// id stability costs nothing and absorbed ids are never reallocated.
//
// Callers must serialize Ingest calls.  After Freeze, lookups and iteration
// are safe for concurrent readers.
type Registry struct {
	arena     []*Class // indexed by ClassID; nil slots are absorbed classes
	formIndex map[formulation.Key]ClassID
	appIndex  map[formulation.ApplicationKey]ClassID
	live      int
	frozen    bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		formIndex: make(map[formulation.Key]ClassID),
		appIndex:  make(map[formulation.ApplicationKey]ClassID),
	}
}

// Len returns the number of live classes.
func (r *Registry) Len() int { return r.live }

// Frozen reports whether the registry has been frozen.
func (r *Registry) Frozen() bool { return r.frozen }

// Freeze marks the end of ingestion.  Subsequent Ingest calls fail with
// ErrCodeRegistryFrozen; queries become safe for concurrent readers.
func (r *Registry) Freeze() { r.frozen = true }

// allocate creates a new live class with the next id.
func (r *Registry) allocate() *Class {
	c := newClass(ClassID(len(r.arena)))
	r.arena = append(r.arena, c)
	r.live++
	return c
}

// addFormKey registers k as a member of c.  A key already claimed by a
// different class is a data-integrity violation: it means an upstream record
// cluster disagrees with itself, which must abort the run rather than be
// silently resolved.
func (r *Registry) addFormKey(c *Class, k formulation.Key) error {
	if owner, ok := r.formIndex[k]; ok && owner != c.id {
		return errors.New(errors.ErrCodeRegistryIntegrity,
			"formulation key already claimed by another class").
			WithDetail(k.String())
	}
	r.formIndex[k] = c.id
	c.formKeys[k] = struct{}{}
	return nil
}

// addAppKey registers a as a member of c, with the same integrity rule as
// addFormKey.
func (r *Registry) addAppKey(c *Class, a formulation.ApplicationKey) error {
	if owner, ok := r.appIndex[a]; ok && owner != c.id {
		return errors.New(errors.ErrCodeRegistryIntegrity,
			"application key already claimed by another class").
			WithDetail(a.String())
	}
	r.appIndex[a] = c.id
	c.appKeys[a] = struct{}{}
	return nil
}

// append adds one record's key pair to c.  At least one of the two keys must
// already be known to c; anything else is an integrity violation because
// Ingest routes records to classes by exactly that rule.
func (r *Registry) append(c *Class, fk formulation.Key, ak formulation.ApplicationKey) error {
	switch {
	case c.HasApplication(ak):
		if c.HasFormulation(fk) {
			return nil
		}
		return r.addFormKey(c, fk)
	case c.HasFormulation(fk):
		return r.addAppKey(c, ak)
	default:
		return errors.New(errors.ErrCodeRegistryIntegrity,
			"neither formulation nor application key matched the class").
			WithDetail(fk.String() + " " + ak.String())
	}
}

// merge absorbs src into dst.  dst keeps its id and takes over all of src's
// keys and their index entries; src ceases to exist (its arena slot is
// cleared, its id retired forever).
func (r *Registry) merge(dst, src *Class) {
	for k := range src.formKeys {
		dst.formKeys[k] = struct{}{}
		r.formIndex[k] = dst.id
	}
	for a := range src.appKeys {
		dst.appKeys[a] = struct{}{}
		r.appIndex[a] = dst.id
	}
	r.arena[src.id] = nil
	r.live--
}

// Ingest routes one record, identified by its formulation key and its
// application key, to an equivalence class:
//
//   - both keys unseen: a new class is created;
//   - one key known: the record joins that key's class, registering the
//     other key there;
//   - both keys known to the same class: no-op;
//   - keys known to two different classes: the classes are merged (the
//     formulation key's class absorbs the application key's class) and the
//     record joins the survivor.
//
// The final partition is the transitive closure of record co-occurrence and
// does not depend on ingestion order; only the surviving ids do.
func (r *Registry) Ingest(fk formulation.Key, ak formulation.ApplicationKey) (*Class, error) {
	if r.frozen {
		return nil, errors.New(errors.ErrCodeRegistryFrozen, "registry is frozen; no further ingestion permitted")
	}

	fc := r.lookupForm(fk)
	ac := r.lookupApp(ak)

	switch {
	case fc == nil && ac == nil:
		c := r.allocate()
		if err := r.addFormKey(c, fk); err != nil {
			return nil, err
		}
		if err := r.addAppKey(c, ak); err != nil {
			return nil, err
		}
		return c, nil

	case ac == nil:
		if err := r.append(fc, fk, ak); err != nil {
			return nil, err
		}
		return fc, nil

	case fc == nil:
		if err := r.append(ac, fk, ak); err != nil {
			return nil, err
		}
		return ac, nil

	case fc == ac:
		if err := r.append(fc, fk, ak); err != nil {
			return nil, err
		}
		return fc, nil

	default:
		r.merge(fc, ac)
		if err := r.append(fc, fk, ak); err != nil {
			return nil, err
		}
		return fc, nil
	}
}

func (r *Registry) lookupForm(k formulation.Key) *Class {
	if id, ok := r.formIndex[k]; ok {
		return r.arena[id]
	}
	return nil
}

func (r *Registry) lookupApp(a formulation.ApplicationKey) *Class {
	if id, ok := r.appIndex[a]; ok {
		return r.arena[id]
	}
	return nil
}

// LookupFormulation returns the class owning k, or nil.
func (r *Registry) LookupFormulation(k formulation.Key) *Class {
	return r.lookupForm(k)
}

// LookupApplication returns the class owning a, or nil.
func (r *Registry) LookupApplication(a formulation.ApplicationKey) *Class {
	return r.lookupApp(a)
}

// Class returns the live class with the given id, or an ErrCodeClassNotFound
// error if the id was never allocated or has been absorbed.
func (r *Registry) Class(id ClassID) (*Class, error) {
	if id < 0 || int(id) >= len(r.arena) || r.arena[id] == nil {
		return nil, errors.Newf(errors.ErrCodeClassNotFound, "no live class with id %d", id)
	}
	return r.arena[id], nil
}

// Classes calls fn for every live class in ascending id order, stopping early
// if fn returns false.  The order is stable across repeated calls on the same
// registry instance, which keeps downstream reports reproducible.
func (r *Registry) Classes(fn func(*Class) bool) {
	for _, c := range r.arena {
		if c == nil {
			continue
		}
		if !fn(c) {
			return
		}
	}
}

// ClassIDs returns the ids of all live classes in ascending order.
func (r *Registry) ClassIDs() []ClassID {
	out := make([]ClassID, 0, r.live)
	r.Classes(func(c *Class) bool {
		out = append(out, c.id)
		return true
	})
	return out
}

// FormulationKeys calls fn for every formulation key known to the registry,
// grouped by class in ascending id order.
func (r *Registry) FormulationKeys(fn func(formulation.Key) bool) {
	r.Classes(func(c *Class) bool {
		for _, k := range c.FormulationKeys() {
			if !fn(k) {
				return false
			}
		}
		return true
	})
}
