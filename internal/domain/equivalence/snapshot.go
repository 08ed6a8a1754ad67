package equivalence

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/linkrx/formident/internal/domain/formulation"
	"github.com/linkrx/formident/pkg/errors"
)

// ClassRecord is the externalized form of one equivalence class.  The
// registry is built once from a years-spanning corpus and then reused
// read-only across many analysis runs, so the full state round-trips through
// an id-ordered list of these records.
type ClassRecord struct {
	ID ClassID `json:"id"`

	// FormulationKeys holds [ingredient, form_route, strength] triples in
	// canonical key order.
	FormulationKeys [][]string `json:"formulation_keys"`

	// ApplicationKeys holds [appl_no, product_no] pairs in canonical order.
	ApplicationKeys [][]string `json:"application_keys"`
}

// Snapshot externalizes the registry's full state as an id-ordered list of
// class records.  Restoring the result reconstructs an identical partition
// and id assignment.
func (r *Registry) Snapshot() []ClassRecord {
	out := make([]ClassRecord, 0, r.live)
	r.Classes(func(c *Class) bool {
		rec := ClassRecord{ID: c.id}
		for _, k := range c.FormulationKeys() {
			rec.FormulationKeys = append(rec.FormulationKeys,
				[]string{k.Ingredient, k.FormRoute, k.Strength})
		}
		for _, a := range c.ApplicationKeys() {
			rec.ApplicationKeys = append(rec.ApplicationKeys,
				[]string{a.ApplNo, a.ProductNo})
		}
		out = append(out, rec)
		return true
	})
	return out
}

// WriteSnapshot encodes the registry's snapshot as JSON to w.
func (r *Registry) WriteSnapshot(w io.Writer) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(r.Snapshot()); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode registry snapshot")
	}
	return nil
}

// Restore rebuilds a registry from externalized class records.  The partition
// and id assignment are reconstructed exactly; internal pointer structure is
// not required to match the original instance.  The restored registry is
// frozen.
func Restore(records []ClassRecord) (*Registry, error) {
	r := NewRegistry()

	maxID := ClassID(-1)
	for _, rec := range records {
		if rec.ID < 0 {
			return nil, errors.Newf(errors.ErrCodeSnapshotCorrupt, "negative class id %d", rec.ID)
		}
		if rec.ID > maxID {
			maxID = rec.ID
		}
	}
	r.arena = make([]*Class, maxID+1)

	for _, rec := range records {
		if r.arena[rec.ID] != nil {
			return nil, errors.Newf(errors.ErrCodeSnapshotDuplicate, "class id %d appears twice", rec.ID)
		}
		c := newClass(rec.ID)
		r.arena[rec.ID] = c
		r.live++

		for _, triple := range rec.FormulationKeys {
			if len(triple) != 3 {
				return nil, errors.New(errors.ErrCodeSnapshotCorrupt,
					"formulation key is not an [ingredient, form_route, strength] triple").
					WithDetail(fmt.Sprintf("class=%d key=%v", rec.ID, triple))
			}
			k := formulation.Key{Ingredient: triple[0], FormRoute: triple[1], Strength: triple[2]}
			if err := r.addFormKey(c, k); err != nil {
				return nil, err
			}
		}
		for _, pair := range rec.ApplicationKeys {
			if len(pair) != 2 {
				return nil, errors.New(errors.ErrCodeSnapshotCorrupt,
					"application key is not an [appl_no, product_no] pair").
					WithDetail(fmt.Sprintf("class=%d key=%v", rec.ID, pair))
			}
			a := formulation.ApplicationKey{ApplNo: pair[0], ProductNo: pair[1]}
			if err := r.addAppKey(c, a); err != nil {
				return nil, err
			}
		}
	}

	r.frozen = true
	return r, nil
}

// ReadSnapshot decodes a JSON snapshot from rd and restores the registry.
func ReadSnapshot(rd io.Reader) (*Registry, error) {
	var records []ClassRecord
	dec := json.NewDecoder(rd)
	if err := dec.Decode(&records); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSnapshotCorrupt, "failed to decode registry snapshot")
	}
	return Restore(records)
}
