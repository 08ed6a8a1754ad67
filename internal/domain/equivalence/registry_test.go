package equivalence

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkrx/formident/internal/domain/formulation"
	"github.com/linkrx/formident/pkg/errors"
)

func fk(n string) formulation.Key {
	return formulation.Key{Ingredient: n, FormRoute: "TABLET;ORAL", Strength: "1MG"}
}

func ak(n string) formulation.ApplicationKey {
	return formulation.ApplicationKey{ApplNo: n, ProductNo: "001"}
}

func TestIngest_CreatesClassForUnseenKeys(t *testing.T) {
	r := NewRegistry()
	c, err := r.Ingest(fk("A"), ak("100"))
	require.NoError(t, err)

	assert.Equal(t, ClassID(0), c.ID())
	assert.Equal(t, 1, r.Len())
	assert.True(t, c.HasFormulation(fk("A")))
	assert.True(t, c.HasApplication(ak("100")))
}

func TestIngest_NeverLeavesKeyUnowned(t *testing.T) {
	r := NewRegistry()
	_, err := r.Ingest(fk("A"), ak("100"))
	require.NoError(t, err)

	assert.NotNil(t, r.LookupFormulation(fk("A")))
	assert.NotNil(t, r.LookupApplication(ak("100")))
}

func TestIngest_AppendsByApplicationKey(t *testing.T) {
	r := NewRegistry()
	c1, err := r.Ingest(fk("A"), ak("100"))
	require.NoError(t, err)

	// Same application, renamed formulation in a later release.
	c2, err := r.Ingest(fk("A RENAMED"), ak("100"))
	require.NoError(t, err)

	assert.Same(t, c1, c2)
	assert.Equal(t, 1, r.Len())
	assert.True(t, c1.HasFormulation(fk("A RENAMED")))
}

func TestIngest_AppendsByFormulationKey(t *testing.T) {
	r := NewRegistry()
	c1, err := r.Ingest(fk("A"), ak("100"))
	require.NoError(t, err)

	// Same formulation marketed under a second application (a generic).
	c2, err := r.Ingest(fk("A"), ak("200"))
	require.NoError(t, err)

	assert.Same(t, c1, c2)
	assert.True(t, c1.HasApplication(ak("200")))
}

func TestIngest_Idempotent(t *testing.T) {
	r := NewRegistry()
	_, err := r.Ingest(fk("A"), ak("100"))
	require.NoError(t, err)

	before := r.Len()
	c, err := r.Ingest(fk("A"), ak("100"))
	require.NoError(t, err)

	assert.Equal(t, before, r.Len())
	nf, na := c.Size()
	assert.Equal(t, 1, nf)
	assert.Equal(t, 1, na)
}

func TestIngest_MergeCombinesClasses(t *testing.T) {
	r := NewRegistry()
	c1, err := r.Ingest(fk("A"), ak("100"))
	require.NoError(t, err)
	_, err = r.Ingest(fk("B"), ak("200"))
	require.NoError(t, err)
	require.Equal(t, 2, r.Len())

	// A record linking f1 with a2 proves the two classes are one product.
	merged, err := r.Ingest(fk("A"), ak("200"))
	require.NoError(t, err)

	assert.Equal(t, 1, r.Len())
	assert.Equal(t, c1.ID(), merged.ID(), "the formulation key's class keeps its id")
	assert.True(t, merged.HasFormulation(fk("A")))
	assert.True(t, merged.HasFormulation(fk("B")))
	assert.True(t, merged.HasApplication(ak("100")))
	assert.True(t, merged.HasApplication(ak("200")))

	// All pointers rewritten to the survivor.
	assert.Same(t, merged, r.LookupFormulation(fk("B")))
	assert.Same(t, merged, r.LookupApplication(ak("200")))
}

func TestIngest_AbsorbedIDNeverReused(t *testing.T) {
	r := NewRegistry()
	_, err := r.Ingest(fk("A"), ak("100"))
	require.NoError(t, err)
	c2, err := r.Ingest(fk("B"), ak("200"))
	require.NoError(t, err)
	absorbedID := c2.ID()

	_, err = r.Ingest(fk("A"), ak("200"))
	require.NoError(t, err)

	_, err = r.Class(absorbedID)
	assert.True(t, errors.IsCode(err, errors.ErrCodeClassNotFound))

	// A fresh class must receive a brand-new id.
	c3, err := r.Ingest(fk("C"), ak("300"))
	require.NoError(t, err)
	assert.Greater(t, int(c3.ID()), int(absorbedID))
}

// record is one (formulation, application) co-occurrence for the order
// independence property test.
type record struct {
	f formulation.Key
	a formulation.ApplicationKey
}

// partitionOf maps each formulation key to the sorted set of formulation
// keys sharing its class, which identifies the partition independent of ids.
func partitionOf(t *testing.T, r *Registry) map[formulation.Key]string {
	t.Helper()
	out := make(map[formulation.Key]string)
	r.Classes(func(c *Class) bool {
		sig := ""
		for _, k := range c.FormulationKeys() {
			sig += k.String() + "|"
		}
		for _, a := range c.ApplicationKeys() {
			sig += a.String() + "|"
		}
		for _, k := range c.FormulationKeys() {
			out[k] = sig
		}
		return true
	})
	return out
}

func TestIngest_OrderIndependence(t *testing.T) {
	recs := []record{
		{fk("A"), ak("100")},
		{fk("B"), ak("200")},
		{fk("A"), ak("200")}, // merges the two above
		{fk("C"), ak("300")},
		{fk("C"), ak("400")},
		{fk("D"), ak("400")},
		{fk("E"), ak("500")},
	}

	// All rotations of the stream must produce the same partition.
	base := NewRegistry()
	for _, rec := range recs {
		_, err := base.Ingest(rec.f, rec.a)
		require.NoError(t, err)
	}
	want := partitionOf(t, base)

	for shift := 1; shift < len(recs); shift++ {
		r := NewRegistry()
		for i := range recs {
			rec := recs[(i+shift)%len(recs)]
			_, err := r.Ingest(rec.f, rec.a)
			require.NoError(t, err, "shift %d", shift)
		}
		assert.Equal(t, want, partitionOf(t, r), "partition differs at shift %d", shift)
	}
}

func TestClasses_StableIDOrder(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 5; i++ {
		_, err := r.Ingest(fk(fmt.Sprintf("ING%d", i)), ak(fmt.Sprintf("%d", i)))
		require.NoError(t, err)
	}

	first := r.ClassIDs()
	second := r.ClassIDs()
	assert.Equal(t, first, second)
	for i := 1; i < len(first); i++ {
		assert.Less(t, int(first[i-1]), int(first[i]))
	}
}

func TestClasses_EarlyStop(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 5; i++ {
		_, err := r.Ingest(fk(fmt.Sprintf("ING%d", i)), ak(fmt.Sprintf("%d", i)))
		require.NoError(t, err)
	}

	seen := 0
	r.Classes(func(*Class) bool {
		seen++
		return seen < 2
	})
	assert.Equal(t, 2, seen)
}

func TestFreeze_RejectsFurtherIngestion(t *testing.T) {
	r := NewRegistry()
	_, err := r.Ingest(fk("A"), ak("100"))
	require.NoError(t, err)

	r.Freeze()
	assert.True(t, r.Frozen())

	_, err = r.Ingest(fk("B"), ak("200"))
	assert.True(t, errors.IsCode(err, errors.ErrCodeRegistryFrozen))

	// Queries still work.
	assert.NotNil(t, r.LookupFormulation(fk("A")))
}

func TestAppend_IntegrityViolationIsFatal(t *testing.T) {
	r := NewRegistry()
	c1, err := r.Ingest(fk("A"), ak("100"))
	require.NoError(t, err)
	_, err = r.Ingest(fk("B"), ak("200"))
	require.NoError(t, err)

	// Adding a key owned by another class through the non-merge path must
	// surface as an integrity error, not be silently resolved.
	err = r.addFormKey(c1, fk("B"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeRegistryIntegrity))

	err = r.append(c1, fk("Z"), ak("999"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeRegistryIntegrity))
}

func TestClass_Accessors(t *testing.T) {
	r := NewRegistry()
	c, err := r.Ingest(fk("B"), ak("100"))
	require.NoError(t, err)
	_, err = r.Ingest(fk("A"), ak("100"))
	require.NoError(t, err)

	keys := c.FormulationKeys()
	require.Len(t, keys, 2)
	assert.Equal(t, "A", keys[0].Ingredient, "canonical order is structural")
	assert.Equal(t, fk("A"), c.Representative())
	assert.Contains(t, c.String(), "Class<0:")
}

func TestFormulationKeys_IteratesAll(t *testing.T) {
	r := NewRegistry()
	_, err := r.Ingest(fk("A"), ak("100"))
	require.NoError(t, err)
	_, err = r.Ingest(fk("B"), ak("200"))
	require.NoError(t, err)

	var got []formulation.Key
	r.FormulationKeys(func(k formulation.Key) bool {
		got = append(got, k)
		return true
	})
	assert.Len(t, got, 2)
}
