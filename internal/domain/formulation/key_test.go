package formulation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkrx/formident/pkg/errors"
)

func TestNewKey_Simple(t *testing.T) {
	k, err := NewKey("BUPRENORPHINE HYDROCHLORIDE; NALOXONE HYDROCHLORIDE",
		"FILM;BUCCAL", "EQ 6.3MG BASE;EQ 1MG BASE")
	require.NoError(t, err)
	assert.Equal(t, "BUPRENORPHINE HYDROCHLORIDE; NALOXONE HYDROCHLORIDE", k.Ingredient)
	assert.Equal(t, "FILM;BUCCAL", k.FormRoute)
	assert.Equal(t, "EQ 6.3MG BASE; EQ 1MG BASE", k.Strength)
}

func TestNewKey_IngredientPermutationsCanonicalize(t *testing.T) {
	a, err := NewKey("NALOXONE HYDROCHLORIDE;BUPRENORPHINE HYDROCHLORIDE",
		"FILM;BUCCAL", "EQ 1MG BASE;EQ 6.3MG BASE")
	require.NoError(t, err)
	b, err := NewKey("BUPRENORPHINE HYDROCHLORIDE;NALOXONE HYDROCHLORIDE",
		"FILM;BUCCAL", "EQ 6.3MG BASE;EQ 1MG BASE")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, "EQ 6.3MG BASE; EQ 1MG BASE", a.Strength,
		"strengths must travel with their ingredients through the sort")
}

func TestNewKey_FormRouteSeparatorCollapsed(t *testing.T) {
	k, err := NewKey("MESALAMINE", "CAPSULE, EXTENDED RELEASE; ORAL", "375MG")
	require.NoError(t, err)
	assert.Equal(t, "CAPSULE, EXTENDED RELEASE;ORAL", k.FormRoute)
}

func TestNewKey_SingleIngredientReplicatedAcrossStrengths(t *testing.T) {
	k, err := NewKey("INSULIN GLARGINE", "INJECTABLE;SUBCUTANEOUS", "100 UNITS/ML;300 UNITS/ML")
	require.NoError(t, err)
	assert.Equal(t, "INSULIN GLARGINE; INSULIN GLARGINE", k.Ingredient)
	assert.Equal(t, "100 UNITS/ML; 300 UNITS/ML", k.Strength)
}

func TestNewKey_CardinalityMismatchFatal(t *testing.T) {
	_, err := NewKey("A;B", "TABLET;ORAL", "1MG;2MG;3MG")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeStrengthCardinality))
	assert.Contains(t, err.Error(), "1MG;2MG;3MG")
}

func TestNewKey_EmptyIngredientRejected(t *testing.T) {
	_, err := NewKey("  ", "TABLET;ORAL", "1MG")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeKeyFieldEmpty))
}

func TestParseStrengths_PlainSplit(t *testing.T) {
	got, err := parseStrengths("EQ 6.3MG BASE;EQ 1MG BASE", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"EQ 6.3MG BASE", "EQ 1MG BASE"}, got)
}

func TestParseStrengths_SingleIngredientKeepsAllTokens(t *testing.T) {
	got, err := parseStrengths("1MG;2MG;3MG", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"1MG", "2MG", "3MG"}, got)
}

func TestParseStrengths_ParenthesizedPairs(t *testing.T) {
	got, err := parseStrengths("EQ 200MCG BASE/2ML;EQ 1MG/2ML (EQ 100MCG BASE/ML;EQ 0.5MG/ML)", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"EQ 200MCG BASE/2ML (EQ 100MCG BASE/ML)",
		"EQ 1MG/2ML (EQ 0.5MG/ML)",
	}, got)
}

func TestParseStrengths_FederalRegisterSuffixStripped(t *testing.T) {
	got, err := parseStrengths("10MG **Federal Register determination that product was not discontinued", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"10MG"}, got)
}

func TestParseStrengths_CommaTranspose(t *testing.T) {
	got, err := parseStrengths("1MG,2MG;3MG,4MG;5MG,6MG", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"1MG, 3MG, 5MG", "2MG, 4MG, 6MG"}, got)
}

func TestParseStrengths_BlockRegroup(t *testing.T) {
	got, err := parseStrengths("1MG;2MG;3MG;4MG", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"1MG, 2MG", "3MG, 4MG"}, got)
}

func TestParseStrengths_QuadCorrectionRow(t *testing.T) {
	got, err := parseStrengths(quadStrengthRaw, 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"250MG", "12.5MG", "75MG", "50MG"}, got)
}

func TestParseStrengths_UnparseableIsFatal(t *testing.T) {
	_, err := parseStrengths("1MG;2MG;3MG", 2)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeStrengthCardinality))
}

func TestKey_Ordering(t *testing.T) {
	a := Key{Ingredient: "A", FormRoute: "TABLET;ORAL", Strength: "1MG"}
	b := Key{Ingredient: "A", FormRoute: "TABLET;ORAL", Strength: "2MG"}
	c := Key{Ingredient: "B", FormRoute: "CAPSULE;ORAL", Strength: "1MG"}

	assert.True(t, a.Less(b))
	assert.True(t, b.Less(c))
	assert.False(t, c.Less(a))
	assert.False(t, a.Less(a))
}

func TestKey_Accessors(t *testing.T) {
	k := Key{Ingredient: "A; B", FormRoute: "TABLET;ORAL", Strength: "1MG; 2MG"}
	assert.Equal(t, []string{"A", "B"}, k.Ingredients())
	assert.Equal(t, []string{"1MG", "2MG"}, k.Strengths())
	assert.False(t, k.IsZero())
	assert.True(t, Key{}.IsZero())
}

func TestApplicationKey(t *testing.T) {
	a := ApplicationKey{ApplNo: "004636", ProductNo: "001"}
	b := ApplicationKey{ApplNo: "004636", ProductNo: "002"}

	assert.Equal(t, "App<004636.001>", a.String())
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.True(t, ApplicationKey{}.IsZero())
}
