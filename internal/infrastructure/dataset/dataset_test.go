package dataset

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkrx/formident/internal/infrastructure/monitoring/logging"
	"github.com/linkrx/formident/pkg/errors"
)

func TestReader_HeaderKeyedAccess(t *testing.T) {
	in := "Appl_No~Product_No~Ingredient\n004636~001~ASPIRIN\n020067~002~IBUPROFEN\n"
	r := NewReader(strings.NewReader(in), '~')

	require.NoError(t, r.Require("appl_no", "ingredient"))

	row, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "004636", row.Get("appl_no"), "column names are lower-cased")
	assert.Equal(t, "ASPIRIN", row.Get("ingredient"))
	assert.Equal(t, "", row.Get("no_such_column"))

	row, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "IBUPROFEN", row.Get("ingredient"))

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestReader_MissingColumn(t *testing.T) {
	r := NewReader(strings.NewReader("a~b\n1~2\n"), '~')
	err := r.Require("a", "c")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDatasetHeaderError))
}

func TestReader_ShortRow(t *testing.T) {
	r := NewReader(strings.NewReader("a\tb\tc\n1\t2\n"), '\t')
	row, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "2", row.Get("b"))
	assert.Equal(t, "", row.Get("c"), "a field beyond the row reads empty")
}

func TestUniqueRowWriter_DropsDuplicates(t *testing.T) {
	var buf bytes.Buffer
	w := NewUniqueRowWriter(&buf)

	require.NoError(t, w.WriteHeader([]string{"appl_no", "patent_no"}))
	require.NoError(t, w.WriteRow([]string{"004636", "5000000"}))
	require.NoError(t, w.WriteRow([]string{"004636", "5000000"}))
	require.NoError(t, w.WriteRow([]string{"004636", "6000000"}))
	require.NoError(t, w.Flush())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 3)
}

func TestUniqueRowWriter_FieldCountEnforced(t *testing.T) {
	w := NewUniqueRowWriter(&bytes.Buffer{})
	err := w.WriteRow([]string{"x"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeDatasetParseError), "row before header")

	require.NoError(t, w.WriteHeader([]string{"a", "b"}))
	err = w.WriteRow([]string{"x"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeDatasetParseError))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestOrangeBookSource_WalksReleasesInOrder(t *testing.T) {
	dir := t.TempDir()
	header := "Ingredient~DF;Route~Trade_Name~Applicant~Strength~Appl_Type~Appl_No~Product_No~TE_Code~Approval_Date\n"
	writeFile(t, filepath.Join(dir, "EOBZIP_2020_01", "products.txt"),
		header+"ASPIRIN~TABLET;ORAL~ASP~ACME~325MG~N~004636~001~AB~Approved Prior to Jan 1, 1982\n")
	writeFile(t, filepath.Join(dir, "EOBZIP_2020_01", "patent.txt"),
		"Appl_Type~Appl_No~Product_No~Patent_No\nN~004636~001~5000000\nN~004636~001~\nN~004636~001~5000000*PED\n")
	writeFile(t, filepath.Join(dir, "EOBZIP_2019_12", "products.txt"),
		header+"IBUPROFEN~TABLET;ORAL~IBU~ACME~200MG~N~020067~001~AB~Jan 2, 1990\n")
	writeFile(t, filepath.Join(dir, "EOBZIP_2019_12", "patent.txt"),
		"Appl_Type~Appl_No~Product_No~Patent_No\n")
	// Non-release entries are ignored.
	writeFile(t, filepath.Join(dir, "notes.txt"), "x")

	src := NewOrangeBookSource(dir, logging.NewNopLogger())

	var products []OBProduct
	require.NoError(t, src.Products(func(p OBProduct) error {
		products = append(products, p)
		return nil
	}))
	require.Len(t, products, 2)
	assert.Equal(t, "EOBZIP_2019_12", products[0].Book, "releases walk in name order")
	assert.Equal(t, "IBUPROFEN", products[0].Ingredient)
	assert.Equal(t, "TABLET;ORAL", products[1].FormRoute)
	assert.Equal(t, "325MG", products[1].Strength)

	var patents []OBPatent
	require.NoError(t, src.Patents(func(p OBPatent) error {
		patents = append(patents, p)
		return nil
	}))
	require.Len(t, patents, 1, "blank and *PED patent rows are skipped")
	assert.Equal(t, "5000000", patents[0].PatentNo)
}

func TestOrangeBookSource_MissingDir(t *testing.T) {
	src := NewOrangeBookSource("/no/such/dir", logging.NewNopLogger())
	err := src.Products(func(OBProduct) error { return nil })
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDatasetOpenFailed))
}

const ndcHeader = "productid\tproductndc\tproducttypename\tproprietaryname\tsuffix\t" +
	"nonproprietaryname\tdosageformname\troutename\tstartmarketingdate\tendmarketingdate\t" +
	"marketingcategoryname\tapplicationnumber\tlabelername\tsubstancename\t" +
	"active_numerator_strength\tactive_ingred_unit\n"

func ndcRow(ndc, appl, form, route, substance, strength, unit, start, end string) string {
	return strings.Join([]string{
		"id", ndc, "HUMAN PRESCRIPTION DRUG", "X", "", "x", form, route, start, end,
		"NDA", appl, "ACME", substance, strength, unit,
	}, "\t") + "\n"
}

func TestNDCSource_Consolidate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "ndc-20200101", "product.txt"),
		ndcHeader+
			ndcRow("1111-1", "NDA004636", "TABLET", "ORAL", "ASPIRIN", "325", "mg/1", "20000101", "20201231")+
			ndcRow("2222-2", "part333", "TABLET", "ORAL", "X", "1", "mg/1", "", "")+
			ndcRow("3333-3", "NDA020067", "KIT", "ORAL", "X", "1", "mg/1", "", "")+
			ndcRow("4444-4", "NDA020068", "SOLUTION", "ORAL", "WATER", "1", "mL/1", "", "")+
			ndcRow("5555-5", "", "TABLET", "ORAL", "X", "1", "mg/1", "", ""))
	writeFile(t, filepath.Join(dir, "ndc-20200201", "product.txt"),
		ndcHeader+
			ndcRow("1111-1", "NDA004636", "TABLET", "ORAL", "ASPIRIN", "325", "mg/1", "20010101", "20211231"))

	src := NewNDCSource(dir, logging.NewNopLogger())
	recs, err := src.Consolidate()
	require.NoError(t, err)
	require.Len(t, recs, 1, "part/blank applications, KIT forms and WATER rows are skipped")

	rec := recs[0]
	assert.Equal(t, "1111-1", rec.ProductNDC)
	assert.Equal(t, "004636", rec.ApplNo, "alpha application prefix is stripped")
	assert.Equal(t, "20000101", rec.StartDate, "earliest start date wins")
	assert.Equal(t, "20211231", rec.EndDate, "latest end date wins")
	assert.Equal(t, "20200101", rec.StartFile)
	assert.Equal(t, "20200201", rec.EndFile)

	m := rec.Record()
	assert.Equal(t, "TABLET;ORAL", m.FormRoute)
	assert.Equal(t, "325", m.Strength)
	assert.Equal(t, "mg/1", m.Unit, "the matcher sees the raw unit")
	assert.Equal(t, "MG", rec.NormalizedUnit())
}

func TestNDCRecord_NormalizedUnit(t *testing.T) {
	assert.Equal(t, "MG", NDCRecord{StrengthUnit: "mg/1"}.NormalizedUnit())
	assert.Equal(t, "UG/.137ML", NDCRecord{StrengthUnit: "ug/.137mL"}.NormalizedUnit())
	assert.Equal(t, "0.5ML", NDCRecord{StrengthUnit: ".5mL"}.NormalizedUnit())
}
