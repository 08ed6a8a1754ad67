package dataset

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/linkrx/formident/internal/domain/matching"
	"github.com/linkrx/formident/internal/infrastructure/monitoring/logging"
	"github.com/linkrx/formident/pkg/errors"
)

const (
	ndcPrefix       = "ndc-"
	ndcDelim        = '\t'
	ndcProductsFile = "product.txt"
)

// NDCIdentifier is the assumed-unique identifier of a consolidated NDC
// record.  ApplNo keeps its alpha prefix here so that a reapproval under a
// different application type stays a distinct record.
type NDCIdentifier struct {
	ProductNDC string
	ApplNo     string
}

// NDCRecord is the consolidated view of one NDC product across all release
// files it appears in.
type NDCRecord struct {
	ProductNDC   string
	ApplNo       string // alpha prefix stripped
	Ingredient   string
	Form         string
	Route        string
	StrengthNum  string
	StrengthUnit string
	StartDate    string
	EndDate      string
	StartFile    string
	EndFile      string
}

// Record shapes the consolidated row for the equivalence predicate.  The
// unit string is passed through untouched: the matcher's conversion rules
// key off its exact lower-case spelling.
func (r NDCRecord) Record() matching.Record {
	return matching.Record{
		Ingredient: r.Ingredient,
		FormRoute:  r.Form + ";" + r.Route,
		Strength:   r.StrengthNum,
		Unit:       r.StrengthUnit,
	}
}

var unitPerOneRe = regexp.MustCompile(`/1$`)

// NormalizedUnit returns the unit in report form: upper-cased, the
// redundant per-one denominator dropped, a bare leading dot zero-padded.
func (r NDCRecord) NormalizedUnit() string {
	unit := unitPerOneRe.ReplaceAllString(strings.ToUpper(r.StrengthUnit), "")
	if strings.HasPrefix(unit, ".") {
		unit = "0" + unit
	}
	return unit
}

var applAlphaPrefixRe = regexp.MustCompile(`^[A-Z]+`)

// NDCSource walks a directory of extracted NDC releases.  Each release
// lives under an ndc-* subdirectory holding a tab-delimited, cp1252-encoded
// product.txt; releases are visited in name order.
type NDCSource struct {
	dir string
	log logging.Logger
}

// NewNDCSource returns a source over the releases under dir.
func NewNDCSource(dir string, log logging.Logger) *NDCSource {
	return &NDCSource{dir: dir, log: log.Named("ndc")}
}

func (s *NDCSource) releases() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatasetOpenFailed, "failed to list ndc directory").
			WithDetail(s.dir)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), ndcPrefix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Consolidate reads every release and reduces the rows to one record per
// (product code, application) identifier:
//
//   - the last release's ingredient, form, route and strength fields win,
//     assuming the agency cleans its data over time;
//   - the start marketing date is the earliest seen, the end date the last
//     seen, since manufacturers push the end date around;
//   - the first and last release file containing the identifier are kept as
//     an alternative read on the marketing window.
//
// Rows with a blank or "part"-prefixed application number, KIT dose forms,
// and bare WATER listings are skipped.  Records are returned in first-seen
// order.
func (s *NDCSource) Consolidate() ([]NDCRecord, error) {
	releases, err := s.releases()
	if err != nil {
		return nil, err
	}

	recs := make(map[NDCIdentifier]*NDCRecord)
	var order []NDCIdentifier

	for _, release := range releases {
		s.log.Debug("reading ndc release", logging.String("release", release))
		file := strings.TrimPrefix(release, ndcPrefix)
		path := filepath.Join(s.dir, release, ndcProductsFile)
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatasetOpenFailed, "failed to open release file").
				WithDetail(path)
		}

		r := NewReader(charmap.Windows1252.NewDecoder().Reader(f), ndcDelim)
		if err := r.Require("productndc", "applicationnumber", "substancename",
			"dosageformname", "routename", "active_numerator_strength",
			"active_ingred_unit", "startmarketingdate", "endmarketingdate"); err != nil {
			f.Close()
			return nil, err
		}
		err = r.Each(func(row Row) error {
			applNo := row.Get("applicationnumber")
			if applNo == "" ||
				strings.HasPrefix(applNo, "part") ||
				strings.HasPrefix(applNo, "Part") {
				return nil
			}
			if row.Get("dosageformname") == "KIT" {
				return nil
			}
			if row.Get("substancename") == "WATER" {
				return nil
			}

			id := NDCIdentifier{ProductNDC: row.Get("productndc"), ApplNo: applNo}
			rec, seen := recs[id]
			if !seen {
				rec = &NDCRecord{
					StartDate: row.Get("startmarketingdate"),
					StartFile: file,
				}
				recs[id] = rec
				order = append(order, id)
			}

			rec.ProductNDC = id.ProductNDC
			rec.ApplNo = applAlphaPrefixRe.ReplaceAllString(applNo, "")
			rec.Ingredient = row.Get("substancename")
			rec.Form = row.Get("dosageformname")
			rec.Route = row.Get("routename")
			rec.StrengthNum = row.Get("active_numerator_strength")
			rec.StrengthUnit = row.Get("active_ingred_unit")
			rec.EndDate = row.Get("endmarketingdate")
			rec.EndFile = file
			if start := row.Get("startmarketingdate"); start < rec.StartDate {
				rec.StartDate = start
			}
			return nil
		})
		f.Close()
		if err != nil {
			return nil, err
		}
	}

	out := make([]NDCRecord, len(order))
	for i, id := range order {
		out[i] = *recs[id]
	}
	return out, nil
}
