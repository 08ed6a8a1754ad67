package dataset

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/linkrx/formident/internal/infrastructure/monitoring/logging"
	"github.com/linkrx/formident/pkg/errors"
)

const (
	orangeBookPrefix = "EOBZIP_"
	orangeBookDelim  = '~'
	productsFileName = "products.txt"
	patentsFileName  = "patent.txt"
)

// OBProduct is one product row from an Orange Book release.
type OBProduct struct {
	Book         string
	ApplNo       string
	ProductNo    string
	Ingredient   string
	FormRoute    string
	Strength     string
	ApprovalDate string
	TECode       string
	Applicant    string
}

// OBPatent is one patent listing row from an Orange Book release.
type OBPatent struct {
	Book      string
	ApplNo    string
	ProductNo string
	PatentNo  string
}

// OrangeBookSource walks a directory of extracted Orange Book releases.
// Each release lives under an EOBZIP_* subdirectory holding tilde-delimited
// products.txt and patent.txt files; releases are visited in name order so
// repeated walks see records in the same sequence.
type OrangeBookSource struct {
	dir string
	log logging.Logger
}

// NewOrangeBookSource returns a source over the releases under dir.
func NewOrangeBookSource(dir string, log logging.Logger) *OrangeBookSource {
	return &OrangeBookSource{dir: dir, log: log.Named("orangebook")}
}

func (s *OrangeBookSource) releases() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatasetOpenFailed, "failed to list orange book directory").
			WithDetail(s.dir)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), orangeBookPrefix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Products calls fn for every product row of every release in release order.
func (s *OrangeBookSource) Products(fn func(OBProduct) error) error {
	return s.eachRelease(productsFileName, func(book string, r *Reader) error {
		if err := r.Require("ingredient", "df;route", "strength", "appl_no", "product_no"); err != nil {
			return err
		}
		return r.Each(func(row Row) error {
			return fn(OBProduct{
				Book:         book,
				ApplNo:       row.Get("appl_no"),
				ProductNo:    row.Get("product_no"),
				Ingredient:   row.Get("ingredient"),
				FormRoute:    row.Get("df;route"),
				Strength:     row.Get("strength"),
				ApprovalDate: row.Get("approval_date"),
				TECode:       row.Get("te_code"),
				Applicant:    row.Get("applicant"),
			})
		})
	})
}

// Patents calls fn for every patent row, skipping blank patent numbers and
// pediatric exclusivity duplicates (the *PED rows repeat the base patent).
func (s *OrangeBookSource) Patents(fn func(OBPatent) error) error {
	return s.eachRelease(patentsFileName, func(book string, r *Reader) error {
		if err := r.Require("appl_no", "product_no", "patent_no"); err != nil {
			return err
		}
		return r.Each(func(row Row) error {
			no := row.Get("patent_no")
			if no == "" || strings.HasSuffix(no, "*PED") {
				return nil
			}
			return fn(OBPatent{
				Book:      book,
				ApplNo:    row.Get("appl_no"),
				ProductNo: row.Get("product_no"),
				PatentNo:  no,
			})
		})
	})
}

func (s *OrangeBookSource) eachRelease(file string, fn func(string, *Reader) error) error {
	releases, err := s.releases()
	if err != nil {
		return err
	}
	for _, book := range releases {
		s.log.Debug("reading orange book release", logging.String("book", book), logging.String("file", file))
		path := filepath.Join(s.dir, book, file)
		f, err := os.Open(path)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeDatasetOpenFailed, "failed to open release file").
				WithDetail(path)
		}
		err = fn(book, NewReader(f, orangeBookDelim))
		f.Close()
		if err != nil {
			return err
		}
	}
	return nil
}
