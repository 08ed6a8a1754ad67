// Package resolution orchestrates batch identity resolution runs: streaming
// source records into the equivalence registry, freezing and snapshotting
// the result, and linking second-corpus product records to classes through
// the equivalence predicate.  It also exposes the read-only query surface
// consumed by the CLI and HTTP interfaces.
package resolution

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/linkrx/formident/internal/domain/equivalence"
	"github.com/linkrx/formident/internal/domain/formulation"
	"github.com/linkrx/formident/internal/domain/matching"
	"github.com/linkrx/formident/internal/infrastructure/dataset"
	"github.com/linkrx/formident/internal/infrastructure/monitoring/logging"
	metrics "github.com/linkrx/formident/internal/infrastructure/monitoring/prometheus"
	"github.com/linkrx/formident/pkg/errors"
)

// MatchCache memoizes equivalence decisions for (class, record) pairs
// within one snapshot generation.  Implementations must call compute on a
// miss and may degrade to it on any cache failure.
type MatchCache interface {
	Equivalent(ctx context.Context, id equivalence.ClassID, rec matching.Record,
		compute func() (bool, error)) (bool, error)
}

// Service owns one registry instance and the collaborators of a resolution
// run.  Build must complete (or the registry must arrive frozen from a
// snapshot) before the query surface and LinkNDC are used.
type Service struct {
	log      logging.Logger
	registry *equivalence.Registry
	events   EventPublisher
	metrics  *metrics.Metrics
	ob       *dataset.OrangeBookSource
	ndc      *dataset.NDCSource
	cache    MatchCache

	// appIndex maps a bare application number to the classes holding any
	// product of that application.  Built once at freeze time; the second
	// corpus identifies products by application number only.
	appIndex map[string][]equivalence.ClassID
}

// NewService assembles a resolution service.  A nil publisher discards
// events.  If the registry is already frozen (restored from a snapshot) the
// service is immediately queryable.
func NewService(
	registry *equivalence.Registry,
	ob *dataset.OrangeBookSource,
	ndc *dataset.NDCSource,
	events EventPublisher,
	m *metrics.Metrics,
	log logging.Logger,
) *Service {
	if events == nil {
		events = NewNopPublisher()
	}
	s := &Service{
		log:      log.Named("resolution"),
		registry: registry,
		events:   events,
		metrics:  m,
		ob:       ob,
		ndc:      ndc,
	}
	if registry.Frozen() {
		s.buildAppIndex()
	}
	return s
}

// UseMatchCache routes Equivalent decisions through c.  Intended for the
// query path over a frozen snapshot, where decisions never go stale.
func (s *Service) UseMatchCache(c MatchCache) { s.cache = c }

// RunReport summarizes one Build invocation.
type RunReport struct {
	RunID    string        `json:"run_id"`
	Records  int           `json:"records"`
	Classes  int           `json:"classes"`
	Merges   int           `json:"merges"`
	Duration time.Duration `json:"duration"`
}

// Build streams every product record of the first corpus into the registry
// and freezes it.  Key derivation failures are fatal and name the record
// that caused them; the registry is left unfrozen so the failure cannot be
// mistaken for a complete run.
func (s *Service) Build(ctx context.Context) (*RunReport, error) {
	if s.registry.Frozen() {
		return nil, errors.New(errors.ErrCodeRegistryFrozen, "registry already built")
	}
	if s.ob == nil {
		return nil, errors.New(errors.CodeInternal, "no product corpus source configured")
	}

	runID := uuid.NewString()
	start := time.Now()
	s.publish(ctx, runID, EventRunStarted, nil)
	s.log.Info("resolution run started", logging.String("run_id", runID))

	records, merges := 0, 0
	err := s.ob.Products(func(p dataset.OBProduct) error {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, errors.CodeInternal, "run canceled")
		}
		key, err := formulation.NewKey(p.Ingredient, p.FormRoute, p.Strength)
		if err != nil {
			s.metrics.IngestFailures.Inc()
			return errors.Wrap(err, errors.CodeUnknown,
				fmt.Sprintf("record %s/%s in %s", p.ApplNo, p.ProductNo, p.Book))
		}
		ak := formulation.ApplicationKey{ApplNo: p.ApplNo, ProductNo: p.ProductNo}

		before := s.registry.Len()
		if _, err := s.registry.Ingest(key, ak); err != nil {
			s.metrics.IngestFailures.Inc()
			return err
		}
		switch after := s.registry.Len(); {
		case after > before:
			s.metrics.ClassesCreated.Inc()
		case after < before:
			merges++
			s.metrics.ClassesMerged.Inc()
		}
		records++
		s.metrics.RecordsIngested.Inc()
		return nil
	})
	if err != nil {
		s.log.Error("resolution run failed", logging.String("run_id", runID), logging.Err(err))
		return nil, err
	}

	s.registry.Freeze()
	s.buildAppIndex()

	report := &RunReport{
		RunID:    runID,
		Records:  records,
		Classes:  s.registry.Len(),
		Merges:   merges,
		Duration: time.Since(start),
	}
	s.metrics.RunDuration.Observe(report.Duration.Seconds())
	s.publish(ctx, runID, EventRunFinished, map[string]any{
		"records": report.Records,
		"classes": report.Classes,
		"merges":  report.Merges,
	})
	s.log.Info("resolution run finished",
		logging.String("run_id", runID),
		logging.Int("records", report.Records),
		logging.Int("classes", report.Classes),
		logging.Int("merges", report.Merges),
		logging.Duration("duration", report.Duration))
	return report, nil
}

func (s *Service) buildAppIndex() {
	s.appIndex = make(map[string][]equivalence.ClassID)
	s.registry.Classes(func(c *equivalence.Class) bool {
		seen := make(map[string]struct{})
		for _, a := range c.ApplicationKeys() {
			if _, dup := seen[a.ApplNo]; dup {
				continue
			}
			seen[a.ApplNo] = struct{}{}
			s.appIndex[a.ApplNo] = append(s.appIndex[a.ApplNo], c.ID())
		}
		return true
	})
}

// Registry exposes the underlying registry for snapshot stores.
func (s *Service) Registry() *equivalence.Registry { return s.registry }

// WriteSnapshot externalizes the registry state to w.
func (s *Service) WriteSnapshot(w io.Writer) error {
	return s.registry.WriteSnapshot(w)
}

// ClassOf returns the id of the class owning the formulation key.
func (s *Service) ClassOf(k formulation.Key) (equivalence.ClassID, bool) {
	if c := s.registry.LookupFormulation(k); c != nil {
		return c.ID(), true
	}
	return 0, false
}

// ClassOfApplication returns the id of the class owning the application key.
func (s *Service) ClassOfApplication(a formulation.ApplicationKey) (equivalence.ClassID, bool) {
	if c := s.registry.LookupApplication(a); c != nil {
		return c.ID(), true
	}
	return 0, false
}

// MembersOf returns the class with the given id.
func (s *Service) MembersOf(id equivalence.ClassID) (*equivalence.Class, error) {
	return s.registry.Class(id)
}

// AllClasses returns the live class ids in stable ascending order.
func (s *Service) AllClasses() []equivalence.ClassID {
	return s.registry.ClassIDs()
}

// Equivalent reports whether any formulation of the class denotes the same
// product as rec.  Decisions go through the match cache when one is
// configured.
func (s *Service) Equivalent(ctx context.Context, id equivalence.ClassID, rec matching.Record) (bool, error) {
	c, err := s.registry.Class(id)
	if err != nil {
		return false, err
	}
	compute := func() (bool, error) { return matching.Equivalent(c, rec), nil }

	var ok bool
	if s.cache != nil {
		ok, err = s.cache.Equivalent(ctx, id, rec, compute)
		if err != nil {
			return false, err
		}
	} else {
		ok, _ = compute()
	}
	s.metrics.ObserveMatch(ok)
	return ok, nil
}

// ResolveRecord returns the ids of every live class rec is equivalent to.
// Streamed match requests carry no application number, so every class is
// tested.
func (s *Service) ResolveRecord(ctx context.Context, rec matching.Record) ([]equivalence.ClassID, error) {
	var ids []equivalence.ClassID
	for _, id := range s.registry.ClassIDs() {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "resolve canceled")
		}
		ok, err := s.Equivalent(ctx, id, rec)
		if err != nil {
			return nil, err
		}
		if ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// EquivalentKey applies the predicate to a single formulation key.
func (s *Service) EquivalentKey(k formulation.Key, rec matching.Record) bool {
	ok := matching.Equivalent(matching.Single{Key: k}, rec)
	s.metrics.ObserveMatch(ok)
	return ok
}

// Link associates one consolidated second-corpus record with the classes it
// is equivalent to.  An empty Classes slice means the record matched
// nothing.
type Link struct {
	Record  dataset.NDCRecord     `json:"record"`
	Classes []equivalence.ClassID `json:"classes"`
}

// LinkReport summarizes one LinkNDC invocation.  UnmatchedClasses lists the
// classes no record was found equivalent to; links with empty Classes are
// the records left unmatched on the other side.
type LinkReport struct {
	RunID            string                `json:"run_id"`
	Links            []Link                `json:"links"`
	Linked           int                   `json:"linked"`
	Unlinked         int                   `json:"unlinked"`
	UnmatchedClasses []equivalence.ClassID `json:"unmatched_classes"`
}

// LinkNDC consolidates the second corpus and tests every record against the
// classes sharing its application number.  Unmatched records and unmatched
// classes are both reported; neither is an error.
func (s *Service) LinkNDC(ctx context.Context) (*LinkReport, error) {
	if !s.registry.Frozen() {
		return nil, errors.New(errors.ErrCodeRegistryFrozen, "registry must be built before linking")
	}
	if s.ndc == nil {
		return nil, errors.New(errors.CodeInternal, "no ndc source configured")
	}

	runID := uuid.NewString()
	s.publish(ctx, runID, EventLinkStarted, nil)

	recs, err := s.ndc.Consolidate()
	if err != nil {
		return nil, err
	}

	report := &LinkReport{RunID: runID, Links: make([]Link, 0, len(recs))}
	matched := make(map[equivalence.ClassID]struct{})
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "link run canceled")
		}
		link := Link{Record: rec}
		for _, id := range s.appIndex[rec.ApplNo] {
			c, err := s.registry.Class(id)
			if err != nil {
				return nil, err
			}
			ok := matching.Equivalent(c, rec.Record())
			s.metrics.ObserveMatch(ok)
			if ok {
				link.Classes = append(link.Classes, id)
				matched[id] = struct{}{}
			}
		}
		if len(link.Classes) > 0 {
			report.Linked++
		} else {
			report.Unlinked++
		}
		report.Links = append(report.Links, link)
	}

	for _, id := range s.registry.ClassIDs() {
		if _, ok := matched[id]; !ok {
			report.UnmatchedClasses = append(report.UnmatchedClasses, id)
		}
	}

	s.publish(ctx, runID, EventLinkFinished, map[string]any{
		"linked":            report.Linked,
		"unlinked":          report.Unlinked,
		"unmatched_classes": len(report.UnmatchedClasses),
	})
	s.log.Info("ndc link run finished",
		logging.String("run_id", runID),
		logging.Int("linked", report.Linked),
		logging.Int("unlinked", report.Unlinked),
		logging.Int("unmatched_classes", len(report.UnmatchedClasses)))
	return report, nil
}

// Nonequivalents returns the live classes no consolidated second-corpus
// record is equivalent to.  Unlike LinkNDC it emits no run events; it is a
// pure query over the same join.
func (s *Service) Nonequivalents(ctx context.Context) ([]equivalence.ClassID, error) {
	if !s.registry.Frozen() {
		return nil, errors.New(errors.ErrCodeRegistryFrozen, "registry must be built before linking")
	}
	if s.ndc == nil {
		return nil, errors.New(errors.CodeInternal, "no ndc source configured")
	}

	recs, err := s.ndc.Consolidate()
	if err != nil {
		return nil, err
	}

	matched := make(map[equivalence.ClassID]struct{})
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "link run canceled")
		}
		for _, id := range s.appIndex[rec.ApplNo] {
			if _, done := matched[id]; done {
				continue
			}
			c, err := s.registry.Class(id)
			if err != nil {
				return nil, err
			}
			if matching.Equivalent(c, rec.Record()) {
				matched[id] = struct{}{}
			}
		}
	}

	var out []equivalence.ClassID
	for _, id := range s.registry.ClassIDs() {
		if _, ok := matched[id]; !ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *Service) publish(ctx context.Context, runID string, t EventType, payload map[string]any) {
	ev := Event{RunID: runID, Type: t, OccurredAt: time.Now().UTC(), Payload: payload}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn("failed to publish run event",
			logging.String("type", string(t)), logging.Err(err))
	}
}
