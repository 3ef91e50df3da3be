package workflow

import (
	"context"
	"io"
	"sync"

	"bitbucket.org/mmdatafocus/dq_backend/dqcheck"
	"bitbucket.org/mmdatafocus/dq_backend/models"
	"bitbucket.org/mmdatafocus/dq_backend/reasoner"
	"github.com/sirupsen/logrus"
)

// These tests are DB-free: fakeStore keeps check stores, suggestions and
// runs in memory with the same reset semantics as the MySQL store.

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type fakeStore struct {
	mu           sync.Mutex
	rows         map[string][]dqcheck.Row
	checks       map[string][]dqcheck.Observation
	descriptions map[string]string
	suggestions  []models.SuggestionBatch
	runs         []*models.DqRun

	resetErr      error
	suggestionErr error
	loadErr       map[string]error
	failInsert    func(dqcheck.Observation) error

	insertCalls int
	truncated   []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rows:         map[string][]dqcheck.Row{},
		checks:       map[string][]dqcheck.Observation{},
		descriptions: map[string]string{},
		loadErr:      map[string]error{},
	}
}

func (s *fakeStore) LoadEntityRows(ctx context.Context, table string, entityID int64) ([]dqcheck.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadErr[table]; err != nil {
		return nil, err
	}
	return s.rows[table], nil
}

func (s *fakeStore) LoadTableRows(ctx context.Context, table string) ([]dqcheck.Row, error) {
	return s.LoadEntityRows(ctx, table, 0)
}

func (s *fakeStore) ResetEntity(ctx context.Context, entityID int64, checkTables []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resetErr != nil {
		return s.resetErr
	}
	for _, t := range checkTables {
		kept := s.checks[t][:0]
		for _, o := range s.checks[t] {
			if o.Key.Curr != entityID {
				kept = append(kept, o)
			}
		}
		s.checks[t] = kept
	}
	keptSuggestions := s.suggestions[:0]
	for _, b := range s.suggestions {
		if b.EntityID != entityID {
			keptSuggestions = append(keptSuggestions, b)
		}
	}
	s.suggestions = keptSuggestions
	return nil
}

func (s *fakeStore) TruncateChecks(ctx context.Context, checkTables []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range checkTables {
		delete(s.checks, t)
		s.truncated = append(s.truncated, t)
	}
	return nil
}

func (s *fakeStore) InsertIssue(ctx context.Context, checkTable string, obs dqcheck.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertCalls++
	if s.failInsert != nil {
		if err := s.failInsert(obs); err != nil {
			return err
		}
	}
	s.checks[checkTable] = append(s.checks[checkTable], obs)
	return nil
}

func (s *fakeStore) DescribeColumn(ctx context.Context, table, column string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.descriptions[table+"."+column]
	return d, ok, nil
}

func (s *fakeStore) InsertSuggestions(ctx context.Context, batch models.SuggestionBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.suggestionErr != nil {
		return s.suggestionErr
	}
	s.suggestions = append(s.suggestions, batch)
	return nil
}

func (s *fakeStore) RecordRun(ctx context.Context, run *models.DqRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

func (s *fakeStore) totalChecks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, obs := range s.checks {
		n += len(obs)
	}
	return n
}

type fakeReasoner struct {
	mu       sync.Mutex
	requests []reasoner.Request
	analyze  func(ctx context.Context, req reasoner.Request) reasoner.Result
}

func (r *fakeReasoner) Analyze(ctx context.Context, req reasoner.Request) reasoner.Result {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()
	if r.analyze != nil {
		return r.analyze(ctx, req)
	}
	return reasoner.Result{
		Suggestions: []reasoner.Suggestion{{
			DQDimension:       "Completeness",
			Suggestion:        "Backfill missing annuities from the loan system",
			Severity:          "high",
			Confidence:        0.8,
			Rationale:         "Annuity is required for affordability checks",
			LineageHypothesis: []reasoner.LineageLink{},
			FollowUpChecks:    []string{},
		}},
		Raw: `{"dq_dimension":"Completeness"}`,
	}
}

func (r *fakeReasoner) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

func int64Ptr(v int64) *int64 { return &v }

func prevRow(curr, prev int64, annuity, credit dqcheck.Value) dqcheck.Row {
	return dqcheck.Cells{
		{Column: dqcheck.ColPrev, Value: dqcheck.Int(prev)},
		{Column: dqcheck.ColCurr, Value: dqcheck.Int(curr)},
		{Column: "AMT_ANNUITY", Value: annuity},
		{Column: "AMT_CREDIT", Value: credit},
	}
}
