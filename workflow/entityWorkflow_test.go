package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/dq_backend/dqcheck"
	"bitbucket.org/mmdatafocus/dq_backend/models"
	"bitbucket.org/mmdatafocus/dq_backend/reasoner"
)

const entity = int64(100002)

var fixedNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func newTestOrchestrator(store *fakeStore, r Reasoner, opts ...Option) *Orchestrator {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewOrchestrator(store, r, dqcheck.DefaultRegistry(), quietLogger(), opts...)
}

// Five previous applications: two without annuity, one with a negative
// credit amount.
func seedPreviousApplications(store *fakeStore) {
	store.rows[dqcheck.TablePreviousApplication] = []dqcheck.Row{
		prevRow(entity, 1, dqcheck.Null(), dqcheck.Int(1000)),
		prevRow(entity, 2, dqcheck.Null(), dqcheck.Int(-500)),
		prevRow(entity, 3, dqcheck.Int(120), dqcheck.Int(2000)),
		prevRow(entity, 4, dqcheck.Int(130), dqcheck.Int(3000)),
		prevRow(entity, 5, dqcheck.Int(140), dqcheck.Int(4000)),
	}
	store.descriptions[dqcheck.TablePreviousApplication+".AMT_ANNUITY"] = "Annuity of previous application"
}

func TestProcessEntityBuildsOneEntryPerDistinctIssue(t *testing.T) {
	store := newFakeStore()
	seedPreviousApplications(store)
	r := &fakeReasoner{}

	report, err := newTestOrchestrator(store, r).ProcessEntity(context.Background(), entity)
	if err != nil {
		t.Fatalf("ProcessEntity: %v", err)
	}

	issues := report.Request.Issues
	if len(issues) != 2 {
		t.Fatalf("expected 2 request entries, got %d: %+v", len(issues), issues)
	}
	want := []struct{ column, summary, description string }{
		{"AMT_CREDIT", "High severity NEGATIVE_VALUE issue: -500", models.NoDescription},
		{"AMT_ANNUITY", "High severity MISSING_AGGREGATE issue: 40.0% missing (2 of 5 rows)", "Annuity of previous application"},
	}
	for i, w := range want {
		got := issues[i]
		if got.Table != dqcheck.TablePreviousApplication || got.Column != w.column {
			t.Fatalf("entry %d: got %s.%s", i, got.Table, got.Column)
		}
		if got.Summary != w.summary {
			t.Fatalf("entry %d summary = %q, want %q", i, got.Summary, w.summary)
		}
		if got.Description != w.description {
			t.Fatalf("entry %d description = %q", i, got.Description)
		}
	}

	// Two NULL_VALUE rows, one MISSING_AGGREGATE, one NEGATIVE_VALUE.
	stored := store.checks["PREV_APP_CHECKS"]
	if len(stored) != 4 {
		t.Fatalf("expected 4 stored observations, got %d", len(stored))
	}
	for _, obs := range stored {
		if obs.Key.Curr != entity || obs.CreatedAt != fixedNow {
			t.Fatalf("observation not attributed to the entity: %+v", obs)
		}
	}

	if r.calls() != 1 {
		t.Fatalf("reasoner called %d times", r.calls())
	}
	if len(store.suggestions) != 1 || store.suggestions[0].RuleSeverity != "High" {
		t.Fatalf("unexpected suggestions %+v", store.suggestions)
	}
	if len(store.runs) != 1 || store.runs[0].Status != models.DqRunStatusSuccess || store.runs[0].RequestIssues != 2 {
		t.Fatalf("unexpected run record %+v", store.runs)
	}

	wantStates := []State{StateStart, StateReset, StateDetect, StateEnrich, StatePersistIssues,
		StateBuildRequest, StateCallReasoner, StatePersistSuggestions, StateDone}
	if len(report.States) != len(wantStates) {
		t.Fatalf("states = %v", report.States)
	}
	for i := range wantStates {
		if report.States[i] != wantStates[i] {
			t.Fatalf("states = %v", report.States)
		}
	}
}

func TestProcessEntityIsIdempotent(t *testing.T) {
	store := newFakeStore()
	seedPreviousApplications(store)
	o := newTestOrchestrator(store, &fakeReasoner{})

	if _, err := o.ProcessEntity(context.Background(), entity); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first := store.totalChecks()
	if _, err := o.ProcessEntity(context.Background(), entity); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if got := store.totalChecks(); got != first {
		t.Fatalf("reprocessing changed stored observations: %d -> %d", first, got)
	}
	if len(store.suggestions) != 1 {
		t.Fatalf("expected suggestions of the latest run only, got %d batches", len(store.suggestions))
	}
	if len(store.runs) != 2 {
		t.Fatalf("run history must keep both runs, got %d", len(store.runs))
	}
}

func TestProcessEntityAbstainsWhenReasonerIsDown(t *testing.T) {
	store := newFakeStore()
	seedPreviousApplications(store)
	client, err := reasoner.NewClient("http://127.0.0.1:1/analyze_combined", time.Second, quietLogger())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	report, err := newTestOrchestrator(store, client).ProcessEntity(context.Background(), entity)
	if err != nil {
		t.Fatalf("ProcessEntity: %v", err)
	}
	if !report.Abstained || len(report.Suggestions) != 1 || !report.Suggestions[0].IsAbstain() {
		t.Fatalf("expected a single abstain suggestion, got %+v", report.Suggestions)
	}
	if report.States[len(report.States)-1] != StateDone {
		t.Fatalf("run must end in Done, got %v", report.States)
	}
	sawAborted := false
	for _, s := range report.States {
		if s == StateAborted {
			sawAborted = true
		}
	}
	if !sawAborted {
		t.Fatalf("expected Aborted state, got %v", report.States)
	}
	if len(store.suggestions) != 1 || !store.suggestions[0].Abstained {
		t.Fatalf("abstain record not persisted: %+v", store.suggestions)
	}
	if store.runs[0].Status != models.DqRunStatusAborted || store.runs[0].LastError == nil {
		t.Fatalf("unexpected run %+v", store.runs[0])
	}
	if store.totalChecks() != 4 {
		t.Fatalf("observations must be kept when the reasoner fails")
	}
}

func TestProcessEntityCallsReasonerWithoutIssues(t *testing.T) {
	store := newFakeStore()
	r := &fakeReasoner{}
	report, err := newTestOrchestrator(store, r).ProcessEntity(context.Background(), entity)
	if err != nil {
		t.Fatalf("ProcessEntity: %v", err)
	}
	if r.calls() != 1 || len(report.Request.Issues) != 0 || report.Request.Issues == nil {
		t.Fatalf("expected one call with an empty issue list, got %+v", report.Request)
	}
}

func TestProcessEntityConfigErrors(t *testing.T) {
	t.Run("invalid entity id", func(t *testing.T) {
		store := newFakeStore()
		r := &fakeReasoner{}
		_, err := newTestOrchestrator(store, r).ProcessEntity(context.Background(), 0)
		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) || !errors.Is(err, ErrInvalidEntityID) {
			t.Fatalf("expected ConfigError(ErrInvalidEntityID), got %v", err)
		}
		if r.calls() != 0 || len(store.runs) != 0 {
			t.Fatalf("nothing may run for an invalid id")
		}
	})

	t.Run("unknown table", func(t *testing.T) {
		store := newFakeStore()
		store.loadErr[dqcheck.TableBureau] = fmt.Errorf("%s: %w", dqcheck.TableBureau, ErrUnknownTable)
		r := &fakeReasoner{}
		_, err := newTestOrchestrator(store, r).ProcessEntity(context.Background(), entity)
		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) || !errors.Is(err, ErrUnknownTable) {
			t.Fatalf("expected ConfigError(ErrUnknownTable), got %v", err)
		}
		if r.calls() != 0 || store.insertCalls != 0 {
			t.Fatalf("nothing may be written on a config error")
		}
	})
}

func TestProcessEntityResetFailureWritesNothing(t *testing.T) {
	store := newFakeStore()
	seedPreviousApplications(store)
	store.resetErr = errors.New("lock wait timeout exceeded")
	r := &fakeReasoner{}

	_, err := newTestOrchestrator(store, r).ProcessEntity(context.Background(), entity)
	if err == nil {
		t.Fatalf("expected reset error")
	}
	if store.insertCalls != 0 || r.calls() != 0 || len(store.suggestions) != 0 {
		t.Fatalf("a failed reset must stop the run before anything is written")
	}
	if len(store.runs) != 1 || store.runs[0].Status != models.DqRunStatusFailed {
		t.Fatalf("failed run must be recorded: %+v", store.runs)
	}
}

func TestProcessEntityContinuesAfterInsertFailure(t *testing.T) {
	store := newFakeStore()
	seedPreviousApplications(store)
	store.failInsert = func(obs dqcheck.Observation) error {
		if obs.Kind == dqcheck.NegativeValue {
			return errors.New("Duplicate entry")
		}
		return nil
	}

	report, err := newTestOrchestrator(store, &fakeReasoner{}).ProcessEntity(context.Background(), entity)
	if err != nil {
		t.Fatalf("ProcessEntity: %v", err)
	}
	if report.IssueWriteFailures != 1 {
		t.Fatalf("expected 1 write failure, got %d", report.IssueWriteFailures)
	}
	if store.totalChecks() != 3 {
		t.Fatalf("remaining observations must be written, got %d", store.totalChecks())
	}
	if len(report.Request.Issues) != 2 {
		t.Fatalf("request must still carry every issue, got %d", len(report.Request.Issues))
	}
}

func TestProcessEntityRejectsRowsWithoutKey(t *testing.T) {
	store := newFakeStore()
	store.rows[dqcheck.TablePreviousApplication] = []dqcheck.Row{
		prevRow(entity, 1, dqcheck.Int(10), dqcheck.Int(10)),
		dqcheck.Cells{
			{Column: dqcheck.ColPrev, Value: dqcheck.Int(2)},
			{Column: dqcheck.ColCurr, Value: dqcheck.Null()},
			{Column: "AMT_ANNUITY", Value: dqcheck.Int(-1)},
		},
		prevRow(999, 3, dqcheck.Int(-5), dqcheck.Int(10)),
	}

	report, err := newTestOrchestrator(store, &fakeReasoner{}).ProcessEntity(context.Background(), entity)
	if err != nil {
		t.Fatalf("ProcessEntity: %v", err)
	}
	if report.RejectedRows != 2 || report.RowsScanned != 3 {
		t.Fatalf("rejected=%d scanned=%d", report.RejectedRows, report.RowsScanned)
	}
	if store.totalChecks() != 0 {
		t.Fatalf("rejected rows must not produce observations")
	}
	if store.runs[0].RejectedRows != 2 {
		t.Fatalf("run must count rejected rows")
	}
}

func TestProcessEntityCollapsesDuplicateRows(t *testing.T) {
	store := newFakeStore()
	store.rows[dqcheck.TablePreviousApplication] = []dqcheck.Row{
		prevRow(entity, 7, dqcheck.Int(10), dqcheck.Int(10)),
		prevRow(entity, 7, dqcheck.Int(10), dqcheck.Int(10)),
		prevRow(entity, 7, dqcheck.Int(10), dqcheck.Int(10)),
	}

	report, err := newTestOrchestrator(store, &fakeReasoner{}).ProcessEntity(context.Background(), entity)
	if err != nil {
		t.Fatalf("ProcessEntity: %v", err)
	}
	if got := len(store.checks["PREV_APP_CHECKS"]); got != 3 {
		t.Fatalf("every duplicate row is stored, got %d", got)
	}
	if len(report.Request.Issues) != 1 {
		t.Fatalf("duplicates must reach the request once, got %+v", report.Request.Issues)
	}
	if report.Request.Issues[0].Column != "SK_ID_CURR|SK_ID_PREV" {
		t.Fatalf("unexpected column %q", report.Request.Issues[0].Column)
	}
}

func TestProcessEntitySerializesPerEntity(t *testing.T) {
	store := newFakeStore()
	seedPreviousApplications(store)

	var inFlight, maxInFlight int32
	r := &fakeReasoner{analyze: func(ctx context.Context, req reasoner.Request) reasoner.Result {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return reasoner.Result{Suggestions: []reasoner.Suggestion{reasoner.Abstain()}, Abstained: true}
	}}
	o := newTestOrchestrator(store, r, WithLocker(NewLocalLocker(5*time.Second)))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := o.ProcessEntity(context.Background(), entity); err != nil {
				t.Errorf("ProcessEntity: %v", err)
			}
		}()
	}
	wg.Wait()

	if maxInFlight != 1 {
		t.Fatalf("runs for one entity overlapped: max in flight %d", maxInFlight)
	}
	if store.totalChecks() != 4 {
		t.Fatalf("serialized runs must leave one run's observations, got %d", store.totalChecks())
	}
}

func TestProcessEntityBusy(t *testing.T) {
	locker := NewLocalLocker(0)
	release, err := locker.Lock(context.Background(), entityLockKey(entity))
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer release()

	o := newTestOrchestrator(newFakeStore(), &fakeReasoner{}, WithLocker(locker))
	if _, err := o.ProcessEntity(context.Background(), entity); !errors.Is(err, ErrEntityBusy) {
		t.Fatalf("expected ErrEntityBusy, got %v", err)
	}
}

func TestProcessEntityFinishesWhenSuggestionsCannotBeStored(t *testing.T) {
	store := newFakeStore()
	seedPreviousApplications(store)
	store.suggestionErr = errors.New("lock wait timeout")

	report, err := newTestOrchestrator(store, &fakeReasoner{}).ProcessEntity(context.Background(), entity)
	if err != nil {
		t.Fatalf("ProcessEntity: %v", err)
	}
	if report.States[len(report.States)-1] != StateDone {
		t.Fatalf("run did not finish: %v", report.States)
	}
	if len(store.checks["PREV_APP_CHECKS"]) != 4 {
		t.Fatalf("issues should stay persisted")
	}
	if len(store.runs) != 1 || store.runs[0].Status != models.DqRunStatusSuccess || store.runs[0].LastError == nil {
		t.Fatalf("run row should carry the suggestion failure: %+v", store.runs)
	}
}
