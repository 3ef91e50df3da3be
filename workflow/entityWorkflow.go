package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/dq_backend/config"
	"bitbucket.org/mmdatafocus/dq_backend/dqcheck"
	"bitbucket.org/mmdatafocus/dq_backend/models"
	"bitbucket.org/mmdatafocus/dq_backend/reasoner"
	"bitbucket.org/mmdatafocus/dq_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const moduleName = "workflow"

var tracer = otel.Tracer("dq-pipeline")

type State string

const (
	StateStart              State = "Start"
	StateReset              State = "Reset"
	StateDetect             State = "Detect"
	StateEnrich             State = "Enrich"
	StatePersistIssues      State = "Persist-Issues"
	StateBuildRequest       State = "Build-Request"
	StateCallReasoner       State = "Call-Reasoner"
	StateAborted            State = "Aborted"
	StatePersistSuggestions State = "Persist-Suggestions"
	StateDone               State = "Done"
)

var ErrInvalidEntityID = errors.New("entity id must be a positive integer")

// ConfigError is returned when a run cannot start because of the way the
// pipeline is configured or invoked. No observation or suggestion is
// written when it occurs.
type ConfigError struct {
	Op  string
	Err error
}

func (e *ConfigError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *ConfigError) Unwrap() error { return e.Err }

// RunReport summarises one ProcessEntity call.
type RunReport struct {
	EntityID           int64                 `json:"entity_id"`
	CorrelationId      string                `json:"correlation_id"`
	TriggeredBy        string                `json:"triggered_by"`
	States             []State               `json:"states"`
	RowsScanned        int                   `json:"rows_scanned"`
	RejectedRows       int                   `json:"rejected_rows"`
	Observations       []dqcheck.Observation `json:"-"`
	IssuesFound        int                   `json:"issues_found"`
	IssueWriteFailures int                   `json:"issue_write_failures"`
	Request            reasoner.Request      `json:"request"`
	Suggestions        []reasoner.Suggestion `json:"suggestions"`
	Abstained          bool                  `json:"abstained"`
	ReasonerError      string                `json:"reasoner_error,omitempty"`
	MaxSeverity        string                `json:"max_severity,omitempty"`
	StartedAt          time.Time             `json:"started_at"`
	FinishedAt         time.Time             `json:"finished_at"`
}

// Orchestrator runs the per-entity pipeline.
type Orchestrator struct {
	store           Store
	reasoner        Reasoner
	registry        *dqcheck.Registry
	locker          EntityLocker
	logger          *logrus.Logger
	now             func() time.Time
	reasonerTimeout time.Duration

	// Entity runs hold a read lock; a sweep truncating the check stores
	// takes the write lock so it never wipes a run mid-flight. This covers
	// runs in this process only.
	truncateMu sync.RWMutex
}

type Option func(*Orchestrator)

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func WithReasonerTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.reasonerTimeout = d }
}

func WithLocker(l EntityLocker) Option {
	return func(o *Orchestrator) { o.locker = l }
}

func NewOrchestrator(store Store, r Reasoner, registry *dqcheck.Registry, logger *logrus.Logger, opts ...Option) *Orchestrator {
	if registry == nil {
		registry = dqcheck.DefaultRegistry()
	}
	if logger == nil {
		logger = config.GetLogger()
	}
	o := &Orchestrator{
		store:           store,
		reasoner:        r,
		registry:        registry,
		logger:          logger,
		now:             time.Now,
		reasonerTimeout: reasoner.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.locker == nil {
		o.locker = NewLocalLocker(0)
	}
	return o
}

func (o *Orchestrator) Registry() *dqcheck.Registry { return o.registry }

// ProcessEntity runs Reset, Detect, Enrich, Persist-Issues, Build-Request,
// Call-Reasoner and Persist-Suggestions for one entity. Only configuration
// problems, lock contention and a failed reset are returned as errors; any
// later failure is logged and the run still completes.
func (o *Orchestrator) ProcessEntity(ctx context.Context, entityID int64) (*RunReport, error) {
	if entityID <= 0 {
		return nil, &ConfigError{Op: "process entity", Err: fmt.Errorf("%d: %w", entityID, ErrInvalidEntityID)}
	}
	if o.store == nil || o.reasoner == nil {
		return nil, &ConfigError{Op: "process entity", Err: errors.New("store and reasoner are required")}
	}

	ctx, cid := utils.EnsureCorrelationId(ctx)
	report := &RunReport{
		EntityID:      entityID,
		CorrelationId: cid,
		TriggeredBy:   utils.GetTriggerFromContext(ctx),
		States:        []State{StateStart},
		StartedAt:     o.now(),
	}
	log := o.logger.WithFields(logrus.Fields{
		"entity_id":      entityID,
		"correlation_id": cid,
		"triggered_by":   report.TriggeredBy,
	})

	release, err := o.locker.Lock(ctx, entityLockKey(entityID))
	if err != nil {
		runsTotal.WithLabelValues("busy").Inc()
		return nil, err
	}
	defer release()
	o.truncateMu.RLock()
	defer o.truncateMu.RUnlock()

	ctx, span := tracer.Start(ctx, "dq.ProcessEntity", trace.WithAttributes(
		attribute.Int64("dq.entity_id", entityID),
		attribute.String("dq.correlation_id", cid),
	))
	defer span.End()

	// Reset
	o.enter(ctx, report, log, StateReset)
	if err := o.store.ResetEntity(ctx, entityID, o.registry.CheckTables()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reset failed")
		config.LogError(o.logger, moduleName, "ProcessEntity", "reset entity", entityID, err)
		if errors.Is(err, ErrUnknownTable) {
			runsTotal.WithLabelValues("config_error").Inc()
			return nil, &ConfigError{Op: "reset", Err: err}
		}
		o.finish(ctx, report, models.DqRunStatusFailed, err)
		return report, fmt.Errorf("reset entity %d: %w", entityID, err)
	}

	// Detect
	o.enter(ctx, report, log, StateDetect)
	observations, err := o.detect(ctx, entityID, report, log)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "detect failed")
		runsTotal.WithLabelValues("config_error").Inc()
		return nil, &ConfigError{Op: "detect", Err: err}
	}
	report.Observations = observations
	report.IssuesFound = len(observations)
	report.MaxSeverity = maxSeverity(observations)

	// Enrich
	o.enter(ctx, report, log, StateEnrich)
	descriptions := o.enrich(ctx, observations, log)

	// Persist-Issues
	o.enter(ctx, report, log, StatePersistIssues)
	o.persistIssues(ctx, observations, report, log)

	// Build-Request
	o.enter(ctx, report, log, StateBuildRequest)
	report.Request = BuildRequest(entityID, observations, descriptions)

	// Call-Reasoner
	o.enter(ctx, report, log, StateCallReasoner)
	result := o.callReasoner(ctx, report.Request)
	report.Suggestions = result.Suggestions
	report.Abstained = result.Abstained
	if result.Err != nil {
		report.ReasonerError = result.Err.Error()
		o.enter(ctx, report, log.WithError(result.Err), StateAborted)
	}

	// Persist-Suggestions
	o.enter(ctx, report, log, StatePersistSuggestions)
	batch := models.SuggestionBatch{
		EntityID:      entityID,
		CorrelationId: cid,
		Request:       report.Request,
		Raw:           result.Raw,
		Suggestions:   result.Suggestions,
		Abstained:     result.Abstained,
		RuleSeverity:  report.MaxSeverity,
		CreatedAt:     o.now(),
	}
	runErr := result.Err
	if err := o.store.InsertSuggestions(ctx, batch); err != nil {
		span.RecordError(err)
		config.LogError(o.logger, moduleName, "ProcessEntity", "persist suggestions", entityID, err)
		if runErr == nil {
			runErr = fmt.Errorf("persist suggestions: %w", err)
		}
	}

	status := models.DqRunStatusSuccess
	if result.Err != nil {
		status = models.DqRunStatusAborted
	}
	o.finish(ctx, report, status, runErr)
	return report, nil
}

func (o *Orchestrator) enter(ctx context.Context, report *RunReport, log *logrus.Entry, state State) {
	report.States = append(report.States, state)
	trace.SpanFromContext(ctx).AddEvent(string(state))
	log.WithField("state", state).Debug("dq pipeline state")
}

// detect scans every registered table for the entity. A table that cannot
// be read is logged and skipped; an unknown table is a configuration error.
func (o *Orchestrator) detect(ctx context.Context, entityID int64, report *RunReport, log *logrus.Entry) ([]dqcheck.Observation, error) {
	var all []dqcheck.Observation
	for _, spec := range o.registry.Tables() {
		rows, err := o.store.LoadEntityRows(ctx, spec.Name, entityID)
		if err != nil {
			if errors.Is(err, ErrUnknownTable) {
				return nil, err
			}
			config.LogError(o.logger, moduleName, "detect", "load rows of "+spec.Name, entityID, err)
			continue
		}
		report.RowsScanned += len(rows)

		accepted, observations := o.evaluateRows(spec, rows, entityID, log)
		report.RejectedRows += len(rows) - len(accepted)

		dups, _ := dqcheck.FindDuplicates(spec, accepted)
		observations = append(observations, dups...)
		observations = append(observations, dqcheck.AggregateMissing(spec, entityID, len(accepted), observations)...)
		all = append(all, observations...)
	}

	now := o.now()
	for i := range all {
		all[i].CreatedAt = now
	}
	return all, nil
}

// evaluateRows runs the rule pack on each row and returns the rows whose
// key belongs to the entity together with their observations.
func (o *Orchestrator) evaluateRows(spec dqcheck.TableSpec, rows []dqcheck.Row, entityID int64, log *logrus.Entry) ([]dqcheck.Row, []dqcheck.Observation) {
	accepted := make([]dqcheck.Row, 0, len(rows))
	var observations []dqcheck.Observation
	for i, row := range rows {
		obs, err := dqcheck.Evaluate(spec, row)
		if err == nil {
			if key, _ := spec.KeyOf(row); key.Curr != entityID {
				err = fmt.Errorf("row belongs to entity %d: %w", key.Curr, dqcheck.ErrMissingEntityKey)
			}
		}
		if err != nil {
			rejectedRowsTotal.WithLabelValues(spec.Name).Inc()
			log.WithFields(logrus.Fields{"table": spec.Name, "row": i}).WithError(err).Warn("row rejected")
			continue
		}
		accepted = append(accepted, row)
		observations = append(observations, obs...)
	}
	return accepted, observations
}

func (o *Orchestrator) enrich(ctx context.Context, observations []dqcheck.Observation, log *logrus.Entry) map[columnRef]string {
	descriptions := make(map[columnRef]string)
	for _, ref := range distinctColumns(observations) {
		desc, ok, err := o.store.DescribeColumn(ctx, ref.Table, ref.Column)
		if err != nil {
			log.WithFields(logrus.Fields{"table": ref.Table, "column": ref.Column}).WithError(err).Warn("column description lookup failed")
		}
		if err != nil || !ok {
			desc = models.NoDescription
		}
		descriptions[ref] = desc
	}
	return descriptions
}

func (o *Orchestrator) persistIssues(ctx context.Context, observations []dqcheck.Observation, report *RunReport, log *logrus.Entry) {
	for _, obs := range observations {
		spec, err := o.registry.Lookup(obs.Table)
		if err == nil {
			err = o.store.InsertIssue(ctx, spec.CheckTable, obs)
		}
		if err != nil {
			report.IssueWriteFailures++
			log.WithFields(logrus.Fields{
				"table":  obs.Table,
				"column": obs.Column,
				"kind":   obs.Kind,
			}).WithError(err).Error("issue insert failed")
			continue
		}
		issuesTotal.WithLabelValues(obs.Table, string(obs.Kind), obs.Severity.String()).Inc()
	}
}

func (o *Orchestrator) callReasoner(ctx context.Context, req reasoner.Request) reasoner.Result {
	ctx, span := tracer.Start(ctx, "dq.CallReasoner", trace.WithAttributes(attribute.Int("dq.issues", len(req.Issues))))
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, o.reasonerTimeout)
	defer cancel()
	result := o.reasoner.Analyze(callCtx, req)
	if len(result.Suggestions) == 0 {
		result = reasoner.Result{
			Suggestions: []reasoner.Suggestion{reasoner.Abstain()},
			Raw:         result.Raw,
			Abstained:   true,
			Err:         result.Err,
			Latency:     result.Latency,
		}
	}

	reasonerLatency.Observe(result.Latency.Seconds())
	if result.Abstained {
		reasonerAbstains.Inc()
		if result.Err != nil {
			span.RecordError(result.Err)
		}
	}
	return result
}

func (o *Orchestrator) finish(ctx context.Context, report *RunReport, status string, runErr error) {
	report.FinishedAt = o.now()
	report.States = append(report.States, StateDone)
	runsTotal.WithLabelValues(status).Inc()

	finished := report.FinishedAt
	run := &models.DqRun{
		SkIdCurr:           report.EntityID,
		CorrelationId:      report.CorrelationId,
		TriggeredBy:        report.TriggeredBy,
		Status:             status,
		RowsScanned:        report.RowsScanned,
		RejectedRows:       report.RejectedRows,
		IssuesFound:        report.IssuesFound,
		IssueWriteFailures: report.IssueWriteFailures,
		RequestIssues:      len(report.Request.Issues),
		Suggestions:        len(report.Suggestions),
		Abstained:          report.Abstained,
		MaxSeverity:        report.MaxSeverity,
		StartedAt:          report.StartedAt,
		FinishedAt:         &finished,
		DurationMs:         finished.Sub(report.StartedAt).Milliseconds(),
	}
	if runErr != nil {
		msg := runErr.Error()
		run.LastError = &msg
	}
	if err := o.store.RecordRun(ctx, run); err != nil {
		config.LogError(o.logger, moduleName, "ProcessEntity", "record run", report.EntityID, err)
	}

	o.logger.WithFields(logrus.Fields{
		"entity_id":      report.EntityID,
		"correlation_id": report.CorrelationId,
		"status":         status,
		"issues":         report.IssuesFound,
		"request_issues": len(report.Request.Issues),
		"abstained":      report.Abstained,
		"duration_ms":    run.DurationMs,
	}).Info("dq entity run finished")
}

func maxSeverity(observations []dqcheck.Observation) string {
	if len(observations) == 0 {
		return ""
	}
	max := dqcheck.SeverityLow
	for _, obs := range observations {
		max = max.Max(obs.Severity)
	}
	return max.String()
}
