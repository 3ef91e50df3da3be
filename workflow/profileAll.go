package workflow

import (
	"context"
	"errors"

	"bitbucket.org/mmdatafocus/dq_backend/config"
	"bitbucket.org/mmdatafocus/dq_backend/dqcheck"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TableProfile is the outcome of one table of a full sweep.
type TableProfile struct {
	Table         string `json:"table"`
	CheckTable    string `json:"check_table"`
	Rows          int    `json:"rows"`
	RejectedRows  int    `json:"rejected_rows"`
	Issues        int    `json:"issues"`
	WriteFailures int    `json:"write_failures"`
	Error         string `json:"error,omitempty"`
}

// ProfileAll scans every registered table in full and writes the row-level
// and duplicate observations to the check stores. With truncateFirst the
// stores are emptied before the scan, once the entity runs already in
// flight in this process have finished. Only one sweep runs at a time.
func (o *Orchestrator) ProfileAll(ctx context.Context, truncateFirst bool) ([]TableProfile, error) {
	release, err := o.locker.Lock(ctx, sweepLockKey)
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, span := tracer.Start(ctx, "dq.ProfileAll", trace.WithAttributes(attribute.Bool("dq.truncate_first", truncateFirst)))
	defer span.End()

	if truncateFirst {
		o.truncateMu.Lock()
		err := o.store.TruncateChecks(ctx, o.registry.CheckTables())
		o.truncateMu.Unlock()
		if err != nil {
			span.RecordError(err)
			if errors.Is(err, ErrUnknownTable) {
				return nil, &ConfigError{Op: "truncate", Err: err}
			}
			return nil, err
		}
	}

	now := o.now()
	profiles := make([]TableProfile, 0, len(o.registry.Tables()))
	for _, spec := range o.registry.Tables() {
		p := TableProfile{Table: spec.Name, CheckTable: spec.CheckTable}
		log := o.logger.WithFields(logrus.Fields{"table": spec.Name, "field": "ProfileAll"})

		rows, err := o.store.LoadTableRows(ctx, spec.Name)
		if err != nil {
			if errors.Is(err, ErrUnknownTable) {
				return profiles, &ConfigError{Op: "profile", Err: err}
			}
			config.LogError(o.logger, moduleName, "ProfileAll", "load rows", spec.Name, err)
			p.Error = err.Error()
			profiles = append(profiles, p)
			continue
		}
		p.Rows = len(rows)

		var observations []dqcheck.Observation
		for _, row := range rows {
			obs, err := dqcheck.Evaluate(spec, row)
			if err != nil {
				p.RejectedRows++
				rejectedRowsTotal.WithLabelValues(spec.Name).Inc()
				continue
			}
			observations = append(observations, obs...)
		}
		dups, _ := dqcheck.FindDuplicates(spec, rows)
		observations = append(observations, dups...)
		if p.RejectedRows > 0 {
			log.WithField("rejected_rows", p.RejectedRows).Warn("rows without entity key skipped")
		}

		for _, obs := range observations {
			obs.CreatedAt = now
			if err := o.store.InsertIssue(ctx, spec.CheckTable, obs); err != nil {
				p.WriteFailures++
				log.WithFields(logrus.Fields{"column": obs.Column, "kind": obs.Kind}).WithError(err).Error("issue insert failed")
				continue
			}
			p.Issues++
			issuesTotal.WithLabelValues(obs.Table, string(obs.Kind), obs.Severity.String()).Inc()
		}
		profiles = append(profiles, p)
	}

	o.logger.WithFields(logrus.Fields{"tables": len(profiles), "truncate_first": truncateFirst}).Info("dq profile sweep finished")
	return profiles, nil
}
