package workflow

import (
	"bitbucket.org/mmdatafocus/dq_backend/dqcheck"
	"bitbucket.org/mmdatafocus/dq_backend/models"
	"bitbucket.org/mmdatafocus/dq_backend/reasoner"
)

type columnRef struct {
	Table  string
	Column string
}

// BuildRequest turns the observations of one run into the consolidated
// request. Row-level NULL_VALUE observations are represented by their
// column's MISSING_AGGREGATE entry, and repeated (table, column, summary)
// entries are sent once. Order follows the observations.
func BuildRequest(entityID int64, observations []dqcheck.Observation, descriptions map[columnRef]string) reasoner.Request {
	req := reasoner.Request{EntityID: entityID, Issues: []reasoner.RequestIssue{}}
	seen := make(map[reasoner.RequestIssue]bool)
	for _, obs := range observations {
		if obs.Kind == dqcheck.NullValue {
			continue
		}
		desc, ok := descriptions[columnRef{obs.Table, obs.Column}]
		if !ok || desc == "" {
			desc = models.NoDescription
		}
		issue := reasoner.RequestIssue{
			Table:       obs.Table,
			Column:      obs.Column,
			Description: desc,
			Summary:     obs.Summary(),
		}
		dedupe := issue
		dedupe.Description = ""
		if seen[dedupe] {
			continue
		}
		seen[dedupe] = true
		req.Issues = append(req.Issues, issue)
	}
	return req
}

// distinctColumns lists the (table, column) pairs that need a description,
// skipping the row-level nulls that never reach the request.
func distinctColumns(observations []dqcheck.Observation) []columnRef {
	var out []columnRef
	seen := make(map[columnRef]bool)
	for _, obs := range observations {
		if obs.Kind == dqcheck.NullValue {
			continue
		}
		ref := columnRef{obs.Table, obs.Column}
		if !seen[ref] {
			seen[ref] = true
			out = append(out, ref)
		}
	}
	return out
}
