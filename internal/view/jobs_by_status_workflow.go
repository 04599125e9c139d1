package view

import "encoding/json"

const (
	// JobsByStatusWorkflowName is the view's name in the WMStats design.
	JobsByStatusWorkflowName = "jobsByStatusWorkflow"

	// JobSummaryType is the type tag of documents the view indexes.
	JobSummaryType = "jobsummary"
)

// JobKey is the composite key emitted by jobsByStatusWorkflow. It encodes as
// the JSON array [workflow, state, exitcode, site, errorTypes].
type JobKey struct {
	Workflow   Value
	State      Value
	ExitCode   Value
	Site       Value
	ErrorTypes []string
}

// MarshalJSON implements json.Marshaler.
func (k JobKey) MarshalJSON() ([]byte, error) {
	types := k.ErrorTypes
	if types == nil {
		types = []string{}
	}
	return json.Marshal([]any{k.Workflow, k.State, k.ExitCode, k.Site, types})
}

// JobValue is the value emitted alongside a JobKey.
type JobValue struct {
	ID Value `json:"id"`
}

// JobsByStatusWorkflow indexes job summaries by workflow, state, exit code,
// site and the sorted list of error types reported by the job's steps.
type JobsByStatusWorkflow struct{}

// Name implements View.
func (JobsByStatusWorkflow) Name() string { return JobsByStatusWorkflowName }

// DocType implements TypeFilter.
func (JobsByStatusWorkflow) DocType() string { return JobSummaryType }

// Map emits exactly one row for a job summary and nothing for any other
// document.
func (v JobsByStatusWorkflow) Map(doc *Document, emit Emitter) {
	key, value, ok := v.Entry(doc)
	if !ok {
		return
	}
	emit(key, value)
}

// Entry derives the index entry for doc. ok is false when doc is not a job
// summary.
func (JobsByStatusWorkflow) Entry(doc *Document) (key JobKey, value JobValue, ok bool) {
	if doc == nil || !doc.HasType(JobSummaryType) {
		return JobKey{}, JobValue{}, false
	}

	key = JobKey{
		Workflow:   doc.Workflow,
		State:      doc.State,
		ExitCode:   doc.ExitCode,
		Site:       doc.Site,
		ErrorTypes: doc.Errors.Types(),
	}
	return key, JobValue{ID: doc.ID}, true
}
