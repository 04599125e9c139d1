// Package view implements WMStats view map functions in Go.
//
// A view is a pure function over a single document. The hosting database
// calls it once per stored document and collects whatever it emits into a
// secondary index. This package only derives the emitted rows; sorting rows
// across documents, persisting them and answering queries belong to the
// database.
//
// The one view shipped here is jobsByStatusWorkflow from the WMStats design:
//
//	reg := view.Default()
//	v, _ := reg.Lookup(view.JobsByStatusWorkflowName)
//
//	var doc view.Document
//	if err := json.Unmarshal(data, &doc); err != nil {
//	    return err
//	}
//	rows := view.Collect(v, &doc)
//
// # Decoding
//
// Documents are loosely typed. Key components are kept as raw JSON values so
// that an exit code stored as a string stays a string and a missing field
// becomes null, and the per-step error tree decodes leniently: anything that
// is not shaped like an error record is dropped rather than rejected.
package view
