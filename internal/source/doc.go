// Package source finds and reads the documents fed to a view.
//
// Documents come from files on disk (or stdin) in the shapes the database
// and its tooling produce: a single document, a JSON array, the
// _all_docs?include_docs=true response, a _bulk_docs request body, or
// newline-delimited JSON. Each document is returned undecoded as a Raw so
// the runner can decide whether it is worth decoding at all.
package source
