// Package logging configures structured logging for wmviews.
//
// Logs are JSON lines written through a size-rotating file writer under
// ~/.wmviews/logs/. Without --debug only warnings and errors reach stderr;
// with --debug everything down to debug level is also written to the file.
package logging
