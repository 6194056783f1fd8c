// Package mlog provides the package-level diagnostic logger used across the
// archive core to report recoverable conditions (corrupt blobs, failed fits,
// empty spectra, and similar) without forcing every caller to thread a
// logger through constructors.
package mlog

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but
// may be replaced by SetLogger. Tests or embedding applications can redirect
// or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil sets a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Recoverable logs a recoverable condition tagged with the kind of failure
// and the scan id it concerns, the standard shape used throughout
// internal/peakpick, internal/blobcodec, and internal/convert.
func Recoverable(kind string, scanID uint32, detail string) {
	Logf("recoverable[%s]: scan=%d %s", kind, scanID, detail)
}
