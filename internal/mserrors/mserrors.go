// Package mserrors holds the sentinel errors for every failure kind the
// archive core can surface. Callers compare with errors.Is against these
// values rather than matching on error strings; each concrete error is
// produced by wrapping one of these with fmt.Errorf("...: %w", err) at
// the point of failure so context (scan id, path, offset) travels with
// it.
package mserrors

import "errors"

var (
	// ErrIOFailed means the archive or raw file could not be opened;
	// fatal.
	ErrIOFailed = errors.New("io failed")

	// ErrSchemaMismatch means an existing archive's schema version
	// differs from the writer's; fatal on write, recoverable on read
	// (the archive may still be opened read-only).
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrCorruptBlob means a blob's length is inconsistent with its
	// header. internal/spectrumiter and internal/region return it wrapped
	// with the tile id; they do not skip the tile and read on.
	ErrCorruptBlob = errors.New("corrupt blob")

	// ErrMissingEncoding means a data-encoding id referenced by a
	// spectrum is absent from the catalog; fatal on read.
	ErrMissingEncoding = errors.New("missing data encoding")

	// ErrFitFailed means the curve-fit optimizer failed to improve the
	// initial centroid estimate (singular Jacobian, non-finite
	// residual, solver failure); the caller keeps the raw centroids and
	// continues.
	ErrFitFailed = errors.New("fit failed")

	// ErrEmptySpectrum means a raw spectrum's arrays are empty; the
	// caller emits a zero-peak scan and logs once per conversion.
	ErrEmptySpectrum = errors.New("empty spectrum")

	// ErrCancelRequested is the cooperative cancellation signal: the
	// caller drains the current cycle and exits cleanly.
	ErrCancelRequested = errors.New("cancel requested")
)
