// Package export defines the Writer seam between the archive core and an
// open-format export stage. It ships no concrete writer: translating the
// catalog into mzML/mzXML-style output is an external collaborator, same
// as RawReader on the input side.
package export

import (
	"context"

	"github.com/mzcore/msarchive/internal/msdata"
)

// Format names an open export format a Writer can target.
type Format string

const (
	OpenXML        Format = "openxml"
	OpenIndexedXML Format = "openindexedxml"
)

// Options carries the export-time knobs a concrete Writer interprets;
// the core never inspects its contents.
type Options struct {
	// Compress requests whatever compression the target format supports.
	Compress bool
	// Pretty requests human-readable (indented) output where the format
	// allows it.
	Pretty bool
}

// Writer drains a stream of scans in ascending scan-id order and renders
// them into format. Implementations are not part of the core; cmd/msconvert
// and tests compile against this interface as a documented seam only.
type Writer interface {
	Write(ctx context.Context, spectra <-chan msdata.Scan, format Format, opts Options) error
}
