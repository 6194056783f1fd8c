// Package convertopts holds the tunable parameters of a single conversion
// run: bounding-box tile dimensions, per-ms-level data-mode overrides, and
// the encoding/acquisition flags described in the conversion CLI. The same
// struct can be populated from command-line flags or loaded whole from a
// JSON file for batch or automated conversions.
package convertopts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultConfigPath is the canonical location for batch conversion options,
// relative to the working directory the converter is invoked from.
const DefaultConfigPath = "config/convert.defaults.json"

// MSLevelRange is an inclusive range of ms_level values, parsed from either
// a single integer ("2") or a dashed range ("2-5").
type MSLevelRange struct {
	Min int
	Max int
}

// Contains reports whether level falls within the range, inclusive.
func (r MSLevelRange) Contains(level int) bool {
	return level >= r.Min && level <= r.Max
}

// ParseMSLevelRange parses a flag value of the form "N" or "N-M".
func ParseMSLevelRange(s string) (MSLevelRange, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return MSLevelRange{}, fmt.Errorf("empty ms-level range")
	}
	if i := strings.IndexByte(s, '-'); i >= 0 {
		lo, err := strconv.Atoi(strings.TrimSpace(s[:i]))
		if err != nil {
			return MSLevelRange{}, fmt.Errorf("invalid range lower bound %q: %w", s, err)
		}
		hi, err := strconv.Atoi(strings.TrimSpace(s[i+1:]))
		if err != nil {
			return MSLevelRange{}, fmt.Errorf("invalid range upper bound %q: %w", s, err)
		}
		if hi < lo {
			return MSLevelRange{}, fmt.Errorf("invalid range %q: upper bound below lower bound", s)
		}
		return MSLevelRange{Min: lo, Max: hi}, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return MSLevelRange{}, fmt.Errorf("invalid ms-level %q: %w", s, err)
	}
	return MSLevelRange{Min: v, Max: v}, nil
}

// ConversionOptions is the root set of tunable parameters for a conversion
// run. Pointer fields distinguish "unset, use default" from an explicit
// zero value; fields omitted from a JSON file retain their defaults, so
// partial option files are safe.
type ConversionOptions struct {
	// Input/output paths. Output defaults to Input + ".archive".
	Input  *string `json:"input,omitempty"`
	Output *string `json:"output,omitempty"`

	// Per-ms-level data-mode overrides. At most one of these may claim a
	// given ms_level; Validate rejects overlaps.
	CentroidRanges []string `json:"centroid_ranges,omitempty"`
	ProfileRanges  []string `json:"profile_ranges,omitempty"`
	FittedRanges   []string `json:"fitted_ranges,omitempty"`

	// Bounding-box tile dimensions.
	BBTimeWidth    *float64 `json:"bb_time_width,omitempty"`
	BBTimeWidthMSn *float64 `json:"bb_time_width_msn,omitempty"`
	BBMzWidth      *float64 `json:"bb_mz_width,omitempty"`
	BBMzWidthMSn   *float64 `json:"bb_mz_width_msn,omitempty"`

	// NoLoss selects the NoLoss peak encoding throughout, overriding any
	// per-level data-mode choice of encoding width.
	NoLoss *bool `json:"no_loss,omitempty"`

	// DIA marks the acquisition as data-independent in the archive's
	// param tree.
	DIA *bool `json:"dia,omitempty"`

	// NScans stops the conversion after N MS1 scans; zero or unset means
	// convert the whole acquisition.
	NScans *int `json:"nscans,omitempty"`

	// Workers bounds the peak-picking worker pool size; unset means use
	// GOMAXPROCS.
	Workers *int `json:"workers,omitempty"`

	// Synthetic requests the in-memory synthetic RawReader instead of
	// opening Input from disk, for demos and tests.
	Synthetic *bool `json:"synthetic,omitempty"`
}

// Helper constructors mirroring the pointer-field convention used
// throughout this struct.
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrInt(v int) *int             { return &v }

// Empty returns a ConversionOptions with every field unset.
func Empty() *ConversionOptions {
	return &ConversionOptions{}
}

// Load reads a ConversionOptions from a JSON file. The path must end in
// .json and the file must be under 1MB; fields omitted from the file keep
// their defaults.
func Load(path string) (*ConversionOptions, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("options file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat options file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("options file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read options file: %w", err)
	}

	opts := Empty()
	if err := json.Unmarshal(data, opts); err != nil {
		return nil, fmt.Errorf("failed to parse options JSON: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid conversion options: %w", err)
	}
	return opts, nil
}

// Validate checks that the configured values are internally consistent.
func (o *ConversionOptions) Validate() error {
	if o.BBTimeWidth != nil && *o.BBTimeWidth <= 0 {
		return fmt.Errorf("bb_time_width must be positive, got %f", *o.BBTimeWidth)
	}
	if o.BBTimeWidthMSn != nil && *o.BBTimeWidthMSn <= 0 {
		return fmt.Errorf("bb_time_width_msn must be positive, got %f", *o.BBTimeWidthMSn)
	}
	if o.BBMzWidth != nil && *o.BBMzWidth <= 0 {
		return fmt.Errorf("bb_mz_width must be positive, got %f", *o.BBMzWidth)
	}
	if o.BBMzWidthMSn != nil && *o.BBMzWidthMSn <= 0 {
		return fmt.Errorf("bb_mz_width_msn must be positive, got %f", *o.BBMzWidthMSn)
	}
	if o.NScans != nil && *o.NScans < 0 {
		return fmt.Errorf("nscans must be non-negative, got %d", *o.NScans)
	}
	if o.Workers != nil && *o.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *o.Workers)
	}

	parsed := map[int]string{} // ms_level -> owning mode, for overlap detection
	check := func(mode string, ranges []string) error {
		for _, raw := range ranges {
			r, err := ParseMSLevelRange(raw)
			if err != nil {
				return fmt.Errorf("%s range: %w", mode, err)
			}
			for lvl := r.Min; lvl <= r.Max; lvl++ {
				if owner, ok := parsed[lvl]; ok && owner != mode {
					return fmt.Errorf("ms_level %d claimed by both %s and %s", lvl, owner, mode)
				}
				parsed[lvl] = mode
			}
		}
		return nil
	}
	if err := check("centroid", o.CentroidRanges); err != nil {
		return err
	}
	if err := check("profile", o.ProfileRanges); err != nil {
		return err
	}
	if err := check("fitted", o.FittedRanges); err != nil {
		return err
	}
	return nil
}

// GetOutput returns the configured output path, or Input + ".archive" if
// Output is unset. GetOutput panics if Input is also unset; callers should
// validate Input is present before calling it.
func (o *ConversionOptions) GetOutput() string {
	if o.Output != nil && *o.Output != "" {
		return *o.Output
	}
	return *o.Input + ".archive"
}

// GetBBTimeWidth returns the MS1 bounding-box time width or its default.
func (o *ConversionOptions) GetBBTimeWidth() float64 {
	if o.BBTimeWidth == nil {
		return 15.0
	}
	return *o.BBTimeWidth
}

// GetBBTimeWidthMSn returns the MSn bounding-box time width or its default.
func (o *ConversionOptions) GetBBTimeWidthMSn() float64 {
	if o.BBTimeWidthMSn == nil {
		return 15.0
	}
	return *o.BBTimeWidthMSn
}

// GetBBMzWidth returns the MS1 bounding-box m/z width or its default.
func (o *ConversionOptions) GetBBMzWidth() float64 {
	if o.BBMzWidth == nil {
		return 5.0
	}
	return *o.BBMzWidth
}

// GetBBMzWidthMSn returns the MSn bounding-box m/z width or its default.
func (o *ConversionOptions) GetBBMzWidthMSn() float64 {
	if o.BBMzWidthMSn == nil {
		return 10000.0
	}
	return *o.BBMzWidthMSn
}

// GetNoLoss returns the no_loss flag or its default (false).
func (o *ConversionOptions) GetNoLoss() bool {
	if o.NoLoss == nil {
		return false
	}
	return *o.NoLoss
}

// GetDIA returns the dia flag or its default (false).
func (o *ConversionOptions) GetDIA() bool {
	if o.DIA == nil {
		return false
	}
	return *o.DIA
}

// GetNScans returns the configured scan limit, or 0 meaning unlimited.
func (o *ConversionOptions) GetNScans() int {
	if o.NScans == nil {
		return 0
	}
	return *o.NScans
}

// GetWorkers returns the configured worker count, or 0 meaning the caller
// should fall back to GOMAXPROCS.
func (o *ConversionOptions) GetWorkers() int {
	if o.Workers == nil {
		return 0
	}
	return *o.Workers
}

// GetSynthetic returns the synthetic flag or its default (false).
func (o *ConversionOptions) GetSynthetic() bool {
	if o.Synthetic == nil {
		return false
	}
	return *o.Synthetic
}

// DataModeFor resolves the configured data mode for a given ms_level,
// defaulting to Profile when no range claims it. NoLoss does not change
// the data mode; it selects the full-precision peak encoding for
// whichever mode is resolved.
func (o *ConversionOptions) DataModeFor(msLevel int) (string, error) {
	match := func(ranges []string) (bool, error) {
		for _, raw := range ranges {
			r, err := ParseMSLevelRange(raw)
			if err != nil {
				return false, err
			}
			if r.Contains(msLevel) {
				return true, nil
			}
		}
		return false, nil
	}
	if ok, err := match(o.CentroidRanges); err != nil {
		return "", err
	} else if ok {
		return "Centroid", nil
	}
	if ok, err := match(o.FittedRanges); err != nil {
		return "", err
	} else if ok {
		return "Fitted", nil
	}
	if ok, err := match(o.ProfileRanges); err != nil {
		return "", err
	} else if ok {
		return "Profile", nil
	}
	return "Profile", nil
}
