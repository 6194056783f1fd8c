// Command msconvert converts a raw acquisition into a random-access
// archive: it peak-picks every spectrum, tiles the result into bounding
// boxes, and writes the whole thing through internal/archive's catalog.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mzcore/msarchive/internal/archive"
	"github.com/mzcore/msarchive/internal/convert"
	"github.com/mzcore/msarchive/internal/convertopts"
	"github.com/mzcore/msarchive/internal/mlog"
	"github.com/mzcore/msarchive/internal/rawreader"
	"github.com/mzcore/msarchive/internal/version"
)

const (
	exitOK             = 0
	exitUsageError     = 1
	exitConversionFail = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run parses args and drives one conversion to completion. It is factored
// out of main so tests can exercise flag handling and exit codes without
// an os.Exit call.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("msconvert", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		input          = fs.String("input", "", "path to the raw acquisition to convert")
		output         = fs.String("output", "", "archive output path (default: <input>.archive)")
		centroid       = fs.String("centroid", "", "ms_level range stored as centroid data, e.g. \"2\" or \"2-5\"")
		profile        = fs.String("profile", "", "ms_level range stored as profile data")
		fitted         = fs.String("fitted", "", "ms_level range stored as curve-fitted data")
		bbTimeWidth    = fs.Float64("bbTimeWidth", 15.0, "MS1 bounding-box time width in seconds")
		bbTimeWidthMSn = fs.Float64("bbTimeWidthMSn", 15.0, "MSn bounding-box time width in seconds")
		bbMzWidth      = fs.Float64("bbMzWidth", 5.0, "MS1 bounding-box m/z width in Da")
		bbMzWidthMSn   = fs.Float64("bbMzWidthMSn", 10000.0, "MSn bounding-box m/z width in Da")
		noLoss         = fs.Bool("no_loss", false, "store every data mode at full (no-loss) precision")
		dia            = fs.Bool("dia", false, "mark the acquisition as data-independent")
		nscans         = fs.Int("nscans", 0, "stop after N MS1 scans (0 means the whole acquisition)")
		workers        = fs.Int("workers", 0, "peak-picking worker pool size (0 means GOMAXPROCS)")
		vendor         = fs.String("vendor", "orbitrap", "peak-picking algorithm family: orbitrap, tof, or qtof")
		synthetic      = fs.Bool("synthetic", false, "convert a built-in synthetic acquisition instead of --input, for smoke tests")
		showVersion    = fs.Bool("version", false, "print the version and exit")
	)

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return exitOK
		}
		return exitUsageError
	}

	if *showVersion {
		fmt.Fprintf(stdout, "msconvert %s (%s, %s), archive schema %d\n",
			version.Version, version.GitSHA, version.BuildTime, version.SchemaVersion())
		return exitOK
	}

	opts, err := optionsFromFlags(*input, *output, *centroid, *profile, *fitted,
		*bbTimeWidth, *bbTimeWidthMSn, *bbMzWidth, *bbMzWidthMSn,
		*noLoss, *dia, *nscans, *workers, *synthetic)
	if err != nil {
		fmt.Fprintf(stderr, "msconvert: %v\n", err)
		return exitUsageError
	}

	vendorTag, err := parseVendorTag(*vendor)
	if err != nil {
		fmt.Fprintf(stderr, "msconvert: %v\n", err)
		return exitUsageError
	}

	reader, outputPath, err := openReader(opts, vendorTag)
	if err != nil {
		fmt.Fprintf(stderr, "msconvert: %v\n", err)
		return exitUsageError
	}
	defer reader.Close()

	db, err := archive.Create(outputPath)
	if err != nil {
		fmt.Fprintf(stderr, "msconvert: create archive %q: %v\n", outputPath, err)
		return exitConversionFail
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	driver := convert.New(reader, db, opts, convert.Picker{Vendor: vendorTag})
	go func() {
		<-ctx.Done()
		mlog.Logf("msconvert: signal received, finishing the in-flight cycle before stopping")
		driver.Cancel()
	}()

	stats, err := driver.Run(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "msconvert: conversion failed: %v\n", err)
		return exitConversionFail
	}

	mlog.Logf("msconvert: wrote %s: %d spectra read, %d picked, %d tiles, %d run-slices, cancelled=%v",
		outputPath, stats.SpectraRead, stats.SpectraPicked, stats.TilesWritten, stats.RunSlicesFinal, stats.Cancelled)
	return exitOK
}

// optionsFromFlags builds a validated ConversionOptions from the raw flag
// values. Empty range strings are omitted rather than passed through as
// zero-length entries, so Validate never sees a spurious empty range.
func optionsFromFlags(input, output, centroid, profile, fitted string,
	bbTimeWidth, bbTimeWidthMSn, bbMzWidth, bbMzWidthMSn float64,
	noLoss, dia bool, nscans, workers int, synthetic bool) (*convertopts.ConversionOptions, error) {

	opts := convertopts.Empty()
	if input != "" {
		opts.Input = &input
	}
	if output != "" {
		opts.Output = &output
	}
	if centroid != "" {
		opts.CentroidRanges = []string{centroid}
	}
	if profile != "" {
		opts.ProfileRanges = []string{profile}
	}
	if fitted != "" {
		opts.FittedRanges = []string{fitted}
	}
	opts.BBTimeWidth = &bbTimeWidth
	opts.BBTimeWidthMSn = &bbTimeWidthMSn
	opts.BBMzWidth = &bbMzWidth
	opts.BBMzWidthMSn = &bbMzWidthMSn
	opts.NoLoss = &noLoss
	opts.DIA = &dia
	opts.NScans = &nscans
	opts.Workers = &workers
	opts.Synthetic = &synthetic

	if !synthetic && input == "" {
		return nil, fmt.Errorf("--input is required unless --synthetic is set")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

func parseVendorTag(s string) (rawreader.VendorTag, error) {
	switch s {
	case "orbitrap":
		return rawreader.VendorOrbitrap, nil
	case "tof":
		return rawreader.VendorTOF, nil
	case "qtof":
		return rawreader.VendorQTof, nil
	default:
		return "", fmt.Errorf("unknown --vendor %q: want orbitrap, tof, or qtof", s)
	}
}

// openReader resolves the RawReader and output archive path for this run.
// A real vendor file has no decoder in this module: the msconvert binary
// only ever runs against the synthetic in-memory reader, matching the
// core's explicit stance that vendor-file decoding is an external
// collaborator's job.
func openReader(opts *convertopts.ConversionOptions, vendor rawreader.VendorTag) (rawreader.RawReader, string, error) {
	if !opts.GetSynthetic() {
		return nil, "", fmt.Errorf("--input %q requires a vendor RawReader binding, which this build does not include; rerun with --synthetic", *opts.Input)
	}
	output := "synthetic.archive"
	if opts.Output != nil && *opts.Output != "" {
		output = *opts.Output
	} else if opts.Input != nil && *opts.Input != "" {
		output = opts.GetOutput()
	}
	return rawreader.NewMemoryReader(vendor, syntheticAcquisition()), output, nil
}

// syntheticAcquisition is a small, deterministic three-cycle acquisition
// used by --synthetic: each cycle is one MS1 scan followed by one MS2 scan,
// enough to exercise bounding-box tiling and precursor wiring end to end.
func syntheticAcquisition() []rawreader.RawSpectrum {
	ms1MZ := []float64{100.00, 100.01, 100.02, 100.03, 500.00, 500.01, 500.02}
	ms1Int := []float64{500, 1200, 500, 0, 800, 2000, 800}
	ms2MZ := []float64{250.00, 250.01, 250.02, 250.03}
	ms2Int := []float64{300, 900, 300, 0}

	var spectra []rawreader.RawSpectrum
	var id uint32 = 1
	for cycle := 0; cycle < 3; cycle++ {
		rt := float64(cycle) * 2.0
		spectra = append(spectra, rawreader.RawSpectrum{
			ID: id, MSLevel: 1, RT: rt, MZ: ms1MZ, Intensity: ms1Int,
		})
		id++
		spectra = append(spectra, rawreader.RawSpectrum{
			ID: id, MSLevel: 2, RT: rt + 0.5, MZ: ms2MZ, Intensity: ms2Int,
			Precursor: &rawreader.Precursor{MZ: 500.01, Charge: 2},
		})
		id++
	}
	return spectra
}
