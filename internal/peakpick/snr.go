package peakpick

// PassesSNR reports whether a peak's apex intensity clears the minimum
// signal-to-noise ratio: (max_intensity - baseline) / noise >=
// min_snr. With zero noise the ratio is undefined, and the peak passes
// only if its apex is strictly above the baseline.
func PassesSNR(apexIntensity float64, params PeakPickerParams) bool {
	if params.Noise == 0 {
		return apexIntensity > params.Baseline
	}
	snr := (apexIntensity - params.Baseline) / params.Noise
	return snr >= params.MinSNR
}
