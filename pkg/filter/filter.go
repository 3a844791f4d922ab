// Package filter provides peak filtering and library reformatting functions
package filter

import (
	"log/slog"
	"sort"
	"strconv"

	"github.com/ChrisMcGann/DIMA/pkg/core"
)

// Config holds filtering configuration
type Config struct {
	TopN            int     // Keep only top N most intense peaks (0 = no limit)
	IntensityCutoff float64 // Keep only peaks above this % of base peak (0 = no cutoff)
	RemoveZeroPeaks bool    // Drop peaks with zero or negative intensity first
}

// Apply returns a filtered copy of spec. The input record is not modified.
// With only TopN set, Apply is exactly ReduceTopN.
func (c *Config) Apply(spec *core.LibrarySpectrum) *core.LibrarySpectrum {
	out := spec
	if c.RemoveZeroPeaks {
		out = RemoveZeroIntensityPeaks(out)
	}

	if c.IntensityCutoff > 0 {
		out = filterByIntensity(out, c.IntensityCutoff)
	}

	if c.TopN > 0 {
		out = ReduceTopN(out, c.TopN)
	}

	if out == spec {
		out = spec.Clone()
	}
	return out
}

// ReduceTopN keeps the topN most intense peaks of spec, ordered by descending
// intensity. Equal intensities keep their original order. Records with topN or
// fewer peaks come back as an unchanged copy. A "num peaks" key, when present,
// is rewritten to the new count.
func ReduceTopN(spec *core.LibrarySpectrum, topN int) *core.LibrarySpectrum {
	out := spec.Clone()
	if len(out.MZ) <= topN {
		return out
	}

	order := make([]int, len(out.MZ))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return spec.Intensity[order[a]] > spec.Intensity[order[b]]
	})

	out.MZ = make([]float64, topN)
	out.Intensity = make([]float64, topN)
	for i, idx := range order[:topN] {
		out.MZ[i] = spec.MZ[idx]
		out.Intensity[i] = spec.Intensity[idx]
	}

	setNumPeaks(out)
	return out
}

// filterByIntensity removes peaks below the intensity cutoff percentage
func filterByIntensity(spec *core.LibrarySpectrum, cutoffPercent float64) *core.LibrarySpectrum {
	if len(spec.Intensity) == 0 {
		return spec
	}

	// Find maximum intensity
	maxIntensity := 0.0
	for _, it := range spec.Intensity {
		if it > maxIntensity {
			maxIntensity = it
		}
	}

	threshold := (cutoffPercent / 100.0) * maxIntensity

	return keepPeaks(spec, func(i int) bool {
		return spec.Intensity[i] >= threshold
	})
}

// RemoveZeroIntensityPeaks returns a copy of spec without zero or negative intensity peaks
func RemoveZeroIntensityPeaks(spec *core.LibrarySpectrum) *core.LibrarySpectrum {
	return keepPeaks(spec, func(i int) bool {
		return spec.Intensity[i] > 0
	})
}

func keepPeaks(spec *core.LibrarySpectrum, keep func(i int) bool) *core.LibrarySpectrum {
	out := spec.Clone()
	out.MZ = out.MZ[:0]
	out.Intensity = out.Intensity[:0]
	for i := range spec.MZ {
		if keep(i) {
			out.MZ = append(out.MZ, spec.MZ[i])
			out.Intensity = append(out.Intensity, spec.Intensity[i])
		}
	}
	if len(out.MZ) != len(spec.MZ) {
		setNumPeaks(out)
	}
	return out
}

func setNumPeaks(spec *core.LibrarySpectrum) {
	if _, ok := spec.Meta[core.KeyNumPeaks]; ok {
		spec.Meta[core.KeyNumPeaks] = strconv.Itoa(len(spec.MZ))
	}
}

// ReformatLibrary applies cfg to every record that has a precursormz key.
// Records without one are dropped: the precursor filter could never select them.
func ReformatLibrary(spectra []*core.LibrarySpectrum, cfg *Config, logger *slog.Logger) ([]*core.LibrarySpectrum, int) {
	if logger == nil {
		logger = slog.Default()
	}

	kept := make([]*core.LibrarySpectrum, 0, len(spectra))
	dropped := 0
	for i, spec := range spectra {
		if !spec.HasPrecursor() {
			logger.Warn("dropping library record without precursor m/z",
				slog.Int("index", i),
				slog.String("name", spec.Name()))
			dropped++
			continue
		}
		kept = append(kept, cfg.Apply(spec))
	}
	return kept, dropped
}
