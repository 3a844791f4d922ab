package core

import (
	"log/slog"
)

// Library is the read-only store of reference spectra for one run.
// Records that fail validation are excluded when the library is built.
type Library struct {
	spectra    []*LibrarySpectrum
	precursors []float64
	skipped    int
}

// NewLibrary builds a Library from parsed records, logging and excluding
// malformed ones. A nil logger uses slog.Default().
func NewLibrary(spectra []*LibrarySpectrum, logger *slog.Logger) *Library {
	if logger == nil {
		logger = slog.Default()
	}

	lib := &Library{
		spectra:    make([]*LibrarySpectrum, 0, len(spectra)),
		precursors: make([]float64, 0, len(spectra)),
	}

	for i, spec := range spectra {
		if spec == nil {
			lib.skipped++
			continue
		}
		if err := spec.Validate(); err != nil {
			logger.Warn("skipping malformed library record",
				slog.Int("index", i),
				slog.String("name", spec.Name()),
				slog.String("err", err.Error()))
			lib.skipped++
			continue
		}
		mz, _ := spec.PrecursorMZ()
		lib.spectra = append(lib.spectra, spec)
		lib.precursors = append(lib.precursors, mz)
	}

	return lib
}

// Len returns the number of usable records.
func (l *Library) Len() int {
	if l == nil {
		return 0
	}
	return len(l.spectra)
}

// At returns the i-th record.
func (l *Library) At(i int) *LibrarySpectrum {
	return l.spectra[i]
}

// PrecursorAt returns the parsed precursor m/z of the i-th record.
func (l *Library) PrecursorAt(i int) float64 {
	return l.precursors[i]
}

// Spectra returns the usable records in load order. Callers must not modify them.
func (l *Library) Spectra() []*LibrarySpectrum {
	return l.spectra
}

// Skipped returns how many input records were excluded as malformed.
func (l *Library) Skipped() int {
	return l.skipped
}
