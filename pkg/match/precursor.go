package match

import (
	"github.com/ChrisMcGann/DIMA/pkg/core"
)

// FilterPrecursor returns the library records whose precursor m/z lies strictly
// inside (precursorMZ-window, precursorMZ+window), in library order.
func FilterPrecursor(precursorMZ float64, lib *core.Library, window float64) []*core.LibrarySpectrum {
	candidates := []*core.LibrarySpectrum{}
	lo, hi := precursorMZ-window, precursorMZ+window
	for i := 0; i < lib.Len(); i++ {
		mz := lib.PrecursorAt(i)
		if lo < mz && mz < hi {
			candidates = append(candidates, lib.At(i))
		}
	}
	return candidates
}
