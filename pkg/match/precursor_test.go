package match

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/DIMA/pkg/core"
)

func libraryWithPrecursors(precursors ...string) *core.Library {
	spectra := make([]*core.LibrarySpectrum, 0, len(precursors))
	for i, p := range precursors {
		meta := map[string]string{"name": "c" + strconv.Itoa(i)}
		if p != "" {
			meta["precursormz"] = p
		}
		spectra = append(spectra, &core.LibrarySpectrum{Meta: meta})
	}
	return core.NewLibrary(spectra, nil)
}

func names(specs []*core.LibrarySpectrum) []string {
	out := make([]string, 0, len(specs))
	for _, s := range specs {
		out = append(out, s.Name())
	}
	return out
}

func TestFilterPrecursorOpenInterval(t *testing.T) {
	// binary-exact values so the boundaries are not blurred by rounding
	lib := libraryWithPrecursors("100.25", "100.2500001", "100.5", "100.7499999", "100.75")

	got := FilterPrecursor(100.5, lib, 0.25)

	assert.Equal(t, []string{"c1", "c2", "c3"}, names(got))
}

func TestFilterPrecursorDefaultWindow(t *testing.T) {
	lib := libraryWithPrecursors("195.0877", "195.1876", "194.9878", "195.3")

	got := FilterPrecursor(195.0877, lib, DefaultPrecursorWindow)

	assert.Equal(t, []string{"c0", "c1", "c2"}, names(got))
}

func TestFilterPrecursorSkipsMalformedAndEmpty(t *testing.T) {
	lib := libraryWithPrecursors("", "abc", "300.0")

	assert.Equal(t, []string{"c2"}, names(FilterPrecursor(300.0, lib, 0.1)))

	got := FilterPrecursor(500.0, lib, 0.1)
	require.NotNil(t, got)
	assert.Empty(t, got)
}
