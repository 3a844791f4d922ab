package filter

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/DIMA/pkg/core"
)

func fifteenPeakRecord() *core.LibrarySpectrum {
	spec := &core.LibrarySpectrum{
		Meta: map[string]string{
			"name":        "Tryptophan",
			"precursormz": "205.0972",
			"num peaks":   "15",
		},
	}
	intensities := []float64{5, 90, 12, 33, 70, 1, 64, 8, 100, 41, 27, 55, 3, 18, 80}
	for i, it := range intensities {
		spec.MZ = append(spec.MZ, 50.0+float64(i)*10)
		spec.Intensity = append(spec.Intensity, it)
	}
	return spec
}

func TestReduceTopN(t *testing.T) {
	spec := fifteenPeakRecord()

	got := ReduceTopN(spec, 10)

	require.Len(t, got.MZ, 10)
	require.Len(t, got.Intensity, 10)
	assert.Equal(t, "10", got.Meta["num peaks"])
	assert.Equal(t, "Tryptophan", got.Meta["name"])

	want := append([]float64(nil), spec.Intensity...)
	sort.Sort(sort.Reverse(sort.Float64Slice(want)))
	assert.Equal(t, want[:10], got.Intensity)

	// m/z stays paired with its intensity
	assert.Equal(t, 130.0, got.MZ[0]) // intensity 100 at index 8
	assert.Equal(t, 60.0, got.MZ[1])  // intensity 90 at index 1

	// source untouched
	assert.Len(t, spec.MZ, 15)
	assert.Equal(t, "15", spec.Meta["num peaks"])
}

func TestReduceTopNStableTies(t *testing.T) {
	spec := &core.LibrarySpectrum{
		Meta:      map[string]string{"precursormz": "100"},
		MZ:        []float64{10, 20, 30, 40},
		Intensity: []float64{5, 9, 5, 5},
	}

	got := ReduceTopN(spec, 3)

	assert.Equal(t, []float64{20, 10, 30}, got.MZ)
	_, hasNumPeaks := got.Meta["num peaks"]
	assert.False(t, hasNumPeaks)
}

func TestReduceTopNIdempotent(t *testing.T) {
	tests := []struct {
		name string
		topN int
	}{
		{"same N", 10},
		{"larger N than peaks", 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			once := ReduceTopN(fifteenPeakRecord(), 10)
			twice := ReduceTopN(once, tt.topN)
			assert.Equal(t, once, twice)
		})
	}
}

func TestConfigApply(t *testing.T) {
	spec := &core.LibrarySpectrum{
		Meta:      map[string]string{"precursormz": "300", "num peaks": "5"},
		MZ:        []float64{100, 110, 120, 130, 140},
		Intensity: []float64{0, 1000, 5, 400, 200},
	}

	cfg := &Config{TopN: 2, IntensityCutoff: 1}
	got := cfg.Apply(spec)

	assert.Equal(t, []float64{110, 130}, got.MZ)
	assert.Equal(t, []float64{1000, 400}, got.Intensity)
	assert.Equal(t, "2", got.Meta["num peaks"])
}

func TestRemoveZeroIntensityPeaks(t *testing.T) {
	spec := &core.LibrarySpectrum{
		Meta:      map[string]string{},
		MZ:        []float64{100, 110, 120},
		Intensity: []float64{0, 10, -1},
	}

	got := RemoveZeroIntensityPeaks(spec)

	assert.Equal(t, []float64{110}, got.MZ)
	assert.Len(t, spec.MZ, 3)
}

func TestReformatLibraryDropsRecordsWithoutPrecursor(t *testing.T) {
	withPrecursor := fifteenPeakRecord()
	without := &core.LibrarySpectrum{
		Meta:      map[string]string{"name": "orphan"},
		MZ:        []float64{100},
		Intensity: []float64{1},
	}

	kept, dropped := ReformatLibrary([]*core.LibrarySpectrum{without, withPrecursor}, &Config{TopN: 5}, nil)

	assert.Equal(t, 1, dropped)
	require.Len(t, kept, 1)
	assert.Equal(t, "Tryptophan", kept[0].Name())
	assert.Len(t, kept[0].MZ, 5)
}

func TestReformatLibraryKeepsZeroPeaksUnderTopN(t *testing.T) {
	spec := &core.LibrarySpectrum{
		Meta:      map[string]string{"name": "sparse", "precursormz": "100", "num peaks": "3"},
		MZ:        []float64{10, 20, 30},
		Intensity: []float64{5, 0, 7},
	}

	kept, dropped := ReformatLibrary([]*core.LibrarySpectrum{spec}, &Config{TopN: 10}, nil)

	assert.Equal(t, 0, dropped)
	require.Len(t, kept, 1)
	assert.Equal(t, spec.MZ, kept[0].MZ)
	assert.Equal(t, spec.Intensity, kept[0].Intensity)
	assert.Equal(t, "3", kept[0].Meta["num peaks"])
	assert.NotSame(t, spec, kept[0])
}

func TestConfigApplyMatchesReduceTopN(t *testing.T) {
	spec := fifteenPeakRecord()
	spec.Intensity[3] = 0

	got := (&Config{TopN: 10}).Apply(spec)
	want := ReduceTopN(spec, 10)

	assert.Equal(t, want, got)
	assert.Len(t, got.MZ, 10)
}

func TestConfigApplyRemoveZeroPeaks(t *testing.T) {
	spec := &core.LibrarySpectrum{
		Meta:      map[string]string{"precursormz": "100", "num peaks": "3"},
		MZ:        []float64{10, 20, 30},
		Intensity: []float64{5, 0, 7},
	}

	got := (&Config{TopN: 10, RemoveZeroPeaks: true}).Apply(spec)

	assert.Equal(t, []float64{10, 30}, got.MZ)
	assert.Len(t, spec.MZ, 3)
}
