package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/DIMA/pkg/core"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{"lib.msp", "msp", false},
		{"LIB.MSP", "msp", false},
		{"dir/lib.mgf", "mgf", false},
		{"lib.sptxt", "", true},
		{"lib", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := detectFormat(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResultFormat(t *testing.T) {
	f, err := resultFormat("out.CSV")
	require.NoError(t, err)
	assert.Equal(t, "csv", f)

	f, err = resultFormat("out.db")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", f)

	_, err = resultFormat("out.xlsx")
	assert.Error(t, err)
}

func TestLoadLibraries(t *testing.T) {
	dir := t.TempDir()
	mspPath := filepath.Join(dir, "a.msp")
	mgfPath := filepath.Join(dir, "b.mgf")
	require.NoError(t, os.WriteFile(mspPath, []byte("Name: A\nPrecursorMZ: 100\nNum Peaks: 1\n50 10\n"), 0o644))
	require.NoError(t, os.WriteFile(mgfPath, []byte("BEGIN IONS\nTITLE=B\nPEPMASS=200 1000\n60 20\nEND IONS\n"), 0o644))

	spectra, err := loadLibraries([]string{mspPath, mgfPath})
	require.NoError(t, err)
	require.Len(t, spectra, 2)
	assert.Equal(t, "A", spectra[0].Name())
	assert.Equal(t, "B", spectra[1].Name())
	assert.Equal(t, "200", spectra[1].Get(core.KeyPrecursorMZ))
}

func TestValidateLibrary(t *testing.T) {
	spectra := []*core.LibrarySpectrum{
		{Meta: map[string]string{"name": "ok", "precursormz": "100"}, MZ: []float64{50}, Intensity: []float64{1}},
		{Meta: map[string]string{"name": "no precursor"}, MZ: []float64{50}, Intensity: []float64{1}},
		{Meta: map[string]string{"name": "bad precursor", "precursormz": "abc"}, MZ: []float64{50}, Intensity: []float64{1}},
	}

	report := validateLibrary(spectra)

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.Valid)
	require.Len(t, report.Problems, 2)
	assert.Equal(t, 1, report.Problems[0].Index)
	assert.Equal(t, "bad precursor", report.Problems[1].Name)
	assert.ErrorIs(t, report.Problems[0].Err, core.ErrMalformedRecord)
}

func TestSummarizeLibrary(t *testing.T) {
	spectra := []*core.LibrarySpectrum{
		{Meta: map[string]string{"name": "a", "precursormz": "195.5"}, MZ: []float64{110, 138}, Intensity: []float64{1, 2}},
		{Meta: map[string]string{"name": "b", "precursormz": "120.25", "formula": "C5"}, MZ: []float64{60}, Intensity: []float64{1}},
		{Meta: map[string]string{"name": "c"}, MZ: []float64{300, 40, 90}, Intensity: []float64{1, 1, 1}},
	}

	s := summarizeLibrary(spectra)

	assert.Equal(t, 3, s.Spectra)
	assert.Equal(t, 6, s.Peaks)
	assert.Equal(t, 3, s.MaxPeaks)
	assert.Equal(t, 40.0, s.MinMZ)
	assert.Equal(t, 300.0, s.MaxMZ)
	assert.Equal(t, 2, s.WithPrecursor)
	assert.Equal(t, 120.25, s.MinPrecursor)
	assert.Equal(t, 195.5, s.MaxPrecursor)
	assert.Equal(t, []keyCount{
		{Key: "name", Count: 3},
		{Key: "precursormz", Count: 2},
		{Key: "formula", Count: 1},
	}, s.Coverage)
}
