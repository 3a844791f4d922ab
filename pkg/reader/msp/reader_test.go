package msp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMSP = `NAME: Caffeine
PRECURSORMZ: 195.0877
PRECURSORTYPE: [M+H]+
FORMULA: C8H10N4O2
Num Peaks: 3
110.0713	300
138.0662	1000
195.0877	150

Name: Theophylline
PrecursorMZ: 181.0720
Num Peaks: 2
124.0505 400 "b-ion"
181.0720 1000
Name: No peaks here
PrecursorMZ: 100.0
Name: Adenine
PrecursorMZ: 136.0618
Num Peaks: 2
119.0352;500
136.0618;1000
`

func TestReaderParsesEntries(t *testing.T) {
	spectra, err := ReadAll(strings.NewReader(sampleMSP))
	require.NoError(t, err)
	require.Len(t, spectra, 3)

	caffeine := spectra[0]
	assert.Equal(t, "Caffeine", caffeine.Name())
	assert.Equal(t, "195.0877", caffeine.Get("precursormz"))
	assert.Equal(t, "[M+H]+", caffeine.Get("precursortype"))
	assert.Equal(t, "3", caffeine.Get("num peaks"))
	assert.Equal(t, []float64{110.0713, 138.0662, 195.0877}, caffeine.MZ)
	assert.Equal(t, []float64{300, 1000, 150}, caffeine.Intensity)

	theo := spectra[1]
	assert.Equal(t, "Theophylline", theo.Name())
	assert.Equal(t, []float64{124.0505, 181.0720}, theo.MZ)

	adenine := spectra[2]
	assert.Equal(t, "Adenine", adenine.Name())
	assert.Equal(t, []float64{500, 1000}, adenine.Intensity)
}

func TestReaderStreaming(t *testing.T) {
	r := NewReader(strings.NewReader(sampleMSP))

	var names []string
	for r.Next() {
		names = append(names, r.Spectrum().Name())
	}

	require.NoError(t, r.Err())
	assert.Equal(t, []string{"Caffeine", "Theophylline", "Adenine"}, names)
	assert.Nil(t, r.Spectrum())
}

func TestReaderInvalidLine(t *testing.T) {
	input := "Name: X\nPrecursorMZ: 1\n100 10\ngarbage line\n"

	_, err := ReadAll(strings.NewReader(input))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 4")
}

func TestReaderEmpty(t *testing.T) {
	spectra, err := ReadAll(strings.NewReader("\n\n"))
	require.NoError(t, err)
	assert.Empty(t, spectra)
}
