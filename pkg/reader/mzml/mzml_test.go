package mzml

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode64(t *testing.T, values []float64, compress bool) string {
	t.Helper()
	buf := make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	if compress {
		var z bytes.Buffer
		w := zlib.NewWriter(&z)
		_, err := w.Write(buf)
		require.NoError(t, err)
		require.NoError(t, w.Close())
		buf = z.Bytes()
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func encode32(values []float64) string {
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(float32(v)))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

const spectrumTemplate = `
<spectrum index="%d" id="scan=%d" defaultArrayLength="3">
  <cvParam cvRef="MS" accession="MS:1000511" name="ms level" value="%d"/>
  <scanList count="1">
    <scan>%s</scan>
  </scanList>
  %s
  <binaryDataArrayList count="2">
    <binaryDataArray>
      <cvParam cvRef="MS" accession="%s"/>
      <cvParam cvRef="MS" accession="%s"/>
      <cvParam cvRef="MS" accession="MS:1000514" name="m/z array"/>
      <binary>%s</binary>
    </binaryDataArray>
    <binaryDataArray>
      <cvParam cvRef="MS" accession="%s"/>
      <cvParam cvRef="MS" accession="%s"/>
      <cvParam cvRef="MS" accession="MS:1000515" name="intensity array"/>
      <binary>%s</binary>
    </binaryDataArray>
  </binaryDataArrayList>
</spectrum>`

const precursorXML = `<precursorList count="1"><precursor><selectedIonList count="1"><selectedIon>
  <cvParam cvRef="MS" accession="MS:1000744" name="selected ion m/z" value="195.0877"/>
</selectedIon></selectedIonList></precursor></precursorList>`

const cvXML = `<cvParam cvRef="MS" accession="MS:1001581" name="FAIMS compensation voltage" value="-45.0"/>`

func testRun(t *testing.T) string {
	t.Helper()
	mz := []float64{110.0713, 138.0662, 195.0877}
	intensity := []float64{3000, 10000, 4500}

	ms1 := fmt.Sprintf(spectrumTemplate, 0, 1, 1, "", "",
		"MS:1000523", "MS:1000576", encode64(t, mz, false),
		"MS:1000523", "MS:1000576", encode64(t, intensity, false))
	ms2 := fmt.Sprintf(spectrumTemplate, 1, 2, 2, cvXML, precursorXML,
		"MS:1000523", "MS:1000574", encode64(t, mz, true),
		"MS:1000521", "MS:1000576", encode32(intensity))

	return `<?xml version="1.0" encoding="utf-8"?>
<indexedmzML xmlns="http://psi.hupo.org/ms/mzml">
<mzML xmlns="http://psi.hupo.org/ms/mzml" version="1.1.0">
<run id="test"><spectrumList count="2">` + ms1 + ms2 + `</spectrumList></run>
</mzML>
</indexedmzML>`
}

func TestReadAndScan(t *testing.T) {
	run, err := Read(strings.NewReader(testRun(t)), 4000)
	require.NoError(t, err)
	require.Equal(t, 2, run.NumSpecs())

	id, err := run.ScanID(1)
	require.NoError(t, err)
	assert.Equal(t, "scan=2", id)

	ms2, err := run.Scan(1)
	require.NoError(t, err)
	assert.Equal(t, 1, ms2.Index)
	assert.Equal(t, 195.0877, ms2.PrecursorMZ)
	require.NotNil(t, ms2.CompensationVoltage)
	assert.Equal(t, -45.0, *ms2.CompensationVoltage)

	// 3000 is at or below the threshold
	require.Len(t, ms2.Peaks, 2)
	assert.Equal(t, 138.0662, ms2.Peaks[0].MZ)
	assert.Equal(t, 10000.0, ms2.Peaks[0].Intensity)
	assert.Equal(t, "1", ms2.Peaks[0].Label)
	assert.Equal(t, 4500.0, ms2.Peaks[1].Intensity)
}

func TestScanMS1HasNoPeaks(t *testing.T) {
	run, err := Read(strings.NewReader(testRun(t)), 0)
	require.NoError(t, err)

	ms1, err := run.Scan(0)
	require.NoError(t, err)
	assert.Empty(t, ms1.Peaks)
	assert.Nil(t, ms1.CompensationVoltage)
}

func TestScanOutOfRange(t *testing.T) {
	run, err := Read(strings.NewReader(testRun(t)), 0)
	require.NoError(t, err)

	_, err = run.Scan(2)
	assert.ErrorIs(t, err, ErrInvalidScanIndex)
	_, err = run.Scan(-1)
	assert.ErrorIs(t, err, ErrInvalidScanIndex)
}

func TestReadMalformedXML(t *testing.T) {
	_, err := Read(strings.NewReader(`<mzML><run><spectrumList><spectrum index="0">`), 0)
	assert.Error(t, err)
}

func TestDecodeBinaryUnknownCompression(t *testing.T) {
	_, err := decodeBinary(binaryDataArray{
		CvPar:  []CVParam{{Accession: accFloat64}},
		Binary: encode32([]float64{1}),
	})
	assert.ErrorIs(t, err, ErrUnsupportedEncoding)
}
