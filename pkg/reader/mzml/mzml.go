// Package mzml reads query acquisitions from mzML files and serves them to the
// matcher scan by scan.
package mzml

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/DIMA/pkg/core"
	"github.com/ChrisMcGann/DIMA/pkg/search"
)

// PSI-MS controlled vocabulary accessions used by the reader.
const (
	accMSLevel             = "MS:1000511"
	accSelectedIonMZ       = "MS:1000744"
	accCompensationVoltage = "MS:1001581"
	accFloat32             = "MS:1000521"
	accFloat64             = "MS:1000523"
	accZlib                = "MS:1000574"
	accNoCompression       = "MS:1000576"
	accMZArray             = "MS:1000514"
	accIntensityArray      = "MS:1000515"
)

var (
	// ErrInvalidScanIndex means an invalid scan index is supplied
	ErrInvalidScanIndex = errors.New("mzML: invalid scan index")
	// ErrUnsupportedEncoding means a binary array uses an encoding the reader cannot decode
	ErrUnsupportedEncoding = errors.New("mzML: unsupported binary encoding")
)

// CVParam contains values and attributes of a mzML Controlled Vocabulary term
type CVParam struct {
	Accession string `xml:"accession,attr"`
	Name      string `xml:"name,attr"`
	Value     string `xml:"value,attr"`
}

type spectrum struct {
	Index               int                 `xml:"index,attr"`
	ID                  string              `xml:"id,attr"`
	CvPar               []CVParam           `xml:"cvParam"`
	ScanList            scanList            `xml:"scanList"`
	PrecursorList       precursorList       `xml:"precursorList"`
	BinaryDataArrayList binaryDataArrayList `xml:"binaryDataArrayList"`
}

type scanList struct {
	Scan []scan `xml:"scan"`
}

type scan struct {
	CvPar []CVParam `xml:"cvParam"`
}

type precursorList struct {
	Precursor []precursor `xml:"precursor"`
}

type precursor struct {
	SelectedIonList selectedIonList `xml:"selectedIonList"`
}

type selectedIonList struct {
	SelectedIon []selectedIon `xml:"selectedIon"`
}

type selectedIon struct {
	CvPar []CVParam `xml:"cvParam"`
}

type binaryDataArrayList struct {
	BinaryDataArray []binaryDataArray `xml:"binaryDataArray"`
}

type binaryDataArray struct {
	CvPar  []CVParam `xml:"cvParam"`
	Binary string    `xml:"binary"`
}

// Run holds the spectra of one mzML file. It is read-only after loading and
// safe for concurrent use; peak arrays are decoded on each Scan call.
type Run struct {
	spectra   []spectrum
	threshold float64
}

// Open reads the mzML file at path. Peaks with intensity at or below
// threshold are dropped from every scan.
func Open(path string, threshold float64) (*Run, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mzML file: %w", err)
	}
	defer f.Close()

	return Read(f, threshold)
}

// Read loads every <spectrum> element from r. Both plain and indexed mzML are accepted.
func Read(r io.Reader, threshold float64) (*Run, error) {
	dec := xml.NewDecoder(r)
	run := &Run{threshold: threshold}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing mzML: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "spectrum" {
			continue
		}

		var s spectrum
		if err := dec.DecodeElement(&s, &start); err != nil {
			return nil, fmt.Errorf("parsing spectrum %d: %w", len(run.spectra), err)
		}
		run.spectra = append(run.spectra, s)
	}

	return run, nil
}

// NumSpecs returns the number of spectra in the run
func (r *Run) NumSpecs() int {
	return len(r.spectra)
}

// ScanID returns the native id string of the scan at index.
func (r *Run) ScanID(index int) (string, error) {
	if index < 0 || index >= len(r.spectra) {
		return "", ErrInvalidScanIndex
	}
	return r.spectra[index].ID, nil
}

// Scan returns the query view of the spectrum at index. Spectra that are not
// MS2 come back without peaks so they produce no identification.
func (r *Run) Scan(index int) (search.Scan, error) {
	if index < 0 || index >= len(r.spectra) {
		return search.Scan{}, fmt.Errorf("%w: %d", ErrInvalidScanIndex, index)
	}
	s := &r.spectra[index]

	out := search.Scan{Index: index}
	if cv, ok := compensationVoltage(s); ok {
		out.CompensationVoltage = &cv
	}

	level, err := msLevel(s)
	if err != nil {
		return search.Scan{}, err
	}
	if level != 2 {
		return out, nil
	}

	out.PrecursorMZ, err = selectedIonMZ(s)
	if err != nil {
		return search.Scan{}, err
	}

	mz, intensity, err := decodeArrays(s)
	if err != nil {
		return search.Scan{}, fmt.Errorf("spectrum %s: %w", s.ID, err)
	}

	label := strconv.Itoa(index)
	for i := range mz {
		if intensity[i] > r.threshold {
			out.Peaks = append(out.Peaks, core.Peak{MZ: mz[i], Intensity: intensity[i], Label: label})
		}
	}
	return out, nil
}

func findParam(params []CVParam, accession string) (CVParam, bool) {
	for _, p := range params {
		if p.Accession == accession {
			return p, true
		}
	}
	return CVParam{}, false
}

func msLevel(s *spectrum) (int, error) {
	p, ok := findParam(s.CvPar, accMSLevel)
	if !ok {
		return 0, fmt.Errorf("spectrum %s: missing ms level", s.ID)
	}
	level, err := strconv.Atoi(p.Value)
	if err != nil {
		return 0, fmt.Errorf("spectrum %s: invalid ms level %q: %w", s.ID, p.Value, err)
	}
	return level, nil
}

func selectedIonMZ(s *spectrum) (float64, error) {
	for _, prec := range s.PrecursorList.Precursor {
		for _, ion := range prec.SelectedIonList.SelectedIon {
			if p, ok := findParam(ion.CvPar, accSelectedIonMZ); ok {
				mz, err := strconv.ParseFloat(p.Value, 64)
				if err != nil {
					return 0, fmt.Errorf("spectrum %s: invalid selected ion m/z %q: %w", s.ID, p.Value, err)
				}
				return mz, nil
			}
		}
	}
	return 0, fmt.Errorf("spectrum %s: no selected ion m/z", s.ID)
}

// compensationVoltage looks for the FAIMS CV on the spectrum and on its scans.
func compensationVoltage(s *spectrum) (float64, bool) {
	params := s.CvPar
	for _, sc := range s.ScanList.Scan {
		params = append(params[:len(params):len(params)], sc.CvPar...)
	}
	p, ok := findParam(params, accCompensationVoltage)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(p.Value, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func decodeArrays(s *spectrum) (mz, intensity []float64, err error) {
	var haveMZ, haveIntensity bool
	for _, bda := range s.BinaryDataArrayList.BinaryDataArray {
		_, isMZ := findParam(bda.CvPar, accMZArray)
		_, isIntensity := findParam(bda.CvPar, accIntensityArray)
		if !isMZ && !isIntensity {
			continue
		}

		values, err := decodeBinary(bda)
		if err != nil {
			return nil, nil, err
		}
		if isMZ {
			mz, haveMZ = values, true
		} else {
			intensity, haveIntensity = values, true
		}
	}

	if !haveMZ || !haveIntensity {
		return nil, nil, errors.New("missing m/z or intensity array")
	}
	if len(mz) != len(intensity) {
		return nil, nil, fmt.Errorf("m/z and intensity arrays differ in length (%d != %d)", len(mz), len(intensity))
	}
	return mz, intensity, nil
}

func decodeBinary(bda binaryDataArray) ([]float64, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(bda.Binary))
	if err != nil {
		return nil, fmt.Errorf("decoding base64: %w", err)
	}

	if _, ok := findParam(bda.CvPar, accZlib); ok {
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("opening zlib stream: %w", err)
		}
		raw, err = io.ReadAll(zr)
		zr.Close()
		if err != nil {
			return nil, fmt.Errorf("inflating array: %w", err)
		}
	} else if _, ok := findParam(bda.CvPar, accNoCompression); !ok {
		return nil, fmt.Errorf("%w: unknown compression", ErrUnsupportedEncoding)
	}

	switch {
	case hasParam(bda.CvPar, accFloat64):
		if len(raw)%8 != 0 {
			return nil, fmt.Errorf("%w: 64-bit array of %d bytes", ErrUnsupportedEncoding, len(raw))
		}
		out := make([]float64, len(raw)/8)
		for i := range out {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
		}
		return out, nil
	case hasParam(bda.CvPar, accFloat32):
		if len(raw)%4 != 0 {
			return nil, fmt.Errorf("%w: 32-bit array of %d bytes", ErrUnsupportedEncoding, len(raw))
		}
		out := make([]float64, len(raw)/4)
		for i := range out {
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:])))
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: unknown float precision", ErrUnsupportedEncoding)
}

func hasParam(params []CVParam, accession string) bool {
	_, ok := findParam(params, accession)
	return ok
}
