// Package mgf provides streaming readers for MGF (Mascot Generic Format) spectral libraries
package mgf

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/DIMA/pkg/core"
)

const (
	beginIons = "BEGIN IONS"
	endIons   = "END IONS"

	maxLineSize = 1024 * 1024
)

// MGF parameter names that map onto the library metadata keys used for matching.
// Earlier aliases take precedence.
var keyAliases = []struct{ from, to string }{
	{"pepmass", core.KeyPrecursorMZ},
	{"compound_name", core.KeyName},
	{"title", core.KeyName},
	{"adduct", core.KeyPrecursorType},
	{"ion", core.KeyPrecursorType},
}

// Reader provides streaming access to MGF format files
type Reader struct {
	scanner     *bufio.Scanner
	lineNum     int
	currentSpec *core.LibrarySpectrum
	err         error
}

// NewReader creates a new MGF reader
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Reader{scanner: scanner}
}

// Next advances to the next spectrum. Returns false when no more spectra or error.
func (r *Reader) Next() bool {
	r.currentSpec = nil
	if r.err != nil {
		return false
	}

	spec, err := r.readSpectrum()
	if err != nil {
		if err != io.EOF {
			r.err = err
		}
		return false
	}

	r.currentSpec = spec
	return true
}

// Spectrum returns the current spectrum
func (r *Reader) Spectrum() *core.LibrarySpectrum {
	return r.currentSpec
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

// readSpectrum reads one BEGIN IONS ... END IONS block
func (r *Reader) readSpectrum() (*core.LibrarySpectrum, error) {
	meta := make(map[string]string)
	var mz, intensity []float64
	inIons := false

	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())

		if line == "" || isComment(line) {
			continue
		}

		if !inIons {
			// File-level parameters before the first block are ignored
			if strings.EqualFold(line, beginIons) {
				inIons = true
			}
			continue
		}

		if strings.EqualFold(line, endIons) {
			applyAliases(meta)
			return core.NewLibrarySpectrum(meta, mz, intensity)
		}

		if key, value, found := strings.Cut(line, "="); found {
			meta[core.NormalizeKey(key)] = strings.TrimSpace(value)
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: invalid peak format, expected at least 2 fields", r.lineNum)
		}
		m, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid m/z value: %w", r.lineNum, err)
		}
		it, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid intensity value: %w", r.lineNum, err)
		}
		mz = append(mz, m)
		intensity = append(intensity, it)
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	if inIons {
		return nil, fmt.Errorf("line %d: unterminated %s block", r.lineNum, beginIons)
	}

	return nil, io.EOF
}

func isComment(line string) bool {
	switch line[0] {
	case '#', ';', '!', '/':
		return true
	}
	return false
}

// applyAliases fills the matching keys from their MGF equivalents without
// overwriting keys that are already present. PEPMASS may carry an intensity
// after the m/z; only the m/z is kept.
func applyAliases(meta map[string]string) {
	for _, alias := range keyAliases {
		v, ok := meta[alias.from]
		if !ok {
			continue
		}
		if _, exists := meta[alias.to]; exists {
			continue
		}
		if alias.from == "pepmass" {
			if fields := strings.Fields(v); len(fields) > 0 {
				v = fields[0]
			}
		}
		meta[alias.to] = v
	}
}

// ReadAll reads every spectrum from r.
func ReadAll(r io.Reader) ([]*core.LibrarySpectrum, error) {
	reader := NewReader(r)
	var spectra []*core.LibrarySpectrum
	for reader.Next() {
		spectra = append(spectra, reader.Spectrum())
	}
	if err := reader.Err(); err != nil {
		return nil, err
	}
	return spectra, nil
}
