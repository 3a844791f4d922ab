// Package msp provides streaming readers for MSP (NIST / MassBank style) spectral libraries
package msp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/DIMA/pkg/core"
)

const maxLineSize = 1024 * 1024

// Reader provides streaming access to MSP format files
type Reader struct {
	scanner     *bufio.Scanner
	lineNum     int
	pending     string // Name line that ended the previous entry
	currentSpec *core.LibrarySpectrum
	err         error
}

// NewReader creates a new MSP reader
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

// entry accumulates one MSP record while it is being read.
type entry struct {
	meta      map[string]string
	mz        []float64
	intensity []float64
}

func newEntry() *entry {
	return &entry{meta: make(map[string]string)}
}

func (e *entry) build() (*core.LibrarySpectrum, error) {
	return core.NewLibrarySpectrum(e.meta, e.mz, e.intensity)
}

// readSpectrum reads a single entry. A new "Name:" line closes the entry being
// read once it has peaks; entries without any peak lines are discarded.
func (r *Reader) readSpectrum() (*core.LibrarySpectrum, error) {
	e := newEntry()

	for {
		line, ok := r.nextLine()
		if !ok {
			break
		}
		if line == "" {
			continue
		}

		if isNameLine(line) && len(e.mz) > 0 {
			r.pending = line
			return e.build()
		}
		if isNameLine(line) {
			e = newEntry()
		}

		if mz, intensity, ok := parsePeak(line); ok {
			e.mz = append(e.mz, mz)
			e.intensity = append(e.intensity, intensity)
			continue
		}

		key, value, found := strings.Cut(line, ":")
		if !found {
			return nil, fmt.Errorf("line %d: invalid line %q, expected 'key: value' or a peak", r.lineNum, line)
		}
		e.meta[core.NormalizeKey(key)] = strings.TrimSpace(value)
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	// Last entry in the file
	if len(e.mz) > 0 {
		return e.build()
	}

	return nil, io.EOF
}

func (r *Reader) nextLine() (string, bool) {
	if r.pending != "" {
		line := r.pending
		r.pending = ""
		return line, true
	}
	if !r.scanner.Scan() {
		return "", false
	}
	r.lineNum++
	return strings.TrimSpace(r.scanner.Text()), true
}

func isNameLine(line string) bool {
	key, _, found := strings.Cut(line, ":")
	return found && strings.EqualFold(strings.TrimSpace(key), "name")
}

// parsePeak parses a peak line (format: "mz intensity [\"annotation\"]").
// Tab, space and semicolon separators are accepted.
func parsePeak(line string) (float64, float64, bool) {
	fields := strings.FieldsFunc(line, func(c rune) bool {
		return c == ' ' || c == '\t' || c == ';' || c == ','
	})
	if len(fields) < 2 {
		return 0, 0, false
	}

	mz, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, 0, false
	}
	intensity, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, 0, false
	}
	return mz, intensity, true
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
