// Package core provides the in-memory models and validation logic for reference
// spectral libraries, query scans and match results used by DIMA.
package core

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Metadata keys with meaning to the matching pipeline. Keys are stored lower-cased.
const (
	KeyName          = "name"
	KeyPrecursorMZ   = "precursormz"
	KeyPrecursorType = "precursortype"
	KeyFormula       = "formula"
	KeyNumPeaks      = "num peaks"
)

// ErrMalformedRecord marks a library record that cannot take part in matching.
var ErrMalformedRecord = errors.New("malformed library record")

// Peak represents a single m/z, intensity pair tagged with the spectrum it came from.
type Peak struct {
	MZ        float64
	Intensity float64
	Label     string // Query scan id or candidate index
}

// LibrarySpectrum is one reference spectrum: free-form metadata plus
// index-aligned m/z and intensity arrays.
type LibrarySpectrum struct {
	Meta      map[string]string
	MZ        []float64
	Intensity []float64
}

// ValidationError represents an error found during spectrum validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// Unwrap lets callers match validation failures against ErrMalformedRecord.
func (e *ValidationError) Unwrap() error {
	return ErrMalformedRecord
}

// NewLibrarySpectrum builds a record, normalizing metadata keys to lower case.
// The m/z and intensity slices are copied.
func NewLibrarySpectrum(meta map[string]string, mz, intensity []float64) (*LibrarySpectrum, error) {
	if len(mz) != len(intensity) {
		return nil, &ValidationError{
			Field:   "Peaks",
			Message: fmt.Sprintf("m/z and intensity lengths differ (%d != %d)", len(mz), len(intensity)),
		}
	}

	s := &LibrarySpectrum{
		Meta:      make(map[string]string, len(meta)),
		MZ:        append([]float64(nil), mz...),
		Intensity: append([]float64(nil), intensity...),
	}
	for k, v := range meta {
		s.Meta[NormalizeKey(k)] = v
	}
	return s, nil
}

// NormalizeKey returns the canonical form of a metadata key.
func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Get returns a metadata value or "" when the key is absent.
func (s *LibrarySpectrum) Get(key string) string {
	if s == nil || s.Meta == nil {
		return ""
	}
	return s.Meta[NormalizeKey(key)]
}

// Name returns the compound name of the record.
func (s *LibrarySpectrum) Name() string {
	return s.Get(KeyName)
}

// HasPrecursor reports whether the record carries a precursormz key at all.
func (s *LibrarySpectrum) HasPrecursor() bool {
	_, ok := s.Meta[KeyPrecursorMZ]
	return ok
}

// PrecursorMZ parses the precursormz metadata value.
func (s *LibrarySpectrum) PrecursorMZ() (float64, error) {
	raw, ok := s.Meta[KeyPrecursorMZ]
	if !ok {
		return 0, fmt.Errorf("%w: missing %s", ErrMalformedRecord, KeyPrecursorMZ)
	}
	mz, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", ErrMalformedRecord, KeyPrecursorMZ, raw)
	}
	return mz, nil
}

// NumPeaks returns the number of peaks in the record.
func (s *LibrarySpectrum) NumPeaks() int {
	return len(s.MZ)
}

// Validate checks that a record can take part in precursor filtering and matching.
func (s *LibrarySpectrum) Validate() error {
	var errs []string

	if len(s.MZ) != len(s.Intensity) {
		errs = append(errs, fmt.Sprintf("m/z and intensity lengths differ (%d != %d)", len(s.MZ), len(s.Intensity)))
	}
	if mz, err := s.PrecursorMZ(); err != nil {
		errs = append(errs, err.Error())
	} else if math.IsNaN(mz) || math.IsInf(mz, 0) {
		errs = append(errs, "precursor m/z is not finite")
	}

	for i := range s.MZ {
		if math.IsNaN(s.MZ[i]) || math.IsInf(s.MZ[i], 0) {
			errs = append(errs, fmt.Sprintf("peak %d has invalid m/z", i))
		}
		if i < len(s.Intensity) && (math.IsNaN(s.Intensity[i]) || math.IsInf(s.Intensity[i], 0)) {
			errs = append(errs, fmt.Sprintf("peak %d has invalid intensity", i))
		}
	}

	if len(errs) > 0 {
		return &ValidationError{
			Field:   "LibrarySpectrum",
			Message: strings.Join(errs, "; "),
		}
	}

	return nil
}

// Peaks returns the record's peaks, each tagged with label.
func (s *LibrarySpectrum) Peaks(label string) []Peak {
	n := min(len(s.MZ), len(s.Intensity))
	peaks := make([]Peak, n)
	for i := 0; i < n; i++ {
		peaks[i] = Peak{MZ: s.MZ[i], Intensity: s.Intensity[i], Label: label}
	}
	return peaks
}

// Clone returns a deep copy of the record.
func (s *LibrarySpectrum) Clone() *LibrarySpectrum {
	c := &LibrarySpectrum{
		Meta:      make(map[string]string, len(s.Meta)),
		MZ:        append([]float64(nil), s.MZ...),
		Intensity: append([]float64(nil), s.Intensity...),
	}
	for k, v := range s.Meta {
		c.Meta[k] = v
	}
	return c
}

// MZRange returns the lowest and highest m/z in the record.
func (s *LibrarySpectrum) MZRange() (lo, hi float64, ok bool) {
	if len(s.MZ) == 0 {
		return 0, 0, false
	}
	lo, hi = s.MZ[0], s.MZ[0]
	for _, mz := range s.MZ[1:] {
		lo = math.Min(lo, mz)
		hi = math.Max(hi, mz)
	}
	return lo, hi, true
}
