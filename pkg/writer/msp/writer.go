// Package msp writes spectral libraries in MSP format
package msp

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/ChrisMcGann/DIMA/pkg/core"
)

// Writer writes library records as MSP entries
type Writer struct {
	w     *bufio.Writer
	count int
}

// NewWriter creates a new MSP writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// WriteSpectrum writes one entry: Name first, remaining metadata in key order,
// then Num Peaks and the tab-separated peak list.
func (w *Writer) WriteSpectrum(spec *core.LibrarySpectrum) error {
	if len(spec.MZ) != len(spec.Intensity) {
		return &core.ValidationError{Field: "Peaks", Message: "m/z and intensity lengths differ"}
	}

	if w.count > 0 {
		if _, err := w.w.WriteString("\n"); err != nil {
			return err
		}
	}

	keys := make([]string, 0, len(spec.Meta))
	for k := range spec.Meta {
		if k == core.KeyName || k == core.KeyNumPeaks {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(w.w, "Name: %s\n", spec.Name())
	for _, k := range keys {
		fmt.Fprintf(w.w, "%s: %s\n", k, spec.Meta[k])
	}
	fmt.Fprintf(w.w, "Num Peaks: %d\n", len(spec.MZ))
	for i := range spec.MZ {
		fmt.Fprintf(w.w, "%s\t%s\n",
			strconv.FormatFloat(spec.MZ[i], 'f', -1, 64),
			strconv.FormatFloat(spec.Intensity[i], 'f', -1, 64))
	}

	w.count++
	return nil
}

// Count returns the number of entries written
func (w *Writer) Count() int {
	return w.count
}

// Flush flushes buffered output
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// WriteFile writes spectra to the file at path
func WriteFile(path string, spectra []*core.LibrarySpectrum) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	w := NewWriter(f)
	for _, spec := range spectra {
		if err := w.WriteSpectrum(spec); err != nil {
			f.Close()
			return fmt.Errorf("failed to write spectrum %s: %w", spec.Name(), err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush output: %w", err)
	}
	return f.Close()
}
