package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ChrisMcGann/DIMA/pkg/core"
	"github.com/ChrisMcGann/DIMA/pkg/reader/mgf"
	"github.com/ChrisMcGann/DIMA/pkg/reader/msp"
)

// detectFormat picks the library reader from the file extension
func detectFormat(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".msp":
		return "msp", nil
	case ".mgf":
		return "mgf", nil
	default:
		return "", fmt.Errorf("cannot auto-detect library format from extension '%s', expected .msp or .mgf", ext)
	}
}

// loadLibrary reads every record of an MSP or MGF library file
func loadLibrary(path string) ([]*core.LibrarySpectrum, error) {
	format, err := detectFormat(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open library file: %w", err)
	}
	defer f.Close()

	var spectra []*core.LibrarySpectrum
	switch format {
	case "mgf":
		spectra, err = mgf.ReadAll(f)
	default:
		spectra, err = msp.ReadAll(f)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return spectra, nil
}

// loadLibraries concatenates the records of several library files in order
func loadLibraries(paths []string) ([]*core.LibrarySpectrum, error) {
	var all []*core.LibrarySpectrum
	for _, p := range paths {
		spectra, err := loadLibrary(p)
		if err != nil {
			return nil, err
		}
		logger.Debug("library file loaded", "path", p, "records", len(spectra))
		all = append(all, spectra...)
	}
	return all, nil
}
