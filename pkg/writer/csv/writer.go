// Package csv writes identification result sets as delimited text for spreadsheet tools
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/ChrisMcGann/DIMA/pkg/core"
)

// Write writes rs with a header row to w.
func Write(w io.Writer, rs *core.ResultSet) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(rs.Columns()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range rs.Rows() {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteFile writes rs to the file at path, replacing it if it exists.
func WriteFile(path string, rs *core.ResultSet) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	if err := Write(f, rs); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
