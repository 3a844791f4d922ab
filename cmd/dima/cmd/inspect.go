package cmd

import (
	"fmt"
	"math"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/DIMA/pkg/core"
)

// maxReportedProblems caps the per-record problems printed by validate
const maxReportedProblems = 20

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate input file format and contents",
	Long:  `Validate that a library file is properly formatted and that every record can take part in matching.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		spectra, err := loadLibrary(args[0])
		if err != nil {
			return err
		}

		report := validateLibrary(spectra)
		fmt.Printf("Records: %d\n", report.Total)
		fmt.Printf("Valid: %d\n", report.Valid)
		fmt.Printf("Malformed: %d\n", len(report.Problems))
		for i, p := range report.Problems {
			if i == maxReportedProblems {
				fmt.Printf("  ... %d more\n", len(report.Problems)-maxReportedProblems)
				break
			}
			fmt.Printf("  #%d %s: %v\n", p.Index, p.Name, p.Err)
		}

		if len(report.Problems) > 0 {
			return fmt.Errorf("%d of %d records are malformed", len(report.Problems), report.Total)
		}
		return nil
	},
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize [file]",
	Short: "Summarize spectral library contents",
	Long:  `Print summary statistics about a spectral library including spectrum count, m/z ranges, and metadata coverage.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		spectra, err := loadLibrary(args[0])
		if err != nil {
			return err
		}

		s := summarizeLibrary(spectra)
		fmt.Printf("Spectra: %d\n", s.Spectra)
		fmt.Printf("Peaks: %d (max %d per spectrum)\n", s.Peaks, s.MaxPeaks)
		if s.Peaks > 0 {
			fmt.Printf("Fragment m/z range: %.4f - %.4f\n", s.MinMZ, s.MaxMZ)
		}
		if s.WithPrecursor > 0 {
			fmt.Printf("Precursor m/z range: %.4f - %.4f (%d spectra)\n", s.MinPrecursor, s.MaxPrecursor, s.WithPrecursor)
		}
		fmt.Printf("Metadata coverage:\n")
		for _, kc := range s.Coverage {
			fmt.Printf("  %-20s %d (%.1f%%)\n", kc.Key, kc.Count, 100*float64(kc.Count)/float64(s.Spectra))
		}
		return nil
	},
}

type recordProblem struct {
	Index int
	Name  string
	Err   error
}

type validationReport struct {
	Total    int
	Valid    int
	Problems []recordProblem
}

func validateLibrary(spectra []*core.LibrarySpectrum) validationReport {
	report := validationReport{Total: len(spectra)}
	for i, spec := range spectra {
		if err := spec.Validate(); err != nil {
			report.Problems = append(report.Problems, recordProblem{Index: i, Name: spec.Name(), Err: err})
			continue
		}
		report.Valid++
	}
	return report
}

type keyCount struct {
	Key   string
	Count int
}

type librarySummary struct {
	Spectra       int
	Peaks         int
	MaxPeaks      int
	MinMZ         float64
	MaxMZ         float64
	WithPrecursor int
	MinPrecursor  float64
	MaxPrecursor  float64
	Coverage      []keyCount // Most common first
}

func summarizeLibrary(spectra []*core.LibrarySpectrum) librarySummary {
	s := librarySummary{
		Spectra:      len(spectra),
		MinMZ:        math.Inf(1),
		MaxMZ:        math.Inf(-1),
		MinPrecursor: math.Inf(1),
		MaxPrecursor: math.Inf(-1),
	}
	keys := make(map[string]int)

	for _, spec := range spectra {
		n := len(spec.MZ)
		s.Peaks += n
		s.MaxPeaks = max(s.MaxPeaks, n)
		if lo, hi, ok := spec.MZRange(); ok {
			s.MinMZ = math.Min(s.MinMZ, lo)
			s.MaxMZ = math.Max(s.MaxMZ, hi)
		}
		if p, err := spec.PrecursorMZ(); err == nil {
			s.WithPrecursor++
			s.MinPrecursor = math.Min(s.MinPrecursor, p)
			s.MaxPrecursor = math.Max(s.MaxPrecursor, p)
		}
		for k := range spec.Meta {
			keys[k]++
		}
	}

	for k, c := range keys {
		s.Coverage = append(s.Coverage, keyCount{Key: k, Count: c})
	}
	sort.Slice(s.Coverage, func(i, j int) bool {
		if s.Coverage[i].Count != s.Coverage[j].Count {
			return s.Coverage[i].Count > s.Coverage[j].Count
		}
		return s.Coverage[i].Key < s.Coverage[j].Key
	})
	return s
}
