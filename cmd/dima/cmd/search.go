package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/DIMA/pkg/core"
	"github.com/ChrisMcGann/DIMA/pkg/reader/mzml"
	"github.com/ChrisMcGann/DIMA/pkg/search"
	csvwriter "github.com/ChrisMcGann/DIMA/pkg/writer/csv"
	"github.com/ChrisMcGann/DIMA/pkg/writer/sqlite"
)

var (
	// Flags for search command
	queryFile       string
	libraryFiles    []string
	resultFile      string
	scanStart       int
	scanEnd         int
	ppmTolerance    float64
	precursorWindow float64
	minPeaks        int
	workers         int
	threshold       float64
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Match the MS2 scans of an mzML run against a spectral library",
	Long: `Match every MS2 scan in a scan range of an mzML acquisition against an MSP or
MGF reference library and write the best-scoring compound per scan.

Flags override values from the configuration file and DIMA_* environment variables.

Examples:
  # Search the whole run with default tolerances
  dima search --query run.mzML --library library.msp --out results.csv

  # Search scans 100-199 with 4 workers into SQLite
  dima search --query run.mzML --library library.msp --out results.db --scan-start 100 --scan-end 200 --workers 4`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&queryFile, "query", "q", "", "Query acquisition in mzML format (required)")
	searchCmd.Flags().StringSliceVarP(&libraryFiles, "library", "l", nil, "Library file(s), .msp or .mgf (required)")
	searchCmd.Flags().StringVarP(&resultFile, "out", "o", "", "Output file, .csv or .db (required)")
	searchCmd.Flags().IntVar(&scanStart, "scan-start", 0, "First scan index (inclusive)")
	searchCmd.Flags().IntVar(&scanEnd, "scan-end", 0, "Last scan index (exclusive, default end of run)")
	searchCmd.Flags().Float64Var(&ppmTolerance, "ppm", 0, "Fragment m/z tolerance in ppm")
	searchCmd.Flags().Float64Var(&precursorWindow, "window", 0, "Precursor m/z window in Da")
	searchCmd.Flags().IntVar(&minPeaks, "min-peaks", 0, "Minimum number of matched peaks")
	searchCmd.Flags().IntVar(&workers, "workers", 0, "Number of scans processed concurrently")
	searchCmd.Flags().Float64Var(&threshold, "threshold", 0, "Drop query peaks at or below this intensity")

	searchCmd.MarkFlagRequired("query")
	searchCmd.MarkFlagRequired("library")
	searchCmd.MarkFlagRequired("out")
}

// applySearchFlags copies explicitly set flags over the loaded configuration
func applySearchFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("ppm") {
		cfg.PPMTolerance = ppmTolerance
	}
	if flags.Changed("window") {
		cfg.PrecursorWindow = precursorWindow
	}
	if flags.Changed("min-peaks") {
		cfg.MinMatchedPeaks = minPeaks
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("threshold") {
		cfg.IntensityThreshold = threshold
	}
	if flags.Changed("scan-start") {
		cfg.ScanStart = scanStart
	}
	if flags.Changed("scan-end") {
		cfg.ScanEnd = scanEnd
	}
}

func runSearch(cmd *cobra.Command, args []string) error {
	applySearchFlags(cmd)
	if err := cfg.Validate(); err != nil {
		return err
	}

	if _, err := os.Stat(queryFile); os.IsNotExist(err) {
		return fmt.Errorf("query file does not exist: %s", queryFile)
	}
	outFormat, err := resultFormat(resultFile)
	if err != nil {
		return err
	}

	start := time.Now()

	spectra, err := loadLibraries(libraryFiles)
	if err != nil {
		return err
	}
	lib := core.NewLibrary(spectra, logger)
	fmt.Printf("Library: %d spectra loaded (%d skipped)\n", lib.Len(), lib.Skipped())

	run, err := mzml.Open(queryFile, cfg.IntensityThreshold)
	if err != nil {
		return err
	}
	if cfg.ScanEnd == 0 {
		cfg.ScanEnd = run.NumSpecs()
	}
	if err := cfg.ValidateScanRange(); err != nil {
		return err
	}
	if cfg.ScanEnd > run.NumSpecs() {
		return fmt.Errorf("scan range end %d exceeds the %d scans in %s", cfg.ScanEnd, run.NumSpecs(), queryFile)
	}
	fmt.Printf("Query: %d scans, searching [%d, %d)\n", run.NumSpecs(), cfg.ScanStart, cfg.ScanEnd)

	proc, err := search.NewProcessor(lib, run, search.Params{
		PPMTolerance:    cfg.PPMTolerance,
		PrecursorWindow: cfg.PrecursorWindow,
		MinMatchedPeaks: cfg.MinMatchedPeaks,
		Workers:         cfg.Workers,
	}, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, procErr := proc.Process(ctx, cfg.ScanStart, cfg.ScanEnd)
	if procErr != nil && !errors.Is(procErr, context.Canceled) {
		return procErr
	}

	if err := writeResults(outFormat, results); err != nil {
		return err
	}

	stats := proc.Stats()
	fmt.Printf("\nSearch complete!\n")
	fmt.Printf("  Scans processed: %d\n", stats.Scanned)
	fmt.Printf("  Identified: %d\n", stats.Identified)
	fmt.Printf("  No candidate: %d\n", stats.NoCandidate)
	if stats.Failed > 0 {
		fmt.Printf("  Failed: %d\n", stats.Failed)
	}
	fmt.Printf("  Output: %s\n", resultFile)
	fmt.Printf("  Elapsed: %s\n", time.Since(start).Round(time.Millisecond))

	if procErr != nil {
		return fmt.Errorf("search interrupted, partial results written: %w", procErr)
	}
	return nil
}

func resultFormat(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return "csv", nil
	case ".db", ".sqlite":
		return "sqlite", nil
	default:
		return "", fmt.Errorf("cannot determine output format from extension '%s', expected .csv or .db", ext)
	}
}

func writeResults(format string, results *core.ResultSet) error {
	if format == "csv" {
		return csvwriter.WriteFile(resultFile, results)
	}

	writer, err := sqlite.NewWriter(resultFile, sqlite.RunInfo{
		QueryFile:       queryFile,
		LibraryFile:     strings.Join(libraryFiles, ","),
		PPMTolerance:    cfg.PPMTolerance,
		PrecursorWindow: cfg.PrecursorWindow,
		MinMatchedPeaks: cfg.MinMatchedPeaks,
	})
	if err != nil {
		return fmt.Errorf("failed to create output database: %w", err)
	}
	defer writer.Close()

	if err := writer.WriteResultSet(results); err != nil {
		return err
	}
	return writer.Finalize()
}
