package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/DIMA/pkg/filter"
	mspwriter "github.com/ChrisMcGann/DIMA/pkg/writer/msp"
)

var (
	// Flags for reformat command
	reformatInputs []string
	reformatOutDir string
	topN           int
	cutoffPercent  float64
	removeZero     bool
)

var reformatCmd = &cobra.Command{
	Use:   "reformat",
	Short: "Combine and reduce spectral libraries into one MSP file",
	Long: `Combine one or more MSP/MGF libraries, keep the top-N most intense peaks of
every record and save the result as reformatted_library_<id>.msp.

Records without a precursor m/z are dropped.

Examples:
  dima reformat --in a.msp --in b.mgf --top-n 10 --out-dir libs/`,
	RunE: runReformat,
}

func init() {
	reformatCmd.Flags().StringSliceVarP(&reformatInputs, "in", "i", nil, "Input library file(s) (required)")
	reformatCmd.Flags().StringVarP(&reformatOutDir, "out-dir", "o", ".", "Directory for the reformatted library")
	reformatCmd.Flags().IntVar(&topN, "top-n", 0, "Keep only top N most intense peaks")
	reformatCmd.Flags().Float64Var(&cutoffPercent, "cutoff", 0, "Intensity cutoff as % of base peak (0 = no cutoff)")

	reformatCmd.Flags().BoolVar(&removeZero, "remove-zero", false, "Drop zero-intensity peaks before reduction")

	reformatCmd.MarkFlagRequired("in")
}

func runReformat(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("top-n") {
		cfg.TopNPeaks = topN
	}
	if cfg.TopNPeaks < 1 {
		return fmt.Errorf("top-n must be at least 1, got %d", cfg.TopNPeaks)
	}

	spectra, err := loadLibraries(reformatInputs)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(reformatOutDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	kept, dropped := filter.ReformatLibrary(spectra, &filter.Config{
		TopN:            cfg.TopNPeaks,
		IntensityCutoff: cutoffPercent,
		RemoveZeroPeaks: removeZero,
	}, logger)

	outPath := filepath.Join(reformatOutDir, fmt.Sprintf("reformatted_library_%s.msp", uuid.New()))
	if err := mspwriter.WriteFile(outPath, kept); err != nil {
		return err
	}

	fmt.Printf("\nReformat complete!\n")
	fmt.Printf("  Input records: %d\n", len(spectra))
	fmt.Printf("  Written: %d\n", len(kept))
	fmt.Printf("  Dropped (no precursor m/z): %d\n", dropped)
	fmt.Printf("  Top N: %d\n", cfg.TopNPeaks)
	fmt.Printf("  Output: %s\n", outPath)
	return nil
}
