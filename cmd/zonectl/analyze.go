package main

import (
	"context"
	"fmt"

	"parcel-constraints-be/internal/dto"
	"parcel-constraints-be/pkg/rdppf"
	"parcel-constraints-be/pkg/zoning"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	analyzePolicy      string
	analyzeExtractFile string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <municipality> <parcel>",
	Short: "Analyze the building constraints of a parcel",
	Long: `Fetches the legal extract of the parcel (or reads it from --extract),
locates its zone, retrieves the matching regulation passages and prints the
resolved constraints with the textual report.`,
	Args: cobra.ExactArgs(2),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzePolicy, "policy", "p", "", "zone-first or regulation-first (defaults to ENGINE_DEFAULT_POLICY)")
	analyzeCmd.Flags().StringVar(&analyzeExtractFile, "extract", "", "read the legal extract from a JSON file instead of fetching it")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	req := &dto.AnalyzeRequest{
		Municipality: args[0],
		Parcel:       args[1],
		Policy:       analyzePolicy,
	}
	if analyzeExtractFile != "" {
		var ext *rdppf.Extract
		if ext, err = readExtract(analyzeExtractFile); err != nil {
			return err
		}
		req.Extract = ext
	}

	container, err := newContainer(cfg)
	if err != nil {
		return err
	}
	defer container.Close()

	res, err := container.ConstraintService.Analyze(context.Background(), req)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd, res)
	}
	printAnalysis(res)
	return nil
}

func printAnalysis(res *dto.AnalyzeResponse) {
	if res.Zone == nil {
		color.Yellow("No zone found for this parcel")
	} else {
		color.Cyan("Zone %s (%s)", res.Zone.RawLabel, res.Zone.ZoneType)
	}
	fmt.Printf("Policy: %s   Confidence: %.2f   Duration: %d ms\n\n", res.Policy, res.Confidence, res.DurationMs)

	names := append(append([]zoning.SlotName{}, zoning.ConstraintSlots...), zoning.SlotRemarques)
	for _, name := range names {
		slot, ok := res.Slots[name]
		if !ok || !slot.Resolved() {
			color.New(color.Faint).Printf("  %-22s %s\n", name, zoning.Unresolved)
			continue
		}
		color.Green("  %-22s %s  (%s, %.1f)", name, slot.Value, slot.Source, slot.Confidence)
	}

	fmt.Println()
	fmt.Println(res.Report)
}
