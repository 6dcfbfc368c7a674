package main

import (
	"fmt"

	"parcel-constraints-be/internal/config"
	"parcel-constraints-be/pkg/zoning/locator"
	"parcel-constraints-be/pkg/zoning/vocabulary"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var locateCmd = &cobra.Command{
	Use:   "locate <extract.json>",
	Short: "Locate the zone of a parcel from a saved legal extract",
	Long: `Reads a legal extract JSON file and prints the building zone and the
constraint candidates found in it. No database or network access is needed.`,
	Args: cobra.ExactArgs(1),
	RunE: runLocate,
}

func init() {
	rootCmd.AddCommand(locateCmd)
}

func runLocate(cmd *cobra.Command, args []string) error {
	ext, err := readExtract(args[0])
	if err != nil {
		return err
	}

	vocab, err := vocabulary.Load(config.Load().Engine.VocabularyFile)
	if err != nil {
		return err
	}

	loc := locator.New(vocab, nil).Locate(ext)
	if jsonOutput {
		return printJSON(cmd, loc)
	}

	if loc.Zone == nil {
		color.Yellow("No zone found in extract")
	} else {
		color.Cyan("Zone %s", loc.Zone.RawLabel)
		fmt.Printf("  number: %s  parent: %s  type: %s  (from %s)\n",
			loc.Zone.ZoneNumber, loc.Zone.ParentZone, loc.Zone.ZoneType, loc.Origin)
	}

	if len(loc.Candidates) == 0 {
		return nil
	}
	fmt.Printf("\n%d constraint candidates:\n", len(loc.Candidates))
	for i, c := range loc.Candidates {
		fmt.Printf("  [%d] %s/%s %s\n", i+1, c.Kind, c.Category, c.Text)
	}
	return nil
}
