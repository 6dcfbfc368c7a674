package main

import (
	"context"
	"fmt"

	"parcel-constraints-be/internal/dto"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var regulationsZone string

var regulationsCmd = &cobra.Command{
	Use:   "regulations [municipality]",
	Short: "List stored regulations",
	Long: `Without argument, lists every municipality with stored regulation chunks.
With a municipality, prints its chunks in document order.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRegulations,
}

func init() {
	regulationsCmd.Flags().StringVarP(&regulationsZone, "zone", "z", "", "only chunks tagged with this zone number, e.g. 18/3")
	rootCmd.AddCommand(regulationsCmd)
}

func runRegulations(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	container, err := newContainer(cfg)
	if err != nil {
		return err
	}
	defer container.Close()

	ctx := context.Background()
	if len(args) == 0 {
		coverage, err := container.IngestService.Coverage(ctx, &dto.RegulationCoverageRequest{Zone: regulationsZone})
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, coverage)
		}
		if len(coverage) == 0 {
			color.Yellow("No regulation stored")
			return nil
		}
		for _, c := range coverage {
			fmt.Printf("  %-30s %4d chunks\n", c.Municipality, c.Chunks)
		}
		return nil
	}

	chunks, err := container.IngestService.Chunks(ctx, args[0], &dto.RegulationChunksRequest{Zone: regulationsZone})
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd, chunks)
	}
	for _, c := range chunks {
		color.Cyan("[%d] Article %s  zone %s  %v", c.ChunkIndex, c.Article, c.Zone, c.Concepts)
		fmt.Println(c.Document)
		fmt.Println()
	}
	return nil
}
