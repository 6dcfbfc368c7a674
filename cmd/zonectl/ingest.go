package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <municipality> <regulation.txt>",
	Short: "Replace the stored regulation of a municipality",
	Long: `Chunks and embeds a municipal building regulation text and replaces every
chunk previously stored for the municipality. Runs synchronously, without
going through the ingestion queue.`,
	Args: cobra.ExactArgs(2),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	text, err := os.ReadFile(args[1])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	container, err := newContainer(cfg)
	if err != nil {
		return err
	}
	defer container.Close()

	res, err := container.ConsumerService.Ingest(context.Background(), args[0], string(text))
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd, res)
	}
	color.Green("Ingested %d chunks for %s (%d replaced) in %d ms",
		res.Chunks, res.Municipality, res.Replaced, res.DurationMs)
	return nil
}
