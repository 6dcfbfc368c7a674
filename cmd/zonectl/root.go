package main

import (
	"encoding/json"
	"fmt"
	"os"

	"parcel-constraints-be/internal/bootstrap"
	"parcel-constraints-be/internal/config"
	"parcel-constraints-be/pkg/database"
	"parcel-constraints-be/pkg/rdppf"

	"github.com/spf13/cobra"
)

var jsonOutput bool

var rootCmd = &cobra.Command{
	Use:          "zonectl",
	Short:        "Zoning constraint extraction for Valais parcels",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output results as JSON")
}

// loadConfig reads the environment the way the REST server does.
func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newContainer connects to the database and builds the full service graph.
func newContainer(cfg *config.Config) (*bootstrap.Container, error) {
	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, false)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	return bootstrap.NewContainer(db, cfg)
}

func readExtract(path string) (*rdppf.Extract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ext rdppf.Extract
	if err := json.Unmarshal(data, &ext); err != nil {
		return nil, fmt.Errorf("parse extract %s: %w", path, err)
	}
	return &ext, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
