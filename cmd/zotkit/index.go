package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/zotkit/zotkit/pkg/config"
	"github.com/zotkit/zotkit/pkg/library"
	"github.com/zotkit/zotkit/pkg/semantic"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the semantic search index",
	Long:  `Provides commands for building, refreshing, and inspecting the embedding index used by semantic search.`,
}

var indexUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Build or refresh the embedding index over the configured library",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rebuild, _ := cmd.Flags().GetBool("rebuild")
		limit, _ := cmd.Flags().GetInt("limit")
		verbose, _ := cmd.Flags().GetBool("verbose")
		log := newLogger(verbose)

		engine, err := openSemanticEngine(log)
		if err != nil {
			return err
		}
		defer engine.Close()

		manager := library.NewManager(log)
		client, err := manager.Client(cmd.Context())
		if err != nil {
			return err
		}

		stats, err := engine.UpdateDatabase(cmd.Context(), client, rebuild, limit)
		if err != nil {
			return err
		}
		fmt.Printf("Scanned %d items: %d added, %d updated, %d skipped, %d errors (%s)\n",
			stats.TotalItems, stats.Added, stats.Updated, stats.Skipped, stats.Errors, stats.Duration.Round(10*time.Millisecond))
		return nil
	},
}

var indexStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the embedding index size, model, and update schedule",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger(false)

		engine, err := openSemanticEngine(log)
		if err != nil {
			return err
		}
		defer engine.Close()

		status, err := engine.Status(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("Documents indexed: %d\n", status.DocumentCount)
		fmt.Printf("Embedding model:   %s\n", status.EmbeddingModel)
		fmt.Printf("Database path:     %s\n", status.DatabasePath)
		fmt.Printf("Auto update:       %t (%s)\n", status.AutoUpdate, status.Frequency)
		if status.LastUpdate != "" {
			fmt.Printf("Last update:       %s\n", status.LastUpdate)
		}
		fmt.Printf("Update due:        %t\n", status.ShouldUpdate)
		return nil
	},
}

func openSemanticEngine(log zerolog.Logger) (*semantic.Engine, error) {
	path, err := semanticConfigFile()
	if err != nil {
		return nil, err
	}
	return semantic.NewEngine(path, log)
}

func init() {
	indexUpdateCmd.Flags().Bool("rebuild", false, "Drop the index and re-embed everything")
	indexUpdateCmd.Flags().Int("limit", 0, "Bound the number of items processed this run")
	indexUpdateCmd.Flags().Bool("verbose", false, "Enable debug logging")

	indexCmd.AddCommand(indexUpdateCmd, indexStatusCmd)
}

// semanticConfigFile locates the semantic search config file used by both
// the CLI and the MCP server.
func semanticConfigFile() (string, error) {
	dir, err := config.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "semantic.json"), nil
}
