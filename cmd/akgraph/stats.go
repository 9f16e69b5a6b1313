package akgraph

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soundprediction/akgraph"
	"github.com/soundprediction/akgraph/pkg/config"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show knowledge graph statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		return err
	}

	client, err := akgraph.Open(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize akgraph: %w", err)
	}
	ctx := context.Background()
	defer client.Close(ctx)

	stats, err := client.Stats(ctx)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}

	fmt.Printf("Entities:       %d\n", stats.Entities)
	fmt.Printf("Relationships:  %d\n", stats.Relationships)
	fmt.Printf("Entity types:   %d\n", stats.EntityTypes)
	fmt.Printf("Documents:      %d\n", stats.Documents)

	kinds, err := client.EntityTypes(ctx)
	if err != nil {
		return fmt.Errorf("entity types: %w", err)
	}
	if len(kinds) > 0 {
		fmt.Println("\nTypes in graph:")
		for _, kind := range kinds {
			fmt.Printf("  %s\n", kind)
		}
	}
	return nil
}
