package akgraph

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/soundprediction/akgraph"
	"github.com/soundprediction/akgraph/pkg/config"
	"github.com/soundprediction/akgraph/pkg/types"
)

var processCmd = &cobra.Command{
	Use:   "process [files...]",
	Short: "Process documents into the knowledge graph",
	Long: `Process one or more text files into the knowledge graph.

Each file becomes a document identified by its path. Unchanged files are
skipped on re-runs. With --watch, the command keeps running and processes
files as they are created or modified in the watched directory.`,
	RunE: runProcess,
}

var (
	processDomain    string
	processSubdomain string
	watchDir         string
)

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringVar(&processDomain, "domain", "", "Domain override for all documents")
	processCmd.Flags().StringVar(&processSubdomain, "subdomain", "", "Subdomain override for all documents")
	processCmd.Flags().StringVar(&watchDir, "watch", "", "Watch a directory and process files as they change")
}

func runProcess(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && watchDir == "" {
		return fmt.Errorf("nothing to do: pass files or --watch")
	}

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

	if len(args) > 0 {
		docs, err := documentsFromPaths(args)
		if err != nil {
			return err
		}
		if err := processAndReport(ctx, client, docs); err != nil {
			return err
		}
	}

	if watchDir != "" {
		return watchAndProcess(ctx, client)
	}
	return nil
}

func documentsFromPaths(paths []string) ([]types.Document, error) {
	var docs []types.Document
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		docs = append(docs, types.Document{
			ID:         path,
			Title:      strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
			Content:    string(content),
			Domain:     processDomain,
			Subdomain:  processSubdomain,
			SourcePath: path,
			CreatedAt:  time.Now().UTC(),
		})
	}
	return docs, nil
}

func processAndReport(ctx context.Context, client *akgraph.Client, docs []types.Document) error {
	batch, err := client.ProcessDocuments(ctx, docs)
	if err != nil {
		return err
	}

	for _, result := range batch.Results {
		fmt.Printf("%-40s %-28s chunks=%d entities=%d/+%d relationships=%d\n",
			result.DocumentID, result.Status, result.Chunks,
			result.EntitiesReused, result.EntitiesCreated, result.RelationshipsCreated)
		for _, chunkErr := range result.Errors {
			fmt.Printf("  chunk %d (%s): %s\n", chunkErr.ChunkIndex, chunkErr.Stage, chunkErr.Message)
		}
	}
	fmt.Printf("done: %d succeeded, %d failed, %d entities, %d relationships (%s)\n",
		batch.Succeeded, batch.Failed, batch.EntitiesCreated, batch.RelationshipsCreated,
		batch.TotalProcessingTime.Round(time.Millisecond))
	if batch.Failed > 0 {
		return fmt.Errorf("%d of %d documents failed", batch.Failed, len(batch.Results))
	}
	return nil
}

// watchAndProcess blocks, processing files in the watched directory as
// they appear or change, until interrupted.
func watchAndProcess(ctx context.Context, client *akgraph.Client) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(watchDir); err != nil {
		return fmt.Errorf("watching %s: %w", watchDir, err)
	}
	fmt.Printf("Watching %s (Ctrl-C to stop)\n", watchDir)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !processableFile(event.Name) {
				continue
			}
			// Editors fire several events per save; the content hash
			// check makes re-processing an unchanged file a no-op.
			docs, err := documentsFromPaths([]string{event.Name})
			if err != nil {
				fmt.Fprintf(os.Stderr, "skipping %s: %v\n", event.Name, err)
				continue
			}
			if err := processAndReport(ctx, client, docs); err != nil {
				fmt.Fprintf(os.Stderr, "processing %s: %v\n", event.Name, err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watch error: %v\n", err)
		case sig := <-sigChan:
			fmt.Printf("\nReceived signal: %v\n", sig)
			return nil
		}
	}
}

func processableFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".text":
		return true
	}
	return false
}
