package akgraph

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soundprediction/akgraph"
	"github.com/soundprediction/akgraph/pkg/config"
	akgraphLogger "github.com/soundprediction/akgraph/pkg/logger"
	"github.com/soundprediction/akgraph/pkg/server"
	"github.com/soundprediction/akgraph/pkg/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the akgraph HTTP server",
	Long: `Start the akgraph HTTP server to provide REST API access to the pipeline.

The server provides endpoints for:
- Processing documents (single and batch)
- Graph statistics and entity types
- Health checks

Configuration can be provided through config files, environment variables, or command-line flags.`,
	RunE: runServe,
}

var (
	serverHost string
	serverPort int
	serverMode string
)

func init() {
	rootCmd.AddCommand(serveCmd)

	// Server-specific flags
	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "Server host")
	serveCmd.Flags().IntVar(&serverPort, "port", 8080, "Server port")
	serveCmd.Flags().StringVar(&serverMode, "mode", "release", "Server mode (debug, release, test)")

	// Graph store flags
	serveCmd.Flags().String("graph-driver", "neo4j", "Graph driver (neo4j, memory)")
	serveCmd.Flags().String("graph-uri", "bolt://localhost:7687", "Graph URI")
	serveCmd.Flags().String("graph-username", "neo4j", "Graph username")
	serveCmd.Flags().String("graph-password", "", "Graph password")
	serveCmd.Flags().String("graph-database", "neo4j", "Graph database name")

	// Extractor flags
	serveCmd.Flags().String("extractor-model", "gpt-4o-mini", "Extraction model")
	serveCmd.Flags().String("extractor-api-key", "", "Extraction API key")
	serveCmd.Flags().String("extractor-base-url", "", "Extraction API base URL")

	// Telemetry flags
	serveCmd.Flags().String("telemetry-parquet-path", "", "Path to directory for error telemetry")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	overrideConfigWithFlags(cmd, cfg)

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Server.Port)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		return err
	}

	logger.Info("initializing akgraph")
	client, err := akgraph.Open(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize akgraph: %w", err)
	}

	srv := server.New(cfg, client, logger)
	srv.Setup()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		logger.Info("received signal, shutting down", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		if err := client.Close(shutdownCtx); err != nil {
			logger.Warn("close error", "error", err)
		}

		logger.Info("server stopped gracefully")
		return nil
	}
}

// buildLogger assembles the logging chain: colored stderr output, error
// telemetry to Parquet, and optionally a SQL sink when TELEMETRY_DSN is
// set.
func buildLogger(cfg *config.Config) (*slog.Logger, error) {
	level := slog.LevelInfo
	switch cfg.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler = akgraphLogger.NewColorHandler(os.Stderr, &slog.HandlerOptions{Level: level})

	if cfg.Telemetry.ParquetPath != "" {
		parquetHandler, err := telemetry.NewParquetHandler(handler, cfg.Telemetry.ParquetPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to initialize error tracking: %v\n", err)
		} else {
			handler = parquetHandler
		}
	}

	if dsn := os.Getenv("TELEMETRY_DSN"); dsn != "" {
		db, err := sql.Open("mysql", dsn)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to open telemetry database: %v\n", err)
		} else if sqlHandler, err := telemetry.NewSQLHandler(handler, db); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to initialize SQL telemetry: %v\n", err)
		} else {
			handler = sqlHandler
		}
	}

	return slog.New(handler), nil
}

func overrideConfigWithFlags(cmd *cobra.Command, cfg *config.Config) {
	// Server flags
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serverHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = serverPort
	}
	if cmd.Flags().Changed("mode") {
		cfg.Server.Mode = serverMode
	}

	// Graph store flags
	if cmd.Flags().Changed("graph-driver") {
		cfg.Graph.Driver, _ = cmd.Flags().GetString("graph-driver")
	}
	if cmd.Flags().Changed("graph-uri") {
		cfg.Graph.URI, _ = cmd.Flags().GetString("graph-uri")
	}
	if cmd.Flags().Changed("graph-username") {
		cfg.Graph.Username, _ = cmd.Flags().GetString("graph-username")
	}
	if cmd.Flags().Changed("graph-password") {
		cfg.Graph.Password, _ = cmd.Flags().GetString("graph-password")
	}
	if cmd.Flags().Changed("graph-database") {
		cfg.Graph.Database, _ = cmd.Flags().GetString("graph-database")
	}

	// Extractor flags
	if cmd.Flags().Changed("extractor-model") {
		cfg.Extractor.Model, _ = cmd.Flags().GetString("extractor-model")
	}
	if cmd.Flags().Changed("extractor-api-key") {
		cfg.Extractor.APIKey, _ = cmd.Flags().GetString("extractor-api-key")
	}
	if cmd.Flags().Changed("extractor-base-url") {
		cfg.Extractor.BaseURL, _ = cmd.Flags().GetString("extractor-base-url")
	}

	// Telemetry flags
	if cmd.Flags().Changed("telemetry-parquet-path") {
		cfg.Telemetry.ParquetPath, _ = cmd.Flags().GetString("telemetry-parquet-path")
	}
}
