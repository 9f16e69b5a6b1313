package logger_test

import (
	"log/slog"

	"github.com/soundprediction/akgraph/pkg/logger"
)

func ExampleNewDefaultLogger() {
	// Create a logger with default settings
	log := logger.NewDefaultLogger(slog.LevelDebug)

	// Log different levels
	log.Debug("This is a debug message")
	log.Info("This is an info message")
	log.Info("Persisting entities to graph") // Will be green in terminal
	log.Warn("This is a warning message")    // Will be yellow in terminal
	log.Error("This is an error message")    // Will be red in terminal
}

func ExampleNewLogger() {
	// Create a logger with custom configuration
	log := logger.NewDefaultLogger(slog.LevelInfo)

	// Log with attributes
	log.Info("Processing document", "document_id", "doc-12345", "chunks", 7)
	log.Info("Persisting deduplicated entities", "count", 42, "batch_size", 100) // Green
	log.Warn("Rate limit approaching", "current", 95, "limit", 100)              // Yellow
	log.Error("Graph connection failed", "error", "timeout", "retry_count", 3)   // Red
}
