package main

import (
	"log/slog"

	"github.com/soundprediction/akgraph/pkg/logger"
)

func main() {
	// Create a colored logger
	log := logger.NewDefaultLogger(slog.LevelDebug)

	log.Info("============================================")
	log.Info("    akgraph Colored Logger Demo")
	log.Info("============================================")
	log.Info("")

	log.Debug("Debug message - standard color")
	log.Info("Info message - standard color")
	log.Info("Persisting entities to graph - green!")
	log.Info("Entities persisted successfully - also green!")
	log.Warn("Warning message - yellow!")
	log.Error("Error message - red!")

	log.Info("")
	log.Info("Graph writes are highlighted in green:")
	log.Info("Persisting deduplicated entities", "count", 42, "batch_size", 100)
	log.Info("Deduplicated entities persisted", "duration", "2.5s")
	log.Info("Persisting resolved relationships", "count", 156)
	log.Info("Resolved relationships persisted", "duration", "1.8s")

	log.Info("")
	log.Warn("Warnings appear in yellow for attention")
	log.Error("Errors appear in red for immediate visibility")

	log.Info("")
	log.Info("Demo complete!")
}
