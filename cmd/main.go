package main

import (
	"os"

	"github.com/soundprediction/akgraph/cmd/akgraph"
)

func main() {
	if err := akgraph.Execute(); err != nil {
		os.Exit(1)
	}
}
