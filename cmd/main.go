package main

import (
	"context"
	"os"

	"github.com/rythmize/rythmize/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(logger)

	app := &cli.Command{
		Name:     "rythmize",
		Usage:    "Spotify playlist transfer backend",
		Version:  "1.0.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
