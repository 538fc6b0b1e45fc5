// Package app provides the SeekSense server application.
package app

import (
	"context"
	"fmt"

	"github.com/kart-io/seeksense/cmd/seeksense/app/options"
	ragsvc "github.com/kart-io/seeksense/internal/rag"
	"github.com/kart-io/seeksense/pkg/infra/app"
)

// commandDesc is the description of the command.
const commandDesc = `SeekSense Search Service

Chunked indexing and retrieval for Bengali product text.

This server provides:
  - Document chunking and vector indexing
  - Similarity search with document reassembly
  - Guarded question answering with an LLM
  - Embedding and chat providers: Jina, Ollama and OpenAI-compatible APIs`

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	return app.NewApp(
		app.WithName(ragsvc.Name),
		app.WithShortDescription("SeekSense search service"),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
		app.WithCommands(newIndexCommand(opts)),
	)
}

// run contains the main logic for initializing and running the server.
func run(opts *options.ServerOptions) app.RunFunc {
	return func(ctx context.Context) error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		return server.Run(ctx)
	}
}
