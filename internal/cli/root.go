// Package cli implements the fncall command line using cobra.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/skosovsky/fncall/internal/config"
	"github.com/skosovsky/fncall/internal/dependency"
)

const version = "0.1.0"

// app carries the flags and the loaded configuration shared by subcommands.
type app struct {
	cfgPath  string
	provider string
	model    string
	cfg      *config.Config
	stderr   io.Writer
}

// NewRootCommand returns the fncall command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "fncall",
		Short:         "Describe Go functions to a language model and run the tool calls it makes",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "config file (default "+config.Path()+")")
	root.PersistentFlags().StringVar(&a.provider, "provider", "", "model provider: ollama, openai, anthropic or gemini")
	root.PersistentFlags().StringVar(&a.model, "model", "", "model id")

	root.AddCommand(
		newSchemaCommand(a),
		newHasToolCommand(a),
		newToolModelsCommand(a),
		newCallCommand(a),
		newConfigCommand(a),
	)
	return root
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	if a.provider != "" {
		cfg.Provider = a.provider
	}
	if a.model != "" {
		cfg.Model = a.model
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.stderr = cmd.ErrOrStderr()
	return nil
}

// container wires the services for one command run. The caller closes it.
func (a *app) container(ctx context.Context) (*dependency.Container, error) {
	if a.cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	c, err := dependency.New(ctx, a.cfg, a.stderr)
	if err != nil {
		return nil, fmt.Errorf("wire services: %w", err)
	}
	return c, nil
}
