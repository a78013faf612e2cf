package cli

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/skosovsky/fncall"
	"github.com/skosovsky/fncall/internal/config"
	"github.com/skosovsky/fncall/internal/dependency"
)

func newSchemaCommand(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the tool schemas of the built-in functions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			schemas, err := dependency.Schemas(a.cfg)
			if err != nil {
				return err
			}
			var doc any = schemas
			switch format {
			case "tools":
			case "jsonschema":
				out := make(map[string]any, len(schemas))
				for _, s := range schemas {
					out[s.Name] = s.JSONSchema()
				}
				doc = out
			default:
				return fmt.Errorf("unknown schema format %q (want tools or jsonschema)", format)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(doc)
		},
	}
	cmd.Flags().StringVar(&format, "format", "tools", "output format: tools or jsonschema")
	return cmd
}

func newHasToolCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "hastool <model>",
		Short: "Report whether a model's template accepts tools",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.container(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()
			gate := c.Gate()
			if gate == nil {
				return fmt.Errorf("provider %s has no model introspection", a.cfg.Provider)
			}
			ok, err := gate.CheckTools(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if ok {
				fmt.Fprintf(out, "%s %s supports tools\n", color.GreenString("✓"), args[0])
			} else {
				fmt.Fprintf(out, "%s %s does not support tools\n", color.RedString("✗"), args[0])
			}
			return nil
		},
	}
}

func newToolModelsCommand(a *app) *cobra.Command {
	var sortFlag string
	cmd := &cobra.Command{
		Use:   "toolmodels",
		Short: "List local models that accept tools, with their sizes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			order, err := fncall.ParseSortOrder(sortFlag)
			if err != nil {
				return err
			}
			c, err := a.container(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()
			gate := c.Gate()
			if gate == nil {
				return fmt.Errorf("provider %s has no model listing", a.cfg.Provider)
			}
			report, err := gate.ToolModelReport(cmd.Context(), order)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().StringVar(&sortFlag, "sort", "none", "sort by size: asc, desc or none")
	return cmd
}

func printReport(w io.Writer, report []fncall.ModelSize) {
	if len(report) == 0 {
		fmt.Fprintln(w, color.YellowString("no models with tool support"))
		return
	}
	width := 0
	for _, m := range report {
		width = max(width, len(m.Name))
	}
	for _, m := range report {
		fmt.Fprintf(w, "%-*s  %s\n", width, m.Name, color.CyanString(m.Size))
	}
}

func newCallCommand(a *app) *cobra.Command {
	var prompt, system string
	cmd := &cobra.Command{
		Use:   "call",
		Short: "Send a prompt with the built-in functions attached and run the calls the model makes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if prompt == "" {
				return errors.New("--prompt is required")
			}
			c, err := a.container(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			req := fncall.ChatRequest{Model: a.cfg.Model}
			if system != "" {
				req.Messages = append(req.Messages, fncall.Message{Role: fncall.RoleSystem, Content: system})
			}
			req.Messages = append(req.Messages, fncall.Message{Role: fncall.RoleUser, Content: prompt})

			d, resp, err := c.Caller().FunctionCall(cmd.Context(), req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(d.Calls()) == 0 {
				fmt.Fprintln(out, resp.Message.Content)
				return nil
			}
			var outcomes []fncall.Outcome
			for _, name := range c.Registry().Names() {
				outcomes = append(outcomes, d.ExecuteAllOf(cmd.Context(), fncall.Named(name))...)
			}
			slices.SortStableFunc(outcomes, func(x, y fncall.Outcome) int { return cmp.Compare(x.Call.Index, y.Call.Index) })
			for _, o := range outcomes {
				printOutcome(out, o)
			}
			for _, call := range d.Calls() {
				if !c.Registry().Contains(call.Name) {
					fmt.Fprintf(out, "%s %s is not a known function\n", color.YellowString("?"), call.Name)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "user prompt")
	cmd.Flags().StringVar(&system, "system", "", "system prompt")
	return cmd
}

func printOutcome(w io.Writer, o fncall.Outcome) {
	switch o.Status {
	case fncall.StatusSucceeded:
		fmt.Fprintf(w, "%s %s\n%v\n", color.GreenString("●"), o.Call.Name, o.Value)
	case fncall.StatusRejected:
		fmt.Fprintf(w, "%s %s rejected: %v\n", color.YellowString("●"), o.Call.Name, o.Err)
	default:
		fmt.Fprintf(w, "%s %s failed\n", color.RedString("●"), o.Call.Name)
	}
}

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
		// The file may not exist or parse yet.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	}
	cmd.AddCommand(newConfigInitCommand(a))
	return cmd
}

func newConfigInitCommand(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with default settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := a.cfgPath
			if path == "" {
				path = config.Path()
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config %s already exists (use --force to overwrite)", path)
			}
			// Defaults only: credentials from the environment are not persisted.
			cfg := config.Default()
			if a.provider != "" {
				cfg.Provider = a.provider
			}
			if a.model != "" {
				cfg.Model = a.model
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(&cfg, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s wrote %s\n", color.GreenString("✓"), path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
