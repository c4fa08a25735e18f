package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/songtagger/internal/core/graph"
)

func newValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a graph definition without touching the library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := readDefinition(args[0])
			if err != nil {
				return err
			}
			g, err := graph.Build(def, ctx.logger())
			if err != nil {
				return err
			}
			fmt.Fprintln(ctx.out, renderGraphStatus(g, shouldColorize(ctx.out)))
			if !g.Runnable() {
				return fmt.Errorf("graph %q is not runnable", def.Name)
			}
			return nil
		},
	}
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts graph.RunOptions
	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Evaluate a graph definition against the library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := readDefinition(args[0])
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			g, err := graph.Build(def, a.Logger)
			if err != nil {
				return err
			}
			return runAndRender(cmd.Context(), ctx, a, g, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.Persist, "persist", false, "Write output playlists and tag assignments")
	cmd.Flags().BoolVar(&opts.IncludeAll, "include-all", false, "Fetch every optional join for display")
	return cmd
}

func newImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Store a graph definition in the library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := readDefinition(args[0])
			if err != nil {
				return err
			}
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			saved, err := a.Generator.SaveDefinition(cmd.Context(), def)
			if err != nil {
				return err
			}
			fmt.Fprintf(ctx.out, "Imported %q as %s\n", saved.Name, saved.ID)
			return nil
		},
	}
}

func newListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored graph definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			defs, err := a.Generator.ListDefinitions(cmd.Context())
			if err != nil {
				return err
			}
			if len(defs) == 0 {
				fmt.Fprintln(ctx.out, "No graphs stored")
				return nil
			}
			rows := make([][]string, 0, len(defs))
			for _, d := range defs {
				rows = append(rows, []string{d.ID, d.Name, strconv.Itoa(len(d.Nodes)), strconv.Itoa(len(d.Edges))})
			}
			fmt.Fprintln(ctx.out, renderTable([]string{"ID", "Name", "Nodes", "Edges"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight, alignRight}))
			return nil
		},
	}
}

func newKindsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List the node kinds a definition may use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, k := range graph.Kinds() {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
}
