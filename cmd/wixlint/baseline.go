package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"wixlint/internal/baseline"
	"wixlint/internal/sortutil"
)

func newBaselineCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Accept existing diagnostics so only new ones are reported",
	}
	var output, description string
	create := &cobra.Command{
		Use:   "create [paths...]",
		Short: "Write a baseline of the current diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := orDot(args)
			cfg, err := a.loadConfig(startDir(paths))
			if err != nil {
				return err
			}
			files, err := sourceFiles(paths)
			if err != nil {
				return err
			}
			p, err := a.project(cfg)
			if err != nil {
				return err
			}
			results, err := p.Run(cmd.Context(), files)
			if err != nil {
				return err
			}
			b := baseline.FromResults(results, cfg.Root())
			b.Description = description
			path := output
			if path == "" {
				path = cfg.BaselinePath()
			}
			if path == "" {
				path = filepath.Join(cfg.Root(), baseline.FileName)
			}
			if err := b.Save(path); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "baseline with %d issue(s) written to %s\n", b.Len(), path)
			return nil
		},
	}
	create.Flags().StringVarP(&output, "output", "o", "", "baseline path (default: config, then project root)")
	create.Flags().StringVar(&description, "description", "", "free-form note stored in the baseline")

	stats := &cobra.Command{
		Use:   "stats [file]",
		Short: "Summarize a baseline file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				b    *baseline.Baseline
				path string
				err  error
			)
			if len(args) == 1 {
				path = args[0]
				b, err = baseline.Load(path)
			} else {
				b, path, err = baseline.FindAndLoad(".")
			}
			if err != nil {
				return err
			}
			if b == nil {
				return fmt.Errorf("no %s found", baseline.FileName)
			}
			s := b.Stats()
			fmt.Fprintf(a.stdout, "%s: %d issue(s), %d rule(s), %d file(s)\n", path, s.TotalIssues, s.UniqueRules, s.UniqueFiles)
			for _, id := range sortutil.Keys(s.ByRule) {
				fmt.Fprintf(a.stdout, "  %-24s %d\n", id, s.ByRule[id])
			}
			return nil
		},
	}

	cmd.AddCommand(create, stats)
	return cmd
}
