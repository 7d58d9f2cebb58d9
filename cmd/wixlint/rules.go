package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"wixlint/internal/analysis"
	"wixlint/internal/fsutil"
	"wixlint/internal/report"
	"wixlint/internal/rules"
)

type ruleRow struct {
	ID       string `json:"id"`
	Severity string `json:"severity"`
	Category string `json:"category"`
	Element  string `json:"element"`
	Name     string `json:"name"`
	Enabled  bool   `json:"enabled"`
	Builtin  bool   `json:"builtin_check,omitempty"`
}

func newRulesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List or check rule sets",
	}

	var format string
	list := &cobra.Command{
		Use:   "list",
		Short: "List every rule and built-in check with its effective selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			cfg, err := a.loadConfig(".")
			if err != nil {
				return err
			}
			rs, err := analysis.LoadRules(cfg, a.log)
			if err != nil {
				return err
			}
			an := analysis.New(rs, cfg)
			active := make(map[string]bool)
			for _, r := range an.Engine().Rules() {
				active[r.ID] = true
			}
			var rows []ruleRow
			for _, r := range rs {
				rows = append(rows, ruleRow{
					ID: r.ID, Severity: r.Severity.String(), Category: string(r.Category),
					Element: r.Element, Name: r.Name, Enabled: active[r.ID],
				})
			}
			for _, c := range analysis.Checks {
				rows = append(rows, ruleRow{
					ID: c.ID, Severity: c.Severity.String(), Category: string(c.Category),
					Element: "*", Name: c.Name, Enabled: an.CheckEnabled(c.ID), Builtin: true,
				})
			}
			if f == report.FormatJSON {
				data, err := fsutil.MarshalJSON(rows)
				if err != nil {
					return err
				}
				_, err = a.stdout.Write(data)
				return err
			}
			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSEVERITY\tCATEGORY\tELEMENT\tENABLED\tNAME")
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\n", r.ID, r.Severity, r.Category, r.Element, r.Enabled, r.Name)
			}
			return tw.Flush()
		},
	}
	list.Flags().StringVar(&format, "format", "text", "output format: text or json")

	var strict bool
	check := &cobra.Command{
		Use:   "check FILE...",
		Short: "Validate rule files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				set, err := rules.LoadFile(path, rules.LoadOptions{Strict: strict, Logger: a.log})
				if err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "%s: %d rule(s) ok\n", path, len(set.Rules))
			}
			return nil
		},
	}
	check.Flags().BoolVar(&strict, "strict", false, "treat pattern warnings as errors")

	cmd.AddCommand(list, check)
	return cmd
}
