package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"wixlint/internal/deps"
	"wixlint/internal/document"
	"wixlint/internal/fsutil"
	"wixlint/internal/report"
)

func newDepsCmd(a *app) *cobra.Command {
	var (
		format string
		check  bool
	)
	cmd := &cobra.Command{
		Use:   "deps [paths...]",
		Short: "Report prerequisites, merge modules and extensions, and their order",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := orDot(args)
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			cfg, err := a.loadConfig(startDir(paths))
			if err != nil {
				return err
			}
			files, err := sourceFiles(paths)
			if err != nil {
				return err
			}
			g := deps.New()
			for _, file := range files {
				if cfg.Excluded(file) {
					continue
				}
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				doc, err := document.Parse(string(data), file)
				if err != nil {
					a.log.WithFields(logrus.Fields{"file": file, "error": err}).Warn("deps: skipping malformed file")
					continue
				}
				g.Merge(deps.Extract(doc))
			}
			root, _ := filepath.Abs(startDir(paths))
			rep := deps.NewReport(filepath.Base(root), g)
			if f == report.FormatJSON {
				data, err := fsutil.MarshalJSON(rep)
				if err != nil {
					return err
				}
				if _, err := a.stdout.Write(data); err != nil {
					return err
				}
			} else {
				writeDepsText(a, rep)
			}
			if check && len(rep.Cycles) > 0 {
				return errFindings
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")
	cmd.Flags().BoolVar(&check, "check", false, "exit 1 when a dependency cycle exists")
	return cmd
}

func writeDepsText(a *app, rep deps.Report) {
	w := a.stdout
	fmt.Fprintf(w, "%s: %d dependencies (%d bundled, %d external)\n", rep.Project, rep.Total, rep.Bundled, rep.External)
	for _, t := range rep.TypeNames() {
		fmt.Fprintf(w, "  %-16s %d\n", t, rep.ByType[t])
	}
	for _, d := range rep.Dependencies {
		line := "  - " + d.Name
		if d.Version != "" {
			line += " " + d.Version
		}
		var notes []string
		notes = append(notes, d.Type.String())
		if d.Bundled {
			notes = append(notes, "bundled")
		}
		if d.DownloadURL != "" {
			notes = append(notes, d.DownloadURL)
		}
		fmt.Fprintf(w, "%s (%s)\n", line, strings.Join(notes, ", "))
	}
	if len(rep.Order) > 0 {
		fmt.Fprintf(w, "install order: %s\n", strings.Join(rep.Order, " -> "))
	}
	for _, c := range rep.Cycles {
		fmt.Fprintln(w, (&deps.CycleError{Cycle: c}).Error())
	}
	for _, e := range rep.Extensions {
		fmt.Fprintf(w, "extension %s: %s (%s)\n", e.Name, e.Description, e.Package)
	}
}
