package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"wixlint/internal/baseline"
	"wixlint/internal/diag"
	"wixlint/internal/diff"
	"wixlint/internal/document"
	"wixlint/internal/metrics"
	"wixlint/internal/report"
	"wixlint/internal/rules"
)

type analyzeFlags struct {
	format             string
	changedSinceBranch string
	changedHead        int
	filesFrom          string
	newCode            string
	baseline           string
	noBaseline         bool
	minSeverity        string
	ruleFiles          []string
	fixPreview         bool
	metrics            bool
	failOn             string
	color              string
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var f analyzeFlags
	cmd := &cobra.Command{
		Use:   "analyze [paths...]",
		Short: "Analyze WiX sources and report diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.analyze(cmd, orDot(args), f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.format, "format", "text", "output format: text or json")
	fl.StringVar(&f.changedSinceBranch, "changed-since-branch", "", "only report files changed since the merge base with this branch")
	fl.IntVar(&f.changedHead, "changed-head", 0, "only report files changed in the last N commits")
	fl.StringVar(&f.filesFrom, "files-from", "", "only report the files listed in this file (one per line)")
	fl.StringVar(&f.newCode, "new-code", "", "only report diagnostics on lines added since this git ref")
	fl.StringVar(&f.baseline, "baseline", "", "baseline file (default: config, then nearest "+baseline.FileName+")")
	fl.BoolVar(&f.noBaseline, "no-baseline", false, "ignore any baseline")
	fl.StringVar(&f.minSeverity, "min-severity", "", "drop diagnostics below this severity")
	fl.StringSliceVar(&f.ruleFiles, "rules", nil, "additional rule file (repeatable)")
	fl.BoolVar(&f.fixPreview, "fix-preview", false, "show a diff for every diagnostic with an automatic fix")
	fl.BoolVar(&f.metrics, "metrics", false, "print collected metrics to stderr")
	fl.StringVar(&f.failOn, "fail-on", "high", "exit 1 when a diagnostic is at or above this severity (or \"none\")")
	fl.StringVar(&f.color, "color", "auto", "color severities: auto, always or never")
	return cmd
}

func (a *app) analyze(cmd *cobra.Command, paths []string, f analyzeFlags) error {
	format, err := report.ParseFormat(f.format)
	if err != nil {
		return err
	}
	failOn, err := parseFailOn(f.failOn)
	if err != nil {
		return err
	}
	color, err := a.useColor(f.color)
	if err != nil {
		return err
	}
	cfg, err := a.loadConfig(startDir(paths))
	if err != nil {
		return err
	}
	if f.minSeverity != "" {
		if _, err := diag.ParseSeverity(f.minSeverity); err != nil {
			return err
		}
		cfg.MinSeverity = f.minSeverity
	}
	for _, r := range f.ruleFiles {
		abs, err := filepath.Abs(r)
		if err != nil {
			return err
		}
		cfg.Rules.Files = append(cfg.Rules.Files, abs)
	}

	files, err := sourceFiles(paths)
	if err != nil {
		return err
	}
	p, err := a.project(cfg)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	results, err := p.Run(ctx, files)
	if err != nil {
		return err
	}

	filtered := 0
	det := diff.NewDetector(cfg.Root(), a.log)
	if src, ok, err := changeSource(f); err != nil {
		return err
	} else if ok {
		changes, err := det.Detect(ctx, src)
		if err != nil {
			return err
		}
		filtered += diff.FilterToChanged(results, changes)
	}
	if f.newCode != "" {
		lines, err := det.Lines(ctx, f.newCode)
		if err != nil {
			return err
		}
		filtered += diff.FilterToNewLines(results, lines)
	}
	if !f.noBaseline {
		b, err := a.findBaseline(cfg.BaselinePath(), f.baseline, cfg.Root())
		if err != nil {
			return err
		}
		filtered += baseline.Filter(results, b, cfg.Root())
	}

	opt := report.Options{Format: format, Base: cfg.Root(), Filtered: filtered, Color: color}
	if f.fixPreview {
		opt.Previews = a.previews(results)
	}
	if err := report.Write(a.stdout, results, opt); err != nil {
		return err
	}
	if f.metrics {
		if err := metrics.Dump(a.stderr); err != nil {
			return err
		}
	}
	st := p.Stats()
	a.log.WithFields(logrus.Fields{
		"files":     st.Files,
		"cached":    st.FromCache,
		"evaluated": st.Evaluated,
		"filtered":  filtered,
		"duration":  st.Duration,
	}).Info("analyze finished")

	if failOn > 0 {
		for _, r := range results {
			if r.AtLeast(failOn) {
				return errFindings
			}
		}
	}
	return nil
}

// parseFailOn returns 0 for "none".
func parseFailOn(s string) (diag.Severity, error) {
	if strings.EqualFold(s, "none") {
		return 0, nil
	}
	return diag.ParseSeverity(s)
}

func changeSource(f analyzeFlags) (diff.Source, bool, error) {
	set := 0
	var src diff.Source
	if f.changedSinceBranch != "" {
		set++
		src = diff.GitBranch(f.changedSinceBranch)
	}
	if f.changedHead > 0 {
		set++
		src = diff.GitHead(f.changedHead)
	}
	if f.filesFrom != "" {
		set++
		data, err := os.ReadFile(f.filesFrom)
		if err != nil {
			return diff.Source{}, false, err
		}
		src = diff.FileList(diff.ParseFileList(string(data)))
	}
	if set > 1 {
		return diff.Source{}, false, fmt.Errorf("--changed-since-branch, --changed-head and --files-from are mutually exclusive")
	}
	return src, set == 1, nil
}

// findBaseline resolves the flag, then the configured path, then the nearest
// baseline file above root.
func (a *app) findBaseline(configured, flag, root string) (*baseline.Baseline, error) {
	switch {
	case flag != "":
		return baseline.Load(flag)
	case configured != "":
		if _, err := os.Stat(configured); err != nil {
			a.log.WithFields(logrus.Fields{"path": configured}).Debug("configured baseline not found")
			return nil, nil
		}
		return baseline.Load(configured)
	}
	b, path, err := baseline.FindAndLoad(root)
	if b != nil {
		a.log.WithFields(logrus.Fields{"path": path, "issues": b.Len()}).Debug("baseline loaded")
	}
	return b, err
}

// previews renders the fix of every fixable diagnostic. Files are parsed
// again; a fix that cannot be previewed is logged and left out.
func (a *app) previews(results []diag.Result) map[string]string {
	out := make(map[string]string)
	for _, r := range results {
		var doc *document.Document
		for _, d := range r.Diagnostics {
			if d.Fix == nil {
				continue
			}
			if doc == nil {
				data, err := os.ReadFile(r.File)
				if err != nil {
					break
				}
				if doc, err = document.Parse(string(data), r.File); err != nil {
					break
				}
			}
			patch, err := rules.PreviewDiagnostic(doc, d)
			if err != nil {
				a.log.WithFields(logrus.Fields{"rule": d.RuleID, "file": r.File, "error": err}).Debug("no fix preview")
				continue
			}
			out[report.PreviewKey(d)] = patch
		}
	}
	return out
}
