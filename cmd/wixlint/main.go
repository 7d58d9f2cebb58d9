// Command wixlint analyzes WiX installer sources: it resolves symbols across
// files, evaluates the rule set, and reports diagnostics as text or JSON.
//
//	wixlint analyze [paths...]         analyze a project (default ".")
//	wixlint baseline create [paths...] accept the current diagnostics
//	wixlint deps [paths...]            dependency report and install order
//	wixlint cache stats|clear|cleanup  manage the analysis cache
//	wixlint rules list|check           inspect rule sets
//	wixlint watch [path]               re-analyze on change
//	wixlint version
//
// Exit codes: 0 clean, 1 diagnostics at or above --fail-on, 2 usage or
// fatal error.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"wixlint/internal/analysis"
	"wixlint/internal/cache"
	"wixlint/internal/config"
	"wixlint/internal/logging"
	"wixlint/internal/meta"
	"wixlint/internal/sortutil"
	"wixlint/internal/walkwalk"
)

const (
	exitOK       = 0
	exitFindings = 1
	exitFatal    = 2
)

// errFindings makes a command exit with exitFindings.
var errFindings = errors.New("issues at or above the failure threshold")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := newRootCmd(&app{stdout: stdout, stderr: stderr})
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errFindings):
		return exitFindings
	}
	fmt.Fprintln(stderr, "error:", err)
	return exitFatal
}

// app carries the persistent flags and the logger into every command.
type app struct {
	stdout, stderr io.Writer

	configPath string
	logLevel   string
	logJSON    bool
	noCache    bool
	workers    int

	log *logrus.Logger
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "wixlint",
		Short:         "Static analysis for WiX installer sources",
		Version:       meta.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log, err := logging.New(logging.Options{Level: a.logLevel, JSON: a.logJSON, Out: a.stderr})
			if err != nil {
				return err
			}
			a.log = log
			return nil
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default: nearest .wixanalyzer.json/.yaml)")
	pf.StringVar(&a.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.BoolVar(&a.logJSON, "log-json", false, "log as JSON lines")
	pf.BoolVar(&a.noCache, "no-cache", false, "disable the analysis cache")
	pf.IntVar(&a.workers, "workers", 0, "evaluation workers (0 = config or CPU count)")

	root.AddCommand(
		newAnalyzeCmd(a),
		newBaselineCmd(a),
		newDepsCmd(a),
		newCacheCmd(a),
		newRulesCmd(a),
		newWatchCmd(a),
		newVersionCmd(a),
	)
	return root
}

// loadConfig reads --config, or the nearest config file above start.
func (a *app) loadConfig(start string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if a.configPath != "" {
		cfg, err = config.Load(a.configPath)
	} else {
		cfg, err = config.FindAndLoad(start)
	}
	if err != nil {
		return nil, err
	}
	if a.noCache {
		cfg.Cache.Enabled = false
	}
	if a.workers > 0 {
		cfg.Workers = a.workers
	}
	return cfg, nil
}

// project builds a Project with the configured rules and, when enabled, the
// cache. An unusable cache is logged and skipped.
func (a *app) project(cfg *config.Config) (*analysis.Project, error) {
	rs, err := analysis.LoadRules(cfg, a.log)
	if err != nil {
		return nil, err
	}
	p := &analysis.Project{Config: cfg, Rules: rs, Logger: a.log}
	if cfg.Cache.Enabled {
		c, err := cache.Open(cfg.CacheDir(), meta.Version, a.log)
		if err != nil {
			a.log.WithFields(logrus.Fields{"dir": cfg.CacheDir(), "error": err}).Warn("cache disabled")
		} else {
			p.Cache = c
		}
	}
	return p, nil
}

// sourceFiles expands paths: directories are walked for WiX sources, files
// are taken as given. Results are absolute, sorted and unique.
func sourceFiles(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		st, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !st.IsDir() {
			abs, err := filepath.Abs(p)
			if err != nil {
				return nil, err
			}
			out = append(out, abs)
			continue
		}
		files, err := walkwalk.CollectFiles(walkwalk.Options{
			Root:         p,
			Extensions:   walkwalk.WixExtensions,
			UseGitignore: true,
			NoHash:       true,
		})
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			out = append(out, f.AbsPath)
		}
	}
	return sortutil.Dedup(out), nil
}

// useColor resolves a --color value. "auto" colors only a terminal stdout.
func (a *app) useColor(mode string) (bool, error) {
	switch mode {
	case "always":
		return true, nil
	case "never":
		return false, nil
	case "auto", "":
		f, ok := a.stdout.(*os.File)
		return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())), nil
	}
	return false, fmt.Errorf("--color must be auto, always or never, got %q", mode)
}

// startDir is where config discovery begins for paths.
func startDir(paths []string) string {
	if len(paths) == 0 {
		return "."
	}
	return paths[0]
}

func orDot(paths []string) []string {
	if len(paths) == 0 {
		return []string{"."}
	}
	return paths
}
