package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"wixlint/internal/report"
	"wixlint/internal/watch"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		format   string
		color    string
		debounce time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Analyze, then re-analyze whenever a WiX source changes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := orDot(args)
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			useColor, err := a.useColor(color)
			if err != nil {
				return err
			}
			cfg, err := a.loadConfig(paths[0])
			if err != nil {
				return err
			}
			p, err := a.project(cfg)
			if err != nil {
				return err
			}
			analyze := func(ctx context.Context) {
				files, err := sourceFiles(paths)
				if err != nil {
					a.log.WithFields(logrus.Fields{"error": err}).Error("watch: listing sources failed")
					return
				}
				results, err := p.Run(ctx, files)
				if err != nil {
					if !errors.Is(err, context.Canceled) {
						a.log.WithFields(logrus.Fields{"error": err}).Error("watch: analysis failed")
					}
					return
				}
				if err := report.Write(a.stdout, results, report.Options{Format: f, Base: cfg.Root(), Color: useColor}); err != nil {
					a.log.WithFields(logrus.Fields{"error": err}).Error("watch: report failed")
				}
			}

			w, err := watch.New(watch.Options{Root: paths[0], Debounce: debounce, Logger: a.log})
			if err != nil {
				return err
			}
			defer w.Close()

			ctx := cmd.Context()
			analyze(ctx)
			fmt.Fprintf(a.stderr, "watching %s (Ctrl-C to stop)\n", paths[0])
			err = w.Run(ctx, func(ctx context.Context, batch []watch.Change) {
				if p.Cache != nil {
					for _, c := range batch {
						p.Cache.Invalidate(c.Path)
					}
				}
				a.log.WithFields(logrus.Fields{"changes": len(batch)}).Info("watch: re-analyzing")
				analyze(ctx)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")
	cmd.Flags().StringVar(&color, "color", "auto", "color severities: auto, always or never")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period before re-analyzing")
	return cmd
}
