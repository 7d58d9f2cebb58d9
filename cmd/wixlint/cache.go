package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"wixlint/internal/cache"
	"wixlint/internal/meta"
)

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or reset the analysis cache",
	}
	open := func() (*cache.Cache, error) {
		cfg, err := a.loadConfig(".")
		if err != nil {
			return nil, err
		}
		return cache.Open(cfg.CacheDir(), meta.Version, a.log)
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "stats",
			Short: "Show where the cache lives and how many files it holds",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := open()
				if err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "cache: %s\nentries: %d\ntool version: %s\n", c.Dir(), c.Len(), meta.Version)
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove every cached result",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := open()
				if err != nil {
					return err
				}
				n := c.Len()
				if err := c.Clear(); err != nil {
					return err
				}
				if err := c.Save(); err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "cleared %d entries\n", n)
				return nil
			},
		},
		&cobra.Command{
			Use:   "cleanup",
			Short: fmt.Sprintf("Remove entries older than %s", cache.MaxAge),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := open()
				if err != nil {
					return err
				}
				n, err := c.Cleanup()
				if err != nil {
					return err
				}
				if err := c.Save(); err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "removed %d stale entries\n", n)
				return nil
			},
		},
	)
	return cmd
}
