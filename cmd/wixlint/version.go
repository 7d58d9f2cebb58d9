package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"wixlint/internal/fsutil"
	"wixlint/internal/meta"
)

func newVersionCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := meta.Detect()
			if asJSON {
				data, err := fsutil.MarshalJSON(info)
				if err != nil {
					return err
				}
				_, err = a.stdout.Write(data)
				return err
			}
			fmt.Fprintln(a.stdout, "wixlint "+info.String())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
