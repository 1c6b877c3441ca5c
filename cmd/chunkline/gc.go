package main

import (
	"fmt"

	"github.com/sir_venger/chunkline/pkg/transferclient"
	"github.com/spf13/cobra"
)

func newGCCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "gc",
		Short: "Remove abandoned upload sessions on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := transferclient.New(root.server).Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d sessions, %d staging files\n", res.RemovedSessions, res.RemovedStaging)
			return nil
		},
	}
}
