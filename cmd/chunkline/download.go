package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/sir_venger/chunkline/internal/config"
	"github.com/spf13/cobra"
)

func newDownloadCmd(root *rootOptions) *cobra.Command {
	var (
		output      string
		alg         string
		connections int
		quiet       bool
	)
	chunk := &chunkSizeFlag{v: 5 * config.MiB}

	cmd := &cobra.Command{
		Use:   "download <filename>",
		Short: "Download a file with parallel ranged requests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if output == "" {
				output = name
			}
			if alg == "" {
				// сервер присылает алгоритм в каждом ответе с диапазоном
				alg = "md5"
			}
			c, err := newClient(cmd, root.server, alg, connections, quiet)
			if err != nil {
				return err
			}
			n, err := c.DownloadFile(cmd.Context(), name, output, int64(chunk.v))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s saved to %s\n", name, humanize.IBytes(uint64(n)), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path (defaults to the file name)")
	cmd.Flags().VarP(chunk, "chunk-size", "b", "Range size, e.g. 5MiB")
	addTransferFlags(cmd, &alg, &connections, &quiet)
	return cmd
}
