package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/sir_venger/chunkline/internal/checksum"
	"github.com/sir_venger/chunkline/internal/config"
	"github.com/sir_venger/chunkline/pkg/transferclient"
	"github.com/spf13/cobra"
)

func newUploadCmd(root *rootOptions) *cobra.Command {
	var (
		name        string
		suffix      string
		alg         string
		connections int
		quiet       bool
	)
	chunk := &chunkSizeFlag{v: 5 * config.MiB}

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a file in chunks, resuming a previous attempt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if name == "" {
				name = filepath.Base(path)
				if suffix == "" {
					ext := filepath.Ext(name)
					name, suffix = name[:len(name)-len(ext)], ext
				}
			}

			c, err := newClient(cmd, root.server, alg, connections, quiet)
			if err != nil {
				return err
			}
			res, err := c.UploadFile(cmd.Context(), path, name, int64(chunk.v), suffix)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s in %d chunks, %s %s\n",
				res.FileName, humanize.IBytes(uint64(res.Size)), res.Chunks, c.Algorithm(), res.Checksum)
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "Session name (defaults to the file name without extension)")
	cmd.Flags().StringVar(&suffix, "suffix", "", "Suffix of the merged file, e.g. .mp4")
	cmd.Flags().VarP(chunk, "chunk-size", "b", "Chunk size, e.g. 5MiB")
	addTransferFlags(cmd, &alg, &connections, &quiet)
	return cmd
}

func addTransferFlags(cmd *cobra.Command, alg *string, connections *int, quiet *bool) {
	cmd.Flags().StringVar(alg, "checksum", "", "Checksum algorithm (md5, sha256, blake3); asks the server when empty")
	cmd.Flags().IntVarP(connections, "connections", "c", 4, "Parallel requests")
	cmd.Flags().BoolVarP(quiet, "quiet", "q", false, "Hide the progress bar")
}

// newClient собирает клиент; если алгоритм не задан, он берётся из /health сервера.
func newClient(cmd *cobra.Command, server, alg string, connections int, quiet bool) (*transferclient.Client, error) {
	opts := []transferclient.Option{transferclient.WithConcurrency(connections)}
	if !quiet {
		opts = append(opts, transferclient.WithProgress(os.Stdout))
	}

	if alg == "" {
		h, err := transferclient.New(server).Health(cmd.Context())
		if err != nil {
			return nil, fmt.Errorf("query server checksum algorithm: %w", err)
		}
		alg = h.Checksum
	}
	a, err := checksum.Parse(alg)
	if err != nil {
		return nil, err
	}
	opts = append(opts, transferclient.WithChecksum(a))
	return transferclient.New(server, opts...), nil
}
