package main

import (
	"os"

	"github.com/sir_venger/chunkline/internal/config"
	"github.com/sir_venger/chunkline/internal/logger"
	"github.com/spf13/cobra"
)

const (
	serverEnv     = "CHUNKLINE_SERVER"
	defaultServer = "http://localhost:8000"
)

var version = "dev"

type rootOptions struct {
	server string
	debug  bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "chunkline",
		Short:         "Resumable chunked file upload and ranged download",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Init(os.Getenv("LOG_LEVEL"), opts.debug)
		},
	}

	server := os.Getenv(serverEnv)
	if server == "" {
		server = defaultServer
	}
	cmd.PersistentFlags().StringVarP(&opts.server, "server", "s", server, "Server base URL (env "+serverEnv+")")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(
		newServeCmd(opts),
		newUploadCmd(opts),
		newDownloadCmd(opts),
		newGCCmd(opts),
	)
	return cmd
}

// chunkSizeFlag разбирает флаг вида "5MiB".
type chunkSizeFlag struct {
	v config.ByteSize
}

func (f *chunkSizeFlag) String() string { return f.v.String() }
func (f *chunkSizeFlag) Type() string { return "size" }

func (f *chunkSizeFlag) Set(s string) error {
	v, err := config.ParseByteSize(s)
	if err != nil {
		return err
	}
	f.v = v
	return nil
}
