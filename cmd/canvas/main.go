package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/alokdon2/CollabCanvas-sub000/internal/config"
)

type options struct {
	envFiles []string
	userID   string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:          "canvas",
		Short:        "Collaborative document and whiteboard workspace",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.LoadEnvFiles(opts.envFiles...)
		},
	}
	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env", nil, "Env files to load before reading configuration (default .env)")
	cmd.PersistentFlags().StringVar(&opts.userID, "user", os.Getenv("CANVAS_USER"), "Signed-in user id; empty works on the device-local store")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newProjectsCmd(opts))
	cmd.AddCommand(newSyncCmd(opts))
	cmd.AddCommand(newHistoryCmd(opts))
	cmd.AddCommand(newExportCmd(opts))
	cmd.AddCommand(newReindexCmd(opts))
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
