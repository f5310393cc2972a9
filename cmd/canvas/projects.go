package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/alokdon2/CollabCanvas-sub000/internal/config"
	"github.com/alokdon2/CollabCanvas-sub000/internal/project"
)

func newProjectsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List projects, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := openRuntime(ctx, config.Load())
			if err != nil {
				return err
			}
			defer rt.close()

			items, err := rt.listOwned(ctx, opts.userID)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tITEMS\tUPDATED")
			for _, item := range items {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", item.ID, item.Name, project.Count(item.FileSystemRoots), item.UpdatedAt.Local().Format(time.DateTime))
			}
			return w.Flush()
		},
	}
}

func newHistoryCmd(_ *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <project-id>",
		Short: "Show saved revisions of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), config.Load())
			if err != nil {
				return err
			}
			defer rt.close()
			if rt.history == nil {
				return errors.New("history is disabled (CANVAS_HISTORY_DIR)")
			}

			commits, err := rt.history.Log(args[0], limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "REVISION\tAUTHOR\tSAVED\tMESSAGE")
			for _, c := range commits {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", shortHash(c.Hash), c.Author, c.CreatedAt, c.Message)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum revisions to show (0 for all)")
	return cmd
}

func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
