package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alokdon2/CollabCanvas-sub000/internal/config"
	"github.com/alokdon2/CollabCanvas-sub000/internal/localsync"
	"github.com/alokdon2/CollabCanvas-sub000/internal/project"
)

func newSyncCmd(opts *options) *cobra.Command {
	var decision string
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Move projects from this device into your account",
		Long: strings.TrimSpace(`
Projects created while signed out live on this device only. sync offers to
migrate them into the signed-in user's account or to discard them. Without
--decision the choice is read from stdin.`),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.userID == "" {
				return errors.New("sync needs a signed-in user (--user)")
			}
			ctx := cmd.Context()
			rt, err := openRuntime(ctx, config.Load())
			if err != nil {
				return err
			}
			defer rt.close()
			if rt.sync == nil {
				return errors.New("sync needs a remote store (DATABASE_URL)")
			}

			var prompter localsync.Prompter = stdinPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			if decision != "" {
				parsed, err := localsync.ParseDecision(decision)
				if err != nil {
					return err
				}
				prompter = localsync.PrompterFunc(func(context.Context, []project.Project) (localsync.Decision, error) {
					return parsed, nil
				})
			}

			report, ran, err := rt.sync.Trigger(ctx, opts.userID, prompter)
			if !ran && err == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No local projects to sync.")
				return nil
			}
			printReport(cmd.OutOrStdout(), report)
			return err
		},
	}
	cmd.Flags().StringVar(&decision, "decision", "", "migrate or discard, skipping the prompt")
	return cmd
}

// stdinPrompter lists the pending projects and reads the answer from in.
func stdinPrompter(in io.Reader, out io.Writer) localsync.Prompter {
	return localsync.PrompterFunc(func(ctx context.Context, pending []project.Project) (localsync.Decision, error) {
		fmt.Fprintf(out, "%d project(s) on this device are not in your account:\n", len(pending))
		for _, item := range pending {
			fmt.Fprintf(out, "  %s  %s\n", item.ID, item.Name)
		}
		reader := bufio.NewReader(in)
		for {
			fmt.Fprint(out, "Migrate them to your account or discard them? [migrate/discard]: ")
			line, err := reader.ReadString('\n')
			answer := strings.ToLower(strings.TrimSpace(line))
			switch answer {
			case "m":
				answer = string(localsync.DecisionMigrate)
			case "d":
				answer = string(localsync.DecisionDiscard)
			}
			if decision, parseErr := localsync.ParseDecision(answer); parseErr == nil {
				return decision, nil
			}
			if err != nil {
				return "", fmt.Errorf("read answer: %w", err)
			}
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
		}
	})
}

func printReport(out io.Writer, report localsync.Report) {
	fmt.Fprintf(out, "%s: migrated %d, skipped %d, removed %d\n",
		report.Decision, len(report.Migrated), len(report.Skipped), len(report.Removed))
}
