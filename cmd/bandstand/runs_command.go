package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bandstand/internal/ipc"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent discovery run history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RunList(limit)
				if err != nil {
					return err
				}
				if len(resp.Runs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
					return nil
				}
				table := renderTable(
					[]tableColumn{
						numericColumn("ID"), {name: "Type"}, {name: "Status"},
						numericColumn("Found"), numericColumn("Added"), numericColumn("Updated"),
						{name: "Errors"}, {name: "Started"},
					},
					buildRunRows(resp.Runs),
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")
	return cmd
}

func buildRunRows(runs []ipc.Run) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		errSummary := "-"
		if len(run.Errors) > 0 {
			errSummary = truncate(strings.Join(run.Errors, "; "), 48)
		}
		started := "-"
		if run.StartedAt != "" {
			started = formatWireTime(run.StartedAt)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", run.ID),
			run.JobType,
			run.Status,
			fmt.Sprintf("%d", run.Found),
			fmt.Sprintf("%d", run.Added),
			fmt.Sprintf("%d", run.Updated),
			errSummary,
			started,
		})
	}
	return rows
}
