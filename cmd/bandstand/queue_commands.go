package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"bandstand/internal/ipc"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the job queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueList(limit)
				if err != nil {
					return err
				}
				if len(resp.Jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable(
					[]tableColumn{
						numericColumn("ID"), {name: "Type"}, {name: "Lane"}, {name: "Status"},
						numericColumn("Attempts"), {name: "Updated"}, {name: "Error"},
					},
					buildQueueListRows(resp.Jobs),
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of jobs to list")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show a single queued job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id < 1 {
				return fmt.Errorf("invalid job id %q", args[0])
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueDescribe(id)
				if err != nil {
					return err
				}
				job := resp.Job
				stdout := cmd.OutOrStdout()
				fmt.Fprintf(stdout, "ID:           %d\n", job.ID)
				fmt.Fprintf(stdout, "Key:          %s\n", job.Key)
				fmt.Fprintf(stdout, "Type:         %s\n", job.Type)
				fmt.Fprintf(stdout, "Lane:         %s\n", job.Lane)
				fmt.Fprintf(stdout, "Status:       %s\n", job.Status)
				fmt.Fprintf(stdout, "Attempts:     %d/%d\n", job.Attempts, job.MaxAttempts)
				fmt.Fprintf(stdout, "Run after:    %s\n", formatWireTime(job.RunAfter))
				fmt.Fprintf(stdout, "Created:      %s\n", formatWireTime(job.CreatedAt))
				fmt.Fprintf(stdout, "Updated:      %s\n", formatWireTime(job.UpdatedAt))
				if job.LastError != "" {
					fmt.Fprintf(stdout, "Last error:   %s\n", job.LastError)
				}
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-completed",
		Short: "Remove completed jobs from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueClearCompleted()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d completed job(s)\n", resp.Removed)
				return nil
			})
		},
	}
}

func buildQueueListRows(jobs []ipc.Job) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			strconv.FormatInt(job.ID, 10),
			job.Type,
			job.Lane,
			job.Status,
			fmt.Sprintf("%d/%d", job.Attempts, job.MaxAttempts),
			formatWireTime(job.UpdatedAt),
			truncate(job.LastError, 48),
		})
	}
	return rows
}

func formatWireTime(value string) string {
	if value == "" {
		return "-"
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return parsed.Local().Format("2006-01-02 15:04:05")
}

func truncate(value string, max int) string {
	if max <= 3 || len(value) <= max {
		return value
	}
	return value[:max-3] + "..."
}
