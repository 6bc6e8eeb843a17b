package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bandstand/internal/ipc"
	"bandstand/internal/workflow"
)

var runnableJobTypes = []string{
	workflow.JobTypeDiscovery,
	workflow.JobTypeFullResync,
	workflow.JobTypeMatching,
	workflow.JobTypePromotion,
	workflow.JobTypeStatsRefresh,
	workflow.JobTypeMaintenance,
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:       fmt.Sprintf("run <%s>", strings.Join(runnableJobTypes, "|")),
		Short:     "Trigger a pipeline stage out of schedule",
		Args:      cobra.ExactArgs(1),
		ValidArgs: runnableJobTypes,
		RunE: func(cmd *cobra.Command, args []string) error {
			jobType := strings.TrimSpace(args[0])
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Trigger(jobType)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if resp.Enqueued {
					fmt.Fprintf(stdout, "Enqueued %s run\n", jobType)
					return nil
				}
				if resp.Message != "" {
					fmt.Fprintln(stdout, resp.Message)
					return nil
				}
				fmt.Fprintf(stdout, "%s run was not enqueued\n", jobType)
				return nil
			})
		},
	}
}
