package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bandstand/internal/ipc"
)

func newSourcesCommand(ctx *commandContext) *cobra.Command {
	sourcesCmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage discovery sources",
	}

	sourcesCmd.AddCommand(newSourcesAddCommand(ctx))
	sourcesCmd.AddCommand(newSourcesListCommand(ctx))

	return sourcesCmd
}

func newSourcesAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <organization|creator> <name> <channel-id>",
		Short: "Register a channel for discovery",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, name, channelID := args[0], args[1], args[2]
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SourceAdd(kind, name, channelID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered %s %q (id %d, channel %s)\n",
					resp.Source.Kind, resp.Source.Name, resp.Source.ID, resp.Source.ChannelID)
				return nil
			})
		},
	}
}

func newSourcesListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered discovery sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SourceList()
				if err != nil {
					return err
				}
				if len(resp.Sources) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No sources registered")
					return nil
				}
				table := renderTable(
					[]tableColumn{
						numericColumn("ID"), {name: "Kind"}, {name: "Name"}, {name: "Channel"},
						{name: "Active"}, {name: "Sync"}, {name: "Last Sync"},
					},
					buildSourceRows(resp.Sources),
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func buildSourceRows(sources []ipc.Source) [][]string {
	rows := make([][]string, 0, len(sources))
	for _, source := range sources {
		lastSync := "-"
		if source.LastSyncAt != "" {
			lastSync = formatWireTime(source.LastSyncAt)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", source.ID),
			source.Kind,
			source.Name,
			source.ChannelID,
			yesNo(source.Active),
			source.SyncStatus,
			lastSync,
		})
	}
	return rows
}
