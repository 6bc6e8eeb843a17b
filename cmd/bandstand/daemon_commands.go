package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"bandstand/internal/daemonctl"
	"bandstand/internal/ipc"
	"bandstand/internal/jobqueue"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the bandstand daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonLaunchOptions(ctx),
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}

			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintln(stdout, "Daemon started")
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			case daemonctl.StartStateRequested:
				if strings.TrimSpace(result.Message) != "" {
					fmt.Fprintln(stdout, result.Message)
					return nil
				}
				fmt.Fprintln(stdout, "Start request sent")
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the bandstand daemon (completely terminates the process)",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), ctx.configValue(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if !result.StopAcknowledged {
				fmt.Fprintln(stdout, "Stop request sent")
			} else {
				fmt.Fprintln(stdout, "Stopping daemon workflow...")
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the bandstand daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.Restart(
				ctx.socketPath(),
				ctx.configValue(),
				exe,
				daemonLaunchOptions(ctx),
				5*time.Second,
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.WasRunning {
				if result.Stop.ForcedKill && result.Stop.PID > 0 {
					fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.Stop.PID)
				}
				fmt.Fprintln(stdout, "Daemon stopped")
			}

			switch result.Start.State {
			case daemonctl.StartStateStarted, daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon restarted")
			case daemonctl.StartStateRequested:
				if strings.TrimSpace(result.Start.Message) != "" {
					fmt.Fprintln(stdout, result.Start.Message)
					return nil
				}
				fmt.Fprintln(stdout, "Start request sent")
			}
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, stage, and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatusCommand(cmd, ctx)
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func runStatusCommand(cmd *cobra.Command, ctx *commandContext) error {
	stdout := cmd.OutOrStdout()
	printer := newStatusPrinter(stdout)

	statusResp := fetchStatusSnapshot(ctx)

	printer.section("Daemon")
	runningKind := statusWarn
	runningDetail := "not running"
	if statusResp.Running {
		runningKind = statusOK
		runningDetail = fmt.Sprintf("pid %d", statusResp.PID)
	}
	printer.line("Running", runningKind, runningDetail)
	if statusResp.LastError != "" {
		printer.line("Last error", statusError, statusResp.LastError)
	}
	if statusResp.CatalogDBPath != "" {
		printer.line("Catalog DB", statusInfo, statusResp.CatalogDBPath)
	}
	if statusResp.PromotedCount > 0 {
		printer.line("Promoted videos", statusInfo, fmt.Sprintf("%d", statusResp.PromotedCount))
	}
	printer.blank()

	if len(statusResp.StageHealth) > 0 {
		printer.section("Stage Health")
		for _, health := range statusResp.StageHealth {
			kind := statusOK
			detail := health.Detail
			if !health.Ready {
				kind = statusError
				if detail == "" {
					detail = "not ready"
				}
			}
			printer.line(health.Name, kind, detail)
		}
		printer.blank()
	}

	printer.section("Queue Status")
	rows := buildQueueStatusRows(statusResp.QueueStats)
	if len(rows) == 0 {
		fmt.Fprintln(stdout, "Queue is empty")
		return nil
	}
	table := renderTable([]tableColumn{{name: "Status"}, numericColumn("Count")}, rows)
	fmt.Fprintln(stdout, table)
	return nil
}

// fetchStatusSnapshot prefers live daemon status over IPC and falls back
// to direct queue database access when the daemon is unreachable.
func fetchStatusSnapshot(ctx *commandContext) *ipc.StatusResponse {
	if client, err := ctx.dialClient(); err == nil {
		defer client.Close()
		if resp, statusErr := client.Status(); statusErr == nil && resp != nil {
			return resp
		}
	}

	resp := &ipc.StatusResponse{}
	cfg := ctx.configValue()
	if cfg == nil {
		return resp
	}
	resp.CatalogDBPath = cfg.DatabasePath()
	resp.QueueDBPath = cfg.QueueDatabasePath()

	store, err := jobqueue.Open(cfg)
	if err != nil {
		return resp
	}
	defer store.Close()
	stats, err := store.Stats(context.Background())
	if err != nil {
		return resp
	}
	resp.QueueStats = make(map[string]int, len(stats))
	for status, count := range stats {
		resp.QueueStats[string(status)] = count
	}
	return resp
}

func buildQueueStatusRows(stats map[string]int) [][]string {
	statuses := make([]string, 0, len(stats))
	for status, count := range stats {
		if count == 0 {
			continue
		}
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)

	rows := make([][]string, 0, len(statuses))
	for _, status := range statuses {
		rows = append(rows, []string{status, fmt.Sprintf("%d", stats[status])})
	}
	return rows
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{}
	if ctx.socketFlag != nil {
		if socket := strings.TrimSpace(*ctx.socketFlag); socket != "" {
			opts.SocketPath = socket
		}
	}
	if ctx.configFlag != nil {
		if config := strings.TrimSpace(*ctx.configFlag); config != "" {
			opts.ConfigPath = config
		}
	}
	return opts
}
