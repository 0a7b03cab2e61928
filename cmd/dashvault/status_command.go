package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"dashvault/internal/api"
	"dashvault/internal/catalog"
	"dashvault/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency, and catalog status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			pid, running := daemonProcessState(filepath.Join(cfg.Paths.LogDir, "dashvaultd.pid"))
			checks := preflight.RunAll(cmd.Context(), cfg)
			dependencies := preflight.CheckSystemDeps(cfg)

			var stats map[string]int
			var clips, devices int
			err = ctx.withStore(cmd.Context(), func(runCtx context.Context, _ *catalog.Store, svc *api.CatalogService) error {
				var err error
				if stats, err = svc.JobStats(runCtx); err != nil {
					return err
				}
				clips, devices, err = svc.Counts(runCtx)
				return err
			})
			if err != nil {
				return err
			}

			if jsonOutput {
				status := api.DaemonStatus{
					Running:      running,
					PID:          pid,
					DatabasePath: cfg.Paths.DatabasePath,
					LockFilePath: filepath.Join(cfg.Paths.LogDir, "dashvaultd.lock"),
					JobStats:     stats,
					ClipCount:    clips,
					DeviceCount:  devices,
					Dependencies: api.FromDependencyStatuses(dependencies),
				}
				return writeJSON(cmd, status)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			lines := make([]string, 0, 24)

			lines = append(lines, renderSectionHeader("Daemon", colorize)...)
			if running {
				lines = append(lines, renderStatusLine("Process", statusOK, fmt.Sprintf("running (pid %d)", pid), colorize))
			} else {
				lines = append(lines, renderStatusLine("Process", statusWarn, "not running", colorize))
			}
			lines = append(lines, renderStatusLine("Database", statusInfo, cfg.Paths.DatabasePath, colorize))
			if bind := strings.TrimSpace(cfg.Paths.APIBind); bind != "" {
				lines = append(lines, renderStatusLine("API bind", statusInfo, bind, colorize))
			}

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Checks", colorize)...)
			for _, check := range checks {
				kind := statusOK
				if !check.Passed {
					kind = statusError
				}
				lines = append(lines, renderStatusLine(check.Name, kind, check.Detail, colorize))
			}

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
			for _, dep := range dependencies {
				kind := statusOK
				detail := dep.Command
				if !dep.Available {
					detail = dep.Detail
					if dep.Optional {
						kind = statusWarn
					} else {
						kind = statusError
					}
				}
				lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
			}

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Catalog", colorize)...)
			lines = append(lines, renderStatusLine("Clips", statusInfo, strconv.Itoa(clips), colorize))
			lines = append(lines, renderStatusLine("Devices", statusInfo, strconv.Itoa(devices), colorize))
			lines = append(lines, renderStatusLine("Jobs", statusInfo, formatJobStats(stats), colorize))

			for _, line := range lines {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit status as JSON")
	return cmd
}

// daemonProcessState reads the daemon pid file and probes whether the
// recorded process is still alive. A stale pid file from an unclean
// shutdown reports as not running.
func daemonProcessState(pidPath string) (int, bool) {
	data, err := os.ReadFile(pidPath)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return pid, false
	}
	return pid, process.Signal(syscall.Signal(0)) == nil
}

func formatJobStats(stats map[string]int) string {
	if len(stats) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(stats))
	for key := range stats {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%d %s", stats[key], key))
	}
	return strings.Join(parts, ", ")
}
