package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"dashvault/internal/api"
	"dashvault/internal/catalog"
)

func newDevicesCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List known dashcam cards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(runCtx context.Context, _ *catalog.Store, svc *api.CatalogService) error {
				devices, err := svc.ListDevices(runCtx)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, api.DeviceListResponse{Devices: devices})
				}
				out := cmd.OutOrStdout()
				if len(devices) == 0 {
					fmt.Fprintln(out, "No devices recorded yet; run a scan with a card mounted")
					return nil
				}
				rows := make([][]string, 0, len(devices))
				for _, device := range devices {
					rows = append(rows, []string{
						strconv.FormatInt(device.ID, 10),
						device.CardID,
						device.VolumeUID,
						device.Label,
						device.FirstSeen,
						device.LastSeen,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Card ID", "Volume UID", "Label", "First Seen", "Last Seen"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit devices as JSON")
	cmd.AddCommand(newDeviceFilesCommand(ctx))
	return cmd
}

func newDeviceFilesCommand(ctx *commandContext) *cobra.Command {
	var stateFlag string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "files <device>",
		Short: "List the recordings observed on a card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var states []catalog.ImportState
			if trimmed := strings.TrimSpace(stateFlag); trimmed != "" {
				states = append(states, catalog.ImportState(strings.ToLower(trimmed)))
			}

			return ctx.withStore(cmd.Context(), func(runCtx context.Context, _ *catalog.Store, svc *api.CatalogService) error {
				device, files, err := svc.DeviceFiles(runCtx, args[0], states...)
				if err != nil {
					return err
				}
				if device == nil {
					return fmt.Errorf("device %q not found", args[0])
				}
				if jsonOutput {
					return writeJSON(cmd, api.DeviceFilesResponse{Device: *device, Files: files})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Device %d (%s)\n", device.ID, device.CardID)
				if len(files) == 0 {
					fmt.Fprintln(out, "No files recorded")
					return nil
				}
				rows := make([][]string, 0, len(files))
				for _, file := range files {
					clipCell := ""
					if file.ClipID != nil {
						clipCell = strconv.FormatInt(*file.ClipID, 10)
					}
					rows = append(rows, []string{
						strconv.FormatInt(file.ID, 10),
						file.RelPath,
						formatSize(file.SizeBytes),
						displayLabel(file.Camera),
						displayLabel(file.Mode),
						file.ImportState,
						clipCell,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Path", "Size", "Camera", "Mode", "State", "Clip"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&stateFlag, "state", "", "Filter by import state (pending, imported, duplicate, failed, missing)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit files as JSON")
	return cmd
}
