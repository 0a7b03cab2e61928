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

func newClipsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "clips [id]",
		Short: "List archived clips or inspect one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
				if err != nil || id <= 0 {
					return fmt.Errorf("invalid clip id %q", args[0])
				}
				return ctx.withStore(cmd.Context(), func(runCtx context.Context, _ *catalog.Store, svc *api.CatalogService) error {
					clip, err := svc.DescribeClip(runCtx, id)
					if err != nil {
						return err
					}
					if clip == nil {
						return fmt.Errorf("clip %d not found", id)
					}
					if jsonOutput {
						return writeJSON(cmd, api.ClipResponse{Clip: *clip})
					}
					printClipDetail(cmd, clip)
					return nil
				})
			}

			return ctx.withStore(cmd.Context(), func(runCtx context.Context, _ *catalog.Store, svc *api.CatalogService) error {
				clips, err := svc.ListClips(runCtx, limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, api.ClipListResponse{Clips: clips})
				}
				out := cmd.OutOrStdout()
				if len(clips) == 0 {
					fmt.Fprintln(out, "No clips archived yet")
					return nil
				}
				rows := make([][]string, 0, len(clips))
				for _, clip := range clips {
					rows = append(rows, []string{
						strconv.FormatInt(clip.ID, 10),
						clip.RecordedAt,
						displayLabel(clip.Camera),
						displayLabel(clip.Mode),
						formatDuration(clip.DurationSeconds),
						formatResolution(clip.Width, clip.Height),
						formatSize(clip.SizeBytes),
						clip.MetadataStatus,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Recorded", "Camera", "Mode", "Duration", "Resolution", "Size", "Metadata"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of clips to list (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit clips as JSON")
	return cmd
}

func printClipDetail(cmd *cobra.Command, clip *api.Clip) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Clip %d\n", clip.ID)
	fmt.Fprintf(out, "  Archive path: %s\n", clip.ArchivePath)
	fmt.Fprintf(out, "  Original:     %s\n", clip.OriginalName)
	fmt.Fprintf(out, "  SHA-256:      %s\n", clip.SHA256)
	fmt.Fprintf(out, "  Size:         %s\n", formatSize(clip.SizeBytes))
	if clip.Camera != "" {
		fmt.Fprintf(out, "  Camera:       %s\n", displayLabel(clip.Camera))
	}
	if clip.Mode != "" {
		fmt.Fprintf(out, "  Mode:         %s\n", displayLabel(clip.Mode))
	}
	if clip.RecordedAt != "" {
		fmt.Fprintf(out, "  Recorded:     %s\n", clip.RecordedAt)
	}
	fmt.Fprintf(out, "  Imported:     %s\n", clip.ImportedAt)
	fmt.Fprintf(out, "  Metadata:     %s\n", clip.MetadataStatus)
	if clip.MetadataError != "" {
		fmt.Fprintf(out, "  Metadata err: %s\n", clip.MetadataError)
	}
	if clip.DurationSeconds > 0 {
		fmt.Fprintf(out, "  Duration:     %s\n", formatDuration(clip.DurationSeconds))
	}
	if clip.Width > 0 && clip.Height > 0 {
		fps := ""
		if clip.FPS > 0 {
			fps = fmt.Sprintf(" @ %.3g fps", clip.FPS)
		}
		fmt.Fprintf(out, "  Video:        %s %s%s\n", formatResolution(clip.Width, clip.Height), clip.VideoCodec, fps)
	}
	if clip.AudioCodec != "" {
		fmt.Fprintf(out, "  Audio:        %s\n", clip.AudioCodec)
	}
	if clip.BitRate > 0 {
		fmt.Fprintf(out, "  Bit rate:     %d kb/s\n", clip.BitRate/1000)
	}
	if clip.Rotation != 0 {
		fmt.Fprintf(out, "  Rotation:     %d°\n", clip.Rotation)
	}
}
