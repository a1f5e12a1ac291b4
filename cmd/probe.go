package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/sisbarc/camshell/internal/device"
)

// NewProbeCmd returns the "probe" subcommand that checks a camera's API.
func NewProbeCmd() *cobra.Command {
	var (
		frames  int
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "probe <url>",
		Short: "Query a camera and read a few stream frames",
		Long: `Fetch system info and sensor status from a camera, then read frames from
its MJPEG stream. The URL is the camera origin, e.g. http://esp32-cam2.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := device.NewClient(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return runProbe(ctx, cmd.OutOrStdout(), client, frames)
		},
	}

	cmd.Flags().IntVar(&frames, "frames", 3, "Number of stream frames to read (0 skips the stream)")
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "Overall deadline")
	return cmd
}

func runProbe(ctx context.Context, w io.Writer, c *device.Client, frames int) error {
	info, err := c.SystemInfo(ctx)
	if err != nil {
		return fmt.Errorf("system info: %w", err)
	}
	fmt.Fprintf(w, "chip:    %s rev %d, %d cores (%s)\n", info.Chip.Name, info.Chip.Revision, info.Chip.Cores, info.Chip.Features)
	fmt.Fprintf(w, "flash:   %s %s\n", info.Flash.Size, info.Flash.Type)

	st, err := c.Status(ctx)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	fmt.Fprintf(w, "board:   %s\n", st.Board)
	fmt.Fprintf(w, "sensor:  framesize=%d pixformat=%d quality=%d\n", st.FrameSize, st.PixFormat, st.Quality)

	if frames <= 0 {
		return nil
	}

	stream, err := c.Stream(ctx)
	if err != nil {
		return fmt.Errorf("stream: %w", err)
	}
	defer stream.Close() //nolint:errcheck

	fmt.Fprintf(w, "stream:  %d fps advertised\n", stream.Framerate)
	for i := 0; i < frames; i++ {
		f, err := stream.Next()
		if err != nil {
			return fmt.Errorf("frame %d: %w", i+1, err)
		}
		fmt.Fprintf(w, "  frame %d: %d bytes at %s\n", i+1, len(f.JPEG), device.FormatTimestamp(f.Timestamp))
	}
	return nil
}
