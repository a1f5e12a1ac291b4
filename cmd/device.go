package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sisbarc/camshell/internal/config"
	"github.com/sisbarc/camshell/internal/device"
	"github.com/sisbarc/camshell/internal/discovery"
	"github.com/sisbarc/camshell/internal/logger"
)

// NewDeviceCmd returns the "device" subcommand that runs the camera emulator.
func NewDeviceCmd(cfg *config.AppConfig) *cobra.Command {
	var (
		port      int
		fps       int
		instance  string
		advertise bool
	)

	cmd := &cobra.Command{
		Use:   "device",
		Short: "Run a camera emulator",
		Long: `Run an HTTP server that answers like the camera firmware: system info,
sensor status, single captures, an MJPEG stream and a WebSocket status feed.
Point DEVICE_URL at it to develop without hardware.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runDevice(cfg, port, fps, instance, advertise)
		},
	}

	cmd.Flags().IntVar(&port, "port", 8081, "HTTP port to serve the emulator on")
	cmd.Flags().IntVar(&fps, "fps", 20, "Frames per second on the MJPEG stream")
	cmd.Flags().StringVar(&instance, "instance", "", "mDNS instance name (default board-model-MAC)")
	cmd.Flags().BoolVar(&advertise, "advertise", true, "Announce the emulator over mDNS")
	return cmd
}

func runDevice(cfg *config.AppConfig, port, fps int, instance string, advertise bool) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sysLogger, logCloser, err := logger.NewSystemLogger(cfg.LogDir(), cfg.SlogLevel(), os.Stderr)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logCloser.Close() //nolint:errcheck

	emu := device.NewEmulator(
		device.WithFramerate(fps),
		device.WithEmulatorLogger(logger.Component(sysLogger, "emulator")),
	)

	if advertise {
		if instance == "" {
			instance = discovery.InstanceName(device.DefaultBoard, device.DefaultModel, hardwareAddr())
		}
		st := emu.Status()
		adv, err := discovery.Advertise(instance, port, discovery.Info{
			Board:      st.Board,
			Model:      device.DefaultModel,
			StreamPort: port,
			FrameSize:  st.FrameSize,
			PixFormat:  st.PixFormat,
		}, nil)
		if err != nil {
			return err
		}
		defer adv.Close() //nolint:errcheck
		sysLogger.Info("advertising camera",
			slog.String("instance", instance),
			slog.String("service", discovery.ServiceType),
			slog.Int("port", port),
		)
	}

	addr := fmt.Sprintf(":%d", port)
	fmt.Printf("Camera emulator listening on http://localhost%s\n", addr)
	return emu.Run(ctx, addr)
}

// hardwareAddr returns the MAC of the first non-loopback interface, or nil.
func hardwareAddr() net.HardwareAddr {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || len(iface.HardwareAddr) < 3 {
			continue
		}
		return iface.HardwareAddr
	}
	return nil
}
