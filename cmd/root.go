package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sisbarc/camshell/internal/build"
	"github.com/sisbarc/camshell/internal/config"
)

// NewRootCmd returns the camshell command tree.
func NewRootCmd(cfg *config.AppConfig) *cobra.Command {
	root := &cobra.Command{
		Use:     "camshell",
		Short:   "Web shell for ESP32 cameras",
		Long:    "camshell serves the camera web UI, proxies /api to a device in development, and finds cameras on the local network.",
		Version: build.String(),
	}
	root.SilenceUsage = true

	root.AddCommand(
		NewWebCmd(cfg),
		NewDeviceCmd(cfg),
		NewDiscoverCmd(cfg),
		NewProbeCmd(),
		NewRoutesCmd(cfg),
		NewUpdateCmd(),
	)
	return root
}

// Execute loads configuration and runs the root command.
func Execute() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := NewRootCmd(cfg).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
