package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/sisbarc/camshell/internal/config"
	"github.com/sisbarc/camshell/internal/discovery"
	"github.com/sisbarc/camshell/internal/storage"
)

// NewDiscoverCmd returns the "discover" subcommand that browses once for cameras.
func NewDiscoverCmd(cfg *config.AppConfig) *cobra.Command {
	var (
		timeout time.Duration
		save    bool
	)

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find cameras on the local network",
		Long:  "Browse mDNS for " + discovery.ServiceType + " services and print every camera that answers.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			var store storage.DeviceStore
			if save {
				db, _, err := storage.NewSQLiteDB(cfg.DBPath())
				if err != nil {
					return fmt.Errorf("opening database: %w", err)
				}
				defer db.Close() //nolint:errcheck
				store = storage.NewSQLiteDeviceStore(db)
			}
			return runDiscover(ctx, cmd.OutOrStdout(), discovery.NewMDNSBrowser(timeout, nil), store)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", discovery.DefaultBrowseTimeout, "How long to wait for answers")
	cmd.Flags().BoolVar(&save, "save", false, "Record the cameras found in the device database")
	return cmd
}

// runDiscover browses once and prints the result. When store is non-nil each
// camera is also recorded there.
func runDiscover(ctx context.Context, w io.Writer, b discovery.Browser, store storage.DeviceStore) error {
	devices, err := b.Browse(ctx)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Fprintln(w, "No cameras found.")
		return nil
	}

	if store != nil {
		for _, d := range devices {
			if _, err := store.Upsert(ctx, d); err != nil {
				return fmt.Errorf("saving %s: %w", d.Instance, err)
			}
		}
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("INSTANCE", "ADDRESS", "BOARD", "MODEL", "STREAM PORT")
	for _, d := range devices {
		t.Row(d.Instance, d.Addr+":"+strconv.Itoa(d.Port), d.Board, d.Model, strconv.Itoa(d.StreamPort))
	}
	fmt.Fprintln(w, t.Render())
	return nil
}
