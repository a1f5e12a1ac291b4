package cmd

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/sisbarc/camshell/internal/config"
	"github.com/sisbarc/camshell/internal/routes"
	"github.com/sisbarc/camshell/internal/views"
)

// NewRoutesCmd returns the "routes" subcommand that prints the route table.
func NewRoutesCmd(cfg *config.AppConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Print the route table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			set, err := views.New(nil)
			if err != nil {
				return err
			}
			declared, err := views.Declared(set)
			if err != nil {
				return err
			}
			t, err := routes.New(cfg.BaseURL, declared)
			if err != nil {
				return err
			}
			printRoutes(cmd.OutOrStdout(), t)
			return nil
		},
	}
}

func printRoutes(w io.Writer, t *routes.Table) {
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("NAME", "PATH", "URL", "LOADING")
	for _, r := range t.Routes() {
		href, _ := t.Href(r.Name)
		loading := "eager"
		if r.Lazy() {
			loading = "lazy"
		}
		tbl.Row(r.Name, r.Path, href, loading)
	}
	fmt.Fprintf(w, "base: %s\n", t.Base())
	fmt.Fprintln(w, tbl.Render())
}
