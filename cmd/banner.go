package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	bannerTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	bannerLabel = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(8)
	bannerBox   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 2)
)

type bannerInfo struct {
	Version   string
	URL       string
	LogFile   string
	Env       string
	DeviceURL string
}

// printBanner writes the startup banner. It is the only output on stdout
// during normal operation; structured logs go to the log file.
func printBanner(w io.Writer, b bannerInfo) {
	var sb strings.Builder
	sb.WriteString(bannerTitle.Render("camshell " + b.Version))
	sb.WriteString("\n\n")
	row := func(label, value string) {
		sb.WriteString(bannerLabel.Render(label))
		sb.WriteString(value)
		sb.WriteString("\n")
	}
	row("visit", b.URL)
	row("env", b.Env)
	if b.DeviceURL != "" {
		row("/api →", b.DeviceURL)
	}
	row("logs", b.LogFile)

	fmt.Fprintln(w, bannerBox.Render(strings.TrimSuffix(sb.String(), "\n")))
	fmt.Fprintln(w)
}
