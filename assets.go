//go:build !dev

package main

import (
	"embed"
	"io/fs"
)

// The shell's stylesheet, Monitor script and robots.txt, served under BASE_URL.
//
//go:embed frontend/dist
var embeddedFrontend embed.FS

func getFrontendFS() (fs.FS, error) {
	return fs.Sub(embeddedFrontend, "frontend/dist")
}
