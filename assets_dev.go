//go:build dev

package main

import (
	"io/fs"
	"os"
)

// getFrontendFS reads assets from disk in dev builds so edits show up without
// a rebuild.
func getFrontendFS() (fs.FS, error) {
	return os.DirFS("frontend/dist"), nil
}
