package cmd

import "io/fs"

// WebFS is set by main() before Execute() is called.
// It holds the frontend assets served under the base URL.
var WebFS fs.FS
