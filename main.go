package main

import (
	"log"

	"github.com/sisbarc/camshell/cmd"
)

func main() {
	webFS, err := getFrontendFS()
	if err != nil {
		log.Fatalf("loading shell assets: %v", err)
	}
	cmd.WebFS = webFS
	cmd.Execute()
}
