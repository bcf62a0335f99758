package main

import (
	"os"

	"github.com/smallnest/coachrag/cmd/coachrag/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
