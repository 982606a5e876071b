package main

import (
	"os"

	"github.com/bianoble/agpm/cmd/agpm/cmd"
)

func main() {
	os.Exit(cmd.ExitCode(cmd.Execute()))
}
