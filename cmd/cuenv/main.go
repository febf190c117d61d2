package main

import (
	"os"

	"github.com/cuenv/cuenv/internal/cmd"
)

const cuenvVersion = "0.1.0"

func main() {
	os.Exit(cmd.RunWithArgs(os.Args[1:], cuenvVersion))
}
