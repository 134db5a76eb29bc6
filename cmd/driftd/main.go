package main

import (
	"github.com/driftd/driftd/internal/cli"
)

func main() {
	cli.Execute()
}
