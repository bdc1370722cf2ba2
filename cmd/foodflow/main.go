package main

import (
	"fmt"
	"os"

	"github.com/foodflow/foodflow/cmd/foodflow/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "foodflow: %v\n", err)
		os.Exit(1)
	}
}
