package main

import (
	"context"
	"fmt"
	"os"

	"github.com/japaniel/tarjama/pkg/cli"
)

func main() {
	if err := cli.Execute(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
