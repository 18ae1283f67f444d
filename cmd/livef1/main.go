// Package main provides the livef1 command.
package main

import (
	"os"

	"github.com/leapstack-labs/livef1/internal/cli"

	// Export adapters register themselves in init().
	_ "github.com/leapstack-labs/livef1/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/livef1/pkg/adapters/postgres"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
