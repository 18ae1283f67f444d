package duckdb

import (
	"log/slog"

	"github.com/leapstack-labs/livef1/pkg/adapter"
	"github.com/leapstack-labs/livef1/pkg/core"
)

func init() {
	adapter.Register("duckdb", func(logger *slog.Logger) core.Adapter { return New(logger) })
}
