package postgres

import (
	"log/slog"

	"github.com/leapstack-labs/livef1/pkg/adapter"
	"github.com/leapstack-labs/livef1/pkg/core"
)

func init() {
	adapter.Register("postgres", func(logger *slog.Logger) core.Adapter { return New(logger) })
}
