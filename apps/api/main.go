package main

import (
	"github.com/smallbiznis/hmsinsure/internal/config"
	"github.com/smallbiznis/hmsinsure/internal/migration"
	"github.com/smallbiznis/hmsinsure/internal/observability"
	"github.com/smallbiznis/hmsinsure/internal/seed"
	"github.com/smallbiznis/hmsinsure/internal/server"
	"github.com/smallbiznis/hmsinsure/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		db.Module,
		migration.Module,

		// Enqueues jobs only; apps/worker runs them.
		server.Module,
		seed.Module,
	)
	app.Run()
}
