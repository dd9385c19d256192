package main

import (
	"github.com/smallbiznis/hmsinsure/internal/config"
	"github.com/smallbiznis/hmsinsure/internal/jobqueue"
	"github.com/smallbiznis/hmsinsure/internal/migration"
	"github.com/smallbiznis/hmsinsure/internal/observability"
	"github.com/smallbiznis/hmsinsure/internal/scheduler"
	"github.com/smallbiznis/hmsinsure/internal/seed"
	"github.com/smallbiznis/hmsinsure/internal/server"
	"github.com/smallbiznis/hmsinsure/pkg/db"
	"go.uber.org/fx"
)

// hmsinsure runs the API, the queue workers and the scheduler in one process.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		db.Module,
		migration.Module,

		server.Module,
		seed.Module,

		jobqueue.WorkerModule,
		scheduler.Module,
	)
	app.Run()
}
