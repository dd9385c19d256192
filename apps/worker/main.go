package main

import (
	"github.com/smallbiznis/hmsinsure/internal/cache"
	"github.com/smallbiznis/hmsinsure/internal/claimmetrics"
	"github.com/smallbiznis/hmsinsure/internal/config"
	"github.com/smallbiznis/hmsinsure/internal/coverage"
	"github.com/smallbiznis/hmsinsure/internal/itemprice"
	"github.com/smallbiznis/hmsinsure/internal/jobqueue"
	"github.com/smallbiznis/hmsinsure/internal/observability"
	"github.com/smallbiznis/hmsinsure/internal/pricepackage"
	"github.com/smallbiznis/hmsinsure/internal/provider"
	"github.com/smallbiznis/hmsinsure/internal/responselog"
	"github.com/smallbiznis/hmsinsure/internal/scheduler"
	"github.com/smallbiznis/hmsinsure/internal/syncjob"
	"github.com/smallbiznis/hmsinsure/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		db.Module,
		cache.Module,

		// Services the provider sync jobs run.
		provider.Module,
		responselog.Module,
		pricepackage.Module,
		coverage.Module,
		itemprice.Module,

		jobqueue.Module,
		jobqueue.WorkerModule,
		syncjob.Module,
		scheduler.Module,
		claimmetrics.Module,
	)
	app.Run()
}
