//go:build wireinject
// +build wireinject

package di

import (
	"anonbot/internal"
	"anonbot/internal/controllers"
	"anonbot/internal/persistence"
	"anonbot/internal/providers"
	"anonbot/internal/services"
	"anonbot/internal/structures"

	wire "github.com/google/wire"
)

func InitApp(cfg *structures.CliFlags) (*internal.App, error) {

	wire.Build(
		providers.NewConfigProvider,
		providers.NewLogProvider,
		providers.NewClock,
		providers.NewMetricsProvider,
		providers.NewInstrumentedCacheProvider,

		services.NewFeedbackService,
		services.NewReplyRouter,
		persistence.NewCompressor,
		persistence.NewSnapshotCodec,
		persistence.NewFileManager,
		persistence.NewScheduler,
		controllers.NewApiController,
		controllers.NewHealthController,
		internal.InitRoutes,
		internal.NewApp,
	)

	return nil, nil
}
