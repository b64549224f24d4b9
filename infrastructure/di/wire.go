//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/Sakeeb91/claim-mapper-sub003/infrastructure/config"
	"github.com/google/wire"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideGraphAPI,
	ProvideRealtimeManager,
	ProvideChangePublisher,
	ProvideSession,
	ProvideCommandBus,
	ProvideRouter,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil
}
