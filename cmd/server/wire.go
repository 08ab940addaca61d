//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"

	"github.com/tetkool/concierge/internal/app"
	"github.com/tetkool/concierge/internal/config"
	"github.com/tetkool/concierge/internal/infrastructure/logger"
	"github.com/tetkool/concierge/internal/interfaces/adapter"
	"github.com/tetkool/concierge/internal/interfaces/httpserver"
)

var transportSet = wire.NewSet(
	newTelegramBot,
	newUpdateHandler,
	newDispatcher,
	wire.Bind(new(httpserver.MessageService), new(*adapter.Dispatcher)),
	httpserver.New,
)

// BuildApplication assembles the concierge service with Wire.
func BuildApplication(ctx context.Context) (*Application, error) {
	wire.Build(
		config.Load,
		logger.New,
		app.Build,
		transportSet,
		NewApplication,
	)
	return nil, nil
}

func newDispatcher(components *app.Components) *adapter.Dispatcher {
	return components.Dispatcher
}
