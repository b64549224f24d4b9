package di

import (
	"github.com/Sakeeb91/claim-mapper-sub003/application/commands/bus"
	"github.com/Sakeeb91/claim-mapper-sub003/application/ports"
	"github.com/Sakeeb91/claim-mapper-sub003/application/session"
	"github.com/Sakeeb91/claim-mapper-sub003/infrastructure/config"
	"github.com/Sakeeb91/claim-mapper-sub003/infrastructure/realtime"
	"github.com/Sakeeb91/claim-mapper-sub003/infrastructure/restapi"
	"github.com/Sakeeb91/claim-mapper-sub003/interfaces/http/rest"
	"github.com/Sakeeb91/claim-mapper-sub003/pkg/observability"
	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *observability.Collector
	API        *restapi.Client
	Realtime   *realtime.Manager
	Publisher  ports.ChangePublisher
	Session    *session.Session
	CommandBus *bus.CommandBus
	Router     *rest.Router
}
