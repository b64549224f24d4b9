package di

import (
	"context"
	"fmt"

	"github.com/Sakeeb91/claim-mapper-sub003/application/commands/bus"
	"github.com/Sakeeb91/claim-mapper-sub003/application/commands/handlers"
	"github.com/Sakeeb91/claim-mapper-sub003/application/ports"
	"github.com/Sakeeb91/claim-mapper-sub003/application/session"
	"github.com/Sakeeb91/claim-mapper-sub003/infrastructure/config"
	"github.com/Sakeeb91/claim-mapper-sub003/infrastructure/messaging/eventbridge"
	"github.com/Sakeeb91/claim-mapper-sub003/infrastructure/realtime"
	"github.com/Sakeeb91/claim-mapper-sub003/infrastructure/restapi"
	"github.com/Sakeeb91/claim-mapper-sub003/interfaces/http/rest"
	"github.com/Sakeeb91/claim-mapper-sub003/pkg/observability"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	return zcfg.Build()
}

// ProvideMetrics creates the Prometheus collector
func ProvideMetrics() *observability.Collector {
	return observability.NewCollector("collab")
}

// ProvideGraphAPI creates the durable-request client
func ProvideGraphAPI(cfg *config.Config, logger *zap.Logger) (*restapi.Client, error) {
	clientCfg := restapi.DefaultConfig(cfg.APIBaseURL)
	clientCfg.Timeout = cfg.APITimeout

	client, err := restapi.New(clientCfg, logger)
	if err != nil {
		return nil, err
	}
	client.SetToken(cfg.AuthToken)
	return client, nil
}

// ProvideRealtimeManager creates the real-time connection manager
func ProvideRealtimeManager(cfg *config.Config, metrics *observability.Collector, logger *zap.Logger) (*realtime.Manager, func()) {
	m := realtime.NewManager(realtime.Config{
		URL:                  cfg.WebSocketURL,
		HandshakeTimeout:     cfg.HandshakeTimeout,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		ReconnectInitial:     cfg.ReconnectInitial,
		ReconnectMax:         cfg.ReconnectMax,
	}, realtime.NewBus(), metrics, logger)
	return m, m.Close
}

// ProvideChangePublisher creates the EventBridge audit sink. It returns nil
// when no event bus is configured.
func ProvideChangePublisher(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.ChangePublisher, error) {
	if cfg.EventBusName == "" {
		return nil, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return eventbridge.NewPublisher(awseventbridge.NewFromConfig(awsCfg), cfg.EventBusName, logger), nil
}

// ProvideSession creates the collaboration session
func ProvideSession(
	cfg *config.Config,
	api *restapi.Client,
	conn *realtime.Manager,
	publisher ports.ChangePublisher,
	metrics *observability.Collector,
	logger *zap.Logger,
) (*session.Session, func()) {
	s := session.New(session.Options{
		Config:    cfg.Domain(),
		API:       api,
		Conn:      conn,
		Publisher: publisher,
		Metrics:   metrics,
		Logger:    logger,
	})
	return s, s.Close
}

// ProvideCommandBus creates the command bus with all handlers registered
func ProvideCommandBus(s *session.Session, logger *zap.Logger) (*bus.CommandBus, error) {
	b := bus.NewCommandBus(
		bus.LoggingMiddleware(logger),
		bus.ValidationMiddleware(),
	)
	if err := handlers.NewSessionHandlers(s, logger).Register(b); err != nil {
		return nil, fmt.Errorf("failed to register command handlers: %w", err)
	}
	return b, nil
}

// ProvideRouter creates the local HTTP API router
func ProvideRouter(
	cfg *config.Config,
	commandBus *bus.CommandBus,
	s *session.Session,
	metrics *observability.Collector,
	logger *zap.Logger,
) *rest.Router {
	return rest.NewRouter(commandBus, s, metrics, rest.Options{
		EnableCORS:         cfg.EnableCORS,
		AllowedOrigins:     cfg.CORSAllowedOrigins,
		Token:              cfg.LocalAPIToken,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		EnableMetrics:      cfg.EnableMetrics,
		Debug:              cfg.IsDevelopment(),
	}, logger)
}
