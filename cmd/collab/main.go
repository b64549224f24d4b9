package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sakeeb91/claim-mapper-sub003/infrastructure/config"
	"github.com/Sakeeb91/claim-mapper-sub003/infrastructure/di"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

type serveFlags struct {
	configPath string
	projectID  string
	token      string
	listen     string
	wsURL      string
	apiURL     string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "collab",
		Short:         "Real-time collaboration client for a claim graph project",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func newServeCmd() *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Connect to the collaboration channel and serve the local inspection API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&f.configPath, "config", "", "YAML config file (overrides "+config.FileEnv+")")
	cmd.Flags().StringVarP(&f.projectID, "project", "p", "", "project to join after connecting")
	cmd.Flags().StringVar(&f.token, "token", "", "bearer token for the collaboration server")
	cmd.Flags().StringVar(&f.listen, "listen", "", "address of the local inspection API")
	cmd.Flags().StringVar(&f.wsURL, "ws-url", "", "collaboration websocket URL")
	cmd.Flags().StringVar(&f.apiURL, "api-url", "", "REST API base URL")
	return cmd
}

// loadConfig layers explicitly set flags over file and environment values
func loadConfig(cmd *cobra.Command, f serveFlags) (*config.Config, error) {
	if f.configPath != "" {
		if err := os.Setenv(config.FileEnv, f.configPath); err != nil {
			return nil, err
		}
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("project") {
		cfg.ProjectID = f.projectID
	}
	if flags.Changed("token") {
		cfg.AuthToken = f.token
	}
	if flags.Changed("listen") {
		cfg.ListenAddress = f.listen
	}
	if flags.Changed("ws-url") {
		cfg.WebSocketURL = f.wsURL
	}
	if flags.Changed("api-url") {
		cfg.APIBaseURL = f.apiURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	container, cleanup, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize container: %w", err)
	}
	defer cleanup()
	logger := container.Logger

	if err := container.Session.Connect(ctx, cfg.AuthToken); err != nil {
		logger.Warn("Initial connect failed",
			zap.Int("reconnect_attempts", cfg.MaxReconnectAttempts),
			zap.Error(err))
	}
	// The graph loads over REST, so joining works offline; join_project is
	// announced again once the channel comes up.
	if cfg.ProjectID != "" {
		if err := container.Session.Join(ctx, cfg.ProjectID); err != nil {
			logger.Error("Join project failed", zap.String("project_id", cfg.ProjectID), zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      container.Router.Setup(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting local API",
			zap.String("address", cfg.ListenAddress),
			zap.String("environment", cfg.Environment),
			zap.String("project_id", cfg.ProjectID),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("local API: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if cfg.ProjectID != "" {
		if err := container.Session.Leave(shutdownCtx); err != nil {
			logger.Debug("Leave on shutdown failed", zap.Error(err))
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}
	_ = logger.Sync()
	return nil
}
