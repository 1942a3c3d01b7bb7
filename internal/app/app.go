package app

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coachflow/livesync/internal/config"
	"github.com/coachflow/livesync/internal/observability/logging"
)

// Application holds process-wide state for the client.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config
}

// New constructs a new Application from the provided configuration.
func New(cfg *config.Config) *Application {
	a := &Application{
		Cfg: cfg,
	}
	a.setupLogger()

	appLogger := a.Logger.With().
		Str("component", "application").
		Str("method", "New").
		Logger()

	appLogger.Info().Msg("Live sync application created")
	return a
}

// setupLogger configures zerolog for the client.
func (a *Application) setupLogger() {
	logging.Init(logging.Config{
		Level:      a.Cfg.Logging.Level,
		Format:     a.Cfg.Logging.Format,
		TimeFormat: time.RFC3339,
	})

	a.Logger = log.With().
		Str("service", "livesync").
		Logger()
}

// Start performs any startup work required before connecting.
func (a *Application) Start() error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	a.StartupTime = time.Now().UTC()
	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Msg("Live sync client starting")

	return nil
}

// Shutdown performs a best-effort cleanup before process exit.
func (a *Application) Shutdown() {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	shutdownLogger.Info().Msg("Live sync client shutting down")
}
