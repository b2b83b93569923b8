package cli

import (
	"fmt"

	"github.com/GriffinCanCode/toolfetch/internal/infrastructure/config"
	"github.com/GriffinCanCode/toolfetch/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/toolfetch/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/toolfetch/internal/logging"
	"github.com/GriffinCanCode/toolfetch/internal/netrequest"
	"go.uber.org/zap"
)

// App wires configuration, logging, metrics and the engine together.
type App struct {
	Config   *config.Config
	Logger   *logging.Logger
	Engine   *netrequest.Engine
	Metrics  *monitoring.Metrics
	Breakers *resilience.HostBreakers
}

// NewApp builds an engine from cfg.
func NewApp(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	proxy, err := cfg.Fetch.ProxyURL()
	if err != nil {
		return nil, err
	}

	metrics := monitoring.NewMetrics()
	engineLog := logger.Named("engine")
	engine := netrequest.New(
		netrequest.WithUserAgent(cfg.Fetch.UserAgent),
		netrequest.WithTimeout(cfg.Fetch.Timeout),
		netrequest.WithRateLimit(cfg.Fetch.RateLimitRPS, cfg.Fetch.RateBurst),
		netrequest.WithCompression(cfg.Fetch.Compression),
		netrequest.WithProxy(proxy),
		netrequest.WithLogger(engineLog.Logger),
		netrequest.WithObserver(metrics),
		netrequest.WithErrorHandler(func(txID string, err error) {
			engineLog.Debug("transport error", zap.String("tx", txID), zap.Error(err))
		}),
	)

	breakerLog := logger.Named("breaker")
	breakers := resilience.NewHostBreakers(resilience.Settings{
		Threshold: cfg.Fetch.BreakerThreshold,
		Cooldown:  cfg.Fetch.BreakerCooldown,
		OnStateChange: func(host string, from, to resilience.State) {
			metrics.RecordBreakerTransition(to.String())
			breakerLog.Warn("host breaker state changed",
				zap.String("host", host),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
	})

	return &App{
		Config:   cfg,
		Logger:   logger,
		Engine:   engine,
		Metrics:  metrics,
		Breakers: breakers,
	}, nil
}

// Close writes the metrics textfile when enabled and flushes the logger.
func (a *App) Close() error {
	defer a.Logger.Sync()

	if !a.Config.Metrics.Enabled {
		return nil
	}
	if err := a.Metrics.WriteTextfile(a.Config.Metrics.File); err != nil {
		return err
	}
	snap := a.Metrics.Snapshot()
	a.Logger.Debug("metrics written",
		zap.String("file", a.Config.Metrics.File),
		zap.Int64("transactions", snap.Transactions),
		zap.Int64("failures", snap.Failures))
	return nil
}
