package main

import (
	"context"
	"os"

	"github.com/genricoloni/marquee/internal/config"
	"github.com/genricoloni/marquee/internal/display"
	"github.com/genricoloni/marquee/internal/domain"
	"github.com/genricoloni/marquee/internal/engine"
	"github.com/genricoloni/marquee/internal/layout"
	"github.com/genricoloni/marquee/internal/monitor"
	"github.com/genricoloni/marquee/internal/render"
	"github.com/genricoloni/marquee/internal/selector"
	"github.com/genricoloni/marquee/internal/state"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultLogMaxSizeMB  = 10
	defaultLogMaxBackups = 3
)

// AppOptions is the overlay daemon application graph
var AppOptions = fx.Options(
	// Logger configuration
	fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: log}
	}),

	// Provide dependencies
	fx.Provide(
		loadConfig,
		newLogger,
		display.NewScreenResolution,
		newMeasurer,
		newLayout,
		newTrackState,
		newSource,
		fx.Annotate(
			config.NewWatcher,
			fx.As(fx.Self()),
			fx.As(new(engine.ConfigUpdates)),
		),
		fx.Annotate(
			engine.NewEngine,
			fx.As(fx.Self()),
			fx.As(new(domain.FrameSource)),
		),
		newSinks,
		render.NewDriver,
	),

	// Lifecycle hooks
	fx.Invoke(registerHooks),
)

// loadConfig reads the file selected by --config
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// newLogger creates a new zap logger instance at the configured level.
// When a log file is configured, JSON entries are also written to it with rotation.
func newLogger(cfg config.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	zc.Level = level
	logger, err := zc.Build()
	if err != nil {
		return nil, err
	}
	if cfg.Log.File == "" {
		return logger, nil
	}

	maxSize := cfg.Log.MaxSizeMB
	if maxSize <= 0 {
		maxSize = defaultLogMaxSizeMB
	}
	maxBackups := cfg.Log.MaxBackups
	if maxBackups <= 0 {
		maxBackups = defaultLogMaxBackups
	}

	fileWriter := zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.Log.File,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
	})
	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(zc.EncoderConfig),
		fileWriter,
		level,
	)

	return logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, fileCore)
	})), nil
}

func newMeasurer(logger *zap.Logger, cfg config.Config) (domain.Measurer, error) {
	m, err := layout.NewFontMeasurer(logger, cfg.FontSpec())
	if err != nil {
		return nil, err
	}
	return m, nil
}

func newLayout(logger *zap.Logger, m domain.Measurer, cfg config.Config) *layout.Engine {
	return layout.NewEngine(logger, m, layout.Options{
		Font:    cfg.FontSpec(),
		MinSize: cfg.Font.MinSize,
		MaxSize: cfg.Font.MaxSize,
	})
}

func newTrackState() *state.TrackState {
	return state.New(nil)
}

func newSource(logger *zap.Logger, cfg config.Config) domain.Source {
	return monitor.NewMprisSource(logger, monitor.Options{
		Interval: cfg.PollEvery(),
		Policy:   selector.Policy{Players: cfg.Players},
	})
}

// newSinks returns the log sink plus the track change hook when one is configured
func newSinks(logger *zap.Logger, cfg config.Config) []render.Sink {
	sinks := []render.Sink{render.NewLogSink(logger)}
	if len(cfg.Hook.Command) == 0 {
		return sinks
	}

	hook, err := render.NewHookSink(logger, cfg)
	if err != nil {
		logger.Warn("Track change hook disabled", zap.Error(err))
		return sinks
	}
	return append(sinks, hook)
}

// lifecycle is implemented by every long-running component
type lifecycle interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// registerHooks sets up application lifecycle hooks.
// Components start producer first; fx stops them in reverse order.
func registerHooks(
	lc fx.Lifecycle,
	logger *zap.Logger,
	cfg config.Config,
	watcher *config.Watcher,
	src domain.Source,
	eng *engine.Engine,
	driver *render.Driver,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Marquee daemon started",
				zap.String("config", cfg.Path),
				zap.String("font", cfg.Font.Family),
				zap.Strings("players", cfg.Players),
				zap.Int("pid", os.Getpid()))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down")
			_ = logger.Sync()
			return nil
		},
	})

	for _, c := range []lifecycle{watcher, src, eng, driver} {
		lc.Append(fx.StartStopHook(c.Start, c.Stop))
	}
}
