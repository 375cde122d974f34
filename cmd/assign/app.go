package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/goliatone/go-assign"
	"github.com/goliatone/go-assign/internal/config"
	"github.com/goliatone/go-assign/pkg/activity"
	"github.com/goliatone/go-assign/pkg/state"
	"github.com/goliatone/go-assign/pkg/state/sqlite"
)

// app is the state shared by every subcommand for one invocation.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	service *assign.Service
	closers []io.Closer
}

func newLogger(level string, verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if verbose {
		lvl = zapcore.DebugLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func openApp(ctx context.Context, opts rootOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	*cfg = config.Merge(config.Config{
		DefinitionsDir: opts.definitions,
		ConsumersFile:  opts.consumers,
	}, *cfg)

	logger, err := newLogger(cfg.LogLevel, opts.verbose)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	a := &app{cfg: cfg, logger: logger}

	consumers, err := config.LoadConsumers(cfg.ConsumersFile)
	if err != nil {
		a.Close()
		return nil, err
	}
	settings, err := a.openSettings()
	if err != nil {
		a.Close()
		return nil, err
	}
	evaluator, err := assign.NewEvaluator(cfg.Evaluator, assign.NewMapProgramCache(), assign.NewBuiltinRegistry())
	if err != nil {
		a.Close()
		return nil, err
	}

	store := assign.NewDefinitionStore(cfg.DefinitionsDir,
		assign.WithRegistry(cfg.Registry.Build()),
		assign.WithStoreLogger(logger.Named("store")),
		assign.WithReferenceWarnings(cfg.ReferenceWarnings),
	)
	a.service, err = assign.New(ctx, store, consumers,
		assign.WithLogger(logger),
		assign.WithSettingsStore(settings),
		assign.WithHostState(cfg.Host.State()),
		assign.WithEvaluator(evaluator),
		assign.WithActivityHooks(activity.Hooks{activity.HookFunc(a.logActivity)}),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) openSettings() (assign.SettingsStore, error) {
	ref := state.Ref{Domain: assign.SettingsDomain}
	switch a.cfg.Settings.Backend {
	case config.BackendMemory:
		return state.Bind[assign.Settings](state.NewMemoryStore[assign.Settings](), ref), nil
	case config.BackendYAML:
		return state.Bind[assign.Settings](state.NewFileStore[assign.Settings](a.cfg.Settings.Path), ref), nil
	case config.BackendSQLite:
		store, err := sqlite.Open[assign.Settings](a.cfg.Settings.Path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store)
		return state.Bind[assign.Settings](store, ref), nil
	default:
		return nil, fmt.Errorf("unknown settings backend %q", a.cfg.Settings.Backend)
	}
}

func (a *app) logActivity(_ context.Context, event activity.Event) error {
	a.logger.Info("activity",
		zap.String("verb", event.Verb),
		zap.String("object_type", event.ObjectType),
		zap.String("object_id", event.ObjectID),
		zap.Any("metadata", event.Metadata),
	)
	return nil
}

func (a *app) consumer(identity string) (*assign.ConsumerDefinition, error) {
	consumer, ok := a.service.Consumer(identity)
	if !ok {
		return nil, fmt.Errorf("%w: %q", assign.ErrUnknownConsumer, identity)
	}
	return consumer, nil
}

// Close releases stores and flushes the logger.
func (a *app) Close() error {
	var errs []error
	for _, closer := range a.closers {
		errs = append(errs, closer.Close())
	}
	if a.logger != nil {
		// Sync fails on stderr for some terminals; ignore it.
		_ = a.logger.Sync()
	}
	return errors.Join(errs...)
}

func parseSwitch(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	default:
		return false, fmt.Errorf("expected on or off, got %q", value)
	}
}
