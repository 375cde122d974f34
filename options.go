package assign

import (
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/goliatone/go-assign/pkg/activity"
)

// Option configures a Service.
type Option func(*serviceConfig)

type serviceConfig struct {
	logger          *zap.Logger
	rng             *rand.Rand
	settings        SettingsStore
	host            HostState
	evaluator       Evaluator
	programCache    ProgramCache
	functions       *FunctionRegistry
	evaluatorLogger EvaluatorLogger
	activityHooks   activity.Hooks
	activityChannel string
}

func defaultServiceConfig() serviceConfig {
	return serviceConfig{
		logger: zap.NewNop(),
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		host:   StaticHostState{},
	}
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *serviceConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithRand sets the random source used for sampling and permutations.
func WithRand(rng *rand.Rand) Option {
	return func(cfg *serviceConfig) {
		if rng != nil {
			cfg.rng = rng
		}
	}
}

// WithSeed makes resolution reproducible.
func WithSeed(seed1, seed2 uint64) Option {
	return WithRand(rand.New(rand.NewPCG(seed1, seed2)))
}

// WithSettingsStore sets where Settings are persisted. Defaults to an
// in-memory store.
func WithSettingsStore(store SettingsStore) Option {
	return func(cfg *serviceConfig) {
		cfg.settings = store
	}
}

// WithHostState sets the host conditions consulted by Resolve.
func WithHostState(host HostState) Option {
	return func(cfg *serviceConfig) {
		if host != nil {
			cfg.host = host
		}
	}
}

// WithEvaluator sets the selector engine used by ApplyToAll and
// MatchConsumers. Defaults to expr.
func WithEvaluator(evaluator Evaluator) Option {
	return func(cfg *serviceConfig) {
		cfg.evaluator = evaluator
	}
}

// WithProgramCache registers a program cache for the default evaluator.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *serviceConfig) {
		cfg.programCache = cache
	}
}

// WithActivityHooks attaches activity hooks. Nil entries are dropped.
func WithActivityHooks(hooks activity.Hooks) Option {
	compacted := hooks.Compact()
	return func(cfg *serviceConfig) {
		cfg.activityHooks = compacted
	}
}

// WithActivityChannel overrides the channel stamped on emitted events.
func WithActivityChannel(channel string) Option {
	return func(cfg *serviceConfig) {
		cfg.activityChannel = channel
	}
}
