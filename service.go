package assign

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/goliatone/go-assign/pkg/activity"
	"github.com/goliatone/go-assign/pkg/state"
)

// SettingsDomain is the state domain settings are stored under when the
// Service falls back to its in-memory store.
const SettingsDomain = "assign"

// Service owns the definition store, the result cache, the persisted
// settings and the override baselines. It is not safe for concurrent use;
// callers serialize access the way a single host thread would.
type Service struct {
	store           *DefinitionStore
	cache           *ResultCache
	consumers       map[string]*ConsumerDefinition
	baselines       map[string]baseline
	settings        SettingsStore
	host            HostState
	rng             *rand.Rand
	logger          *zap.Logger
	emitter         *activity.Emitter
	evaluator       Evaluator
	evaluatorLogger EvaluatorLogger
}

// baseline is the host-authored override state captured at construction.
type baseline struct {
	fixed   bool
	require []string
}

// New builds a Service for store and consumers. Baselines are captured
// before persisted ignore overrides are applied.
func New(ctx context.Context, store *DefinitionStore, consumers []*ConsumerDefinition, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("assign: definition store is required")
	}
	cfg := defaultServiceConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.settings == nil {
		cfg.settings = state.Bind[Settings](state.NewMemoryStore[Settings](), state.Ref{Domain: SettingsDomain})
	}
	if cfg.evaluatorLogger == nil {
		cfg.evaluatorLogger = ZapEvaluatorLogger(cfg.logger)
	}
	if cfg.evaluator == nil {
		functions := cfg.functions
		if functions == nil {
			functions = NewBuiltinRegistry()
		}
		cache := cfg.programCache
		if cache == nil {
			cache = NewMapProgramCache()
		}
		cfg.evaluator = NewExprEvaluator(ExprWithProgramCache(cache), ExprWithFunctionRegistry(functions))
	}

	s := &Service{
		store:           store,
		consumers:       make(map[string]*ConsumerDefinition, len(consumers)),
		baselines:       make(map[string]baseline, len(consumers)),
		settings:        cfg.settings,
		host:            cfg.host,
		rng:             cfg.rng,
		logger:          cfg.logger,
		emitter:         activity.NewEmitter(cfg.activityHooks, activity.Config{Enabled: true, Channel: cfg.activityChannel}),
		evaluator:       cfg.evaluator,
		evaluatorLogger: cfg.evaluatorLogger,
	}
	s.cache = NewResultCache(func(consumer *ConsumerDefinition) FilterResult {
		return Filter(s.store.GetAll(), consumer)
	})
	store.OnReload(func([]*CandidateDefinition) { s.cache.Reset() })

	for _, consumer := range consumers {
		if consumer == nil || strings.TrimSpace(consumer.Identity) == "" {
			return nil, errors.New("assign: consumer identity is required")
		}
		if _, dup := s.consumers[consumer.Identity]; dup {
			return nil, fmt.Errorf("assign: consumer %q registered twice", consumer.Identity)
		}
		s.consumers[consumer.Identity] = consumer
		s.baselines[consumer.Identity] = baseline{
			fixed:   consumer.FixedAssignment,
			require: slices.Clone(consumer.RequireList),
		}
	}

	settings, _, err := s.settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("assign: load settings: %w", err)
	}
	for _, identity := range settings.IgnoreOverrides {
		if consumer, ok := s.consumers[identity]; ok {
			applyIgnore(consumer)
		}
	}
	return s, nil
}

// Store returns the underlying definition store.
func (s *Service) Store() *DefinitionStore {
	return s.store
}

// Cache returns the result cache.
func (s *Service) Cache() *ResultCache {
	return s.cache
}

// EnsureFresh reloads definitions when the staleness token moved.
func (s *Service) EnsureFresh(ctx context.Context) bool {
	return s.ensureFresh(ctx)
}

func (s *Service) ensureFresh(ctx context.Context) bool {
	if !s.store.EnsureFresh() {
		return false
	}
	s.emit(ctx, activity.DefinitionsReloaded(
		s.store.Dir(),
		len(s.store.GetAll()),
		len(s.store.Diagnostics()),
		s.store.LoadPasses(),
	))
	return true
}

// GetAll returns the loaded candidates without touching the disk.
func (s *Service) GetAll() []*CandidateDefinition {
	return s.store.GetAll()
}

// Filter returns the compatible subset for consumer, reloading definitions
// first when they changed on disk. Results are cached only for the registered
// consumer value; other consumers are filtered on every call. A nil consumer
// yields an empty result.
func (s *Service) Filter(ctx context.Context, consumer *ConsumerDefinition) FilterResult {
	if consumer == nil {
		return FilterResult{}
	}
	s.ensureFresh(ctx)
	if registered, ok := s.consumers[consumer.Identity]; !ok || registered != consumer {
		return Filter(s.store.GetAll(), consumer)
	}
	return s.cache.GetOrCompute(consumer)
}

// Invalidate forces the next EnsureFresh to reparse every definition file.
func (s *Service) Invalidate() {
	s.store.Invalidate()
}

// Consumer returns the registered consumer named identity.
func (s *Service) Consumer(identity string) (*ConsumerDefinition, bool) {
	consumer, ok := s.consumers[identity]
	return consumer, ok
}

// Consumers returns the non-owner consumers sorted by label.
func (s *Service) Consumers() []*ConsumerDefinition {
	out := make([]*ConsumerDefinition, 0, len(s.consumers))
	for _, consumer := range s.consumers {
		if !consumer.Owner {
			out = append(out, consumer)
		}
	}
	slices.SortFunc(out, func(a, b *ConsumerDefinition) int {
		return cmp.Or(cmp.Compare(a.Name(), b.Name()), cmp.Compare(a.Identity, b.Identity))
	})
	return out
}

// Settings returns the persisted settings, or the defaults when nothing was
// saved yet.
func (s *Service) Settings(ctx context.Context) (Settings, error) {
	settings, ok, err := s.settings.Load(ctx)
	if err != nil {
		return Settings{}, fmt.Errorf("assign: load settings: %w", err)
	}
	if !ok {
		return DefaultSettings(), nil
	}
	return settings, nil
}

// loadSettings is Settings for the resolution path, which never fails.
func (s *Service) loadSettings(ctx context.Context) Settings {
	settings, err := s.Settings(ctx)
	if err != nil {
		s.logger.Warn("settings unavailable, using defaults", zap.Error(err))
		return DefaultSettings()
	}
	return settings
}

// Preference returns the entry stored for identity, or UseGlobalDefaultPolicy.
func (s *Service) Preference(ctx context.Context, identity string) (PreferenceEntry, error) {
	settings, err := s.Settings(ctx)
	if err != nil {
		return PreferenceEntry{}, err
	}
	if entry, ok := settings.Preference(identity); ok {
		return entry, nil
	}
	return UseGlobalDefaultPolicy(), nil
}

// SetPreference stores entry for the consumer named identity. Storing
// UseGlobalDefaultPolicy removes the entry.
func (s *Service) SetPreference(ctx context.Context, identity string, entry PreferenceEntry) error {
	if _, err := s.lookup(identity); err != nil {
		return err
	}
	if err := entry.Validate(); err != nil {
		return err
	}
	before, _, err := s.mutate(ctx, func(settings *Settings) error {
		storePreference(settings, identity, entry)
		return nil
	})
	if err != nil {
		return err
	}
	old, _ := before.Preference(identity)
	s.emit(ctx, activity.PreferenceUpdated(s.change(ctx, identity, old.String(), entry.String())))
	return nil
}

// TogglePinned adds candidate to the consumer's pinned set, or removes it
// when already pinned. A non-pinned entry is replaced by a single pin and an
// emptied set falls back to UseGlobalDefaultPolicy. It returns the new entry.
func (s *Service) TogglePinned(ctx context.Context, identity, candidate string) (PreferenceEntry, error) {
	if _, err := s.lookup(identity); err != nil {
		return PreferenceEntry{}, err
	}
	if err := validatePinnedIdentity(candidate); err != nil {
		return PreferenceEntry{}, err
	}
	var next PreferenceEntry
	before, _, err := s.mutate(ctx, func(settings *Settings) error {
		current, _ := settings.Preference(identity)
		toggled, ok := current.toggle(candidate)
		if !ok {
			toggled = UseGlobalDefaultPolicy()
		}
		next = toggled
		storePreference(settings, identity, next)
		return nil
	})
	if err != nil {
		return PreferenceEntry{}, err
	}
	old, _ := before.Preference(identity)
	s.emit(ctx, activity.PreferenceUpdated(s.change(ctx, identity, old.String(), next.String())))
	return next, nil
}

// SetDefaultPolicy changes the policy used by consumers without an explicit
// entry. Only SystemDefault, RandomFromPool and Probabilistic entries are
// accepted.
func (s *Service) SetDefaultPolicy(ctx context.Context, entry PreferenceEntry) error {
	switch entry.Kind {
	case PreferenceSystemDefault, PreferenceRandomFromPool, PreferenceProbabilistic:
	default:
		return fmt.Errorf("%w: %s cannot be the default policy", ErrInvalidPreference, entry)
	}
	if err := entry.Validate(); err != nil {
		return err
	}
	before, _, err := s.mutate(ctx, func(settings *Settings) error {
		settings.DefaultPolicy = entry.clone()
		return nil
	})
	if err != nil {
		return err
	}
	input := s.change(ctx, "", before.Policy().String(), entry.String())
	input.Field = "default_policy"
	s.emit(ctx, activity.PolicyUpdated(input))
	return nil
}

// SetPercentChance changes the probability used by UseSettingsChance
// entries.
func (s *Service) SetPercentChance(ctx context.Context, p float64) error {
	before, _, err := s.mutate(ctx, func(settings *Settings) error {
		settings.PercentChance = &p
		return nil
	})
	if err != nil {
		return err
	}
	input := s.change(ctx, "", before.Chance(), p)
	input.Field = "percent_chance"
	s.emit(ctx, activity.PolicyUpdated(input))
	return nil
}

// SetIgnoreOverride toggles the ignore override for the consumer named
// identity. Enabling it clears FixedAssignment and RequireList; disabling it
// restores the values captured at construction. The override set is
// persisted before the consumer is touched.
func (s *Service) SetIgnoreOverride(ctx context.Context, identity string, ignore bool) error {
	consumer, err := s.lookup(identity)
	if err != nil {
		return err
	}
	before, _, err := s.mutate(ctx, func(settings *Settings) error {
		settings.setIgnore(identity, ignore)
		return nil
	})
	if err != nil {
		return err
	}
	if ignore {
		applyIgnore(consumer)
	} else {
		s.restore(consumer)
	}
	s.cache.Invalidate(identity)
	s.emit(ctx, activity.OverrideUpdated(s.change(ctx, identity, before.Ignores(identity), ignore)))
	return nil
}

// ClearAllPreferences resets settings to their defaults, restores every
// override baseline and empties the result cache.
func (s *Service) ClearAllPreferences(ctx context.Context) error {
	before, err := s.Settings(ctx)
	if err != nil {
		return err
	}
	defaults := DefaultSettings()
	if err := s.settings.Save(ctx, defaults); err != nil {
		return fmt.Errorf("assign: save settings: %w", err)
	}
	for _, consumer := range s.consumers {
		s.restore(consumer)
	}
	s.cache.Reset()

	input := s.change(ctx, "", len(before.Preferences), 0)
	input.Metadata = map[string]any{"ignore_overrides": len(before.IgnoreOverrides)}
	s.emit(ctx, activity.PreferencesCleared(input))
	return nil
}

// MatchConsumers returns the non-owner consumers selected by expr, in
// Consumers order. An empty expr selects every consumer.
func (s *Service) MatchConsumers(ctx context.Context, expr string) ([]*ConsumerDefinition, error) {
	consumers := s.Consumers()
	if strings.TrimSpace(expr) == "" {
		return consumers, nil
	}
	rule, err := s.compileSelector(expr)
	if err != nil {
		return nil, err
	}
	s.ensureFresh(ctx)
	out := make([]*ConsumerDefinition, 0, len(consumers))
	for _, consumer := range consumers {
		matched, err := s.matchSelector(rule, expr, consumer, s.cache.GetOrCompute(consumer))
		if err != nil {
			return nil, err
		}
		if matched {
			out = append(out, consumer)
		}
	}
	return out, nil
}

// ApplyToAll stores entry for every non-owner consumer that has at least one
// compatible candidate and matches selector (empty selects all). Pinned
// entries are narrowed to each consumer's compatible subset; consumers left
// with nothing are skipped. It returns how many consumers were updated.
func (s *Service) ApplyToAll(ctx context.Context, entry PreferenceEntry, selector string) (int, error) {
	if err := entry.Validate(); err != nil {
		return 0, err
	}
	var rule CompiledRule
	if strings.TrimSpace(selector) != "" {
		var err error
		if rule, err = s.compileSelector(selector); err != nil {
			return 0, err
		}
	}

	s.ensureFresh(ctx)
	updates := map[string]PreferenceEntry{}
	for _, consumer := range s.Consumers() {
		result := s.cache.GetOrCompute(consumer)
		if result.Empty() {
			continue
		}
		if rule != nil {
			matched, err := s.matchSelector(rule, selector, consumer, result)
			if err != nil {
				return 0, err
			}
			if !matched {
				continue
			}
		}
		value := entry
		if entry.Kind == PreferencePinned {
			pinned := make([]string, 0, len(entry.Pinned))
			for _, candidate := range result.Candidates {
				if slices.Contains(entry.Pinned, candidate.Identity) {
					pinned = append(pinned, candidate.Identity)
				}
			}
			if len(pinned) == 0 {
				continue
			}
			value = UsePinnedSet(pinned...)
		}
		updates[consumer.Identity] = value
	}
	if len(updates) == 0 {
		return 0, nil
	}

	before, _, err := s.mutate(ctx, func(settings *Settings) error {
		for identity, value := range updates {
			storePreference(settings, identity, value)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, identity := range sortedKeys(updates) {
		old, _ := before.Preference(identity)
		s.emit(ctx, activity.PreferenceUpdated(s.change(ctx, identity, old.String(), updates[identity].String())))
	}
	return len(updates), nil
}

func (s *Service) lookup(identity string) (*ConsumerDefinition, error) {
	consumer, ok := s.consumers[identity]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownConsumer, identity)
	}
	return consumer, nil
}

// mutate runs the load, edit, validate, save cycle and returns the settings
// before and after fn.
func (s *Service) mutate(ctx context.Context, fn func(*Settings) error) (Settings, Settings, error) {
	current, err := s.Settings(ctx)
	if err != nil {
		return Settings{}, Settings{}, err
	}
	before := current.Clone()
	if err := fn(&current); err != nil {
		return Settings{}, Settings{}, err
	}
	if err := current.Validate(); err != nil {
		return Settings{}, Settings{}, err
	}
	if err := s.settings.Save(ctx, current); err != nil {
		return Settings{}, Settings{}, fmt.Errorf("assign: save settings: %w", err)
	}
	return before, current, nil
}

func (s *Service) restore(consumer *ConsumerDefinition) {
	b := s.baselines[consumer.Identity]
	consumer.IgnoreOverride = false
	consumer.FixedAssignment = b.fixed
	consumer.RequireList = slices.Clone(b.require)
}

func (s *Service) change(ctx context.Context, identity string, oldValue, newValue any) activity.ChangeInput {
	return activity.ChangeInput{
		ActorID:    activity.ActorFromContext(ctx),
		ConsumerID: identity,
		OldValue:   oldValue,
		NewValue:   newValue,
	}
}

func (s *Service) emit(ctx context.Context, event activity.Event) {
	if err := s.emitter.Emit(ctx, event); err != nil {
		s.logger.Warn("activity hook failed", zap.String("verb", event.Verb), zap.Error(err))
	}
}

func applyIgnore(consumer *ConsumerDefinition) {
	consumer.IgnoreOverride = true
	consumer.FixedAssignment = false
	consumer.RequireList = nil
}

func storePreference(settings *Settings, identity string, entry PreferenceEntry) {
	if entry.Kind == PreferenceGlobal {
		delete(settings.Preferences, identity)
		return
	}
	settings.setPreference(identity, entry)
}
