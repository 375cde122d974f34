package assign

import (
	"context"
	"fmt"
	"maps"
	"slices"
)

// DefaultPercentChance is the chance used by UseSettingsChance entries when
// nothing else was configured.
const DefaultPercentChance = 0.5

// Settings is the persisted preference state.
type Settings struct {
	DefaultPolicy   PreferenceEntry            `yaml:"default_policy" json:"default_policy"`
	PercentChance   *float64                   `yaml:"percent_chance,omitempty" json:"percent_chance,omitempty"`
	Preferences     map[string]PreferenceEntry `yaml:"preferences,omitempty" json:"preferences,omitempty"`
	IgnoreOverrides []string                   `yaml:"ignore_overrides,omitempty" json:"ignore_overrides,omitempty"`
}

// SettingsStore persists Settings. pkg/state provides memory, file and SQLite
// backed implementations.
type SettingsStore interface {
	Load(ctx context.Context) (Settings, bool, error)
	Save(ctx context.Context, settings Settings) error
}

// DefaultSettings returns the settings used before anything was persisted.
func DefaultSettings() Settings {
	return Settings{DefaultPolicy: UseRandomFromPool()}
}

// Chance returns the configured percent chance or its default.
func (s Settings) Chance() float64 {
	if s.PercentChance == nil {
		return DefaultPercentChance
	}
	return *s.PercentChance
}

// Policy returns the default policy, treating an unset policy as
// UseRandomFromPool.
func (s Settings) Policy() PreferenceEntry {
	if s.DefaultPolicy.Kind == PreferenceGlobal {
		return UseRandomFromPool()
	}
	return s.DefaultPolicy
}

// Preference returns the entry stored for identity.
func (s Settings) Preference(identity string) (PreferenceEntry, bool) {
	entry, ok := s.Preferences[identity]
	return entry, ok
}

// Ignores reports whether identity has an ignore override.
func (s Settings) Ignores(identity string) bool {
	return slices.Contains(s.IgnoreOverrides, identity)
}

// Validate implements the validation contract used by pkg/state.
func (s Settings) Validate() error {
	if err := s.DefaultPolicy.Validate(); err != nil {
		return fmt.Errorf("default policy: %w", err)
	}
	if s.PercentChance != nil && !validChance(*s.PercentChance) {
		return fmt.Errorf("%w: percent chance %v outside [0,1]", ErrInvalidPreference, *s.PercentChance)
	}
	for identity, entry := range s.Preferences {
		if err := entry.Validate(); err != nil {
			return fmt.Errorf("preference %q: %w", identity, err)
		}
	}
	return nil
}

// CanReset reports whether the settings deviate from DefaultSettings.
func (s Settings) CanReset() bool {
	policy := s.Policy()
	for _, entry := range s.Preferences {
		if !entry.Equal(policy) {
			return true
		}
	}
	return len(s.IgnoreOverrides) > 0 ||
		s.Chance() != DefaultPercentChance ||
		!policy.Equal(UseRandomFromPool())
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	out := s
	if s.PercentChance != nil {
		chance := *s.PercentChance
		out.PercentChance = &chance
	}
	out.DefaultPolicy = s.DefaultPolicy.clone()
	if s.Preferences != nil {
		out.Preferences = make(map[string]PreferenceEntry, len(s.Preferences))
		for identity, entry := range s.Preferences {
			out.Preferences[identity] = entry.clone()
		}
	}
	out.IgnoreOverrides = slices.Clone(s.IgnoreOverrides)
	return out
}

func (s *Settings) setPreference(identity string, entry PreferenceEntry) {
	if s.Preferences == nil {
		s.Preferences = map[string]PreferenceEntry{}
	}
	s.Preferences[identity] = entry.clone()
}

func (s *Settings) setIgnore(identity string, ignore bool) {
	s.IgnoreOverrides = slices.DeleteFunc(s.IgnoreOverrides, func(name string) bool { return name == identity })
	if ignore {
		s.IgnoreOverrides = append(s.IgnoreOverrides, identity)
		slices.Sort(s.IgnoreOverrides)
	}
}

func (e PreferenceEntry) clone() PreferenceEntry {
	out := e
	if e.Chance != nil {
		chance := *e.Chance
		out.Chance = &chance
	}
	out.Pinned = slices.Clone(e.Pinned)
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
