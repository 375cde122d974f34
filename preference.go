package assign

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// PreferenceKind enumerates the PreferenceEntry variants.
type PreferenceKind int

const (
	// PreferenceGlobal defers to the persisted default policy. It is the zero
	// value so an absent entry behaves like an explicit one.
	PreferenceGlobal PreferenceKind = iota
	PreferenceSystemDefault
	PreferenceRandomFromPool
	PreferenceProbabilistic
	PreferencePinned
)

// Stored encodings.
const (
	RandomSavedString = "RandomSaved"
	PercentSaveString = "PercentSave"
	VanillaSaveString = "Vanilla"
	GlobalSaveString  = "Global"

	// PinnedSeparator joins pinned identities in the stored encoding.
	PinnedSeparator = "|"
)

// PreferenceEntry is one consumer preference.
type PreferenceEntry struct {
	Kind PreferenceKind
	// Chance is the assignment probability for PreferenceProbabilistic. Nil
	// means "use Settings.PercentChance".
	Chance *float64
	Pinned []string
}

// UseSystemDefault always defers to the host.
func UseSystemDefault() PreferenceEntry {
	return PreferenceEntry{Kind: PreferenceSystemDefault}
}

// UseRandomFromPool assigns a random compatible candidate.
func UseRandomFromPool() PreferenceEntry {
	return PreferenceEntry{Kind: PreferenceRandomFromPool}
}

// UseProbabilisticFallback assigns a random compatible candidate with
// probability p and defers otherwise.
func UseProbabilisticFallback(p float64) PreferenceEntry {
	return PreferenceEntry{Kind: PreferenceProbabilistic, Chance: &p}
}

// UseSettingsChance is UseProbabilisticFallback bound to Settings.PercentChance.
func UseSettingsChance() PreferenceEntry {
	return PreferenceEntry{Kind: PreferenceProbabilistic}
}

// UsePinnedSet restricts assignment to the named candidates.
func UsePinnedSet(identities ...string) PreferenceEntry {
	return PreferenceEntry{Kind: PreferencePinned, Pinned: slices.Clone(identities)}
}

// UseGlobalDefaultPolicy follows Settings.DefaultPolicy.
func UseGlobalDefaultPolicy() PreferenceEntry {
	return PreferenceEntry{Kind: PreferenceGlobal}
}

// Validate reports entries that cannot be stored.
func (e PreferenceEntry) Validate() error {
	switch e.Kind {
	case PreferenceGlobal, PreferenceSystemDefault, PreferenceRandomFromPool:
		return nil
	case PreferenceProbabilistic:
		if e.Chance != nil && !validChance(*e.Chance) {
			return fmt.Errorf("%w: chance %v outside [0,1]", ErrInvalidPreference, *e.Chance)
		}
		return nil
	case PreferencePinned:
		if len(e.Pinned) == 0 {
			return fmt.Errorf("%w: pinned set is empty", ErrInvalidPreference)
		}
		for _, identity := range e.Pinned {
			if err := validatePinnedIdentity(identity); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidPreference, e.Kind)
	}
}

// validChance reports whether p is a probability. NaN fails both bounds.
func validChance(p float64) bool {
	return p >= 0 && p <= 1
}

// validatePinnedIdentity rejects identities the stored encoding cannot carry
// as a pin: empty names, the separator, and the variant tokens, which would
// decode as a different variant.
func validatePinnedIdentity(identity string) error {
	switch {
	case identity == "", strings.Contains(identity, PinnedSeparator):
	case identity == GlobalSaveString, identity == VanillaSaveString,
		identity == RandomSavedString, identity == PercentSaveString:
	case strings.HasPrefix(identity, PercentSaveString+":"):
	default:
		return nil
	}
	return fmt.Errorf("%w: pinned identity %q", ErrInvalidPreference, identity)
}

// Equal reports whether two entries encode the same preference.
func (e PreferenceEntry) Equal(other PreferenceEntry) bool {
	return e.String() == other.String()
}

// String returns the stored encoding.
func (e PreferenceEntry) String() string {
	switch e.Kind {
	case PreferenceSystemDefault:
		return VanillaSaveString
	case PreferenceRandomFromPool:
		return RandomSavedString
	case PreferenceProbabilistic:
		if e.Chance == nil {
			return PercentSaveString
		}
		return PercentSaveString + ":" + strconv.FormatFloat(*e.Chance, 'f', -1, 64)
	case PreferencePinned:
		return strings.Join(e.Pinned, PinnedSeparator)
	default:
		return GlobalSaveString
	}
}

// ParsePreference decodes the stored encoding produced by String.
func ParsePreference(value string) (PreferenceEntry, error) {
	value = strings.TrimSpace(value)
	switch value {
	case "", GlobalSaveString:
		return UseGlobalDefaultPolicy(), nil
	case VanillaSaveString:
		return UseSystemDefault(), nil
	case RandomSavedString:
		return UseRandomFromPool(), nil
	case PercentSaveString:
		return UseSettingsChance(), nil
	}

	if raw, ok := strings.CutPrefix(value, PercentSaveString+":"); ok {
		p, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return PreferenceEntry{}, fmt.Errorf("%w: chance %q: %v", ErrInvalidPreference, raw, err)
		}
		entry := UseProbabilisticFallback(p)
		return entry, entry.Validate()
	}

	entry := UsePinnedSet(strings.Split(value, PinnedSeparator)...)
	return entry, entry.Validate()
}

// MarshalText implements encoding.TextMarshaler.
func (e PreferenceEntry) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *PreferenceEntry) UnmarshalText(text []byte) error {
	parsed, err := ParsePreference(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// toggle adds identity to a pinned set or removes it when present. Any other
// variant is replaced by a single pin. The boolean is false when the result
// is an empty set.
func (e PreferenceEntry) toggle(identity string) (PreferenceEntry, bool) {
	if e.Kind != PreferencePinned {
		return UsePinnedSet(identity), true
	}
	pinned := slices.Clone(e.Pinned)
	if slices.Contains(pinned, identity) {
		pinned = slices.DeleteFunc(pinned, func(name string) bool { return name == identity })
	} else {
		pinned = append(pinned, identity)
	}
	if len(pinned) == 0 {
		return PreferenceEntry{}, false
	}
	return UsePinnedSet(pinned...), true
}
