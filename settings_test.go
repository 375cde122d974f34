package assign

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultSettings(t *testing.T) {
	settings := DefaultSettings()
	if !settings.Policy().Equal(UseRandomFromPool()) {
		t.Fatalf("expected RandomSaved default policy, got %q", settings.Policy())
	}
	if settings.Chance() != DefaultPercentChance {
		t.Fatalf("expected default chance %v, got %v", DefaultPercentChance, settings.Chance())
	}
	if settings.CanReset() {
		t.Fatalf("defaults should not be resettable")
	}
	if !(Settings{}).Policy().Equal(UseRandomFromPool()) {
		t.Fatalf("an unset policy should read as RandomSaved")
	}
}

func TestCanReset(t *testing.T) {
	chance := 0.9
	cases := map[string]Settings{
		"preference": {Preferences: map[string]PreferenceEntry{"a": UseSystemDefault()}},
		"override":   {IgnoreOverrides: []string{"a"}},
		"chance":     {PercentChance: &chance},
		"policy":     {DefaultPolicy: UseSystemDefault()},
	}
	for name, settings := range cases {
		if !settings.CanReset() {
			t.Fatalf("%s: expected CanReset", name)
		}
	}

	same := Settings{Preferences: map[string]PreferenceEntry{"a": UseRandomFromPool()}}
	if same.CanReset() {
		t.Fatalf("entries equal to the default policy should not count")
	}
}

func TestSettingsValidate(t *testing.T) {
	bad := 2.0
	nan := math.NaN()
	cases := map[string]Settings{
		"chance":     {PercentChance: &bad},
		"nan chance": {PercentChance: &nan},
		"nan entry":  {Preferences: map[string]PreferenceEntry{"a": UseProbabilisticFallback(nan)}},
		"token pin":  {Preferences: map[string]PreferenceEntry{"a": UsePinnedSet("Vanilla")}},
		"policy":     {DefaultPolicy: PreferenceEntry{Kind: PreferencePinned}},
		"preference": {Preferences: map[string]PreferenceEntry{"a": UseProbabilisticFallback(-1)}},
	}
	for name, settings := range cases {
		if err := settings.Validate(); !errors.Is(err, ErrInvalidPreference) {
			t.Fatalf("%s: expected ErrInvalidPreference, got %v", name, err)
		}
	}
	if err := DefaultSettings().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestSettingsCloneIsDeep(t *testing.T) {
	chance := 0.2
	original := Settings{
		DefaultPolicy:   UseProbabilisticFallback(0.4),
		PercentChance:   &chance,
		Preferences:     map[string]PreferenceEntry{"a": UsePinnedSet("X", "Y")},
		IgnoreOverrides: []string{"b"},
	}
	clone := original.Clone()
	if diff := cmp.Diff(original, clone); diff != "" {
		t.Fatalf("clone differs (-want +got):\n%s", diff)
	}

	*clone.PercentChance = 0.8
	*clone.DefaultPolicy.Chance = 0.9
	clone.Preferences["a"].Pinned[0] = "Z"
	clone.IgnoreOverrides[0] = "c"
	clone.Preferences["new"] = UseSystemDefault()

	if *original.PercentChance != 0.2 || *original.DefaultPolicy.Chance != 0.4 {
		t.Fatalf("clone shares chance pointers")
	}
	if original.Preferences["a"].Pinned[0] != "X" || original.IgnoreOverrides[0] != "b" {
		t.Fatalf("clone shares slices")
	}
	if _, ok := original.Preferences["new"]; ok {
		t.Fatalf("clone shares the preference map")
	}
}

func TestSetIgnoreKeepsSortedSet(t *testing.T) {
	var settings Settings
	settings.setIgnore("c", true)
	settings.setIgnore("a", true)
	settings.setIgnore("c", true)
	settings.setIgnore("b", true)
	settings.setIgnore("a", false)
	if diff := cmp.Diff([]string{"b", "c"}, settings.IgnoreOverrides); diff != "" {
		t.Fatalf("ignore set mismatch (-want +got):\n%s", diff)
	}
}
