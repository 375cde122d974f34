package assign

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

func TestParsePreference(t *testing.T) {
	half := 0.5
	cases := []struct {
		input string
		want  PreferenceEntry
	}{
		{"", UseGlobalDefaultPolicy()},
		{"Global", UseGlobalDefaultPolicy()},
		{"Vanilla", UseSystemDefault()},
		{"RandomSaved", UseRandomFromPool()},
		{"PercentSave", UseSettingsChance()},
		{"PercentSave:0.5", PreferenceEntry{Kind: PreferenceProbabilistic, Chance: &half}},
		{"Raiders", UsePinnedSet("Raiders")},
		{" Raiders|Nomads ", UsePinnedSet("Raiders", "Nomads")},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParsePreference(tc.input)
			if err != nil {
				t.Fatalf("parse %q: %v", tc.input, err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("entry mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParsePreferenceRejectsInvalid(t *testing.T) {
	for _, input := range []string{"PercentSave:abc", "PercentSave:1.5", "PercentSave:NaN", "Raiders||Nomads", "Raiders|Vanilla"} {
		if _, err := ParsePreference(input); !errors.Is(err, ErrInvalidPreference) {
			t.Fatalf("expected ErrInvalidPreference for %q, got %v", input, err)
		}
	}
}

func TestPinnedSetRejectsVariantTokens(t *testing.T) {
	for _, identity := range []string{"Vanilla", "Global", "RandomSaved", "PercentSave", "PercentSave:0.5"} {
		entry := UsePinnedSet(identity)
		if err := entry.Validate(); !errors.Is(err, ErrInvalidPreference) {
			t.Fatalf("pin %q: expected ErrInvalidPreference, got %v", identity, err)
		}
		if _, err := entry.MarshalText(); err != nil {
			t.Fatalf("marshal %q: %v", identity, err)
		}
	}

	entry := UsePinnedSet("Vanillas")
	parsed, err := ParsePreference(entry.String())
	if err != nil {
		t.Fatalf("parse %q: %v", entry, err)
	}
	if parsed.Kind != PreferencePinned || !parsed.Equal(entry) {
		t.Fatalf("expected pinned round trip, got %+v", parsed)
	}
}

func TestPreferenceStringRoundTrip(t *testing.T) {
	entries := []PreferenceEntry{
		UseGlobalDefaultPolicy(),
		UseSystemDefault(),
		UseRandomFromPool(),
		UseSettingsChance(),
		UseProbabilisticFallback(0.25),
		UsePinnedSet("A", "B", "C"),
	}
	for _, entry := range entries {
		parsed, err := ParsePreference(entry.String())
		if err != nil {
			t.Fatalf("parse %q: %v", entry, err)
		}
		if !parsed.Equal(entry) {
			t.Fatalf("round trip changed %q into %q", entry, parsed)
		}
	}
}

func TestPreferenceYAMLEncoding(t *testing.T) {
	settings := Settings{
		DefaultPolicy: UseProbabilisticFallback(0.3),
		Preferences: map[string]PreferenceEntry{
			"pirates": UsePinnedSet("Raiders", "Nomads"),
			"traders": UseSystemDefault(),
		},
	}
	data, err := yaml.Marshal(settings)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := "default_policy: PercentSave:0.3\npreferences:\n    pirates: Raiders|Nomads\n    traders: Vanilla\n"
	if diff := cmp.Diff(want, string(data)); diff != "" {
		t.Fatalf("yaml mismatch (-want +got):\n%s", diff)
	}

	var decoded Settings
	if err := yaml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(settings, decoded); diff != "" {
		t.Fatalf("decoded mismatch (-want +got):\n%s", diff)
	}
}

func TestToggle(t *testing.T) {
	entry, ok := UseRandomFromPool().toggle("A")
	if !ok || !entry.Equal(UsePinnedSet("A")) {
		t.Fatalf("toggling a non-pinned entry should pin, got %q", entry)
	}
	entry, _ = entry.toggle("B")
	if !entry.Equal(UsePinnedSet("A", "B")) {
		t.Fatalf("expected A|B, got %q", entry)
	}
	entry, _ = entry.toggle("A")
	if !entry.Equal(UsePinnedSet("B")) {
		t.Fatalf("expected B, got %q", entry)
	}
	if _, ok := entry.toggle("B"); ok {
		t.Fatalf("removing the last pin should report an empty set")
	}
}
