package activity

import (
	"strings"
	"time"
)

// Verbs emitted by the assignment service.
const (
	VerbPreferenceUpdated   = "preference.updated"
	VerbPreferenceCleared   = "preference.cleared"
	VerbOverrideUpdated     = "override.updated"
	VerbPolicyUpdated       = "policy.updated"
	VerbDefinitionsReloaded = "definitions.reloaded"
)

// Object types attached to events.
const (
	ObjectConsumer    = "consumer"
	ObjectSettings    = "settings"
	ObjectDefinitions = "definitions"
)

// ChangeInput describes the common fields of a settings change.
type ChangeInput struct {
	ActorID    string
	UserID     string
	TenantID   string
	ConsumerID string
	// Field names the settings field changed by policy updates.
	Field      string
	OldValue   any
	NewValue   any
	SnapshotID string
	Metadata   map[string]any
	OccurredAt time.Time
}

// PreferenceUpdated builds the event for a per-consumer preference change.
func PreferenceUpdated(input ChangeInput) Event {
	return buildChange(VerbPreferenceUpdated, ObjectConsumer, input.ConsumerID, input)
}

// OverrideUpdated builds the event for an ignore override toggle.
func OverrideUpdated(input ChangeInput) Event {
	return buildChange(VerbOverrideUpdated, ObjectConsumer, input.ConsumerID, input)
}

// PolicyUpdated builds the event for a global settings change.
func PolicyUpdated(input ChangeInput) Event {
	return buildChange(VerbPolicyUpdated, ObjectSettings, input.Field, input)
}

// PreferencesCleared builds the event for a full settings reset.
func PreferencesCleared(input ChangeInput) Event {
	return buildChange(VerbPreferenceCleared, ObjectSettings, input.SnapshotID, input)
}

// DefinitionsReloaded builds the event emitted after a parse pass.
func DefinitionsReloaded(dir string, loaded, rejected, pass int) Event {
	return Event{
		Verb:       VerbDefinitionsReloaded,
		ObjectType: ObjectDefinitions,
		ObjectID:   fallback(dir, ObjectDefinitions),
		Metadata: map[string]any{
			"loaded":   loaded,
			"rejected": rejected,
			"pass":     pass,
		},
	}
}

func buildChange(verb, objectType, objectID string, input ChangeInput) Event {
	metadata := cloneMap(input.Metadata)
	set := func(key string, value any) {
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata[key] = value
	}
	if input.ConsumerID != "" {
		set("consumer", input.ConsumerID)
	}
	if input.Field != "" {
		set("field", input.Field)
	}
	if input.SnapshotID != "" {
		set("snapshot_id", input.SnapshotID)
	}
	if input.OldValue != nil {
		set("old_value", input.OldValue)
	}
	if input.NewValue != nil {
		set("new_value", input.NewValue)
	}

	id := strings.TrimSpace(objectID)
	if id == "" {
		id = strings.TrimSpace(input.SnapshotID)
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: objectType,
		ObjectID:   fallback(id, objectType),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func fallback(value, def string) string {
	if value = strings.TrimSpace(value); value != "" {
		return value
	}
	return def
}
