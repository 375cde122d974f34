package activity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEventTrimsClonesAndDefaults(t *testing.T) {
	meta := map[string]any{"k": "v"}
	evt := Event{
		Verb:       " preference.updated ",
		ActorID:    " actor ",
		ObjectType: " consumer ",
		ObjectID:   " faction-1 ",
		Channel:    " assign ",
		Metadata:   meta,
	}

	got := NormalizeEvent(evt)

	assert.Equal(t, "preference.updated", got.Verb)
	assert.Equal(t, "actor", got.ActorID)
	assert.Equal(t, "consumer", got.ObjectType)
	assert.Equal(t, "faction-1", got.ObjectID)
	assert.Equal(t, "assign", got.Channel)
	assert.False(t, got.OccurredAt.IsZero())

	got.Metadata["k"] = "changed"
	assert.Equal(t, "v", meta["k"], "input metadata must stay untouched")
}

func TestHooksNotifyDropsInvalidEvents(t *testing.T) {
	capture := &CaptureHook{}
	require.NoError(t, Hooks{capture}.Notify(context.Background(), Event{}))
	assert.Empty(t, capture.Events())
}

func TestHooksNotifyFanOutAndJoinErrors(t *testing.T) {
	capture := &CaptureHook{}
	boom1 := errors.New("boom1")
	boom2 := errors.New("boom2")
	var ctxSeen bool
	hooks := Hooks{
		HookFunc(func(ctx context.Context, _ Event) error {
			ctxSeen = ctx != nil
			return nil
		}),
		capture,
		HookFunc(func(context.Context, Event) error { return boom1 }),
		nil,
		HookFunc(func(context.Context, Event) error { return boom2 }),
	}

	err := hooks.Notify(nil, Event{Verb: VerbOverrideUpdated, ObjectType: ObjectConsumer, ObjectID: "1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom1)
	assert.ErrorIs(t, err, boom2)
	assert.True(t, ctxSeen)
	assert.Len(t, capture.Events(), 1)
}

func TestEmitterDisabledAndEnabled(t *testing.T) {
	capture := &CaptureHook{}
	event := Event{Verb: VerbPolicyUpdated, ObjectType: ObjectSettings, ObjectID: "percent_chance"}

	disabled := NewEmitter(Hooks{capture}, Config{Enabled: false})
	assert.False(t, disabled.Enabled())
	require.NoError(t, disabled.Emit(context.Background(), event))
	assert.Empty(t, capture.Events())

	enabled := NewEmitter(Hooks{capture}, Config{Enabled: true})
	assert.True(t, enabled.Enabled())
	require.NoError(t, enabled.Emit(context.Background(), event))
	require.Len(t, capture.Events(), 1)
	assert.Equal(t, DefaultChannel, capture.Events()[0].Channel)
}

func TestEmitterPreservesExplicitChannel(t *testing.T) {
	capture := &CaptureHook{}
	emitter := NewEmitter(Hooks{capture}, Config{Enabled: true, Channel: "default"})
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, emitter.Emit(context.Background(), Event{
		Verb:       VerbPolicyUpdated,
		ObjectType: ObjectSettings,
		ObjectID:   "default_policy",
		Channel:    "custom",
		OccurredAt: at,
	}))
	events := capture.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "custom", events[0].Channel)
	assert.Equal(t, at, events[0].OccurredAt)
}

func TestNilEmitterIsDisabled(t *testing.T) {
	var emitter *Emitter
	assert.False(t, emitter.Enabled())
	assert.NoError(t, emitter.Emit(context.Background(), Event{Verb: "x", ObjectType: "y", ObjectID: "z"}))
}

func TestPreferenceUpdatedCarriesChange(t *testing.T) {
	meta := map[string]any{"source": "cli"}
	event := PreferenceUpdated(ChangeInput{
		ActorID:    " actor ",
		ConsumerID: "faction-1",
		OldValue:   "Global",
		NewValue:   "RandomSaved",
		SnapshotID: "snap-1",
		Metadata:   meta,
	})

	assert.Equal(t, VerbPreferenceUpdated, event.Verb)
	assert.Equal(t, ObjectConsumer, event.ObjectType)
	assert.Equal(t, "faction-1", event.ObjectID)
	assert.Equal(t, "actor", event.ActorID)
	assert.Equal(t, "Global", event.Metadata["old_value"])
	assert.Equal(t, "RandomSaved", event.Metadata["new_value"])
	assert.Equal(t, "snap-1", event.Metadata["snapshot_id"])
	assert.Equal(t, "cli", event.Metadata["source"])
	_, leaked := meta["old_value"]
	assert.False(t, leaked, "input metadata must stay untouched")
}

func TestPolicyAndClearedEventsFallBackToObjectType(t *testing.T) {
	assert.Equal(t, "percent_chance", PolicyUpdated(ChangeInput{Field: "percent_chance"}).ObjectID)
	assert.Equal(t, ObjectSettings, PolicyUpdated(ChangeInput{}).ObjectID)
	assert.Equal(t, "snap-9", PreferencesCleared(ChangeInput{SnapshotID: "snap-9"}).ObjectID)
	assert.Equal(t, ObjectSettings, PreferencesCleared(ChangeInput{}).ObjectID)
}

func TestDefinitionsReloadedEvent(t *testing.T) {
	event := DefinitionsReloaded("/defs", 3, 1, 2)
	assert.Equal(t, VerbDefinitionsReloaded, event.Verb)
	assert.Equal(t, "/defs", event.ObjectID)
	assert.Equal(t, map[string]any{"loaded": 3, "rejected": 1, "pass": 2}, event.Metadata)
	assert.Equal(t, ObjectDefinitions, DefinitionsReloaded("", 0, 0, 1).ObjectID)
}

func TestActorRoundTripsThroughContext(t *testing.T) {
	ctx := WithActor(context.Background(), "admin")
	assert.Equal(t, "admin", ActorFromContext(ctx))
	assert.Empty(t, ActorFromContext(context.Background()))
}
