package usersink_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-assign/pkg/activity"
	"github.com/goliatone/go-assign/pkg/activity/usersink"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	records []usertypes.ActivityRecord
	err     error
}

func (s *recordingSink) Log(_ context.Context, record usertypes.ActivityRecord) error {
	s.records = append(s.records, record)
	return s.err
}

func TestHookNotifyMapsEvent(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	actorID := uuid.New()
	tenantID := uuid.New()

	event := activity.PreferenceUpdated(activity.ChangeInput{
		ActorID:    actorID.String(),
		TenantID:   tenantID.String(),
		ConsumerID: "faction-outlanders",
		OldValue:   "Global",
		NewValue:   "Vanilla",
		OccurredAt: now,
	})
	event.Channel = "assign"

	require.NoError(t, hook.Notify(context.Background(), event))
	require.Len(t, sink.records, 1)

	record := sink.records[0]
	assert.Equal(t, actorID, record.ActorID)
	assert.Equal(t, uuid.Nil, record.UserID)
	assert.Equal(t, tenantID, record.TenantID)
	assert.Equal(t, activity.VerbPreferenceUpdated, record.Verb)
	assert.Equal(t, activity.ObjectConsumer, record.ObjectType)
	assert.Equal(t, "faction-outlanders", record.ObjectID)
	assert.Equal(t, "assign", record.Channel)
	assert.Equal(t, now, record.OccurredAt)
	assert.Equal(t, "Vanilla", record.Data["new_value"])
	assert.NotContains(t, record.Data, "user")
}

func TestHookNotifyKeepsNonUUIDActor(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	require.NoError(t, hook.Notify(context.Background(), activity.Event{
		Verb:       activity.VerbPolicyUpdated,
		ActorID:    "cli",
		ObjectType: activity.ObjectSettings,
		ObjectID:   "default_policy",
	}))
	require.Len(t, sink.records, 1)
	assert.Equal(t, uuid.Nil, sink.records[0].ActorID)
	assert.Equal(t, "cli", sink.records[0].Data["actor"])
	assert.False(t, sink.records[0].OccurredAt.IsZero())
}

func TestHookNotifySkipsInvalidEvents(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	require.NoError(t, hook.Notify(context.Background(), activity.Event{}))
	assert.Empty(t, sink.records)
}

func TestHookWithoutSinkIsNoop(t *testing.T) {
	assert.NoError(t, usersink.Hook{}.Notify(context.Background(), activity.Event{Verb: "x", ObjectType: "y", ObjectID: "z"}))
}
