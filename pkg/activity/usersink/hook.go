// Package usersink forwards assignment events to a go-users ActivitySink.
package usersink

import (
	"context"
	"maps"
	"strings"

	"github.com/goliatone/go-assign/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Hook adapts activity events to a go-users ActivitySink.
type Hook struct {
	Sink usertypes.ActivitySink
}

// Notify maps the event into an ActivityRecord. Identifiers that are not
// UUIDs are recorded as uuid.Nil and kept verbatim in the record data.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}
	normalized := activity.NormalizeEvent(event)
	if !normalized.Valid() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	data := maps.Clone(normalized.Metadata)
	record := usertypes.ActivityRecord{
		ActorID:    parseUUID(normalized.ActorID, "actor", &data),
		UserID:     parseUUID(normalized.UserID, "user", &data),
		TenantID:   parseUUID(normalized.TenantID, "tenant", &data),
		Verb:       normalized.Verb,
		ObjectType: normalized.ObjectType,
		ObjectID:   normalized.ObjectID,
		Channel:    normalized.Channel,
		OccurredAt: normalized.OccurredAt,
	}
	record.Data = data
	return h.Sink.Log(ctx, record)
}

func parseUUID(input, field string, data *map[string]any) uuid.UUID {
	value := strings.TrimSpace(input)
	if value == "" {
		return uuid.Nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		if *data == nil {
			*data = map[string]any{}
		}
		(*data)[field] = value
		return uuid.Nil
	}
	return id
}
