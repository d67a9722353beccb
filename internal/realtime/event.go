package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	Insert EventType = "INSERT"
	Update EventType = "UPDATE"
	Delete EventType = "DELETE"
)

// Event is a row change notification. Record carries the new row for inserts
// and updates, OldRecord the previous row for updates and deletes.
type Event struct {
	ID              string         `json:"id"`
	Table           string         `json:"table"`
	Type            EventType      `json:"type"`
	Record          map[string]any `json:"record,omitempty"`
	OldRecord       map[string]any `json:"old_record,omitempty"`
	CommitTimestamp time.Time      `json:"commit_timestamp"`
}

// NewEvent builds an event from model values using their JSON field names.
// Either row may be nil.
func NewEvent(table string, typ EventType, record, old any) (Event, error) {
	ev := Event{
		ID:              uuid.New().String(),
		Table:           table,
		Type:            typ,
		CommitTimestamp: time.Now().UTC(),
	}

	var err error
	if record != nil {
		ev.Record, err = toRecord(record)
		if err != nil {
			return Event{}, fmt.Errorf("failed to encode record: %w", err)
		}
	}
	if old != nil {
		ev.OldRecord, err = toRecord(old)
		if err != nil {
			return Event{}, fmt.Errorf("failed to encode old record: %w", err)
		}
	}
	return ev, nil
}

// Field returns the string value of key from the new row, falling back to the
// old row so deletes can still be matched.
func (e Event) Field(key string) string {
	if v, ok := e.Record[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	if v, ok := e.OldRecord[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

func toRecord(v any) (map[string]any, error) {
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	err = json.Unmarshal(data, &m)
	if err != nil {
		return nil, err
	}
	return m, nil
}
