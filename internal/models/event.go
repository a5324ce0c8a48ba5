package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType is an activity event kind reported by the remote service.
type EventType string

// Canonical event types.
const (
	EventAdded       EventType = "added"
	EventUpdated     EventType = "updated"
	EventDeleted     EventType = "deleted"
	EventCompleted   EventType = "completed"
	EventUncompleted EventType = "uncompleted"
	EventArchived    EventType = "archived"
	EventUnarchived  EventType = "unarchived"
	EventShared      EventType = "shared"
	EventLeft        EventType = "left"
)

// ObjectType values appearing in activity events.
const (
	ObjectItem    = "item"
	ObjectProject = "project"
	ObjectSection = "section"
	ObjectLabel   = "label"
)

// Event is one immutable activity record.
type Event struct {
	ID              string         `json:"id"`
	EventDate       time.Time      `json:"event_date"`
	EventType       EventType      `json:"event_type"`
	ObjectType      string         `json:"object_type"`
	ObjectID        string         `json:"object_id"`
	ExtraData       map[string]any `json:"extra_data,omitempty"`
	InitiatorID     string         `json:"initiator_id,omitempty"`
	ParentItemID    string         `json:"parent_item_id,omitempty"`
	ParentProjectID string         `json:"parent_project_id,omitempty"`
}

// flexID is an id that arrives as a JSON string or number depending on the
// API version, and as null for absent parents.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// eventWire is the JSON shape the activity endpoint returns; event_date is
// one of the accepted datetime layouts.
type eventWire struct {
	ID              flexID         `json:"id"`
	EventDate       string         `json:"event_date"`
	EventType       EventType      `json:"event_type"`
	ObjectType      string         `json:"object_type"`
	ObjectID        flexID         `json:"object_id"`
	ExtraData       map[string]any `json:"extra_data"`
	InitiatorID     flexID         `json:"initiator_id"`
	ParentItemID    flexID         `json:"parent_item_id"`
	ParentProjectID flexID         `json:"parent_project_id"`
}

// UnmarshalJSON decodes the wire form, parsing the event timestamp.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w eventWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	ts, err := ParseDatetime(w.EventDate)
	if err != nil {
		return fmt.Errorf("event %s: parse event_date %q: %w", w.ID, w.EventDate, err)
	}
	*e = Event{
		ID:              string(w.ID),
		EventDate:       ts,
		EventType:       w.EventType,
		ObjectType:      w.ObjectType,
		ObjectID:        string(w.ObjectID),
		ExtraData:       w.ExtraData,
		InitiatorID:     string(w.InitiatorID),
		ParentItemID:    string(w.ParentItemID),
		ParentProjectID: string(w.ParentProjectID),
	}
	return nil
}

// MarshalJSON emits the wire form with the timestamp in the canonical layout.
func (e Event) MarshalJSON() ([]byte, error) {
	w := struct {
		ID              string         `json:"id"`
		EventDate       string         `json:"event_date"`
		EventType       EventType      `json:"event_type"`
		ObjectType      string         `json:"object_type"`
		ObjectID        string         `json:"object_id"`
		ExtraData       map[string]any `json:"extra_data,omitempty"`
		InitiatorID     string         `json:"initiator_id,omitempty"`
		ParentItemID    string         `json:"parent_item_id,omitempty"`
		ParentProjectID string         `json:"parent_project_id,omitempty"`
	}{
		ID:              e.ID,
		EventDate:       e.EventDate.Format(DatetimeFormats[0]),
		EventType:       e.EventType,
		ObjectType:      e.ObjectType,
		ObjectID:        e.ObjectID,
		ExtraData:       e.ExtraData,
		InitiatorID:     e.InitiatorID,
		ParentItemID:    e.ParentItemID,
		ParentProjectID: e.ParentProjectID,
	}
	return json.Marshal(w)
}

// ExtraString returns extra_data[key] when it is a non-null string.
func (e *Event) ExtraString(key string) (string, bool) {
	v, ok := e.ExtraData[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
