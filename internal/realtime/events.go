package realtime

import (
	"encoding/json"
	"fmt"
)

// EventType is the closed discriminator for realtime frames, inbound and
// outbound alike.
type EventType string

const (
	// chat surface
	EventGoesOnline  EventType = "goes_online"
	EventGoesOffline EventType = "goes_offline"
	EventTypingStart EventType = "typing_start"
	EventTypingStop  EventType = "typing_stop"
	EventEnterChat   EventType = "enter_chat"
	EventExitChat    EventType = "exit_chat"
	EventSentMessage EventType = "sent_message"
	EventCreatedChat EventType = "created_chat"

	// feed surface
	EventNewFeed     EventType = "new_feed"
	EventDeletedFeed EventType = "deleted_feed"
	EventEngagement  EventType = "engagement"

	// settings surface
	EventStatsUpdated EventType = "stats_updated"
)

func (t EventType) Valid() bool {
	switch t {
	case EventGoesOnline, EventGoesOffline, EventTypingStart, EventTypingStop,
		EventEnterChat, EventExitChat, EventSentMessage, EventCreatedChat,
		EventNewFeed, EventDeletedFeed, EventEngagement, EventStatsUpdated:
		return true
	}
	return false
}

// Event is a decoded wire envelope: {"type": ..., ...event fields}.
type Event struct {
	Type   EventType
	Fields map[string]interface{}
}

// MarshalJSON flattens the type discriminator back into the payload.
func (e Event) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(e.Fields)+1)
	for k, v := range e.Fields {
		out[k] = v
	}
	out["type"] = string(e.Type)
	return json.Marshal(out)
}

// ProtocolError is answered with an error frame; it never terminates the
// connection.
type ProtocolError struct {
	Detail string
}

func (e *ProtocolError) Error() string { return e.Detail }

// ParseEvent validates the envelope against the closed event-type enum.
func ParseEvent(data []byte) (Event, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Event{}, &ProtocolError{Detail: "Malformed event payload."}
	}
	typeVal, ok := raw["type"]
	if !ok {
		return Event{}, &ProtocolError{Detail: "Missing event type."}
	}
	typeStr, _ := typeVal.(string)
	et := EventType(typeStr)
	if !et.Valid() {
		return Event{}, &ProtocolError{Detail: fmt.Sprintf("Invalid event type: '%v'.", typeVal)}
	}
	delete(raw, "type")
	return Event{Type: et, Fields: raw}, nil
}

// ErrorFrame builds the structured error frame sent back over the socket.
func ErrorFrame(detail string) []byte {
	data, _ := json.Marshal(map[string]string{"detail": detail})
	return data
}
