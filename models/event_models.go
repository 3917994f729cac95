package models

import (
	"encoding/json"
	"strconv"
)

// TraccarDevice device section of a Traccar event notification
type TraccarDevice struct {
	ID         int64                  `json:"id"`
	Name       string                 `json:"name"`
	UniqueID   string                 `json:"uniqueId,omitempty"`
	Status     string                 `json:"status,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// TraccarEvent event section of a Traccar event notification
type TraccarEvent struct {
	ID         int64                  `json:"id"`
	Type       string                 `json:"type"`
	DeviceID   int64                  `json:"deviceId"`
	EventTime  string                 `json:"eventTime,omitempty"`
	PositionID int64                  `json:"positionId,omitempty"`
	GeofenceID int64                  `json:"geofenceId,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// TraccarPayload body posted by Traccar's event forwarding
type TraccarPayload struct {
	Event  *TraccarEvent  `json:"event"`
	Device *TraccarDevice `json:"device"`
}

// DeviceKey renders a device id the way it is carried in push data payloads.
func DeviceKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// SocketMessage one frame of Traccar's /api/socket stream. Every section is optional.
type SocketMessage struct {
	Devices   []TraccarDevice   `json:"devices,omitempty"`
	Events    []TraccarEvent    `json:"events,omitempty"`
	Positions []json.RawMessage `json:"positions,omitempty"`
}

// EventType 跟踪事件类型
type EventType string

const (
	EventOnline        EventType = "online"
	EventOffline       EventType = "offline"
	EventMoving        EventType = "moving"
	EventStopped       EventType = "stopped"
	EventIgnitionOn    EventType = "ignitionOn"
	EventIgnitionOff   EventType = "ignitionOff"
	EventGeofenceEnter EventType = "geofenceEnter"
	EventGeofenceExit  EventType = "geofenceExit"
	EventAlarm         EventType = "alarm"
	EventOther         EventType = "other"
)

// KnownEventTypes every event type with dedicated notification copy
var KnownEventTypes = []EventType{
	EventOnline, EventOffline, EventMoving, EventStopped,
	EventIgnitionOn, EventIgnitionOff, EventGeofenceEnter, EventGeofenceExit, EventAlarm,
}

// NotificationEvent tracking event reduced to what notification copy needs
type NotificationEvent struct {
	Type        EventType              `json:"type"`
	RawType     string                 `json:"rawType"`
	DeviceID    string                 `json:"deviceId"`
	DeviceLabel string                 `json:"deviceLabel"`
	Attributes  map[string]interface{} `json:"attributes,omitempty"`
}
