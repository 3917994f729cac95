package push_service

import (
	"fleet-push-service/models"
	"fmt"
	"strings"
)

// traccarEventTypes maps Traccar's event type names onto notification event types.
var traccarEventTypes = map[string]models.EventType{
	"deviceOnline":  models.EventOnline,
	"deviceOffline": models.EventOffline,
	"deviceMoving":  models.EventMoving,
	"deviceStopped": models.EventStopped,
	"ignitionOn":    models.EventIgnitionOn,
	"ignitionOff":   models.EventIgnitionOff,
	"geofenceEnter": models.EventGeofenceEnter,
	"geofenceExit":  models.EventGeofenceExit,
	"alarm":         models.EventAlarm,
}

type copyFunc func(label string, attributes map[string]interface{}) models.Notification

// notificationCopy is the single source of notification text.
var notificationCopy = map[models.EventType]copyFunc{
	models.EventOnline: func(label string, _ map[string]interface{}) models.Notification {
		return models.Notification{Title: "Device online", Body: label + " is online."}
	},
	models.EventOffline: func(label string, _ map[string]interface{}) models.Notification {
		return models.Notification{Title: "Device offline", Body: label + " is offline."}
	},
	models.EventMoving: func(label string, _ map[string]interface{}) models.Notification {
		return models.Notification{Title: "Movement detected", Body: label + " started moving."}
	},
	models.EventStopped: func(label string, _ map[string]interface{}) models.Notification {
		return models.Notification{Title: "Device stopped", Body: label + " has stopped."}
	},
	models.EventIgnitionOn: func(label string, _ map[string]interface{}) models.Notification {
		return models.Notification{Title: "Ignition on", Body: "The ignition of " + label + " was turned on."}
	},
	models.EventIgnitionOff: func(label string, _ map[string]interface{}) models.Notification {
		return models.Notification{Title: "Ignition off", Body: "The ignition of " + label + " was turned off."}
	},
	models.EventGeofenceEnter: func(label string, attributes map[string]interface{}) models.Notification {
		return models.Notification{
			Title: "Geofence entered",
			Body:  fmt.Sprintf("%s entered %s.", label, attributeString(attributes, "geofenceName", "a geofence")),
		}
	},
	models.EventGeofenceExit: func(label string, attributes map[string]interface{}) models.Notification {
		return models.Notification{
			Title: "Geofence exited",
			Body:  fmt.Sprintf("%s left %s.", label, attributeString(attributes, "geofenceName", "a geofence")),
		}
	},
	models.EventAlarm: func(label string, attributes map[string]interface{}) models.Notification {
		title := "Alarm triggered"
		if alarm := attributeString(attributes, "alarm", ""); alarm != "" {
			title = "Alarm: " + alarm
		}
		return models.Notification{Title: title, Body: "Alarm triggered on " + label + "."}
	},
}

// ParseEventType accepts Traccar's names and the short names. Anything else is EventOther.
func ParseEventType(raw string) models.EventType {
	if t, ok := traccarEventTypes[raw]; ok {
		return t
	}
	t := models.EventType(raw)
	if _, ok := notificationCopy[t]; ok {
		return t
	}
	return models.EventOther
}

// DeviceLabel returns the device's human name, or "Device <id>" without one.
func DeviceLabel(name, deviceID string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return "Device " + deviceID
}

// Translate maps a tracking event to notification text. It is total: unknown
// types get a generic title and a body naming the raw type.
func Translate(event models.NotificationEvent) models.Notification {
	label := event.DeviceLabel
	if label == "" {
		label = DeviceLabel("", event.DeviceID)
	}
	if render, ok := notificationCopy[event.Type]; ok {
		return render(label, event.Attributes)
	}
	rawType := event.RawType
	if rawType == "" {
		rawType = string(event.Type)
	}
	return models.Notification{Title: "Notification", Body: label + ": " + rawType}
}

// EventData is the data payload delivered alongside an event notification.
func EventData(event models.NotificationEvent) map[string]string {
	eventType := event.RawType
	if eventType == "" {
		eventType = string(event.Type)
	}
	return map[string]string{
		"deviceId":  event.DeviceID,
		"eventType": eventType,
	}
}

func attributeString(attributes map[string]interface{}, key, fallback string) string {
	value, ok := attributes[key]
	if !ok || value == nil {
		return fallback
	}
	s := strings.TrimSpace(fmt.Sprint(value))
	if s == "" {
		return fallback
	}
	return s
}
