package push_service

import (
	"fleet-push-service/models"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTranslateIsTotal(t *testing.T) {
	types := append([]models.EventType{}, models.KnownEventTypes...)
	types = append(types, models.EventOther)

	for _, eventType := range types {
		notification := Translate(models.NotificationEvent{Type: eventType, DeviceID: "7"})
		assert.NotEmpty(t, notification.Title, eventType)
		assert.NotEmpty(t, notification.Body, eventType)
	}

	unknown := Translate(models.NotificationEvent{Type: ParseEventType("fuelDrop"), RawType: "fuelDrop", DeviceLabel: "Truck 9"})
	assert.Equal(t, "Notification", unknown.Title)
	assert.Equal(t, "Truck 9: fuelDrop", unknown.Body)
}

func TestTranslateCopy(t *testing.T) {
	tests := []struct {
		name  string
		event models.NotificationEvent
		title string
		body  string
	}{
		{
			name:  "online with label",
			event: models.NotificationEvent{Type: models.EventOnline, DeviceLabel: "Van 1"},
			title: "Device online",
			body:  "Van 1 is online.",
		},
		{
			name:  "label defaults to device id",
			event: models.NotificationEvent{Type: models.EventStopped, DeviceID: "42"},
			title: "Device stopped",
			body:  "Device 42 has stopped.",
		},
		{
			name: "geofence name",
			event: models.NotificationEvent{Type: models.EventGeofenceEnter, DeviceLabel: "Van 1",
				Attributes: map[string]interface{}{"geofenceName": "Depot"}},
			title: "Geofence entered",
			body:  "Van 1 entered Depot.",
		},
		{
			name:  "geofence name missing",
			event: models.NotificationEvent{Type: models.EventGeofenceExit, DeviceLabel: "Van 1"},
			title: "Geofence exited",
			body:  "Van 1 left a geofence.",
		},
		{
			name: "alarm name",
			event: models.NotificationEvent{Type: models.EventAlarm, DeviceLabel: "Van 1",
				Attributes: map[string]interface{}{"alarm": "sos"}},
			title: "Alarm: sos",
			body:  "Alarm triggered on Van 1.",
		},
		{
			name:  "alarm name missing",
			event: models.NotificationEvent{Type: models.EventAlarm, DeviceLabel: "Van 1"},
			title: "Alarm triggered",
			body:  "Alarm triggered on Van 1.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notification := Translate(tt.event)
			assert.Equal(t, tt.title, notification.Title)
			assert.Equal(t, tt.body, notification.Body)
		})
	}
}

func TestParseEventType(t *testing.T) {
	assert.Equal(t, models.EventOnline, ParseEventType("deviceOnline"))
	assert.Equal(t, models.EventOnline, ParseEventType("online"))
	assert.Equal(t, models.EventIgnitionOff, ParseEventType("ignitionOff"))
	assert.Equal(t, models.EventOther, ParseEventType("deviceOverspeed"))
	assert.Equal(t, models.EventOther, ParseEventType(""))
}

func TestEventData(t *testing.T) {
	data := EventData(models.NotificationEvent{Type: models.EventMoving, RawType: "deviceMoving", DeviceID: "5"})
	assert.Equal(t, map[string]string{"deviceId": "5", "eventType": "deviceMoving"}, data)
}
