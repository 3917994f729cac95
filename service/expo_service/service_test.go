package expo_service

import (
	"context"
	"encoding/json"
	"fleet-push-service/models"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	tokenOK       = "ExponentPushToken[aaaaaaaaaaaaaa]"
	tokenGone     = "ExponentPushToken[bbbbbbbbbbbbbb]"
	tokenRejected = "ExpoPushToken[cccccccccccccc]"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewService(&Config{
		AccessToken: "secret",
		Timeout:     time.Second,
		MaxRetries:  2,
		BaseDelay:   time.Millisecond,
		PushURL:     server.URL,
		Hints:       models.DefaultPlatformHints(),
	}, nil)
}

func ticketsFor(messages []*PushMessage) PushResponse {
	var response PushResponse
	for i, message := range messages {
		switch message.To {
		case tokenGone:
			response.Data = append(response.Data, PushTicket{
				Status:  "error",
				Message: "\"" + message.To + "\" is not a registered push notification recipient",
				Details: &TicketDetails{Error: TicketErrorDeviceNotRegistered},
			})
		case tokenRejected:
			response.Data = append(response.Data, PushTicket{
				Status:  "error",
				Message: "\"" + message.To + "\" is not a valid Expo push token",
			})
		default:
			response.Data = append(response.Data, PushTicket{Status: "ok", ID: string(rune('a' + i))})
		}
	}
	return response
}

func TestSendMulticastMapsTickets(t *testing.T) {
	var received []*PushMessage
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_ = json.NewEncoder(w).Encode(ticketsFor(received))
	})

	tokens := []string{tokenOK, "fcm-token-not-expo", tokenGone, tokenRejected}
	data := map[string]string{"deviceId": "7"}
	outcomes, err := s.SendMulticast(context.Background(), tokens, models.Notification{Title: "Alarm: sos", Body: "Alarm triggered on Van."}, data)
	require.NoError(t, err)
	require.Len(t, outcomes, 4)

	assert.True(t, outcomes[0].Success)
	assert.Equal(t, models.DeliveryErrorInvalidToken, outcomes[1].ErrorKind)
	assert.Equal(t, models.DeliveryErrorNotRegistered, outcomes[2].ErrorKind)
	assert.Equal(t, models.DeliveryErrorInvalidToken, outcomes[3].ErrorKind)

	// the malformed token never reaches the API
	require.Len(t, received, 3)
	assert.Equal(t, "high_importance_channel", received[0].ChannelID)
	assert.Equal(t, "high", received[0].Priority)
	assert.Equal(t, data, received[0].Data)
	require.NotNil(t, received[0].Badge)
	assert.Equal(t, 1, *received[0].Badge)
}

func TestSendMulticastRetriesServerErrors(t *testing.T) {
	var calls int32
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		var messages []*PushMessage
		_ = json.NewDecoder(r.Body).Decode(&messages)
		_ = json.NewEncoder(w).Encode(ticketsFor(messages))
	})

	outcomes, err := s.SendMulticast(context.Background(), []string{tokenOK}, models.Notification{Title: "t", Body: "b"}, nil)
	require.NoError(t, err)
	assert.True(t, outcomes[0].Success)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestSendMulticastDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := s.SendMulticast(context.Background(), []string{tokenOK}, models.Notification{Title: "t", Body: "b"}, nil)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSendMulticastTicketCountMismatch(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(PushResponse{Data: []PushTicket{}})
	})

	_, err := s.SendMulticast(context.Background(), []string{tokenOK}, models.Notification{Title: "t", Body: "b"}, nil)
	assert.ErrorContains(t, err, "0 tickets for 1 messages")
}

func TestValidateToken(t *testing.T) {
	assert.True(t, ValidateToken(tokenOK))
	assert.True(t, ValidateToken(tokenRejected))
	assert.False(t, ValidateToken("ExponentPushToken[unterminated"))
	assert.False(t, ValidateToken("dGVzdC1mY20tdG9rZW4"))
	assert.Equal(t, "expo", NewService(nil, nil).GetName())
}
