package expo_service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// Expo Push API endpoint
	PushURL = "https://exp.host/--/api/v2/push/send"

	// Max messages per request
	MaxMessagesPerRequest = 100

	// Default timeout
	DefaultTimeout = 30 * time.Second
)

// Client represents the Expo push notification client
type Client struct {
	httpClient  *http.Client
	pushURL     string
	accessToken string // Expo Access Token
}

// NewClientWithConfig creates a new Expo push notification client with full config
func NewClientWithConfig(accessToken string, timeout time.Duration, pushURL string) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if pushURL == "" {
		pushURL = PushURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		pushURL:     pushURL,
		accessToken: accessToken,
	}
}

// PushMessage represents a push notification message
type PushMessage struct {
	To        string            `json:"to"`                  // Push token
	Title     string            `json:"title,omitempty"`     // Notification title
	Body      string            `json:"body"`                // Notification body
	Data      map[string]string `json:"data,omitempty"`      // Custom data
	Sound     string            `json:"sound,omitempty"`     // Sound to play
	Priority  string            `json:"priority,omitempty"`  // normal or high
	Badge     *int              `json:"badge,omitempty"`     // iOS badge number
	ChannelID string            `json:"channelId,omitempty"` // Android channel ID
}

// PushTicket represents the response from sending a push notification
type PushTicket struct {
	Status  string         `json:"status"`            // "ok" or "error"
	ID      string         `json:"id,omitempty"`      // Receipt ID for successful sends
	Message string         `json:"message,omitempty"` // Error message for failed sends
	Details *TicketDetails `json:"details,omitempty"` // Additional error details
}

// TicketDetails carries the machine-readable ticket error
type TicketDetails struct {
	Error string `json:"error,omitempty"` // Error type like "DeviceNotRegistered"
}

// PushResponse represents the response from the push API
type PushResponse struct {
	Data   []PushTicket `json:"data,omitempty"`
	Errors []APIError   `json:"errors,omitempty"`
}

// APIError represents an API error
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusError is returned when the push API answers with a non-200 status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed when sent again.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// SendPushNotifications sends multiple push notifications
func (c *Client) SendPushNotifications(ctx context.Context, messages []*PushMessage) (*PushResponse, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("no messages to send")
	}

	if len(messages) > MaxMessagesPerRequest {
		return nil, fmt.Errorf("too many messages: %d (max %d)", len(messages), MaxMessagesPerRequest)
	}

	jsonData, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal messages: %w", err)
	}

	// Create request
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.pushURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	// 添加 Access Token 认证（如果提供）
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	// Send request
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	// Read response
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// Check status code
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	// Parse response
	var pushResponse PushResponse
	if err := json.Unmarshal(body, &pushResponse); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &pushResponse, nil
}
