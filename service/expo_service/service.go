package expo_service

import (
	"context"
	"errors"
	"fleet-push-service/models"
	"fleet-push-service/service/push_service"
	"fleet-push-service/tool"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Expo ticket error codes
const (
	TicketErrorDeviceNotRegistered = "DeviceNotRegistered"
	TicketErrorInvalidCredentials  = "InvalidCredentials"
	TicketErrorMessageTooBig       = "MessageTooBig"
	TicketErrorMessageRateExceeded = "MessageRateExceeded"
)

// Service Expo 推送通道，带重试
type Service struct {
	client     *Client
	maxRetries int
	baseDelay  time.Duration
	hints      models.PlatformHints
	log        *zap.Logger
}

var _ push_service.PushTransport = (*Service)(nil)

// NewService creates the Expo transport from configuration
func NewService(config *Config, log *zap.Logger) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	config.ApplyDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		client:     NewClientWithConfig(config.AccessToken, config.Timeout, config.PushURL),
		maxRetries: config.MaxRetries,
		baseDelay:  config.BaseDelay,
		hints:      config.Hints,
		log:        log.Named("expo"),
	}
}

// GetName 返回通道名称
func (s *Service) GetName() string {
	return push_service.ProviderTypeExpo
}

// SendMulticast sends one message per token in batches of MaxMessagesPerRequest.
// Tokens that are not Expo push tokens are reported as invalid without a request.
func (s *Service) SendMulticast(ctx context.Context, tokens []string, notification models.Notification, data map[string]string) ([]models.DeliveryOutcome, error) {
	outcomes := make([]models.DeliveryOutcome, len(tokens))

	// indexes of tokens that go on the wire
	var pending []int
	for i, token := range tokens {
		if !ValidateToken(token) {
			outcomes[i] = models.DeliveryOutcome{
				ErrorKind: models.DeliveryErrorInvalidToken,
				Message:   "not an Expo push token",
			}
			continue
		}
		pending = append(pending, i)
	}

	for start := 0; start < len(pending); start += MaxMessagesPerRequest {
		end := start + MaxMessagesPerRequest
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		messages := make([]*PushMessage, len(batch))
		for j, idx := range batch {
			messages[j] = s.buildMessage(tokens[idx], notification, data)
		}

		response, err := s.sendWithRetry(ctx, messages)
		if err != nil {
			return nil, err
		}
		if len(response.Errors) > 0 {
			return nil, fmt.Errorf("API errors: %v", response.Errors)
		}
		if len(response.Data) != len(batch) {
			return nil, fmt.Errorf("expo returned %d tickets for %d messages", len(response.Data), len(batch))
		}

		for j, ticket := range response.Data {
			idx := batch[j]
			outcomes[idx] = ticketOutcome(ticket)
			if !outcomes[idx].Success {
				s.log.Debug("token delivery failed", zap.String("token", tool.MaskToken(tokens[idx])),
					zap.String("kind", string(outcomes[idx].ErrorKind)), zap.String("message", ticket.Message))
			}
		}
	}
	return outcomes, nil
}

func (s *Service) buildMessage(token string, notification models.Notification, data map[string]string) *PushMessage {
	message := &PushMessage{
		To:        token,
		Title:     notification.Title,
		Body:      notification.Body,
		Data:      data,
		Sound:     s.hints.Sound,
		Priority:  s.hints.Priority,
		ChannelID: s.hints.AndroidChannelID,
	}
	if s.hints.Badge > 0 {
		badge := s.hints.Badge
		message.Badge = &badge
	}
	return message
}

func ticketOutcome(ticket PushTicket) models.DeliveryOutcome {
	if ticket.Status == "ok" {
		return models.DeliveryOutcome{Success: true, ErrorKind: models.DeliveryErrorNone, MessageID: ticket.ID}
	}
	outcome := models.DeliveryOutcome{ErrorKind: models.DeliveryErrorOther, Message: ticket.Message}
	code := ""
	if ticket.Details != nil {
		code = ticket.Details.Error
	}
	switch {
	case code == TicketErrorDeviceNotRegistered:
		outcome.ErrorKind = models.DeliveryErrorNotRegistered
	case code == "" && strings.Contains(ticket.Message, "is not a valid Expo push token"):
		outcome.ErrorKind = models.DeliveryErrorInvalidToken
	}
	return outcome
}

func (s *Service) sendWithRetry(ctx context.Context, messages []*PushMessage) (*PushResponse, error) {
	var lastErr error
	for retry := 0; retry <= s.maxRetries; retry++ {
		if retry > 0 {
			if err := s.waitBeforeRetry(ctx, retry); err != nil {
				return nil, err
			}
		}
		response, err := s.client.SendPushNotifications(ctx, messages)
		if err == nil {
			return response, nil
		}
		lastErr = err
		if !shouldRetry(ctx, err) {
			break
		}
		s.log.Warn("expo request failed, retrying", zap.Int("retry", retry+1), zap.Error(err))
	}
	return nil, lastErr
}

// shouldRetry determines if an error should trigger a retry
func shouldRetry(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return true
}

// waitBeforeRetry implements exponential backoff
func (s *Service) waitBeforeRetry(ctx context.Context, retryCount int) error {
	// Exponential backoff: baseDelay * 2^(retryCount-1), plus 10% jitter
	delay := time.Duration(float64(s.baseDelay) * math.Pow(2, float64(retryCount-1)))
	delay += delay / 10

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ValidateToken validates if a token looks like a valid Expo push token
func ValidateToken(token string) bool {
	if !strings.HasSuffix(token, "]") {
		return false
	}
	return strings.HasPrefix(token, "ExponentPushToken[") || strings.HasPrefix(token, "ExpoPushToken[")
}
