package fcm_service

import (
	"context"
	"fleet-push-service/models"
	"fleet-push-service/service/push_service"
	"fleet-push-service/tool"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/errorutils"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
)

// MaxTokensPerMulticast FCM 单次多播的令牌上限
const MaxTokensPerMulticast = 500

// MulticastSender is the part of *messaging.Client the transport uses.
type MulticastSender interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCMService Firebase Cloud Messaging 推送通道
type FCMService struct {
	sender   MulticastSender
	hints    models.PlatformHints
	classify func(error) models.DeliveryErrorKind
	log      *zap.Logger
}

var _ push_service.PushTransport = (*FCMService)(nil)

// NewFCMService 通过 Firebase 应用创建 FCM 通道
func NewFCMService(ctx context.Context, app *firebase.App, hints models.PlatformHints, log *zap.Logger) (*FCMService, error) {
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}
	return NewFCMServiceWithSender(client, hints, log), nil
}

// NewFCMServiceWithSender 使用指定的发送器创建 FCM 通道
func NewFCMServiceWithSender(sender MulticastSender, hints models.PlatformHints, log *zap.Logger) *FCMService {
	if log == nil {
		log = zap.NewNop()
	}
	return &FCMService{
		sender:   sender,
		hints:    hints,
		classify: ClassifyError,
		log:      log.Named("fcm"),
	}
}

// GetName 返回通道名称
func (s *FCMService) GetName() string {
	return push_service.ProviderTypeFCM
}

// SendMulticast 发送多播消息，超过上限时分批发送
func (s *FCMService) SendMulticast(ctx context.Context, tokens []string, notification models.Notification, data map[string]string) ([]models.DeliveryOutcome, error) {
	outcomes := make([]models.DeliveryOutcome, 0, len(tokens))
	for start := 0; start < len(tokens); start += MaxTokensPerMulticast {
		end := start + MaxTokensPerMulticast
		if end > len(tokens) {
			end = len(tokens)
		}
		batch := tokens[start:end]

		response, err := s.sender.SendEachForMulticast(ctx, s.buildMessage(batch, notification, data))
		if err != nil {
			return nil, fmt.Errorf("failed to send FCM multicast message: %w", err)
		}
		if len(response.Responses) != len(batch) {
			return nil, fmt.Errorf("FCM returned %d responses for %d tokens", len(response.Responses), len(batch))
		}

		for i, resp := range response.Responses {
			if resp.Success {
				outcomes = append(outcomes, models.DeliveryOutcome{
					Success:   true,
					ErrorKind: models.DeliveryErrorNone,
					MessageID: resp.MessageID,
				})
				continue
			}
			kind := s.classify(resp.Error)
			outcome := models.DeliveryOutcome{ErrorKind: kind}
			if resp.Error != nil {
				outcome.Message = resp.Error.Error()
			}
			s.log.Debug("token delivery failed", zap.String("token", tool.MaskToken(batch[i])),
				zap.String("kind", string(kind)), zap.Error(resp.Error))
			outcomes = append(outcomes, outcome)
		}
		if batchOutcomes := outcomes[start:]; payloadRejected(batchOutcomes) {
			s.log.Warn("every token rejected with invalid argument, treating as payload error", zap.Int("tokens", len(batch)))
			for i := range batchOutcomes {
				batchOutcomes[i].ErrorKind = models.DeliveryErrorOther
			}
		}
		s.log.Info("multicast sent", zap.Int("success", response.SuccessCount), zap.Int("failure", response.FailureCount))
	}
	return outcomes, nil
}

func (s *FCMService) buildMessage(tokens []string, notification models.Notification, data map[string]string) *messaging.MulticastMessage {
	hints := s.hints
	androidPriority, apnsPriority := "normal", "5"
	if hints.HighPriority() {
		androidPriority, apnsPriority = "high", "10"
	}

	message := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: notification.Title,
			Body:  notification.Body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: androidPriority,
			Notification: &messaging.AndroidNotification{
				ChannelID: hints.AndroidChannelID,
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{"apns-priority": apnsPriority},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: hints.Sound,
				},
			},
		},
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title:   notification.Title,
				Body:    notification.Body,
				Icon:    hints.WebIcon,
				Badge:   hints.WebBadge,
				Vibrate: []int{200, 100, 200},
			},
		},
	}
	if hints.Badge > 0 {
		badge := hints.Badge
		message.APNS.Payload.Aps.Badge = &badge
	}
	if link := hints.Link(data); link != "" {
		message.Webpush.FCMOptions = &messaging.WebpushFCMOptions{Link: link}
	}
	return message
}

// payloadRejected 整批都以 INVALID_ARGUMENT 失败且错误未指向注册令牌时，问题出在消息内容
func payloadRejected(outcomes []models.DeliveryOutcome) bool {
	if len(outcomes) == 0 {
		return false
	}
	for _, outcome := range outcomes {
		if outcome.ErrorKind != models.DeliveryErrorInvalidToken {
			return false
		}
		if strings.Contains(strings.ToLower(outcome.Message), "registration token") {
			return false
		}
	}
	return true
}

// ClassifyError 把 FCM 错误映射为投递错误类型
func ClassifyError(err error) models.DeliveryErrorKind {
	switch {
	case err == nil:
		return models.DeliveryErrorOther
	case messaging.IsUnregistered(err):
		return models.DeliveryErrorNotRegistered
	case errorutils.IsInvalidArgument(err):
		return models.DeliveryErrorInvalidToken
	default:
		return models.DeliveryErrorOther
	}
}
