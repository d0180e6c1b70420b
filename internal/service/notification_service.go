package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/orgsync/directory-sync/internal/config"
	"github.com/orgsync/directory-sync/internal/events"
)

// NotificationService handles emitting notifications for sync lifecycle events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	httpClient *http.Client
}

const webhookTimeout = 5 * time.Second

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: webhookTimeout},
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventSyncStarted, n.handleSyncStarted)
	n.dispatcher.Subscribe(events.EventSyncCompleted, n.handleSyncCompleted)
	n.dispatcher.Subscribe(events.EventSyncFailed, n.handleSyncFailed)
}

func (n *NotificationService) handleSyncStarted(ctx context.Context, event events.Event) error {
	n.logger.Debug("SyncStarted", zap.String("run_id", event.RunID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleSyncCompleted(ctx context.Context, event events.Event) error {
	n.logger.Info("SyncCompleted", zap.String("run_id", event.RunID))
	return n.sendWebhookNotification(ctx, event)
}

func (n *NotificationService) handleSyncFailed(ctx context.Context, event events.Event) error {
	fields := []zap.Field{zap.String("run_id", event.RunID)}
	if payload, ok := event.Payload.(events.SyncFinishedPayload); ok && payload.Result != nil {
		fields = append(fields, zap.Strings("errors", payload.Result.Errors))
	}
	n.logger.Warn("SyncFailed", fields...)
	n.sendEmailNotificationStub(ctx, event)
	return n.sendWebhookNotification(ctx, event)
}

func (n *NotificationService) sendEmailNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailTo) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("to", n.cfg.EmailTo),
		zap.String("run_id", event.RunID),
		zap.String("event_type", string(event.Type)))
}

// sendWebhookNotification posts the event as JSON to the configured URL.
func (n *NotificationService) sendWebhookNotification(ctx context.Context, event events.Event) error {
	url := strings.TrimSpace(n.cfg.WebhookURL)
	if url == "" {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode webhook event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("post webhook: unexpected status %d", resp.StatusCode)
	}
	n.logger.Debug("webhook delivered",
		zap.String("run_id", event.RunID),
		zap.String("event_type", string(event.Type)))
	return nil
}
