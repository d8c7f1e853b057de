// Package notify persists protocol events as notifications and forwards
// them to an external dispatcher webhook. Delivery is best effort: the
// protocol never waits for, or fails on, the webhook.
package notify

import (
	"context"
	"net/http"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"medmarket/models"
)

// Store is the slice of storage the notifier needs.
type Store interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
}

// Event is one protocol occurrence to announce. An empty TargetOrgID
// broadcasts.
type Event struct {
	Type        models.NotificationType
	Title       string
	Message     string
	TargetOrgID string
	RelatedType string
	RelatedID   string
}

type Notifier struct {
	store      Store
	webhookURL string
	client     *resty.Client
	log        *zap.Logger
}

func New(store Store, webhookURL string, log *zap.Logger) *Notifier {
	return &Notifier{
		store:      store,
		webhookURL: webhookURL,
		client:     resty.New(),
		log:        log,
	}
}

// Publish records the event and kicks off async webhook delivery. Errors
// are logged, never returned: a failed notification must not fail the
// operation that produced it.
func (n *Notifier) Publish(ctx context.Context, e Event) {
	record := &models.Notification{
		Type:              e.Type,
		Title:             e.Title,
		Message:           e.Message,
		TargetOrgID:       e.TargetOrgID,
		RelatedEntityType: e.RelatedType,
		RelatedEntityID:   e.RelatedID,
	}
	if err := n.store.CreateNotification(ctx, record); err != nil {
		n.log.Error("store notification", zap.Error(err), zap.String("type", string(e.Type)))
	}

	if n.webhookURL == "" {
		return
	}
	go n.deliver(e)
}

func (n *Notifier) deliver(e Event) {
	resp, err := n.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{
			"type":        string(e.Type),
			"title":       e.Title,
			"message":     e.Message,
			"targetOrgId": e.TargetOrgID,
		}).
		Post(n.webhookURL)
	if err != nil {
		n.log.Warn("webhook delivery failed", zap.Error(err), zap.String("type", string(e.Type)))
		return
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusNoContent {
		n.log.Warn("webhook delivery rejected",
			zap.Int("status", resp.StatusCode()),
			zap.String("type", string(e.Type)))
	}
}
