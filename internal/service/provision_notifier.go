package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/app-platform/internal/events"
	"github.com/spec-kit/app-platform/internal/webhook"
)

// NotificationSink accepts lifecycle notifications for async delivery.
// *webhook.Dispatcher satisfies it.
type NotificationSink interface {
	Enqueue(n webhook.Notification) bool
}

// ProvisionNotifier bridges lifecycle events to the provisioning webhook:
// one notification per transition, enqueued only after the state mutation
// that produced the event has committed.
type ProvisionNotifier struct {
	dispatcher events.Dispatcher
	sink       NotificationSink
	logger     *zap.Logger
}

// NewProvisionNotifier creates the notifier.
func NewProvisionNotifier(dispatcher events.Dispatcher, sink NotificationSink, logger *zap.Logger) *ProvisionNotifier {
	return &ProvisionNotifier{dispatcher: dispatcher, sink: sink, logger: logger}
}

// RegisterHandlers subscribes to the lifecycle events that map to outbound
// notifications. Running/error signals originate from the receiver and are
// not echoed back.
func (n *ProvisionNotifier) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventAppInstalled, n.notify(webhook.TypeInstall))
	n.dispatcher.Subscribe(events.EventAppUninstalled, n.notify(webhook.TypeUninstall))
	n.dispatcher.Subscribe(events.EventAppDomainChanged, n.notify(webhook.TypeEdit))
	n.dispatcher.Subscribe(events.EventAppEnvChanged, n.notify(webhook.TypeEdit))
}

func (n *ProvisionNotifier) notify(notificationType string) events.EventHandler {
	return func(ctx context.Context, event events.Event) error {
		payload, ok := appPayloadOf(event)
		if !ok {
			n.logger.Error("event carries no app payload", zap.String("event_type", string(event.Type)))
			return nil
		}
		n.sink.Enqueue(webhook.Notification{
			ReleaseName: payload.ReleaseName,
			Name:        payload.AppName,
			Email:       payload.OwnerEmail,
			Type:        notificationType,
		})
		return nil
	}
}

func appPayloadOf(event events.Event) (events.AppPayload, bool) {
	switch p := event.Payload.(type) {
	case events.AppPayload:
		return p, true
	case events.DomainChangedPayload:
		return p.AppPayload, true
	default:
		return events.AppPayload{}, false
	}
}
