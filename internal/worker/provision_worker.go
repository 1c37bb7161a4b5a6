package worker

import (
	"github.com/spec-kit/app-platform/internal/service"
	"github.com/spec-kit/app-platform/internal/webhook"
)

// StartProvisionNotifier starts webhook delivery workers and wires the
// lifecycle event handlers that feed them.
func StartProvisionNotifier(notifier *service.ProvisionNotifier, dispatcher *webhook.Dispatcher) {
	if dispatcher != nil {
		dispatcher.Start()
	}
	if notifier != nil {
		notifier.RegisterHandlers()
	}
}
