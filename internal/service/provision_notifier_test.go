package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/app-platform/internal/events"
	"github.com/spec-kit/app-platform/internal/webhook"
)

type recordingSink struct {
	mu            sync.Mutex
	notifications []webhook.Notification
}

func (s *recordingSink) Enqueue(n webhook.Notification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, n)
	return true
}

func (s *recordingSink) all() []webhook.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]webhook.Notification{}, s.notifications...)
}

func TestProvisionNotifierMapsEvents(t *testing.T) {
	tests := []struct {
		name     string
		event    events.Event
		wantType string
	}{
		{
			name: "install",
			event: events.Event{
				Type:    events.EventAppInstalled,
				Payload: events.AppPayload{ReleaseName: "app-1", AppName: "Blog", OwnerEmail: "ada@example.com"},
			},
			wantType: webhook.TypeInstall,
		},
		{
			name: "uninstall",
			event: events.Event{
				Type:    events.EventAppUninstalled,
				Payload: events.AppPayload{ReleaseName: "app-1", AppName: "Blog", OwnerEmail: "ada@example.com"},
			},
			wantType: webhook.TypeUninstall,
		},
		{
			name: "domain change",
			event: events.Event{
				Type: events.EventAppDomainChanged,
				Payload: events.DomainChangedPayload{
					AppPayload: events.AppPayload{ReleaseName: "app-1", AppName: "Blog", OwnerEmail: "ada@example.com"},
				},
			},
			wantType: webhook.TypeEdit,
		},
		{
			name: "env change",
			event: events.Event{
				Type:    events.EventAppEnvChanged,
				Payload: events.AppPayload{ReleaseName: "app-1", AppName: "Blog", OwnerEmail: "ada@example.com"},
			},
			wantType: webhook.TypeEdit,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dispatcher := events.NewInMemoryDispatcher()
			sink := &recordingSink{}
			NewProvisionNotifier(dispatcher, sink, zap.NewNop()).RegisterHandlers()

			require.NoError(t, dispatcher.Publish(context.Background(), tt.event))

			notifications := sink.all()
			require.Len(t, notifications, 1)
			assert.Equal(t, webhook.Notification{
				ReleaseName: "app-1",
				Name:        "Blog",
				Email:       "ada@example.com",
				Type:        tt.wantType,
			}, notifications[0])
		})
	}
}

func TestProvisionNotifierIgnoresStatusEvents(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	sink := &recordingSink{}
	NewProvisionNotifier(dispatcher, sink, zap.NewNop()).RegisterHandlers()

	err := dispatcher.Publish(context.Background(), events.Event{
		Type:    events.EventAppRunning,
		Payload: events.AppPayload{ReleaseName: "app-1"},
	})
	require.NoError(t, err)
	assert.Empty(t, sink.all())
}

func TestProvisionNotifierSkipsMalformedPayload(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	sink := &recordingSink{}
	NewProvisionNotifier(dispatcher, sink, zap.NewNop()).RegisterHandlers()

	err := dispatcher.Publish(context.Background(), events.Event{
		Type:    events.EventAppInstalled,
		Payload: "not an app payload",
	})
	require.NoError(t, err)
	assert.Empty(t, sink.all())
}
