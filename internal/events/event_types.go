package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventAppInstalled     EventType = "app_installed"
	EventAppRunning       EventType = "app_running"
	EventAppErrored       EventType = "app_errored"
	EventAppDomainChanged EventType = "app_domain_changed"
	EventAppEnvChanged    EventType = "app_env_changed"
	EventAppUninstalled   EventType = "app_uninstalled"
	EventUserDeleted      EventType = "user_deleted"
)

// AppPayload carries the identity the provisioning receiver needs to act on
// a lifecycle transition, and to de-duplicate repeated notifications.
type AppPayload struct {
	ReleaseName string `json:"release_name"`
	AppName     string `json:"app_name"`
	OwnerEmail  string `json:"owner_email"`
}

// DomainChangedPayload extends AppPayload with the edited domain.
type DomainChangedPayload struct {
	AppPayload
	OldDomain *string `json:"old_domain,omitempty"`
	NewDomain *string `json:"new_domain,omitempty"`
}

// UserDeletedPayload describes an account deletion cascade.
type UserDeletedPayload struct {
	UserID   string `json:"user_id"`
	AppCount int    `json:"app_count"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	AppID     string      `json:"app_id,omitempty"`
	UserID    string      `json:"user_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}
