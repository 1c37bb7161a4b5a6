package dto

import (
	"time"

	"github.com/spec-kit/app-platform/internal/domain"
)

// AppSettingsRequest payload for PUT /apps/:id/settings.
type AppSettingsRequest struct {
	Name   *string           `json:"name,omitempty"`
	Domain *string           `json:"domain,omitempty"`
	Env    map[string]string `json:"env,omitempty"`
}

// CheckoutRequest payload for POST /apps/checkout.
type CheckoutRequest struct {
	Template string `json:"template"`
	AppName  string `json:"app_name"`
	Locale   string `json:"locale,omitempty"`
}

// BillingHookRequest is the inbound checkout-completed payload.
type BillingHookRequest struct {
	Event    string `json:"event"`
	UserID   string `json:"userId"`
	Template string `json:"template"`
	AppName  string `json:"appName"`
}

// ProvisionHookRequest is the inbound provisioning status payload.
type ProvisionHookRequest struct {
	ReleaseName string `json:"releaseName"`
	Status      string `json:"status"`
}

// AppResponse is the public view of an app.
type AppResponse struct {
	ID          string            `json:"id"`
	ReleaseName string            `json:"release_name"`
	Name        string            `json:"name"`
	Template    string            `json:"template"`
	Domain      *string           `json:"domain,omitempty"`
	Env         map[string]string `json:"env"`
	State       domain.AppState   `json:"state"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// NewAppResponse converts a domain app.
func NewAppResponse(app *domain.App) AppResponse {
	return AppResponse{
		ID:          app.ID,
		ReleaseName: app.ReleaseName,
		Name:        app.Name,
		Template:    app.Template,
		Domain:      app.Domain,
		Env:         app.Env,
		State:       app.State,
		CreatedAt:   app.CreatedAt,
		UpdatedAt:   app.UpdatedAt,
	}
}
