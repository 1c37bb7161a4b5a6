package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/app-platform/internal/dnscheck"
	"github.com/spec-kit/app-platform/internal/domain"
	"github.com/spec-kit/app-platform/internal/events"
	"github.com/spec-kit/app-platform/internal/repository"
	apperrors "github.com/spec-kit/app-platform/pkg/util/errorutil"
)

// AppService drives installed apps through their lifecycle. Every state
// write is a conditional update keyed on the current state, so transitions
// on one app apply in request order and DELETED stays terminal.
type AppService struct {
	apps       repository.AppRepository
	users      repository.UserRepository
	templates  repository.TemplateRepository
	validator  *dnscheck.Validator
	dispatcher events.Dispatcher
	logger     *zap.Logger
	ingressIP  string
}

// AppDependencies bundles collaborators for the app service.
type AppDependencies struct {
	AppRepo      repository.AppRepository
	UserRepo     repository.UserRepository
	TemplateRepo repository.TemplateRepository
	Validator    *dnscheck.Validator
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
	IngressIP    string
}

// AppSettingsInput describes an in-place settings edit. Nil fields are left
// unchanged.
type AppSettingsInput struct {
	Name   *string
	Domain *string
	Env    map[string]string
}

// ProvisionSignal values accepted from the provisioning system.
const (
	SignalRunning = "running"
	SignalError   = "error"
)

var nonDeletedStates = []domain.AppState{
	domain.AppStatePending,
	domain.AppStateRunning,
	domain.AppStateError,
}

// NewAppService constructs the service.
func NewAppService(deps AppDependencies) *AppService {
	return &AppService{
		apps:       deps.AppRepo,
		users:      deps.UserRepo,
		templates:  deps.TemplateRepo,
		validator:  deps.Validator,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		ingressIP:  deps.IngressIP,
	}
}

// CreateFromCheckout turns a completed billing checkout into a PENDING app
// and notifies the provisioner. The release name is minted here and never
// changes or gets reused afterwards.
func (s *AppService) CreateFromCheckout(ctx context.Context, userID, templateName, displayName string) (*domain.App, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("user", nil)
		}
		return nil, err
	}

	tpl, err := s.templates.GetByName(ctx, templateName)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("template", map[string]any{"name": templateName})
		}
		return nil, err
	}
	if !tpl.Active {
		return nil, apperrors.NewValidationError("template not installable", map[string]any{"name": templateName})
	}

	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = tpl.Title
	}

	app := &domain.App{
		UserID:      user.ID,
		ReleaseName: generateReleaseName(),
		Name:        displayName,
		Template:    tpl.Name,
		Env:         map[string]string{},
		State:       domain.AppStatePending,
	}
	if err := s.apps.Create(ctx, app); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:    events.EventAppInstalled,
		AppID:   app.ID,
		UserID:  user.ID,
		Payload: appPayload(app, user.Email),
	})
	return app, nil
}

// ApplyProvisionSignal applies an external running/error signal by release
// name. A signal that no longer matches the current state (for example
// arriving after an uninstall) is ignored rather than applied out of order.
func (s *AppService) ApplyProvisionSignal(ctx context.Context, releaseName, signal string) (*domain.App, error) {
	app, err := s.apps.GetByReleaseName(ctx, releaseName)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("app", map[string]any{"release_name": releaseName})
		}
		return nil, err
	}

	var from []domain.AppState
	var to domain.AppState
	var eventType events.EventType
	switch signal {
	case SignalRunning:
		from = []domain.AppState{domain.AppStatePending}
		to = domain.AppStateRunning
		eventType = events.EventAppRunning
	case SignalError:
		from = []domain.AppState{domain.AppStatePending, domain.AppStateRunning}
		to = domain.AppStateError
		eventType = events.EventAppErrored
	default:
		return nil, apperrors.NewValidationError("unknown provision signal", map[string]any{"signal": signal})
	}

	applied, err := s.apps.UpdateStateWhere(ctx, app.ID, from, to)
	if err != nil {
		return nil, err
	}
	if !applied {
		s.logger.Info("provision signal ignored",
			zap.String("release_name", releaseName),
			zap.String("signal", signal),
			zap.String("state", string(app.State)))
		return app, nil
	}

	app.State = to
	owner, err := s.users.GetByID(ctx, app.UserID)
	if err == nil {
		s.publishEvent(ctx, events.Event{
			Type:    eventType,
			AppID:   app.ID,
			UserID:  app.UserID,
			Payload: appPayload(app, owner.Email),
		})
	}
	return app, nil
}

// GetForUser fetches an app, enforcing ownership.
func (s *AppService) GetForUser(ctx context.Context, actor *domain.User, appID string) (*domain.App, error) {
	app, err := s.apps.GetByID(ctx, appID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("app", nil)
		}
		return nil, err
	}
	if !canAccess(actor, app) {
		return nil, apperrors.NewForbidden("access denied")
	}
	return app, nil
}

// ListForUser returns the actor's apps.
func (s *AppService) ListForUser(ctx context.Context, actor *domain.User) ([]domain.App, error) {
	return s.apps.ListByUser(ctx, actor.ID)
}

// ListByState returns every app in the given state, across all owners.
func (s *AppService) ListByState(ctx context.Context, state domain.AppState) ([]domain.App, error) {
	switch state {
	case domain.AppStatePending, domain.AppStateRunning, domain.AppStateError, domain.AppStateDeleted:
	default:
		return nil, apperrors.NewValidationError("unknown app state", map[string]any{"state": state})
	}
	return s.apps.ListByState(ctx, state)
}

// UpdateSettings applies an in-place edit (display name, domain, env vars)
// to a RUNNING app. The domain is validated before anything is written; the
// row mutation commits before the edit-app notification fires.
func (s *AppService) UpdateSettings(ctx context.Context, actor *domain.User, appID string, input AppSettingsInput) (*domain.App, error) {
	app, err := s.GetForUser(ctx, actor, appID)
	if err != nil {
		return nil, err
	}
	if !app.Editable() {
		return nil, apperrors.NewConflict("app settings can only be edited while running",
			map[string]any{"state": app.State})
	}

	oldDomain := app.Domain
	domainChanged := false
	if input.Domain != nil {
		candidate := strings.ToLower(strings.TrimSpace(*input.Domain))
		if candidate == "" {
			app.Domain = nil
		} else {
			if !s.validator.IsAcceptable(candidate) {
				return nil, apperrors.NewValidationError("domain not allowed",
					map[string]any{"domain": candidate})
			}
			app.Domain = &candidate
		}
		domainChanged = !equalDomain(oldDomain, app.Domain)
	}
	if input.Name != nil && strings.TrimSpace(*input.Name) != "" {
		app.Name = strings.TrimSpace(*input.Name)
	}
	envChanged := false
	if input.Env != nil {
		app.Env = input.Env
		envChanged = true
	}

	if err := s.apps.UpdateSettings(ctx, app); err != nil {
		return nil, err
	}

	owner, err := s.users.GetByID(ctx, app.UserID)
	if err != nil {
		return app, nil
	}
	if domainChanged {
		s.publishEvent(ctx, events.Event{
			Type:   events.EventAppDomainChanged,
			AppID:  app.ID,
			UserID: app.UserID,
			Payload: events.DomainChangedPayload{
				AppPayload: appPayload(app, owner.Email),
				OldDomain:  oldDomain,
				NewDomain:  app.Domain,
			},
		})
	} else if envChanged {
		s.publishEvent(ctx, events.Event{
			Type:    events.EventAppEnvChanged,
			AppID:   app.ID,
			UserID:  app.UserID,
			Payload: appPayload(app, owner.Email),
		})
	}
	return app, nil
}

// VerifyDomain checks that the app's custom domain points at the platform
// ingress. It runs after the user asserts ownership, so a mismatch fails
// loudly instead of soft-failing.
func (s *AppService) VerifyDomain(ctx context.Context, actor *domain.User, appID string) error {
	app, err := s.GetForUser(ctx, actor, appID)
	if err != nil {
		return err
	}
	if app.Domain == nil {
		return apperrors.NewValidationError("app has no custom domain", nil)
	}
	if err := s.validator.VerifyRecord(ctx, *app.Domain, s.ingressIP); err != nil {
		return apperrors.NewDNSRecordNotFound()
	}
	return nil
}

// Uninstall transitions an app to DELETED and fires the uninstall-app
// notification. Uninstalling an already-deleted app is a no-op success.
func (s *AppService) Uninstall(ctx context.Context, actor *domain.User, appID string) (*domain.App, error) {
	app, err := s.GetForUser(ctx, actor, appID)
	if err != nil {
		return nil, err
	}
	if _, err := s.UninstallOwned(ctx, app); err != nil {
		return nil, err
	}
	return app, nil
}

// UninstallOwned applies the DELETED transition to an app whose ownership
// has already been established (direct uninstall or account-deletion
// cascade). Returns whether a transition actually happened.
func (s *AppService) UninstallOwned(ctx context.Context, app *domain.App) (bool, error) {
	if app.State == domain.AppStateDeleted {
		return false, nil
	}

	applied, err := s.apps.UpdateStateWhere(ctx, app.ID, nonDeletedStates, domain.AppStateDeleted)
	if err != nil {
		return false, err
	}
	if !applied {
		// lost the race to another uninstall; already deleted
		return false, nil
	}
	app.State = domain.AppStateDeleted

	email := ""
	if owner, err := s.users.GetByID(ctx, app.UserID); err == nil {
		email = owner.Email
	}
	s.publishEvent(ctx, events.Event{
		Type:    events.EventAppUninstalled,
		AppID:   app.ID,
		UserID:  app.UserID,
		Payload: appPayload(app, email),
	})
	return true, nil
}

func (s *AppService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func appPayload(app *domain.App, ownerEmail string) events.AppPayload {
	return events.AppPayload{
		ReleaseName: app.ReleaseName,
		AppName:     app.Name,
		OwnerEmail:  ownerEmail,
	}
}

func canAccess(actor *domain.User, app *domain.App) bool {
	if actor == nil {
		return false
	}
	return actor.Role == domain.RoleAdmin || app.UserID == actor.ID
}

func equalDomain(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func generateReleaseName() string {
	return "app-" + strings.ToLower(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
