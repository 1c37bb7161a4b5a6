package service

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/app-platform/internal/billing"
	"github.com/spec-kit/app-platform/internal/domain"
	"github.com/spec-kit/app-platform/internal/events"
)

var billingDown = errors.New("provider unavailable")

type memoryUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[string]*domain.User)}
}

func (r *memoryUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *memoryUserRepo) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *memoryUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (r *memoryUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email && !user.Deleted {
			clone := *user
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type memoryAppRepo struct {
	mu   sync.Mutex
	apps map[string]*domain.App
}

func newMemoryAppRepo() *memoryAppRepo {
	return &memoryAppRepo{apps: make(map[string]*domain.App)}
}

func (r *memoryAppRepo) Create(_ context.Context, app *domain.App) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	clone := *app
	r.apps[app.ID] = &clone
	return nil
}

func (r *memoryAppRepo) GetByID(_ context.Context, id string) (*domain.App, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *app
	return &clone, nil
}

func (r *memoryAppRepo) GetByReleaseName(_ context.Context, releaseName string) (*domain.App, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, app := range r.apps {
		if app.ReleaseName == releaseName {
			clone := *app
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memoryAppRepo) ListByUser(_ context.Context, userID string) ([]domain.App, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.App
	for _, app := range r.apps {
		if app.UserID == userID {
			result = append(result, *app)
		}
	}
	return result, nil
}

func (r *memoryAppRepo) ListByState(_ context.Context, state domain.AppState) ([]domain.App, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.App
	for _, app := range r.apps {
		if app.State == state {
			result = append(result, *app)
		}
	}
	return result, nil
}

func (r *memoryAppRepo) UpdateSettings(_ context.Context, app *domain.App) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.apps[app.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.Name = app.Name
	stored.Domain = app.Domain
	stored.Env = app.Env
	return nil
}

func (r *memoryAppRepo) UpdateStateWhere(_ context.Context, id string, from []domain.AppState, to domain.AppState) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[id]
	if !ok {
		return false, nil
	}
	for _, state := range from {
		if app.State == state {
			app.State = to
			return true, nil
		}
	}
	return false, nil
}

type memoryTemplateRepo struct {
	templates map[string]*domain.Template
}

func newMemoryTemplateRepo(templates ...domain.Template) *memoryTemplateRepo {
	repo := &memoryTemplateRepo{templates: make(map[string]*domain.Template)}
	for i := range templates {
		repo.templates[templates[i].Name] = &templates[i]
	}
	return repo
}

func (r *memoryTemplateRepo) ListActive(_ context.Context) ([]domain.Template, error) {
	var result []domain.Template
	for _, tpl := range r.templates {
		if tpl.Active {
			result = append(result, *tpl)
		}
	}
	return result, nil
}

func (r *memoryTemplateRepo) GetByName(_ context.Context, name string) (*domain.Template, error) {
	tpl, ok := r.templates[name]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *tpl
	return &clone, nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) ofType(eventType events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var result []events.Event
	for _, event := range d.events {
		if event.Type == eventType {
			result = append(result, event)
		}
	}
	return result
}

type fakeGateway struct {
	mu            sync.Mutex
	subscriptions []billing.Subscription
	listErr       error
	failCancelID  string
	cancelled     []string
	checkoutURL   string
	portalURL     string
	customerID    string
	upsertErr     error
	upsertCalls   int
}

func (g *fakeGateway) UpsertCustomer(_ context.Context, _, _, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.upsertCalls++
	if g.upsertErr != nil {
		return "", g.upsertErr
	}
	return g.customerID, nil
}

func (g *fakeGateway) CustomerSubscriptions(_ context.Context, _ string) ([]billing.Subscription, error) {
	if g.listErr != nil {
		return nil, g.listErr
	}
	return g.subscriptions, nil
}

func (g *fakeGateway) CancelSubscription(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if id == g.failCancelID {
		return billingDown
	}
	g.cancelled = append(g.cancelled, id)
	return nil
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, _ billing.CheckoutParams) (string, error) {
	return g.checkoutURL, nil
}

func (g *fakeGateway) CreatePortalURL(_ context.Context, _, _, _ string) (string, error) {
	return g.portalURL, nil
}
