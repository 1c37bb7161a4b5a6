package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/app-platform/internal/auth"
	"github.com/spec-kit/app-platform/internal/billing"
	"github.com/spec-kit/app-platform/internal/domain"
	"github.com/spec-kit/app-platform/internal/events"
	"github.com/spec-kit/app-platform/internal/repository"
	apperrors "github.com/spec-kit/app-platform/pkg/util/errorutil"
)

// AccountService owns profile updates, billing sessions and the account
// deletion cascade.
type AccountService struct {
	users      repository.UserRepository
	apps       *AppService
	gateway    billing.Gateway
	logger     *zap.Logger
	bcryptCost int
	baseURL    string
}

// AccountDependencies bundles collaborators for the account service.
type AccountDependencies struct {
	UserRepo   repository.UserRepository
	Apps       *AppService
	Gateway    billing.Gateway
	Logger     *zap.Logger
	BcryptCost int
	BaseURL    string
}

// ProfileUpdateInput describes a PUT /users payload.
type ProfileUpdateInput struct {
	FirstName       *string
	LastName        *string
	CurrentPassword string
	NewPassword     string
}

// DeletionReport summarizes a completed account deletion cascade. External
// failures surface here as warnings; they never fail the operation because
// the authoritative local state is already durable.
type DeletionReport struct {
	SubscriptionsCancelled int      `json:"subscriptions_cancelled"`
	AppsUninstalled        int      `json:"apps_uninstalled"`
	Warnings               []string `json:"warnings,omitempty"`
}

// NewAccountService constructs the service.
func NewAccountService(deps AccountDependencies) *AccountService {
	return &AccountService{
		users:      deps.UserRepo,
		apps:       deps.Apps,
		gateway:    deps.Gateway,
		logger:     deps.Logger,
		bcryptCost: deps.BcryptCost,
		baseURL:    strings.TrimRight(deps.BaseURL, "/"),
	}
}

// UpdateProfile updates name and optionally password, then re-syncs the
// billing customer record. A billing failure is logged, not surfaced: the
// profile mutation has already committed.
func (s *AccountService) UpdateProfile(ctx context.Context, user *domain.User, input ProfileUpdateInput) (*domain.User, error) {
	if input.FirstName != nil {
		user.FirstName = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil {
		user.LastName = strings.TrimSpace(*input.LastName)
	}
	if input.NewPassword != "" {
		if err := auth.ComparePassword(user.PasswordHash, input.CurrentPassword); err != nil {
			return nil, apperrors.NewValidationError("current password incorrect", nil)
		}
		if len(input.NewPassword) < 8 {
			return nil, apperrors.NewValidationError("password must be at least 8 characters", nil)
		}
		hash, err := auth.HashPassword(input.NewPassword, s.bcryptCost)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	if user.BillingCustomerID != nil {
		if _, err := s.gateway.UpsertCustomer(ctx, user.Email, user.ID, user.FullName()); err != nil {
			s.logger.Warn("billing customer upsert failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}
	return user, nil
}

// CheckoutURL ensures a billing customer exists and opens a checkout session
// for installing the given template.
func (s *AccountService) CheckoutURL(ctx context.Context, user *domain.User, templateName, appName, locale string) (string, error) {
	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return "", err
	}
	return s.gateway.CreateCheckoutSession(ctx, billing.CheckoutParams{
		CustomerID: customerID,
		Template:   templateName,
		AppName:    appName,
		SuccessURL: s.baseURL + "/apps?checkout=success",
		CancelURL:  s.baseURL + "/store?checkout=cancelled",
		Locale:     locale,
	})
}

// PortalURL opens a billing portal session for the user.
func (s *AccountService) PortalURL(ctx context.Context, user *domain.User, locale string) (string, error) {
	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return "", err
	}
	return s.gateway.CreatePortalURL(ctx, customerID, s.baseURL+"/account", locale)
}

// DeleteAccount cascades a deletion: the email rewrite commits first, then
// subscription cancellations and app uninstalls run concurrently within
// their step. The sequence is safe to re-run if interrupted partway.
func (s *AccountService) DeleteAccount(ctx context.Context, user *domain.User) (*DeletionReport, error) {
	report := &DeletionReport{}

	// step 1: the authoritative record must be durable before any external
	// call is attempted.
	user.Email = domain.DeletedEmail(user.Email)
	user.Deleted = true
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	// step 2: cancel provider subscriptions, each attempt independent.
	if user.BillingCustomerID != nil {
		subs, err := s.gateway.CustomerSubscriptions(ctx, *user.BillingCustomerID)
		if err != nil {
			s.logger.Warn("listing subscriptions failed", zap.String("user_id", user.ID), zap.Error(err))
			report.Warnings = append(report.Warnings, "subscriptions could not be listed")
		} else {
			cancelled, warnings := s.cancelSubscriptions(ctx, subs)
			report.SubscriptionsCancelled = cancelled
			report.Warnings = append(report.Warnings, warnings...)
		}
	}

	// step 3: tear down every app, including those already in ERROR.
	apps, err := s.apps.ListForUser(ctx, user)
	if err != nil {
		s.logger.Warn("listing apps failed", zap.String("user_id", user.ID), zap.Error(err))
		report.Warnings = append(report.Warnings, "apps could not be listed")
		return report, nil
	}
	report.AppsUninstalled = s.uninstallApps(ctx, apps, report)

	s.apps.publishEvent(ctx, events.Event{
		Type:   events.EventUserDeleted,
		UserID: user.ID,
		Payload: events.UserDeletedPayload{
			UserID:   user.ID,
			AppCount: report.AppsUninstalled,
		},
	})

	return report, nil
}

func (s *AccountService) cancelSubscriptions(ctx context.Context, subs []billing.Subscription) (int, []string) {
	var (
		mu        sync.Mutex
		cancelled int
		warnings  []string
		wg        sync.WaitGroup
	)
	for _, sub := range subs {
		wg.Add(1)
		go func(sub billing.Subscription) {
			defer wg.Done()
			err := s.gateway.CancelSubscription(ctx, sub.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Warn("subscription cancellation failed", zap.String("subscription_id", sub.ID), zap.Error(err))
				warnings = append(warnings, fmt.Sprintf("subscription %s could not be cancelled", sub.ID))
				return
			}
			cancelled++
		}(sub)
	}
	wg.Wait()
	return cancelled, warnings
}

func (s *AccountService) uninstallApps(ctx context.Context, apps []domain.App, report *DeletionReport) int {
	var (
		mu          sync.Mutex
		uninstalled int
		wg          sync.WaitGroup
	)
	for i := range apps {
		wg.Add(1)
		go func(app domain.App) {
			defer wg.Done()
			transitioned, err := s.apps.UninstallOwned(ctx, &app)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Warn("app uninstall failed", zap.String("app_id", app.ID), zap.Error(err))
				report.Warnings = append(report.Warnings, fmt.Sprintf("app %s could not be uninstalled", app.ReleaseName))
				return
			}
			if transitioned {
				uninstalled++
			}
		}(apps[i])
	}
	wg.Wait()
	return uninstalled
}

func (s *AccountService) ensureCustomer(ctx context.Context, user *domain.User) (string, error) {
	if user.BillingCustomerID != nil && *user.BillingCustomerID != "" {
		return *user.BillingCustomerID, nil
	}
	customerID, err := s.gateway.UpsertCustomer(ctx, user.Email, user.ID, user.FullName())
	if err != nil {
		return "", err
	}
	user.BillingCustomerID = &customerID
	if err := s.users.Update(ctx, user); err != nil {
		return "", err
	}
	return customerID, nil
}
