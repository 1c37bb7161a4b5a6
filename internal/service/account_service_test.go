package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/app-platform/internal/auth"
	"github.com/spec-kit/app-platform/internal/billing"
	"github.com/spec-kit/app-platform/internal/dnscheck"
	"github.com/spec-kit/app-platform/internal/domain"
	"github.com/spec-kit/app-platform/internal/events"
	apperrors "github.com/spec-kit/app-platform/pkg/util/errorutil"
)

type accountFixture struct {
	service    *AccountService
	users      *memoryUserRepo
	apps       *memoryAppRepo
	gateway    *fakeGateway
	dispatcher *recordingDispatcher
	owner      *domain.User
}

func newAccountFixture(t *testing.T, gateway *fakeGateway) *accountFixture {
	t.Helper()

	users := newMemoryUserRepo()
	hash, err := auth.HashPassword("hunter2hunter2", bcrypt.MinCost)
	require.NoError(t, err)

	customerID := "cus_123"
	owner := &domain.User{
		FirstName:         "Ada",
		LastName:          "Lovelace",
		Email:             "ada@example.com",
		PasswordHash:      hash,
		Role:              domain.RoleUser,
		BillingCustomerID: &customerID,
	}
	require.NoError(t, users.Create(context.Background(), owner))

	apps := newMemoryAppRepo()
	dispatcher := &recordingDispatcher{}
	appService := NewAppService(AppDependencies{
		AppRepo:    apps,
		UserRepo:   users,
		Validator:  dnscheck.NewValidator(nil, "localhost", nil, time.Second),
		Dispatcher: dispatcher,
		Logger:     zap.NewNop(),
		IngressIP:  "127.0.0.1",
	})

	svc := NewAccountService(AccountDependencies{
		UserRepo:   users,
		Apps:       appService,
		Gateway:    gateway,
		Logger:     zap.NewNop(),
		BcryptCost: bcrypt.MinCost,
		BaseURL:    "https://dashboard.example.com/",
	})
	return &accountFixture{
		service:    svc,
		users:      users,
		apps:       apps,
		gateway:    gateway,
		dispatcher: dispatcher,
		owner:      owner,
	}
}

func (f *accountFixture) seedApps(t *testing.T, states ...domain.AppState) {
	t.Helper()
	for i, state := range states {
		app := &domain.App{
			UserID:      f.owner.ID,
			ReleaseName: generateReleaseName(),
			Name:        "App",
			Template:    "wordpress",
			Env:         map[string]string{},
			State:       state,
		}
		require.NoError(t, f.apps.Create(context.Background(), app), "app %d", i)
	}
}

func TestDeleteAccountCascade(t *testing.T) {
	gateway := &fakeGateway{
		subscriptions: []billing.Subscription{
			{ID: "sub_1", Status: "active"},
			{ID: "sub_2", Status: "active"},
			{ID: "sub_3", Status: "active"},
		},
		failCancelID: "sub_2",
	}
	f := newAccountFixture(t, gateway)
	f.seedApps(t, domain.AppStateRunning, domain.AppStateError, domain.AppStatePending)

	report, err := f.service.DeleteAccount(context.Background(), f.owner)
	require.NoError(t, err)

	assert.Equal(t, 2, report.SubscriptionsCancelled)
	assert.Equal(t, 3, report.AppsUninstalled, "error-state apps are torn down too")
	assert.Contains(t, report.Warnings, "subscription sub_2 could not be cancelled")

	stored, err := f.users.GetByID(context.Background(), f.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "deleted+ada@example.com", stored.Email)
	assert.True(t, stored.Deleted)

	apps, err := f.apps.ListByUser(context.Background(), f.owner.ID)
	require.NoError(t, err)
	for _, app := range apps {
		assert.Equal(t, domain.AppStateDeleted, app.State)
	}
	assert.Len(t, f.dispatcher.ofType(events.EventAppUninstalled), 3)
	assert.ElementsMatch(t, []string{"sub_1", "sub_3"}, gateway.cancelled)

	deleted := f.dispatcher.ofType(events.EventUserDeleted)
	require.Len(t, deleted, 1)
	assert.Equal(t, events.UserDeletedPayload{UserID: f.owner.ID, AppCount: 3}, deleted[0].Payload)
}

func TestDeleteAccountSurvivesBillingOutage(t *testing.T) {
	gateway := &fakeGateway{listErr: billingDown}
	f := newAccountFixture(t, gateway)
	f.seedApps(t, domain.AppStateRunning)

	report, err := f.service.DeleteAccount(context.Background(), f.owner)
	require.NoError(t, err)
	assert.Zero(t, report.SubscriptionsCancelled)
	assert.Equal(t, 1, report.AppsUninstalled)
	assert.Contains(t, report.Warnings, "subscriptions could not be listed")

	stored, err := f.users.GetByID(context.Background(), f.owner.ID)
	require.NoError(t, err)
	assert.True(t, stored.Deleted)
}

func TestDeleteAccountAlreadyDeletedAppsSkipped(t *testing.T) {
	f := newAccountFixture(t, &fakeGateway{})
	f.seedApps(t, domain.AppStateDeleted, domain.AppStateRunning)

	report, err := f.service.DeleteAccount(context.Background(), f.owner)
	require.NoError(t, err)
	assert.Equal(t, 1, report.AppsUninstalled)
	assert.Len(t, f.dispatcher.ofType(events.EventAppUninstalled), 1)
}

func TestDeleteAccountEmailRewriteIdempotent(t *testing.T) {
	f := newAccountFixture(t, &fakeGateway{})

	_, err := f.service.DeleteAccount(context.Background(), f.owner)
	require.NoError(t, err)

	stored, err := f.users.GetByID(context.Background(), f.owner.ID)
	require.NoError(t, err)

	_, err = f.service.DeleteAccount(context.Background(), stored)
	require.NoError(t, err)

	again, err := f.users.GetByID(context.Background(), f.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "deleted+ada@example.com", again.Email)
}

func TestUpdateProfile(t *testing.T) {
	t.Run("names and billing sync", func(t *testing.T) {
		f := newAccountFixture(t, &fakeGateway{customerID: "cus_123"})

		first := "Grace"
		updated, err := f.service.UpdateProfile(context.Background(), f.owner, ProfileUpdateInput{FirstName: &first})
		require.NoError(t, err)
		assert.Equal(t, "Grace", updated.FirstName)
		assert.Equal(t, 1, f.gateway.upsertCalls)
	})

	t.Run("billing failure does not undo the update", func(t *testing.T) {
		f := newAccountFixture(t, &fakeGateway{upsertErr: billingDown})

		first := "Grace"
		_, err := f.service.UpdateProfile(context.Background(), f.owner, ProfileUpdateInput{FirstName: &first})
		require.NoError(t, err)

		stored, err := f.users.GetByID(context.Background(), f.owner.ID)
		require.NoError(t, err)
		assert.Equal(t, "Grace", stored.FirstName)
	})

	t.Run("password change requires the current password", func(t *testing.T) {
		f := newAccountFixture(t, &fakeGateway{})

		_, err := f.service.UpdateProfile(context.Background(), f.owner, ProfileUpdateInput{
			CurrentPassword: "wrong",
			NewPassword:     "newpassword123",
		})
		var domainErr *apperrors.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "VALIDATION_FAILED", domainErr.Code)
	})

	t.Run("short passwords rejected", func(t *testing.T) {
		f := newAccountFixture(t, &fakeGateway{})

		_, err := f.service.UpdateProfile(context.Background(), f.owner, ProfileUpdateInput{
			CurrentPassword: "hunter2hunter2",
			NewPassword:     "short",
		})
		var domainErr *apperrors.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "VALIDATION_FAILED", domainErr.Code)
	})

	t.Run("valid password change", func(t *testing.T) {
		f := newAccountFixture(t, &fakeGateway{})
		oldHash := f.owner.PasswordHash

		updated, err := f.service.UpdateProfile(context.Background(), f.owner, ProfileUpdateInput{
			CurrentPassword: "hunter2hunter2",
			NewPassword:     "newpassword123",
		})
		require.NoError(t, err)
		assert.NotEqual(t, oldHash, updated.PasswordHash)
		assert.NoError(t, auth.ComparePassword(updated.PasswordHash, "newpassword123"))
	})
}

func TestCheckoutAndPortalURLs(t *testing.T) {
	t.Run("existing customer reused", func(t *testing.T) {
		f := newAccountFixture(t, &fakeGateway{checkoutURL: "https://pay.example.com/c/1"})

		url, err := f.service.CheckoutURL(context.Background(), f.owner, "wordpress", "My Blog", "en")
		require.NoError(t, err)
		assert.Equal(t, "https://pay.example.com/c/1", url)
		assert.Zero(t, f.gateway.upsertCalls)
	})

	t.Run("customer created on first use", func(t *testing.T) {
		f := newAccountFixture(t, &fakeGateway{customerID: "cus_new", portalURL: "https://pay.example.com/p/1"})
		f.owner.BillingCustomerID = nil
		require.NoError(t, f.users.Update(context.Background(), f.owner))

		url, err := f.service.PortalURL(context.Background(), f.owner, "en")
		require.NoError(t, err)
		assert.Equal(t, "https://pay.example.com/p/1", url)
		assert.Equal(t, 1, f.gateway.upsertCalls)

		stored, err := f.users.GetByID(context.Background(), f.owner.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.BillingCustomerID)
		assert.Equal(t, "cus_new", *stored.BillingCustomerID)
	})
}
