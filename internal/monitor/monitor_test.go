package monitor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/app-platform/internal/domain"
)

type staticAppRepo struct {
	mu   sync.Mutex
	apps []domain.App
}

func (r *staticAppRepo) Create(context.Context, *domain.App) error { return nil }
func (r *staticAppRepo) GetByID(context.Context, string) (*domain.App, error) {
	return nil, nil
}
func (r *staticAppRepo) GetByReleaseName(context.Context, string) (*domain.App, error) {
	return nil, nil
}
func (r *staticAppRepo) ListByUser(context.Context, string) ([]domain.App, error) {
	return nil, nil
}
func (r *staticAppRepo) UpdateSettings(context.Context, *domain.App) error { return nil }
func (r *staticAppRepo) UpdateStateWhere(context.Context, string, []domain.AppState, domain.AppState) (bool, error) {
	return false, nil
}

func (r *staticAppRepo) ListByState(_ context.Context, state domain.AppState) ([]domain.App, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.App
	for _, app := range r.apps {
		if app.State == state {
			result = append(result, app)
		}
	}
	return result, nil
}

func TestSampleOnce(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()
	host := strings.TrimPrefix(upstream.URL, "http://")

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	repo := &staticAppRepo{apps: []domain.App{
		{ReleaseName: "app-up", Domain: &host, State: domain.AppStateRunning},
		{ReleaseName: "app-nodomain", State: domain.AppStateRunning},
		{ReleaseName: "app-deleted", Domain: &host, State: domain.AppStateDeleted},
	}}

	require.NoError(t, client.HSet(context.Background(), "app:metrics:app-deleted", "online", "1").Err())

	m := New(repo, client, nil, zap.NewNop(), time.Minute)
	require.NoError(t, m.SampleOnce(context.Background()))

	sample, err := client.HGetAll(context.Background(), "app:metrics:app-up").Result()
	require.NoError(t, err)
	assert.Equal(t, "1", sample["online"])
	assert.Contains(t, sample, "response_ms")
	assert.Contains(t, sample, "checked_at")

	ttl := client.TTL(context.Background(), "app:metrics:app-up").Val()
	assert.Greater(t, ttl, time.Minute)

	exists, err := client.Exists(context.Background(), "app:metrics:app-nodomain").Result()
	require.NoError(t, err)
	assert.Zero(t, exists, "apps without a domain are skipped")

	exists, err = client.Exists(context.Background(), "app:metrics:app-deleted").Result()
	require.NoError(t, err)
	assert.Zero(t, exists, "stale samples of uninstalled apps are removed")
}

func TestSampleOnceOfflineApp(t *testing.T) {
	host := "127.0.0.1:1"

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	repo := &staticAppRepo{apps: []domain.App{
		{ReleaseName: "app-down", Domain: &host, State: domain.AppStateRunning},
	}}

	m := New(repo, client, nil, zap.NewNop(), time.Minute)
	require.NoError(t, m.SampleOnce(context.Background()))

	sample, err := client.HGetAll(context.Background(), "app:metrics:app-down").Result()
	require.NoError(t, err)
	assert.Equal(t, "0", sample["online"])
}
