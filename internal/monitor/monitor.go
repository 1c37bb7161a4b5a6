package monitor

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/app-platform/internal/domain"
	"github.com/spec-kit/app-platform/internal/observability"
	"github.com/spec-kit/app-platform/internal/repository"
)

const metricsKeyPrefix = "app:metrics:"
const sampleTTL = 10 * time.Minute

// Monitor samples availability of running apps and writes response-time and
// online flags to redis and the metrics registry. Write side only; the
// metrics exporter reads elsewhere.
type Monitor struct {
	apps     repository.AppRepository
	redis    *redis.Client
	metrics  *observability.Metrics
	client   *http.Client
	logger   *zap.Logger
	interval time.Duration
}

// New builds a monitor.
func New(apps repository.AppRepository, redisClient *redis.Client, metrics *observability.Metrics, logger *zap.Logger, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Monitor{
		apps:     apps,
		redis:    redisClient,
		metrics:  metrics,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
		interval: interval,
	}
}

// Run starts the sampling loop. Blocks until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := m.SampleOnce(ctx); err != nil {
				m.logger.Warn("sampling pass failed", zap.Error(err))
			}
		}
	}
}

// SampleOnce probes every running app once and drops leftover samples of
// uninstalled apps.
func (m *Monitor) SampleOnce(ctx context.Context) error {
	apps, err := m.apps.ListByState(ctx, domain.AppStateRunning)
	if err != nil {
		return fmt.Errorf("list running apps: %w", err)
	}

	for i := range apps {
		m.probe(ctx, &apps[i])
	}

	deleted, err := m.apps.ListByState(ctx, domain.AppStateDeleted)
	if err != nil {
		return nil
	}
	for i := range deleted {
		m.metrics.ForgetApp(deleted[i].ReleaseName)
		_ = m.redis.Del(ctx, metricsKeyPrefix+deleted[i].ReleaseName).Err()
	}
	return nil
}

func (m *Monitor) probe(ctx context.Context, app *domain.App) {
	if app.Domain == nil {
		return
	}

	start := time.Now()
	online := false

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+*app.Domain+"/", nil)
	if err == nil {
		resp, doErr := m.client.Do(req)
		if doErr == nil {
			online = resp.StatusCode < http.StatusInternalServerError
			resp.Body.Close()
		}
	}
	elapsed := time.Since(start)

	m.metrics.RecordAppProbe(app.ReleaseName, online, elapsed)

	key := metricsKeyPrefix + app.ReleaseName
	fields := map[string]interface{}{
		"response_ms": elapsed.Milliseconds(),
		"online":      online,
		"checked_at":  time.Now().Unix(),
	}
	if err := m.redis.HSet(ctx, key, fields).Err(); err != nil {
		m.logger.Warn("writing app metrics failed",
			zap.String("release_name", app.ReleaseName),
			zap.Error(err))
		return
	}
	_ = m.redis.Expire(ctx, key, sampleTTL).Err()
}
