package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/app-platform/internal/config"
	"github.com/spec-kit/app-platform/internal/observability"
)

// Lifecycle notification types understood by the provisioning receiver.
const (
	TypeInstall   = "install-app"
	TypeUninstall = "uninstall-app"
	TypeEdit      = "edit-app"
)

// Notification is the fixed payload shape delivered to the provisioning
// system. ReleaseName plus Type is enough for the receiver to de-duplicate.
type Notification struct {
	ReleaseName string `json:"releaseName"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Type        string `json:"type"`
}

// Dispatcher delivers lifecycle notifications asynchronously. Delivery is
// fire-and-forget: the triggering state mutation is already durable before a
// notification is enqueued, so a delivery failure never surfaces to callers.
type Dispatcher struct {
	url     string
	client  *http.Client
	queue   chan Notification
	workers int
	timeout time.Duration
	logger  *zap.Logger
	metrics *observability.Metrics

	startOnce sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewDispatcher builds a dispatcher with a bounded queue so a slow receiver
// cannot exhaust resources.
func NewDispatcher(cfg config.ProvisionerConfig, logger *zap.Logger, metrics *observability.Metrics) *Dispatcher {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	return &Dispatcher{
		url:     cfg.WebhookURL,
		client:  NewHTTPClient(cfg.Timeout()),
		queue:   make(chan Notification, queueSize),
		workers: workers,
		timeout: cfg.Timeout(),
		logger:  logger,
		metrics: metrics,
	}
}

// Start launches the delivery workers.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		for i := 0; i < d.workers; i++ {
			d.wg.Add(1)
			go d.run()
		}
	})
}

// Enqueue submits a notification without blocking. When the queue is full
// the notification is dropped with a warning; the receiver reconciles out of
// band. Returns whether the notification was accepted.
func (d *Dispatcher) Enqueue(n Notification) bool {
	if d.url == "" {
		d.logger.Debug("provisioner webhook url not configured; dropping notification",
			zap.String("release_name", n.ReleaseName),
			zap.String("type", n.Type))
		return false
	}
	select {
	case d.queue <- n:
		return true
	default:
		d.logger.Warn("webhook queue full; dropping notification",
			zap.String("release_name", n.ReleaseName),
			zap.String("type", n.Type))
		d.metrics.RecordWebhook(n.Type, "dropped")
		return false
	}
}

// Close stops accepting notifications and drains the queue.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.queue)
	})
	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for n := range d.queue {
		d.deliver(n)
	}
}

func (d *Dispatcher) deliver(n Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	body, err := json.Marshal(n)
	if err != nil {
		d.logger.Error("marshal webhook payload", zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		d.logger.Error("build webhook request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Warn("webhook delivery failed",
			zap.String("release_name", n.ReleaseName),
			zap.String("type", n.Type),
			zap.Error(err))
		d.metrics.RecordWebhook(n.Type, "error")
		return
	}
	defer resp.Body.Close()

	// drain to allow connection reuse
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		d.logger.Warn("webhook delivery rejected",
			zap.String("release_name", n.ReleaseName),
			zap.String("type", n.Type),
			zap.String("status", fmt.Sprintf("HTTP %d", resp.StatusCode)))
		d.metrics.RecordWebhook(n.Type, "rejected")
		return
	}

	d.logger.Info("webhook delivered",
		zap.String("release_name", n.ReleaseName),
		zap.String("type", n.Type),
		zap.Duration("duration", time.Since(start)))
	d.metrics.RecordWebhook(n.Type, "success")
}
