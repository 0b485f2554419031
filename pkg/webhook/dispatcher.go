package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/psantana5/agencysite/pkg/logging"
	"github.com/psantana5/agencysite/pkg/models"
	"github.com/psantana5/agencysite/pkg/retry"
	"github.com/psantana5/agencysite/pkg/tracing"
)

const (
	HeaderEvent     = "X-Webhook-Event"
	HeaderDelivery  = "X-Webhook-Delivery"
	HeaderSignature = "X-Webhook-Signature"

	userAgent     = "agencysite-webhooks/1.0"
	recordTimeout = 5 * time.Second
)

var ErrClosed = errors.New("dispatcher closed")

// Store is the part of the store the dispatcher needs
type Store interface {
	ListWebhooks(ctx context.Context) ([]*models.Webhook, error)
	RecordDelivery(ctx context.Context, delivery *models.WebhookDelivery) error
}

// Recorder receives dispatch metrics
type Recorder interface {
	WebhookEvent(eventType string)
	WebhookDelivery(eventType string, status models.DeliveryStatus, d time.Duration)
	WebhookDropped()
}

type nopRecorder struct{}

func (nopRecorder) WebhookEvent(string)                                          {}
func (nopRecorder) WebhookDelivery(string, models.DeliveryStatus, time.Duration) {}
func (nopRecorder) WebhookDropped()                                              {}

// Config configures the dispatcher
type Config struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration // per attempt
	Retry     retry.Config

	Client  *http.Client
	Logger  *logging.Logger
	Metrics Recorder
	Tracer  *tracing.Provider
}

type job struct {
	hook    *models.Webhook
	event   models.Event
	payload []byte
}

// Dispatcher delivers events to registered webhooks from a bounded queue
// served by a fixed pool of workers
type Dispatcher struct {
	store   Store
	filters *FilterCache
	client  *http.Client
	retry   retry.Config
	logger  *logging.Logger
	metrics Recorder
	tracer  *tracing.Provider

	queue  chan job
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewDispatcher creates a dispatcher and starts its workers
func NewDispatcher(st Store, cfg Config) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewLogger(logging.INFO, false)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = nopRecorder{}
	}
	if cfg.Tracer == nil {
		cfg.Tracer = tracing.Noop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		store:   st,
		filters: NewFilterCache(),
		client:  cfg.Client,
		retry:   cfg.Retry,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		tracer:  cfg.Tracer,
		queue:   make(chan job, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// NewEvent builds an event with a fresh id
func NewEvent(eventType string, data map[string]interface{}) models.Event {
	return models.Event{
		ID:         ulid.Make().String(),
		Type:       eventType,
		Data:       data,
		OccurredAt: time.Now().UTC(),
	}
}

// Dispatch queues event for every active webhook subscribed to it whose
// filter matches. It returns the number of deliveries queued.
func (d *Dispatcher) Dispatch(ctx context.Context, event models.Event) (int, error) {
	if event.ID == "" {
		event.ID = ulid.Make().String()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	d.mu.RLock()
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		return 0, ErrClosed
	}

	hooks, err := d.store.ListWebhooks(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list webhooks: %w", err)
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to encode event: %w", err)
	}
	d.metrics.WebhookEvent(event.Type)

	queued := 0
	for _, hook := range hooks {
		if !hook.Active || !hook.Subscribes(event.Type) {
			continue
		}
		matched, err := d.filters.Match(hook.Filter, event)
		if err != nil {
			d.logger.Warn("Webhook filter failed", map[string]interface{}{
				"webhook_id": hook.ID,
				"event":      event.Type,
				"error":      err.Error(),
			})
			d.skip(hook, event, err.Error())
			continue
		}
		if !matched {
			continue
		}
		if err := d.enqueue(job{hook: hook, event: event, payload: payload}); err != nil {
			if errors.Is(err, ErrClosed) {
				return queued, err
			}
			d.metrics.WebhookDropped()
			d.logger.Warn("Webhook queue full, dropping delivery", map[string]interface{}{
				"webhook_id": hook.ID,
				"event":      event.Type,
			})
			d.skip(hook, event, err.Error())
			continue
		}
		queued++
	}
	return queued, nil
}

var errQueueFull = errors.New("delivery queue full")

func (d *Dispatcher) enqueue(j job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- j:
		return nil
	default:
		return errQueueFull
	}
}

// Test delivers a webhook.test event to hook synchronously, without retries
func (d *Dispatcher) Test(ctx context.Context, hook *models.Webhook) *models.WebhookDelivery {
	event := NewEvent(models.EventWebhookTest, map[string]interface{}{
		"webhook_id": hook.ID,
		"message":    "This is a test delivery",
	})
	payload, _ := json.Marshal(event)
	d.metrics.WebhookEvent(event.Type)
	return d.deliver(ctx, job{hook: hook, event: event, payload: payload}, retry.Config{Multiplier: 1})
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.queue {
		d.deliver(d.ctx, j, d.retry)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, j job, policy retry.Config) *models.WebhookDelivery {
	delivery := &models.WebhookDelivery{
		ID:        ulid.Make().String(),
		WebhookID: j.hook.ID,
		EventID:   j.event.ID,
		EventType: j.event.Type,
	}

	ctx, span := d.tracer.StartSpan(ctx, "webhook.deliver",
		attribute.String("webhook.id", j.hook.ID),
		attribute.String("webhook.event", j.event.Type),
		attribute.String("webhook.delivery_id", delivery.ID),
	)
	defer span.End()

	start := time.Now()
	err := retry.Do(ctx, policy, func() error {
		delivery.Attempts++
		code, err := d.post(ctx, j, delivery.ID)
		delivery.StatusCode = code
		return err
	})
	elapsed := time.Since(start)

	delivery.DurationMs = elapsed.Milliseconds()
	delivery.DeliveredAt = time.Now().UTC()
	delivery.Status = models.DeliverySucceeded
	if err != nil {
		delivery.Status = models.DeliveryFailed
		delivery.Error = err.Error()
		tracing.SetError(ctx, err)
		d.logger.Warn("Webhook delivery failed", map[string]interface{}{
			"webhook_id": j.hook.ID,
			"event":      j.event.Type,
			"attempts":   delivery.Attempts,
			"error":      err.Error(),
		})
	}
	span.SetAttributes(
		attribute.Int("webhook.attempts", delivery.Attempts),
		attribute.Int("http.status_code", delivery.StatusCode),
	)

	d.record(delivery)
	d.metrics.WebhookDelivery(j.event.Type, delivery.Status, elapsed)
	return delivery
}

func (d *Dispatcher) post(ctx context.Context, j job, deliveryID string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.hook.URL, bytes.NewReader(j.payload))
	if err != nil {
		return 0, retry.Permanent(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(HeaderEvent, j.event.Type)
	req.Header.Set(HeaderDelivery, deliveryID)
	if j.hook.Secret != "" {
		req.Header.Set(HeaderSignature, Sign(j.hook.Secret, j.payload))
	}
	tracing.InjectHTTPHeaders(ctx, req)

	resp, err := d.client.Do(req)
	if err != nil {
		if !retry.IsRetryable(err) {
			return 0, retry.Permanent(err)
		}
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return resp.StatusCode, nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return resp.StatusCode, fmt.Errorf("endpoint responded %d", resp.StatusCode)
	default:
		return resp.StatusCode, retry.Permanent(fmt.Errorf("endpoint responded %d", resp.StatusCode))
	}
}

func (d *Dispatcher) skip(hook *models.Webhook, event models.Event, reason string) {
	delivery := &models.WebhookDelivery{
		ID:          ulid.Make().String(),
		WebhookID:   hook.ID,
		EventID:     event.ID,
		EventType:   event.Type,
		Status:      models.DeliverySkipped,
		Error:       reason,
		DeliveredAt: time.Now().UTC(),
	}
	d.record(delivery)
	d.metrics.WebhookDelivery(event.Type, delivery.Status, 0)
}

func (d *Dispatcher) record(delivery *models.WebhookDelivery) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := d.store.RecordDelivery(ctx, delivery); err != nil {
		d.logger.Error("Failed to record webhook delivery", map[string]interface{}{
			"delivery_id": delivery.ID,
			"error":       err.Error(),
		})
	}
}

// Pending returns the number of queued deliveries
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Close stops accepting events and waits for queued deliveries to finish.
// When ctx expires first, in-flight retries are abandoned.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}
