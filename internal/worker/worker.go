// Package worker dispatches document events from the event bus to a
// Notifier after the issuing transaction has committed.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/opensource-finance/brokerage/internal/domain"
	ierr "github.com/opensource-finance/brokerage/internal/errors"
	"github.com/opensource-finance/brokerage/internal/metrics"
)

// Notifier delivers a document event to the insured user. Push and WhatsApp
// delivery live outside this service and plug in here.
type Notifier interface {
	Notify(ctx context.Context, topic string, event domain.DocumentEvent) error
}

// LogNotifier writes each event as a structured log line.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify logs the event.
func (n LogNotifier) Notify(ctx context.Context, topic string, event domain.DocumentEvent) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "document notification",
		"topic", topic,
		"document_id", event.DocumentID,
		"document_number", event.DocumentNumber,
		"user_id", event.UserID,
		"insurance_type", event.InsuranceType,
		"total_price", event.TotalPrice.String(),
		"paid", event.Paid,
	)
	return nil
}

// Worker subscribes to the document topics and forwards every event to the
// notifier.
type Worker struct {
	bus      domain.EventBus
	notifier Notifier
	metrics  *metrics.Metrics

	mu            sync.Mutex
	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// Topics is the set of topics a worker listens on.
var Topics = []string{domain.TopicDocumentIssued, domain.TopicDocumentUpdated}

// NewWorker creates a new notification worker.
func NewWorker(bus domain.EventBus, notifier Notifier, m *metrics.Metrics) *Worker {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		notifier: notifier,
		metrics:  m,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start subscribes to every document topic.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, topic := range Topics {
		sub, err := w.bus.Subscribe(w.ctx, topic, w.handleMessage)
		if err != nil {
			return ierr.WithError(err).
				WithHintf("failed to subscribe to %s", topic).
				Mark(ierr.ErrSystem)
		}
		w.subscriptions = append(w.subscriptions, sub)
	}

	slog.Info("notification worker started", "topics", Topics)
	return nil
}

func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	var event domain.DocumentEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		slog.Error("failed to parse document event",
			"message_id", msg.ID,
			"topic", msg.Topic,
			"error", err,
		)
		w.metrics.IncNotification(msg.Topic, "failed")
		return err
	}

	if err := w.notifier.Notify(ctx, msg.Topic, event); err != nil {
		slog.Error("notification failed",
			"document_id", event.DocumentID,
			"topic", msg.Topic,
			"error", err,
		)
		w.metrics.IncNotification(msg.Topic, "failed")
		return err
	}

	w.metrics.IncNotification(msg.Topic, "sent")
	return nil
}

// Stop unsubscribes from every topic.
func (w *Worker) Stop() error {
	w.cancel()

	w.mu.Lock()
	defer w.mu.Unlock()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	slog.Info("notification worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
