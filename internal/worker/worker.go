// Package worker consumes recorded signals from the EventBus and runs
// the real-time monitor off the request path.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/open-hospitality/kestrel/internal/alerts"
	"github.com/open-hospitality/kestrel/internal/domain"
	"github.com/open-hospitality/kestrel/internal/monitor"
)

// Worker processes recorded signal events asynchronously.
type Worker struct {
	bus       domain.EventBus
	monitor   *monitor.Monitor
	generator *alerts.Generator

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// VenueIDs is the list of venues to process.
	VenueIDs []string
}

// NewWorker creates a new async signal worker.
func NewWorker(bus domain.EventBus, mon *monitor.Monitor, generator *alerts.Generator) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:       bus,
		monitor:   mon,
		generator: generator,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start begins processing recorded signals for the given venues.
func (w *Worker) Start(cfg Config) error {
	for _, venueID := range cfg.VenueIDs {
		if err := w.startVenueWorker(venueID); err != nil {
			slog.Error("failed to start worker for venue",
				"venue_id", venueID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"venue_count", len(cfg.VenueIDs),
	)

	return nil
}

// startVenueWorker subscribes one venue's signal topic.
func (w *Worker) startVenueWorker(venueID string) error {
	sub, err := w.bus.Subscribe(w.ctx, venueID, domain.TopicSignalRecorded, func(ctx context.Context, msg *domain.Message) error {
		// Stop waits for handlers already in flight; processing runs on
		// a detached context so shutdown cannot abandon a half-written
		// assessment.
		w.wg.Add(1)
		defer w.wg.Done()
		return w.processSignal(context.WithoutCancel(ctx), venueID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("venue worker started",
		"venue_id", venueID,
		"topic", domain.TopicSignalRecorded,
	)

	return nil
}

// processSignal runs one recorded event through the monitor and raises
// alerts for assessments that demand attention. The monitor is advisory;
// a failed assessment is logged, never retried.
func (w *Worker) processSignal(ctx context.Context, venueID string, msg *domain.Message) error {
	start := time.Now()

	var event domain.RealTimeEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		slog.Error("failed to parse signal message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	if event.VenueID == "" {
		event.VenueID = venueID
	}

	assessment, err := w.monitor.AssessTransaction(ctx, &event)
	if err != nil {
		slog.Error("assessment failed",
			"venue_id", event.VenueID,
			"employee_id", event.EmployeeID,
			"error", err,
		)
		return err
	}

	if w.generator != nil {
		if _, err := w.generator.FromAssessment(ctx, assessment); err != nil {
			slog.Error("failed to raise alert from assessment",
				"venue_id", assessment.VenueID,
				"employee_id", assessment.EmployeeID,
				"error", err,
			)
		}
	}

	slog.Info("signal processed",
		"venue_id", assessment.VenueID,
		"employee_id", assessment.EmployeeID,
		"risk_score", assessment.RiskScore,
		"flags", len(assessment.Flags),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers: new deliveries cease first, then
// in-flight handlers drain.
func (w *Worker) Stop() error {
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()
	w.cancel()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
