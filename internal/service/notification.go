package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/outlive-sh/outlive/internal/domain/bounty"
	"github.com/outlive-sh/outlive/internal/port/messagequeue"
	"github.com/outlive-sh/outlive/internal/port/notifier"
)

// NotificationService turns bus events into operator notifications. Errors
// are logged but never interrupt delivery to the remaining notifiers.
type NotificationService struct {
	notifiers     []notifier.Notifier
	enabledEvents map[string]bool
}

// NewNotificationService creates a NotificationService with the given
// notifiers and list of enabled event subjects. If enabledEvents is nil or
// empty, all events are enabled.
func NewNotificationService(notifiers []notifier.Notifier, enabledEvents []string) *NotificationService {
	enabled := make(map[string]bool, len(enabledEvents))
	for _, e := range enabledEvents {
		enabled[e] = true
	}
	return &NotificationService{
		notifiers:     notifiers,
		enabledEvents: enabled,
	}
}

// Notify sends a notification to all registered notifiers.
func (s *NotificationService) Notify(ctx context.Context, n notifier.Notification) {
	if len(s.enabledEvents) > 0 && !s.enabledEvents[n.Source] {
		return
	}

	for _, provider := range s.notifiers {
		if err := provider.Send(ctx, n); err != nil {
			slog.Warn("notification send failed",
				"notifier", provider.Name(),
				"source", n.Source,
				"error", err,
			)
		}
	}
}

// StartSubscribers wires the service to the event bus: tier changes and
// payment detections become notifications. The returned function cancels
// both subscriptions.
func (s *NotificationService) StartSubscribers(ctx context.Context, queue messagequeue.Queue) (func(), error) {
	cancelTier, err := queue.Subscribe(ctx, messagequeue.SubjectTierChanged, s.handleTierChanged)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", messagequeue.SubjectTierChanged, err)
	}
	cancelPayment, err := queue.Subscribe(ctx, messagequeue.SubjectPaymentDetected, s.handlePaymentDetected)
	if err != nil {
		cancelTier()
		return nil, fmt.Errorf("subscribe %s: %w", messagequeue.SubjectPaymentDetected, err)
	}
	return func() {
		cancelTier()
		cancelPayment()
	}, nil
}

func (s *NotificationService) handleTierChanged(ctx context.Context, subject string, data []byte) error {
	var event messagequeue.TierChangedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("tier event: %w", err)
	}

	level := "warning"
	if event.Current == "normal" {
		level = "success"
	}
	s.Notify(ctx, notifier.Notification{
		Title:   "Survival tier changed",
		Message: fmt.Sprintf("%s -> %s (stable balance %.2f USDC)", event.Previous, event.Current, float64(event.Balance)/1e6),
		Level:   level,
		Source:  subject,
	})
	return nil
}

func (s *NotificationService) handlePaymentDetected(ctx context.Context, subject string, data []byte) error {
	var p bounty.PaymentDetection
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("payment event: %w", err)
	}

	s.Notify(ctx, notifier.Notification{
		Title:   "Payment detected",
		Message: fmt.Sprintf("%d %s received (bounty %s, confidence %s)", p.Amount, p.Token, p.BountyID, p.Confidence),
		Level:   "success",
		Source:  subject,
	})
	return nil
}
