package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/frahmantamala/hoa-reimbursement/internal/core/events"
	"github.com/frahmantamala/hoa-reimbursement/internal/notification"
	"github.com/frahmantamala/hoa-reimbursement/pkg/ids"
	"github.com/frahmantamala/hoa-reimbursement/pkg/logger"
	"github.com/spf13/cobra"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Publish test lifecycle events through the event bus and, when enabled, the notification topic.`,
}

var publishEventCmd = &cobra.Command{
	Use:   "publish [event-type]",
	Short: "Publish a test event",
	Long:  `Publish a test event (entry.created, entry.transitioned, nudge.sent or any custom type) for debugging`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return publishTestEvent(args[0])
	},
}

var (
	eventData      string
	eventRecipient string
)

func publishTestEvent(eventType string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger.InitWithLevel(cfg.Environment, cfg.Observability.Logging.Level)
	lg := logger.LoggerWrapper()

	bus, err := events.NewEventBus(lg, cfg.Events.WorkerPoolSize)
	if err != nil {
		return err
	}
	defer bus.Shutdown()

	bus.Subscribe(eventType, func(ctx context.Context, event events.Event) error {
		lg.Info("test handler received event",
			"event_id", event.EventID(),
			"event_type", event.EventType(),
			"payload", event.Payload())
		return nil
	})

	if cfg.Notifications.Enabled {
		notifier, err := notification.NewKafkaPublisher(cfg.Notifications, lg)
		if err != nil {
			return err
		}
		defer notifier.Close()
		notifier.Register(bus)
	}

	evt := testEvent(eventType, time.Now().UTC())
	lg.Info("publishing test event", "event_type", eventType, "event_id", evt.EventID())

	if err := bus.PublishSync(context.Background(), evt); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	lg.Info("test event published successfully")
	return nil
}

func testEvent(eventType string, now time.Time) events.Event {
	entryID := ids.New()
	switch eventType {
	case events.EventTypeEntryCreated:
		return events.NewEntryCreatedEvent(entryID, eventRecipient, "work", now)
	case events.EventTypeEntryTransitioned:
		return events.NewEntryTransitionedEvent(entryID, eventRecipient, "cli", "approve", "submitted", "approved",
			events.Notice{Recipient: eventRecipient, Kind: "entry_approved", Message: eventData}, now)
	case events.EventTypeNudgeSent:
		return events.NewNudgeSentEvent(ids.New(), eventRecipient, "cli", "general", eventData, &entryID, now)
	}
	return events.BaseEvent{
		ID:        fmt.Sprintf("test-%d", now.Unix()),
		Type:      eventType,
		Timestamp: now,
		Data: map[string]interface{}{
			"message": eventData,
			"source":  "cli-command",
		},
	}
}

func init() {
	publishEventCmd.Flags().StringVar(&eventData, "data", "test message", "Event data message")
	publishEventCmd.Flags().StringVar(&eventRecipient, "recipient", "test-recipient", "Recipient user id for notification events")

	eventCmd.AddCommand(publishEventCmd)

	rootCmd.AddCommand(eventCmd)
}
