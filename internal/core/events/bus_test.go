package events_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/frahmantamala/hoa-reimbursement/internal/core/events"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("EventBus", func() {
	var (
		bus *events.EventBus
		ctx context.Context
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		lg := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		bus, err = events.NewEventBus(lg, 4)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		bus.Shutdown()
	})

	It("delivers asynchronously to every subscriber of the type", func() {
		var calls int32
		handler := func(ctx context.Context, e events.Event) error {
			atomic.AddInt32(&calls, 1)
			return nil
		}
		bus.Subscribe(events.EventTypeEntryTransitioned, handler)
		bus.Subscribe(events.EventTypeEntryTransitioned, handler)
		bus.Subscribe(events.EventTypeNudgeSent, handler)

		evt := events.NewEntryTransitionedEvent("e1", "u1", "u1", "submitted", "draft", "submitted", events.Notice{Recipient: events.RecipientTreasurer, Kind: "entry_submitted"}, time.Now())
		Expect(bus.Publish(ctx, evt)).To(Succeed())
		bus.Drain()

		Expect(atomic.LoadInt32(&calls)).To(Equal(int32(2)))
	})

	It("keeps handler context alive after the publisher's context is cancelled", func() {
		cctx, cancel := context.WithCancel(ctx)
		var sawErr atomic.Value
		bus.Subscribe(events.EventTypeEntryCreated, func(hctx context.Context, e events.Event) error {
			sawErr.Store(hctx.Err() == nil)
			return nil
		})

		Expect(bus.Publish(cctx, events.NewEntryCreatedEvent("e1", "u1", "work", time.Now()))).To(Succeed())
		cancel()
		bus.Drain()

		Expect(sawErr.Load()).To(Equal(true))
	})

	It("returns the first handler error from PublishSync", func() {
		bus.Subscribe(events.EventTypeNudgeSent, func(ctx context.Context, e events.Event) error {
			return errors.New("broker down")
		})

		err := bus.PublishSync(ctx, events.NewNudgeSentEvent("n1", "u1", "t1", "general", "hi", nil, time.Now()))
		Expect(err).To(MatchError(ContainSubstring("broker down")))
	})

	It("ignores events nobody listens to", func() {
		Expect(bus.PublishSync(ctx, events.NewEntryCreatedEvent("e1", "u1", "work", time.Now()))).To(Succeed())
	})
})
