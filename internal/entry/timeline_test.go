package entry_test

import (
	"time"

	"github.com/frahmantamala/hoa-reimbursement/internal/entry"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func types(events []entry.TimelineEvent) []entry.EventType {
	out := make([]entry.EventType, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type)
	}
	return out
}

func ptr(t time.Time) *time.Time { return &t }

var _ = Describe("ReconstructTimeline", func() {
	var created time.Time

	BeforeEach(func() {
		created = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	})

	It("produces the same sequence from the audit log and from legacy fields", func() {
		cfg := withThreshold(100)
		e := workEntry(created, 75)
		e = apply(e, entry.ActionSubmit, owner, entry.Payload{}, cfg, created.Add(time.Hour))
		e = apply(e, entry.ActionApprove, t1, entry.Payload{Note: "ok"}, cfg, created.Add(2*time.Hour))
		e = apply(e, entry.ActionSecondApprove, t2, entry.Payload{}, cfg, created.Add(3*time.Hour))
		e = apply(e, entry.ActionMarkPaid, t1, entry.Payload{PaymentMethod: "check", PaymentRef: "#7"}, cfg, created.Add(4*time.Hour))

		fromLog := entry.ReconstructTimeline(e)

		legacy := e.Clone()
		legacy.AuditLog = nil
		fromFields := entry.ReconstructTimeline(legacy)

		expected := []entry.EventType{
			entry.EventCreated, entry.EventSubmitted, entry.EventFirstApproval, entry.EventSecondApproval, entry.EventPaid,
		}
		Expect(types(fromLog)).To(Equal(expected))
		Expect(types(fromFields)).To(Equal(expected))
		Expect(fromFields[4].Note).To(Equal("#7"))
	})

	// Legacy rows keep one timestamp per field, so a resubmission overwrites
	// submittedAt and the review kind before it is unknown. Only the audit log
	// reproduces a send-back cycle in full.
	It("loses the overwritten first submission on the legacy path", func() {
		cfg := withThreshold(0)
		e := workEntry(created, 20)
		e = apply(e, entry.ActionSubmit, owner, entry.Payload{}, cfg, created.Add(time.Hour))
		e = apply(e, entry.ActionDecline, t1, entry.Payload{Note: "fix receipt"}, cfg, created.Add(2*time.Hour))
		e = apply(e, entry.ActionResubmit, owner, entry.Payload{}, cfg, created.Add(3*time.Hour))

		Expect(types(entry.ReconstructTimeline(e))).To(Equal([]entry.EventType{
			entry.EventCreated, entry.EventSubmitted, entry.EventDeclined, entry.EventResubmitted,
		}))

		legacy := e.Clone()
		legacy.AuditLog = nil
		Expect(types(entry.ReconstructTimeline(legacy))).To(Equal([]entry.EventType{
			entry.EventCreated, entry.EventResubmitted,
		}))
	})

	It("does not report a decline for a resubmitted info request", func() {
		cfg := withThreshold(0)
		e := workEntry(created, 20)
		e = apply(e, entry.ActionSubmit, owner, entry.Payload{}, cfg, created.Add(time.Hour))
		e = apply(e, entry.ActionRequestInfo, t1, entry.Payload{Note: "which lawn"}, cfg, created.Add(2*time.Hour))
		e = apply(e, entry.ActionResubmit, owner, entry.Payload{}, cfg, created.Add(3*time.Hour))

		Expect(types(entry.ReconstructTimeline(e))).To(Equal([]entry.EventType{
			entry.EventCreated, entry.EventSubmitted, entry.EventNeedsInfo, entry.EventResubmitted,
		}))

		legacy := e.Clone()
		legacy.AuditLog = nil
		fromFields := types(entry.ReconstructTimeline(legacy))
		Expect(fromFields).NotTo(ContainElement(entry.EventDeclined))
		Expect(fromFields).To(Equal([]entry.EventType{entry.EventCreated, entry.EventResubmitted}))
	})

	It("maps a single-step approval to approved", func() {
		e := &entry.Entry{
			CreatedAt: created,
			AuditLog: []entry.AuditRecord{
				{Action: "approve", Timestamp: created.Add(time.Hour), NewStatus: entry.StatusApproved, ActorName: "Tess"},
			},
		}
		events := entry.ReconstructTimeline(e)
		Expect(types(events)).To(Equal([]entry.EventType{entry.EventCreated, entry.EventApproved}))
		Expect(events[1].By).To(Equal("Tess"))
	})

	It("sorts by time and keeps insertion order on ties", func() {
		at := created.Add(time.Hour)
		e := &entry.Entry{
			CreatedAt: created,
			AuditLog: []entry.AuditRecord{
				{Action: "paid", Timestamp: created.Add(5 * time.Hour)},
				{Action: "submitted", Timestamp: at},
				{Action: "trashed", Timestamp: at},
			},
		}
		Expect(types(entry.ReconstructTimeline(e))).To(Equal([]entry.EventType{
			entry.EventCreated, entry.EventSubmitted, entry.EventTrashed, entry.EventPaid,
		}))
	})

	It("skips unknown actions and missing timestamps", func() {
		e := &entry.Entry{
			CreatedAt: created,
			AuditLog: []entry.AuditRecord{
				{Action: "exported", Timestamp: created.Add(time.Hour)},
				{Action: "submitted"},
				{Action: "restore", Timestamp: created.Add(2 * time.Hour)},
			},
		}
		Expect(types(entry.ReconstructTimeline(e))).To(Equal([]entry.EventType{entry.EventCreated, entry.EventRestored}))
	})

	It("infers a needs-info review from a trashed legacy entry", func() {
		e := &entry.Entry{
			CreatedAt:         created,
			Status:            entry.StatusTrash,
			StatusBeforeTrash: entry.StatusNeedsInfo,
			SubmittedAt:       ptr(created.Add(time.Hour)),
			ReviewedAt:        ptr(created.Add(2 * time.Hour)),
			ReviewerNotes:     "which lawn?",
			TrashedAt:         ptr(created.Add(3 * time.Hour)),
		}
		events := entry.ReconstructTimeline(e)
		Expect(types(events)).To(Equal([]entry.EventType{
			entry.EventCreated, entry.EventSubmitted, entry.EventNeedsInfo, entry.EventTrashed,
		}))
		Expect(events[2].Note).To(Equal("which lawn?"))
	})

	It("returns nothing for a nil entry", func() {
		Expect(entry.ReconstructTimeline(nil)).To(BeEmpty())
	})
})
