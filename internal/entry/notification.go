package entry

import (
	"fmt"

	"github.com/frahmantamala/hoa-reimbursement/internal/core/events"
)

// Notification is the decision that someone should hear about a transition.
// Delivery is left to subscribers of the lifecycle event.
type Notification struct {
	Recipient string `json:"recipient"`
	Kind      string `json:"kind"`
	EntryID   string `json:"entry_id"`
	Message   string `json:"message"`
}

// NotificationFor decides who hears about a completed transition. Owner
// actions go to the treasurer role, review outcomes go to the owner, and
// trash or restore notify nobody.
func NotificationFor(after *Entry, action Action) (Notification, bool) {
	if after == nil {
		return Notification{}, false
	}
	n := Notification{EntryID: after.ID}

	switch action {
	case ActionSubmit, ActionResubmit:
		n.Recipient = events.RecipientTreasurer
		n.Kind = "entry_submitted"
		n.Message = fmt.Sprintf("A %s entry is waiting for review", after.Type)
	case ActionApprove:
		if after.Status == StatusAwaitingSecondApproval {
			n.Recipient = events.RecipientTreasurer
			n.Kind = "second_approval_needed"
			n.Message = "An entry above the dual-approval threshold needs a second approval"
			return n, true
		}
		n.Recipient = after.UserID
		n.Kind = "entry_approved"
		n.Message = "Your entry was approved"
	case ActionSecondApprove:
		n.Recipient = after.UserID
		n.Kind = "entry_approved"
		n.Message = "Your entry was approved"
	case ActionDecline:
		n.Recipient = after.UserID
		n.Kind = "entry_declined"
		n.Message = "Your entry was declined: " + after.ReviewerNotes
	case ActionRequestInfo:
		n.Recipient = after.UserID
		n.Kind = "entry_needs_info"
		n.Message = "The treasurer needs more information about your entry"
	case ActionMarkPaid:
		n.Recipient = after.UserID
		n.Kind = "entry_paid"
		n.Message = fmt.Sprintf("Your entry was paid via %s", after.PaymentMethod)
	default:
		return Notification{}, false
	}
	return n, true
}
