package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeEntryCreated      = "entry.created"
	EventTypeEntryTransitioned = "entry.transitioned"
	EventTypeNudgeSent         = "nudge.sent"
)

// RecipientTreasurer addresses every user holding the treasurer role.
const RecipientTreasurer = "role:treasurer"

type EntryCreatedEvent struct {
	BaseEvent
	EntryID string `json:"entry_id"`
	OwnerID string `json:"owner_id"`
	Kind    string `json:"kind"`
}

func NewEntryCreatedEvent(entryID, ownerID, kind string, at time.Time) *EntryCreatedEvent {
	return &EntryCreatedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeEntryCreated,
			Timestamp: at,
			Data: map[string]interface{}{
				"entry_id": entryID,
				"owner_id": ownerID,
				"kind":     kind,
			},
		},
		EntryID: entryID,
		OwnerID: ownerID,
		Kind:    kind,
	}
}

// Notice is who should hear about a transition and what to tell them. A
// zero Notice means nobody.
type Notice struct {
	Recipient string `json:"recipient,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Message   string `json:"message,omitempty"`
}

// EntryTransitionedEvent carries a completed transition and the notice it
// should produce.
type EntryTransitionedEvent struct {
	BaseEvent
	EntryID    string `json:"entry_id"`
	OwnerID    string `json:"owner_id"`
	ActorID    string `json:"actor_id"`
	Action     string `json:"action"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	Notice     Notice `json:"notice"`
}

func NewEntryTransitionedEvent(entryID, ownerID, actorID, action, from, to string, notice Notice, at time.Time) *EntryTransitionedEvent {
	return &EntryTransitionedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeEntryTransitioned,
			Timestamp: at,
			Data: map[string]interface{}{
				"entry_id":    entryID,
				"owner_id":    ownerID,
				"actor_id":    actorID,
				"action":      action,
				"from_status": from,
				"to_status":   to,
				"recipient":   notice.Recipient,
				"kind":        notice.Kind,
			},
		},
		EntryID:    entryID,
		OwnerID:    ownerID,
		ActorID:    actorID,
		Action:     action,
		FromStatus: from,
		ToStatus:   to,
		Notice:     notice,
	}
}

type NudgeSentEvent struct {
	BaseEvent
	NudgeID     string  `json:"nudge_id"`
	RecipientID string  `json:"recipient_id"`
	SenderID    string  `json:"sender_id"`
	Template    string  `json:"template"`
	Message     string  `json:"message"`
	EntryID     *string `json:"entry_id,omitempty"`
}

func NewNudgeSentEvent(nudgeID, recipientID, senderID, template, message string, entryID *string, at time.Time) *NudgeSentEvent {
	return &NudgeSentEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeNudgeSent,
			Timestamp: at,
			Data: map[string]interface{}{
				"nudge_id":     nudgeID,
				"recipient_id": recipientID,
				"sender_id":    senderID,
				"template":     template,
			},
		},
		NudgeID:     nudgeID,
		RecipientID: recipientID,
		SenderID:    senderID,
		Template:    template,
		Message:     message,
		EntryID:     entryID,
	}
}
