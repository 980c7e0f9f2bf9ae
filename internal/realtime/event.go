package realtime

import (
	"context"
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

type ChangeType string

const (
	DocumentCreated ChangeType = "swms.document.created"
	DocumentUpdated ChangeType = "swms.document.updated"
	DocumentDeleted ChangeType = "swms.document.deleted"
)

// Change is a row-level notification for the documents table.
type Change struct {
	Type       ChangeType `json:"-"`
	DocumentID string     `json:"id"`
	CompanyID  string     `json:"company_id"`
	At         time.Time  `json:"-"`
}

// Publisher is what the persistence layer needs to announce changes.
type Publisher interface {
	Publish(ctx context.Context, change Change) error
}

// Broker fans changes out to in-process subscribers. Subscribe returns a
// channel and a cancel func; the channel is closed after cancel or Close.
type Broker interface {
	Publisher
	Subscribe() (<-chan Change, func())
	Close() error
}

func Source(companyID string) string {
	return "/companies/" + companyID + "/swms_documents"
}

// ToEvent wraps a change in a CloudEvent.
func ToEvent(change Change) (cloudevents.Event, error) {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	at := change.At
	if at.IsZero() {
		at = time.Now()
	}

	event := cloudevents.NewEvent()
	event.SetID(id.String())
	event.SetType(string(change.Type))
	event.SetSource(Source(change.CompanyID))
	event.SetSubject(change.DocumentID)
	event.SetTime(at)
	if err := event.SetData(cloudevents.ApplicationJSON, change); err != nil {
		return event, fmt.Errorf("failed to set event data: %w", err)
	}
	return event, nil
}

func FromEvent(event cloudevents.Event) (Change, error) {
	if err := event.Validate(); err != nil {
		return Change{}, fmt.Errorf("invalid event: %w", err)
	}
	switch ChangeType(event.Type()) {
	case DocumentCreated, DocumentUpdated, DocumentDeleted:
	default:
		return Change{}, fmt.Errorf("unexpected event type %q", event.Type())
	}

	var change Change
	if err := event.DataAs(&change); err != nil {
		return Change{}, fmt.Errorf("failed to decode event data: %w", err)
	}
	change.Type = ChangeType(event.Type())
	change.At = event.Time()
	return change, nil
}
