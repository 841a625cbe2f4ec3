package service

import (
	"time"
)

// EventType names a change to the persisted collections.
type EventType string

const (
	EventReportSaved         EventType = "report.saved"
	EventReportDeleted       EventType = "report.deleted"
	EventConsultationCreated EventType = "consultation.created"
	EventConsultationUpdated EventType = "consultation.updated"
	EventConsultationDeleted EventType = "consultation.deleted"
	EventGalleryItemAdded    EventType = "gallery.added"
	EventGalleryItemDeleted  EventType = "gallery.deleted"
	EventArchiveRestored     EventType = "archive.restored"
)

// Event is published after a successful write.
type Event struct {
	Type EventType `json:"type"`
	ID   string    `json:"id,omitempty"`
	At   time.Time `json:"at"`
}

// EventPublisher receives change events. Publish must not block.
type EventPublisher interface {
	Publish(Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
