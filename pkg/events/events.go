// Package events defines the messages broadcast between server instances.
package events

import (
	"time"

	"github.com/dukex/actionhub/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// PluginInstallsTopic carries plugin installation requests to every instance.
const PluginInstallsTopic = "actionhub.plugin-installs"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	PluginInstallRequestedEvent EventType = "plugin.install.requested"
)

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Origin    string    `json:"origin,omitempty"` // publishing instance
}

func NewBaseEvent(eventType EventType, origin string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Origin:    origin,
	}
}

// PluginOrgDTO is the installation record as carried on the wire.
type PluginOrgDTO struct {
	PluginID string              `json:"pluginId"`
	Status   models.PluginStatus `json:"status"`
}

// PluginInstallRequested asks every instance to make a plugin available for
// an organization.
type PluginInstallRequested struct {
	BaseEvent

	OrganizationID string       `json:"organizationId"`
	PluginOrg      PluginOrgDTO `json:"pluginOrgDTO"`
}

func (p PluginInstallRequested) GetType() EventType {
	return PluginInstallRequestedEvent
}

// NewPluginInstallRequested builds the broadcast payload for an installation record.
func NewPluginInstallRequested(origin string, record *models.OrganizationPlugin) *PluginInstallRequested {
	return &PluginInstallRequested{
		BaseEvent:      NewBaseEvent(PluginInstallRequestedEvent, origin),
		OrganizationID: record.OrganizationID,
		PluginOrg: PluginOrgDTO{
			PluginID: record.PluginID,
			Status:   record.Status,
		},
	}
}

// New returns an empty event value for eventType, ready to be decoded into.
func New(eventType EventType) (any, bool) {
	switch eventType {
	case PluginInstallRequestedEvent:
		return &PluginInstallRequested{}, true
	default:
		return nil, false
	}
}
