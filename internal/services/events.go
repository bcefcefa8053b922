package services

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Broadcaster is the live-connection side of event delivery
type Broadcaster interface {
	IsOnline(userID string) bool
	SendToUser(userID string, message WSMessage) error
}

// EventPublisher delivers swarm events to every member: over WebSocket when
// the member is connected, otherwise as a push notification if one is given.
// Delivery is best effort and never fails the caller.
type EventPublisher struct {
	users UserRepository
	hub   Broadcaster
	push  Notifier
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(users UserRepository, hub Broadcaster, push Notifier) *EventPublisher {
	if push == nil {
		push = NopNotifier{}
	}
	return &EventPublisher{
		users: users,
		hub:   hub,
		push:  push,
	}
}

// Publish sends msg to the current members of the swarm
func (p *EventPublisher) Publish(ctx context.Context, swarmID string, msg WSMessage, note *Notification) {
	if p == nil {
		return
	}
	msg.SwarmID = swarmID

	members, err := p.users.ListBySwarm(ctx, swarmID)
	if err != nil {
		log.Error().Err(err).Str("swarm_id", swarmID).Str("event", msg.Type).Msg("Failed to list members for event")
		return
	}

	for _, m := range members {
		if p.hub != nil && p.hub.IsOnline(m.ID) {
			err := p.hub.SendToUser(m.ID, msg)
			if err == nil {
				continue
			}
			log.Debug().Err(err).Str("user_id", m.ID).Msg("WebSocket delivery failed")
		}
		if note == nil || m.PushToken == nil || *m.PushToken == "" {
			continue
		}
		if err := p.push.Send(ctx, *m.PushToken, *note); err != nil {
			log.Warn().Err(err).Str("user_id", m.ID).Str("event", msg.Type).Msg("Failed to send push notification")
		}
	}
}
